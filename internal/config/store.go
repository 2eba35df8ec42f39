package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	CopyMethodBcc  = "bcc"
	CopyMethodCopy = "copy"
)

// Identity is an email sender.
type Identity struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type AdminTracking struct {
	Admin    string `yaml:"admin"`
	Tracking string `yaml:"tracking"`
}

type RateBand struct {
	MinSubtotal float64 `yaml:"min_subtotal"`
	Price       float64 `yaml:"price"`
}

// Carrier describes one shipping method offered by a store.
type Carrier struct {
	Code          string     `yaml:"code"`
	Method        string     `yaml:"method"`
	Title         string     `yaml:"title"`
	Type          string     `yaml:"type"`
	Price         float64    `yaml:"price"`
	PerItem       bool       `yaml:"per_item"`
	FreeThreshold float64    `yaml:"free_threshold"`
	Bands         []RateBand `yaml:"bands"`
	Disabled      bool       `yaml:"disabled"`
}

// Store is the resolved settings of one store scope.
type Store struct {
	ID                   int64
	Enabled              bool
	EmailEnabled         bool
	TemplateID           string
	Sender               Identity
	CopyTo               []string
	CopyMethod           string
	ForceAccountCreation bool
	TrackingEnabled      bool
	AdminTracking        []AdminTracking
	SuppressReferrer     bool
	BaseURL              string
	TaxRate              float64
	Carriers             []Carrier
}

// TrackingFor returns the affiliate code configured for an admin user.
func (s Store) TrackingFor(admin string) string {
	if !s.TrackingEnabled {
		return ""
	}
	for _, t := range s.AdminTracking {
		if t.Admin == admin {
			return t.Tracking
		}
	}
	return ""
}

type rawEmail struct {
	Enabled    *bool     `yaml:"enabled"`
	Template   string    `yaml:"template"`
	Identity   *Identity `yaml:"identity"`
	CopyTo     *string   `yaml:"copy_to"`
	CopyMethod string    `yaml:"copy_method"`
}

type rawTracking struct {
	Enabled *bool           `yaml:"enabled"`
	Admins  []AdminTracking `yaml:"admins"`
}

type rawShipping struct {
	Carriers []Carrier `yaml:"carriers"`
}

type rawStore struct {
	Enabled              *bool        `yaml:"enabled"`
	Email                rawEmail     `yaml:"email"`
	ForceAccountCreation *bool        `yaml:"force_account_creation"`
	AffiliateTracking    rawTracking  `yaml:"affiliate_tracking"`
	SuppressReferrer     *bool        `yaml:"suppress_referrer"`
	BaseURL              string       `yaml:"base_url"`
	TaxRate              *float64     `yaml:"tax_rate"`
	Shipping             *rawShipping `yaml:"shipping"`
}

type rawFile struct {
	Default rawStore           `yaml:"default"`
	Stores  map[int64]rawStore `yaml:"stores"`
}

// StoreConfig is the per-store key/value lookup. Safe for concurrent use.
type StoreConfig struct {
	mu     sync.RWMutex
	def    Store
	stores map[int64]Store
}

func DefaultStore() Store {
	return Store{
		Enabled:      true,
		EmailEnabled: true,
		TemplateID:   "preorder_quote",
		CopyMethod:   CopyMethodBcc,
		Carriers: []Carrier{
			{Code: "flatrate", Method: "flatrate", Title: "Flat Rate", Type: "flatrate", Price: 5, PerItem: true},
			{Code: "freeshipping", Method: "freeshipping", Title: "Free Shipping", Type: "freeshipping", FreeThreshold: 100},
		},
	}
}

func NewStoreConfig(def Store) *StoreConfig {
	return &StoreConfig{def: def, stores: make(map[int64]Store)}
}

// LoadStoreConfig reads the YAML file at path. A missing file yields defaults.
func LoadStoreConfig(path string) (*StoreConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewStoreConfig(DefaultStore()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store config %s: %w", path, err)
	}
	return ParseStoreConfig(data)
}

func ParseStoreConfig(data []byte) (*StoreConfig, error) {
	var file rawFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse store config: %w", err)
	}

	def := merge(DefaultStore(), file.Default)
	sc := NewStoreConfig(def)
	for id, raw := range file.Stores {
		s := merge(def, raw)
		s.ID = id
		sc.stores[id] = s
	}
	return sc, nil
}

// Set replaces the settings of a single store.
func (c *StoreConfig) Set(storeID int64, s Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.ID = storeID
	c.stores[storeID] = s
}

// For resolves the settings of storeID, falling back to the default scope.
func (c *StoreConfig) For(storeID int64) Store {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.stores[storeID]; ok {
		return s
	}
	s := c.def
	s.ID = storeID
	return s
}

func merge(base Store, raw rawStore) Store {
	out := base
	if raw.Enabled != nil {
		out.Enabled = *raw.Enabled
	}
	if raw.Email.Enabled != nil {
		out.EmailEnabled = *raw.Email.Enabled
	}
	if raw.Email.Template != "" {
		out.TemplateID = raw.Email.Template
	}
	if raw.Email.Identity != nil {
		out.Sender = *raw.Email.Identity
	}
	if raw.Email.CopyTo != nil {
		out.CopyTo = splitList(*raw.Email.CopyTo)
	}
	if raw.Email.CopyMethod != "" {
		out.CopyMethod = strings.ToLower(raw.Email.CopyMethod)
	}
	if raw.ForceAccountCreation != nil {
		out.ForceAccountCreation = *raw.ForceAccountCreation
	}
	if raw.AffiliateTracking.Enabled != nil {
		out.TrackingEnabled = *raw.AffiliateTracking.Enabled
	}
	if raw.AffiliateTracking.Admins != nil {
		out.AdminTracking = raw.AffiliateTracking.Admins
	}
	if raw.SuppressReferrer != nil {
		out.SuppressReferrer = *raw.SuppressReferrer
	}
	if raw.BaseURL != "" {
		out.BaseURL = strings.TrimRight(raw.BaseURL, "/")
	}
	if raw.TaxRate != nil {
		out.TaxRate = *raw.TaxRate
	}
	if raw.Shipping != nil {
		out.Carriers = raw.Shipping.Carriers
	}
	return out
}
