package preorder

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/config"
	"ms-preorder/internal/events"
	"ms-preorder/internal/logger"
	"ms-preorder/internal/metrics"
	"ms-preorder/internal/models"
	"ms-preorder/internal/preorder/db"
	"ms-preorder/internal/utils"
)

const (
	MsgResumed        = "Quote created and loaded"
	MsgNotFound       = "This quote link is invalid or no longer available."
	MsgCannotLoad     = "We could not load this quote."
	EmailGuest        = "Guest"
	EmailUnresolvable = "N/A"
)

var hashPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	SaveCustomer(ctx context.Context, c *models.Customer) error
	FindCustomerIDsByEmail(ctx context.Context, email string, like bool) ([]int64, error)
	CustomerEmails(ctx context.Context, ids []int64) (map[int64]string, error)
}

type Cloner interface {
	Clone(ctx context.Context, src *models.Cart) (*models.Cart, error)
}

type Installer interface {
	Install(ctx context.Context, sessionID string, cart *models.Cart) ([]string, error)
}

type Mailer interface {
	Send(ctx context.Context, cart *models.Cart, hash, tracking string) error
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

type StoreSettings interface {
	For(storeID int64) config.Store
}

type ResumeRecorder interface {
	ObserveResume(outcome string, started time.Time)
}

// Deps wires a PreOrderService. Events and Metrics may be nil.
type Deps struct {
	Records   RecordStore
	Carts     CartStore
	Customers CustomerStore
	Cloner    Cloner
	Installer Installer
	Mailer    Mailer
	Stores    StoreSettings
	Events    Publisher
	Metrics   ResumeRecorder
	Logger    *logger.Logger
	NewHash   func() (string, error)
}

type PreOrderService struct {
	Records   RecordStore
	Carts     CartStore
	Customers CustomerStore
	Resolver  *Resolver
	Cloner    Cloner
	Installer Installer
	Mailer    Mailer
	Stores    StoreSettings
	Events    Publisher
	Metrics   ResumeRecorder
	Logger    *logger.Logger
	newHash   func() (string, error)
}

func NewPreOrderService(d Deps) *PreOrderService {
	s := &PreOrderService{
		Records:   d.Records,
		Carts:     d.Carts,
		Customers: d.Customers,
		Resolver:  NewResolver(d.Records, d.Carts),
		Cloner:    d.Cloner,
		Installer: d.Installer,
		Mailer:    d.Mailer,
		Stores:    d.Stores,
		Events:    d.Events,
		Metrics:   d.Metrics,
		Logger:    d.Logger,
		newHash:   d.NewHash,
	}
	if s.Logger == nil {
		s.Logger = logger.NewDiscardLogger()
	}
	if s.newHash == nil {
		s.newHash = utils.GenerateHash
	}
	return s
}

// ---------------- CREATE ----------------

// CreateForCart is the admin flow: snapshot the quote behind a new hash and email the link.
// The record is kept even when the email fails; the error is still returned.
func (s *PreOrderService) CreateForCart(ctx context.Context, admin string, req models.CreatePreOrderRequest) (*models.PreOrder, error) {
	if req.QuoteID <= 0 {
		return nil, apperr.Validation("quote_id", "quote id is required")
	}
	cart, err := s.Carts.GetCart(ctx, req.QuoteID)
	if err != nil {
		return nil, err
	}
	store := s.Stores.For(cart.StoreID)
	if !store.Enabled {
		return nil, apperr.Validation("enabled", fmt.Sprintf("pre-orders are disabled for store %d", cart.StoreID))
	}
	if admin == "" {
		admin = models.AdminSystem
	}

	dirty := false
	if note := strings.TrimSpace(req.Note); note != "" {
		cart.CustomerNote = note
		cart.CustomerNoteNotify = req.Notify
		dirty = true
	}
	if store.ForceAccountCreation && cart.CustomerID == nil && cart.CustomerEmail != "" {
		if err := s.ensureCustomer(ctx, cart); err != nil {
			return nil, fmt.Errorf("create account for quote %d: %w", cart.ID, err)
		}
		dirty = true
	}
	if dirty {
		if err := s.Carts.SaveCart(ctx, cart); err != nil {
			return nil, fmt.Errorf("save quote %d: %w", cart.ID, err)
		}
	}

	hash, err := s.newHash()
	if err != nil {
		return nil, fmt.Errorf("generate hash: %w", err)
	}
	rec := &models.PreOrder{
		CustomerID: cart.CustomerID,
		QuoteID:    cart.ID,
		Hash:       hash,
		Admin:      admin,
		Tracking:   store.TrackingFor(admin),
	}
	if err := s.Records.Save(ctx, rec); err != nil {
		return nil, err
	}
	s.Logger.LogPreOrder("CREATE", hash, fmt.Sprintf("quote %d by %s", cart.ID, admin))

	sendErr := s.Mailer.Send(ctx, cart, rec.Hash, rec.Tracking)
	if sendErr != nil {
		s.Logger.Error("PREORDER", fmt.Sprintf("email for pre-order %d failed: %v", rec.ID, sendErr))
	}
	s.publish(ctx, events.NewPreOrderCreated(rec.ID, rec.QuoteID, rec.CustomerID, rec.Hash, rec.Admin, rec.Tracking, sendErr == nil))
	return rec, sendErr
}

// ensureCustomer attaches a guest cart to the account with its email, creating one if needed.
func (s *PreOrderService) ensureCustomer(ctx context.Context, cart *models.Cart) error {
	customer, err := s.Customers.GetCustomerByEmail(ctx, cart.CustomerEmail)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	if customer == nil {
		customer = customerFromCart(cart)
		if err := s.Customers.SaveCustomer(ctx, customer); err != nil {
			return err
		}
		s.Logger.Info("PREORDER", fmt.Sprintf("created customer %d for %s", customer.ID, customer.Email))
	}
	id := customer.ID
	cart.CustomerID = &id
	cart.CustomerIsGuest = false
	cart.CustomerGroupID = customer.GroupID
	return nil
}

func customerFromCart(cart *models.Cart) *models.Customer {
	c := &models.Customer{
		Email:      cart.CustomerEmail,
		StoreID:    cart.StoreID,
		GroupID:    cart.CustomerGroupID,
		Firstname:  cart.CustomerFirstname,
		Middlename: cart.CustomerMiddlename,
		Lastname:   cart.CustomerLastname,
		Prefix:     cart.CustomerPrefix,
		Suffix:     cart.CustomerSuffix,
		Dob:        cart.CustomerDob,
		Taxvat:     cart.CustomerTaxvat,
		Gender:     cart.CustomerGender,
	}
	if c.GroupID == 0 {
		c.GroupID = 1
	}
	// guest carts usually only carry the name on the addresses
	if addr := cart.ShippingAddress(); addr != nil {
		if c.Firstname == "" {
			c.Firstname = addr.Firstname
		}
		if c.Lastname == "" {
			c.Lastname = addr.Lastname
		}
	}
	if addr := cart.BillingAddress(); addr != nil {
		if c.Firstname == "" {
			c.Firstname = addr.Firstname
		}
		if c.Lastname == "" {
			c.Lastname = addr.Lastname
		}
	}
	return c
}

// CreateGuest stores a pre-order coming from the public API. The hash is
// generated when absent and admin defaults to "guest-api".
func (s *PreOrderService) CreateGuest(ctx context.Context, in models.PreOrderInput) (*models.PreOrder, error) {
	if in.QuoteID <= 0 {
		return nil, apperr.Validation("quote_id", "quote id is required")
	}
	if err := s.quoteExists(ctx, in.QuoteID); err != nil {
		return nil, err
	}
	hash := strings.TrimSpace(in.Hash)
	if hash == "" {
		var err error
		if hash, err = s.newHash(); err != nil {
			return nil, fmt.Errorf("generate hash: %w", err)
		}
	} else if !hashPattern.MatchString(hash) {
		return nil, apperr.Validation("hash", "hash must be URL-safe")
	}
	admin := in.Admin
	if admin == "" {
		admin = models.AdminGuestAPI
	}

	rec := &models.PreOrder{
		CustomerID: in.CustomerID,
		QuoteID:    in.QuoteID,
		Hash:       hash,
		Admin:      admin,
		Tracking:   in.Tracking,
	}
	if err := s.Records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("could not save guest pre-order: %w", err)
	}
	s.Logger.LogPreOrder("CREATE_GUEST", hash, fmt.Sprintf("quote %d", in.QuoteID))
	s.publish(ctx, events.NewPreOrderCreated(rec.ID, rec.QuoteID, rec.CustomerID, rec.Hash, rec.Admin, rec.Tracking, false))
	return rec, nil
}

func (s *PreOrderService) quoteExists(ctx context.Context, quoteID int64) error {
	if _, err := s.Carts.GetCart(ctx, quoteID); err != nil {
		return err
	}
	return nil
}

// ---------------- READ / UPDATE / DELETE ----------------

func (s *PreOrderService) Get(ctx context.Context, id int64) (*models.PreOrder, error) {
	return s.Records.GetByID(ctx, id)
}

func (s *PreOrderService) GetByHash(ctx context.Context, hash string) (*models.PreOrder, error) {
	return s.Records.GetByHash(ctx, hash)
}

// GetQuoteByHash returns the source quote of a pre-order.
func (s *PreOrderService) GetQuoteByHash(ctx context.Context, hash string) (*models.Cart, error) {
	snap, err := s.Resolver.Resolve(ctx, hash)
	if err != nil {
		return nil, err
	}
	return snap.Cart, nil
}

// Update rewrites the mutable fields. The hash of a record never changes.
func (s *PreOrderService) Update(ctx context.Context, id int64, in models.PreOrderInput) (*models.PreOrder, error) {
	rec, err := s.Records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.QuoteID <= 0 {
		return nil, apperr.Validation("quote_id", "quote id is required")
	}
	if in.Hash != "" && in.Hash != rec.Hash {
		return nil, apperr.Validation("hash", "hash cannot be changed")
	}
	if in.QuoteID != rec.QuoteID {
		if err := s.quoteExists(ctx, in.QuoteID); err != nil {
			return nil, err
		}
	}

	rec.CustomerID = in.CustomerID
	rec.QuoteID = in.QuoteID
	if in.Admin != "" {
		rec.Admin = in.Admin
	}
	rec.Tracking = in.Tracking
	if err := s.Records.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("could not update pre-order: %w", err)
	}
	return s.Records.GetByID(ctx, id)
}

func (s *PreOrderService) Delete(ctx context.Context, id int64) (bool, error) {
	ok, err := s.Records.Delete(ctx, id)
	if err == nil {
		s.Logger.Info("PREORDER", fmt.Sprintf("pre-order %d deleted", id))
	}
	return ok, err
}

// ---------------- LIST ----------------

// ListFilter is the admin grid query. Email filters on the customer email;
// EmailLike switches from exact to substring match.
type ListFilter struct {
	db.ListQuery
	Email     string
	EmailLike bool
}

func (s *PreOrderService) List(ctx context.Context, f ListFilter) (*models.PreOrderPage, error) {
	q := f.ListQuery
	if email := strings.TrimSpace(f.Email); email != "" {
		ids, err := s.Customers.FindCustomerIDsByEmail(ctx, email, f.EmailLike)
		if err != nil {
			return nil, fmt.Errorf("filter by email: %w", err)
		}
		q.CustomerIDs = ids
	}

	recs, total, err := s.Records.List(ctx, q)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, r := range recs {
		if r.CustomerID != nil {
			ids = append(ids, *r.CustomerID)
		}
	}
	emails, err := s.Customers.CustomerEmails(ctx, ids)
	if err != nil {
		s.Logger.Warn("PREORDER", fmt.Sprintf("could not resolve customer emails: %v", err))
		emails = map[int64]string{}
	}

	page := &models.PreOrderPage{
		Items:      make([]models.PreOrderRow, 0, len(recs)),
		TotalCount: total,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if page.Page < 1 {
		page.Page = db.DefaultPage
	}
	if page.PageSize < 1 {
		page.PageSize = db.DefaultPageSize
	}
	for _, r := range recs {
		row := models.PreOrderRow{PreOrder: r, CustomerEmail: EmailGuest}
		if r.CustomerID != nil {
			row.CustomerEmail = EmailUnresolvable
			if e, ok := emails[*r.CustomerID]; ok && e != "" {
				row.CustomerEmail = e
			}
		}
		page.Items = append(page.Items, row)
	}
	return page, nil
}

// ---------------- RESUME ----------------

type ResumeResult struct {
	Cart *models.Cart
	// Source is the resolved snapshot, set even when cloning fails.
	Source   *models.Cart
	Record   *models.PreOrder
	Warnings []string
	Messages []models.FlashMessage
}

// Resume materialises a fresh active cart from the snapshot behind hash and
// installs it into the session. The result always carries the messages to
// show the customer, also when an error is returned. An unknown hash never
// touches the session.
func (s *PreOrderService) Resume(ctx context.Context, sessionID, hash, tracking string) (*ResumeResult, error) {
	// a half-installed cart leaves the visitor with none, so callers going
	// away must not stop the workflow midway
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	res := &ResumeResult{}

	snap, err := s.Resolver.Resolve(ctx, hash)
	if err != nil {
		s.observe(metrics.ResumeNotFound, started)
		s.Logger.LogPreOrder("RESUME", hash, fmt.Sprintf("resolve failed: %v", err))
		if errors.Is(err, apperr.ErrNotFound) {
			res.Messages = []models.FlashMessage{{Type: models.MessageError, Text: MsgNotFound}}
		} else {
			res.Messages = []models.FlashMessage{{Type: models.MessageError, Text: MsgCannotLoad}}
		}
		return res, err
	}
	res.Record = snap.Record
	res.Source = snap.Cart

	cart, err := s.Cloner.Clone(ctx, snap.Cart)
	if err != nil {
		s.observe(metrics.ResumeCloneError, started)
		s.Logger.LogPreOrder("RESUME", hash, fmt.Sprintf("clone of quote %d failed: %v", snap.Cart.ID, err))
		res.Messages = errorMessages(nil, err)
		return res, err
	}

	warnings, err := s.Installer.Install(ctx, sessionID, cart)
	res.Warnings = warnings
	if err != nil {
		s.observe(metrics.ResumeSetupError, started)
		s.Logger.LogPreOrder("RESUME", hash, fmt.Sprintf("session setup failed: %v", err))
		var setupErr *apperr.SessionSetupError
		if errors.As(err, &setupErr) {
			warnings = setupErr.Warnings
		}
		res.Messages = errorMessages(warnings, err)
		return res, err
	}

	res.Cart = cart
	for _, w := range warnings {
		res.Messages = append(res.Messages, models.FlashMessage{Type: models.MessageWarning, Text: w})
	}
	res.Messages = append(res.Messages, models.FlashMessage{Type: models.MessageSuccess, Text: MsgResumed})

	s.observe(metrics.ResumeOK, started)
	s.Logger.LogPreOrder("RESUME", hash, fmt.Sprintf("quote %d cloned into cart %d", snap.Cart.ID, cart.ID))
	s.publish(ctx, events.NewPreOrderResumed(hash, snap.Cart.ID, cart.ID, sessionID, tracking, len(warnings)))
	return res, nil
}

func errorMessages(warnings []string, err error) []models.FlashMessage {
	lines := apperr.Messages(warnings, err)
	out := make([]models.FlashMessage, 0, len(lines))
	for _, l := range lines {
		out = append(out, models.FlashMessage{Type: models.MessageError, Text: l})
	}
	return out
}

func (s *PreOrderService) observe(outcome string, started time.Time) {
	if s.Metrics != nil {
		s.Metrics.ObserveResume(outcome, started)
	}
}

func (s *PreOrderService) publish(ctx context.Context, e events.Event) {
	if s.Events != nil {
		s.Events.Publish(ctx, e)
	}
}
