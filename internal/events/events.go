// Package events is the in-process bus for pre-order side effects.
package events

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"ms-preorder/internal/logger"

	"github.com/google/uuid"
)

const (
	NamePreOrderCreated = "preorder.created"
	NamePreOrderResumed = "preorder.resumed"
	NameCartSaved       = "cart.saved"
)

// Event is anything published on the bus. Key is used as the Kafka message key.
type Event interface {
	EventName() string
	Key() string
}

// Meta is embedded by every event.
type Meta struct {
	EventID    string    `json:"event_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newMeta() Meta {
	return Meta{EventID: uuid.NewString(), OccurredAt: time.Now().UTC()}
}

type PreOrderCreated struct {
	Meta
	PreOrderID int64  `json:"preorder_id"`
	QuoteID    int64  `json:"quote_id"`
	CustomerID *int64 `json:"customer_id,omitempty"`
	Hash       string `json:"hash"`
	Admin      string `json:"admin"`
	Tracking   string `json:"tracking,omitempty"`
	Emailed    bool   `json:"emailed"`
}

func NewPreOrderCreated(id, quoteID int64, customerID *int64, hash, admin, tracking string, emailed bool) PreOrderCreated {
	return PreOrderCreated{
		Meta: newMeta(), PreOrderID: id, QuoteID: quoteID, CustomerID: customerID,
		Hash: hash, Admin: admin, Tracking: tracking, Emailed: emailed,
	}
}

func (e PreOrderCreated) EventName() string { return NamePreOrderCreated }
func (e PreOrderCreated) Key() string       { return e.Hash }

// PreOrderResumed and CartSaved never serialize SessionID: it is the
// browser's cookie value and only in-process subscribers may see it.
type PreOrderResumed struct {
	Meta
	Hash          string `json:"hash"`
	SourceQuoteID int64  `json:"source_quote_id"`
	CartID        int64  `json:"cart_id"`
	SessionID     string `json:"-"`
	Tracking      string `json:"tracking,omitempty"`
	Warnings      int    `json:"warnings"`
}

func NewPreOrderResumed(hash string, sourceQuoteID, cartID int64, sessionID, tracking string, warnings int) PreOrderResumed {
	return PreOrderResumed{
		Meta: newMeta(), Hash: hash, SourceQuoteID: sourceQuoteID, CartID: cartID,
		SessionID: sessionID, Tracking: tracking, Warnings: warnings,
	}
}

func (e PreOrderResumed) EventName() string { return NamePreOrderResumed }
func (e PreOrderResumed) Key() string       { return e.Hash }

// CartSaved fires whenever a cart becomes the active cart of a session.
type CartSaved struct {
	Meta
	CartID     int64  `json:"cart_id"`
	SessionID  string `json:"-"`
	CustomerID *int64 `json:"customer_id,omitempty"`
}

func NewCartSaved(cartID int64, sessionID string, customerID *int64) CartSaved {
	return CartSaved{Meta: newMeta(), CartID: cartID, SessionID: sessionID, CustomerID: customerID}
}

func (e CartSaved) EventName() string { return NameCartSaved }
func (e CartSaved) Key() string       { return strconv.FormatInt(e.CartID, 10) }

// Handler observes one event. Returned errors are logged by the bus.
type Handler func(ctx context.Context, e Event) error

type subscription struct {
	name    string
	label   string
	handler Handler
}

// Bus dispatches events synchronously, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Bus{logger: log}
}

// Subscribe registers h for events called name. An empty name receives everything.
func (b *Bus) Subscribe(name, label string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, label: label, handler: h})
}

// Publish never fails: subscriber errors and panics are logged and swallowed.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.name == "" || s.name == e.EventName() {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		b.dispatch(ctx, s, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, s subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("EVENTS", fmt.Sprintf("subscriber %s panicked on %s: %v", s.label, e.EventName(), r))
		}
	}()
	if err := s.handler(ctx, e); err != nil {
		b.logger.Warn("EVENTS", fmt.Sprintf("subscriber %s failed on %s (%s): %v", s.label, e.EventName(), e.Key(), err))
		return
	}
	b.logger.Debug("EVENTS", fmt.Sprintf("%s delivered to %s", e.EventName(), s.label))
}
