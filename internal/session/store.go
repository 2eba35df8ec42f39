// Package session keeps the per-browser cart pointer, customer login and
// flash messages in Redis.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ms-preorder/internal/events"
	"ms-preorder/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	fieldCartID     = "cart_id"
	fieldCustomerID = "customer_id"
)

type Store struct {
	Client  *redis.Client
	TTL     time.Duration
	LockTTL time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{Client: client, TTL: ttl}
}

func key(id string) string         { return "session:" + id }
func messagesKey(id string) string { return "session:" + id + ":messages" }
func sectionsKey(id string) string { return "session:" + id + ":sections" }

// ---------------- CART POINTER ----------------

// CartID returns the active cart of the session, if any.
func (s *Store) CartID(ctx context.Context, sessionID string) (int64, bool, error) {
	v, err := s.Client.HGet(ctx, key(sessionID), fieldCartID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("session %s: bad cart id %q: %w", sessionID, v, err)
	}
	return id, true, nil
}

func (s *Store) SetCart(ctx context.Context, sessionID string, cartID int64) error {
	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, key(sessionID), fieldCartID, cartID)
	pipe.Expire(ctx, key(sessionID), s.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Clear drops the cart pointer. The customer login is kept.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.Client.HDel(ctx, key(sessionID), fieldCartID).Err()
}

// ---------------- CUSTOMER ----------------

func (s *Store) CustomerID(ctx context.Context, sessionID string) (*int64, error) {
	v, err := s.Client.HGet(ctx, key(sessionID), fieldCustomerID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("session %s: bad customer id %q: %w", sessionID, v, err)
	}
	return &id, nil
}

func (s *Store) LoginCustomer(ctx context.Context, sessionID string, customerID int64) error {
	pipe := s.Client.TxPipeline()
	pipe.HSet(ctx, key(sessionID), fieldCustomerID, customerID)
	pipe.Expire(ctx, key(sessionID), s.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ---------------- FLASH MESSAGES ----------------

func (s *Store) AddMessages(ctx context.Context, sessionID string, msgs ...models.FlashMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, b)
	}
	pipe := s.Client.TxPipeline()
	pipe.RPush(ctx, messagesKey(sessionID), values...)
	pipe.Expire(ctx, messagesKey(sessionID), s.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// PopMessages returns and removes every pending message.
func (s *Store) PopMessages(ctx context.Context, sessionID string) ([]models.FlashMessage, error) {
	pipe := s.Client.TxPipeline()
	lr := pipe.LRange(ctx, messagesKey(sessionID), 0, -1)
	pipe.Del(ctx, messagesKey(sessionID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	raw := lr.Val()
	out := make([]models.FlashMessage, 0, len(raw))
	for _, r := range raw {
		var m models.FlashMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// ---------------- CUSTOMER DATA SECTIONS ----------------

// Sections is the version of the customer-data sections the browser must reload.
func (s *Store) Sections(ctx context.Context, sessionID string) (int64, error) {
	v, err := s.Client.Get(ctx, sectionsKey(sessionID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// InvalidateSections is subscribed to cart.saved.
func (s *Store) InvalidateSections(ctx context.Context, e events.Event) error {
	saved, ok := e.(events.CartSaved)
	if !ok || saved.SessionID == "" {
		return nil
	}
	pipe := s.Client.TxPipeline()
	pipe.Incr(ctx, sectionsKey(saved.SessionID))
	pipe.Expire(ctx, sectionsKey(saved.SessionID), s.TTL)
	_, err := pipe.Exec(ctx)
	return err
}
