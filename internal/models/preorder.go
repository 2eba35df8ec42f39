package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	AdminSystem   = "system"
	AdminGuestAPI = "guest-api"
)

// PreOrder is a shareable, hash-addressed reference to a cart snapshot.
type PreOrder struct {
	bun.BaseModel `bun:"table:pre_order"`

	ID         int64     `bun:"entity_id,pk,autoincrement" json:"entity_id"`
	CustomerID *int64    `bun:"customer_id" json:"customer_id"`
	QuoteID    int64     `bun:"quote_id,nullzero" json:"quote_id"`
	Hash       string    `bun:"hash,unique,notnull" json:"hash"`
	Admin      string    `bun:"admin" json:"admin"`
	Tracking   string    `bun:"tracking" json:"tracking"`
	CreatedAt  time.Time `bun:"created_at,nullzero" json:"created_at"`
}

// PreOrderInput is the writable part of a pre-order (guest API and updates).
type PreOrderInput struct {
	CustomerID *int64 `json:"customer_id"`
	QuoteID    int64  `json:"quote_id"`
	Hash       string `json:"hash"`
	Admin      string `json:"admin"`
	Tracking   string `json:"tracking"`
}

// PreOrderRow is a grid row: the record plus the resolved customer email.
type PreOrderRow struct {
	PreOrder
	CustomerEmail string `json:"customer_email"`
}

type PreOrderPage struct {
	Items      []PreOrderRow `json:"items"`
	TotalCount int           `json:"total_count"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
}

type CreatePreOrderRequest struct {
	QuoteID int64  `json:"quote_id"`
	Note    string `json:"note"`
	Notify  bool   `json:"notify"`
}

type CreatePreOrderResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Error       string `json:"error,omitempty"`
}
