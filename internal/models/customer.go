package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	Email      string    `bun:"email,unique,notnull" json:"email"`
	GroupID    int64     `bun:"group_id" json:"group_id"`
	StoreID    int64     `bun:"store_id" json:"store_id"`
	Firstname  string    `bun:"firstname" json:"firstname"`
	Middlename string    `bun:"middlename" json:"middlename"`
	Lastname   string    `bun:"lastname" json:"lastname"`
	Prefix     string    `bun:"prefix" json:"prefix"`
	Suffix     string    `bun:"suffix" json:"suffix"`
	Dob        string    `bun:"dob" json:"dob"`
	Taxvat     string    `bun:"taxvat" json:"taxvat"`
	Gender     int       `bun:"gender" json:"gender"`
	CreatedAt  time.Time `bun:"created_at,nullzero" json:"created_at"`
}

// CartView is what the cart page returns: the session cart and pending messages.
type CartView struct {
	Cart     *Cart         `json:"cart"`
	Messages []FlashMessage `json:"messages"`
}

const (
	MessageSuccess = "success"
	MessageWarning = "warning"
	MessageError   = "error"
)

type FlashMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
