package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	AddressTypeBilling  = "billing"
	AddressTypeShipping = "shipping"
)

// Cart is the quote aggregate: header, line items and addresses.
type Cart struct {
	bun.BaseModel `bun:"table:carts"`

	ID              int64  `bun:"id,pk,autoincrement" json:"id"`
	StoreID         int64  `bun:"store_id" json:"store_id"`
	Currency        string `bun:"currency" json:"currency"`
	IsActive        bool   `bun:"is_active" json:"is_active"`
	IsVirtual       bool   `bun:"is_virtual" json:"is_virtual"`
	ReservedOrderID string `bun:"reserved_order_id,nullzero" json:"reserved_order_id,omitempty"`

	CustomerID         *int64 `bun:"customer_id" json:"customer_id"`
	CustomerEmail      string `bun:"customer_email" json:"customer_email"`
	CustomerGroupID    int64  `bun:"customer_group_id" json:"customer_group_id"`
	CustomerTaxClassID int64  `bun:"customer_tax_class_id" json:"customer_tax_class_id"`
	CustomerFirstname  string `bun:"customer_firstname" json:"customer_firstname"`
	CustomerMiddlename string `bun:"customer_middlename" json:"customer_middlename"`
	CustomerLastname   string `bun:"customer_lastname" json:"customer_lastname"`
	CustomerPrefix     string `bun:"customer_prefix" json:"customer_prefix"`
	CustomerSuffix     string `bun:"customer_suffix" json:"customer_suffix"`
	CustomerDob        string `bun:"customer_dob" json:"customer_dob"`
	CustomerTaxvat     string `bun:"customer_taxvat" json:"customer_taxvat"`
	CustomerGender     int    `bun:"customer_gender" json:"customer_gender"`
	CustomerIsGuest    bool   `bun:"customer_is_guest" json:"customer_is_guest"`
	CustomerNote       string `bun:"customer_note" json:"customer_note"`
	CustomerNoteNotify bool   `bun:"customer_note_notify" json:"customer_note_notify"`

	Subtotal         float64 `bun:"subtotal" json:"subtotal"`
	TaxAmount        float64 `bun:"tax_amount" json:"tax_amount"`
	ShippingAmount   float64 `bun:"shipping_amount" json:"shipping_amount"`
	DiscountAmount   float64 `bun:"discount_amount" json:"discount_amount"`
	GrandTotal       float64 `bun:"grand_total" json:"grand_total"`
	ItemsCount       int     `bun:"items_count" json:"items_count"`
	ItemsQty         float64 `bun:"items_qty" json:"items_qty"`
	TriggerRecollect bool    `bun:"trigger_recollect" json:"-"`

	CreatedAt time.Time `bun:"created_at,nullzero" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	Items     []*CartItem    `bun:"rel:has-many,join:id=cart_id" json:"items"`
	Addresses []*CartAddress `bun:"rel:has-many,join:id=cart_id" json:"addresses"`
}

// CartItem is one line; child items (bundle/configurable options) point at a parent.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID             int64     `bun:"id,pk,autoincrement" json:"id"`
	CartID         int64     `bun:"cart_id" json:"cart_id"`
	ParentItemID   *int64    `bun:"parent_item_id" json:"parent_item_id"`
	ProductID      int64     `bun:"product_id" json:"product_id"`
	SKU            string    `bun:"sku" json:"sku"`
	Name           string    `bun:"name" json:"name"`
	ProductType    string    `bun:"product_type" json:"product_type"`
	Qty            float64   `bun:"qty" json:"qty"`
	Price          float64   `bun:"price" json:"price"`
	Weight         float64   `bun:"weight" json:"weight"`
	TaxPercent     float64   `bun:"tax_percent" json:"tax_percent"`
	TaxAmount      float64   `bun:"tax_amount" json:"tax_amount"`
	DiscountAmount float64   `bun:"discount_amount" json:"discount_amount"`
	RowTotal       float64   `bun:"row_total" json:"row_total"`
	CreatedAt      time.Time `bun:"created_at,nullzero" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero" json:"updated_at"`

	ParentItem *CartItem `bun:"-" json:"-"`
	Cart       *Cart     `bun:"-" json:"-"`
}

type CartAddress struct {
	bun.BaseModel `bun:"table:cart_addresses"`

	ID                int64  `bun:"id,pk,autoincrement" json:"id"`
	CartID            int64  `bun:"cart_id" json:"cart_id"`
	AddressType       string `bun:"address_type" json:"address_type"`
	CustomerAddressID *int64 `bun:"customer_address_id" json:"customer_address_id"`
	Firstname         string `bun:"firstname" json:"firstname"`
	Lastname          string `bun:"lastname" json:"lastname"`
	Company           string `bun:"company" json:"company"`
	Street            string `bun:"street" json:"street"`
	City              string `bun:"city" json:"city"`
	Region            string `bun:"region" json:"region"`
	Postcode          string `bun:"postcode" json:"postcode"`
	CountryID         string `bun:"country_id" json:"country_id"`
	Telephone         string `bun:"telephone" json:"telephone"`
	Email             string `bun:"email" json:"email"`

	ShippingMethod        string  `bun:"shipping_method" json:"shipping_method"`
	ShippingDescription   string  `bun:"shipping_description" json:"shipping_description"`
	ShippingAmount        float64 `bun:"shipping_amount" json:"shipping_amount"`
	BaseShippingAmount    float64 `bun:"base_shipping_amount" json:"base_shipping_amount"`
	ShippingTaxAmount     float64 `bun:"shipping_tax_amount" json:"shipping_tax_amount"`
	BaseShippingTaxAmount float64 `bun:"base_shipping_tax_amount" json:"base_shipping_tax_amount"`

	CollectShippingRates bool           `bun:"-" json:"-"`
	Rates                []ShippingRate `bun:"-" json:"rates,omitempty"`
}

// ShippingRate is one offer computed for an address; Code is "<carrier>_<method>".
type ShippingRate struct {
	Code    string  `json:"code"`
	Carrier string  `json:"carrier"`
	Method  string  `json:"method"`
	Title   string  `json:"title"`
	Price   float64 `json:"price"`
}

// VisibleItems returns lines without a parent.
func (c *Cart) VisibleItems() []*CartItem {
	var out []*CartItem
	for _, it := range c.Items {
		if it.ParentItem == nil && it.ParentItemID == nil {
			out = append(out, it)
		}
	}
	return out
}

// ItemByProduct finds a top-level line for the given product. Lines are
// matched by product identity, so when two top-level lines share ProductID
// and SKU the first one in cart order wins.
func (c *Cart) ItemByProduct(productID int64, sku string) *CartItem {
	for _, it := range c.Items {
		if it.ParentItem != nil || it.ParentItemID != nil {
			continue
		}
		if it.ProductID == productID && it.SKU == sku {
			return it
		}
	}
	return nil
}

// AddItem attaches item to the cart.
func (c *Cart) AddItem(item *CartItem) {
	item.Cart = c
	item.CartID = c.ID
	c.Items = append(c.Items, item)
}

func (c *Cart) address(kind string) *CartAddress {
	for _, a := range c.Addresses {
		if a.AddressType == kind {
			return a
		}
	}
	return nil
}

func (c *Cart) BillingAddress() *CartAddress  { return c.address(AddressTypeBilling) }
func (c *Cart) ShippingAddress() *CartAddress { return c.address(AddressTypeShipping) }

// SetAddress replaces the address of the same type.
func (c *Cart) SetAddress(addr *CartAddress) {
	addr.CartID = c.ID
	for i, a := range c.Addresses {
		if a.AddressType == addr.AddressType {
			c.Addresses[i] = addr
			return
		}
	}
	c.Addresses = append(c.Addresses, addr)
}

// LinkItems rebuilds ParentItem and Cart pointers from stored ids.
func (c *Cart) LinkItems() {
	byID := make(map[int64]*CartItem, len(c.Items))
	for _, it := range c.Items {
		byID[it.ID] = it
		it.Cart = c
	}
	for _, it := range c.Items {
		if it.ParentItemID != nil {
			it.ParentItem = byID[*it.ParentItemID]
		}
	}
}
