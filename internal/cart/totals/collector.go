package totals

import (
	"math"

	"ms-preorder/internal/config"
	"ms-preorder/internal/models"
)

type StoreSettings interface {
	For(storeID int64) config.Store
}

// Collector recomputes cart totals. Child items are priced on their parent.
type Collector struct {
	Stores StoreSettings
}

func NewCollector(stores StoreSettings) *Collector {
	return &Collector{Stores: stores}
}

func (c *Collector) Collect(cart *models.Cart) {
	storeRate := 0.0
	if c.Stores != nil {
		storeRate = c.Stores.For(cart.StoreID).TaxRate
	}

	var subtotal, tax, discount, qty float64
	count := 0
	for _, it := range cart.Items {
		if it.ParentItem != nil || it.ParentItemID != nil {
			it.RowTotal = 0
			it.TaxAmount = 0
			continue
		}
		it.RowTotal = round(it.Price * it.Qty)
		rate := it.TaxPercent / 100
		if it.TaxPercent == 0 {
			rate = storeRate
		}
		it.TaxAmount = round((it.RowTotal - it.DiscountAmount) * rate)

		subtotal += it.RowTotal
		tax += it.TaxAmount
		discount += it.DiscountAmount
		qty += it.Qty
		count++
	}

	shippingAmount := 0.0
	if ship := cart.ShippingAddress(); ship != nil && !cart.IsVirtual {
		shippingAmount = ship.ShippingAmount
		tax += ship.ShippingTaxAmount
	}

	cart.Subtotal = round(subtotal)
	cart.TaxAmount = round(tax)
	cart.DiscountAmount = round(discount)
	cart.ShippingAmount = round(shippingAmount)
	cart.GrandTotal = round(subtotal + tax + shippingAmount - discount)
	cart.ItemsCount = count
	cart.ItemsQty = qty
	cart.TriggerRecollect = false
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
