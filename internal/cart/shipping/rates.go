package shipping

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ms-preorder/internal/config"
	"ms-preorder/internal/models"
)

const (
	TypeFlatRate     = "flatrate"
	TypeFreeShipping = "freeshipping"
	TypeTableRate    = "tablerate"
)

var ErrNoAddress = errors.New("cart has no shipping address")

// StoreSettings resolves the carriers configured for a store.
type StoreSettings interface {
	For(storeID int64) config.Store
}

// TableRateCollector computes rates from the store's configured carriers.
type TableRateCollector struct {
	Stores StoreSettings
}

func NewTableRateCollector(stores StoreSettings) *TableRateCollector {
	return &TableRateCollector{Stores: stores}
}

// CollectRates fills addr.Rates for the cart and returns them, cheapest first.
func (c *TableRateCollector) CollectRates(ctx context.Context, cart *models.Cart, addr *models.CartAddress) ([]models.ShippingRate, error) {
	if addr == nil {
		return nil, ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := c.Stores.For(cart.StoreID)
	subtotal, qty := visibleTotals(cart)

	rates := make([]models.ShippingRate, 0, len(settings.Carriers))
	for _, carrier := range settings.Carriers {
		if carrier.Disabled || cart.IsVirtual {
			continue
		}
		price, ok, err := priceFor(carrier, subtotal, qty)
		if err != nil {
			return nil, fmt.Errorf("carrier %s: %w", carrier.Code, err)
		}
		if !ok {
			continue
		}
		rates = append(rates, models.ShippingRate{
			Code:    RateCode(carrier.Code, carrier.Method),
			Carrier: carrier.Code,
			Method:  carrier.Method,
			Title:   carrier.Title,
			Price:   price,
		})
	}
	sort.SliceStable(rates, func(i, j int) bool { return rates[i].Price < rates[j].Price })

	addr.Rates = rates
	addr.CollectShippingRates = false
	return rates, nil
}

func RateCode(carrier, method string) string {
	if method == "" {
		method = carrier
	}
	return carrier + "_" + method
}

// FindRate returns the rate with the given code.
func FindRate(rates []models.ShippingRate, code string) (models.ShippingRate, bool) {
	for _, r := range rates {
		if r.Code == code {
			return r, true
		}
	}
	return models.ShippingRate{}, false
}

func priceFor(carrier config.Carrier, subtotal, qty float64) (float64, bool, error) {
	switch carrier.Type {
	case TypeFlatRate, "":
		if carrier.PerItem {
			return carrier.Price * qty, true, nil
		}
		return carrier.Price, true, nil
	case TypeFreeShipping:
		if subtotal >= carrier.FreeThreshold {
			return 0, true, nil
		}
		return 0, false, nil
	case TypeTableRate:
		price, found := 0.0, false
		best := -1.0
		for _, b := range carrier.Bands {
			if subtotal >= b.MinSubtotal && b.MinSubtotal > best {
				best = b.MinSubtotal
				price = b.Price
				found = true
			}
		}
		return price, found, nil
	default:
		return 0, false, fmt.Errorf("unknown carrier type %q", carrier.Type)
	}
}

func visibleTotals(cart *models.Cart) (subtotal, qty float64) {
	for _, it := range cart.VisibleItems() {
		subtotal += it.Price * it.Qty
		qty += it.Qty
	}
	return subtotal, qty
}
