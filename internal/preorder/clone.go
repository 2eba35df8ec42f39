package preorder

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/cart/shipping"
	"ms-preorder/internal/logger"
	"ms-preorder/internal/models"
)

type RateCollector interface {
	CollectRates(ctx context.Context, cart *models.Cart, addr *models.CartAddress) ([]models.ShippingRate, error)
}

type TotalsCollector interface {
	Collect(cart *models.Cart)
}

// CloneEngine copies a cart snapshot into a new active cart. The source is
// never modified; nothing in the result aliases the source.
type CloneEngine struct {
	Rates  RateCollector
	Totals TotalsCollector
	Carts  CartStore
	Logger *logger.Logger
}

func NewCloneEngine(rates RateCollector, totals TotalsCollector, carts CartStore, log *logger.Logger) *CloneEngine {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &CloneEngine{Rates: rates, Totals: totals, Carts: carts, Logger: log}
}

// Clone returns an unsaved cart unless the empty-cart safety net had to persist it.
// Any stage failure aborts with a *apperr.CloneStageError.
func (e *CloneEngine) Clone(ctx context.Context, src *models.Cart) (*models.Cart, error) {
	if src == nil {
		return nil, &apperr.CloneStageError{Stage: apperr.StageCustomer, Err: errors.New("no source quote")}
	}
	dst := cloneHeader(src)

	if err := copyCustomer(src, dst); err != nil {
		return nil, &apperr.CloneStageError{Stage: apperr.StageCustomer, Err: err}
	}
	if err := copyItems(src, dst); err != nil {
		return nil, &apperr.CloneStageError{Stage: apperr.StageItems, Err: err}
	}
	if err := e.copyAddresses(ctx, src, dst); err != nil {
		return nil, &apperr.CloneStageError{Stage: apperr.StageAddresses, Err: err}
	}
	if err := e.collectTotals(ctx, dst); err != nil {
		return nil, &apperr.CloneStageError{Stage: apperr.StageTotals, Err: err}
	}

	e.Logger.Info("CLONE", fmt.Sprintf("quote %d cloned: %d items, %d addresses", src.ID, len(dst.Items), len(dst.Addresses)))
	return dst, nil
}

// ---------------- HEADER ----------------

func cloneHeader(src *models.Cart) *models.Cart {
	return &models.Cart{
		StoreID:          src.StoreID,
		Currency:         src.Currency,
		IsActive:         true,
		IsVirtual:        src.IsVirtual,
		Subtotal:         src.Subtotal,
		TaxAmount:        src.TaxAmount,
		ShippingAmount:   src.ShippingAmount,
		DiscountAmount:   src.DiscountAmount,
		GrandTotal:       src.GrandTotal,
		ItemsCount:       src.ItemsCount,
		ItemsQty:         src.ItemsQty,
		TriggerRecollect: true,
	}
}

// copyCustomer carries the identity fields over verbatim.
func copyCustomer(src, dst *models.Cart) error {
	if src.CustomerID != nil && src.CustomerIsGuest {
		return fmt.Errorf("quote %d is flagged as guest but belongs to customer %d", src.ID, *src.CustomerID)
	}
	if src.CustomerID != nil {
		id := *src.CustomerID
		dst.CustomerID = &id
	}
	dst.CustomerEmail = src.CustomerEmail
	dst.CustomerGroupID = src.CustomerGroupID
	dst.CustomerTaxClassID = src.CustomerTaxClassID
	dst.CustomerFirstname = src.CustomerFirstname
	dst.CustomerMiddlename = src.CustomerMiddlename
	dst.CustomerLastname = src.CustomerLastname
	dst.CustomerPrefix = src.CustomerPrefix
	dst.CustomerSuffix = src.CustomerSuffix
	dst.CustomerDob = src.CustomerDob
	dst.CustomerTaxvat = src.CustomerTaxvat
	dst.CustomerGender = src.CustomerGender
	dst.CustomerIsGuest = src.CustomerIsGuest
	dst.CustomerNote = src.CustomerNote
	dst.CustomerNoteNotify = src.CustomerNoteNotify
	return nil
}

// ---------------- ITEMS ----------------

func copyItems(src, dst *models.Cart) error {
	byID := make(map[int64]*models.CartItem, len(src.Items))
	for _, it := range src.Items {
		if it.ID != 0 {
			byID[it.ID] = it
		}
	}
	parentOf := func(it *models.CartItem) *models.CartItem {
		if it.ParentItem != nil {
			return it.ParentItem
		}
		if it.ParentItemID != nil {
			return byID[*it.ParentItemID]
		}
		return nil
	}

	for _, it := range sortParentsFirst(src.Items, parentOf) {
		item, err := cloneItem(it)
		if err != nil {
			return fmt.Errorf("could not copy item %q: %w", it.Name, err)
		}
		if it.ParentItem != nil || it.ParentItemID != nil {
			parent := parentOf(it)
			if parent == nil {
				return fmt.Errorf("could not copy item %q: parent item is missing from the quote", it.Name)
			}
			newParent := dst.ItemByProduct(parent.ProductID, parent.SKU)
			if newParent == nil {
				return fmt.Errorf("could not copy item %q: parent %q was not copied", it.Name, parent.SKU)
			}
			item.ParentItem = newParent
		}
		dst.AddItem(item)
	}
	return nil
}

func cloneItem(it *models.CartItem) (*models.CartItem, error) {
	if it.Qty <= 0 {
		return nil, fmt.Errorf("invalid qty %v", it.Qty)
	}
	return &models.CartItem{
		ProductID:      it.ProductID,
		SKU:            it.SKU,
		Name:           it.Name,
		ProductType:    it.ProductType,
		Qty:            it.Qty,
		Price:          it.Price,
		Weight:         it.Weight,
		TaxPercent:     it.TaxPercent,
		TaxAmount:      it.TaxAmount,
		DiscountAmount: it.DiscountAmount,
		RowTotal:       it.RowTotal,
	}, nil
}

func sortParentsFirst(items []*models.CartItem, parentOf func(*models.CartItem) *models.CartItem) []*models.CartItem {
	out := make([]*models.CartItem, len(items))
	copy(out, items)
	depth := func(it *models.CartItem) int {
		d := 0
		for p := parentOf(it); p != nil && d <= len(items); p = parentOf(p) {
			d++
		}
		return d
	}
	sort.SliceStable(out, func(i, j int) bool { return depth(out[i]) < depth(out[j]) })
	return out
}

// ---------------- ADDRESSES ----------------

func (e *CloneEngine) copyAddresses(ctx context.Context, src, dst *models.Cart) error {
	if billing := src.BillingAddress(); billing != nil {
		if err := ownedBy(src, billing); err != nil {
			return err
		}
		dst.SetAddress(cloneAddress(billing))
	}

	shippingSrc := src.ShippingAddress()
	if shippingSrc == nil {
		return nil
	}
	if err := ownedBy(src, shippingSrc); err != nil {
		return err
	}
	ship := cloneAddress(shippingSrc)
	resetShipping(ship)
	dst.SetAddress(ship)

	if shippingSrc.ShippingMethod != "" {
		e.reapplyShippingMethod(ctx, dst, ship, shippingSrc)
	}
	return nil
}

func ownedBy(cart *models.Cart, addr *models.CartAddress) error {
	if cart.ID != 0 && addr.CartID != 0 && addr.CartID != cart.ID {
		return fmt.Errorf("%s address %d belongs to quote %d", addr.AddressType, addr.ID, addr.CartID)
	}
	return nil
}

func cloneAddress(a *models.CartAddress) *models.CartAddress {
	out := &models.CartAddress{
		AddressType:           a.AddressType,
		Firstname:             a.Firstname,
		Lastname:              a.Lastname,
		Company:               a.Company,
		Street:                a.Street,
		City:                  a.City,
		Region:                a.Region,
		Postcode:              a.Postcode,
		CountryID:             a.CountryID,
		Telephone:             a.Telephone,
		Email:                 a.Email,
		ShippingMethod:        a.ShippingMethod,
		ShippingDescription:   a.ShippingDescription,
		ShippingAmount:        a.ShippingAmount,
		BaseShippingAmount:    a.BaseShippingAmount,
		ShippingTaxAmount:     a.ShippingTaxAmount,
		BaseShippingTaxAmount: a.BaseShippingTaxAmount,
	}
	if a.CustomerAddressID != nil {
		id := *a.CustomerAddressID
		out.CustomerAddressID = &id
	}
	return out
}

func resetShipping(a *models.CartAddress) {
	a.ShippingMethod = ""
	a.ShippingDescription = ""
	a.ShippingAmount = 0
	a.BaseShippingAmount = 0
	a.ShippingTaxAmount = 0
	a.BaseShippingTaxAmount = 0
	a.Rates = nil
}

// reapplyShippingMethod recollects rates for the new cart and selects the
// source method again if it is still offered. Shipping stays unset otherwise.
func (e *CloneEngine) reapplyShippingMethod(ctx context.Context, dst *models.Cart, ship, src *models.CartAddress) {
	ship.CollectShippingRates = true
	rates, err := e.Rates.CollectRates(ctx, dst, ship)
	if err != nil {
		e.Logger.Warn("CLONE", fmt.Sprintf("shipping rates unavailable, leaving %s unset: %v", src.ShippingMethod, err))
		return
	}
	rate, ok := shipping.FindRate(rates, src.ShippingMethod)
	if !ok {
		e.Logger.Warn("CLONE", fmt.Sprintf("shipping method %s no longer offered", src.ShippingMethod))
		return
	}
	ship.ShippingMethod = src.ShippingMethod
	ship.ShippingDescription = src.ShippingDescription
	if ship.ShippingDescription == "" {
		ship.ShippingDescription = rate.Title
	}
	ship.ShippingAmount = rate.Price
	ship.BaseShippingAmount = rate.Price
}

// ---------------- TOTALS ----------------

func (e *CloneEngine) collectTotals(ctx context.Context, dst *models.Cart) error {
	e.Totals.Collect(dst)
	if len(dst.Items) > 0 {
		return nil
	}

	// An empty clone is recollected and saved right away.
	e.Logger.Warn("CLONE", "cloned quote has no items, recollecting and saving")
	dst.TriggerRecollect = true
	e.Totals.Collect(dst)
	if err := e.Carts.SaveCart(ctx, dst); err != nil {
		return fmt.Errorf("save empty quote: %w", err)
	}
	return nil
}
