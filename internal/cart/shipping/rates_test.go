package shipping_test

import (
	"context"
	"testing"

	"ms-preorder/internal/cart/shipping"
	"ms-preorder/internal/config"
	"ms-preorder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cartWith(price, qty float64) *models.Cart {
	cart := &models.Cart{StoreID: 1}
	cart.AddItem(&models.CartItem{ProductID: 1, SKU: "SKU-1", Name: "Widget", Price: price, Qty: qty})
	cart.SetAddress(&models.CartAddress{AddressType: models.AddressTypeShipping})
	return cart
}

func TestCollectRates_DefaultCarriers(t *testing.T) {
	c := shipping.NewTableRateCollector(config.NewStoreConfig(config.DefaultStore()))
	cart := cartWith(10, 3)

	rates, err := c.CollectRates(context.Background(), cart, cart.ShippingAddress())
	require.NoError(t, err)
	require.Len(t, rates, 1, "free shipping threshold not reached")
	assert.Equal(t, "flatrate_flatrate", rates[0].Code)
	assert.Equal(t, 15.0, rates[0].Price)
	assert.Equal(t, rates, cart.ShippingAddress().Rates)
}

func TestCollectRates_FreeShippingCheapestFirst(t *testing.T) {
	c := shipping.NewTableRateCollector(config.NewStoreConfig(config.DefaultStore()))
	cart := cartWith(60, 2)

	rates, err := c.CollectRates(context.Background(), cart, cart.ShippingAddress())
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "freeshipping_freeshipping", rates[0].Code)
	assert.Equal(t, 0.0, rates[0].Price)
}

func TestCollectRates_TableRateBands(t *testing.T) {
	store := config.DefaultStore()
	store.Carriers = []config.Carrier{{
		Code: "tablerate", Method: "bestway", Title: "Best Way", Type: shipping.TypeTableRate,
		Bands: []config.RateBand{{MinSubtotal: 0, Price: 20}, {MinSubtotal: 50, Price: 10}},
	}}
	c := shipping.NewTableRateCollector(config.NewStoreConfig(store))

	cart := cartWith(30, 2)
	rates, err := c.CollectRates(context.Background(), cart, cart.ShippingAddress())
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "tablerate_bestway", rates[0].Code)
	assert.Equal(t, 10.0, rates[0].Price)
}

func TestCollectRates_Errors(t *testing.T) {
	store := config.DefaultStore()
	store.Carriers = []config.Carrier{{Code: "weird", Type: "teleport"}}
	c := shipping.NewTableRateCollector(config.NewStoreConfig(store))
	cart := cartWith(10, 1)

	_, err := c.CollectRates(context.Background(), cart, cart.ShippingAddress())
	assert.Error(t, err)

	_, err = c.CollectRates(context.Background(), cart, nil)
	assert.ErrorIs(t, err, shipping.ErrNoAddress)
}

func TestCollectRates_VirtualCartHasNoRates(t *testing.T) {
	c := shipping.NewTableRateCollector(config.NewStoreConfig(config.DefaultStore()))
	cart := cartWith(10, 1)
	cart.IsVirtual = true

	rates, err := c.CollectRates(context.Background(), cart, cart.ShippingAddress())
	require.NoError(t, err)
	assert.Empty(t, rates)
}

func TestFindRate(t *testing.T) {
	rates := []models.ShippingRate{{Code: "a_b", Price: 1}}
	r, ok := shipping.FindRate(rates, "a_b")
	assert.True(t, ok)
	assert.Equal(t, 1.0, r.Price)

	_, ok = shipping.FindRate(rates, "missing")
	assert.False(t, ok)
}
