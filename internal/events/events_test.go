package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"ms-preorder/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_RoutesByName(t *testing.T) {
	bus := events.NewBus(nil)

	var all, carts []string
	bus.Subscribe("", "all", func(_ context.Context, e events.Event) error {
		all = append(all, e.EventName())
		return nil
	})
	bus.Subscribe(events.NameCartSaved, "carts", func(_ context.Context, e events.Event) error {
		carts = append(carts, e.Key())
		return nil
	})

	bus.Publish(context.Background(), events.NewPreOrderCreated(1, 42, nil, "abc", "system", "", true))
	bus.Publish(context.Background(), events.NewCartSaved(7, "sess", nil))

	assert.Equal(t, []string{events.NamePreOrderCreated, events.NameCartSaved}, all)
	assert.Equal(t, []string{"7"}, carts)
}

func TestBus_SubscriberFailuresAreIsolated(t *testing.T) {
	bus := events.NewBus(nil)

	called := false
	bus.Subscribe("", "broken", func(context.Context, events.Event) error { return errors.New("boom") })
	bus.Subscribe("", "panics", func(context.Context, events.Event) error { panic("bad") })
	bus.Subscribe("", "ok", func(context.Context, events.Event) error {
		called = true
		return nil
	})

	require.NotPanics(t, func() {
		bus.Publish(context.Background(), events.NewPreOrderResumed("abc", 42, 43, "sess", "", 0))
	})
	assert.True(t, called)
}

func TestEventMeta(t *testing.T) {
	a := events.NewCartSaved(1, "s", nil)
	b := events.NewCartSaved(1, "s", nil)

	assert.NotEmpty(t, a.EventID)
	assert.NotEqual(t, a.EventID, b.EventID)
	assert.False(t, a.OccurredAt.IsZero())
	assert.Equal(t, "abc", events.NewPreOrderCreated(1, 2, nil, "abc", "", "", false).Key())
}

func TestEvents_DoNotSerializeSessionID(t *testing.T) {
	const cookie = "9f0c-session-cookie"
	for _, e := range []events.Event{
		events.NewCartSaved(5, cookie, nil),
		events.NewPreOrderResumed("abc123", 42, 43, cookie, "AFF", 0),
	} {
		data, err := json.Marshal(e)
		require.NoError(t, err)
		assert.NotContains(t, string(data), cookie, e.EventName())
		assert.NotContains(t, string(data), "session_id", e.EventName())
	}

	// still available to in-process subscribers
	saved := events.NewCartSaved(5, cookie, nil)
	assert.Equal(t, cookie, saved.SessionID)
}
