package session

import (
	"context"
	"fmt"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/events"
	"ms-preorder/internal/logger"
	"ms-preorder/internal/models"
)

type SessionStore interface {
	CartID(ctx context.Context, sessionID string) (int64, bool, error)
	SetCart(ctx context.Context, sessionID string, cartID int64) error
	Clear(ctx context.Context, sessionID string) error
	LoginCustomer(ctx context.Context, sessionID string, customerID int64) error
}

type CartStore interface {
	SaveCart(ctx context.Context, cart *models.Cart) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
}

type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// Installer makes a freshly cloned cart the active cart of a browser session.
type Installer struct {
	Sessions  SessionStore
	Carts     CartStore
	Customers CustomerStore
	Events    Publisher
	Logger    *logger.Logger
}

func NewInstaller(sessions SessionStore, carts CartStore, customers CustomerStore, pub Publisher, log *logger.Logger) *Installer {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Installer{Sessions: sessions, Carts: carts, Customers: customers, Events: pub, Logger: log}
}

// Install returns the best-effort warnings it collected. A non-nil error is
// always a *apperr.SessionSetupError carrying those warnings too.
func (i *Installer) Install(ctx context.Context, sessionID string, cart *models.Cart) ([]string, error) {
	var warnings []string
	fail := func(err error) ([]string, error) {
		i.Logger.Error("SESSION", fmt.Sprintf("session %s: %v", sessionID, err))
		return warnings, &apperr.SessionSetupError{Warnings: warnings, Err: err}
	}

	previous, hadCart, err := i.Sessions.CartID(ctx, sessionID)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("could not read the current cart: %v", err))
		hadCart = false
	}

	if err := i.Sessions.Clear(ctx, sessionID); err != nil {
		return fail(fmt.Errorf("clear session: %w", err))
	}

	if hadCart && previous != cart.ID {
		if err := i.Carts.SetActive(ctx, previous, false); err != nil {
			i.Logger.Warn("SESSION", fmt.Sprintf("could not deactivate cart %d: %v", previous, err))
			warnings = append(warnings, fmt.Sprintf("could not deactivate previous cart %d: %v", previous, err))
		}
	}

	if cart.CustomerID != nil {
		customer, err := i.Customers.GetCustomer(ctx, *cart.CustomerID)
		if err != nil {
			return fail(fmt.Errorf("log in customer %d: %w", *cart.CustomerID, err))
		}
		if err := i.Sessions.LoginCustomer(ctx, sessionID, customer.ID); err != nil {
			return fail(fmt.Errorf("log in customer %d: %w", customer.ID, err))
		}
	}

	cart.IsActive = true
	if err := i.Carts.SaveCart(ctx, cart); err != nil {
		return fail(fmt.Errorf("save cart: %w", err))
	}
	if err := i.Sessions.SetCart(ctx, sessionID, cart.ID); err != nil {
		return fail(fmt.Errorf("attach cart %d: %w", cart.ID, err))
	}

	if i.Events != nil {
		i.Events.Publish(ctx, events.NewCartSaved(cart.ID, sessionID, cart.CustomerID))
	}
	i.Logger.Info("SESSION", fmt.Sprintf("session %s now uses cart %d", sessionID, cart.ID))
	return warnings, nil
}
