// Package notification emails pre-order resume links.
package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"ms-preorder/internal/apperr"
	"ms-preorder/internal/config"
	"ms-preorder/internal/logger"
	"ms-preorder/internal/models"

	"github.com/skip2/go-qrcode"
)

const (
	ResumePath  = "/preorder/quote"
	qrImageName = "preorder-qr.png"
)

type StoreSettings interface {
	For(storeID int64) config.Store
}

type Dispatcher struct {
	Stores    StoreSettings
	Transport Transport
	Templates *Templates
	PublicURL string
	Logger    *logger.Logger
}

func NewDispatcher(stores StoreSettings, transport Transport, templates *Templates, publicURL string, log *logger.Logger) *Dispatcher {
	if templates == nil {
		templates = DefaultTemplates()
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &Dispatcher{Stores: stores, Transport: transport, Templates: templates, PublicURL: publicURL, Logger: log}
}

// ResumeURL builds the link a customer follows to load the quote.
func ResumeURL(base, hash, tracking string) string {
	q := url.Values{}
	q.Set("hash", hash)
	if tracking != "" {
		q.Set("tracking", tracking)
	}
	return strings.TrimRight(base, "/") + ResumePath + "?" + q.Encode()
}

// Send emails the resume link for hash to the cart's customer, then to the
// configured copy recipients. Only a failed primary delivery is returned.
func (d *Dispatcher) Send(ctx context.Context, cart *models.Cart, hash, tracking string) error {
	store := d.Stores.For(cart.StoreID)
	if !store.EmailEnabled {
		d.Logger.Info("MAIL", fmt.Sprintf("email disabled for store %d, quote %d not sent", cart.StoreID, cart.ID))
		return nil
	}
	if store.TemplateID == "" {
		return apperr.Validation("email.template", "no email template configured for the store")
	}
	if !d.Templates.Has(store.TemplateID) {
		return apperr.Validation("email.template", fmt.Sprintf("email template %q does not exist", store.TemplateID))
	}
	if store.Sender.Email == "" {
		return apperr.Validation("email.identity", "no sender identity configured for the store")
	}
	if strings.TrimSpace(cart.CustomerEmail) == "" {
		return apperr.Validation("customer_email", fmt.Sprintf("quote %d has no customer email", cart.ID))
	}

	base := store.BaseURL
	if base == "" {
		base = d.PublicURL
	}
	link := ResumeURL(base, hash, tracking)

	vars := buildVars(cart, link, tracking)
	var inline []Inline
	if png, err := qrcode.Encode(link, qrcode.Medium, 256); err != nil {
		d.Logger.Warn("MAIL", fmt.Sprintf("qr code for quote %d skipped: %v", cart.ID, err))
	} else {
		vars.QRCode = qrImageName
		inline = append(inline, Inline{Name: qrImageName, ContentType: "image/png", Data: png})
	}

	subject, body, err := d.Templates.Render(store.TemplateID, vars)
	if err != nil {
		return apperr.Validation("email.template", err.Error())
	}

	primary := Message{
		From:    store.Sender,
		To:      []string{cart.CustomerEmail},
		Subject: subject,
		HTML:    body,
		Inline:  inline,
	}
	if err := d.Transport.Send(ctx, primary); err != nil {
		d.Logger.Error("MAIL", fmt.Sprintf("quote %d to %s failed: %v", cart.ID, cart.CustomerEmail, err))
		return &apperr.DeliveryError{Recipient: cart.CustomerEmail, Primary: true, Err: err}
	}
	d.Logger.Info("MAIL", fmt.Sprintf("quote %d sent to %s", cart.ID, cart.CustomerEmail))

	d.sendCopies(ctx, store, primary)
	return nil
}

// sendCopies delivers the copy recipients. In bcc mode one message goes to
// the first address with the rest blind copied; otherwise one message each.
func (d *Dispatcher) sendCopies(ctx context.Context, store config.Store, primary Message) {
	copies := make([]string, 0, len(store.CopyTo))
	for _, addr := range store.CopyTo {
		if addr = strings.TrimSpace(addr); addr != "" {
			copies = append(copies, addr)
		}
	}
	if len(copies) == 0 {
		return
	}

	if store.CopyMethod == config.CopyMethodBcc {
		msg := primary
		msg.To = copies[:1]
		msg.Bcc = copies[1:]
		if err := d.Transport.Send(ctx, msg); err != nil {
			d.logCopyFailure(copies[0], err)
		}
		return
	}

	for _, addr := range copies {
		msg := primary
		msg.To = []string{addr}
		if err := d.Transport.Send(ctx, msg); err != nil {
			d.logCopyFailure(addr, err)
		}
	}
}

func (d *Dispatcher) logCopyFailure(addr string, err error) {
	derr := &apperr.DeliveryError{Recipient: addr, Err: err}
	d.Logger.Warn("MAIL", derr.Error())
}
