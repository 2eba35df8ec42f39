package notification

import (
	"context"
	"fmt"
	"io"
	"time"

	"ms-preorder/internal/config"

	"gopkg.in/mail.v2"
)

// Inline is an image referenced from the HTML body as cid:<Name>.
type Inline struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is one outgoing email.
type Message struct {
	From    config.Identity
	To      []string
	Bcc     []string
	Subject string
	HTML    string
	Inline  []Inline
}

type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPTransport delivers through an SMTP relay. Every send is bounded by Timeout.
type SMTPTransport struct {
	Dialer  *mail.Dialer
	Timeout time.Duration
}

func NewSMTPTransport(cfg config.EmailConfig) *SMTPTransport {
	d := mail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	return &SMTPTransport{Dialer: d, Timeout: cfg.Timeout}
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	m := buildMessage(msg)

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- t.Dialer.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp send to %v: %w", msg.To, ctx.Err())
	}
}

func buildMessage(msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetAddressHeader("From", msg.From.Email, msg.From.Name)
	m.SetHeader("To", msg.To...)
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", msg.Bcc...)
	}
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	for _, img := range msg.Inline {
		data := img.Data
		settings := []mail.FileSetting{
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if img.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{"Content-Type": {img.ContentType}}))
		}
		m.Embed(img.Name, settings...)
	}
	return m
}
