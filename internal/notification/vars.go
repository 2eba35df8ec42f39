package notification

import (
	"fmt"
	"strings"
	"time"

	"ms-preorder/internal/models"
)

// TemplateVars is everything a pre-order email template can reference.
type TemplateVars struct {
	QuoteID                  int64
	QuoteUpdatedAt           string
	QuoteComment             string
	CustomerName             string
	QuoteBillingAddress      []string
	QuoteShippingAddress     []string
	QuoteIsNotVirtual        bool
	QuoteShippingMethod      string
	QuoteShippingDescription string
	PaymentURL               string
	Tracking                 string
	Items                    []ItemLine
	Totals                   TotalsView
	// QRCode is the content id of the inline QR image, empty when there is none.
	QRCode string
}

type ItemLine struct {
	Name     string
	SKU      string
	Qty      string
	RowTotal string
}

type TotalsView struct {
	Subtotal    string
	Shipping    string
	Tax         string
	Discount    string
	GrandTotal  string
	HasDiscount bool
}

func buildVars(cart *models.Cart, paymentURL, tracking string) TemplateVars {
	vars := TemplateVars{
		QuoteID:           cart.ID,
		QuoteUpdatedAt:    formatTime(cart.UpdatedAt),
		CustomerName:      customerName(cart),
		QuoteIsNotVirtual: !cart.IsVirtual,
		PaymentURL:        paymentURL,
		Tracking:          tracking,
		Totals: TotalsView{
			Subtotal:    money(cart.Subtotal, cart.Currency),
			Shipping:    money(cart.ShippingAmount, cart.Currency),
			Tax:         money(cart.TaxAmount, cart.Currency),
			Discount:    money(cart.DiscountAmount, cart.Currency),
			GrandTotal:  money(cart.GrandTotal, cart.Currency),
			HasDiscount: cart.DiscountAmount > 0,
		},
	}
	if cart.CustomerNoteNotify {
		vars.QuoteComment = cart.CustomerNote
	}
	if b := cart.BillingAddress(); b != nil {
		vars.QuoteBillingAddress = formatAddress(b)
	}
	if s := cart.ShippingAddress(); s != nil {
		vars.QuoteShippingAddress = formatAddress(s)
		vars.QuoteShippingMethod = s.ShippingMethod
		vars.QuoteShippingDescription = s.ShippingDescription
	}
	for _, it := range cart.VisibleItems() {
		vars.Items = append(vars.Items, ItemLine{
			Name:     it.Name,
			SKU:      it.SKU,
			Qty:      strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.4f", it.Qty), "0"), "."),
			RowTotal: money(it.RowTotal, cart.Currency),
		})
	}
	return vars
}

func customerName(cart *models.Cart) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{cart.CustomerFirstname, cart.CustomerMiddlename, cart.CustomerLastname} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "Customer"
	}
	return strings.Join(parts, " ")
}

// formatAddress renders an address as display lines, skipping empty parts.
func formatAddress(a *models.CartAddress) []string {
	var lines []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			lines = append(lines, s)
		}
	}
	add(strings.TrimSpace(a.Firstname + " " + a.Lastname))
	add(a.Company)
	add(a.Street)
	cityLine := strings.TrimSpace(strings.Join(nonEmpty(a.City, a.Region, a.Postcode), ", "))
	add(cityLine)
	add(a.CountryID)
	if a.Telephone != "" {
		add("T: " + a.Telephone)
	}
	return lines
}

func nonEmpty(values ...string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func money(v float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", v)
	}
	return fmt.Sprintf("%.2f %s", v, currency)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 15:04")
}
