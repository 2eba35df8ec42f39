package notification

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates holds the email templates known by id. Each id defines
// "<id>.subject" and "<id>.body".
type Templates struct {
	set *template.Template
}

// DefaultTemplates parses the templates shipped with the service.
func DefaultTemplates() *Templates {
	return &Templates{set: template.Must(template.New("mail").ParseFS(templateFS, "templates/*.html"))}
}

// ParseTemplates adds extra template sources on top of the shipped ones.
func ParseTemplates(sources ...string) (*Templates, error) {
	set := DefaultTemplates().set
	for i, src := range sources {
		if _, err := set.New(fmt.Sprintf("extra-%d", i)).Parse(src); err != nil {
			return nil, fmt.Errorf("parse template source %d: %w", i, err)
		}
	}
	return &Templates{set: set}, nil
}

func (t *Templates) Has(id string) bool {
	return t.set.Lookup(id+".subject") != nil && t.set.Lookup(id+".body") != nil
}

// Render returns the subject as plain text and the body as HTML.
func (t *Templates) Render(id string, vars TemplateVars) (string, string, error) {
	if !t.Has(id) {
		return "", "", fmt.Errorf("email template %q is not defined", id)
	}
	var subject, body bytes.Buffer
	if err := t.set.ExecuteTemplate(&subject, id+".subject", vars); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", id, err)
	}
	if err := t.set.ExecuteTemplate(&body, id+".body", vars); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", id, err)
	}
	return strings.TrimSpace(html.UnescapeString(subject.String())), body.String(), nil
}
