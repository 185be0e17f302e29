package notification

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"learnhub.io/notifier/internal/domain"
	apperrors "learnhub.io/notifier/internal/pkg/errors"
)

//go:embed templates.yaml
var defaultCatalogYAML []byte

// Template is the default wording for one notification type.
type Template struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// Catalog maps every notification type to its default wording.
type Catalog struct {
	templates map[domain.NotificationType]Template
}

// DefaultCatalog loads the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalogYAML)
}

// LoadCatalog parses a YAML catalog. Every type must be present and every
// template must parse.
func LoadCatalog(data []byte) (*Catalog, error) {
	raw := make(map[string]Template)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}

	c := &Catalog{templates: make(map[domain.NotificationType]Template, len(raw))}
	for key, tpl := range raw {
		t, err := domain.ParseNotificationType(key)
		if err != nil {
			return nil, fmt.Errorf("template catalog: %w", err)
		}
		for name, src := range map[string]string{"title": tpl.Title, "message": tpl.Message} {
			if strings.TrimSpace(src) == "" {
				return nil, fmt.Errorf("template catalog: %s has empty %s", key, name)
			}
			if _, err := template.New(name).Parse(src); err != nil {
				return nil, fmt.Errorf("template catalog: %s %s: %w", key, name, err)
			}
		}
		c.templates[t] = tpl
	}
	for _, t := range domain.AllNotificationTypes() {
		if _, ok := c.templates[t]; !ok {
			return nil, fmt.Errorf("template catalog: missing %s", t)
		}
	}
	return c, nil
}

// Lookup returns the template for t.
func (c *Catalog) Lookup(t domain.NotificationType) (Template, bool) {
	tpl, ok := c.templates[t]
	return tpl, ok
}

// eventText returns literal as given, or renders src when literal is empty.
// Caller-supplied text is never parsed as a template.
func eventText(name, literal, src string, data map[string]any) (string, error) {
	if text := strings.TrimSpace(literal); text != "" {
		return text, nil
	}
	return render(name, src, data)
}

func render(name, src string, data map[string]any) (string, error) {
	tpl, err := template.New(name).Option("missingkey=error").Parse(src)
	if err != nil {
		return "", apperrors.BadRequest(apperrors.CodeTemplateFailed, "invalid "+name+" template").
			WithParams(map[string]interface{}{"error": err.Error()})
	}
	if data == nil {
		data = map[string]any{}
	}
	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", apperrors.BadRequest(apperrors.CodeTemplateFailed, "cannot render "+name).
			WithParams(map[string]interface{}{"error": err.Error()})
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", apperrors.BadRequest(apperrors.CodeTemplateFailed, name+" rendered empty")
	}
	return out, nil
}
