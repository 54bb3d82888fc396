package core

import (
	"fmt"
	"unicode/utf8"
)

// MaxCopies bounds the labels rendered for one job.
const MaxCopies = 1000

const (
	maxProductNameLen     = 20
	defaultProductName    = "PRODUCT"
	defaultCurrencySymbol = "$"
)

var jobFields = []string{"product_name", "default_code", "barcode", "price", "currency_symbol"}

func isJobField(name string) bool {
	for _, f := range jobFields {
		if f == name {
			return true
		}
	}
	return false
}

// JobFields derives the template fields of a job.
func JobFields(job Job) map[string]any {
	name := job.ProductName
	if name == "" {
		name = defaultProductName
	}
	if utf8.RuneCountInString(name) > maxProductNameLen {
		name = string([]rune(name)[:maxProductNameLen])
	}

	price := 0.0
	switch {
	case job.CalculatedPrice != nil:
		price = *job.CalculatedPrice
	case job.ListPrice != nil:
		price = *job.ListPrice
	}

	currency := job.CurrencySymbol
	if currency == "" {
		currency = defaultCurrencySymbol
	}

	return map[string]any{
		"product_name":    name,
		"default_code":    job.DefaultCode,
		"barcode":         job.Barcode,
		"price":           price,
		"currency_symbol": currency,
	}
}

// Renderer turns jobs into printer commands using one template set.
type Renderer struct {
	templates *TemplateSet
}

func NewRenderer(templates *TemplateSet) *Renderer {
	return &Renderer{templates: templates}
}

// Render produces one identical command per requested copy. It returns
// either every copy or none.
func (r *Renderer) Render(job Job, templateName string) ([]string, error) {
	if r.templates.Len() == 0 {
		return nil, ErrEmptyTemplateStore
	}
	tmpl, ok := r.templates.Get(templateName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTemplateNotFound, templateName)
	}

	copies := job.Copies()
	if copies > MaxCopies {
		return nil, fmt.Errorf("%w: %d requested, limit %d", ErrQuantityTooLarge, copies, MaxCopies)
	}

	command, err := renderOne(tmpl, JobFields(job))
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", templateName, err)
	}

	commands := make([]string, copies)
	for i := range commands {
		commands[i] = command
	}
	return commands, nil
}

func renderOne(tmpl Template, fields map[string]any) (string, error) {
	if tmpl.Schema == nil {
		return formatBody(tmpl.Body, fields)
	}
	values := make(map[string]string, len(fields))
	for k, v := range fields {
		s, err := formatValue(v, "")
		if err != nil {
			return "", err
		}
		values[k] = s
	}
	return generateTSPL(tmpl.Schema, values)
}
