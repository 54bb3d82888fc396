package core

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Template is a named printer-command pattern. Exactly one of Body and
// Schema is set.
type Template struct {
	Name   string
	Label  string
	Body   string
	Schema *LabelSchema
}

// templateFile is the on-disk entry. The legacy ZPL file keys the display
// label as "name" and the body as "template".
type templateFile struct {
	Name     string       `yaml:"name"`
	Label    string       `yaml:"label"`
	Template string       `yaml:"template"`
	Body     string       `yaml:"body"`
	Schema   *LabelSchema `yaml:"schema"`
}

// TemplateSet is an immutable collection of templates keyed by name.
type TemplateSet struct {
	templates map[string]Template
}

func NewTemplateSet(templates ...Template) *TemplateSet {
	s := &TemplateSet{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if t.Schema != nil && t.Schema.DPI == 0 {
			schema := *t.Schema
			schema.DPI = 203
			t.Schema = &schema
		}
		s.templates[t.Name] = t
	}
	return s
}

// LoadTemplates reads a YAML or JSON template file. A missing file yields an
// empty set so that the relay still starts and reports the problem per job.
func LoadTemplates(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewTemplateSet(), nil
		}
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}
	return ParseTemplates(data)
}

func ParseTemplates(data []byte) (*TemplateSet, error) {
	var entries map[string]templateFile
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	templates := make([]Template, 0, len(entries))
	for name, e := range entries {
		t := Template{Name: name, Label: e.Label, Body: e.Body, Schema: e.Schema}
		if t.Label == "" {
			t.Label = e.Name
		}
		if t.Label == "" {
			t.Label = name
		}
		if t.Body == "" {
			t.Body = e.Template
		}
		if t.Body == "" && t.Schema == nil {
			return nil, fmt.Errorf("template %q: needs a template body or a schema", name)
		}
		if t.Body != "" && t.Schema != nil {
			return nil, fmt.Errorf("template %q: body and schema are mutually exclusive", name)
		}
		templates = append(templates, t)
	}
	return NewTemplateSet(templates...), nil
}

func (s *TemplateSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.templates)
}

func (s *TemplateSet) Get(name string) (Template, bool) {
	if s == nil {
		return Template{}, false
	}
	t, ok := s.templates[name]
	return t, ok
}

func (s *TemplateSet) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Labels maps template names to their display labels.
func (s *TemplateSet) Labels() map[string]string {
	labels := make(map[string]string, s.Len())
	for _, name := range s.Names() {
		labels[name] = s.templates[name].Label
	}
	return labels
}

// Check returns one error per template that can never render, keyed by
// template name.
func (s *TemplateSet) Check() map[string]error {
	problems := make(map[string]error)
	for _, name := range s.Names() {
		t := s.templates[name]
		var refs []string
		var err error
		if t.Schema != nil {
			refs = t.Schema.referencedFields()
		} else {
			refs, err = bodyFields(t.Body)
		}
		if err != nil {
			problems[name] = err
			continue
		}
		for _, ref := range refs {
			if !isJobField(ref) {
				problems[name] = fmt.Errorf("%w: %q", ErrTemplateFieldMissing, ref)
				break
			}
		}
	}
	return problems
}
