package notify

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Data is what a template can reference.
type Data struct {
	SubmissionID  string
	Comment       string
	Count         int
	RecipientName string
}

type templateSource struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
}

type compiled struct {
	subject *template.Template
	body    *template.Template
}

// Templates renders notifications by name.
type Templates struct {
	byName map[string]compiled
}

// DefaultTemplates returns the built-in message set.
func DefaultTemplates() (*Templates, error) {
	return ParseTemplates(defaultTemplates)
}

// LoadTemplates reads a YAML template file. Names missing from the file
// fall back to the built-in set. An empty path yields the built-in set.
func LoadTemplates(path string) (*Templates, error) {
	base, err := DefaultTemplates()
	if err != nil {
		return nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	override, err := ParseTemplates(raw)
	if err != nil {
		return nil, err
	}
	for name, t := range override.byName {
		base.byName[name] = t
	}
	return base, nil
}

// ParseTemplates compiles a YAML document mapping names to subject/body.
func ParseTemplates(raw []byte) (*Templates, error) {
	var src map[string]templateSource
	if err := yaml.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	out := &Templates{byName: make(map[string]compiled, len(src))}
	for name, s := range src {
		if strings.TrimSpace(s.Subject) == "" {
			return nil, fmt.Errorf("template %s: subject is required", name)
		}
		subject, err := template.New(name + ".subject").Option("missingkey=error").Parse(s.Subject)
		if err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		body, err := template.New(name + ".body").Option("missingkey=error").Parse(s.Body)
		if err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		out.byName[name] = compiled{subject: subject, body: body}
	}
	return out, nil
}

// Has reports whether name is known.
func (t *Templates) Has(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Render returns the subject and body for name.
func (t *Templates) Render(name string, data Data) (string, string, error) {
	c, ok := t.byName[name]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", name)
	}
	var subject, body strings.Builder
	if err := c.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := c.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), strings.TrimSpace(body.String()), nil
}
