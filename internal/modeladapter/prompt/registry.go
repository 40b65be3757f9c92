// Package prompt loads the immutable prompt template registry the Model
// Adapter selects from by (language, mode): templates are values on disk,
// not code, so changing wording never requires a rebuild.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template is one prompt definition. Version feeds the request fingerprint
// so a wording change invalidates any memoized response keyed on it.
type Template struct {
	Language string `yaml:"language"`
	Mode     string `yaml:"mode"`
	Version  string `yaml:"version"`
	Body     string `yaml:"body"`
}

// Registry is an immutable, in-memory index of templates keyed by
// (language, mode).
type Registry struct {
	templates map[key]Template
}

type key struct {
	language string
	mode     string
}

// Load reads every *.yaml file in dir and builds a Registry. Each file is a
// single Template document.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt: read registry dir: %w", err)
	}

	templates := make(map[key]Template)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name())) // #nosec G304 - registry dir is operator-controlled config
		if err != nil {
			return nil, fmt.Errorf("prompt: read %s: %w", entry.Name(), err)
		}
		var tmpl Template
		if err := yaml.Unmarshal(data, &tmpl); err != nil {
			return nil, fmt.Errorf("prompt: parse %s: %w", entry.Name(), err)
		}
		if tmpl.Language == "" || tmpl.Mode == "" || tmpl.Version == "" {
			return nil, fmt.Errorf("prompt: %s: language, mode, and version are required", entry.Name())
		}
		templates[key{tmpl.Language, tmpl.Mode}] = tmpl
	}

	return &Registry{templates: templates}, nil
}

// NewFromTemplates builds a Registry directly from a slice, for embedding
// defaults or for tests without a filesystem fixture.
func NewFromTemplates(templates []Template) *Registry {
	m := make(map[key]Template, len(templates))
	for _, tmpl := range templates {
		m[key{tmpl.Language, tmpl.Mode}] = tmpl
	}
	return &Registry{templates: m}
}

// Lookup returns the template for (language, mode), if any.
func (r *Registry) Lookup(language, mode string) (Template, bool) {
	tmpl, ok := r.templates[key{language, mode}]
	return tmpl, ok
}
