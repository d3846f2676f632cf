// Package citetemplates maps citation-template names to the parameter
// names used for URLs, archive URLs, archive dates and dead-link flags.
// Lookups are keyed by normalized template name and return a tagged
// result: unknown templates surface ErrUnknownTemplate instead of a
// partially-populated mapping.
package citetemplates

import (
	"errors"
	"strings"
	"sync"
)

// ErrUnknownTemplate is returned when a template name has no registered
// parameter mapping. Callers must not treat this as "no match": a write
// step hitting it fails that source's rewrite explicitly.
var ErrUnknownTemplate = errors.New("unknown citation template")

// Template describes the parameter layout of one citation template.
// DeadParam is empty when the template has no dead-link parameter.
type Template struct {
	Name             string
	URLParam         string
	URLParamAliases  []string
	ArchiveURLParam  string
	ArchiveDateParam string
	DeadParam        string
	DeadParamAliases []string
}

// Registry holds citation template mappings keyed by normalized name.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
}

// NewRegistry creates a registry seeded with the default template set.
func NewRegistry() *Registry {
	r := &Registry{
		templates: make(map[string]Template),
	}

	r.Register(Template{
		Name:             "cite web",
		URLParam:         "url",
		URLParamAliases:  []string{"url", "ссылка"},
		ArchiveURLParam:  "archive-url",
		ArchiveDateParam: "archive-date",
		DeadParam:        "deadlink",
		DeadParamAliases: []string{"мёртвая ссылка", "deadlink", "deadurl", "dead-url"},
	})

	return r
}

// Register adds or replaces a template mapping.
func (r *Registry) Register(tpl Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[normalize(tpl.Name)] = tpl
}

// Resolve returns the parameter mapping for the given template name.
// Matching is case-insensitive and ignores surrounding whitespace.
// Returns ErrUnknownTemplate if the name has no registered mapping.
func (r *Registry) Resolve(name string) (Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tpl, ok := r.templates[normalize(name)]
	if !ok {
		return Template{}, ErrUnknownTemplate
	}
	return tpl, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
