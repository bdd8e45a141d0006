// Package report renders tables into export formats through a renderer
// registry, so new formats plug in without touching the handlers.
package report

import (
	"fmt"

	"github.com/serisow/datalens/tabular"
)

// Renderer serializes a table into one export format.
type Renderer interface {
	Render(t *tabular.Table) ([]byte, error)
	ContentType() string
	FileExtension() string
}

type Registry struct {
	renderers map[string]Renderer
}

func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register adds a renderer under a format name, replacing any previous one.
func (r *Registry) Register(format string, renderer Renderer) {
	r.renderers[format] = renderer
}

// Get returns the renderer for a format.
func (r *Registry) Get(format string) (Renderer, error) {
	renderer, ok := r.renderers[format]
	if !ok {
		return nil, fmt.Errorf("unknown export format: %s", format)
	}
	return renderer, nil
}

// Formats lists the registered format names.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		formats = append(formats, name)
	}
	return formats
}

// DefaultRegistry wires up the built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("csv", &CSVRenderer{})
	r.Register("json", &JSONRenderer{})
	return r
}
