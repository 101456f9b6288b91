package plugins

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/batfish/batfish-sub054/internal/format"
)

// ErrNoPlugin is returned by Lookup when no grammar handles a format.
var ErrNoPlugin = errors.New("no grammar registered")

// Registry maps each supported format to the grammar that parses it.
type Registry struct {
	mu       sync.RWMutex
	grammars map[format.Format]Grammar
}

// NewRegistry creates an empty grammar registry.
func NewRegistry() *Registry {
	return &Registry{grammars: make(map[format.Format]Grammar)}
}

// Register binds g to every format it declares. Sentinels, unimplemented
// formats and formats already bound are rejected; on error nothing is bound.
func (r *Registry) Register(g Grammar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	formats := g.Formats()
	if len(formats) == 0 {
		return fmt.Errorf("grammar %s declares no formats", g.Name())
	}
	for _, f := range formats {
		switch {
		case format.IsSentinel(f):
			return fmt.Errorf("grammar %s: cannot register sentinel format %s", g.Name(), f)
		case format.IsUnimplemented(f):
			return fmt.Errorf("grammar %s: format %s is not implemented", g.Name(), f)
		case !format.IsSupported(f):
			return fmt.Errorf("grammar %s: unknown format %q", g.Name(), f)
		}
		if prev, ok := r.grammars[f]; ok {
			return fmt.Errorf("grammar %s: format %s already handled by %s", g.Name(), f, prev.Name())
		}
	}
	for _, f := range formats {
		r.grammars[f] = g
	}
	return nil
}

// Lookup returns the grammar for f.
func (r *Registry) Lookup(f format.Format) (Grammar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[f]
	if !ok {
		return nil, fmt.Errorf("%w for format %s", ErrNoPlugin, f)
	}
	return g, nil
}

// Formats returns the registered formats, sorted.
func (r *Registry) Formats() []format.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]format.Format, 0, len(r.grammars))
	for f := range r.grammars {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Missing returns the formats in want that have no grammar.
func (r *Registry) Missing(want []format.Format) []format.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var missing []format.Format
	for _, f := range want {
		if _, ok := r.grammars[f]; !ok {
			missing = append(missing, f)
		}
	}
	return missing
}
