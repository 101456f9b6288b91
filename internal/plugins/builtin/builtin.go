// Package builtin wires the grammars shipped with the module into a
// registry.
package builtin

import (
	"fmt"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/plugins/source/host"
	"github.com/batfish/batfish-sub054/internal/plugins/source/ios"
	"github.com/batfish/batfish-sub054/internal/plugins/source/iptables"
	"github.com/batfish/batfish-sub054/internal/plugins/source/junos"
)

// Grammars returns a fresh instance of every built-in grammar.
func Grammars() []plugins.Grammar {
	return []plugins.Grammar{
		ios.New(),
		junos.New(),
		iptables.New(),
		host.New(),
	}
}

// Register adds every built-in grammar to r.
func Register(r *plugins.Registry) error {
	for _, g := range Grammars() {
		if err := r.Register(g); err != nil {
			return fmt.Errorf("register %s: %w", g.Name(), err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in grammars.
func NewRegistry() (*plugins.Registry, error) {
	r := plugins.NewRegistry()
	if err := Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// Unhandled returns the supported formats that reach no grammar, either
// directly or after flattening.
func Unhandled(r *plugins.Registry) []format.Format {
	var out []format.Format
	for _, f := range format.Supported() {
		target := f
		if flat, ok := format.FlattenedAs(f); ok {
			target = flat
		}
		if len(r.Missing([]format.Format{target})) > 0 {
			out = append(out, f)
		}
	}
	return out
}
