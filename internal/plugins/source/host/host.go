// Package host implements the grammar for JSON host descriptions. A host
// may name an iptables file that is overlaid on it during conversion.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

var (
	_ vendor.Configuration = (*Configuration)(nil)
	_ vendor.OverlayHost   = (*Configuration)(nil)
)

// Grammar parses host JSON files.
type Grammar struct{}

func New() *Grammar { return &Grammar{} }

func (g *Grammar) Name() string { return "host" }

func (g *Grammar) Formats() []format.Format { return []format.Format{format.Host} }

// File is the on-disk shape of a host description.
type File struct {
	Hostname       string                   `json:"hostname"`
	IptablesFile   string                   `json:"iptablesFile,omitempty"`
	HostInterfaces map[string]InterfaceFile `json:"hostInterfaces"`
}

type InterfaceFile struct {
	Name     string `json:"name"`
	Prefix   string `json:"prefix,omitempty"`
	Gateway  string `json:"gateway,omitempty"`
	Shutdown bool   `json:"shutdown,omitempty"`
}

var knownFields = map[string]bool{"hostname": true, "iptablesFile": true, "hostInterfaces": true}

// Tree is the decoded file plus the top-level keys that were present.
type Tree struct {
	File   File
	Fields []string
	text   string
}

func (t *Tree) String() string {
	b, err := json.MarshalIndent(t.File, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}

func (t *Tree) SilentSyntax() []plugins.SilentLine { return nil }

func (g *Grammar) Parse(ctx context.Context, in *plugins.Input) (plugins.ParseTree, error) {
	t := &Tree{text: in.Text}
	if err := json.Unmarshal([]byte(in.Text), &t.File); err != nil {
		return nil, jsonError(in.Text, err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(in.Text), &raw); err != nil {
		return nil, jsonError(in.Text, err)
	}
	t.Fields = slices.Sorted(maps.Keys(raw))
	return t, nil
}

// jsonError locates a decoding error in text when the decoder reports an
// offset.
func jsonError(text string, err error) error {
	var offset int64 = -1
	var se *json.SyntaxError
	var te *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se):
		offset = se.Offset
	case errors.As(err, &te):
		offset = te.Offset
	}
	ee := &plugins.ExtractError{Context: "json", Msg: "invalid host file", Cause: err}
	if offset >= 0 && offset <= int64(len(text)) {
		ee.Line = strings.Count(text[:offset], "\n") + 1
	}
	return ee
}

// lineOf returns the first line containing s, or 0.
func lineOf(text, s string) int {
	i := strings.Index(text, s)
	if i < 0 {
		return 0
	}
	return strings.Count(text[:i], "\n") + 1
}

func (g *Grammar) Extract(ctx context.Context, pt plugins.ParseTree, in *plugins.Input) (vendor.Configuration, error) {
	t, ok := pt.(*Tree)
	if !ok {
		return nil, fmt.Errorf("host: unexpected parse tree %T", pt)
	}
	w := in.Warnings
	if w == nil {
		w = warnings.New(nil, warnings.DefaultSettings())
	}
	c := &Configuration{Interfaces: make(map[string]*Interface)}
	c.SetWarnings(w)
	c.SetHostname(t.File.Hostname)
	c.SetOverlayFile(t.File.IptablesFile)
	for _, f := range t.Fields {
		if !knownFields[f] {
			w.Unimplemented("host field %q is not modeled", f)
		}
	}

	for _, key := range slices.Sorted(maps.Keys(t.File.HostInterfaces)) {
		fi := t.File.HostInterfaces[key]
		if fi.Name != "" && fi.Name != key {
			w.RedFlag("host interface %q declares name %q, using %q", key, fi.Name, key)
		}
		i := &Interface{Name: key, Shutdown: fi.Shutdown}
		if fi.Prefix != "" {
			p, err := netip.ParsePrefix(fi.Prefix)
			if err != nil {
				return nil, &plugins.ExtractError{
					Line:    lineOf(t.text, `"`+fi.Prefix+`"`),
					Text:    fi.Prefix,
					Context: "hostInterfaces",
					Msg:     fmt.Sprintf("interface %s: invalid prefix", key),
					Cause:   err,
				}
			}
			i.Prefix = p
		}
		if fi.Gateway != "" {
			a, err := netip.ParseAddr(fi.Gateway)
			if err != nil {
				return nil, &plugins.ExtractError{
					Line:    lineOf(t.text, `"`+fi.Gateway+`"`),
					Text:    fi.Gateway,
					Context: "hostInterfaces",
					Msg:     fmt.Sprintf("interface %s: invalid gateway", key),
					Cause:   err,
				}
			}
			i.Gateway = a
		}
		c.Interfaces[key] = i
		c.Structures().Define("host interface", key, lineOf(t.text, `"`+key+`"`))
	}
	return c, nil
}

// Configuration is the IR of a host.
type Configuration struct {
	vendor.Base

	Interfaces map[string]*Interface
}

// Interface is a host interface. Zero values mean "not set".
type Interface struct {
	Name     string
	Prefix   netip.Prefix
	Gateway  netip.Addr
	Shutdown bool
}

// SupportsOverlay reports true: hosts accept iptables overlays.
func (c *Configuration) SupportsOverlay() bool { return true }

// ToVendorIndependentConfigurations converts the host into a node that
// permits everything until an overlay installs filters. A gateway becomes
// the default route.
func (c *Configuration) ToVendorIndependentConfigurations(ctx context.Context, cc *vendor.ConversionContext, rd *vendor.RuntimeData) ([]*model.Configuration, error) {
	w := c.Warnings()
	node := model.NewConfiguration(c.Hostname(), c.Format())
	node.SourceFile = c.Filename()
	node.DefaultCrossZoneAction = model.ActionPtr(model.Permit)
	node.DefaultInboundAction = model.ActionPtr(model.Permit)

	vrf, _ := node.Vrfs.Get(model.DefaultVrf)
	for _, name := range slices.Sorted(maps.Keys(c.Interfaces)) {
		i := c.Interfaces[name]
		mi := model.NewInterface(name)
		mi.Active = !i.Shutdown
		if i.Prefix.IsValid() {
			mi.Addresses = []netip.Prefix{i.Prefix}
		}
		node.Interfaces.Put(name, mi)

		if !i.Gateway.IsValid() {
			continue
		}
		if len(vrf.StaticRoutes) > 0 {
			w.RedFlag("host %s: gateway %s on %s ignored, default route already set", c.Hostname(), i.Gateway, name)
			continue
		}
		vrf.StaticRoutes = append(vrf.StaticRoutes, model.StaticRoute{
			Prefix:  netip.MustParsePrefix("0.0.0.0/0"),
			NextHop: i.Gateway.String(),
		})
	}

	vendor.ApplyEnvironment(node, cc, rd, w)
	return []*model.Configuration{node}, nil
}
