package iptables

import (
	"context"
	"errors"
	"maps"
	"net/netip"
	"slices"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// ErrOverlayOnly is returned when an iptables configuration is converted
// on its own.
var ErrOverlayOnly = errors.New("iptables configurations are only applied as overlays")

var (
	_ vendor.Configuration = (*Configuration)(nil)
	_ vendor.Overlay       = (*Configuration)(nil)
)

// Configuration is the IR of an iptables-save file.
type Configuration struct {
	vendor.Base

	Tables map[string]*Table
}

func NewConfiguration() *Configuration {
	return &Configuration{Tables: make(map[string]*Table)}
}

type Table struct {
	Name   string
	Chains map[string]*Chain
}

// Chain is a rule list. Built-in chains carry a default policy; user
// chains leave it empty.
type Chain struct {
	Name   string
	Policy model.LineAction
	Rules  []Rule
}

// Rule is one modeled rule. A zero prefix matches any address.
type Rule struct {
	Line         int
	Text         string
	Protocol     string
	Src          netip.Prefix
	Dst          netip.Prefix
	DstPorts     string
	InInterface  string
	OutInterface string
	Action       model.LineAction
}

func (c *Configuration) table(name string) *Table {
	t, ok := c.Tables[name]
	if !ok {
		t = &Table{Name: name, Chains: make(map[string]*Chain)}
		c.Tables[name] = t
	}
	return t
}

func (t *Table) chain(name string) *Chain {
	ch, ok := t.Chains[name]
	if !ok {
		ch = &Chain{Name: name}
		t.Chains[name] = ch
	}
	return ch
}

// AclName is the name under which a chain of a table is installed.
func AclName(table, chain string) string { return table + "::" + chain }

// ToVendorIndependentConfigurations always fails: an iptables file
// describes a host's packet filter, not a node.
func (c *Configuration) ToVendorIndependentConfigurations(ctx context.Context, cc *vendor.ConversionContext, rd *vendor.RuntimeData) ([]*model.Configuration, error) {
	return nil, ErrOverlayOnly
}

// AddAsAccessLists installs every chain of the filter table as an ACL
// named "filter::<chain>".
func (c *Configuration) AddAsAccessLists(node *model.Configuration, w *warnings.Warnings) error {
	filter, ok := c.Tables["filter"]
	if !ok {
		w.RedFlag("iptables overlay %s has no filter table", c.Filename())
		return nil
	}
	for _, name := range slices.Sorted(maps.Keys(filter.Chains)) {
		ch := filter.Chains[name]
		aclName := AclName(filter.Name, name)
		acl := &model.IpAccessList{Name: aclName}
		for _, r := range ch.Rules {
			if r.InInterface != "" || r.OutInterface != "" {
				w.Unimplemented("iptables rule %q: interface matches are not modeled", r.Text)
			}
			acl.Lines = append(acl.Lines, model.AclLine{
				Name:     r.Text,
				Action:   r.Action,
				Protocol: r.Protocol,
				Src:      space(r.Src),
				Dst:      space(r.Dst),
				DstPorts: r.DstPorts,
			})
		}
		if builtinChains[name] && ch.Policy != "" {
			acl.Lines = append(acl.Lines, model.AclLine{Name: "default policy", Action: ch.Policy})
		}
		if node.IpAccessLists.Has(aclName) {
			w.RedFlag("iptables chain %s replaces an existing ACL of the same name", aclName)
		}
		node.IpAccessLists.Put(aclName, acl)
	}
	return nil
}

// ApplyAsOverlay attaches the INPUT, OUTPUT and FORWARD chains to every
// interface of node.
func (c *Configuration) ApplyAsOverlay(node *model.Configuration, w *warnings.Warnings) error {
	filter, ok := c.Tables["filter"]
	if !ok {
		return nil
	}
	slots := []struct {
		chain string
		slot  model.FilterSlot
	}{
		{"INPUT", model.SlotIncoming},
		{"OUTPUT", model.SlotOutgoing},
		{"FORWARD", model.SlotPostTransformationIncoming},
	}
	node.Interfaces.Range(func(name string, iface *model.Interface) bool {
		for _, s := range slots {
			if _, ok := filter.Chains[s.chain]; !ok {
				continue
			}
			f := iface.Filter(s.slot)
			if *f != "" {
				w.Pedantic("interface %s: %s filter %s replaced by iptables chain %s", name, s.slot, *f, s.chain)
			}
			*f = AclName(filter.Name, s.chain)
		}
		return true
	})
	return nil
}

func space(p netip.Prefix) *model.IpSpace {
	if !p.IsValid() {
		return nil
	}
	return &model.IpSpace{Prefixes: []netip.Prefix{p}}
}
