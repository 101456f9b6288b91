package junos

import (
	"fmt"
	"maps"
	"net/netip"
	"slices"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
)

// Structure types recorded in the structure manager.
const (
	typeFilter      = "firewall filter"
	typePrefixList  = "prefix-list"
	typeCommunity   = "community"
	typeAsPath      = "as-path"
	typeAsPathGroup = "as-path-group"
	typePolicy      = "policy-statement"
	typeInstance    = "routing-instance"
	typeZone        = "security-zone"
	typeInterface   = "interface"
)

// Configuration is the IR of a Juniper configuration.
type Configuration struct {
	vendor.Base

	Interfaces    map[string]*Interface
	Filters       map[string]*Filter
	PrefixLists   map[string]*PrefixList
	Communities   map[string]*Community
	AsPaths       map[string]string
	AsPathGroups  map[string]*AsPathGroup
	Policies      map[string]*PolicyStatement
	Instances     map[string]*RoutingInstance
	Zones         map[string]*Zone
	StaticRoutes  []StaticRoute
	DefaultPolicy model.LineAction
}

// NewConfiguration returns an empty IR.
func NewConfiguration() *Configuration {
	return &Configuration{
		Interfaces:   make(map[string]*Interface),
		Filters:      make(map[string]*Filter),
		PrefixLists:  make(map[string]*PrefixList),
		Communities:  make(map[string]*Community),
		AsPaths:      make(map[string]string),
		AsPathGroups: make(map[string]*AsPathGroup),
		Policies:     make(map[string]*PolicyStatement),
		Instances:    make(map[string]*RoutingInstance),
		Zones:        make(map[string]*Zone),
	}
}

// Interface is a physical interface and its logical units.
type Interface struct {
	Name        string
	Description string
	Disabled    bool
	Units       map[int]*Unit
}

type Unit struct {
	Number        int
	Description   string
	Disabled      bool
	Addresses     []netip.Prefix
	InFilter      string
	OutFilter     string
	Inet          bool
	InetLine      int
	Switching     bool
	SwitchingLine int
	Mode          model.SwitchportMode
}

type Filter struct {
	Name  string
	Terms []*Term
}

// Term is one firewall filter term. A term without an action accepts.
type Term struct {
	Name                   string
	Sources                []netip.Prefix
	Destinations           []netip.Prefix
	SourcePrefixLists      []string
	DestinationPrefixLists []string
	Protocols              []string
	DstPorts               []string
	Action                 model.LineAction
}

type PrefixList struct {
	Name     string
	Prefixes []netip.Prefix
}

type Community struct {
	Name    string
	Members []string
}

// AsPathGroup is a named group of as-path regexes.
type AsPathGroup struct {
	Name    string
	Members map[string]string
}

type PolicyStatement struct {
	Name  string
	Terms []*PolicyTerm
}

type PolicyTerm struct {
	Name         string
	Line         int
	PrefixLists  []string
	RouteFilters []RouteFilter
	Communities  []string
	AsPaths      []string
	Policies     []string
	Sets         []string
	Result       model.PolicyResult
}

// RouteFilter matches prefixes within Prefix whose length is in [Min, Max].
type RouteFilter struct {
	Prefix netip.Prefix
	Min    int
	Max    int
}

type RoutingInstance struct {
	Name       string
	Interfaces []string
}

type Zone struct {
	Name       string
	Interfaces []string
}

type StaticRoute struct {
	Instance string
	Prefix   netip.Prefix
	NextHop  string
}

func (c *Configuration) iface(name string) *Interface {
	i, ok := c.Interfaces[name]
	if !ok {
		i = &Interface{Name: name, Units: make(map[int]*Unit)}
		c.Interfaces[name] = i
	}
	return i
}

func (i *Interface) unit(n int) *Unit {
	u, ok := i.Units[n]
	if !ok {
		u = &Unit{Number: n, Mode: model.SwitchportNone}
		i.Units[n] = u
	}
	return u
}

func (c *Configuration) filter(name string) *Filter {
	f, ok := c.Filters[name]
	if !ok {
		f = &Filter{Name: name}
		c.Filters[name] = f
	}
	return f
}

func (f *Filter) term(name string) *Term {
	for _, t := range f.Terms {
		if t.Name == name {
			return t
		}
	}
	t := &Term{Name: name, Action: model.Permit}
	f.Terms = append(f.Terms, t)
	return t
}

func (c *Configuration) policy(name string) *PolicyStatement {
	p, ok := c.Policies[name]
	if !ok {
		p = &PolicyStatement{Name: name}
		c.Policies[name] = p
	}
	return p
}

func (p *PolicyStatement) term(name string, line int) *PolicyTerm {
	for _, t := range p.Terms {
		if t.Name == name {
			return t
		}
	}
	t := &PolicyTerm{Name: name, Line: line}
	p.Terms = append(p.Terms, t)
	return t
}

func (c *Configuration) instance(name string) *RoutingInstance {
	ri, ok := c.Instances[name]
	if !ok {
		ri = &RoutingInstance{Name: name}
		c.Instances[name] = ri
	}
	return ri
}

func (c *Configuration) zone(name string) *Zone {
	z, ok := c.Zones[name]
	if !ok {
		z = &Zone{Name: name}
		c.Zones[name] = z
	}
	return z
}

// checkCommit rejects a unit carrying both a layer-3 and a layer-2
// family, which the device refuses to commit.
func (c *Configuration) checkCommit() error {
	for _, name := range slices.Sorted(maps.Keys(c.Interfaces)) {
		i := c.Interfaces[name]
		for _, n := range slices.Sorted(maps.Keys(i.Units)) {
			u := i.Units[n]
			if u.Inet && u.Switching {
				return &plugins.WillNotCommitError{
					Line: max(u.InetLine, u.SwitchingLine),
					Msg:  fmt.Sprintf("interface %s.%d has both family inet and family ethernet-switching", name, n),
				}
			}
		}
	}
	return nil
}
