package ios

import (
	"context"
	"maps"
	"net/netip"
	"slices"
	"strings"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Default bandwidths in bits per second, by interface name prefix.
var defaultBandwidths = []struct {
	prefix    string
	bandwidth float64
}{
	{"HundredGigE", 100e9},
	{"FortyGigabitEthernet", 40e9},
	{"TenGigabitEthernet", 10e9},
	{"GigabitEthernet", 1e9},
	{"FastEthernet", 100e6},
	{"Ethernet", 1e9},
	{"Loopback", 8e9},
	{"Port-channel", 1e9},
}

func defaultBandwidth(name string) *float64 {
	lower := strings.ToLower(name)
	for _, d := range defaultBandwidths {
		if strings.HasPrefix(lower, strings.ToLower(d.prefix)) {
			bw := d.bandwidth
			return &bw
		}
	}
	return nil
}

// ToVendorIndependentConfigurations converts the IR into a single node.
// Zone-based policy denies cross-zone traffic unless a zone-pair allows
// it; traffic to the device itself is permitted.
func (c *Configuration) ToVendorIndependentConfigurations(ctx context.Context, cc *vendor.ConversionContext, rd *vendor.RuntimeData) ([]*model.Configuration, error) {
	w := c.Warnings()
	node := model.NewConfiguration(c.Hostname(), c.Format())
	node.SourceFile = c.Filename()
	node.DefaultCrossZoneAction = model.ActionPtr(model.Deny)
	node.DefaultInboundAction = model.ActionPtr(model.Permit)

	for _, name := range slices.Sorted(maps.Keys(c.Vrfs)) {
		if name != model.DefaultVrf {
			node.Vrfs.Put(name, &model.Vrf{Name: name})
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Interfaces)) {
		node.Interfaces.Put(name, c.convertInterface(c.Interfaces[name], node, w))
	}
	for _, name := range slices.Sorted(maps.Keys(c.AccessLists)) {
		node.IpAccessLists.Put(name, convertAccessList(c.AccessLists[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(c.ObjectGroups)) {
		og := c.ObjectGroups[name]
		node.IpSpaces.Put(name, &model.IpSpace{
			Prefixes: slices.Clone(og.Prefixes),
			Refs:     slices.Clone(og.Groups),
		})
	}
	for _, name := range slices.Sorted(maps.Keys(c.PrefixLists)) {
		pl := c.PrefixLists[name]
		node.RouteFilterLists.Put(name, &model.RouteFilterList{Name: name, Lines: slices.Clone(pl.Lines)})
	}
	for _, name := range slices.Sorted(maps.Keys(c.CommunityLists)) {
		node.CommunitySets.Put(name, &model.CommunitySet{Name: name, Members: slices.Clone(c.CommunityLists[name].Members)})
	}
	for _, name := range slices.Sorted(maps.Keys(c.AsPathLists)) {
		node.AsPathAccessLists.Put(name, &model.AsPathAccessList{Name: name, Regexes: slices.Clone(c.AsPathLists[name].Regexes)})
	}
	for _, name := range slices.Sorted(maps.Keys(c.RouteMaps)) {
		node.RoutingPolicies.Put(name, c.convertRouteMap(c.RouteMaps[name], w))
	}
	c.convertStaticRoutes(node, w)
	c.convertZones(node, w)

	vendor.ApplyEnvironment(node, cc, rd, w)
	return []*model.Configuration{node}, nil
}

func (c *Configuration) convertInterface(i *Interface, node *model.Configuration, w *warnings.Warnings) *model.Interface {
	mi := model.NewInterface(i.Name)
	mi.Description = i.Description
	mi.Active = !i.Shutdown
	mi.Switchport = i.Switchport
	mi.SwitchportMode = i.SwitchportMode
	if i.Switchport && i.SwitchportMode == model.SwitchportNone {
		mi.SwitchportMode = model.SwitchportAccess
	}
	mi.AccessVlan = i.AccessVlan
	mi.Addresses = slices.Clone(i.Addresses)
	if i.Vrf != "" {
		if node.Vrfs.Has(i.Vrf) {
			mi.Vrf = i.Vrf
		} else {
			w.RedFlag("Interface %s: undefined vrf %s, leaving it in the default vrf", i.Name, i.Vrf)
		}
	}
	mi.Zone = i.Zone
	mi.Bandwidth = i.Bandwidth
	if mi.Bandwidth == nil {
		mi.Bandwidth = defaultBandwidth(i.Name)
	}
	mi.IncomingFilter = i.InFilter
	mi.OutgoingFilter = i.OutFilter
	return mi
}

func convertAccessList(acl *AccessList) *model.IpAccessList {
	out := &model.IpAccessList{Name: acl.Name, Lines: make([]model.AclLine, 0, len(acl.Lines))}
	for _, l := range acl.Lines {
		out.Lines = append(out.Lines, model.AclLine{
			Name:     l.Text,
			Action:   l.Action,
			Protocol: l.Protocol,
			Src:      ipSpace(l.Src),
			Dst:      ipSpace(l.Dst),
			DstPorts: l.DstPorts,
		})
	}
	return out
}

// ipSpace returns nil for "any".
func ipSpace(a Address) *model.IpSpace {
	switch {
	case a.Any:
		return nil
	case a.Group != "":
		return &model.IpSpace{Refs: []string{a.Group}}
	}
	return &model.IpSpace{Prefixes: []netip.Prefix{a.Prefix}}
}

// convertRouteMap orders clauses by sequence number. A clause matching an
// undefined list can never match and is dropped. Routes matching no
// clause are rejected.
func (c *Configuration) convertRouteMap(rm *RouteMap, w *warnings.Warnings) *model.RoutingPolicy {
	p := &model.RoutingPolicy{Name: rm.Name}
	for _, seq := range slices.Sorted(maps.Keys(rm.Clauses)) {
		clause := rm.Clauses[seq]
		if missing := c.undefinedMatch(clause); missing != "" {
			w.RedFlag("route-map %s %d: matches undefined %s, clause can never match", rm.Name, seq, missing)
			continue
		}
		s := model.Statement{
			MatchRouteFilters:  slices.Clone(clause.PrefixLists),
			MatchCommunitySets: slices.Clone(clause.Communities),
			MatchAsPaths:       slices.Clone(clause.AsPaths),
			Sets:               slices.Clone(clause.Sets),
			Result:             model.Accept,
		}
		if clause.Action == model.Deny {
			s.Result = model.Reject
		}
		p.Statements = append(p.Statements, s)
	}
	p.Statements = append(p.Statements, model.Statement{Result: model.Reject})
	return p
}

func (c *Configuration) undefinedMatch(clause *RouteMapClause) string {
	for _, name := range clause.PrefixLists {
		if _, ok := c.PrefixLists[name]; !ok {
			return "prefix-list " + name
		}
	}
	for _, name := range clause.Communities {
		if _, ok := c.CommunityLists[name]; !ok {
			return "community-list " + name
		}
	}
	for _, name := range clause.AsPaths {
		if _, ok := c.AsPathLists[name]; !ok {
			return "as-path access-list " + name
		}
	}
	return ""
}

func (c *Configuration) convertStaticRoutes(node *model.Configuration, w *warnings.Warnings) {
	for _, sr := range c.StaticRoutes {
		name := sr.Vrf
		if name == "" {
			name = model.DefaultVrf
		}
		vrf, ok := node.Vrfs.Get(name)
		if !ok {
			w.RedFlag("Static route %s: undefined vrf %s, route ignored", sr.Prefix, sr.Vrf)
			continue
		}
		vrf.StaticRoutes = append(vrf.StaticRoutes, model.StaticRoute{Prefix: sr.Prefix, NextHop: sr.NextHop})
	}
}

func (c *Configuration) convertZones(node *model.Configuration, w *warnings.Warnings) {
	for _, name := range slices.Sorted(maps.Keys(c.Zones)) {
		node.Zones.Put(name, &model.Zone{Name: name})
	}
	node.Interfaces.Range(func(name string, iface *model.Interface) bool {
		if iface.Zone == "" {
			return true
		}
		z, ok := node.Zones.Get(iface.Zone)
		if !ok {
			w.RedFlag("Interface %s: undefined zone %s, membership ignored", name, iface.Zone)
			iface.Zone = ""
			return true
		}
		z.Interfaces = append(z.Interfaces, name)
		return true
	})
}
