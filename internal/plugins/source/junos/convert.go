package junos

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

// ToVendorIndependentConfigurations converts the IR into a single node.
// Cross-zone traffic follows the security default-policy, deny-all when
// unset. Traffic to the device is denied once any security zone exists.
func (c *Configuration) ToVendorIndependentConfigurations(ctx context.Context, cc *vendor.ConversionContext, rd *vendor.RuntimeData) ([]*model.Configuration, error) {
	w := c.Warnings()
	node := model.NewConfiguration(c.Hostname(), c.Format())
	node.SourceFile = c.Filename()
	node.DefaultCrossZoneAction = model.ActionPtr(model.Deny)
	if c.DefaultPolicy != "" {
		node.DefaultCrossZoneAction = model.ActionPtr(c.DefaultPolicy)
	}
	node.DefaultInboundAction = model.ActionPtr(model.Permit)
	if len(c.Zones) > 0 {
		node.DefaultInboundAction = model.ActionPtr(model.Deny)
	}

	for _, name := range slices.Sorted(maps.Keys(c.Instances)) {
		node.Vrfs.Put(name, &model.Vrf{Name: name})
	}
	c.convertInterfaces(node, w)

	for _, name := range slices.Sorted(maps.Keys(c.PrefixLists)) {
		pl := c.PrefixLists[name]
		rfl := &model.RouteFilterList{Name: name}
		for _, p := range pl.Prefixes {
			rfl.Lines = append(rfl.Lines, model.RouteFilterLine{Action: model.Permit, Prefix: p, MinLength: p.Bits(), MaxLength: p.Bits()})
		}
		node.RouteFilterLists.Put(name, rfl)
		node.IpSpaces.Put(name, &model.IpSpace{Prefixes: slices.Clone(pl.Prefixes)})
	}
	for _, name := range slices.Sorted(maps.Keys(c.Filters)) {
		node.IpAccessLists.Put(name, convertFilter(c.Filters[name]))
	}
	for _, name := range slices.Sorted(maps.Keys(c.Communities)) {
		node.CommunitySets.Put(name, &model.CommunitySet{Name: name, Members: slices.Clone(c.Communities[name].Members)})
	}
	for _, name := range slices.Sorted(maps.Keys(c.AsPaths)) {
		node.AsPathAccessLists.Put(name, &model.AsPathAccessList{Name: name, Regexes: []string{c.AsPaths[name]}})
	}
	for _, name := range slices.Sorted(maps.Keys(c.AsPathGroups)) {
		g := c.AsPathGroups[name]
		group := &model.AsPathAccessList{Name: name}
		for _, member := range slices.Sorted(maps.Keys(g.Members)) {
			key := name + "/" + member
			group.References = append(group.References, key)
			node.AsPathAccessLists.Put(key, &model.AsPathAccessList{Name: key, Regexes: []string{g.Members[member]}})
		}
		node.AsPathAccessLists.Put(name, group)
	}
	for _, name := range slices.Sorted(maps.Keys(c.Policies)) {
		node.RoutingPolicies.Put(name, c.convertPolicy(c.Policies[name], node, w))
	}
	for _, sr := range c.StaticRoutes {
		vrfName := sr.Instance
		if vrfName == "" {
			vrfName = model.DefaultVrf
		}
		vrf, _ := node.Vrfs.Get(vrfName)
		vrf.StaticRoutes = append(vrf.StaticRoutes, model.StaticRoute{Prefix: sr.Prefix, NextHop: sr.NextHop})
	}
	for _, name := range slices.Sorted(maps.Keys(c.Zones)) {
		z := &model.Zone{Name: name}
		for _, iface := range c.Zones[name].Interfaces {
			mi, ok := node.Interfaces.Get(iface)
			if !ok {
				w.RedFlag("security-zone %s: undefined interface %s", name, iface)
				continue
			}
			mi.Zone = name
			z.Interfaces = append(z.Interfaces, iface)
		}
		slices.Sort(z.Interfaces)
		node.Zones.Put(name, z)
	}

	vendor.ApplyEnvironment(node, cc, rd, w)
	return []*model.Configuration{node}, nil
}

// convertInterfaces creates one interface per physical port and one per
// logical unit, named "<port>.<unit>".
func (c *Configuration) convertInterfaces(node *model.Configuration, w *warnings.Warnings) {
	vrfOf := make(map[string]string)
	for _, name := range slices.Sorted(maps.Keys(c.Instances)) {
		for _, iface := range c.Instances[name].Interfaces {
			vrfOf[iface] = name
		}
	}
	for _, name := range slices.Sorted(maps.Keys(c.Interfaces)) {
		i := c.Interfaces[name]
		phys := model.NewInterface(name)
		phys.Description = i.Description
		phys.Active = !i.Disabled
		node.Interfaces.Put(name, phys)

		for _, n := range slices.Sorted(maps.Keys(i.Units)) {
			u := i.Units[n]
			mi := model.NewInterface(unitName(name, n))
			mi.Description = u.Description
			mi.Active = !i.Disabled && !u.Disabled
			mi.Addresses = slices.Clone(u.Addresses)
			mi.IncomingFilter = u.InFilter
			mi.OutgoingFilter = u.OutFilter
			if u.Switching {
				mi.Switchport = true
				mi.SwitchportMode = u.Mode
				if mi.SwitchportMode == model.SwitchportNone {
					mi.SwitchportMode = model.SwitchportAccess
				}
			}
			if vrf, ok := vrfOf[mi.Name]; ok {
				mi.Vrf = vrf
				delete(vrfOf, mi.Name)
			}
			node.Interfaces.Put(mi.Name, mi)
		}
	}
	for _, iface := range slices.Sorted(maps.Keys(vrfOf)) {
		w.RedFlag("routing-instance %s: undefined interface %s", vrfOf[iface], iface)
	}
}

// convertFilter turns each term into one line per protocol and appends
// the implicit final discard.
func convertFilter(f *Filter) *model.IpAccessList {
	acl := &model.IpAccessList{Name: f.Name}
	for _, t := range f.Terms {
		src := space(t.Sources, t.SourcePrefixLists)
		dst := space(t.Destinations, t.DestinationPrefixLists)
		protocols := t.Protocols
		if len(protocols) == 0 {
			protocols = []string{""}
		}
		for _, proto := range protocols {
			acl.Lines = append(acl.Lines, model.AclLine{
				Name:     t.Name,
				Action:   t.Action,
				Protocol: proto,
				Src:      src,
				Dst:      dst,
				DstPorts: strings.Join(t.DstPorts, ","),
			})
		}
	}
	acl.Lines = append(acl.Lines, model.AclLine{Name: "implicit discard", Action: model.Deny})
	return acl
}

func space(prefixes []netip.Prefix, refs []string) *model.IpSpace {
	if len(prefixes) == 0 && len(refs) == 0 {
		return nil
	}
	return &model.IpSpace{Prefixes: slices.Clone(prefixes), Refs: slices.Clone(refs)}
}

// convertPolicy keeps terms in configuration order. Inline route-filters
// become a generated route-filter list per term. A term matching an
// undefined structure can never match and is dropped.
func (c *Configuration) convertPolicy(p *PolicyStatement, node *model.Configuration, w *warnings.Warnings) *model.RoutingPolicy {
	rp := &model.RoutingPolicy{Name: p.Name}
	for _, t := range p.Terms {
		if missing := c.undefinedMatch(t); missing != "" {
			w.RedFlag("policy-statement %s term %q: matches undefined %s, term can never match", p.Name, t.Name, missing)
			continue
		}
		s := model.Statement{
			MatchRouteFilters:  slices.Clone(t.PrefixLists),
			MatchCommunitySets: slices.Clone(t.Communities),
			MatchAsPaths:       slices.Clone(t.AsPaths),
			Sets:               slices.Clone(t.Sets),
			Result:             t.Result,
		}
		if len(t.RouteFilters) > 0 {
			name := "~" + p.Name + "~" + t.Name + "~"
			rfl := &model.RouteFilterList{Name: name}
			for _, rf := range t.RouteFilters {
				rfl.Lines = append(rfl.Lines, model.RouteFilterLine{Action: model.Permit, Prefix: rf.Prefix, MinLength: rf.Min, MaxLength: rf.Max})
			}
			node.RouteFilterLists.Put(name, rfl)
			s.MatchRouteFilters = append(s.MatchRouteFilters, name)
		}
		if len(t.Policies) > 0 {
			s.Call = t.Policies[0]
			if len(t.Policies) > 1 {
				w.Unimplemented("policy-statement %s term %q: policy chains are not modeled, using %s", p.Name, t.Name, s.Call)
			}
		}
		rp.Statements = append(rp.Statements, s)
	}
	return rp
}

func (c *Configuration) undefinedMatch(t *PolicyTerm) string {
	for _, name := range t.PrefixLists {
		if _, ok := c.PrefixLists[name]; !ok {
			return "prefix-list " + name
		}
	}
	for _, name := range t.Communities {
		if _, ok := c.Communities[name]; !ok {
			return "community " + name
		}
	}
	for _, name := range t.AsPaths {
		_, isPath := c.AsPaths[name]
		_, isGroup := c.AsPathGroups[name]
		if !isPath && !isGroup {
			return "as-path " + name
		}
	}
	for _, name := range t.Policies {
		if _, ok := c.Policies[name]; !ok {
			return "policy-statement " + name
		}
	}
	return ""
}
