package convert

import (
	"fmt"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Finalize checks and normalizes a converted node. It is idempotent: a
// second call changes nothing and records no warnings.
func Finalize(node *model.Configuration, w *warnings.Warnings) error {
	if node.DefaultCrossZoneAction == nil {
		return model.Internalf("node %s: default cross-zone action is not set", node.Hostname)
	}
	if node.DefaultInboundAction == nil {
		return model.Internalf("node %s: default inbound action is not set", node.Hostname)
	}

	model.SimplifyRoutingPolicies(node)
	model.ComputeRoutingPolicySources(node)

	if !node.Interfaces.Frozen() {
		removeInvalidInterfaces(node, w)
	}
	if !node.IpSpaces.Frozen() {
		materializeUndefinedIpSpaces(node, w)
	}

	freeze(node.Interfaces, "interface", func(v *model.Interface) string { return v.Name }, w)
	freeze(node.IpAccessLists, "ip access-list", func(v *model.IpAccessList) string { return v.Name }, w)
	freeze(node.RouteFilterLists, "route-filter list", func(v *model.RouteFilterList) string { return v.Name }, w)
	freeze(node.CommunitySets, "community set", func(v *model.CommunitySet) string { return v.Name }, w)
	freeze(node.AsPathAccessLists, "as-path access-list", func(v *model.AsPathAccessList) string { return v.Name }, w)
	freeze(node.RoutingPolicies, "routing policy", func(v *model.RoutingPolicy) string { return v.Name }, w)
	freeze(node.Vrfs, "vrf", func(v *model.Vrf) string { return v.Name }, w)
	freeze(node.Zones, "zone", func(v *model.Zone) string { return v.Name }, w)
	freeze(node.IpSpaces, "ip space", nil, w)

	if err := model.VerifyCommunityStructures(node); err != nil {
		return fmt.Errorf("node %s: %w", node.Hostname, err)
	}
	if err := model.VerifyAsPathStructures(node); err != nil {
		return fmt.Errorf("node %s: %w", node.Hostname, err)
	}

	clearDanglingFilters(node, w)
	return nil
}

// removeInvalidInterfaces drops interfaces whose layer-2 settings are
// inconsistent: a switchport must have a mode and no layer-3 address, and
// a routed port must have mode NONE.
func removeInvalidInterfaces(node *model.Configuration, w *warnings.Warnings) {
	for _, name := range node.Interfaces.Keys() {
		iface, _ := node.Interfaces.Get(name)
		if iface.SwitchportMode == "" {
			iface.SwitchportMode = model.SwitchportNone
		}
		var problem string
		switch {
		case iface.Switchport && iface.SwitchportMode == model.SwitchportNone:
			problem = "switchport interface has switchport mode NONE"
		case !iface.Switchport && iface.SwitchportMode != model.SwitchportNone:
			problem = fmt.Sprintf("non-switchport interface has switchport mode %s", iface.SwitchportMode)
		case iface.Switchport && len(iface.Addresses) > 0:
			problem = "switchport interface has layer-3 addresses"
		}
		if problem != "" {
			w.RedFlag("Interface %s removed: %s", name, problem)
			node.Interfaces.Delete(name)
		}
	}
}

func materializeUndefinedIpSpaces(node *model.Configuration, w *warnings.Warnings) {
	var refs []string
	collect := func(s *model.IpSpace) {
		if s != nil {
			refs = append(refs, s.Refs...)
		}
	}
	node.IpSpaces.Range(func(_ string, s *model.IpSpace) bool {
		collect(s)
		return true
	})
	node.IpAccessLists.Range(func(_ string, acl *model.IpAccessList) bool {
		for _, line := range acl.Lines {
			collect(line.Src)
			collect(line.Dst)
		}
		return true
	})
	for _, ref := range refs {
		if !node.IpSpaces.Has(ref) {
			w.RedFlag("Undefined IP space %q is referenced, treating it as empty", ref)
			node.IpSpaces.Put(ref, &model.IpSpace{})
		}
	}
}

// freeze drops entries whose own name disagrees with their key, then
// freezes the collection. A nil name func skips the check.
func freeze[V any](m *model.SortedMap[V], kind string, name func(V) string, w *warnings.Warnings) {
	if m.Frozen() {
		return
	}
	if name != nil {
		for _, key := range m.Keys() {
			v, _ := m.Get(key)
			if n := name(v); n != key {
				w.RedFlag("Dropping %s stored under %q but named %q", kind, key, n)
				m.Delete(key)
			}
		}
	}
	m.Freeze()
}

func clearDanglingFilters(node *model.Configuration, w *warnings.Warnings) {
	node.Interfaces.Range(func(name string, iface *model.Interface) bool {
		for _, slot := range model.FilterSlots {
			filter := iface.Filter(slot)
			if *filter != "" && !node.IpAccessLists.Has(*filter) {
				w.RedFlag("Interface %s: %s filter %q is undefined, removing it", name, slot, *filter)
				*filter = ""
			}
		}
		return true
	})
	node.Zones.Range(func(name string, z *model.Zone) bool {
		if z.InboundFilter != "" && !node.IpAccessLists.Has(z.InboundFilter) {
			w.RedFlag("Zone %s: inbound filter %q is undefined, removing it", name, z.InboundFilter)
			z.InboundFilter = ""
		}
		return true
	})
}
