package junos

import (
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Top-level hierarchies that are understood but not modeled.
var ignoredTop = map[string]bool{
	"access":                     true,
	"applications":               true,
	"apply-groups":               true,
	"bridge-domains":             true,
	"chassis":                    true,
	"class-of-service":           true,
	"ethernet-switching-options": true,
	"event-options":              true,
	"forwarding-options":         true,
	"groups":                     true,
	"multi-chassis":              true,
	"poe":                        true,
	"services":                   true,
	"snmp":                       true,
	"switch-options":             true,
	"version":                    true,
	"virtual-chassis":            true,
	"vlans":                      true,
}

var namedPorts = map[string]string{
	"bgp":    "179",
	"domain": "53",
	"ftp":    "21",
	"http":   "80",
	"https":  "443",
	"ntp":    "123",
	"snmp":   "161",
	"ssh":    "22",
	"telnet": "23",
}

type extractor struct {
	c    *Configuration
	tree *Tree
	w    *warnings.Warnings
	// once holds keys of unimplemented features already reported.
	once map[string]bool
}

func (x *extractor) errorf(s Statement, ctx, format string, args ...any) error {
	return &plugins.ExtractError{Line: s.Line, Text: s.Text, Context: ctx, Msg: fmt.Sprintf(format, args...)}
}

func (x *extractor) silent(s Statement, ctx string) {
	x.tree.Silent = append(x.tree.Silent, plugins.SilentLine{Line: s.Line, Text: s.Text, Context: ctx})
}

func (x *extractor) unimplementedOnce(key, format string, args ...any) {
	if x.once[key] {
		return
	}
	x.once[key] = true
	x.w.Unimplemented(format, args...)
}

func (x *extractor) set(s Statement) error {
	a := s.Words
	switch a[0] {
	case "system":
		if len(a) >= 2 && a[1] == "host-name" {
			if len(a) < 3 {
				return x.errorf(s, "system", "missing host-name")
			}
			x.c.SetHostname(a[2])
			return nil
		}
		x.silent(s, "system")
	case "interfaces":
		return x.interfaces(s, a[1:])
	case "firewall":
		return x.firewall(s, a[1:])
	case "policy-options":
		return x.policyOptions(s, a[1:])
	case "routing-options":
		return x.routingOptions(s, a[1:], "")
	case "routing-instances":
		return x.routingInstances(s, a[1:])
	case "security":
		return x.security(s, a[1:])
	case "protocols":
		if len(a) > 1 {
			x.unimplementedOnce("protocols "+a[1], "protocols %s is not modeled", a[1])
		}
	default:
		if ignoredTop[a[0]] {
			x.silent(s, a[0])
			return nil
		}
		x.c.MarkUnrecognized()
		x.w.AddParseWarning(warnings.ParseWarning{
			Line:          s.Line,
			Text:          s.Text,
			ParserContext: "set",
			Comment:       "This syntax is unrecognized",
		})
	}
	return nil
}

func (x *extractor) interfaces(s Statement, a []string) error {
	if len(a) == 0 {
		return x.errorf(s, "interfaces", "missing interface name")
	}
	if a[0] == "interface-range" {
		x.unimplementedOnce("interface-range", "interface-range is not modeled")
		return nil
	}
	i := x.c.iface(a[0])
	sm := x.c.Structures()
	sm.Define(typeInterface, a[0], s.Line)
	if len(a) == 1 {
		return nil
	}
	switch a[1] {
	case "description":
		i.Description = strings.Join(a[2:], " ")
	case "disable":
		i.Disabled = true
	case "unit":
		if len(a) < 3 {
			return x.errorf(s, "interfaces", "missing unit number")
		}
		n, err := strconv.Atoi(a[2])
		if err != nil || n < 0 {
			return x.errorf(s, "interfaces", "invalid unit number %q", a[2])
		}
		u := i.unit(n)
		sm.Define(typeInterface, unitName(a[0], n), s.Line)
		return x.unit(s, unitName(a[0], n), u, a[3:])
	default:
		x.silent(s, "interfaces")
	}
	return nil
}

func unitName(iface string, unit int) string { return iface + "." + strconv.Itoa(unit) }

func (x *extractor) unit(s Statement, name string, u *Unit, r []string) error {
	if len(r) == 0 {
		return nil
	}
	switch r[0] {
	case "description":
		u.Description = strings.Join(r[1:], " ")
	case "disable":
		u.Disabled = true
	case "family":
		if len(r) < 2 {
			return x.errorf(s, "family", "missing family")
		}
		switch r[1] {
		case "inet":
			u.Inet = true
			if u.InetLine == 0 {
				u.InetLine = s.Line
			}
			return x.inet(s, name, u, r[2:])
		case "ethernet-switching":
			u.Switching = true
			if u.SwitchingLine == 0 {
				u.SwitchingLine = s.Line
			}
			if len(r) >= 4 && (r[2] == "interface-mode" || r[2] == "port-mode") {
				switch r[3] {
				case "access":
					u.Mode = model.SwitchportAccess
				case "trunk":
					u.Mode = model.SwitchportTrunk
				default:
					return x.errorf(s, "family", "invalid interface-mode %q", r[3])
				}
				return nil
			}
			x.silent(s, "ethernet-switching")
		default:
			x.unimplementedOnce("family "+r[1], "family %s is not modeled", r[1])
		}
	default:
		x.silent(s, "unit")
	}
	return nil
}

func (x *extractor) inet(s Statement, name string, u *Unit, r []string) error {
	if len(r) == 0 {
		return nil
	}
	switch r[0] {
	case "address":
		if len(r) < 2 {
			return x.errorf(s, "family inet", "missing address")
		}
		p, err := netip.ParsePrefix(r[1])
		if err != nil || !p.Addr().Is4() {
			return x.errorf(s, "family inet", "invalid address %q", r[1])
		}
		if !slices.Contains(u.Addresses, p) {
			u.Addresses = append(u.Addresses, p)
		}
	case "filter":
		if len(r) < 3 {
			return x.errorf(s, "family inet", "incomplete filter statement")
		}
		switch r[1] {
		case "input":
			u.InFilter = r[2]
			x.c.Structures().Refer(typeFilter, r[2], "interface input filter", s.Line)
		case "output":
			u.OutFilter = r[2]
			x.c.Structures().Refer(typeFilter, r[2], "interface output filter", s.Line)
		default:
			x.w.Unimplemented("interface %s: filter %s is not modeled", name, r[1])
		}
	default:
		x.silent(s, "family inet")
	}
	return nil
}

func (x *extractor) firewall(s Statement, a []string) error {
	if len(a) >= 2 && a[0] == "family" {
		if a[1] != "inet" {
			x.unimplementedOnce("firewall family "+a[1], "firewall family %s is not modeled", a[1])
			return nil
		}
		a = a[2:]
	}
	if len(a) < 2 || a[0] != "filter" {
		x.silent(s, "firewall")
		return nil
	}
	name := a[1]
	f := x.c.filter(name)
	x.c.Structures().Define(typeFilter, name, s.Line)
	r := a[2:]
	if len(r) < 2 || r[0] != "term" {
		x.silent(s, "firewall filter")
		return nil
	}
	t := f.term(r[1])
	r = r[2:]
	if len(r) == 0 {
		return nil
	}
	switch r[0] {
	case "from":
		return x.termFrom(s, name, t, r[1:])
	case "then":
		return x.termThen(s, name, t, r[1:])
	}
	x.silent(s, "firewall term")
	return nil
}

func parseAddress(s string) (netip.Prefix, error) {
	if !strings.Contains(s, "/") {
		a, err := netip.ParseAddr(s)
		if err != nil || !a.Is4() {
			return netip.Prefix{}, fmt.Errorf("invalid address %q", s)
		}
		return netip.PrefixFrom(a, 32), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil || !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("invalid prefix %q", s)
	}
	return p.Masked(), nil
}

func (x *extractor) termFrom(s Statement, filter string, t *Term, r []string) error {
	if len(r) < 2 {
		return x.errorf(s, "term from", "incomplete match condition")
	}
	sm := x.c.Structures()
	switch r[0] {
	case "source-address", "destination-address":
		if len(r) > 2 && r[2] == "except" {
			x.w.Unimplemented("firewall filter %s term %s: except is not modeled", filter, t.Name)
			return nil
		}
		p, err := parseAddress(r[1])
		if err != nil {
			return x.errorf(s, "term from", "%v", err)
		}
		if r[0] == "source-address" {
			t.Sources = append(t.Sources, p)
		} else {
			t.Destinations = append(t.Destinations, p)
		}
	case "source-prefix-list":
		t.SourcePrefixLists = append(t.SourcePrefixLists, r[1])
		sm.Refer(typePrefixList, r[1], "firewall filter source-prefix-list", s.Line)
	case "destination-prefix-list":
		t.DestinationPrefixLists = append(t.DestinationPrefixLists, r[1])
		sm.Refer(typePrefixList, r[1], "firewall filter destination-prefix-list", s.Line)
	case "protocol":
		t.Protocols = append(t.Protocols, r[1])
	case "destination-port":
		port := r[1]
		if n, ok := namedPorts[port]; ok {
			port = n
		}
		t.DstPorts = append(t.DstPorts, port)
	default:
		x.unimplementedOnce("from "+r[0], "firewall filter %s term %s: match %s is not modeled", filter, t.Name, r[0])
	}
	return nil
}

func (x *extractor) termThen(s Statement, filter string, t *Term, r []string) error {
	if len(r) == 0 {
		return x.errorf(s, "term then", "missing action")
	}
	switch r[0] {
	case "accept":
		t.Action = model.Permit
	case "discard", "reject":
		t.Action = model.Deny
	case "count", "log", "syslog", "sample":
		x.silent(s, "term then")
	default:
		x.w.Unimplemented("firewall filter %s term %s: action %s is not modeled", filter, t.Name, r[0])
	}
	return nil
}

func (x *extractor) policyOptions(s Statement, a []string) error {
	if len(a) < 2 {
		return x.errorf(s, "policy-options", "incomplete policy-options statement")
	}
	sm := x.c.Structures()
	name := a[1]
	switch a[0] {
	case "prefix-list":
		pl, ok := x.c.PrefixLists[name]
		if !ok {
			pl = &PrefixList{Name: name}
			x.c.PrefixLists[name] = pl
		}
		sm.Define(typePrefixList, name, s.Line)
		if len(a) < 3 {
			return nil
		}
		if a[2] == "apply-path" {
			x.w.Unimplemented("prefix-list %s: apply-path is not modeled", name)
			return nil
		}
		p, err := parseAddress(a[2])
		if err != nil {
			return x.errorf(s, "prefix-list", "%v", err)
		}
		pl.Prefixes = append(pl.Prefixes, p)
	case "community":
		cm, ok := x.c.Communities[name]
		if !ok {
			cm = &Community{Name: name}
			x.c.Communities[name] = cm
		}
		sm.Define(typeCommunity, name, s.Line)
		if len(a) >= 4 && a[2] == "members" {
			cm.Members = append(cm.Members, a[3:]...)
		} else if len(a) > 2 {
			x.w.Unimplemented("community %s: %s is not modeled", name, a[2])
		}
	case "as-path":
		if len(a) < 3 {
			return x.errorf(s, "as-path", "missing regex")
		}
		x.c.AsPaths[name] = a[2]
		sm.Define(typeAsPath, name, s.Line)
	case "as-path-group":
		g, ok := x.c.AsPathGroups[name]
		if !ok {
			g = &AsPathGroup{Name: name, Members: make(map[string]string)}
			x.c.AsPathGroups[name] = g
		}
		sm.Define(typeAsPathGroup, name, s.Line)
		if len(a) >= 5 && a[2] == "as-path" {
			g.Members[a[3]] = a[4]
		}
	case "policy-statement":
		return x.policyStatement(s, name, a[2:])
	default:
		x.unimplementedOnce("policy-options "+a[0], "policy-options %s is not modeled", a[0])
	}
	return nil
}

func (x *extractor) policyStatement(s Statement, name string, r []string) error {
	p := x.c.policy(name)
	x.c.Structures().Define(typePolicy, name, s.Line)
	term := ""
	if len(r) >= 2 && r[0] == "term" {
		term, r = r[1], r[2:]
	}
	t := p.term(term, s.Line)
	if len(r) == 0 {
		return nil
	}
	switch r[0] {
	case "from":
		return x.policyFrom(s, name, t, r[1:])
	case "then":
		return x.policyThen(s, name, t, r[1:])
	case "to":
		x.unimplementedOnce("policy to", "policy-statement %s: to conditions are not modeled", name)
	default:
		x.silent(s, "policy-statement")
	}
	return nil
}

func (x *extractor) policyFrom(s Statement, policy string, t *PolicyTerm, r []string) error {
	if len(r) < 2 {
		return x.errorf(s, "policy from", "incomplete match condition")
	}
	sm := x.c.Structures()
	switch r[0] {
	case "prefix-list":
		t.PrefixLists = append(t.PrefixLists, r[1])
		sm.Refer(typePrefixList, r[1], "policy-statement from prefix-list", s.Line)
	case "route-filter":
		rf, err := routeFilter(r[1:])
		if err != nil {
			return x.errorf(s, "route-filter", "%v", err)
		}
		t.RouteFilters = append(t.RouteFilters, rf)
	case "community":
		t.Communities = append(t.Communities, r[1])
		sm.Refer(typeCommunity, r[1], "policy-statement from community", s.Line)
	case "as-path":
		t.AsPaths = append(t.AsPaths, r[1])
		sm.Refer(typeAsPath, r[1], "policy-statement from as-path", s.Line)
	case "as-path-group":
		t.AsPaths = append(t.AsPaths, r[1])
		sm.Refer(typeAsPathGroup, r[1], "policy-statement from as-path-group", s.Line)
	case "policy":
		t.Policies = append(t.Policies, r[1])
		sm.Refer(typePolicy, r[1], "policy-statement from policy", s.Line)
	default:
		x.unimplementedOnce("policy from "+r[0], "policy-statement %s: match %s is not modeled", policy, r[0])
	}
	return nil
}

// routeFilter parses "PREFIX exact|orlonger|longer|upto /N|prefix-length-range /A-/B".
func routeFilter(r []string) (RouteFilter, error) {
	if len(r) < 2 {
		return RouteFilter{}, fmt.Errorf("route-filter needs a prefix and a match type")
	}
	p, err := netip.ParsePrefix(r[0])
	if err != nil || !p.Addr().Is4() {
		return RouteFilter{}, fmt.Errorf("invalid prefix %q", r[0])
	}
	rf := RouteFilter{Prefix: p.Masked(), Min: p.Bits(), Max: p.Bits()}
	length := func(s string) (int, error) {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "/"))
		if err != nil || n < 0 || n > 32 {
			return 0, fmt.Errorf("invalid prefix length %q", s)
		}
		return n, nil
	}
	switch r[1] {
	case "exact":
	case "orlonger":
		rf.Max = 32
	case "longer":
		rf.Min, rf.Max = p.Bits()+1, 32
	case "upto":
		if len(r) < 3 {
			return rf, fmt.Errorf("upto needs a length")
		}
		if rf.Max, err = length(r[2]); err != nil {
			return rf, err
		}
	case "prefix-length-range":
		if len(r) < 3 {
			return rf, fmt.Errorf("prefix-length-range needs a range")
		}
		lo, hi, ok := strings.Cut(r[2], "-")
		if !ok {
			return rf, fmt.Errorf("invalid range %q", r[2])
		}
		if rf.Min, err = length(lo); err != nil {
			return rf, err
		}
		if rf.Max, err = length(hi); err != nil {
			return rf, err
		}
	default:
		return rf, fmt.Errorf("unknown route-filter match type %q", r[1])
	}
	if rf.Min < p.Bits() || rf.Min > rf.Max {
		return rf, fmt.Errorf("invalid length range %d-%d for %s", rf.Min, rf.Max, p)
	}
	return rf, nil
}

func (x *extractor) policyThen(s Statement, policy string, t *PolicyTerm, r []string) error {
	if len(r) == 0 {
		return x.errorf(s, "policy then", "missing action")
	}
	switch r[0] {
	case "accept":
		t.Result = model.Accept
	case "reject":
		t.Result = model.Reject
	case "next":
		x.silent(s, "policy then")
	case "community":
		if len(r) >= 3 {
			x.c.Structures().Refer(typeCommunity, r[2], "policy-statement then community", s.Line)
		}
		t.Sets = append(t.Sets, strings.Join(r, " "))
	case "local-preference", "metric", "as-path-prepend", "next-hop", "origin", "tag", "preference":
		t.Sets = append(t.Sets, strings.Join(r, " "))
	default:
		x.unimplementedOnce("policy then "+r[0], "policy-statement %s: action %s is not modeled", policy, r[0])
	}
	return nil
}

func (x *extractor) routingOptions(s Statement, r []string, instance string) error {
	if len(r) < 3 || r[0] != "static" || r[1] != "route" {
		x.silent(s, "routing-options")
		return nil
	}
	p, err := parseAddress(r[2])
	if err != nil {
		return x.errorf(s, "static route", "%v", err)
	}
	if len(r) < 4 {
		return nil
	}
	switch r[3] {
	case "next-hop":
		if len(r) < 5 {
			return x.errorf(s, "static route", "missing next hop")
		}
		x.c.StaticRoutes = append(x.c.StaticRoutes, StaticRoute{Instance: instance, Prefix: p, NextHop: r[4]})
	case "discard", "reject":
		x.c.StaticRoutes = append(x.c.StaticRoutes, StaticRoute{Instance: instance, Prefix: p, NextHop: r[3]})
	default:
		x.silent(s, "static route")
	}
	return nil
}

func (x *extractor) routingInstances(s Statement, r []string) error {
	if len(r) == 0 {
		return x.errorf(s, "routing-instances", "missing instance name")
	}
	name := r[0]
	ri := x.c.instance(name)
	x.c.Structures().Define(typeInstance, name, s.Line)
	if len(r) == 1 {
		return nil
	}
	switch r[1] {
	case "interface":
		if len(r) < 3 {
			return x.errorf(s, "routing-instances", "missing interface name")
		}
		if !slices.Contains(ri.Interfaces, r[2]) {
			ri.Interfaces = append(ri.Interfaces, r[2])
		}
		x.c.Structures().Refer(typeInterface, r[2], "routing-instance interface", s.Line)
	case "routing-options":
		return x.routingOptions(s, r[2:], name)
	case "protocols":
		if len(r) > 2 {
			x.unimplementedOnce("protocols "+r[2], "protocols %s is not modeled", r[2])
		}
	default:
		x.silent(s, "routing-instances")
	}
	return nil
}

func (x *extractor) security(s Statement, r []string) error {
	switch {
	case len(r) >= 3 && r[0] == "zones" && r[1] == "security-zone":
		z := x.c.zone(r[2])
		x.c.Structures().Define(typeZone, r[2], s.Line)
		if len(r) >= 5 && r[3] == "interfaces" {
			if !slices.Contains(z.Interfaces, r[4]) {
				z.Interfaces = append(z.Interfaces, r[4])
			}
			x.c.Structures().Refer(typeInterface, r[4], "security-zone interface", s.Line)
			return nil
		}
		x.silent(s, "security-zone")
	case len(r) >= 3 && r[0] == "policies" && r[1] == "default-policy":
		switch r[2] {
		case "permit-all":
			x.c.DefaultPolicy = model.Permit
		case "deny-all":
			x.c.DefaultPolicy = model.Deny
		default:
			return x.errorf(s, "security policies", "invalid default-policy %q", r[2])
		}
	case len(r) >= 1 && r[0] == "policies":
		x.unimplementedOnce("security policies", "security policies are not modeled")
	default:
		x.silent(s, "security")
	}
	return nil
}
