package ios

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/warnings"
	"github.com/batfish/batfish-sub054/pkg/parsetree"
)

// Top-level commands that are understood but carry nothing this model keeps.
var ignoredTop = map[string]bool{
	"aaa":            true,
	"alias":          true,
	"archive":        true,
	"boot":           true,
	"cdp":            true,
	"class-map":      true,
	"clock":          true,
	"control-plane":  true,
	"crypto":         true,
	"daemon":         true,
	"enable":         true,
	"end":            true,
	"errdisable":     true,
	"feature":        true,
	"hardware":       true,
	"ip":             true,
	"ipv6":           true,
	"license":        true,
	"line":           true,
	"lldp":           true,
	"logging":        true,
	"management":     true,
	"no":             true,
	"ntp":            true,
	"policy-map":     true,
	"radius-server":  true,
	"redundancy":     true,
	"service":        true,
	"snmp-server":    true,
	"spanning-tree":  true,
	"tacacs-server":  true,
	"transceiver":    true,
	"username":       true,
	"version":        true,
	"vlan":           true,
	"vtp":            true,
	"Building":       true,
	"Current":        true,
	"exception":      true,
	"platform":       true,
	"system":         true,
	"terminal":       true,
	"call-home":      true,
	"key":            true,
	"power":          true,
	"mac":            true,
	"track":          true,
	"monitor":        true,
	"queue-monitor":  true,
	"event":          true,
	"dns":            true,
	"privilege":      true,
	"login":          true,
	"scheduler":      true,
	"interface-type": true,
}

var ignoredInterface = map[string]bool{
	"cdp":              true,
	"channel-group":    true,
	"duplex":           true,
	"load-interval":    true,
	"mtu":              true,
	"negotiation":      true,
	"spanning-tree":    true,
	"speed":            true,
	"storm-control":    true,
	"lldp":             true,
	"encapsulation":    true,
	"media-type":       true,
	"keepalive":        true,
	"ipv6":             true,
	"service-policy":   true,
	"flowcontrol":      true,
	"logging":          true,
	"mls":              true,
	"snmp":             true,
	"carrier-delay":    true,
	"hold-queue":       true,
	"medium":           true,
	"no":               true,
	"priority-queue":   true,
	"udld":             true,
	"vpc":              true,
	"auto":             true,
	"error-correction": true,
}

type extractor struct {
	c    *Configuration
	tree *Tree
	w    *warnings.Warnings
}

func (x *extractor) errorf(n *parsetree.Node, ctx, format string, args ...any) error {
	return &plugins.ExtractError{Line: n.Line, Text: n.Text, Context: ctx, Msg: fmt.Sprintf(format, args...)}
}

func (x *extractor) unrecognized(n *parsetree.Node, ctx string) {
	x.c.MarkUnrecognized()
	x.w.AddParseWarning(warnings.ParseWarning{
		Line:          n.Line,
		Text:          n.Text,
		ParserContext: ctx,
		Comment:       "This syntax is unrecognized",
	})
}

func (x *extractor) top(n *parsetree.Node) error {
	switch {
	case strings.HasPrefix(n.Text, "!"):
		x.tree.AddSilent(n, "comment")
	case n.HasPrefix("hostname"), n.HasPrefix("switchname"):
		if n.Arg(1) == "" {
			return x.errorf(n, "hostname", "missing hostname")
		}
		x.c.SetHostname(strings.Trim(n.Arg(1), `"`))
	case n.HasPrefix("interface"):
		return x.interfaceBlock(n)
	case n.HasPrefix("ip", "access-list"):
		return x.namedAccessList(n)
	case n.HasPrefix("access-list"):
		return x.numberedAccessList(n)
	case n.HasPrefix("object-group", "network"):
		return x.objectGroup(n, n.Arg(2))
	case n.HasPrefix("object-group", "ip", "address"):
		return x.objectGroup(n, n.Arg(3))
	case n.HasPrefix("ip", "prefix-list"):
		return x.prefixList(n)
	case n.HasPrefix("ip", "community-list"):
		return x.communityList(n)
	case n.HasPrefix("ip", "as-path", "access-list"):
		return x.asPathList(n)
	case n.HasPrefix("route-map"):
		return x.routeMap(n)
	case n.HasPrefix("vrf", "definition"), n.HasPrefix("ip", "vrf"),
		n.HasPrefix("vrf", "context"), n.HasPrefix("vrf", "instance"):
		return x.vrf(n)
	case n.HasPrefix("ip", "route"):
		return x.staticRoute(n, n.Words[2:], "")
	case n.HasPrefix("zone", "security"):
		return x.zone(n)
	case n.HasPrefix("zone-pair", "security"):
		return x.zonePair(n)
	case n.HasPrefix("router"):
		x.w.Unimplemented("router %s (line %d) is not modeled", strings.Join(n.Words[1:], " "), n.Line)
	case ignoredTop[n.Keyword()]:
		x.tree.AddSilent(n, "ignored")
	default:
		x.unrecognized(n, "top")
	}
	return nil
}

func (x *extractor) interfaceBlock(n *parsetree.Node) error {
	if len(n.Words) < 2 {
		return x.errorf(n, "interface", "missing interface name")
	}
	name := strings.Join(n.Words[1:], "")
	i := x.c.iface(name)
	sm := x.c.Structures()
	sm.Define(typeInterface, name, n.Line)

	for _, ch := range n.Children {
		switch {
		case ch.HasPrefix("description"):
			i.Description = strings.TrimSpace(strings.TrimPrefix(ch.Text, "description"))
		case ch.HasPrefix("ip", "address"):
			if ch.Arg(2) == "dhcp" {
				x.w.Unimplemented("interface %s: DHCP addressing is not modeled", name)
				continue
			}
			p, err := interfaceAddress(ch.Words[2:])
			if err != nil {
				return x.errorf(ch, "interface", "interface %s: %v", name, err)
			}
			i.Addresses = append(i.Addresses, p)
		case ch.HasPrefix("no", "ip", "address"):
			i.Addresses = nil
		case ch.HasPrefix("shutdown"):
			i.Shutdown = true
		case ch.HasPrefix("no", "shutdown"):
			i.Shutdown = false
		case len(ch.Words) == 1 && ch.Keyword() == "switchport":
			i.Switchport = true
		case ch.HasPrefix("no", "switchport"):
			i.Switchport = false
		case ch.HasPrefix("switchport", "mode"):
			switch ch.Arg(2) {
			case "access":
				i.SwitchportMode = model.SwitchportAccess
			case "trunk":
				i.SwitchportMode = model.SwitchportTrunk
			default:
				x.w.Unimplemented("interface %s: switchport mode %q is not modeled", name, ch.Arg(2))
			}
		case ch.HasPrefix("switchport", "access", "vlan"):
			vlan, err := strconv.Atoi(ch.Arg(3))
			if err != nil || vlan < 1 || vlan > 4094 {
				return x.errorf(ch, "interface", "interface %s: invalid vlan %q", name, ch.Arg(3))
			}
			i.AccessVlan = vlan
		case ch.HasPrefix("switchport"):
			x.tree.AddSilent(ch, "interface")
		case ch.HasPrefix("ip", "access-group"):
			acl, dir := ch.Arg(2), ch.Arg(3)
			switch dir {
			case "in":
				i.InFilter = acl
				sm.Refer(typeAccessList, acl, "interface incoming filter", ch.Line)
			case "out":
				i.OutFilter = acl
				sm.Refer(typeAccessList, acl, "interface outgoing filter", ch.Line)
			default:
				return x.errorf(ch, "interface", "interface %s: access-group direction must be in or out", name)
			}
		case ch.HasPrefix("vrf", "forwarding"), ch.HasPrefix("ip", "vrf", "forwarding"),
			ch.HasPrefix("vrf", "member"), len(ch.Words) == 2 && ch.Keyword() == "vrf":
			i.Vrf = ch.Words[len(ch.Words)-1]
			sm.Refer(typeVrf, i.Vrf, "interface vrf", ch.Line)
		case ch.HasPrefix("zone-member", "security"):
			i.Zone = ch.Arg(2)
			sm.Refer(typeZone, i.Zone, "interface zone-member", ch.Line)
		case ch.HasPrefix("bandwidth"):
			kbps, err := strconv.ParseFloat(ch.Arg(1), 64)
			if err != nil || kbps <= 0 {
				return x.errorf(ch, "interface", "interface %s: invalid bandwidth %q", name, ch.Arg(1))
			}
			bw := kbps * 1000
			i.Bandwidth = &bw
		case ch.Keyword() == "ip" || ignoredInterface[ch.Keyword()]:
			x.tree.AddSilent(ch, "interface")
		default:
			x.w.Unimplemented("interface %s: %q (line %d) is not modeled", name, ch.Text, ch.Line)
		}
	}
	return nil
}

// namedAccessList handles "ip access-list [extended|standard] NAME" blocks.
func (x *extractor) namedAccessList(n *parsetree.Node) error {
	name, standard := n.Arg(2), false
	switch n.Arg(2) {
	case "standard", "extended":
		name, standard = n.Arg(3), n.Arg(2) == "standard"
	}
	if name == "" {
		return x.errorf(n, "ip access-list", "missing access-list name")
	}
	acl := x.c.accessList(name, standard)
	x.c.Structures().Define(typeAccessList, name, n.Line)
	for _, ch := range n.Children {
		words := ch.Words
		if _, err := strconv.Atoi(words[0]); err == nil {
			words = words[1:]
		}
		if len(words) == 0 {
			return x.errorf(ch, "ip access-list", "missing action")
		}
		switch words[0] {
		case "permit", "deny":
			line, err := x.aclLine(ch, name, words, standard)
			if err != nil {
				return err
			}
			acl.Lines = append(acl.Lines, line)
		case "remark", "statistics", "description":
			x.tree.AddSilent(ch, "ip access-list")
		default:
			x.w.Unimplemented("ip access-list %s: %q (line %d) is not modeled", name, ch.Text, ch.Line)
		}
	}
	return nil
}

// numberedAccessList handles "access-list N permit|deny ...". Numbers
// 1-99 and 1300-1999 are standard lists.
func (x *extractor) numberedAccessList(n *parsetree.Node) error {
	num, err := strconv.Atoi(n.Arg(1))
	if err != nil {
		x.unrecognized(n, "access-list")
		return nil
	}
	standard := (num >= 1 && num <= 99) || (num >= 1300 && num <= 1999)
	name := n.Arg(1)
	words := n.Words[2:]
	if len(words) == 0 {
		return x.errorf(n, "access-list", "missing action")
	}
	switch words[0] {
	case "permit", "deny":
	case "remark":
		x.tree.AddSilent(n, "access-list")
		return nil
	default:
		x.w.Unimplemented("access-list %s: %q (line %d) is not modeled", name, n.Text, n.Line)
		return nil
	}
	line, err := x.aclLine(n, name, words, standard)
	if err != nil {
		return err
	}
	acl := x.c.accessList(name, standard)
	acl.Lines = append(acl.Lines, line)
	x.c.Structures().Define(typeAccessList, name, n.Line)
	return nil
}

// aclLine parses "permit|deny ..." starting at words[0].
func (x *extractor) aclLine(n *parsetree.Node, acl string, words []string, standard bool) (AclLine, error) {
	line := AclLine{Text: strings.Join(words, " "), Action: model.Permit, Protocol: "ip"}
	if words[0] == "deny" {
		line.Action = model.Deny
	}
	rest := words[1:]
	if !standard {
		if len(rest) == 0 {
			return line, x.errorf(n, "ip access-list", "missing protocol")
		}
		line.Protocol = rest[0]
		rest = rest[1:]
	}

	src, k, err := aclAddress(rest)
	if err != nil {
		return line, x.errorf(n, "ip access-list", "%v", err)
	}
	line.Src, rest = src, rest[k:]
	if standard {
		line.Dst = Address{Any: true}
		x.referGroup(src, acl, "ip access-list source", n.Line)
		return line, nil
	}

	srcPorts, k, err := portMatch(rest)
	if err != nil {
		return line, x.errorf(n, "ip access-list", "%v", err)
	}
	if srcPorts != "" {
		x.w.Unimplemented("ip access-list %s: source port match %q is not modeled", acl, srcPorts)
	}
	rest = rest[k:]

	dst, k, err := aclAddress(rest)
	if err != nil {
		return line, x.errorf(n, "ip access-list", "%v", err)
	}
	line.Dst, rest = dst, rest[k:]
	dstPorts, _, err := portMatch(rest)
	if err != nil {
		return line, x.errorf(n, "ip access-list", "%v", err)
	}
	line.DstPorts = dstPorts

	x.referGroup(src, acl, "ip access-list source", n.Line)
	x.referGroup(dst, acl, "ip access-list destination", n.Line)
	return line, nil
}

func (x *extractor) referGroup(a Address, acl, usage string, line int) {
	if a.Group != "" {
		x.c.Structures().Refer(typeObjectGroup, a.Group, usage, line)
	}
}

func (x *extractor) objectGroup(n *parsetree.Node, name string) error {
	if name == "" {
		return x.errorf(n, "object-group", "missing object-group name")
	}
	og, ok := x.c.ObjectGroups[name]
	if !ok {
		og = &ObjectGroup{Name: name}
		x.c.ObjectGroups[name] = og
	}
	x.c.Structures().Define(typeObjectGroup, name, n.Line)
	for _, ch := range n.Children {
		words := ch.Words
		if _, err := strconv.Atoi(words[0]); err == nil {
			words = words[1:]
		}
		if len(words) == 0 {
			continue
		}
		switch words[0] {
		case "description":
			x.tree.AddSilent(ch, "object-group")
			continue
		case "group-object":
			if len(words) < 2 {
				return x.errorf(ch, "object-group", "missing group name")
			}
			og.Groups = append(og.Groups, words[1])
			x.c.Structures().Refer(typeObjectGroup, words[1], "object-group group-object", ch.Line)
			continue
		case "network-object":
			words = words[1:]
		}

		var p netip.Prefix
		var err error
		if len(words) == 2 && words[0] != "host" {
			p, err = addressWithMask(words[0], words[1])
			p = p.Masked()
		} else {
			var a Address
			a, _, err = aclAddress(words)
			p = a.Prefix
			if err == nil && !p.IsValid() {
				err = fmt.Errorf("expected an address")
			}
		}
		if err != nil {
			return x.errorf(ch, "object-group", "object-group %s: %v", name, err)
		}
		og.Prefixes = append(og.Prefixes, p)
	}
	return nil
}

func (x *extractor) prefixList(n *parsetree.Node) error {
	name := n.Arg(2)
	if name == "" {
		return x.errorf(n, "ip prefix-list", "missing prefix-list name")
	}
	pl, ok := x.c.PrefixLists[name]
	if !ok {
		pl = &PrefixList{Name: name}
		x.c.PrefixLists[name] = pl
	}
	x.c.Structures().Define(typePrefixList, name, n.Line)

	entry := func(node *parsetree.Node, words []string) error {
		if len(words) >= 2 && words[0] == "seq" {
			words = words[2:]
		}
		if len(words) == 0 || words[0] == "description" {
			x.tree.AddSilent(node, "ip prefix-list")
			return nil
		}
		line, err := prefixListLine(words)
		if err != nil {
			return x.errorf(node, "ip prefix-list", "prefix-list %s: %v", name, err)
		}
		pl.Lines = append(pl.Lines, line)
		return nil
	}
	if len(n.Words) > 3 {
		return entry(n, n.Words[3:])
	}
	for _, ch := range n.Children {
		if err := entry(ch, ch.Words); err != nil {
			return err
		}
	}
	return nil
}

// prefixListLine parses "permit|deny P [ge N] [le N]".
func prefixListLine(words []string) (model.RouteFilterLine, error) {
	var line model.RouteFilterLine
	switch words[0] {
	case "permit":
		line.Action = model.Permit
	case "deny":
		line.Action = model.Deny
	default:
		return line, fmt.Errorf("expected permit or deny, got %q", words[0])
	}
	if len(words) < 2 {
		return line, fmt.Errorf("missing prefix")
	}
	p, err := netip.ParsePrefix(words[1])
	if err != nil || !p.Addr().Is4() {
		return line, fmt.Errorf("invalid prefix %q", words[1])
	}
	line.Prefix = p.Masked()
	line.MinLength, line.MaxLength = p.Bits(), p.Bits()
	rest := words[2:]
	for len(rest) >= 2 {
		v, err := strconv.Atoi(rest[1])
		if err != nil {
			return line, fmt.Errorf("invalid length %q", rest[1])
		}
		switch rest[0] {
		case "ge":
			line.MinLength, line.MaxLength = v, 32
		case "le":
			line.MaxLength = v
		default:
			return line, fmt.Errorf("unexpected %q", rest[0])
		}
		rest = rest[2:]
	}
	if len(rest) != 0 {
		return line, fmt.Errorf("unexpected %q", rest[0])
	}
	if line.MinLength < p.Bits() || line.MinLength > line.MaxLength || line.MaxLength > 32 {
		return line, fmt.Errorf("invalid length range %d-%d for %s", line.MinLength, line.MaxLength, p)
	}
	return line, nil
}

// communityList handles numbered, standard and expanded community lists.
func (x *extractor) communityList(n *parsetree.Node) error {
	words := n.Words[2:]
	if len(words) > 0 && (words[0] == "standard" || words[0] == "expanded") {
		words = words[1:]
	}
	if len(words) < 3 {
		return x.errorf(n, "ip community-list", "incomplete community-list")
	}
	name, words := words[0], words[1:]
	if words[0] == "seq" && len(words) > 2 {
		words = words[2:]
	}
	cl, ok := x.c.CommunityLists[name]
	if !ok {
		cl = &CommunityList{Name: name}
		x.c.CommunityLists[name] = cl
	}
	x.c.Structures().Define(typeCommunityList, name, n.Line)
	switch words[0] {
	case "permit":
		cl.Members = append(cl.Members, words[1:]...)
	case "deny":
		x.w.Unimplemented("ip community-list %s: deny lines are not modeled", name)
	default:
		return x.errorf(n, "ip community-list", "expected permit or deny, got %q", words[0])
	}
	return nil
}

func (x *extractor) asPathList(n *parsetree.Node) error {
	words := n.Words[3:]
	if len(words) < 3 {
		return x.errorf(n, "ip as-path access-list", "incomplete as-path access-list")
	}
	name, words := words[0], words[1:]
	if words[0] == "seq" && len(words) > 2 {
		words = words[2:]
	}
	al, ok := x.c.AsPathLists[name]
	if !ok {
		al = &AsPathList{Name: name}
		x.c.AsPathLists[name] = al
	}
	x.c.Structures().Define(typeAsPathList, name, n.Line)
	switch words[0] {
	case "permit":
		al.Regexes = append(al.Regexes, strings.Join(words[1:], " "))
	case "deny":
		x.w.Unimplemented("ip as-path access-list %s: deny lines are not modeled", name)
	default:
		return x.errorf(n, "ip as-path access-list", "expected permit or deny, got %q", words[0])
	}
	return nil
}

// routeMap handles "route-map NAME [permit|deny] [SEQ]". The action
// defaults to permit and the sequence to 10.
func (x *extractor) routeMap(n *parsetree.Node) error {
	name := n.Arg(1)
	if name == "" {
		return x.errorf(n, "route-map", "missing route-map name")
	}
	action, seq := model.Permit, 10
	for _, word := range n.Words[2:] {
		switch word {
		case "permit":
			action = model.Permit
		case "deny":
			action = model.Deny
		default:
			v, err := strconv.Atoi(word)
			if err != nil {
				return x.errorf(n, "route-map", "invalid sequence number %q", word)
			}
			seq = v
		}
	}
	rm, ok := x.c.RouteMaps[name]
	if !ok {
		rm = &RouteMap{Name: name, Clauses: make(map[int]*RouteMapClause)}
		x.c.RouteMaps[name] = rm
	}
	sm := x.c.Structures()
	sm.Define(typeRouteMap, name, n.Line)
	clause, ok := rm.Clauses[seq]
	if !ok {
		clause = &RouteMapClause{Seq: seq, Line: n.Line}
		rm.Clauses[seq] = clause
	}
	clause.Action = action

	for _, ch := range n.Children {
		switch {
		case ch.HasPrefix("match", "ip", "address", "prefix-list"):
			for _, pl := range ch.Words[4:] {
				clause.PrefixLists = append(clause.PrefixLists, pl)
				sm.Refer(typePrefixList, pl, "route-map match prefix-list", ch.Line)
			}
		case ch.HasPrefix("match", "community"):
			for _, cl := range ch.Words[2:] {
				if cl == "exact-match" {
					continue
				}
				clause.Communities = append(clause.Communities, cl)
				sm.Refer(typeCommunityList, cl, "route-map match community", ch.Line)
			}
		case ch.HasPrefix("match", "as-path"):
			for _, al := range ch.Words[2:] {
				clause.AsPaths = append(clause.AsPaths, al)
				sm.Refer(typeAsPathList, al, "route-map match as-path", ch.Line)
			}
		case ch.HasPrefix("set") && len(ch.Words) > 1:
			clause.Sets = append(clause.Sets, strings.Join(ch.Words[1:], " "))
		case ch.HasPrefix("description"):
			x.tree.AddSilent(ch, "route-map")
		default:
			x.w.Unimplemented("route-map %s %d: %q (line %d) is not modeled", name, seq, ch.Text, ch.Line)
		}
	}
	return nil
}

func (x *extractor) vrf(n *parsetree.Node) error {
	name := n.Arg(2)
	if name == "" {
		return x.errorf(n, "vrf", "missing vrf name")
	}
	x.c.Vrfs[name] = true
	x.c.Structures().Define(typeVrf, name, n.Line)
	for _, ch := range n.Children {
		if ch.HasPrefix("ip", "route") {
			if err := x.staticRoute(ch, ch.Words[2:], name); err != nil {
				return err
			}
			continue
		}
		x.tree.AddSilent(ch, "vrf")
	}
	return nil
}

// staticRoute parses "[vrf V] PREFIX [MASK] NEXTHOP [DISTANCE]".
func (x *extractor) staticRoute(n *parsetree.Node, words []string, vrf string) error {
	if len(words) >= 2 && words[0] == "vrf" {
		vrf, words = words[1], words[2:]
	}
	p, used, err := networkPrefix(words)
	if err != nil {
		return x.errorf(n, "ip route", "%v", err)
	}
	if len(words) <= used {
		return x.errorf(n, "ip route", "missing next hop")
	}
	if vrf != "" {
		x.c.Structures().Refer(typeVrf, vrf, "static route vrf", n.Line)
	}
	x.c.StaticRoutes = append(x.c.StaticRoutes, StaticRoute{Vrf: vrf, Prefix: p, NextHop: words[used]})
	return nil
}

func (x *extractor) zone(n *parsetree.Node) error {
	name := n.Arg(2)
	if name == "" {
		return x.errorf(n, "zone security", "missing zone name")
	}
	x.c.Zones[name] = true
	x.c.Structures().Define(typeZone, name, n.Line)
	for _, ch := range n.Children {
		x.tree.AddSilent(ch, "zone security")
	}
	return nil
}

// zonePair handles "zone-pair security NAME source Z1 destination Z2".
func (x *extractor) zonePair(n *parsetree.Node) error {
	zp := ZonePair{Name: n.Arg(2)}
	for i := 3; i+1 < len(n.Words); i += 2 {
		switch n.Words[i] {
		case "source":
			zp.Source = n.Words[i+1]
		case "destination":
			zp.Destination = n.Words[i+1]
		}
	}
	if zp.Name == "" || zp.Source == "" || zp.Destination == "" {
		return x.errorf(n, "zone-pair", "zone-pair needs a name, a source and a destination")
	}
	sm := x.c.Structures()
	sm.Refer(typeZone, zp.Source, "zone-pair source", n.Line)
	sm.Refer(typeZone, zp.Destination, "zone-pair destination", n.Line)
	x.c.ZonePairs = append(x.c.ZonePairs, zp)
	for _, ch := range n.Children {
		x.w.Unimplemented("zone-pair %s: %q is not modeled", zp.Name, ch.Text)
	}
	return nil
}
