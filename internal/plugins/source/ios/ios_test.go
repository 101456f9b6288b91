package ios

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/batfish/batfish-sub054/internal/convert"
	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

const core1 = `!
hostname core1
!
banner motd ^C
Authorized access only
^C
!
vrf definition MGMT
 rd 1:1
!
interface GigabitEthernet0/0
 description uplink
 ip address 10.0.0.1 255.255.255.0
 ip access-group BLOCK in
 no shutdown
!
interface GigabitEthernet0/1
 switchport
 switchport mode access
 switchport access vlan 10
!
interface Loopback0
 vrf forwarding MGMT
 ip address 192.0.2.1 255.255.255.255
 shutdown
!
ip access-list extended BLOCK
 10 permit tcp any host 10.0.0.1 eq 22
 20 deny ip object-group SERVERS any
 remark end
!
object-group network SERVERS
 network-object 10.1.0.0 255.255.0.0
 network-object host 10.2.0.1
!
ip prefix-list PL seq 5 permit 10.0.0.0/8 le 24
ip community-list standard CL permit 65000:1
ip as-path access-list AP permit ^65000_
!
route-map RM permit 10
 match ip address prefix-list PL
 set local-preference 200
route-map RM deny 20
 match community MISSING
!
ip route 0.0.0.0 0.0.0.0 10.0.0.254
ip route vrf MGMT 198.51.100.0 255.255.255.0 192.0.2.254
end
`

func newInput(text string, f format.Format) *plugins.Input {
	return &plugins.Input{
		Filename: "configs/r1.cfg",
		Text:     text,
		Format:   f,
		Warnings: warnings.New(nil, warnings.DefaultSettings()),
	}
}

func extract(t *testing.T, text string) (*Configuration, *warnings.Warnings) {
	t.Helper()
	g := New()
	in := newInput(text, format.CiscoIOS)
	tree, err := g.Parse(context.Background(), in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	cfg, err := g.Extract(context.Background(), tree, in)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return cfg.(*Configuration), in.Warnings
}

func TestGrammar_Formats(t *testing.T) {
	r := plugins.NewRegistry()
	if err := r.Register(New()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for _, f := range []format.Format{format.Arista, format.CiscoIOS, format.CiscoNX} {
		if _, err := r.Lookup(f); err != nil {
			t.Errorf("Lookup(%s): %v", f, err)
		}
	}
}

func TestExtract(t *testing.T) {
	c, w := extract(t, core1)

	if c.Hostname() != "core1" {
		t.Errorf("hostname = %q", c.Hostname())
	}
	if c.Unrecognized() {
		t.Errorf("unexpected unrecognized lines: %+v", w.ParseWarnings)
	}
	if got := c.Banners["motd"]; got != "Authorized access only" {
		t.Errorf("banner = %q", got)
	}
	if len(c.Interfaces) != 3 {
		t.Fatalf("expected 3 interfaces, got %d", len(c.Interfaces))
	}

	uplink := c.Interfaces["GigabitEthernet0/0"]
	if len(uplink.Addresses) != 1 || uplink.Addresses[0] != netip.MustParsePrefix("10.0.0.1/24") {
		t.Errorf("uplink addresses = %v", uplink.Addresses)
	}
	if uplink.InFilter != "BLOCK" || uplink.Description != "uplink" {
		t.Errorf("uplink = %+v", uplink)
	}
	access := c.Interfaces["GigabitEthernet0/1"]
	if !access.Switchport || access.SwitchportMode != model.SwitchportAccess || access.AccessVlan != 10 {
		t.Errorf("access port = %+v", access)
	}
	if lo := c.Interfaces["Loopback0"]; !lo.Shutdown || lo.Vrf != "MGMT" {
		t.Errorf("loopback = %+v", lo)
	}

	acl := c.AccessLists["BLOCK"]
	if acl == nil || len(acl.Lines) != 2 {
		t.Fatalf("BLOCK = %+v", acl)
	}
	first := acl.Lines[0]
	if first.Protocol != "tcp" || !first.Src.Any || first.Dst.Prefix != netip.MustParsePrefix("10.0.0.1/32") || first.DstPorts != "22" {
		t.Errorf("first ACL line = %+v", first)
	}
	if second := acl.Lines[1]; second.Action != model.Deny || second.Src.Group != "SERVERS" {
		t.Errorf("second ACL line = %+v", second)
	}

	og := c.ObjectGroups["SERVERS"]
	want := []netip.Prefix{netip.MustParsePrefix("10.1.0.0/16"), netip.MustParsePrefix("10.2.0.1/32")}
	if og == nil || len(og.Prefixes) != 2 || og.Prefixes[0] != want[0] || og.Prefixes[1] != want[1] {
		t.Errorf("SERVERS = %+v", og)
	}

	pl := c.PrefixLists["PL"]
	if pl == nil || len(pl.Lines) != 1 || pl.Lines[0].MinLength != 8 || pl.Lines[0].MaxLength != 24 {
		t.Errorf("PL = %+v", pl)
	}
	if rm := c.RouteMaps["RM"]; rm == nil || len(rm.Clauses) != 2 || rm.Clauses[20].Action != model.Deny {
		t.Errorf("RM = %+v", rm)
	}
	if len(c.StaticRoutes) != 2 || c.StaticRoutes[1].Vrf != "MGMT" {
		t.Errorf("static routes = %+v", c.StaticRoutes)
	}

	sm := c.Structures()
	if !sm.IsDefined(typeAccessList, "BLOCK") || sm.Referrers(typeAccessList, "BLOCK") != 1 {
		t.Errorf("BLOCK bookkeeping: defined=%v referrers=%d", sm.IsDefined(typeAccessList, "BLOCK"), sm.Referrers(typeAccessList, "BLOCK"))
	}
	if _, ok := sm.Undefined()[typeCommunityList]["MISSING"]; !ok {
		t.Errorf("expected MISSING to be an undefined reference, got %v", sm.Undefined())
	}
}

func TestToVendorIndependentConfigurations(t *testing.T) {
	c, _ := extract(t, core1)
	c.SetFilename("configs/r1.cfg")
	c.SetFormat(format.CiscoIOS)
	w := warnings.New(nil, warnings.DefaultSettings())
	c.SetWarnings(w)

	nodes, err := c.ToVendorIndependentConfigurations(context.Background(), vendor.EmptyConversionContext(), vendor.EmptyRuntimeData())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected one node, got %d", len(nodes))
	}
	node := nodes[0]
	if node.DefaultCrossZoneAction == nil || node.DefaultInboundAction == nil {
		t.Fatal("default actions must be set")
	}
	if node.SourceFile != "configs/r1.cfg" {
		t.Errorf("source file = %q", node.SourceFile)
	}

	lo, _ := node.Interfaces.Get("Loopback0")
	if lo.Active || lo.Vrf != "MGMT" || lo.Bandwidth == nil || *lo.Bandwidth != 8e9 {
		t.Errorf("Loopback0 = %+v", lo)
	}
	rm, _ := node.RoutingPolicies.Get("RM")
	if len(rm.Statements) != 2 || rm.Statements[0].Result != model.Accept || rm.Statements[1].Result != model.Reject {
		t.Errorf("RM statements = %+v", rm.Statements)
	}
	if len(w.RedFlags) != 1 {
		t.Errorf("expected one red flag for the undefined community-list, got %+v", w.RedFlags)
	}
	mgmt, _ := node.Vrfs.Get("MGMT")
	if len(mgmt.StaticRoutes) != 1 || mgmt.StaticRoutes[0].NextHop != "192.0.2.254" {
		t.Errorf("MGMT routes = %+v", mgmt.StaticRoutes)
	}
	block, _ := node.IpAccessLists.Get("BLOCK")
	if block.Lines[1].Src == nil || block.Lines[1].Src.Refs[0] != "SERVERS" {
		t.Errorf("BLOCK line 2 src = %+v", block.Lines[1].Src)
	}

	if err := convert.Finalize(node, w); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestParse_UnterminatedBanner(t *testing.T) {
	in := newInput("hostname r1\nbanner motd ^C\nhello\n", format.CiscoIOS)
	_, err := New().Parse(context.Background(), in)
	var ee *plugins.ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if ee.Line != 2 {
		t.Errorf("line = %d, want 2", ee.Line)
	}
}

func TestParse_EOFBanner(t *testing.T) {
	c, _ := extract(t, "banner login\nWelcome\nEOF\nhostname sw1\n")
	if c.Banners["login"] != "Welcome" || c.Hostname() != "sw1" {
		t.Errorf("banner=%q hostname=%q", c.Banners["login"], c.Hostname())
	}
}

func TestExtract_InvalidAddress(t *testing.T) {
	g := New()
	in := newInput("interface Gi0/0\n ip address 10.0.0.300 255.255.255.0\n", format.CiscoIOS)
	tree, err := g.Parse(context.Background(), in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = g.Extract(context.Background(), tree, in)
	var ee *plugins.ExtractError
	if !errors.As(err, &ee) || ee.Line != 2 {
		t.Fatalf("expected ExtractError on line 2, got %v", err)
	}
}

func TestExtract_Unrecognized(t *testing.T) {
	c, w := extract(t, "hostname r1\nfrobnicate everything\n")
	if !c.Unrecognized() {
		t.Error("expected unrecognized")
	}
	if len(w.ParseWarnings) != 1 || w.ParseWarnings[0].Line != 2 {
		t.Errorf("parse warnings = %+v", w.ParseWarnings)
	}
}

func TestMaskLength(t *testing.T) {
	tests := []struct {
		mask     string
		wildcard bool
		want     int
		wantErr  bool
	}{
		{"255.255.255.0", false, 24, false},
		{"255.255.255.255", false, 32, false},
		{"0.0.0.0", false, 0, false},
		{"0.0.0.255", true, 24, false},
		{"0.0.255.255", true, 16, false},
		{"255.0.255.0", false, 0, true},
		{"not-a-mask", false, 0, true},
	}
	for _, tt := range tests {
		got, err := maskLength(tt.mask, tt.wildcard)
		if (err != nil) != tt.wantErr {
			t.Errorf("maskLength(%q) error = %v", tt.mask, err)
			continue
		}
		if got != tt.want {
			t.Errorf("maskLength(%q) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}

func TestPortMatch(t *testing.T) {
	tests := []struct {
		words []string
		want  string
		used  int
	}{
		{[]string{"eq", "ssh"}, "22", 2},
		{[]string{"eq", "443", "log"}, "443", 2},
		{[]string{"range", "1000", "2000"}, "1000-2000", 3},
		{[]string{"gt", "1023"}, "1024-65535", 2},
		{[]string{"log"}, "", 0},
	}
	for _, tt := range tests {
		got, used, err := portMatch(tt.words)
		if err != nil || got != tt.want || used != tt.used {
			t.Errorf("portMatch(%v) = %q, %d, %v", tt.words, got, used, err)
		}
	}
}
