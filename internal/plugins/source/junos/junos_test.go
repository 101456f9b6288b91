package junos

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/batfish/batfish-sub054/internal/convert"
	"github.com/batfish/batfish-sub054/internal/flatten"
	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

const fw1 = `## Last commit: 2024-01-01 10:00:00 UTC
set version 12.1X46
set system host-name FW1
set system services ssh
set interfaces ge-0/0/0 description uplink
set interfaces ge-0/0/0 unit 0 family inet address 10.0.0.1/24
set interfaces ge-0/0/0 unit 0 family inet filter input PROTECT
set interfaces ge-0/0/1 unit 0 family ethernet-switching interface-mode trunk
set interfaces lo0 unit 0 family inet address 192.0.2.1/32
set firewall family inet filter PROTECT term ssh from source-prefix-list MGMT
set firewall family inet filter PROTECT term ssh from protocol tcp
set firewall family inet filter PROTECT term ssh from destination-port ssh
set firewall family inet filter PROTECT term ssh then accept
set firewall family inet filter PROTECT term rest then discard
set policy-options prefix-list MGMT 10.10.0.0/16
set policy-options community CUST members 65000:100
set policy-options as-path-group PEERS as-path a1 "^65001 .*"
set policy-options as-path-group PEERS as-path a2 "^65002 .*"
set policy-options policy-statement EXPORT term t1 from prefix-list MGMT
set policy-options policy-statement EXPORT term t1 from route-filter 172.16.0.0/12 orlonger
set policy-options policy-statement EXPORT term t1 then accept
set policy-options policy-statement EXPORT term t2 from community NOPE
set policy-options policy-statement EXPORT term t2 then accept
set policy-options policy-statement EXPORT then reject
set routing-instances CUST instance-type virtual-router
set routing-instances CUST interface lo0.0
set routing-instances CUST routing-options static route 0.0.0.0/0 next-hop 10.0.0.254
set routing-options static route 198.51.100.0/24 discard
set security zones security-zone trust interfaces ge-0/0/0.0
set security policies default-policy permit-all
set protocols bgp group g neighbor 192.0.2.9
set protocols bgp group g type external
`

func parseAndExtract(in *plugins.Input) (vendor.Configuration, error) {
	g := New()
	tree, err := g.Parse(context.Background(), in)
	if err != nil {
		return nil, err
	}
	return g.Extract(context.Background(), tree, in)
}

func newInput(text string) *plugins.Input {
	return &plugins.Input{
		Filename: "configs/fw1.cfg",
		Text:     text,
		Format:   format.FlatJuniper,
		Warnings: warnings.New(nil, warnings.DefaultSettings()),
	}
}

func mustExtract(t *testing.T, text string) (*Configuration, *warnings.Warnings) {
	t.Helper()
	in := newInput(text)
	cfg, err := parseAndExtract(in)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	return cfg.(*Configuration), in.Warnings
}

func TestExtract(t *testing.T) {
	c, w := mustExtract(t, fw1)
	if c.Hostname() != "FW1" {
		t.Errorf("hostname = %q", c.Hostname())
	}
	if c.Unrecognized() {
		t.Errorf("unexpected unrecognized lines: %+v", w.ParseWarnings)
	}

	u := c.Interfaces["ge-0/0/0"].Units[0]
	if len(u.Addresses) != 1 || u.Addresses[0] != netip.MustParsePrefix("10.0.0.1/24") || u.InFilter != "PROTECT" {
		t.Errorf("ge-0/0/0.0 = %+v", u)
	}
	if sw := c.Interfaces["ge-0/0/1"].Units[0]; !sw.Switching || sw.Mode != model.SwitchportTrunk {
		t.Errorf("ge-0/0/1.0 = %+v", sw)
	}

	f := c.Filters["PROTECT"]
	if f == nil || len(f.Terms) != 2 {
		t.Fatalf("PROTECT = %+v", f)
	}
	ssh := f.Terms[0]
	if ssh.Action != model.Permit || len(ssh.DstPorts) != 1 || ssh.DstPorts[0] != "22" || ssh.SourcePrefixLists[0] != "MGMT" {
		t.Errorf("ssh term = %+v", ssh)
	}
	if f.Terms[1].Action != model.Deny {
		t.Errorf("rest term = %+v", f.Terms[1])
	}

	if got := c.AsPathGroups["PEERS"].Members["a1"]; got != "^65001 .*" {
		t.Errorf("PEERS a1 = %q", got)
	}
	if p := c.Policies["EXPORT"]; len(p.Terms) != 3 || p.Terms[2].Name != "" || p.Terms[2].Result != model.Reject {
		t.Errorf("EXPORT = %+v", p)
	}

	bgp := 0
	for _, uw := range w.UnimplementedWarnings {
		if strings.Contains(uw.Text, "bgp") {
			bgp++
		}
	}
	if bgp != 1 {
		t.Errorf("expected one bgp warning, got %d", bgp)
	}
	if _, ok := c.Structures().Undefined()[typeCommunity]["NOPE"]; !ok {
		t.Errorf("expected NOPE as an undefined reference")
	}
}

func TestToVendorIndependentConfigurations(t *testing.T) {
	c, _ := mustExtract(t, fw1)
	c.SetFormat(format.FlatJuniper)
	w := warnings.New(nil, warnings.DefaultSettings())
	c.SetWarnings(w)

	nodes, err := c.ToVendorIndependentConfigurations(context.Background(), vendor.EmptyConversionContext(), vendor.EmptyRuntimeData())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	node := nodes[0]
	if *node.DefaultCrossZoneAction != model.Permit || *node.DefaultInboundAction != model.Deny {
		t.Errorf("default actions = %s/%s", *node.DefaultCrossZoneAction, *node.DefaultInboundAction)
	}
	if got := node.Interfaces.Keys(); len(got) != 6 {
		t.Errorf("interfaces = %v", got)
	}
	lo, _ := node.Interfaces.Get("lo0.0")
	if lo.Vrf != "CUST" {
		t.Errorf("lo0.0 vrf = %q", lo.Vrf)
	}
	up, _ := node.Interfaces.Get("ge-0/0/0.0")
	if up.Zone != "trust" {
		t.Errorf("ge-0/0/0.0 zone = %q", up.Zone)
	}

	acl, _ := node.IpAccessLists.Get("PROTECT")
	if len(acl.Lines) != 3 || acl.Lines[2].Action != model.Deny || acl.Lines[0].Src.Refs[0] != "MGMT" {
		t.Errorf("PROTECT lines = %+v", acl.Lines)
	}
	export, _ := node.RoutingPolicies.Get("EXPORT")
	if len(export.Statements) != 2 {
		t.Fatalf("EXPORT statements = %+v", export.Statements)
	}
	if rf := export.Statements[0].MatchRouteFilters; len(rf) != 2 || rf[1] != "~EXPORT~t1~" {
		t.Errorf("t1 route filters = %v", rf)
	}
	if len(w.RedFlags) != 1 {
		t.Errorf("expected one red flag for the undefined community, got %+v", w.RedFlags)
	}
	peers, _ := node.AsPathAccessLists.Get("PEERS")
	if len(peers.References) != 2 || !node.AsPathAccessLists.Has("PEERS/a1") {
		t.Errorf("PEERS = %+v", peers)
	}
	def, _ := node.Vrfs.Get(model.DefaultVrf)
	if len(def.StaticRoutes) != 1 || def.StaticRoutes[0].NextHop != "discard" {
		t.Errorf("default routes = %+v", def.StaticRoutes)
	}

	if err := convert.Finalize(node, w); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
}

func TestExtract_WillNotCommit(t *testing.T) {
	text := "set interfaces ge-0/0/2 unit 0 family inet address 10.1.1.1/24\n" +
		"set interfaces ge-0/0/2 unit 0 family ethernet-switching\n"
	_, err := parseAndExtract(newInput(text))
	var wnc *plugins.WillNotCommitError
	if !errors.As(err, &wnc) {
		t.Fatalf("expected WillNotCommitError, got %v", err)
	}
	if wnc.Line != 2 {
		t.Errorf("line = %d, want 2", wnc.Line)
	}
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"not a set line", "set system host-name r1\ninterfaces ge-0/0/0\n", 2},
		{"unterminated string", "set policy-options as-path A \"65000\n", 1},
		{"bare set", "set\n", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAndExtract(newInput(tt.text))
			var ee *plugins.ExtractError
			if !errors.As(err, &ee) {
				t.Fatalf("expected ExtractError, got %v", err)
			}
			if ee.Line != tt.line {
				t.Errorf("line = %d, want %d", ee.Line, tt.line)
			}
		})
	}
}

func TestExtract_FlattenedLineMapping(t *testing.T) {
	text := `system {
    host-name r1;
}
interfaces {
    ge-0/0/0 {
        unit 0 {
            family inet {
                address 10.0.0.300/24;
            }
        }
    }
}
`
	res, err := flatten.Flatten(format.Juniper, text)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	in := newInput(res.Text)
	in.Format = format.Juniper
	in.LineMap = res.LineMap

	_, err = parseAndExtract(in)
	var ee *plugins.ExtractError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractError, got %v", err)
	}
	if got := in.OriginalLine(ee.Line); got != 8 {
		t.Errorf("original line = %d, want 8", got)
	}
}

func TestRouteFilter(t *testing.T) {
	tests := []struct {
		words    []string
		min, max int
		wantErr  bool
	}{
		{[]string{"10.0.0.0/8", "exact"}, 8, 8, false},
		{[]string{"10.0.0.0/8", "orlonger"}, 8, 32, false},
		{[]string{"10.0.0.0/8", "longer"}, 9, 32, false},
		{[]string{"10.0.0.0/8", "upto", "/24"}, 8, 24, false},
		{[]string{"10.0.0.0/8", "prefix-length-range", "/16-/24"}, 16, 24, false},
		{[]string{"10.0.0.0/8", "prefix-length-range", "/4-/24"}, 0, 0, true},
		{[]string{"10.0.0.0/8", "sideways"}, 0, 0, true},
		{[]string{"10.0.0.0/8"}, 0, 0, true},
	}
	for _, tt := range tests {
		rf, err := routeFilter(tt.words)
		if (err != nil) != tt.wantErr {
			t.Errorf("routeFilter(%v) error = %v", tt.words, err)
			continue
		}
		if !tt.wantErr && (rf.Min != tt.min || rf.Max != tt.max) {
			t.Errorf("routeFilter(%v) = %d-%d, want %d-%d", tt.words, rf.Min, rf.Max, tt.min, tt.max)
		}
	}
}

func TestSplitWords(t *testing.T) {
	got, err := splitWords(`set policy-options community C members [ 1:1 2:2 ]`)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"set", "policy-options", "community", "C", "members", "1:1", "2:2"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("splitWords = %v", got)
	}
}
