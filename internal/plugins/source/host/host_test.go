package host

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

const web1 = `{
  "hostname": "web1",
  "iptablesFile": "iptables/web1.iptables",
  "hostType": "ubuntu",
  "hostInterfaces": {
    "eth0": {
      "name": "eth0",
      "prefix": "10.1.1.10/24",
      "gateway": "10.1.1.1"
    },
    "eth1": {
      "name": "eth-one",
      "prefix": "192.168.0.10/24",
      "shutdown": true
    }
  }
}
`

func extract(text string) (*Configuration, *warnings.Warnings, error) {
	in := &plugins.Input{
		Filename: "hosts/web1.json",
		Text:     text,
		Format:   format.Host,
		Warnings: warnings.New(nil, warnings.DefaultSettings()),
	}
	g := New()
	tree, err := g.Parse(context.Background(), in)
	if err != nil {
		return nil, in.Warnings, err
	}
	cfg, err := g.Extract(context.Background(), tree, in)
	if err != nil {
		return nil, in.Warnings, err
	}
	return cfg.(*Configuration), in.Warnings, nil
}

func TestExtract(t *testing.T) {
	c, w, err := extract(web1)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if c.Hostname() != "web1" || c.OverlayFile() != "iptables/web1.iptables" {
		t.Errorf("hostname/overlay = %q/%q", c.Hostname(), c.OverlayFile())
	}
	if !c.SupportsOverlay() {
		t.Errorf("hosts accept overlays")
	}
	eth0 := c.Interfaces["eth0"]
	if eth0.Prefix != netip.MustParsePrefix("10.1.1.10/24") || eth0.Gateway != netip.MustParseAddr("10.1.1.1") {
		t.Errorf("eth0 = %+v", eth0)
	}
	if len(w.UnimplementedWarnings) != 1 {
		t.Errorf("expected hostType to be reported, got %+v", w.UnimplementedWarnings)
	}
	if len(w.RedFlags) != 1 {
		t.Errorf("expected a red flag for the eth1 name mismatch, got %+v", w.RedFlags)
	}
	if d := c.Structures().Defined()["host interface"]["eth1"]; len(d.Lines) != 1 || d.Lines[0] != 11 {
		t.Errorf("eth1 defined at %+v", d)
	}
}

func TestExtract_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		line int
	}{
		{"syntax", "{\n  \"hostname\": \"h\",\n  oops\n}\n", 3},
		{"type", "{\n  \"hostname\": 7\n}\n", 2},
		{"prefix", "{\n  \"hostInterfaces\": {\n    \"eth0\": {\"prefix\": \"10.0.0.300/24\"}\n  }\n}\n", 3},
		{"gateway", "{\n  \"hostInterfaces\": {\n    \"eth0\": {\n      \"gateway\": \"nope\"\n    }\n  }\n}\n", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := extract(tt.text)
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

func TestToVendorIndependentConfigurations(t *testing.T) {
	c, _, err := extract(web1)
	if err != nil {
		t.Fatal(err)
	}
	c.SetFormat(format.Host)

	down := false
	rd := &vendor.RuntimeData{Hosts: map[string]vendor.HostRuntimeData{
		"web1": {Interfaces: map[string]vendor.InterfaceRuntimeData{"eth0": {LineUp: &down}}},
	}}
	nodes, err := c.ToVendorIndependentConfigurations(context.Background(), vendor.EmptyConversionContext(), rd)
	if err != nil {
		t.Fatal(err)
	}
	node := nodes[0]
	if *node.DefaultCrossZoneAction != model.Permit || *node.DefaultInboundAction != model.Permit {
		t.Errorf("default actions = %s/%s", *node.DefaultCrossZoneAction, *node.DefaultInboundAction)
	}
	eth0, _ := node.Interfaces.Get("eth0")
	eth1, _ := node.Interfaces.Get("eth1")
	if eth0.Active || eth1.Active {
		t.Errorf("eth0 is line-down and eth1 is shut: %v %v", eth0.Active, eth1.Active)
	}
	def, _ := node.Vrfs.Get(model.DefaultVrf)
	if len(def.StaticRoutes) != 1 || def.StaticRoutes[0].NextHop != "10.1.1.1" || def.StaticRoutes[0].Prefix.Bits() != 0 {
		t.Errorf("static routes = %+v", def.StaticRoutes)
	}
}
