package parsetree

import (
	"strings"
	"testing"
)

func TestParse_Nesting(t *testing.T) {
	text := "hostname r1\n\ninterface Ethernet1\n description uplink\n ip address 10.0.0.1 255.255.255.0\n  secondary-ish\ninterface Ethernet2\n"
	tree := Parse(text)

	if got := len(tree.Root.Children); got != 3 {
		t.Fatalf("expected 3 top-level nodes, got %d", got)
	}
	eth1 := tree.Root.Children[1]
	if eth1.Line != 3 || eth1.Keyword() != "interface" || eth1.Arg(1) != "Ethernet1" {
		t.Errorf("unexpected node: %+v", eth1)
	}
	if len(eth1.Children) != 2 {
		t.Fatalf("expected 2 children under Ethernet1, got %d", len(eth1.Children))
	}
	deep := eth1.Children[1].Children
	if len(deep) != 1 || deep[0].Text != "secondary-ish" || deep[0].Parent != eth1.Children[1] {
		t.Errorf("expected nested child under ip address, got %+v", deep)
	}
	if tree.Len() != 6 {
		t.Errorf("Len() = %d, want 6", tree.Len())
	}
}

func TestNode_HasPrefix(t *testing.T) {
	n := Parse("ip access-list extended OUT\n").Root.Children[0]
	if !n.HasPrefix("ip", "access-list") {
		t.Error("expected prefix match")
	}
	if n.HasPrefix("ip", "route") {
		t.Error("unexpected prefix match")
	}
	if n.HasPrefix("ip", "access-list", "extended", "OUT", "extra") {
		t.Error("longer prefix should not match")
	}
	if n.Arg(10) != "" {
		t.Error("out of range Arg should be empty")
	}
}

func TestTree_StringAndWalkSkip(t *testing.T) {
	tree := Parse("a\n b\nc\n")
	want := "1: a\n  2: b\n3: c\n"
	if got := tree.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	var seen []string
	tree.Walk(func(n *Node, _ int) bool {
		seen = append(seen, n.Text)
		return n.Text != "a"
	})
	if strings.Join(seen, ",") != "a,c" {
		t.Errorf("walk visited %v", seen)
	}
}
