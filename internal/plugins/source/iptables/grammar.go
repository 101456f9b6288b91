// Package iptables implements the grammar for iptables-save output. These
// configurations are never converted on their own; they are applied as
// overlays on top of host configurations.
package iptables

import (
	"context"
	"fmt"
	"net/netip"
	"path"
	"strconv"
	"strings"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
	"github.com/batfish/batfish-sub054/pkg/parsetree"
)

// Grammar parses iptables-save files.
type Grammar struct{}

func New() *Grammar { return &Grammar{} }

func (g *Grammar) Name() string { return "iptables" }

func (g *Grammar) Formats() []format.Format { return []format.Format{format.Iptables} }

func (g *Grammar) Parse(ctx context.Context, in *plugins.Input) (plugins.ParseTree, error) {
	return plugins.NewLineTree(in.Text), nil
}

var builtinChains = map[string]bool{
	"INPUT":       true,
	"FORWARD":     true,
	"OUTPUT":      true,
	"PREROUTING":  true,
	"POSTROUTING": true,
}

func (g *Grammar) Extract(ctx context.Context, pt plugins.ParseTree, in *plugins.Input) (vendor.Configuration, error) {
	t, ok := pt.(*plugins.LineTree)
	if !ok {
		return nil, fmt.Errorf("iptables: unexpected parse tree %T", pt)
	}
	w := in.Warnings
	if w == nil {
		w = warnings.New(nil, warnings.DefaultSettings())
	}
	c := NewConfiguration()
	c.SetWarnings(w)
	base := path.Base(in.Filename)
	c.SetHostname(strings.TrimSuffix(base, path.Ext(base)))

	var table *Table
	var err error
	last := 0
	t.Walk(func(n *parsetree.Node, _ int) bool {
		if err != nil {
			return false
		}
		last = n.Line
		switch {
		case strings.HasPrefix(n.Text, "#"):
			t.AddSilent(n, "comment")
		case strings.HasPrefix(n.Text, "*"):
			table = c.table(strings.TrimPrefix(n.Keyword(), "*"))
			if table.Name != "filter" {
				w.Unimplemented("iptables table %s is not modeled", table.Name)
			}
		case n.Text == "COMMIT":
			if table == nil {
				err = extractErr(n, "COMMIT outside a table")
			}
			table = nil
		case strings.HasPrefix(n.Text, ":"):
			if table == nil {
				err = extractErr(n, "chain declared outside a table")
				return false
			}
			name := strings.TrimPrefix(n.Keyword(), ":")
			ch := table.chain(name)
			switch policy := n.Arg(1); policy {
			case "ACCEPT":
				ch.Policy = model.Permit
			case "DROP":
				ch.Policy = model.Deny
			case "-", "":
			default:
				err = extractErr(n, fmt.Sprintf("invalid chain policy %q", policy))
			}
		case n.Keyword() == "-N":
			if table == nil {
				err = extractErr(n, "chain declared outside a table")
				return false
			}
			table.chain(n.Arg(1))
		case n.Keyword() == "-A" || n.Keyword() == "-I":
			if table == nil {
				err = extractErr(n, "rule outside a table")
				return false
			}
			if n.Arg(1) == "" {
				err = extractErr(n, "missing chain name")
				return false
			}
			r, ok, rerr := parseRule(n, w)
			if rerr != nil {
				err = rerr
				return false
			}
			if !ok {
				return true
			}
			ch := table.chain(n.Arg(1))
			if n.Keyword() == "-I" {
				ch.Rules = append([]Rule{r}, ch.Rules...)
			} else {
				ch.Rules = append(ch.Rules, r)
			}
		default:
			c.MarkUnrecognized()
			w.AddParseWarning(warnings.ParseWarning{
				Line:          n.Line,
				Text:          n.Text,
				ParserContext: "iptables",
				Comment:       "This syntax is unrecognized",
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if table != nil {
		return nil, &plugins.ExtractError{Line: last, Context: "table", Msg: fmt.Sprintf("table %s is missing COMMIT", table.Name)}
	}
	return c, nil
}

func extractErr(n *parsetree.Node, msg string) error {
	return &plugins.ExtractError{Line: n.Line, Text: n.Text, Context: "iptables", Msg: msg}
}

// parseRule parses the options of an -A or -I line. It reports false for
// rules that cannot be modeled; those are skipped with a warning.
func parseRule(n *parsetree.Node, w *warnings.Warnings) (Rule, bool, error) {
	r := Rule{Line: n.Line, Text: n.Text}
	args := n.Words[2:]
	if n.Keyword() == "-I" && len(args) > 0 {
		if _, err := strconv.Atoi(args[0]); err == nil {
			args = args[1:]
		}
	}
	value := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", extractErr(n, fmt.Sprintf("option %s needs a value", args[i]))
		}
		return args[i+1], nil
	}
	modeled := true
	for i := 0; i < len(args); i++ {
		opt := args[i]
		if opt == "!" {
			w.Unimplemented("iptables rule on line %d: negated matches are not modeled", n.Line)
			modeled = false
			continue
		}
		if !strings.HasPrefix(opt, "-") {
			return r, false, extractErr(n, fmt.Sprintf("unexpected argument %q", opt))
		}
		v, err := value(i)
		if err != nil {
			return r, false, err
		}
		i++
		if strings.HasPrefix(v, `"`) && (len(v) == 1 || !strings.HasSuffix(v, `"`)) {
			for i+1 < len(args) {
				i++
				v += " " + args[i]
				if strings.HasSuffix(args[i], `"`) {
					break
				}
			}
		}
		switch opt {
		case "-p", "--protocol":
			r.Protocol = v
		case "-s", "--source":
			if r.Src, err = address(v); err != nil {
				return r, false, extractErr(n, err.Error())
			}
		case "-d", "--destination":
			if r.Dst, err = address(v); err != nil {
				return r, false, extractErr(n, err.Error())
			}
		case "--dport", "--destination-port":
			r.DstPorts = strings.ReplaceAll(v, ":", "-")
		case "-i", "--in-interface":
			r.InInterface = v
		case "-o", "--out-interface":
			r.OutInterface = v
		case "-j", "--jump":
			switch v {
			case "ACCEPT":
				r.Action = model.Permit
			case "DROP", "REJECT":
				r.Action = model.Deny
			default:
				w.Unimplemented("iptables rule on line %d: target %s is not modeled", n.Line, v)
				modeled = false
			}
		case "-m", "--match":
		case "--reject-with", "--state", "--ctstate", "--sport", "--source-port", "--comment":
			w.Pedantic("iptables rule on line %d: %s ignored", n.Line, opt)
		default:
			w.Unimplemented("iptables rule on line %d: option %s is not modeled", n.Line, opt)
		}
	}
	if r.Action == "" && modeled {
		w.Unimplemented("iptables rule on line %d has no target", n.Line)
		modeled = false
	}
	return r, modeled, nil
}

func address(s string) (netip.Prefix, error) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid address %q", s)
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address %q", s)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}
