// Package junos implements the grammar for flat Juniper "set"
// configurations. Hierarchical Juniper files reach it after flattening.
package junos

import (
	"context"
	"fmt"
	"strings"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
	"github.com/batfish/batfish-sub054/pkg/parsetree"
)

// Grammar parses flat Juniper configurations.
type Grammar struct{}

func New() *Grammar { return &Grammar{} }

func (g *Grammar) Name() string { return "junos" }

func (g *Grammar) Formats() []format.Format { return []format.Format{format.FlatJuniper} }

// Statement is one "set", "delete" or "deactivate" line.
type Statement struct {
	Line  int
	Op    string
	Words []string
	Text  string
}

// Tree holds the statements of a flat configuration in file order.
type Tree struct {
	*plugins.LineTree
	Statements []Statement
}

func (g *Grammar) Parse(ctx context.Context, in *plugins.Input) (plugins.ParseTree, error) {
	t := &Tree{LineTree: plugins.NewLineTree(in.Text)}
	var err error
	t.Walk(func(n *parsetree.Node, _ int) bool {
		if err != nil {
			return false
		}
		if strings.HasPrefix(n.Text, "#") {
			t.AddSilent(n, "comment")
			return true
		}
		words, werr := splitWords(n.Text)
		if werr != nil {
			err = &plugins.ExtractError{Line: n.Line, Text: n.Text, Context: "statement", Msg: werr.Error()}
			return false
		}
		switch words[0] {
		case "set", "delete", "deactivate":
		default:
			err = &plugins.ExtractError{Line: n.Line, Text: n.Text, Context: "statement", Msg: "expected a set statement"}
			return false
		}
		if len(words) < 2 {
			err = &plugins.ExtractError{Line: n.Line, Text: n.Text, Context: "statement", Msg: "empty " + words[0] + " statement"}
			return false
		}
		t.Statements = append(t.Statements, Statement{Line: n.Line, Op: words[0], Words: words[1:], Text: n.Text})
		return true
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (g *Grammar) Extract(ctx context.Context, pt plugins.ParseTree, in *plugins.Input) (vendor.Configuration, error) {
	t, ok := pt.(*Tree)
	if !ok {
		return nil, fmt.Errorf("junos: unexpected parse tree %T", pt)
	}
	w := in.Warnings
	if w == nil {
		w = warnings.New(nil, warnings.DefaultSettings())
	}
	c := NewConfiguration()
	c.SetWarnings(w)
	x := &extractor{c: c, tree: t, w: w, once: make(map[string]bool)}
	for _, s := range t.Statements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.Op != "set" {
			w.Unimplemented("%s statements are not modeled (line %d)", s.Op, s.Line)
			continue
		}
		if err := x.set(s); err != nil {
			return nil, err
		}
	}
	if err := c.checkCommit(); err != nil {
		return nil, err
	}
	return c, nil
}

// splitWords splits a statement on whitespace. Double-quoted strings are
// one word with the quotes removed; list brackets are dropped.
func splitWords(text string) ([]string, error) {
	var words []string
	for i := 0; i < len(text); {
		switch c := text[i]; {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			var b strings.Builder
			j := i + 1
			for ; j < len(text) && text[j] != '"'; j++ {
				if text[j] == '\\' && j+1 < len(text) {
					j++
				}
				b.WriteByte(text[j])
			}
			if j >= len(text) {
				return nil, fmt.Errorf("unterminated string")
			}
			words = append(words, b.String())
			i = j + 1
		default:
			j := i
			for j < len(text) && text[j] != ' ' && text[j] != '\t' {
				j++
			}
			if w := text[i:j]; w != "[" && w != "]" {
				words = append(words, w)
			}
			i = j
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty statement")
	}
	return words, nil
}
