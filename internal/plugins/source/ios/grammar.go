// Package ios implements the grammar for Cisco IOS, NX-OS and Arista EOS
// configurations.
package ios

import (
	"context"
	"fmt"
	"strings"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Grammar parses Cisco-style configurations.
type Grammar struct{}

func New() *Grammar { return &Grammar{} }

func (g *Grammar) Name() string { return "ios" }

func (g *Grammar) Formats() []format.Format {
	return []format.Format{format.Arista, format.CiscoIOS, format.CiscoNX}
}

// Tree is the parse tree: the indentation tree with banner bodies removed.
type Tree struct {
	*plugins.LineTree
	Banners []Banner
}

// Banner is a delimited multi-line banner.
type Banner struct {
	Type string
	Line int
	Text string
}

func (g *Grammar) Parse(ctx context.Context, in *plugins.Input) (plugins.ParseTree, error) {
	text, banners, err := cutBanners(in.Text)
	if err != nil {
		return nil, err
	}
	t := &Tree{LineTree: plugins.NewLineTree(text), Banners: banners}
	for _, b := range banners {
		t.Silent = append(t.Silent, plugins.SilentLine{Line: b.Line, Text: "banner " + b.Type, Context: "banner"})
	}
	return t, nil
}

func (g *Grammar) Extract(ctx context.Context, pt plugins.ParseTree, in *plugins.Input) (vendor.Configuration, error) {
	t, ok := pt.(*Tree)
	if !ok {
		return nil, fmt.Errorf("ios: unexpected parse tree %T", pt)
	}
	w := in.Warnings
	if w == nil {
		w = warnings.New(nil, warnings.DefaultSettings())
	}
	c := NewConfiguration()
	c.SetWarnings(w)
	for _, b := range t.Banners {
		c.Banners[b.Type] = b.Text
	}
	x := &extractor{c: c, tree: t, w: w}
	for _, n := range t.Root.Children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := x.top(n); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// cutBanners blanks out banner bodies so the indentation tree never sees
// their free-form text. Line numbers are preserved.
func cutBanners(text string) (string, []Banner, error) {
	lines := strings.Split(text, "\n")
	var banners []Banner
	for i := 0; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], "\r")
		words := strings.Fields(line)
		if len(words) < 2 || words[0] != "banner" || strings.HasPrefix(line, " ") {
			continue
		}
		typ := words[1]
		rest := strings.TrimSpace(strings.TrimPrefix(line, "banner"))
		rest = strings.TrimSpace(strings.TrimPrefix(rest, typ))
		b := Banner{Type: typ, Line: i + 1}

		// EOS ends an undelimited banner with a line holding only EOF.
		delim, eof := "", rest == ""
		if !eof {
			delim = rest[:1]
			if strings.HasPrefix(rest, "^C") {
				delim = "^C"
			}
			rest = rest[len(delim):]
			if end := strings.Index(rest, delim); end >= 0 {
				b.Text = rest[:end]
				banners = append(banners, b)
				lines[i] = ""
				continue
			}
		}

		var body []string
		if rest != "" {
			body = append(body, rest)
		}
		end := -1
		for j := i + 1; j < len(lines); j++ {
			l := strings.TrimRight(lines[j], "\r")
			if eof && strings.TrimSpace(l) == "EOF" {
				end = j
				break
			}
			if !eof {
				if k := strings.Index(l, delim); k >= 0 {
					if k > 0 {
						body = append(body, l[:k])
					}
					end = j
					break
				}
			}
			body = append(body, l)
		}
		if end < 0 {
			return "", nil, &plugins.ExtractError{Line: i + 1, Text: line, Context: "banner", Msg: "unterminated banner"}
		}
		b.Text = strings.Join(body, "\n")
		banners = append(banners, b)
		for j := i; j <= end; j++ {
			lines[j] = ""
		}
		i = end
	}
	return strings.Join(lines, "\n"), banners, nil
}
