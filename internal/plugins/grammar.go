package plugins

import (
	"context"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
	"github.com/batfish/batfish-sub054/pkg/parsetree"
)

// Input is one file handed to a grammar.
type Input struct {
	Filename string
	Text     string
	// Format is the format the file was detected as, before flattening.
	Format   format.Format
	Warnings *warnings.Warnings
	// LineMap maps a 1-based line of Text to the line of the original file
	// when Text is the output of flattening. Nil means identity.
	LineMap []int
}

// OriginalLine maps a line of Text back to the original file.
func (in *Input) OriginalLine(line int) int {
	if in.LineMap == nil || line < 1 || line > len(in.LineMap) {
		return line
	}
	return in.LineMap[line-1]
}

// SilentLine is input that was consumed without producing anything.
type SilentLine struct {
	Line    int    `json:"line" yaml:"line"`
	Text    string `json:"text" yaml:"text"`
	Context string `json:"context,omitempty" yaml:"context,omitempty"`
}

// ParseTree is the syntax tree a grammar's parser hands to its extractor.
type ParseTree interface {
	String() string
	SilentSyntax() []SilentLine
}

// Parser turns text into a parse tree.
type Parser interface {
	Parse(ctx context.Context, in *Input) (ParseTree, error)
}

// Extractor turns a parse tree into the vendor-specific IR.
type Extractor interface {
	Extract(ctx context.Context, tree ParseTree, in *Input) (vendor.Configuration, error)
}

// Grammar is a parser/extractor pair for one family of formats.
type Grammar interface {
	Name() string
	Formats() []format.Format
	Parser
	Extractor
}

// LineTree is the ParseTree of line-oriented grammars.
type LineTree struct {
	*parsetree.Tree
	Silent []SilentLine
}

// NewLineTree parses text into a LineTree.
func NewLineTree(text string) *LineTree {
	return &LineTree{Tree: parsetree.Parse(text)}
}

// AddSilent records a silently consumed node.
func (t *LineTree) AddSilent(n *parsetree.Node, context string) {
	t.Silent = append(t.Silent, SilentLine{Line: n.Line, Text: n.Text, Context: context})
}

func (t *LineTree) SilentSyntax() []SilentLine { return t.Silent }
