// Package parsetree builds indentation-structured trees from line-oriented
// configuration text. Grammars walk the tree instead of re-scanning lines.
package parsetree

import (
	"fmt"
	"strings"
)

// Node is one non-blank source line.
type Node struct {
	Text     string
	Words    []string
	Line     int
	Indent   int
	Children []*Node
	Parent   *Node
}

// Tree is the parsed form of a whole file. Root is synthetic and carries no text.
type Tree struct {
	Root *Node
}

// Parse splits text into lines and nests each line under the closest
// preceding line with a smaller indentation. Blank lines are skipped.
// Tabs count as a single column.
func Parse(text string) *Tree {
	root := &Node{Indent: -1}
	stack := []*Node{root}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		for len(stack) > 1 && stack[len(stack)-1].Indent >= indent {
			stack = stack[:len(stack)-1]
		}
		parent := stack[len(stack)-1]
		n := &Node{
			Text:   trimmed,
			Words:  strings.Fields(trimmed),
			Line:   i + 1,
			Indent: indent,
			Parent: parent,
		}
		parent.Children = append(parent.Children, n)
		stack = append(stack, n)
	}
	return &Tree{Root: root}
}

// Keyword returns the first word, or "" for the root.
func (n *Node) Keyword() string {
	if len(n.Words) == 0 {
		return ""
	}
	return n.Words[0]
}

// HasPrefix reports whether the node's leading words equal words.
func (n *Node) HasPrefix(words ...string) bool {
	if len(words) > len(n.Words) {
		return false
	}
	for i, w := range words {
		if n.Words[i] != w {
			return false
		}
	}
	return true
}

// Arg returns the i-th word or "" when absent.
func (n *Node) Arg(i int) string {
	if i < 0 || i >= len(n.Words) {
		return ""
	}
	return n.Words[i]
}

// Walk visits nodes depth-first in source order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		for _, c := range n.Children {
			if fn(c, depth) {
				visit(c, depth+1)
			}
		}
	}
	visit(t.Root, 0)
}

// Len returns the number of nodes, root excluded.
func (t *Tree) Len() int {
	count := 0
	t.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// String renders the tree one node per line as "line: text", children
// indented two spaces per level.
func (t *Tree) String() string {
	var b strings.Builder
	t.Walk(func(n *Node, depth int) bool {
		fmt.Fprintf(&b, "%s%d: %s\n", strings.Repeat("  ", depth), n.Line, n.Text)
		return true
	})
	return b.String()
}
