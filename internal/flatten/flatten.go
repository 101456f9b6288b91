// Package flatten rewrites brace-hierarchical configurations into the flat
// "set" form their grammars parse.
package flatten

import (
	"fmt"
	"strings"

	"github.com/batfish/batfish-sub054/internal/format"
)

// Error reports malformed hierarchical input.
type Error struct {
	Line int
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("flatten: line %d: %s", e.Line, e.Msg) }

// Result is flattened text plus, for each output line, the input line it
// came from.
type Result struct {
	Text    string
	LineMap []int
}

// Flatten converts text of hierarchical format f.
func Flatten(f format.Format, text string) (*Result, error) {
	if f != format.Juniper {
		return nil, fmt.Errorf("flatten: no flattener for format %s", f)
	}
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	return flattenBraces(toks)
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokOpen
	tokClose
	tokSemi
	tokListOpen
	tokListClose
)

type token struct {
	kind tokenKind
	text string
	line int
}

func tokenize(text string) ([]token, error) {
	var toks []token
	line := 1
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\n':
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(text) && text[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			start := line
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				return nil, &Error{Line: start, Msg: "unterminated comment"}
			}
			line += strings.Count(text[i:i+2+end], "\n")
			i += end + 4
		case c == '{':
			toks = append(toks, token{tokOpen, "{", line})
			i++
		case c == '}':
			toks = append(toks, token{tokClose, "}", line})
			i++
		case c == ';':
			toks = append(toks, token{tokSemi, ";", line})
			i++
		case c == '[':
			toks = append(toks, token{tokListOpen, "[", line})
			i++
		case c == ']':
			toks = append(toks, token{tokListClose, "]", line})
			i++
		case c == '"':
			j := i + 1
			for j < len(text) && text[j] != '"' {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(text) {
				return nil, &Error{Line: line, Msg: "unterminated string"}
			}
			word := text[i : j+1]
			toks = append(toks, token{tokWord, word, line})
			line += strings.Count(word, "\n")
			i = j + 1
		default:
			j := i
			for j < len(text) && !strings.ContainsRune(" \t\r\n{};[]\"", rune(text[j])) {
				j++
			}
			toks = append(toks, token{tokWord, text[i:j], line})
			i = j
		}
	}
	return toks, nil
}

func flattenBraces(toks []token) (*Result, error) {
	var (
		out      strings.Builder
		lineMap  []int
		stack    [][]string
		opened   []int
		words    []string
		first    int
		list     []string
		inList   bool
		listLine int
	)
	emit := func(line int, tail []string) {
		parts := []string{"set"}
		for _, level := range stack {
			parts = append(parts, level...)
		}
		parts = append(parts, tail...)
		out.WriteString(strings.Join(parts, " "))
		out.WriteByte('\n')
		lineMap = append(lineMap, line)
	}
	for _, t := range toks {
		if inList {
			switch t.kind {
			case tokWord:
				list = append(list, t.text)
			case tokListClose:
				inList = false
			default:
				return nil, &Error{Line: t.line, Msg: fmt.Sprintf("unexpected %q inside list", t.text)}
			}
			continue
		}
		switch t.kind {
		case tokWord:
			if len(words) == 0 {
				first = t.line
			}
			words = append(words, t.text)
		case tokListOpen:
			if list != nil {
				return nil, &Error{Line: t.line, Msg: "more than one list in statement"}
			}
			if len(words) == 0 {
				first = t.line
			}
			inList, listLine, list = true, t.line, []string{}
		case tokListClose:
			return nil, &Error{Line: t.line, Msg: "unexpected ]"}
		case tokSemi:
			if len(words) == 0 {
				return nil, &Error{Line: t.line, Msg: "empty statement"}
			}
			if list == nil {
				emit(first, words)
			} else {
				for _, item := range list {
					emit(first, append(append([]string(nil), words...), item))
				}
			}
			words, list = nil, nil
		case tokOpen:
			if len(words) == 0 {
				return nil, &Error{Line: t.line, Msg: "block without a name"}
			}
			if list != nil {
				return nil, &Error{Line: t.line, Msg: "list in block name"}
			}
			stack = append(stack, words)
			opened = append(opened, first)
			words = nil
		case tokClose:
			if len(words) > 0 {
				return nil, &Error{Line: first, Msg: "statement missing ';'"}
			}
			if len(stack) == 0 {
				return nil, &Error{Line: t.line, Msg: "unbalanced '}'"}
			}
			stack = stack[:len(stack)-1]
			opened = opened[:len(opened)-1]
		}
	}
	switch {
	case inList:
		return nil, &Error{Line: listLine, Msg: "unterminated list"}
	case len(words) > 0:
		return nil, &Error{Line: first, Msg: "statement missing ';'"}
	case len(stack) > 0:
		return nil, &Error{Line: opened[len(opened)-1], Msg: "unclosed '{'"}
	}
	return &Result{Text: out.String(), LineMap: lineMap}, nil
}
