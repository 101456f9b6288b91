package snapshot

import (
	"fmt"
	"sort"
	"strings"
)

// ChangeType is the kind of change of a node between two runs.
type ChangeType string

const (
	NodeAdded    ChangeType = "added"
	NodeRemoved  ChangeType = "removed"
	NodeModified ChangeType = "modified"
)

// RunDiff compares two runs node by node.
type RunDiff struct {
	OldID        string         `json:"old_id"`
	NewID        string         `json:"new_id"`
	SameInputs   bool           `json:"same_inputs"`
	NodeDiffs    []NodeDiff     `json:"node_diffs"`
	ParseDeltas  map[string]int `json:"parse_deltas,omitempty"`
	NewFailures  []string       `json:"new_failures,omitempty"`
	FixedFailure []string       `json:"fixed_failures,omitempty"`
}

// NodeDiff is the change of one node document.
type NodeDiff struct {
	Hostname     string     `json:"hostname"`
	Type         ChangeType `json:"type"`
	OldHash      string     `json:"old_hash,omitempty"`
	NewHash      string     `json:"new_hash,omitempty"`
	StatusChange string     `json:"status_change,omitempty"`
	LinesAdded   int        `json:"lines_added,omitempty"`
	LinesRemoved int        `json:"lines_removed,omitempty"`
	Hunks        []Hunk     `json:"hunks,omitempty"`
}

// Hunk is a contiguous block of changed lines with context.
type Hunk struct {
	OldStart int        `json:"old_start"`
	NewStart int        `json:"new_start"`
	Lines    []HunkLine `json:"lines"`
}

// HunkLine is one line of a hunk. Op is ' ', '+' or '-'.
type HunkLine struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// Diff compares old and next. With a store, modified nodes also get
// line-level hunks of their documents.
func Diff(old, next *Run, store *Store) (*RunDiff, error) {
	d := &RunDiff{
		OldID:       old.ID,
		NewID:       next.ID,
		SameInputs:  old.Fingerprint == next.Fingerprint,
		ParseDeltas: make(map[string]int),
	}

	oldNodes := make(map[string]NodeEntry, len(old.Nodes))
	for _, n := range old.Nodes {
		oldNodes[n.Hostname] = n
	}
	newNodes := make(map[string]NodeEntry, len(next.Nodes))
	for _, n := range next.Nodes {
		newNodes[n.Hostname] = n
	}
	for name, o := range oldNodes {
		n, ok := newNodes[name]
		switch {
		case !ok:
			d.NodeDiffs = append(d.NodeDiffs, NodeDiff{Hostname: name, Type: NodeRemoved, OldHash: o.ContentHash})
		case o.ContentHash != n.ContentHash || o.ConvertStatus != n.ConvertStatus:
			nd := NodeDiff{Hostname: name, Type: NodeModified, OldHash: o.ContentHash, NewHash: n.ContentHash}
			if o.ConvertStatus != n.ConvertStatus {
				nd.StatusChange = o.ConvertStatus + " -> " + n.ConvertStatus
			}
			if store != nil && o.ContentHash != n.ContentHash {
				if err := nd.addHunks(store, old, next); err != nil {
					return nil, err
				}
			}
			d.NodeDiffs = append(d.NodeDiffs, nd)
		}
	}
	for name, n := range newNodes {
		if _, ok := oldNodes[name]; !ok {
			d.NodeDiffs = append(d.NodeDiffs, NodeDiff{Hostname: name, Type: NodeAdded, NewHash: n.ContentHash})
		}
	}
	sort.Slice(d.NodeDiffs, func(i, j int) bool { return d.NodeDiffs[i].Hostname < d.NodeDiffs[j].Hostname })

	for status, n := range next.ParseCounts {
		if delta := n - old.ParseCounts[status]; delta != 0 {
			d.ParseDeltas[status] = delta
		}
	}
	for status, n := range old.ParseCounts {
		if _, ok := next.ParseCounts[status]; !ok {
			d.ParseDeltas[status] = -n
		}
	}
	for key := range next.Failures {
		if _, ok := old.Failures[key]; !ok {
			d.NewFailures = append(d.NewFailures, key)
		}
	}
	for key := range old.Failures {
		if _, ok := next.Failures[key]; !ok {
			d.FixedFailure = append(d.FixedFailure, key)
		}
	}
	sort.Strings(d.NewFailures)
	sort.Strings(d.FixedFailure)
	return d, nil
}

func (nd *NodeDiff) addHunks(store *Store, old, next *Run) error {
	before, err := store.LoadNode(old, nd.Hostname)
	if err != nil {
		return err
	}
	after, err := store.LoadNode(next, nd.Hostname)
	if err != nil {
		return err
	}
	nd.Hunks = hunks(strings.Split(string(before), "\n"), strings.Split(string(after), "\n"), 3)
	for _, h := range nd.Hunks {
		for _, l := range h.Lines {
			switch l.Op {
			case "+":
				nd.LinesAdded++
			case "-":
				nd.LinesRemoved++
			}
		}
	}
	return nil
}

type editLine struct {
	op     string
	text   string
	oldNum int
	newNum int
}

// edits computes a line diff from the longest common subsequence of a and b.
func edits(a, b []string) []editLine {
	lcs := make([][]int, len(a)+1)
	for i := range lcs {
		lcs[i] = make([]int, len(b)+1)
	}
	for i := len(a) - 1; i >= 0; i-- {
		for j := len(b) - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else {
				lcs[i][j] = max(lcs[i+1][j], lcs[i][j+1])
			}
		}
	}
	var out []editLine
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		switch {
		case i < len(a) && j < len(b) && a[i] == b[j]:
			out = append(out, editLine{op: " ", text: a[i], oldNum: i + 1, newNum: j + 1})
			i++
			j++
		case j < len(b) && (i == len(a) || lcs[i][j+1] >= lcs[i+1][j]):
			out = append(out, editLine{op: "+", text: b[j], newNum: j + 1})
			j++
		default:
			out = append(out, editLine{op: "-", text: a[i], oldNum: i + 1})
			i++
		}
	}
	return out
}

// hunks groups changed lines that lie within 2*context lines of each other.
func hunks(a, b []string, context int) []Hunk {
	lines := edits(a, b)
	var spans [][2]int
	for i, l := range lines {
		if l.op == " " {
			continue
		}
		if n := len(spans); n > 0 && i <= spans[n-1][1]+2*context {
			spans[n-1][1] = i
			continue
		}
		spans = append(spans, [2]int{i, i})
	}

	var out []Hunk
	for _, s := range spans {
		start := max(s[0]-context, 0)
		end := min(s[1]+context+1, len(lines))
		var h Hunk
		for _, l := range lines[start:end] {
			if h.OldStart == 0 && l.oldNum > 0 {
				h.OldStart = l.oldNum
			}
			if h.NewStart == 0 && l.newNum > 0 {
				h.NewStart = l.newNum
			}
			h.Lines = append(h.Lines, HunkLine{Op: l.op, Text: l.text})
		}
		out = append(out, h)
	}
	return out
}

// Format renders d for a terminal.
func (d *RunDiff) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Runs: %s -> %s", d.OldID, d.NewID)
	if d.SameInputs {
		sb.WriteString(" (same inputs)")
	}
	sb.WriteString("\n")
	for _, nd := range d.NodeDiffs {
		icon := "~"
		switch nd.Type {
		case NodeAdded:
			icon = "+"
		case NodeRemoved:
			icon = "-"
		}
		fmt.Fprintf(&sb, "  %s %s", icon, nd.Hostname)
		if nd.StatusChange != "" {
			fmt.Fprintf(&sb, " [%s]", nd.StatusChange)
		}
		if len(nd.Hunks) > 0 {
			fmt.Fprintf(&sb, " (+%d/-%d)", nd.LinesAdded, nd.LinesRemoved)
		}
		sb.WriteString("\n")
	}
	for _, f := range d.NewFailures {
		fmt.Fprintf(&sb, "  new failure: %s\n", f)
	}
	for _, f := range d.FixedFailure {
		fmt.Fprintf(&sb, "  fixed: %s\n", f)
	}
	return sb.String()
}
