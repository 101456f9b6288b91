// Package metrics summarizes one processing run for humans and machines.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Report collects statistics for a full pipeline run.
type Report struct {
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Duration   time.Duration  `json:"duration_ms,omitempty"`
	Snapshot   string         `json:"snapshot"`
	Parse      ParseMetrics   `json:"parse"`
	Convert    ConvertMetrics `json:"convert"`
	Stages     []StageMetrics `json:"stages"`
	Errors     []string       `json:"errors,omitempty"`
}

type ParseMetrics struct {
	Files      int            `json:"files"`
	Statuses   map[string]int `json:"statuses"`
	Duplicates int            `json:"duplicate_hostnames"`
	Warnings   WarningCounts  `json:"warnings"`
}

type ConvertMetrics struct {
	Nodes      int            `json:"nodes"`
	Statuses   map[string]int `json:"statuses"`
	Duplicates int            `json:"duplicate_hostnames"`
	Undefined  int            `json:"undefined_references"`
	Warnings   WarningCounts  `json:"warnings"`
}

// WarningCounts tallies recorded warnings per category.
type WarningCounts struct {
	RedFlags      int `json:"red_flags"`
	Pedantic      int `json:"pedantic"`
	Unimplemented int `json:"unimplemented"`
	ParseWarnings int `json:"parse_warnings"`
}

type StageMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	Jobs     int           `json:"jobs"`
	Failed   int           `json:"failed"`
}

// New starts tracking a run over the snapshot at dir.
func New(dir string) *Report {
	return &Report{
		StartedAt: time.Now(),
		Snapshot:  dir,
		Parse:     ParseMetrics{Statuses: make(map[string]int)},
		Convert:   ConvertMetrics{Statuses: make(map[string]int)},
	}
}

// CollectParse computes parse-side metrics from the parse answer.
func (r *Report) CollectParse(pe *answer.ParseElement) {
	r.Parse.Files = len(pe.ParseStatus)
	for status, n := range pe.StatusCounts() {
		r.Parse.Statuses[string(status)] = n
	}
	r.Parse.Duplicates = len(pe.DuplicateHostnames)
	for _, w := range pe.Warnings {
		r.Parse.Warnings.add(w)
	}
	for _, file := range pe.Files() {
		if msg, ok := pe.Errors[file]; ok {
			r.Errors = append(r.Errors, file+": "+msg)
		}
	}
}

// CollectConvert computes convert-side metrics from the convert answer.
func (r *Report) CollectConvert(ce *answer.ConvertElement) {
	r.Convert.Nodes = len(ce.ConvertStatus)
	for status, n := range ce.StatusCounts() {
		r.Convert.Statuses[string(status)] = n
	}
	r.Convert.Duplicates = len(ce.DuplicateHostnames)
	for _, w := range ce.Warnings {
		r.Convert.Warnings.add(w)
	}
	for _, byType := range ce.UndefinedReferences {
		for _, byName := range byType {
			r.Convert.Undefined += len(byName)
		}
	}
	keys := make([]string, 0, len(ce.Errors))
	for k := range ce.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.Errors = append(r.Errors, k+": "+ce.Errors[k])
	}
}

func (c *WarningCounts) add(w *warnings.Warnings) {
	if w == nil {
		return
	}
	c.RedFlags += len(w.RedFlags)
	c.Pedantic += len(w.PedanticWarnings)
	c.Unimplemented += len(w.UnimplementedWarnings)
	c.ParseWarnings += len(w.ParseWarnings)
}

// AddStage records a single executor batch.
func (r *Report) AddStage(name string, d time.Duration, jobs, failed int) {
	r.Stages = append(r.Stages, StageMetrics{
		Name:     name,
		Duration: d,
		Jobs:     jobs,
		Failed:   failed,
	})
}

// Finish marks the run as complete. A batch error is appended to Errors.
func (r *Report) Finish(err error) {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// PrintSummary writes a human-readable summary.
func (r *Report) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║          SNAPSHOT RUN REPORT         ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Files:       %-23d║\n", r.Parse.Files)
	fmt.Fprintf(w, "║ Nodes:       %-23d║\n", r.Convert.Nodes)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ PARSE\n")
	for _, s := range answer.ParseStatuses {
		if n := r.Parse.Statuses[string(s)]; n > 0 {
			fmt.Fprintf(w, "║   %-24s %d\n", s, n)
		}
	}
	printWarnings(w, r.Parse.Warnings)
	if r.Parse.Duplicates > 0 {
		fmt.Fprintf(w, "║   Duplicate hosts:  %d\n", r.Parse.Duplicates)
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ CONVERT\n")
	for _, s := range []answer.ConvertStatus{answer.ConvertPassed, answer.ConvertWarnings, answer.ConvertFailed} {
		if n := r.Convert.Statuses[string(s)]; n > 0 {
			fmt.Fprintf(w, "║   %-24s %d\n", s, n)
		}
	}
	printWarnings(w, r.Convert.Warnings)
	if r.Convert.Undefined > 0 {
		fmt.Fprintf(w, "║   Undefined refs:   %d\n", r.Convert.Undefined)
	}
	if len(r.Stages) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ STAGES\n")
		for _, s := range r.Stages {
			status := "OK"
			if s.Failed > 0 {
				status = fmt.Sprintf("%d failed", s.Failed)
			}
			fmt.Fprintf(w, "║   %-14s %8s  [%d jobs] %s\n", s.Name, s.Duration.Round(time.Millisecond), s.Jobs, status)
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

func printWarnings(w io.Writer, c WarningCounts) {
	if c == (WarningCounts{}) {
		return
	}
	fmt.Fprintf(w, "║   Warnings:  %d red flag, %d unimplemented, %d pedantic, %d parse\n",
		c.RedFlags, c.Unimplemented, c.Pedantic, c.ParseWarnings)
}

// JSON returns the report as formatted JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
