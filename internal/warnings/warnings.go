// Package warnings collects the non-fatal findings produced while parsing
// and converting a configuration. Every recorded warning is also logged.
package warnings

import (
	"fmt"
	"log/slog"
)

// Tags used for Warning.Tag.
const (
	TagRedFlag       = "red-flag"
	TagPedantic      = "pedantic"
	TagUnimplemented = "unimplemented"
)

// Settings selects which warning classes are recorded.
type Settings struct {
	RedFlag       bool `json:"red_flag"`
	Pedantic      bool `json:"pedantic"`
	Unimplemented bool `json:"unimplemented"`
}

// DefaultSettings records red flags and unimplemented constructs.
func DefaultSettings() Settings {
	return Settings{RedFlag: true, Unimplemented: true}
}

// Warning is one recorded finding.
type Warning struct {
	Text string `json:"text"`
	Tag  string `json:"tag"`
}

// ParseWarning carries the location of a problem in the input text.
type ParseWarning struct {
	Line          int    `json:"line"`
	Text          string `json:"text"`
	ParserContext string `json:"parser_context,omitempty"`
	Comment       string `json:"comment"`
}

// Warnings is owned by exactly one job at a time and is not safe for
// concurrent use.
type Warnings struct {
	RedFlags              []Warning      `json:"red_flags,omitempty"`
	PedanticWarnings      []Warning      `json:"pedantic,omitempty"`
	UnimplementedWarnings []Warning      `json:"unimplemented,omitempty"`
	ParseWarnings         []ParseWarning `json:"parse_warnings,omitempty"`

	settings Settings
	logger   *slog.Logger
}

// New creates a collector that logs through logger (slog.Default when nil).
func New(logger *slog.Logger, settings Settings) *Warnings {
	if logger == nil {
		logger = slog.Default()
	}
	return &Warnings{settings: settings, logger: logger}
}

// RedFlag records a problem the user should look at.
func (w *Warnings) RedFlag(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.logger.Warn(msg, "tag", TagRedFlag)
	if w.settings.RedFlag {
		w.RedFlags = append(w.RedFlags, Warning{Text: msg, Tag: TagRedFlag})
	}
}

// Pedantic records a minor finding.
func (w *Warnings) Pedantic(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.logger.Debug(msg, "tag", TagPedantic)
	if w.settings.Pedantic {
		w.PedanticWarnings = append(w.PedanticWarnings, Warning{Text: msg, Tag: TagPedantic})
	}
}

// Unimplemented records a construct that is recognized but not modeled.
func (w *Warnings) Unimplemented(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	w.logger.Info(msg, "tag", TagUnimplemented)
	if w.settings.Unimplemented {
		w.UnimplementedWarnings = append(w.UnimplementedWarnings, Warning{Text: msg, Tag: TagUnimplemented})
	}
}

// AddParseWarning records a located problem. Parse warnings are always kept.
func (w *Warnings) AddParseWarning(pw ParseWarning) {
	w.logger.Warn(pw.Comment, "line", pw.Line, "text", pw.Text, "context", pw.ParserContext)
	w.ParseWarnings = append(w.ParseWarnings, pw)
}

// IsEmpty reports whether nothing was recorded.
func (w *Warnings) IsEmpty() bool {
	return w == nil || (len(w.RedFlags) == 0 && len(w.PedanticWarnings) == 0 &&
		len(w.UnimplementedWarnings) == 0 && len(w.ParseWarnings) == 0)
}

// Count returns the number of recorded warnings.
func (w *Warnings) Count() int {
	if w == nil {
		return 0
	}
	return len(w.RedFlags) + len(w.PedanticWarnings) + len(w.UnimplementedWarnings) + len(w.ParseWarnings)
}

// Settings returns the recording settings.
func (w *Warnings) Settings() Settings { return w.settings }

// SetLogger redirects future log output to logger.
func (w *Warnings) SetLogger(logger *slog.Logger) {
	if logger != nil {
		w.logger = logger
	}
}

// Logger returns the logger warnings are written to.
func (w *Warnings) Logger() *slog.Logger { return w.logger }

// Clone returns an independent copy sharing settings and logger.
func (w *Warnings) Clone() *Warnings {
	c := &Warnings{settings: w.settings, logger: w.logger}
	c.RedFlags = append([]Warning(nil), w.RedFlags...)
	c.PedanticWarnings = append([]Warning(nil), w.PedanticWarnings...)
	c.UnimplementedWarnings = append([]Warning(nil), w.UnimplementedWarnings...)
	c.ParseWarnings = append([]ParseWarning(nil), w.ParseWarnings...)
	return c
}
