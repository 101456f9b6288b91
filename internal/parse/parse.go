// Package parse implements the parse job: detect a file's format, run the
// matching grammar and extract the vendor-specific IR.
package parse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/flatten"
	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/job"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

var (
	// ErrEmptyGroup is returned for a file group with no files.
	ErrEmptyGroup = errors.New("file group is empty")
	// ErrMultiFileGroup is returned for a file group with more than one file.
	ErrMultiFileGroup = errors.New("multi-file groups are not supported")
	// ErrUnknownFormat is the failure of an undetectable file when unknown
	// files are not ignored.
	ErrUnknownFormat = errors.New("unknown configuration format")
	// ErrUnsupportedFormat is the failure of a recognized but unsupported
	// format when unsupported files are not ignored.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")
)

// Settings is the per-job copy of the parse configuration.
type Settings struct {
	HaltOnParseError       bool
	IgnoreUnknown          bool
	IgnoreUnsupported      bool
	FormatOverride         format.Format
	IgnoreFilesWithStrings []string
	PrintParseTrees        bool
	Warnings               warnings.Settings
}

// DefaultSettings ignores unknown and unsupported files.
func DefaultSettings() Settings {
	return Settings{
		IgnoreUnknown:     true,
		IgnoreUnsupported: true,
		FormatOverride:    format.Unknown,
		Warnings:          warnings.DefaultSettings(),
	}
}

// RawFile is one input file.
type RawFile struct {
	Path string
	Text string
}

// RawFileGroup is the unit of parsing. Only single-file groups are
// supported.
type RawFileGroup struct {
	Files []RawFile
}

// SingleFile returns a group holding one file.
func SingleFile(path, text string) RawFileGroup {
	return RawFileGroup{Files: []RawFile{{Path: path, Text: text}}}
}

// Key names the group by its first path in sorted order.
func (g RawFileGroup) Key() string {
	paths := g.Paths()
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

// Paths returns the file paths, sorted.
func (g RawFileGroup) Paths() []string {
	paths := make([]string, len(g.Files))
	for i, f := range g.Files {
		paths[i] = f.Path
	}
	sort.Strings(paths)
	return paths
}

// Output is the shared output parse results merge into, keyed by hostname.
type Output = map[string]vendor.Configuration

// Job parses one file group.
type Job struct {
	Group    RawFileGroup
	Settings Settings
	Registry *plugins.Registry
}

// NewJob creates a parse job.
func NewJob(group RawFileGroup, settings Settings, registry *plugins.Registry) *Job {
	return &Job{Group: group, Settings: settings, Registry: registry}
}

func (j *Job) Key() string { return j.Group.Key() }

// Run parses the group. Input problems never surface as a Go error; they
// are carried by the result's status and failure.
func (j *Job) Run(ctx context.Context, logger *slog.Logger) job.Result[Output, *answer.ParseElement] {
	return j.run(ctx, logger)
}

func (j *Job) run(ctx context.Context, logger *slog.Logger) (r *Result) {
	start := time.Now()
	w := warnings.New(logger, j.Settings.Warnings)
	r = &Result{File: FileResult{Filename: j.Key(), Format: format.Unknown, Warnings: w}}
	defer func() {
		// A panicking grammar fails its file like any other grammar error.
		if p := recover(); p != nil {
			logger.Error("grammar panicked", "file", r.File.Filename, "format", r.File.Format, "panic", p)
			r.fail(fmt.Errorf("parse %s: panic: %v", r.File.Filename, p))
		}
		r.Elapsed = time.Since(start)
	}()

	switch len(j.Group.Files) {
	case 0:
		return r.fail(ErrEmptyGroup)
	case 1:
	default:
		return r.fail(fmt.Errorf("%w: %s", ErrMultiFileGroup, strings.Join(j.Group.Paths(), ", ")))
	}
	file := j.Group.Files[0]
	r.File.Filename = file.Path

	f := format.Detect(file.Text, j.Settings.IgnoreFilesWithStrings, j.Settings.FormatOverride)
	r.File.Format = f
	logger.Debug("detected format", "format", f)

	switch {
	case f == format.Empty:
		w.RedFlag("Empty file: %q", file.Path)
		return r.finish(answer.StatusEmpty)
	case f == format.Ignored:
		w.RedFlag("Ignored file %q: contains an ignore string", file.Path)
		return r.finish(answer.StatusIgnored)
	case f == format.Unknown:
		if !j.Settings.IgnoreUnknown {
			return r.fail(fmt.Errorf("%w: %s", ErrUnknownFormat, file.Path))
		}
		w.RedFlag("Unable to detect format for file %q", file.Path)
		return r.finish(answer.StatusUnknown)
	case format.IsUnimplemented(f):
		if !j.Settings.IgnoreUnsupported {
			return r.fail(fmt.Errorf("%w: %s", ErrUnsupportedFormat, f))
		}
		w.RedFlag("Skipping file %q: format %s is not supported", file.Path, f)
		return r.finish(answer.StatusUnsupported)
	}

	in := &plugins.Input{Filename: file.Path, Text: file.Text, Format: f, Warnings: w}
	grammarFormat := f
	if flat, ok := format.FlattenedAs(f); ok {
		res, err := flatten.Flatten(f, file.Text)
		if err != nil {
			return r.fail(err)
		}
		in.Text, in.LineMap = res.Text, res.LineMap
		grammarFormat = flat
	}

	grammar, err := j.Registry.Lookup(grammarFormat)
	if err != nil {
		return r.fail(err)
	}

	tree, err := grammar.Parse(ctx, in)
	if err != nil {
		return r.failExtract(in, fmt.Errorf("parse %s: %w", file.Path, err))
	}
	if j.Settings.PrintParseTrees {
		r.File.ParseTree = tree.String()
	}
	r.File.SilentSyntax = tree.SilentSyntax()

	cfg, err := grammar.Extract(ctx, tree, in)
	if err != nil {
		var wnc *plugins.WillNotCommitError
		if errors.As(err, &wnc) && !j.Settings.HaltOnParseError {
			w.RedFlag("Configuration of %q will not be committed by the device: %s", file.Path, wnc.Msg)
			return r.finish(answer.StatusWillNotCommit)
		}
		return r.failExtract(in, fmt.Errorf("extract %s: %w", file.Path, err))
	}

	cfg.SetFilename(file.Path)
	cfg.SetFormat(f)
	cfg.SetWarnings(w)
	if cfg.Hostname() == "" {
		derived := DeriveHostname(file.Path)
		w.RedFlag("No hostname set in %q, using %q", file.Path, derived)
		cfg.SetHostname(derived)
	} else {
		cfg.SetHostname(strings.ToLower(cfg.Hostname()))
	}
	r.Config = cfg
	if cfg.Unrecognized() {
		return r.finish(answer.StatusPartiallyUnrecognized)
	}
	return r.finish(answer.StatusPassed)
}

var hostnameSuffixes = []string{".cfg", ".conf", ".txt", ".json", ".iptables"}

// DeriveHostname computes a hostname from a file path: the lower-cased base
// name without a known configuration suffix.
func DeriveHostname(path string) string {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range hostnameSuffixes {
		if trimmed, ok := strings.CutSuffix(name, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return name
}
