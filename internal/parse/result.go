package parse

import (
	"errors"
	"log/slog"
	"time"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/observability"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// FileResult is the per-file outcome of parsing.
type FileResult struct {
	Filename     string
	Format       format.Format
	Status       answer.ParseStatus
	ParseTree    string
	SilentSyntax []plugins.SilentLine
	Warnings     *warnings.Warnings
}

// Result is the outcome of a parse job. Config is set iff the status is
// PASSED or PARTIALLY_UNRECOGNIZED.
type Result struct {
	File         FileResult
	Config       vendor.Configuration
	Err          error
	ErrorDetails *answer.ErrorDetails
	Elapsed      time.Duration
}

func (r *Result) finish(status answer.ParseStatus) *Result {
	r.File.Status = status
	return r
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.ErrorDetails = &answer.ErrorDetails{Message: err.Error()}
	r.Config = nil
	return r.finish(answer.StatusFailed)
}

// failExtract fails the job and, when err locates the problem, records a
// parse warning mapped back to the original line.
func (r *Result) failExtract(in *plugins.Input, err error) *Result {
	r.fail(err)
	var ee *plugins.ExtractError
	if errors.As(err, &ee) {
		line := in.OriginalLine(ee.Line)
		r.File.Warnings.AddParseWarning(warnings.ParseWarning{
			Line:          line,
			Text:          ee.Text,
			ParserContext: ee.Context,
			Comment:       ee.Msg,
		})
		r.ErrorDetails.Line = line
		r.ErrorDetails.LineContent = ee.Text
		r.ErrorDetails.ParserContext = ee.Context
	}
	return r
}

// Failure returns the error that failed the job.
func (r *Result) Failure() error { return r.Err }

// ApplyTo records the file's status in pe and, when an IR was produced,
// inserts it into out under a unique hostname.
func (r *Result) ApplyTo(out Output, logger *slog.Logger, pe *answer.ParseElement) {
	file := r.File.Filename
	pe.ParseStatus[file] = r.File.Status
	pe.FileFormats[file] = r.File.Format
	if r.File.ParseTree != "" {
		pe.ParseTrees[file] = r.File.ParseTree
	}
	if r.Err != nil {
		pe.Errors[file] = r.Err.Error()
		pe.ErrorDetails[file] = *r.ErrorDetails
	}
	observability.Metrics().RecordParseStatus(string(r.File.Format), string(r.File.Status))

	if r.Config != nil {
		w := r.Config.Warnings()
		w.SetLogger(logger.With("file", file))
		hostname := r.Config.Hostname()
		key := answer.ResolveHostname(out, pe.DuplicateHostnames, hostname, file, configRenamer, w)
		if key != hostname {
			r.Config.SetHostname(key)
			observability.Metrics().RecordDuplicateHostname("parse")
		}
		out[key] = r.Config
	}
	if !r.File.Warnings.IsEmpty() {
		pe.Warnings[file] = r.File.Warnings
	}
	logger.Debug("parsed file", "file", file, "format", r.File.Format, "status", r.File.Status)
}

var configRenamer = answer.Renamer[vendor.Configuration]{
	File:   func(c vendor.Configuration) string { return c.Filename() },
	Rename: func(c vendor.Configuration, name string) { c.SetHostname(name) },
}
