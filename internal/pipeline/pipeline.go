// Package pipeline runs a snapshot through parsing, overlay resolution and
// conversion.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/convert"
	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/job"
	"github.com/batfish/batfish-sub054/internal/metrics"
	"github.com/batfish/batfish-sub054/internal/observability"
	"github.com/batfish/batfish-sub054/internal/parse"
	"github.com/batfish/batfish-sub054/internal/plugins"
	"github.com/batfish/batfish-sub054/internal/snapshot"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Pipeline holds everything a run needs besides the snapshot itself.
type Pipeline struct {
	Registry *plugins.Registry
	Jobs     job.Settings
	Parse    parse.Settings
	Logger   *slog.Logger
}

// New creates a pipeline. A nil logger means slog.Default.
func New(registry *plugins.Registry, js job.Settings, ps parse.Settings, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{Registry: registry, Jobs: js, Parse: ps, Logger: logger}
}

// Output is everything a run produced. After a batch error the stages that
// ran are still filled in.
type Output struct {
	Parse    *answer.ParseElement
	Convert  *answer.ConvertElement
	IRs      parse.Output
	Overlays parse.Output
	Nodes    convert.Output
	Report   *metrics.Report
}

// Run parses device and host files, then overlay files into the same parse
// answer, then converts every IR with its overlay applied.
func (p *Pipeline) Run(ctx context.Context, snap *snapshot.Snapshot) (*Output, error) {
	ctx, span := observability.StartPipelineSpan(ctx, snap.Dir)
	defer span.End()

	out := &Output{
		Parse:    answer.NewParseElement(),
		Convert:  answer.NewConvertElement(),
		IRs:      make(parse.Output),
		Overlays: make(parse.Output),
		Nodes:    make(convert.Output),
		Report:   metrics.New(snap.Dir),
	}
	start := time.Now()
	err := p.run(ctx, snap, out)
	observability.Metrics().RecordRun(time.Since(start), len(out.Nodes), err)
	out.Report.CollectParse(out.Parse)
	out.Report.CollectConvert(out.Convert)
	out.Report.Finish(err)
	observability.RecordRunResult(span, len(snap.Files)+len(snap.Overlays), len(out.Nodes), err)
	return out, err
}

func (p *Pipeline) run(ctx context.Context, snap *snapshot.Snapshot, out *Output) error {
	logger := p.Logger.With("snapshot", snap.Dir)

	if err := p.parseFiles(ctx, logger, "parse", snap.Files, out.IRs, out); err != nil {
		return err
	}
	if err := p.parseFiles(ctx, logger, "parse overlays", snap.Overlays, out.Overlays, out); err != nil {
		return err
	}

	overlays := make(map[string]vendor.Configuration, len(out.Overlays))
	for _, ov := range out.Overlays {
		overlays[cleanPath(ov.Filename())] = ov
	}

	var jobs []job.Job[convert.Output, *answer.ConvertElement]
	for _, key := range sortedKeys(out.IRs) {
		cfg := out.IRs[key]
		if cfg.Format() == format.Iptables {
			logger.Info("skipping standalone overlay file", "file", cfg.Filename())
			continue
		}
		var overlay vendor.Configuration
		if ref := cfg.OverlayFile(); ref != "" {
			overlay = p.resolveOverlay(snap, overlays, cfg, ref, out.Parse)
		}
		jobs = append(jobs, convert.NewJob(cfg, overlay, snap.Layer1, snap.Runtime, p.Parse.Warnings))
	}

	ctx, span := observability.StartStageSpan(ctx, "convert", len(jobs))
	defer span.End()
	start := time.Now()
	err := job.Execute(ctx, p.Jobs, logger, jobs, out.Nodes, out.Convert)
	out.Report.AddStage("convert", time.Since(start), len(jobs), len(out.Convert.Errors))
	observability.RecordStageResult(span, len(out.Convert.Errors), err)
	return err
}

func (p *Pipeline) parseFiles(ctx context.Context, logger *slog.Logger, stage string, files []snapshot.File, irs parse.Output, out *Output) error {
	jobs := make([]job.Job[parse.Output, *answer.ParseElement], 0, len(files))
	for _, f := range files {
		jobs = append(jobs, parse.NewJob(parse.SingleFile(f.Path, f.Text), p.Parse, p.Registry))
	}
	ctx, span := observability.StartStageSpan(ctx, stage, len(jobs))
	defer span.End()
	before := len(out.Parse.Errors)
	start := time.Now()
	err := job.Execute(ctx, p.Jobs, logger, jobs, irs, out.Parse)
	failed := len(out.Parse.Errors) - before
	out.Report.AddStage(stage, time.Since(start), len(jobs), failed)
	observability.RecordStageResult(span, failed, err)
	return err
}

// resolveOverlay finds the parsed overlay referenced by cfg. A missing or
// unparsed overlay is a red flag on the referencing file.
func (p *Pipeline) resolveOverlay(snap *snapshot.Snapshot, overlays map[string]vendor.Configuration, cfg vendor.Configuration, ref string, pe *answer.ParseElement) vendor.Configuration {
	if ov, ok := overlays[cleanPath(ref)]; ok {
		return ov
	}
	file := cfg.Filename()
	w, ok := pe.Warnings[file]
	if !ok {
		w = warnings.New(p.Logger.With("file", file), p.Parse.Warnings)
		pe.Warnings[file] = w
	}
	if _, exists := snap.Overlay(ref); exists {
		w.RedFlag("Overlay file %q could not be parsed", ref)
	} else {
		w.RedFlag("Overlay file %q not found in snapshot", ref)
	}
	return nil
}

func cleanPath(p string) string {
	return strings.TrimPrefix(path.Clean(strings.ReplaceAll(p, "\\", "/")), "./")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewRun turns out into a storable run record and its node documents.
// err is the batch error Run returned, if any.
func NewRun(snap *snapshot.Snapshot, out *Output, err error) (*snapshot.Run, []snapshot.Object, error) {
	run := snapshot.NewRun(snap)
	for status, n := range out.Parse.StatusCounts() {
		run.ParseCounts[string(status)] = n
	}
	for file, msg := range out.Parse.Errors {
		run.Failures[file] = msg
	}
	for host, msg := range out.Convert.Errors {
		run.Failures[host] = msg
	}

	var objects []snapshot.Object
	for _, host := range sortedKeys(out.Nodes) {
		node := out.Nodes[host]
		data, merr := json.MarshalIndent(node, "", "  ")
		if merr != nil {
			return nil, nil, fmt.Errorf("encode node %s: %w", host, merr)
		}
		objects = append(objects, run.AddNode(host, node.SourceFile, string(out.Convert.ConvertStatus[host]), data))
	}

	switch {
	case err != nil:
		run.Status = snapshot.StatusFailed
	case len(run.Failures) > 0:
		run.Status = snapshot.StatusPartial
	}
	return run, objects, nil
}
