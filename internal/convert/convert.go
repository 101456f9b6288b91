// Package convert implements the convert job: vendor-specific IR to
// finalized vendor-independent nodes.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/job"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/observability"
	"github.com/batfish/batfish-sub054/internal/vendor"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Output is the shared output convert results merge into, keyed by hostname.
type Output = map[string]*model.Configuration

// Job converts one IR, optionally with an overlay applied on top.
type Job struct {
	Config   vendor.Configuration
	Overlay  vendor.Configuration
	Context  *vendor.ConversionContext
	Runtime  *vendor.RuntimeData
	Warnings warnings.Settings
}

// NewJob creates a convert job. Nil context or runtime data mean "no facts".
func NewJob(cfg, overlay vendor.Configuration, cc *vendor.ConversionContext, rd *vendor.RuntimeData, ws warnings.Settings) *Job {
	return &Job{Config: cfg, Overlay: overlay, Context: cc, Runtime: rd, Warnings: ws}
}

func (j *Job) Key() string { return j.Config.Filename() }

// Run converts and finalizes. Any conversion error or panic fails the job
// and no node is reported.
func (j *Job) Run(ctx context.Context, logger *slog.Logger) job.Result[Output, *answer.ConvertElement] {
	return j.run(ctx, logger)
}

func (j *Job) run(ctx context.Context, logger *slog.Logger) (r *Result) {
	start := time.Now()
	cfg := j.Config
	r = &Result{
		File:       cfg.Filename(),
		Hostname:   cfg.Hostname(),
		Defined:    cfg.Structures().Defined(),
		Referenced: cfg.Structures().Referenced(),
		Undefined:  cfg.Structures().Undefined(),
	}
	defer func() {
		if p := recover(); p != nil {
			err, ok := p.(error)
			if !ok || !errors.Is(err, model.ErrInternal) {
				logger.Error("conversion panicked", "panic", p)
				err = fmt.Errorf("convert %s: panic: %v", r.File, p)
			}
			r.fail(err)
		}
		r.Elapsed = time.Since(start)
	}()

	cc, rd := j.Context, j.Runtime
	if cc == nil {
		cc = vendor.EmptyConversionContext()
	}
	if rd == nil {
		rd = vendor.EmptyRuntimeData()
	}

	w := warnings.New(logger, j.Warnings)
	parseWarnings := cfg.Warnings()
	cfg.SetWarnings(w)
	defer cfg.SetWarnings(parseWarnings)

	nodes, err := cfg.ToVendorIndependentConfigurations(ctx, cc, rd)
	if err != nil {
		return r.fail(fmt.Errorf("convert %s: %w", r.File, err))
	}
	if len(nodes) == 0 {
		return r.fail(model.Internalf("convert %s: no nodes produced", r.File))
	}
	for _, node := range nodes {
		if node.SourceFile == "" {
			node.SourceFile = cfg.Filename()
		}
		if node.ConfigurationFormat == "" {
			node.ConfigurationFormat = cfg.Format()
		}
	}

	if j.Overlay != nil {
		if err := j.applyOverlay(nodes, w); err != nil {
			return r.fail(fmt.Errorf("overlay %s on %s: %w", j.Overlay.Filename(), r.File, err))
		}
	}

	r.Warnings = make(map[*model.Configuration]*warnings.Warnings, len(nodes))
	for _, node := range nodes {
		nw := w.Clone()
		if err := Finalize(node, nw); err != nil {
			return r.fail(err)
		}
		r.Warnings[node] = nw
	}
	r.Nodes = nodes
	logger.Debug("converted", "nodes", len(nodes))
	return r
}

func (j *Job) applyOverlay(nodes []*model.Configuration, w *warnings.Warnings) error {
	host, hostOK := j.Config.(vendor.OverlayHost)
	overlay, overlayOK := j.Overlay.(vendor.Overlay)
	if !hostOK || !host.SupportsOverlay() || !overlayOK {
		w.RedFlag("Overlay %q ignored: %s (%s) cannot be overlaid with %s",
			j.Overlay.Filename(), j.Config.Filename(), j.Config.Format(), j.Overlay.Format())
		return nil
	}
	for _, node := range nodes {
		if err := overlay.AddAsAccessLists(node, w); err != nil {
			return err
		}
		if err := overlay.ApplyAsOverlay(node, w); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of a convert job.
type Result struct {
	File       string
	Hostname   string
	Nodes      []*model.Configuration
	Warnings   map[*model.Configuration]*warnings.Warnings
	Defined    map[string]map[string]vendor.DefinedStructure
	Referenced map[string]map[string]map[string][]int
	Undefined  map[string]map[string]map[string][]int
	Err        error
	Elapsed    time.Duration
}

func (r *Result) fail(err error) *Result {
	r.Err = err
	r.Nodes = nil
	r.Warnings = nil
	return r
}

// Failure returns the error that failed the job.
func (r *Result) Failure() error { return r.Err }

// ApplyTo records structure bookkeeping for the file and inserts every node
// into out under a unique hostname.
func (r *Result) ApplyTo(out Output, logger *slog.Logger, ce *answer.ConvertElement) {
	if len(r.Defined) > 0 {
		ce.DefinedStructures[r.File] = r.Defined
	}
	if len(r.Referenced) > 0 {
		ce.ReferencedStructures[r.File] = r.Referenced
	}
	if len(r.Undefined) > 0 {
		ce.UndefinedReferences[r.File] = r.Undefined
	}
	metrics := observability.Metrics()

	if r.Err != nil {
		key := r.claim(out, ce, r.Hostname, nil)
		if key != r.Hostname {
			metrics.RecordDuplicateHostname("convert")
			logger.Warn("failed conversion renamed", "hostname", r.Hostname, "key", key, "file", r.File)
		}
		ce.ConvertStatus[key] = answer.ConvertFailed
		ce.Errors[key] = r.Err.Error()
		ce.ErrorDetails[key] = answer.ErrorDetails{Message: r.Err.Error()}
		metrics.RecordConvertStatus(string(answer.ConvertFailed))
		return
	}

	for _, node := range r.Nodes {
		w := r.Warnings[node]
		w.SetLogger(logger.With("host", node.Hostname))
		key := r.claim(out, ce, node.Hostname, w)
		if key != node.Hostname {
			metrics.RecordDuplicateHostname("convert")
		}
		node.Hostname = key
		out[key] = node
		ce.AddFileHost(r.File, key)

		status := answer.ConvertPassed
		if !w.IsEmpty() {
			status = answer.ConvertWarnings
			ce.Warnings[key] = w
		}
		ce.ConvertStatus[key] = status
		metrics.RecordConvertStatus(string(status))
	}
}

// claim reserves the key for hostname among every key handed out so far,
// failed jobs included. Entries moved aside by a new collision take their
// node in out and their answer rows with them.
func (r *Result) claim(out Output, ce *answer.ConvertElement, hostname string, w *warnings.Warnings) string {
	renamer := answer.Renamer[*answer.HostClaim]{
		File: func(c *answer.HostClaim) string { return c.File },
		Rename: func(c *answer.HostClaim, name string) {
			if node, ok := out[c.Host]; ok {
				delete(out, c.Host)
				node.Hostname = name
				out[name] = node
			}
			ce.RenameHost(c.Host, name)
			c.Host = name
		},
	}
	claims := ce.Claims()
	key := answer.ResolveHostname(claims, ce.DuplicateHostnames, hostname, r.File, renamer, w)
	claims[key] = &answer.HostClaim{Host: key, File: r.File}
	return key
}
