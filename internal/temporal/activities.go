package temporal

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/batfish/batfish-sub054/internal/graph"
	"github.com/batfish/batfish-sub054/internal/pipeline"
	"github.com/batfish/batfish-sub054/internal/qualitygate"
	"github.com/batfish/batfish-sub054/internal/snapshot"
)

// ActivityResult is the serializable summary of one processed snapshot.
type ActivityResult struct {
	RunID         string
	Fingerprint   string
	Status        string
	ParseCounts   map[string]int
	ConvertCounts map[string]int
	Hostnames     []string
	Failures      map[string]string
	Errors        []string
	ReportJSON    string
	GraphExported bool
	// GateStatus is empty when no gates are configured.
	GateStatus  string
	GateSummary string
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Pipeline *pipeline.Pipeline
	// Store is used when the input names no store directory. Optional.
	Store *snapshot.Store
	// Graph receives the converted topology when the input asks for it.
	// Optional.
	Graph graph.Repository
	// Gates, when set, are evaluated over every run. Optional.
	Gates *qualitygate.GateConfig
	// Events hears about every run the activity starts. Optional.
	Events RunNotifier
}

// RunNotifier receives run lifecycle events, e.g. to feed a dashboard.
type RunNotifier interface {
	RunStarted(snapshotDir string)
	RunCompleted(run *snapshot.Run)
	RunFailed(snapshotDir string, err error)
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// ProcessSnapshotActivity loads a snapshot, runs the pipeline over it and
// stores the run. A failed batch is reported in the result rather than as
// an activity error since retrying would fail the same way.
func ProcessSnapshotActivity(ctx context.Context, input ProcessSnapshotInput) (ActivityResult, error) {
	if deps == nil || deps.Pipeline == nil {
		return ActivityResult{}, errors.New("temporal: dependencies not set")
	}
	logger := deps.Pipeline.Logger.With("snapshot", input.SnapshotDir)

	if deps.Events != nil {
		deps.Events.RunStarted(input.SnapshotDir)
	}

	snap, err := snapshot.Load(input.SnapshotDir)
	if err != nil {
		if deps.Events != nil {
			deps.Events.RunFailed(input.SnapshotDir, err)
		}
		return ActivityResult{}, err
	}
	out, runErr := deps.Pipeline.Run(ctx, snap)
	if runErr != nil {
		logger.Warn("snapshot batch failed", "error", runErr)
	}

	run, objects, err := pipeline.NewRun(snap, out, runErr)
	if err != nil {
		return ActivityResult{}, err
	}
	run.Tag = input.Tag

	store := deps.Store
	if input.StoreDir != "" {
		if store, err = snapshot.NewStore(input.StoreDir); err != nil {
			return ActivityResult{}, err
		}
	}
	if store != nil {
		if err := store.Save(run, objects); err != nil {
			return ActivityResult{}, fmt.Errorf("save run: %w", err)
		}
	}
	if deps.Events != nil {
		deps.Events.RunCompleted(run)
	}

	report, err := out.Report.JSON()
	if err != nil {
		return ActivityResult{}, err
	}
	result := ActivityResult{
		RunID:         run.ID,
		Fingerprint:   run.Fingerprint,
		Status:        run.Status,
		ParseCounts:   run.ParseCounts,
		ConvertCounts: make(map[string]int),
		Failures:      run.Failures,
		Errors:        out.Report.Errors,
		ReportJSON:    string(report),
	}
	for status, n := range out.Convert.StatusCounts() {
		result.ConvertCounts[string(status)] = n
	}
	for host := range out.Nodes {
		result.Hostnames = append(result.Hostnames, host)
	}
	sort.Strings(result.Hostnames)

	if deps.Gates != nil {
		gates := qualitygate.Evaluate(deps.Gates, out.Report)
		result.GateStatus = string(gates.Status)
		result.GateSummary = gates.Summary
	}

	if input.ExportGraph && deps.Graph != nil && len(out.Nodes) > 0 {
		if err := deps.Graph.StoreTopology(ctx, run.ID, out.Nodes); err != nil {
			return ActivityResult{}, fmt.Errorf("export graph: %w", err)
		}
		result.GraphExported = true
	}
	logger.Info("snapshot processed", "run", run.ID, "status", run.Status, "nodes", len(result.Hostnames))
	return result, nil
}
