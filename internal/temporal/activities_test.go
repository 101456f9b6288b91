package temporal

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"go.temporal.io/sdk/testsuite"

	"github.com/batfish/batfish-sub054/internal/dashboard"
	"github.com/batfish/batfish-sub054/internal/job"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/parse"
	"github.com/batfish/batfish-sub054/internal/pipeline"
	"github.com/batfish/batfish-sub054/internal/plugins/builtin"
	"github.com/batfish/batfish-sub054/internal/qualitygate"
	"github.com/batfish/batfish-sub054/internal/snapshot"
)

type mockGraph struct {
	snapshotID string
	nodes      map[string]*model.Configuration
	err        error
}

func (m *mockGraph) StoreTopology(ctx context.Context, snapshotID string, nodes map[string]*model.Configuration) error {
	m.snapshotID, m.nodes = snapshotID, nodes
	return m.err
}

func (m *mockGraph) LoadHostnames(ctx context.Context, snapshotID string) ([]string, error) {
	return nil, nil
}

func (m *mockGraph) Close(ctx context.Context) error { return nil }

func setupDeps(t *testing.T, g *mockGraph) {
	t.Helper()
	reg, err := builtin.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	d := &Dependencies{Pipeline: pipeline.New(reg, job.Settings{}, parse.DefaultSettings(), slog.Default())}
	if g != nil {
		d.Graph = g
	}
	SetDependencies(d)
	t.Cleanup(func() { SetDependencies(nil) })
}

func writeSnapshot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"configs/r1.cfg":  "hostname r1\ninterface Loopback0\n ip address 1.1.1.1 255.255.255.255\n",
		"configs/r2.cfg":  "hostname r2\n",
		"configs/bad.cfg": "hostname bad\nbanner motd ^C\nnever closed\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestProcessSnapshotActivity(t *testing.T) {
	g := &mockGraph{}
	setupDeps(t, g)
	storeDir := t.TempDir()

	result, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{
		SnapshotDir: writeSnapshot(t),
		StoreDir:    storeDir,
		Tag:         "nightly",
		ExportGraph: true,
	})
	if err != nil {
		t.Fatalf("ProcessSnapshotActivity: %v", err)
	}
	if len(result.Hostnames) != 2 || result.Hostnames[0] != "r1" || result.Hostnames[1] != "r2" {
		t.Errorf("hostnames = %v", result.Hostnames)
	}
	if result.Status != snapshot.StatusPartial || result.Failures["configs/bad.cfg"] == "" {
		t.Errorf("status = %s, failures = %v", result.Status, result.Failures)
	}
	if result.ParseCounts["PASSED"] != 2 || result.ReportJSON == "" {
		t.Errorf("parse counts = %v", result.ParseCounts)
	}
	if !result.GraphExported || g.snapshotID != result.RunID || len(g.nodes) != 2 {
		t.Errorf("graph export = %v, %q, %d nodes", result.GraphExported, g.snapshotID, len(g.nodes))
	}

	store, err := snapshot.NewStore(storeDir)
	if err != nil {
		t.Fatal(err)
	}
	run, err := store.FindByTag("nightly")
	if err != nil {
		t.Fatalf("stored run: %v", err)
	}
	if run.ID != result.RunID || len(run.Nodes) != 2 {
		t.Errorf("stored run = %+v", run)
	}
}

func TestProcessSnapshotActivity_Gates(t *testing.T) {
	setupDeps(t, nil)
	deps.Gates = qualitygate.DefaultConfig()

	result, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{SnapshotDir: writeSnapshot(t)})
	if err != nil {
		t.Fatal(err)
	}
	// bad.cfg fails to parse, so the default parse pass rate gate fails.
	if result.GateStatus != string(qualitygate.GateFailed) || result.GateSummary == "" {
		t.Errorf("gate status = %q, summary = %q", result.GateStatus, result.GateSummary)
	}
}

func TestProcessSnapshotActivity_Events(t *testing.T) {
	setupDeps(t, nil)
	events := dashboard.NewEmitter(nil)
	deps.Events = events

	dir := writeSnapshot(t)
	result, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{SnapshotDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(t.TempDir(), "nope")
	if _, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{SnapshotDir: missing}); err == nil {
		t.Fatal("expected error for missing snapshot")
	}

	got := events.Recent(0)
	want := []string{dashboard.EventRunFailed, dashboard.EventRunStarted, dashboard.EventRunCompleted, dashboard.EventRunStarted}
	if len(got) != len(want) {
		t.Fatalf("got %d events, want %d", len(got), len(want))
	}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Errorf("events[%d] = %s, want %s", i, got[i].Type, typ)
		}
	}
	if got[2].RunID != result.RunID || got[2].SnapshotDir != dir {
		t.Errorf("completed event = %+v", got[2])
	}
}

func TestProcessSnapshotActivity_GraphError(t *testing.T) {
	setupDeps(t, &mockGraph{err: errors.New("neo4j down")})
	_, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{
		SnapshotDir: writeSnapshot(t),
		ExportGraph: true,
	})
	if err == nil {
		t.Fatal("expected graph export error")
	}
}

func TestProcessSnapshotActivity_MissingSnapshot(t *testing.T) {
	setupDeps(t, nil)
	_, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{
		SnapshotDir: filepath.Join(t.TempDir(), "nope"),
	})
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestProcessSnapshotActivity_NoDependencies(t *testing.T) {
	SetDependencies(nil)
	if _, err := ProcessSnapshotActivity(context.Background(), ProcessSnapshotInput{}); err == nil {
		t.Fatal("expected error without dependencies")
	}
}

func TestProcessSnapshotWorkflow(t *testing.T) {
	setupDeps(t, nil)
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterActivity(ProcessSnapshotActivity)

	env.ExecuteWorkflow(ProcessSnapshotWorkflow, ProcessSnapshotInput{SnapshotDir: writeSnapshot(t)})
	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var out ProcessSnapshotOutput
	if err := env.GetWorkflowResult(&out); err != nil {
		t.Fatal(err)
	}
	if out.Nodes != 2 || out.RunID == "" || out.GraphExported {
		t.Errorf("output = %+v", out)
	}
}
