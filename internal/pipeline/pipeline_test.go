package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/batfish/batfish-sub054/internal/job"
	"github.com/batfish/batfish-sub054/internal/parse"
	"github.com/batfish/batfish-sub054/internal/plugins/builtin"
	"github.com/batfish/batfish-sub054/internal/snapshot"
)

const (
	r1 = `hostname r1
interface Loopback0
 ip address 1.1.1.1 255.255.255.255
`
	web1 = `{
  "hostname": "web1",
  "iptablesFile": "iptables/web1.iptables",
  "hostInterfaces": {
    "eth0": {"name": "eth0", "prefix": "10.1.1.10/24"}
  }
}`
	web2 = `{
  "hostname": "web2",
  "iptablesFile": "iptables/missing.iptables",
  "hostInterfaces": {
    "eth0": {"name": "eth0", "prefix": "10.1.1.11/24"}
  }
}`
	web1Rules = `*filter
:INPUT DROP [0:0]
:FORWARD ACCEPT [0:0]
:OUTPUT ACCEPT [0:0]
-A INPUT -p tcp --dport 22 -j ACCEPT
COMMIT
`
)

func writeSnapshot(t *testing.T, files map[string]string) *snapshot.Snapshot {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := snapshot.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return snap
}

func newPipeline(t *testing.T, js job.Settings) *Pipeline {
	t.Helper()
	r, err := builtin.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	return New(r, js, parse.DefaultSettings(), slog.Default())
}

func TestRun(t *testing.T) {
	snap := writeSnapshot(t, map[string]string{
		"configs/r1.cfg":         r1,
		"hosts/web1.json":        web1,
		"hosts/web2.json":        web2,
		"iptables/web1.iptables": web1Rules,
	})
	out, err := newPipeline(t, job.Settings{}).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(out.Parse.ParseStatus) != 4 {
		t.Errorf("parse statuses = %v", out.Parse.ParseStatus)
	}
	for file, status := range out.Parse.ParseStatus {
		if !status.HasIR() {
			t.Errorf("%s: status %s", file, status)
		}
	}
	if len(out.IRs) != 3 || len(out.Overlays) != 1 {
		t.Errorf("irs = %d, overlays = %d", len(out.IRs), len(out.Overlays))
	}

	for _, host := range []string{"r1", "web1", "web2"} {
		if _, ok := out.Nodes[host]; !ok {
			t.Errorf("missing node %s in %v", host, out.Nodes)
		}
	}
	if len(out.Nodes) != 3 {
		t.Errorf("nodes = %d", len(out.Nodes))
	}

	eth0, ok := out.Nodes["web1"].Interfaces.Get("eth0")
	if !ok || eth0.IncomingFilter != "filter::INPUT" {
		t.Errorf("web1 eth0 = %+v", eth0)
	}
	if !out.Nodes["web1"].IpAccessLists.Has("filter::INPUT") {
		t.Errorf("overlay ACLs not added: %v", out.Nodes["web1"].IpAccessLists.Keys())
	}
	if out.Nodes["web2"].IpAccessLists.Len() != 0 {
		t.Errorf("web2 should have no ACLs: %v", out.Nodes["web2"].IpAccessLists.Keys())
	}

	w, ok := out.Parse.Warnings["hosts/web2.json"]
	if !ok || len(w.RedFlags) != 1 || !strings.Contains(w.RedFlags[0].Text, "not found") {
		t.Errorf("web2 warnings = %+v", w)
	}

	if out.Report.Parse.Files != 4 || out.Report.Convert.Nodes != 3 || len(out.Report.Stages) != 3 {
		t.Errorf("report = %+v", out.Report)
	}

	run, objects, err := NewRun(snap, out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != snapshot.StatusSuccess || len(run.Nodes) != 3 || len(objects) != 3 {
		t.Errorf("run = %+v", run)
	}
	if run.Nodes[0].Hostname != "r1" || run.Nodes[0].SourceFile != "configs/r1.cfg" {
		t.Errorf("first node = %+v", run.Nodes[0])
	}
	if run.Fingerprint != snap.Fingerprint() {
		t.Errorf("run fingerprint = %s", run.Fingerprint)
	}
}

const bad = `hostname bad
banner motd ^C
never closed
`

func TestRun_FailuresAndStandaloneOverlay(t *testing.T) {
	snap := writeSnapshot(t, map[string]string{
		"configs/r1.cfg":      r1,
		"configs/bad.cfg":     bad,
		"configs/fw.iptables": web1Rules,
	})
	out, err := newPipeline(t, job.Settings{Sequential: true}).Run(context.Background(), snap)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := out.Parse.Errors["configs/bad.cfg"]; !ok {
		t.Errorf("bad.cfg should fail: %v", out.Parse.ParseStatus)
	}
	if _, ok := out.IRs["fw"]; !ok {
		t.Errorf("standalone iptables file should still parse: %v", out.IRs)
	}
	if len(out.Nodes) != 1 || len(out.Convert.Errors) != 0 {
		t.Errorf("nodes = %v, convert errors = %v", out.Nodes, out.Convert.Errors)
	}

	run, _, err := NewRun(snap, out, nil)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != snapshot.StatusPartial || run.Failures["configs/bad.cfg"] == "" {
		t.Errorf("run = %+v", run)
	}
	if run.ParseCounts["FAILED"] != 1 {
		t.Errorf("parse counts = %v", run.ParseCounts)
	}
}

func TestRun_HaltOnProcessingError(t *testing.T) {
	snap := writeSnapshot(t, map[string]string{
		"configs/r1.cfg":  r1,
		"configs/bad.cfg": bad,
	})
	out, err := newPipeline(t, job.Settings{HaltOnProcessingError: true}).Run(context.Background(), snap)
	var be *job.BatchError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v", err)
	}
	if len(out.Nodes) != 0 {
		t.Errorf("convert should not run after a halted parse batch: %v", out.Nodes)
	}
	if len(out.Report.Errors) == 0 {
		t.Errorf("report should carry the batch error")
	}

	run, _, err := NewRun(snap, out, err)
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != snapshot.StatusFailed {
		t.Errorf("status = %s", run.Status)
	}
}
