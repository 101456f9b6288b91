package dashboard

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/batfish/batfish-sub054/internal/snapshot"
)

func newTestStore(t *testing.T) *snapshot.Store {
	t.Helper()
	store, err := snapshot.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	runs := []struct {
		id     string
		tag    string
		status string
		nodes  map[string]string
	}{
		{"run-1", "baseline", snapshot.StatusSuccess, map[string]string{"r1": "{\n  \"a\": 1\n}"}},
		{"run-2", "", snapshot.StatusPartial, map[string]string{"r1": "{\n  \"a\": 2\n}", "r2": "{}"}},
	}
	for i, r := range runs {
		run := snapshot.NewRun(nil)
		run.ID = r.id
		run.Tag = r.tag
		run.Status = r.status
		run.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		run.Fingerprint = "fp-" + r.id
		var objects []snapshot.Object
		for _, host := range []string{"r1", "r2"} {
			if content, ok := r.nodes[host]; ok {
				objects = append(objects, run.AddNode(host, "configs/"+host+".cfg", "PASSED", []byte(content)))
			}
		}
		if err := store.Save(run, objects); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func newTestDashboard(t *testing.T) *Dashboard {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(&Config{KeepAlive: time.Hour}, newTestStore(t), logger)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestServer_Runs(t *testing.T) {
	h := newTestDashboard(t).Server.Handler()

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/runs", []string{"run-2", "run-1"}},
		{"/api/runs?tag=baseline", []string{"run-1"}},
		{"/api/runs?status=partial", []string{"run-2"}},
		{"/api/runs?status=failed", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var got []snapshot.RunSummary
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d runs, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("runs[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestServer_RunByIDOrTag(t *testing.T) {
	h := newTestDashboard(t).Server.Handler()

	for _, ref := range []string{"run-1", "baseline"} {
		rec := get(t, h, "/api/runs/"+ref)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", ref, rec.Code)
		}
		var run snapshot.Run
		if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
			t.Fatal(err)
		}
		if run.ID != "run-1" || len(run.Nodes) != 1 {
			t.Errorf("%s: run = %+v", ref, run)
		}
	}

	if rec := get(t, h, "/api/runs/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing run status = %d", rec.Code)
	}
}

func TestServer_Node(t *testing.T) {
	h := newTestDashboard(t).Server.Handler()

	rec := get(t, h, "/api/runs/run-2/nodes/r2")
	if rec.Code != http.StatusOK || rec.Body.String() != "{}" {
		t.Errorf("node = %d %q", rec.Code, rec.Body.String())
	}
	if rec := get(t, h, "/api/runs/run-1/nodes/r2"); rec.Code != http.StatusNotFound {
		t.Errorf("absent node status = %d", rec.Code)
	}
}

func TestServer_Diff(t *testing.T) {
	h := newTestDashboard(t).Server.Handler()

	rec := get(t, h, "/api/diff?from=baseline&to=run-2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var diff snapshot.RunDiff
	if err := json.Unmarshal(rec.Body.Bytes(), &diff); err != nil {
		t.Fatal(err)
	}
	if diff.OldID != "run-1" || diff.NewID != "run-2" || diff.SameInputs {
		t.Errorf("diff = %+v", diff)
	}
	types := make(map[string]snapshot.ChangeType)
	for _, nd := range diff.NodeDiffs {
		types[nd.Hostname] = nd.Type
	}
	if types["r1"] != snapshot.NodeModified || types["r2"] != snapshot.NodeAdded {
		t.Errorf("node diffs = %v", types)
	}

	if rec := get(t, h, "/api/diff?from=run-1"); rec.Code != http.StatusBadRequest {
		t.Errorf("missing to status = %d", rec.Code)
	}
	if rec := get(t, h, "/api/diff?from=run-1&to=nope"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d", rec.Code)
	}
}

func TestServer_Stats(t *testing.T) {
	h := newTestDashboard(t).Server.Handler()

	var st Stats
	if err := json.Unmarshal(get(t, h, "/api/stats").Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st.TotalRuns != 2 || st.TaggedRuns != 1 || st.TotalNodes != 3 || st.Snapshots != 2 {
		t.Errorf("stats = %+v", st)
	}
	if st.ByStatus[snapshot.StatusSuccess] != 1 || st.ByStatus[snapshot.StatusPartial] != 1 {
		t.Errorf("by status = %v", st.ByStatus)
	}
	if st.LatestRun != "run-2" {
		t.Errorf("latest = %s", st.LatestRun)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestDashboard(t).Server.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/runs", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestEmitter_Recent(t *testing.T) {
	e := NewEmitter(nil)

	run := snapshot.NewRun(nil)
	run.SnapshotDir = "snap"
	e.RunStarted("snap")
	e.RunCompleted(run)
	e.RunCompleted(nil)
	e.RunFailed("other", errors.New("no such directory"))

	got := e.Recent(0)
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	wantTypes := []string{EventRunFailed, EventRunCompleted, EventRunStarted}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Errorf("events[%d] = %s, want %s", i, got[i].Type, want)
		}
	}
	if got[0].Error != "no such directory" || got[0].Status != snapshot.StatusFailed {
		t.Errorf("failure event = %+v", got[0])
	}
	if got[1].RunID != run.ID {
		t.Errorf("completed run id = %s", got[1].RunID)
	}
	if len(e.Recent(1)) != 1 {
		t.Error("limit ignored")
	}
}

func TestEmitter_Eviction(t *testing.T) {
	e := NewEmitter(nil)
	for i := 0; i < maxRecentEvents+1; i++ {
		e.RunStarted("snap")
	}
	n := len(e.Recent(0))
	if n > maxRecentEvents || n < maxRecentEvents-maxRecentEvents/10 {
		t.Errorf("kept %d events", n)
	}
}

func TestServer_Activity(t *testing.T) {
	d := newTestDashboard(t)
	d.Emitter.RunStarted("a")
	d.Emitter.RunStarted("b")

	var events []Event
	if err := json.Unmarshal(get(t, d.Server.Handler(), "/api/activity?limit=1").Body.Bytes(), &events); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].SnapshotDir != "b" {
		t.Errorf("events = %+v", events)
	}
}

func TestServer_EventStream(t *testing.T) {
	d := newTestDashboard(t)
	ts := httptest.NewServer(d.Server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	events := make(chan Event, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line, ok := strings.CutPrefix(scanner.Text(), "data: ")
			if !ok {
				continue
			}
			var ev Event
			if json.Unmarshal([]byte(line), &ev) == nil {
				events <- ev
			}
		}
		close(events)
	}()

	next := func() Event {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatal("stream closed")
			}
			return ev
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for event")
		}
		return Event{}
	}

	if ev := next(); ev.Type != EventConnected {
		t.Fatalf("first event = %s", ev.Type)
	}
	d.Emitter.RunFailed("snap", errors.New("boom"))
	if ev := next(); ev.Type != EventRunFailed || ev.Error != "boom" {
		t.Errorf("event = %+v", ev)
	}
}

func TestHub_CloseAllEndsStreams(t *testing.T) {
	d := newTestDashboard(t)
	ts := httptest.NewServer(d.Server.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	reader := bufio.NewReader(resp.Body)
	if line, err := reader.ReadString('\n'); err != nil || !strings.Contains(line, EventConnected) {
		t.Fatalf("first line = %q, %v", line, err)
	}
	if d.Hub.ClientCount() != 1 {
		t.Fatalf("clients = %d", d.Hub.ClientCount())
	}

	d.Hub.CloseAll()
	if _, err := io.ReadAll(reader); err != nil {
		t.Fatalf("stream did not end cleanly: %v", err)
	}
	if d.Hub.ClientCount() != 0 {
		t.Errorf("clients = %d after CloseAll", d.Hub.ClientCount())
	}
}
