package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type output struct {
	values map[string]int
}

type answer struct {
	order []string
}

type fakeJob struct {
	key   string
	value int
	fail  error
	delay time.Duration
	ran   *atomic.Int32
	panic bool
}

func (j *fakeJob) Key() string { return j.key }

func (j *fakeJob) Run(_ context.Context, logger *slog.Logger) Result[*output, *answer] {
	if j.ran != nil {
		j.ran.Add(1)
	}
	logger.Info("first line", "value", j.value)
	time.Sleep(j.delay)
	if j.panic {
		panic("boom")
	}
	logger.Info("second line", "value", j.value)
	return &fakeResult{key: j.key, value: j.value, err: j.fail}
}

type fakeResult struct {
	key   string
	value int
	err   error
}

func (r *fakeResult) ApplyTo(out *output, logger *slog.Logger, ae *answer) {
	out.values[r.key] = r.value
	ae.order = append(ae.order, r.key)
}

func (r *fakeResult) Failure() error { return r.err }

func makeJobs(n int, ran *atomic.Int32) []Job[*output, *answer] {
	jobs := make([]Job[*output, *answer], n)
	for i := range n {
		jobs[i] = &fakeJob{key: fmt.Sprintf("job-%02d", i), value: i, delay: time.Duration(i%3) * time.Millisecond, ran: ran}
	}
	return jobs
}

func newOutput() (*output, *answer) {
	return &output{values: map[string]int{}}, &answer{}
}

func TestExecute_DrainsEveryJob(t *testing.T) {
	for _, s := range []Settings{
		{Sequential: true},
		{JobBudget: 4},
		{JobBudget: 4, Shuffle: true},
		{},
	} {
		t.Run(fmt.Sprintf("%+v", s), func(t *testing.T) {
			out, ae := newOutput()
			if err := Execute(context.Background(), s, nil, makeJobs(25, nil), out, ae); err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if len(out.values) != 25 || len(ae.order) != 25 {
				t.Fatalf("expected 25 applied results, got %d/%d", len(out.values), len(ae.order))
			}
		})
	}
}

func TestExecute_SequentialKeepsOrder(t *testing.T) {
	out, ae := newOutput()
	jobs := makeJobs(10, nil)
	if err := Execute(context.Background(), Settings{Sequential: true, Shuffle: true}, nil, jobs, out, ae); err != nil {
		t.Fatal(err)
	}
	for i, key := range ae.order {
		if key != jobs[i].Key() {
			t.Fatalf("position %d: got %s, want %s", i, key, jobs[i].Key())
		}
	}
}

func TestExecute_FailuresAreAppliedWithoutHalt(t *testing.T) {
	out, ae := newOutput()
	jobs := makeJobs(5, nil)
	jobs[1].(*fakeJob).fail = errors.New("bad file")
	if err := Execute(context.Background(), Settings{JobBudget: 2}, nil, jobs, out, ae); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := out.values["job-01"]; !ok {
		t.Error("failed result should still be applied")
	}
}

func TestExecute_HaltOnProcessingError(t *testing.T) {
	out, ae := newOutput()
	jobs := makeJobs(6, nil)
	causeA := errors.New("a")
	causeB := errors.New("b")
	jobs[2].(*fakeJob).fail = causeA
	jobs[4].(*fakeJob).fail = causeB

	err := Execute(context.Background(), Settings{JobBudget: 3, HaltOnProcessingError: true}, nil, jobs, out, ae)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BatchError, got %v", err)
	}
	if len(be.Failures) != 2 || be.Total != 6 {
		t.Errorf("unexpected batch error: %v", be)
	}
	if !errors.Is(err, causeA) || !errors.Is(err, causeB) {
		t.Error("batch error should unwrap to every cause")
	}
	if len(out.values) != 6 {
		t.Errorf("all results should be applied before halting, got %d", len(out.values))
	}
}

func TestExecute_ExitOnFirstError(t *testing.T) {
	out, ae := newOutput()
	var ran atomic.Int32
	jobs := makeJobs(6, &ran)
	cause := errors.New("fatal")
	jobs[2].(*fakeJob).fail = cause

	err := Execute(context.Background(), Settings{Sequential: true, ExitOnFirstError: true}, nil, jobs, out, ae)
	var je *Error
	if !errors.As(err, &je) || je.Key != "job-02" || !errors.Is(err, cause) {
		t.Fatalf("expected job error for job-02, got %v", err)
	}
	if strings.Join(ae.order, ",") != "job-00,job-01" {
		t.Errorf("applied %v, want only the jobs before the failure", ae.order)
	}
	if n := ran.Load(); n < 3 {
		t.Errorf("expected at least the first three jobs to run, got %d", n)
	}
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	out, ae := newOutput()
	jobs := makeJobs(3, nil)
	jobs[0].(*fakeJob).panic = true

	err := Execute(context.Background(), Settings{HaltOnProcessingError: true}, nil, jobs, out, ae)
	if err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Fatalf("expected panic failure, got %v", err)
	}
	if len(out.values) != 2 {
		t.Errorf("expected the two healthy results, got %d", len(out.values))
	}
}

func TestExecute_ReplaysHistoryAsBlock(t *testing.T) {
	var buf syncBuffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	out, ae := newOutput()
	jobs := makeJobs(8, nil)
	for _, j := range jobs {
		j.(*fakeJob).delay = 2 * time.Millisecond
	}

	if err := Execute(context.Background(), Settings{JobBudget: 4}, logger, jobs, out, ae); err != nil {
		t.Fatal(err)
	}

	var jobLines []string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "first line") || strings.Contains(line, "second line") {
			jobLines = append(jobLines, line)
		}
	}
	if len(jobLines) != 16 {
		t.Fatalf("expected 16 job log lines, got %d", len(jobLines))
	}
	for i := 0; i < len(jobLines); i += 2 {
		if !strings.Contains(jobLines[i], "first line") || !strings.Contains(jobLines[i+1], "second line") {
			t.Fatalf("job logs interleaved at %d:\n%s\n%s", i, jobLines[i], jobLines[i+1])
		}
		key := jobLines[i][strings.Index(jobLines[i], "job="):]
		if !strings.HasSuffix(jobLines[i+1], key) {
			t.Fatalf("lines %d and %d belong to different jobs", i, i+1)
		}
	}
}

func TestExecute_Empty(t *testing.T) {
	out, ae := newOutput()
	if err := Execute[*output, *answer](context.Background(), Settings{}, nil, nil, out, ae); err != nil {
		t.Fatal(err)
	}
}

func TestWorkers(t *testing.T) {
	procs := runtime.GOMAXPROCS(0)
	tests := []struct {
		name string
		s    Settings
		n    int
		want int
	}{
		{"sequential", Settings{Sequential: true, JobBudget: 8}, 100, 1},
		{"budget caps", Settings{JobBudget: 1}, 100, 1},
		{"no budget", Settings{}, 1000, procs},
		{"negative budget", Settings{JobBudget: -1}, 1000, procs},
		{"fewer jobs than workers", Settings{}, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Workers(tt.s, tt.n); got != tt.want {
				t.Errorf("Workers() = %d, want %d", got, tt.want)
			}
		})
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
