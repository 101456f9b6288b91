package job

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/batfish/batfish-sub054/internal/observability"
)

// completion is what a worker hands to the drain loop.
type completion[O, A any] struct {
	key     string
	result  Result[O, A]
	history *History
	elapsed time.Duration
}

// Workers returns the pool size Execute will use for n jobs.
func Workers(s Settings, n int) int {
	if s.Sequential {
		return 1
	}
	workers := runtime.GOMAXPROCS(0)
	if s.JobBudget > 0 && s.JobBudget < workers {
		workers = s.JobBudget
	}
	if n > 0 && n < workers {
		workers = n
	}
	return max(workers, 1)
}

// Execute runs jobs and applies every result to output and ae.
//
// Results are applied one at a time by the calling goroutine, in completion
// order, after replaying the job's buffered log records into logger. With
// ExitOnFirstError the first failure is returned as *Error without being
// applied; jobs already running finish but no further job starts. Otherwise
// failed results are applied like any other, and once the batch is drained
// a *BatchError is returned if HaltOnProcessingError is set.
func Execute[O, A any](ctx context.Context, settings Settings, logger *slog.Logger, jobs []Job[O, A], output O, ae A) error {
	if logger == nil {
		logger = slog.Default()
	}
	total := len(jobs)
	if total == 0 {
		return nil
	}
	workers := Workers(settings, total)
	metrics := observability.Metrics()
	metrics.BatchesTotal.Inc()

	ctx, span := observability.StartBatchSpan(ctx, total, workers)
	defer span.End()

	order := make([]Job[O, A], total)
	copy(order, jobs)
	if settings.Shuffle && !settings.Sequential {
		rand.Shuffle(total, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	logger.Info("starting jobs", "jobs", total, "workers", workers)
	start := time.Now()

	done := make(chan completion[O, A], total)
	stop := make(chan struct{})
	submitted := make(chan struct{})
	var g errgroup.Group
	g.SetLimit(workers)

	go func() {
		defer close(submitted)
		for _, j := range order {
			select {
			case <-stop:
				return
			default:
			}
			g.Go(func() error {
				select {
				case <-stop:
					return nil
				default:
				}
				done <- run(ctx, j, logger.Handler())
				return nil
			})
		}
	}()

	var failures []*Error
	for finished := 0; finished < total; finished++ {
		c := <-done
		c.history.Replay(ctx, logger)
		err := c.result.Failure()
		metrics.RecordJob(c.elapsed, err)

		if err != nil {
			jobErr := &Error{Key: c.key, Cause: err}
			if settings.ExitOnFirstError {
				close(stop)
				logger.Error("aborting batch on first failure", "job", c.key, "error", err, "finished", finished+1, "jobs", total)
				observability.RecordBatchResult(span, finished+1, len(failures)+1)
				return jobErr
			}
			failures = append(failures, jobErr)
			logger.Warn("job failed", "job", c.key, "error", err)
		}
		c.result.ApplyTo(output, logger, ae)
		logger.Debug("job finished", "job", c.key, "elapsed", c.elapsed, "finished", finished+1, "jobs", total)
	}

	<-submitted
	_ = g.Wait()
	observability.RecordBatchResult(span, total, len(failures))

	if len(failures) > 0 && settings.HaltOnProcessingError {
		return &BatchError{Total: total, Failures: failures}
	}
	logger.Info("jobs finished",
		"jobs", total,
		"failed", len(failures),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func run[O, A any](ctx context.Context, j Job[O, A], target slog.Handler) (c completion[O, A]) {
	key := j.Key()
	history := NewHistory(target)
	logger := history.Logger().With("job", key)

	metrics := observability.Metrics()
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	ctx, span := observability.StartJobSpan(ctx, key)
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error("job panicked", "panic", r)
			c = completion[O, A]{key: key, result: panicked[O, A]{err: err}, history: history}
		}
		c.elapsed = time.Since(start)
		observability.RecordJobResult(span, c.result.Failure())
	}()

	return completion[O, A]{key: key, result: j.Run(ctx, logger), history: history}
}

// panicked stands in for the result of a job that panicked.
type panicked[O, A any] struct {
	err error
}

func (p panicked[O, A]) ApplyTo(O, *slog.Logger, A) {}

func (p panicked[O, A]) Failure() error { return p.err }
