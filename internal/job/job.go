// Package job runs batches of independent jobs on a bounded worker pool and
// merges their results into a shared output from a single goroutine.
package job

import (
	"context"
	"log/slog"
)

// Settings control how a batch is executed.
type Settings struct {
	// Sequential runs one job at a time in input order.
	Sequential bool `mapstructure:"sequential"`
	// JobBudget caps the number of workers. Zero or less means GOMAXPROCS.
	JobBudget int `mapstructure:"job_budget"`
	// Shuffle randomizes submission order. Ignored when Sequential.
	Shuffle bool `mapstructure:"shuffle_jobs"`
	// ExitOnFirstError aborts the batch at the first failed job.
	ExitOnFirstError bool `mapstructure:"exit_on_first_error"`
	// HaltOnProcessingError turns any failure into a batch error once all
	// jobs are drained.
	HaltOnProcessingError bool `mapstructure:"halt_on_processing_error"`
}

// Job is one unit of work. Run must not touch shared state; everything it
// produces travels in the returned Result.
type Job[O, A any] interface {
	// Key identifies the job in logs and errors, e.g. a filename.
	Key() string
	Run(ctx context.Context, logger *slog.Logger) Result[O, A]
}

// Result is what a job hands back to the drain loop.
type Result[O, A any] interface {
	// ApplyTo merges the result into the batch output and answer element.
	// It is only ever called from the draining goroutine.
	ApplyTo(output O, logger *slog.Logger, ae A)
	// Failure returns the error that failed the job, or nil.
	Failure() error
}
