package job

import (
	"fmt"
	"strings"
)

// Error is a failed job.
type Error struct {
	Key   string
	Cause error
}

func (e *Error) Error() string { return fmt.Sprintf("job %s failed: %v", e.Key, e.Cause) }

func (e *Error) Unwrap() error { return e.Cause }

// BatchError collects every failed job of a batch.
type BatchError struct {
	Total    int
	Failures []*Error
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d jobs failed", len(e.Failures), e.Total)
	for _, f := range e.Failures {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
