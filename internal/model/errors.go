package model

import (
	"errors"
	"fmt"
)

// ErrInternal matches every InternalError via errors.Is.
var ErrInternal = errors.New("internal error")

// InternalError reports a state the converter should never produce. It is
// always fatal for the job that raised it.
type InternalError struct {
	Msg   string
	Cause error
}

// Internalf builds an InternalError from a format string.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Msg, e.Cause)
	}
	return "internal error: " + e.Msg
}

func (e *InternalError) Unwrap() error { return e.Cause }

func (e *InternalError) Is(target error) bool { return target == ErrInternal }
