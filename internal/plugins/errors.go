package plugins

import "fmt"

// ExtractError reports input the extractor could not make sense of.
type ExtractError struct {
	Line    int
	Text    string
	Context string
	Msg     string
	Cause   error
}

func (e *ExtractError) Error() string {
	msg := fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	if e.Text != "" {
		msg += fmt.Sprintf(" (%q)", e.Text)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ExtractError) Unwrap() error { return e.Cause }

// WillNotCommitError reports a configuration the device itself would
// refuse to commit.
type WillNotCommitError struct {
	Line int
	Msg  string
}

func (e *WillNotCommitError) Error() string {
	return fmt.Sprintf("configuration will not commit: line %d: %s", e.Line, e.Msg)
}
