// Package answer holds the batch-level results that parse and convert jobs
// merge into while being drained.
package answer

// ParseStatus is the outcome of parsing one file.
type ParseStatus string

const (
	StatusEmpty                 ParseStatus = "EMPTY"
	StatusIgnored               ParseStatus = "IGNORED"
	StatusUnknown               ParseStatus = "UNKNOWN"
	StatusUnsupported           ParseStatus = "UNSUPPORTED"
	StatusPassed                ParseStatus = "PASSED"
	StatusPartiallyUnrecognized ParseStatus = "PARTIALLY_UNRECOGNIZED"
	StatusFailed                ParseStatus = "FAILED"
	StatusWillNotCommit         ParseStatus = "WILL_NOT_COMMIT"
)

// ParseStatuses lists every status in display order.
var ParseStatuses = []ParseStatus{
	StatusPassed,
	StatusPartiallyUnrecognized,
	StatusWillNotCommit,
	StatusFailed,
	StatusUnsupported,
	StatusUnknown,
	StatusIgnored,
	StatusEmpty,
}

// HasIR reports whether a file with this status yields an IR.
func (s ParseStatus) HasIR() bool {
	return s == StatusPassed || s == StatusPartiallyUnrecognized
}

// ConvertStatus is the outcome of converting one node.
type ConvertStatus string

const (
	ConvertPassed   ConvertStatus = "PASSED"
	ConvertWarnings ConvertStatus = "WARNINGS"
	ConvertFailed   ConvertStatus = "FAILED"
)

// ErrorDetails locates a failure in its input.
type ErrorDetails struct {
	Message       string `json:"message" yaml:"message"`
	Line          int    `json:"line,omitempty" yaml:"line,omitempty"`
	LineContent   string `json:"line_content,omitempty" yaml:"line_content,omitempty"`
	ParserContext string `json:"parser_context,omitempty" yaml:"parser_context,omitempty"`
}
