package qualitygate

import (
	"fmt"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/metrics"
)

// ParsePassRateGate requires a share of the recognized files to parse.
// EMPTY, IGNORED and UNKNOWN files are not counted.
type ParsePassRateGate struct {
	MinPassRate float64
	severity    GateSeverity
}

func NewParsePassRateGate(minPassRate float64, severity GateSeverity) *ParsePassRateGate {
	return &ParsePassRateGate{MinPassRate: minPassRate, severity: severity}
}

func (g *ParsePassRateGate) Name() string           { return "parse-pass-rate" }
func (g *ParsePassRateGate) Severity() GateSeverity { return g.severity }
func (g *ParsePassRateGate) Evaluate(r *metrics.Report) (*GateResult, error) {
	res := &GateResult{Name: g.Name(), Severity: g.severity, Threshold: g.MinPassRate}

	s := r.Parse.Statuses
	considered := r.Parse.Files - s[string(answer.StatusEmpty)] - s[string(answer.StatusIgnored)] - s[string(answer.StatusUnknown)]
	if considered <= 0 {
		res.Status = GateSkipped
		res.Message = "No recognized files to evaluate"
		return res, nil
	}
	passed := s[string(answer.StatusPassed)] + s[string(answer.StatusPartiallyUnrecognized)]
	rate := float64(passed) / float64(considered)
	res.Value = rate

	if rate >= g.MinPassRate {
		res.Status = GatePassed
		res.Message = fmt.Sprintf("Parse pass rate %.1f%% meets threshold %.1f%%", rate*100, g.MinPassRate*100)
	} else {
		res.Status = GateFailed
		res.Message = fmt.Sprintf("Parse pass rate %.1f%% below threshold %.1f%% (%d/%d parsed)",
			rate*100, g.MinPassRate*100, passed, considered)
		for _, st := range []answer.ParseStatus{answer.StatusFailed, answer.StatusUnsupported, answer.StatusWillNotCommit} {
			if n := s[string(st)]; n > 0 {
				res.Details = append(res.Details, fmt.Sprintf("%s: %d", st, n))
			}
		}
	}
	return res, nil
}

// countGate fails when a counted quantity exceeds limit.
type countGate struct {
	name     string
	noun     string
	limit    int
	severity GateSeverity
	count    func(r *metrics.Report) int
	details  func(r *metrics.Report) []string
}

func (g *countGate) Name() string           { return g.name }
func (g *countGate) Severity() GateSeverity { return g.severity }
func (g *countGate) Evaluate(r *metrics.Report) (*GateResult, error) {
	n := g.count(r)
	res := &GateResult{Name: g.name, Severity: g.severity, Value: float64(n), Threshold: float64(g.limit)}
	if n <= g.limit {
		res.Status = GatePassed
		res.Message = fmt.Sprintf("%d %s (max %d)", n, g.noun, g.limit)
		return res, nil
	}
	res.Status = GateFailed
	res.Message = fmt.Sprintf("%d %s exceeds max %d", n, g.noun, g.limit)
	if g.details != nil {
		res.Details = g.details(r)
	}
	return res, nil
}

// NewConvertFailureGate limits the nodes whose conversion failed.
func NewConvertFailureGate(limit int, severity GateSeverity) Gate {
	return &countGate{
		name:     "convert-failures",
		noun:     "failed conversions",
		limit:    limit,
		severity: severity,
		count:    func(r *metrics.Report) int { return r.Convert.Statuses[string(answer.ConvertFailed)] },
		details:  func(r *metrics.Report) []string { return r.Errors },
	}
}

// NewUndefinedReferenceGate limits references to undefined structures.
func NewUndefinedReferenceGate(limit int, severity GateSeverity) Gate {
	return &countGate{
		name:     "undefined-references",
		noun:     "undefined references",
		limit:    limit,
		severity: severity,
		count:    func(r *metrics.Report) int { return r.Convert.Undefined },
	}
}

// NewRedFlagGate limits red flags raised while parsing and converting.
func NewRedFlagGate(limit int, severity GateSeverity) Gate {
	return &countGate{
		name:     "red-flags",
		noun:     "red flags",
		limit:    limit,
		severity: severity,
		count:    func(r *metrics.Report) int { return r.Parse.Warnings.RedFlags + r.Convert.Warnings.RedFlags },
	}
}

// NewDuplicateHostnameGate limits hostnames claimed by more than one file.
func NewDuplicateHostnameGate(limit int, severity GateSeverity) Gate {
	return &countGate{
		name:     "duplicate-hostnames",
		noun:     "duplicate hostnames",
		limit:    limit,
		severity: severity,
		count: func(r *metrics.Report) int {
			return max(r.Parse.Duplicates, r.Convert.Duplicates)
		},
	}
}
