// Package qualitygate decides whether a processing run is good enough to
// accept, for example in CI before a snapshot is promoted.
package qualitygate

import (
	"fmt"
	"time"

	"github.com/batfish/batfish-sub054/internal/metrics"
)

// GateStatus represents the result of a quality gate check.
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GateSkipped GateStatus = "skipped"
	GateWarning GateStatus = "warning"
)

// GateSeverity indicates how critical a gate failure is.
type GateSeverity string

const (
	SeverityCritical GateSeverity = "critical" // later gates are skipped
	SeverityRequired GateSeverity = "required"
	SeverityAdvisory GateSeverity = "advisory" // reported as a warning only
)

// GateResult captures the outcome of a single gate evaluation.
type GateResult struct {
	Name        string        `json:"name"`
	Status      GateStatus    `json:"status"`
	Severity    GateSeverity  `json:"severity"`
	Value       float64       `json:"value"`
	Threshold   float64       `json:"threshold"`
	Message     string        `json:"message"`
	Details     []string      `json:"details,omitempty"`
	Duration    time.Duration `json:"duration"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Gate is one check over a run report.
type Gate interface {
	Name() string
	Severity() GateSeverity
	Evaluate(r *metrics.Report) (*GateResult, error)
}

// PipelineResult captures the complete gate pipeline evaluation.
type PipelineResult struct {
	// Status is failed if any critical or required gate failed.
	Status       GateStatus    `json:"status"`
	Gates        []GateResult  `json:"gates"`
	PassedCount  int           `json:"passed_count"`
	FailedCount  int           `json:"failed_count"`
	SkippedCount int           `json:"skipped_count"`
	WarningCount int           `json:"warning_count"`
	Duration     time.Duration `json:"duration"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
	Summary      string        `json:"summary"`
}

// Passed reports whether the run is accepted.
func (r *PipelineResult) Passed() bool {
	return r.Status != GateFailed
}

// Pipeline evaluates gates in order.
type Pipeline struct {
	gates []Gate
}

func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{gates: gates}
}

func (p *Pipeline) AddGate(g Gate) {
	p.gates = append(p.gates, g)
}

// Len returns the number of gates.
func (p *Pipeline) Len() int {
	return len(p.gates)
}

// Run evaluates every gate against report. A failed critical gate skips
// the rest; a failed advisory gate becomes a warning.
func (p *Pipeline) Run(report *metrics.Report) *PipelineResult {
	start := time.Now()
	result := &PipelineResult{Status: GatePassed, EvaluatedAt: start}

	aborted := false
	for _, gate := range p.gates {
		if aborted {
			result.Gates = append(result.Gates, GateResult{
				Name:        gate.Name(),
				Status:      GateSkipped,
				Severity:    gate.Severity(),
				Message:     "Skipped due to critical gate failure",
				EvaluatedAt: time.Now(),
			})
			result.SkippedCount++
			continue
		}

		gateStart := time.Now()
		gr, err := gate.Evaluate(report)
		if err != nil {
			gr = &GateResult{
				Name:     gate.Name(),
				Status:   GateFailed,
				Severity: gate.Severity(),
				Message:  fmt.Sprintf("Gate evaluation error: %v", err),
			}
		}
		if gr.Status == GateFailed && gr.Severity == SeverityAdvisory {
			gr.Status = GateWarning
		}
		gr.Duration = time.Since(gateStart)
		gr.EvaluatedAt = gateStart
		result.Gates = append(result.Gates, *gr)

		switch gr.Status {
		case GatePassed:
			result.PassedCount++
		case GateFailed:
			result.FailedCount++
			result.Status = GateFailed
			if gr.Severity == SeverityCritical {
				aborted = true
			}
		case GateWarning:
			result.WarningCount++
		case GateSkipped:
			result.SkippedCount++
		}
	}

	result.Duration = time.Since(start)
	result.Summary = fmt.Sprintf("Quality Gates: %d passed, %d failed, %d warnings, %d skipped [%s]",
		result.PassedCount, result.FailedCount, result.WarningCount, result.SkippedCount, result.Status)
	return result
}
