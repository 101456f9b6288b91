package qualitygate

import (
	"fmt"
	"strings"

	"github.com/batfish/batfish-sub054/internal/metrics"
	"github.com/batfish/batfish-sub054/internal/observability"
)

// GateConfig defines the configuration for quality gates. A negative
// maximum disables its gate, as does a zero parse pass rate.
type GateConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	MinParsePassRate float64 `mapstructure:"min_parse_pass_rate" json:"min_parse_pass_rate"`
	ParseSeverity    string  `mapstructure:"parse_severity" json:"parse_severity"`

	MaxConvertFailures int    `mapstructure:"max_convert_failures" json:"max_convert_failures"`
	ConvertSeverity    string `mapstructure:"convert_severity" json:"convert_severity"`

	MaxUndefinedReferences int    `mapstructure:"max_undefined_references" json:"max_undefined_references"`
	UndefinedSeverity      string `mapstructure:"undefined_severity" json:"undefined_severity"`

	MaxRedFlags     int    `mapstructure:"max_red_flags" json:"max_red_flags"`
	RedFlagSeverity string `mapstructure:"red_flag_severity" json:"red_flag_severity"`

	MaxDuplicateHostnames int    `mapstructure:"max_duplicate_hostnames" json:"max_duplicate_hostnames"`
	DuplicateSeverity     string `mapstructure:"duplicate_severity" json:"duplicate_severity"`
}

// DefaultConfig requires every recognized file to parse and every node to
// convert, and only warns about undefined references.
func DefaultConfig() *GateConfig {
	return &GateConfig{
		MinParsePassRate:       1.0,
		ParseSeverity:          "required",
		MaxConvertFailures:     0,
		ConvertSeverity:        "critical",
		MaxUndefinedReferences: 0,
		UndefinedSeverity:      "advisory",
		MaxRedFlags:            -1,
		RedFlagSeverity:        "advisory",
		MaxDuplicateHostnames:  -1,
		DuplicateSeverity:      "advisory",
	}
}

// ParseSeverity converts a configuration value to a GateSeverity.
func ParseSeverity(s string) (GateSeverity, error) {
	switch strings.ToLower(s) {
	case "critical":
		return SeverityCritical, nil
	case "required", "":
		return SeverityRequired, nil
	case "advisory":
		return SeverityAdvisory, nil
	}
	return SeverityRequired, fmt.Errorf("unknown gate severity %q", s)
}

func severity(s string) GateSeverity {
	sev, _ := ParseSeverity(s)
	return sev
}

// Validate returns a warning per unusable setting.
func (c *GateConfig) Validate() []string {
	var warnings []string
	if c.MinParsePassRate < 0 || c.MinParsePassRate > 1 {
		warnings = append(warnings, fmt.Sprintf("gates min_parse_pass_rate %.2f is outside [0.0, 1.0]", c.MinParsePassRate))
	}
	for name, s := range map[string]string{
		"parse_severity":     c.ParseSeverity,
		"convert_severity":   c.ConvertSeverity,
		"undefined_severity": c.UndefinedSeverity,
		"red_flag_severity":  c.RedFlagSeverity,
		"duplicate_severity": c.DuplicateSeverity,
	} {
		if _, err := ParseSeverity(s); err != nil {
			warnings = append(warnings, fmt.Sprintf("gates %s: %v, using required", name, err))
		}
	}
	return warnings
}

// BuildPipeline constructs a gate pipeline from configuration. Critical
// gates run first so a failure skips the others.
func BuildPipeline(cfg *GateConfig) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var gates []Gate
	if cfg.MaxConvertFailures >= 0 {
		gates = append(gates, NewConvertFailureGate(cfg.MaxConvertFailures, severity(cfg.ConvertSeverity)))
	}
	if cfg.MinParsePassRate > 0 {
		gates = append(gates, NewParsePassRateGate(cfg.MinParsePassRate, severity(cfg.ParseSeverity)))
	}
	if cfg.MaxUndefinedReferences >= 0 {
		gates = append(gates, NewUndefinedReferenceGate(cfg.MaxUndefinedReferences, severity(cfg.UndefinedSeverity)))
	}
	if cfg.MaxRedFlags >= 0 {
		gates = append(gates, NewRedFlagGate(cfg.MaxRedFlags, severity(cfg.RedFlagSeverity)))
	}
	if cfg.MaxDuplicateHostnames >= 0 {
		gates = append(gates, NewDuplicateHostnameGate(cfg.MaxDuplicateHostnames, severity(cfg.DuplicateSeverity)))
	}

	p := NewPipeline()
	for _, g := range gates {
		if g.Severity() == SeverityCritical {
			p.AddGate(g)
		}
	}
	for _, g := range gates {
		if g.Severity() != SeverityCritical {
			p.AddGate(g)
		}
	}
	return p
}

// Evaluate runs the configured gates over report.
func Evaluate(cfg *GateConfig, report *metrics.Report) *PipelineResult {
	result := BuildPipeline(cfg).Run(report)
	for _, gr := range result.Gates {
		observability.Metrics().RecordGate(gr.Name, string(gr.Status))
	}
	return result
}

// FormatReport returns a human-readable quality gate report.
func FormatReport(result *PipelineResult) string {
	var sb strings.Builder
	sb.WriteString("╔══════════════════════════════════════════╗\n")
	sb.WriteString("║        Quality Gate Report               ║\n")
	sb.WriteString("╠══════════════════════════════════════════╣\n")

	for _, gr := range result.Gates {
		icon := "✓"
		switch gr.Status {
		case GateFailed:
			icon = "✗"
		case GateSkipped:
			icon = "○"
		case GateWarning:
			icon = "⚠"
		}
		fmt.Fprintf(&sb, "║ %s %-22s %-10s %s\n", icon, gr.Name, "["+strings.ToUpper(string(gr.Severity))+"]", gr.Message)
		for _, d := range gr.Details {
			fmt.Fprintf(&sb, "║   → %s\n", d)
		}
	}

	sb.WriteString("╠══════════════════════════════════════════╣\n")
	status := "PASSED"
	if result.Status == GateFailed {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "║ Result: %s (%s)\n", status, result.Summary)
	sb.WriteString("╚══════════════════════════════════════════╝\n")
	return sb.String()
}
