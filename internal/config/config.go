package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/job"
	"github.com/batfish/batfish-sub054/internal/observability"
	"github.com/batfish/batfish-sub054/internal/parse"
	"github.com/batfish/batfish-sub054/internal/qualitygate"
	"github.com/batfish/batfish-sub054/internal/secrets"
	"github.com/batfish/batfish-sub054/internal/warnings"
)

// Config holds all application configuration.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Graph    GraphConfig    `mapstructure:"graph"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Store    StoreConfig    `mapstructure:"store"`
	Server   ServerConfig   `mapstructure:"server"`
	Secrets  SecretsConfig  `mapstructure:"secrets"`

	Gates qualitygate.GateConfig `mapstructure:"gates"`
}

// PipelineConfig controls the executor and the parse jobs.
type PipelineConfig struct {
	job.Settings `mapstructure:",squash"`

	HaltOnParseError       bool           `mapstructure:"halt_on_parse_error"`
	IgnoreUnknown          bool           `mapstructure:"ignore_unknown"`
	IgnoreUnsupported      bool           `mapstructure:"ignore_unsupported"`
	FormatOverride         string         `mapstructure:"format_override"`
	IgnoreFilesWithStrings []string       `mapstructure:"ignore_files_with_strings"`
	PrintParseTrees        bool           `mapstructure:"print_parse_trees"`
	Warnings               WarningsConfig `mapstructure:"warnings"`
}

type WarningsConfig struct {
	RedFlag       bool `mapstructure:"red_flag"`
	Pedantic      bool `mapstructure:"pedantic"`
	Unimplemented bool `mapstructure:"unimplemented"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
	Environment  string  `mapstructure:"environment"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
	// MaxSnapshots caps concurrent snapshot activities per worker.
	MaxSnapshots int `mapstructure:"max_concurrent_snapshots"`
}

type StoreConfig struct {
	Dir string `mapstructure:"dir"`
}

// SecretsConfig selects where secret references such as
// "secret:graph_password" are resolved.
type SecretsConfig struct {
	Provider   string `mapstructure:"provider"`
	File       string `mapstructure:"file"`
	VaultAddr  string `mapstructure:"vault_addr"`
	VaultToken string `mapstructure:"vault_token"`
	VaultMount string `mapstructure:"vault_mount"`
	VaultPath  string `mapstructure:"vault_path"`
}

// ServerConfig configures the worker's health endpoints and, when
// DashboardAddr is set, the run dashboard.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DashboardAddr   string        `mapstructure:"dashboard_addr"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			IgnoreUnknown:     true,
			IgnoreUnsupported: true,
			Warnings:          WarningsConfig{RedFlag: true, Unimplemented: true},
		},
		Log:      LogConfig{Level: "info", Format: "text"},
		Tracing:  TracingConfig{SampleRate: 1.0, ServiceName: "batfish", Environment: "development"},
		Temporal: TemporalConfig{Host: "localhost:7233", Namespace: "default", TaskQueue: "batfish-snapshots", MaxSnapshots: 2},
		Store:    StoreConfig{Dir: ".batfish/runs"},
		Server:   ServerConfig{Addr: ":8080", ShutdownTimeout: 30 * time.Second},
		Secrets:  SecretsConfig{Provider: "env"},
		Gates:    *qualitygate.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("pipeline.sequential", d.Pipeline.Sequential)
	v.SetDefault("pipeline.job_budget", d.Pipeline.JobBudget)
	v.SetDefault("pipeline.shuffle_jobs", d.Pipeline.Shuffle)
	v.SetDefault("pipeline.exit_on_first_error", d.Pipeline.ExitOnFirstError)
	v.SetDefault("pipeline.halt_on_processing_error", d.Pipeline.HaltOnProcessingError)
	v.SetDefault("pipeline.halt_on_parse_error", d.Pipeline.HaltOnParseError)
	v.SetDefault("pipeline.ignore_unknown", d.Pipeline.IgnoreUnknown)
	v.SetDefault("pipeline.ignore_unsupported", d.Pipeline.IgnoreUnsupported)
	v.SetDefault("pipeline.format_override", d.Pipeline.FormatOverride)
	v.SetDefault("pipeline.ignore_files_with_strings", d.Pipeline.IgnoreFilesWithStrings)
	v.SetDefault("pipeline.print_parse_trees", d.Pipeline.PrintParseTrees)
	v.SetDefault("pipeline.warnings.red_flag", d.Pipeline.Warnings.RedFlag)
	v.SetDefault("pipeline.warnings.pedantic", d.Pipeline.Warnings.Pedantic)
	v.SetDefault("pipeline.warnings.unimplemented", d.Pipeline.Warnings.Unimplemented)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.environment", d.Tracing.Environment)
	v.SetDefault("graph.uri", d.Graph.URI)
	v.SetDefault("graph.username", d.Graph.Username)
	v.SetDefault("graph.password", d.Graph.Password)
	v.SetDefault("temporal.host", d.Temporal.Host)
	v.SetDefault("temporal.namespace", d.Temporal.Namespace)
	v.SetDefault("temporal.task_queue", d.Temporal.TaskQueue)
	v.SetDefault("temporal.max_concurrent_snapshots", d.Temporal.MaxSnapshots)
	v.SetDefault("store.dir", d.Store.Dir)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.dashboard_addr", d.Server.DashboardAddr)
	v.SetDefault("secrets.provider", d.Secrets.Provider)
	v.SetDefault("secrets.file", d.Secrets.File)
	v.SetDefault("secrets.vault_addr", d.Secrets.VaultAddr)
	v.SetDefault("secrets.vault_token", d.Secrets.VaultToken)
	v.SetDefault("secrets.vault_mount", d.Secrets.VaultMount)
	v.SetDefault("secrets.vault_path", d.Secrets.VaultPath)
	v.SetDefault("gates.enabled", d.Gates.Enabled)
	v.SetDefault("gates.min_parse_pass_rate", d.Gates.MinParsePassRate)
	v.SetDefault("gates.parse_severity", d.Gates.ParseSeverity)
	v.SetDefault("gates.max_convert_failures", d.Gates.MaxConvertFailures)
	v.SetDefault("gates.convert_severity", d.Gates.ConvertSeverity)
	v.SetDefault("gates.max_undefined_references", d.Gates.MaxUndefinedReferences)
	v.SetDefault("gates.undefined_severity", d.Gates.UndefinedSeverity)
	v.SetDefault("gates.max_red_flags", d.Gates.MaxRedFlags)
	v.SetDefault("gates.red_flag_severity", d.Gates.RedFlagSeverity)
	v.SetDefault("gates.max_duplicate_hostnames", d.Gates.MaxDuplicateHostnames)
	v.SetDefault("gates.duplicate_severity", d.Gates.DuplicateSeverity)
}

// JobSettings returns the executor settings.
func (c *Config) JobSettings() job.Settings {
	return c.Pipeline.Settings
}

// ParseSettings returns the parse job settings. An invalid format override
// falls back to detection; Validate reports it.
func (c *Config) ParseSettings() parse.Settings {
	override, err := format.Parse(c.Pipeline.FormatOverride)
	if err != nil {
		override = format.Unknown
	}
	return parse.Settings{
		HaltOnParseError:       c.Pipeline.HaltOnParseError,
		IgnoreUnknown:          c.Pipeline.IgnoreUnknown,
		IgnoreUnsupported:      c.Pipeline.IgnoreUnsupported,
		FormatOverride:         override,
		IgnoreFilesWithStrings: c.Pipeline.IgnoreFilesWithStrings,
		PrintParseTrees:        c.Pipeline.PrintParseTrees,
		Warnings:               c.WarningSettings(),
	}
}

// WarningSettings returns which warning categories are recorded.
func (c *Config) WarningSettings() warnings.Settings {
	return warnings.Settings{
		RedFlag:       c.Pipeline.Warnings.RedFlag,
		Pedantic:      c.Pipeline.Warnings.Pedantic,
		Unimplemented: c.Pipeline.Warnings.Unimplemented,
	}
}

// TracingSettings returns the tracer configuration for a service.
func (c *Config) TracingSettings(version string) *observability.TracingConfig {
	return &observability.TracingConfig{
		ServiceName:    c.Tracing.ServiceName,
		ServiceVersion: version,
		Environment:    c.Tracing.Environment,
		OTLPEndpoint:   c.Tracing.OTLPEndpoint,
		SampleRate:     c.Tracing.SampleRate,
	}
}

// SecretsSettings returns the secrets manager configuration.
func (c *Config) SecretsSettings() *secrets.Config {
	sc := &secrets.Config{Provider: c.Secrets.Provider, EnvPrefix: "BATFISH_"}
	switch c.Secrets.Provider {
	case "file":
		sc.File = &secrets.FileConfig{Path: c.Secrets.File}
	case "vault":
		sc.Vault = &secrets.VaultConfig{
			Address:    c.Secrets.VaultAddr,
			Token:      c.Secrets.VaultToken,
			MountPath:  c.Secrets.VaultMount,
			SecretPath: c.Secrets.VaultPath,
		}
	}
	return sc
}

// GraphPassword resolves the graph password, which may be a secret
// reference.
func (c *Config) GraphPassword(ctx context.Context) (string, error) {
	if !strings.HasPrefix(c.Graph.Password, secrets.RefPrefix) {
		return c.Graph.Password, nil
	}
	m, err := secrets.NewManager(c.SecretsSettings())
	if err != nil {
		return "", err
	}
	pw, err := m.Resolve(ctx, c.Graph.Password)
	if err != nil {
		return "", fmt.Errorf("graph password: %w", err)
	}
	return pw, nil
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Pipeline.JobBudget < 0 {
		warnings = append(warnings, fmt.Sprintf("pipeline job_budget %d is negative, using GOMAXPROCS", c.Pipeline.JobBudget))
	}
	if c.Pipeline.Sequential && c.Pipeline.Shuffle {
		warnings = append(warnings, "pipeline shuffle_jobs has no effect when sequential is set")
	}
	if _, err := format.Parse(c.Pipeline.FormatOverride); err != nil {
		warnings = append(warnings, fmt.Sprintf("pipeline format_override: %v, detection is used instead", err))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		warnings = append(warnings, fmt.Sprintf("log level '%s' is not recognized, using info", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log format '%s' is not recognized, using text", c.Log.Format))
	}

	// Sample rate must be a probability.
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	if c.Graph.URI != "" && c.Graph.Username == "" {
		warnings = append(warnings, "graph uri is configured but username is empty")
	}

	switch c.Secrets.Provider {
	case "", "env":
	case "file":
		if c.Secrets.File == "" {
			warnings = append(warnings, "secrets provider is file but secrets.file is empty")
		}
	case "vault":
		if c.Secrets.VaultAddr == "" || c.Secrets.VaultToken == "" {
			warnings = append(warnings, "secrets provider is vault but vault_addr or vault_token is empty")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("secrets provider '%s' is not recognized", c.Secrets.Provider))
	}

	warnings = append(warnings, c.Gates.Validate()...)

	if c.Temporal.MaxSnapshots < 0 {
		warnings = append(warnings, fmt.Sprintf("temporal max_concurrent_snapshots %d is negative, using the SDK default", c.Temporal.MaxSnapshots))
	}
	if c.Server.ShutdownTimeout < 0 {
		warnings = append(warnings, fmt.Sprintf("server shutdown_timeout %s is negative", c.Server.ShutdownTimeout))
	}

	return warnings
}

// Load reads configuration from an optional file and the environment.
// Environment variables use the BATFISH_ prefix, so pipeline.job_budget
// is BATFISH_PIPELINE_JOB_BUDGET.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("BATFISH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
