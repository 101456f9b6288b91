package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/batfish/batfish-sub054/internal/answer"
	"github.com/batfish/batfish-sub054/internal/config"
	graphneo4j "github.com/batfish/batfish-sub054/internal/graph/neo4j"
	"github.com/batfish/batfish-sub054/internal/logging"
	"github.com/batfish/batfish-sub054/internal/observability"
	"github.com/batfish/batfish-sub054/internal/pipeline"
	"github.com/batfish/batfish-sub054/internal/plugins/builtin"
	"github.com/batfish/batfish-sub054/internal/qualitygate"
	"github.com/batfish/batfish-sub054/internal/snapshot"
)

const version = "0.1.0"

type processOptions struct {
	configPath    string
	snapshotDir   string
	jsonReport    bool
	answersPath   string
	outputDir     string
	save          bool
	storeDir      string
	tag           string
	exportGraph   bool
	sequential    bool
	jobs          int
	gates         bool
	skipUnchanged bool
}

func main() {
	var opts processOptions

	rootCmd := &cobra.Command{
		Use:           "batfish",
		Short:         "Parse and convert network device configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path")

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Parse and convert every file of a snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd, opts)
		},
	}
	processCmd.Flags().StringVar(&opts.snapshotDir, "snapshot", "", "Snapshot directory")
	processCmd.Flags().BoolVar(&opts.jsonReport, "json", false, "Print the run report as JSON")
	processCmd.Flags().StringVar(&opts.answersPath, "answers", "", "Write the parse and convert answers to this file (.json or .yaml)")
	processCmd.Flags().StringVar(&opts.outputDir, "output", "", "Write one JSON document per converted node to this directory")
	processCmd.Flags().BoolVar(&opts.save, "save", false, "Record the run in the run store")
	processCmd.Flags().StringVar(&opts.storeDir, "store", "", "Run store directory (default from config)")
	processCmd.Flags().StringVar(&opts.tag, "tag", "", "Tag the stored run")
	processCmd.Flags().BoolVar(&opts.exportGraph, "graph", false, "Export the converted topology to the graph database")
	processCmd.Flags().BoolVar(&opts.sequential, "sequential", false, "Run jobs one at a time")
	processCmd.Flags().IntVar(&opts.jobs, "jobs", 0, "Maximum concurrent jobs (0 means GOMAXPROCS)")
	processCmd.Flags().BoolVar(&opts.gates, "gates", false, "Evaluate quality gates and fail when a required gate fails")
	processCmd.Flags().BoolVar(&opts.skipUnchanged, "skip-unchanged", false, "Skip the run when the store already holds a run over identical inputs")
	_ = processCmd.MarkFlagRequired("snapshot")

	detectCmd := &cobra.Command{
		Use:   "detect FILE...",
		Short: "Print the detected format of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			return runDetect(cmd.OutOrStdout(), cfg, args)
		},
	}

	formatsCmd := &cobra.Command{
		Use:   "formats",
		Short: "List the configuration formats and their grammars",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFormats(cmd.OutOrStdout())
		},
	}

	rootCmd.AddCommand(processCmd, detectCmd, formatsCmd, newRunsCmd(&opts.configPath), newServeCmd(&opts.configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig falls back to defaults when the file cannot be read.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if path != "" {
			return nil, err
		}
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = config.Default()
	}
	return cfg, nil
}

func runProcess(cmd *cobra.Command, opts processOptions) error {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("sequential") {
		cfg.Pipeline.Sequential = opts.sequential
	}
	if cmd.Flags().Changed("jobs") {
		cfg.Pipeline.JobBudget = opts.jobs
	}
	if opts.gates {
		cfg.Gates.Enabled = true
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, cfg.TracingSettings(version))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	snap, err := snapshot.Load(opts.snapshotDir)
	if err != nil {
		return err
	}
	if opts.skipUnchanged {
		if prev := previousRun(cfg, opts.storeDir, snap); prev != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Snapshot unchanged since run %s (%s), skipping\n", prev.ID, prev.Status)
			return nil
		}
	}
	registry, err := builtin.NewRegistry()
	if err != nil {
		return err
	}
	if missing := builtin.Unhandled(registry); len(missing) > 0 {
		logger.Debug("formats without a grammar", "formats", missing)
	}

	p := pipeline.New(registry, cfg.JobSettings(), cfg.ParseSettings(), logger)
	out, runErr := p.Run(ctx, snap)
	if out == nil {
		return runErr
	}

	if opts.jsonReport {
		data, err := out.Report.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		out.Report.PrintSummary(cmd.OutOrStdout())
	}

	var gateErr error
	if cfg.Gates.Enabled {
		result := qualitygate.Evaluate(&cfg.Gates, out.Report)
		if !opts.jsonReport {
			fmt.Fprint(cmd.OutOrStdout(), qualitygate.FormatReport(result))
		}
		if !result.Passed() {
			gateErr = errors.New(result.Summary)
		}
	}

	if opts.answersPath != "" {
		if err := writeAnswers(opts.answersPath, out.Parse, out.Convert); err != nil {
			return err
		}
	}
	if opts.outputDir != "" {
		if err := writeNodes(opts.outputDir, out); err != nil {
			return err
		}
	}
	if opts.save || opts.exportGraph {
		run, objects, err := pipeline.NewRun(snap, out, runErr)
		if err != nil {
			return err
		}
		run.Tag = opts.tag
		if opts.save {
			if err := saveRun(cfg, opts.storeDir, run, objects, logger); err != nil {
				return err
			}
		}
		if opts.exportGraph {
			if err := exportGraph(ctx, cfg, run.ID, out, logger); err != nil {
				return err
			}
		}
	}
	return errors.Join(runErr, gateErr)
}

type answers struct {
	Parse   *answer.ParseElement   `json:"parse" yaml:"parse"`
	Convert *answer.ConvertElement `json:"convert" yaml:"convert"`
}

// writeAnswers picks the encoding from the file extension; anything other
// than .yaml or .yml is written as JSON.
func writeAnswers(path string, pe *answer.ParseElement, ce *answer.ConvertElement) error {
	a := answers{Parse: pe, Convert: ce}
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(a)
	default:
		data, err = json.MarshalIndent(a, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write answers: %w", err)
	}
	return nil
}

func writeNodes(dir string, out *pipeline.Output) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for host, node := range out.Nodes {
		data, err := json.MarshalIndent(node, "", "  ")
		if err != nil {
			return fmt.Errorf("encode node %s: %w", host, err)
		}
		if err := os.WriteFile(filepath.Join(dir, host+".json"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func saveRun(cfg *config.Config, dir string, run *snapshot.Run, objects []snapshot.Object, logger *slog.Logger) error {
	if dir == "" {
		dir = cfg.Store.Dir
	}
	store, err := snapshot.NewStore(dir)
	if err != nil {
		return err
	}
	if err := store.Save(run, objects); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logger.Info("run saved", "id", run.ID, "status", run.Status, "store", dir)
	return nil
}

// previousRun returns the newest stored run over the same inputs as snap,
// or nil when there is none or the store cannot be opened.
func previousRun(cfg *config.Config, dir string, snap *snapshot.Snapshot) *snapshot.Run {
	if dir == "" {
		dir = cfg.Store.Dir
	}
	if dir == "" {
		return nil
	}
	store, err := snapshot.NewStore(dir)
	if err != nil {
		return nil
	}
	run, err := store.Latest(snap.Fingerprint())
	if err != nil {
		return nil
	}
	return run
}

// exportGraph writes the converted nodes under runID, the same key the
// worker uses.
func exportGraph(ctx context.Context, cfg *config.Config, runID string, out *pipeline.Output, logger *slog.Logger) error {
	if cfg.Graph.URI == "" {
		return errors.New("graph export requested but graph.uri is not configured")
	}
	password, err := cfg.GraphPassword(ctx)
	if err != nil {
		return err
	}
	repo, err := graphneo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, password)
	if err != nil {
		return err
	}
	defer repo.Close(ctx)

	if err := repo.StoreTopology(ctx, runID, out.Nodes); err != nil {
		return fmt.Errorf("graph export: %w", err)
	}
	logger.Info("topology exported", "run", runID, "nodes", len(out.Nodes))
	return nil
}
