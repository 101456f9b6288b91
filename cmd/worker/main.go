package main

import (
	"context"
	"fmt"
	"os"

	temporalclient "go.temporal.io/sdk/client"
	temporallog "go.temporal.io/sdk/log"

	"github.com/batfish/batfish-sub054/internal/config"
	"github.com/batfish/batfish-sub054/internal/dashboard"
	graphneo4j "github.com/batfish/batfish-sub054/internal/graph/neo4j"
	"github.com/batfish/batfish-sub054/internal/logging"
	"github.com/batfish/batfish-sub054/internal/observability"
	"github.com/batfish/batfish-sub054/internal/pipeline"
	"github.com/batfish/batfish-sub054/internal/plugins/builtin"
	"github.com/batfish/batfish-sub054/internal/server"
	"github.com/batfish/batfish-sub054/internal/snapshot"
	temporalmod "github.com/batfish/batfish-sub054/internal/temporal"
)

const version = "0.1.0"

func main() {
	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	if err := run(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, cfg.TracingSettings(version))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	srv := server.NewGracefulServer(
		&server.HealthConfig{Version: version, Metrics: observability.Metrics().Handler()},
		&server.ShutdownConfig{Timeout: cfg.Server.ShutdownTimeout, Signals: server.DefaultShutdownConfig().Signals, Logger: logger},
	)
	srv.RegisterHook(server.TracingShutdownHook(tp.Shutdown))

	registry, err := builtin.NewRegistry()
	if err != nil {
		return err
	}
	deps := &temporalmod.Dependencies{
		Pipeline: pipeline.New(registry, cfg.JobSettings(), cfg.ParseSettings(), logger),
	}
	if cfg.Gates.Enabled {
		deps.Gates = &cfg.Gates
	}

	if cfg.Store.Dir != "" {
		if deps.Store, err = snapshot.NewStore(cfg.Store.Dir); err != nil {
			return fmt.Errorf("run store: %w", err)
		}
		srv.Health.RegisterCheck("store", server.StoreHealthChecker(cfg.Store.Dir))

		if cfg.Server.DashboardAddr != "" {
			dash := dashboard.New(&dashboard.Config{ListenAddr: cfg.Server.DashboardAddr}, deps.Store, logger)
			deps.Events = dash.Emitter
			go func() {
				if err := dash.Server.Start(); err != nil {
					logger.Error("dashboard failed", "error", err)
				}
			}()
			srv.RegisterHook(server.HTTPServerShutdownHook("dashboard", dash.Server.Stop))
		}
	}

	if cfg.Graph.URI != "" {
		password, err := cfg.GraphPassword(ctx)
		if err != nil {
			return err
		}
		repo, err := graphneo4j.NewNeo4j(ctx, cfg.Graph.URI, cfg.Graph.Username, password)
		if err != nil {
			return fmt.Errorf("graph: %w", err)
		}
		deps.Graph = repo
		srv.Health.RegisterCheck("graph", server.GraphHealthChecker(cfg.Graph.URI, repo.Ping))
		srv.RegisterHook(server.GraphShutdownHook(repo.Close))
		logger.Info("graph export enabled", "uri", cfg.Graph.URI)
	}

	temporalmod.SetDependencies(deps)

	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporallog.NewStructuredLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()
	srv.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := c.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))

	w, err := temporalmod.StartWorker(c, cfg.Temporal.TaskQueue, max(cfg.Temporal.MaxSnapshots, 0))
	if err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	srv.RegisterHook(server.TemporalWorkerShutdownHook(w.Stop))

	srv.Start(cfg.Server.Addr)
	logger.Info("worker started",
		"task_queue", cfg.Temporal.TaskQueue,
		"namespace", cfg.Temporal.Namespace,
		"health_addr", cfg.Server.Addr,
	)

	srv.Wait()
	logger.Info("worker stopped")
	return nil
}
