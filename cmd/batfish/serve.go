package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/batfish/batfish-sub054/internal/dashboard"
	"github.com/batfish/batfish-sub054/internal/logging"
	"github.com/batfish/batfish-sub054/internal/snapshot"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr     string
		storeDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the run store over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if storeDir == "" {
				storeDir = cfg.Store.Dir
			}
			if addr == "" {
				addr = cfg.Server.DashboardAddr
			}
			if addr == "" {
				addr = dashboard.DefaultConfig().ListenAddr
			}
			logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

			store, err := snapshot.NewStore(storeDir)
			if err != nil {
				return err
			}
			dash := dashboard.New(&dashboard.Config{ListenAddr: addr}, store, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- dash.Server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := dash.Server.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, else :9090)")
	cmd.Flags().StringVar(&storeDir, "store", "", "Run store directory (default from config)")
	return cmd
}
