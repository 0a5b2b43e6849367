package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/cooper/internal/config"
	"github.com/mmynk/cooper/internal/telemetry"
	"github.com/mmynk/cooper/pkg/logging"
)

const readHeaderTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	var noSweep bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the background sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, !noSweep)
		},
	}
	cmd.Flags().BoolVar(&noSweep, "no-sweep", false, "Do not run the background sweeper in this process")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, runSweeper bool) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTELEndpoint, cfg.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	handler := otelhttp.NewHandler(a.api.Handler(), "cooper.http")
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	var wg sync.WaitGroup
	if runSweeper {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.sweeper.Run(ctx)
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "address", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		slog.Info("Shutting down", "timeout", cfg.ShutdownPeriod)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	wg.Wait()
	return nil
}
