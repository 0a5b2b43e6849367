package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mmynk/cooper/internal/config"
	"github.com/mmynk/cooper/internal/sweep"
	"github.com/mmynk/cooper/pkg/logging"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mature due refunds and retry pending milestone releases once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logging.Setup(cfg.LogLevel, cfg.LogFormat)

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), sweep.TickTimeout)
			defer cancel()

			rep, err := a.sweeper.RunOnce(ctx)
			slog.Info("Sweep complete",
				"matured", rep.Refunds.Matured,
				"skipped", rep.Refunds.Skipped,
				"failed", rep.Refunds.Failed,
				"released", rep.Released,
			)
			return err
		},
	}
}
