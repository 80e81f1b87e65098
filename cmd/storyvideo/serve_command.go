package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ethanbaker/storyvideo/internal/api"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload and webhook API and run the reconciliation sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(runCtx, ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Run database migrations before serving")
	return cmd
}

func runServe(ctx context.Context, cc *commandContext, migrate bool) error {
	app, err := newApplication(cc.cfg, cc.logger)
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer app.Close()

	if migrate {
		if err := app.migrate(); err != nil {
			return err
		}
	}

	// An explicitly empty SWEEP_SCHEDULE disables the sweeper
	if schedule := sweepSchedule(cc); schedule != "" {
		if err := app.pipeline.Sweeper.Start(schedule); err != nil {
			return err
		}
		defer app.pipeline.Sweeper.Stop()
	} else {
		cc.logger.Info("reconciliation sweeper disabled")
	}

	return api.Start(ctx, cc.cfg, api.Dependencies{
		Pipeline: app.pipeline,
		Gatherer: app.registry,
		Checks:   app.checks,
		Logger:   cc.logger,
	})
}

func sweepSchedule(cc *commandContext) string {
	if cc.cfg.Has("SWEEP_SCHEDULE") {
		return cc.cfg.Get("SWEEP_SCHEDULE")
	}
	return "@every 15m"
}
