package main

import (
	"encoding/json"

	"github.com/ethanbaker/storyvideo/pkg/sdk"
	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one reconciliation sweep over stale ASSET_CREATED slots and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := newApplication(ctx.cfg, ctx.logger)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.pipeline.Sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(sdk.SweepResponse{
				Checked:   result.Checked,
				Ready:     result.Ready,
				Errored:   result.Errored,
				Unchanged: result.Unchanged,
				Failed:    result.Failed,
			})
		},
	}
}
