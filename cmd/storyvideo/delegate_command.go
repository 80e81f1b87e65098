package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDelegateCommand(ctx *commandContext) *cobra.Command {
	var unverified bool
	cmd := &cobra.Command{
		Use:   "delegate <executor-id> <sharer-id>",
		Short: "Allow an executor to issue uploads on behalf of a sharer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, access, err := openStores(ctx.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := access.Grant(cmd.Context(), args[0], args[1], !unverified); err != nil {
				return fmt.Errorf("failed to grant delegation: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s may now act for %s (verified: %t)\n", args[0], args[1], !unverified)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unverified, "unverified", false, "Record the relationship without verifying it")
	return cmd
}
