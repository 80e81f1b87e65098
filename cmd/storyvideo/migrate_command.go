package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(*cobra.Command, []string) error {
			store, access, err := openStores(ctx.cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			app := &application{store: store, access: access}
			if err := app.migrate(); err != nil {
				return err
			}
			ctx.logger.Info("database migrated")
			return nil
		},
	}
}

func (a *application) migrate() error {
	if err := a.store.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate content tables: %w", err)
	}
	if err := a.access.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate delegation table: %w", err)
	}
	return nil
}
