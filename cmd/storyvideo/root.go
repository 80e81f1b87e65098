package main

import (
	"os"

	"github.com/ethanbaker/storyvideo/pkg/logging"
	"github.com/ethanbaker/storyvideo/pkg/utils"
	"github.com/spf13/cobra"
)

// commandContext carries what every subcommand needs
type commandContext struct {
	envFile string
	cfg     *utils.Config
	logger  logging.Logger
}

// load reads configuration once, after flags are parsed
func (c *commandContext) load() {
	if c.cfg != nil {
		return
	}
	c.cfg = utils.NewConfigFromEnv(c.envFile)
	c.logger = logging.NewLoggerWithService("storyvideo", c.cfg.GetWithDefault("LOG_LEVEL", "info"))
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	defaultEnvFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		defaultEnvFile = os.Getenv("ENV_FILE")
	}

	root := &cobra.Command{
		Use:           "storyvideo",
		Short:         "Video upload issuing and lifecycle reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			ctx.load()
		},
	}
	root.PersistentFlags().StringVar(&ctx.envFile, "env-file", defaultEnvFile, "Path to the .env file")

	root.AddCommand(
		newServeCommand(ctx),
		newMigrateCommand(ctx),
		newSweepCommand(ctx),
		newDelegateCommand(ctx),
	)
	return root
}
