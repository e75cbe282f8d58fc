package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/relabs-tech/pedestrian_status/internal/config"
	"github.com/relabs-tech/pedestrian_status/internal/logging"
)

// DefaultConfigPath is where every binary looks for its configuration.
const DefaultConfigPath = "pedestrian_config.txt"

// Command builds the cobra command for one pedestrian process: it loads the
// configuration named by --config, builds a logger named after the command
// and calls run.
func Command(use, short string, run func(logger *zap.SugaredLogger) error) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          use,
		Short:        short,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitGlobal(configPath); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger := logging.NewLogger(use, config.Get().LogLevel)
			defer logger.Sync() //nolint:errcheck

			logger.Infof("starting %s", use)
			return run(logger)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", DefaultConfigPath, "path to the KEY=VALUE configuration file")
	return cmd
}
