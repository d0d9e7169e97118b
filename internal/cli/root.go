package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/malbeclabs/mcp-dbgateway/internal/config"
	"github.com/malbeclabs/mcp-dbgateway/internal/gateway"
	"github.com/malbeclabs/mcp-dbgateway/internal/logger"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

func Run() ExitCode {
	if err := NewRootCmd().Execute(); err != nil {
		return exitCodeError
	}
	return exitCodeSuccess
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "dbgateway",
		Short:        "Run the database gateway tools from a terminal.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the config file (or set CONFIG_FILE env var, default config.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "print results as JSON instead of a table")

	rootCmd.AddCommand(
		NewListDatabasesCmd().Command(),
		NewListTablesCmd().Command(),
		NewDescribeTableCmd().Command(),
		NewQueryCmd().Command(),
	)
	return rootCmd
}

type globalFlags struct {
	verbose    bool
	configPath string
	json       bool
}

func readGlobalFlags(cmd *cobra.Command) (globalFlags, error) {
	verbose, err := cmd.Root().PersistentFlags().GetBool("verbose")
	if err != nil {
		return globalFlags{}, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	configPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return globalFlags{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	asJSON, err := cmd.Root().PersistentFlags().GetBool("json")
	if err != nil {
		return globalFlags{}, fmt.Errorf("failed to get json flag: %w", err)
	}
	if configPath == "" {
		configPath = config.Path()
	}
	return globalFlags{verbose: verbose, configPath: configPath, json: asJSON}, nil
}

func newGateway(log *slog.Logger, configPath string) (*gateway.Gateway, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	factory, err := gateway.NewFactory(cfg.Connection(), gateway.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("failed to create client factory: %w", err)
	}
	return gateway.New(gateway.Config{
		Logger:  log,
		Factory: factory,
	})
}

// setup reads the global flags and builds the logger and gateway shared by
// every subcommand.
func setup(cmd *cobra.Command) (globalFlags, *gateway.Gateway, error) {
	flags, err := readGlobalFlags(cmd)
	if err != nil {
		return globalFlags{}, nil, err
	}
	log := logger.New(flags.verbose)
	gw, err := newGateway(log, flags.configPath)
	if err != nil {
		return globalFlags{}, nil, err
	}
	return flags, gw, nil
}
