package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"missioncontrol/internal/config"
)

type rootFlags struct {
	ConfigPath string
	DSN        string
	LogLevel   string
}

var rf rootFlags

// Version is set at build time.
var Version = "dev"

func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mission-control",
		Short:        "Mission Control integration credential testing",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&rf.ConfigPath, "config", "", "Config file (default ./mission-control.yaml or ~/.config/mission-control/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&rf.DSN, "dsn", "", "PostgreSQL DSN (overrides database.url / DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&rf.LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(integrationsCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// loadConfig applies command-line overrides on top of config.Load.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rf.ConfigPath)
	if err != nil {
		return nil, err
	}
	if rf.DSN != "" {
		cfg.Database.URL = rf.DSN
	}
	if rf.LogLevel != "" {
		cfg.Log.Level = rf.LogLevel
	}
	return cfg, nil
}

func dsnOrErr(cfg *config.Config) (string, error) {
	if cfg.Database.URL == "" {
		return "", fmt.Errorf("missing --dsn (or set DATABASE_URL / MC_DATABASE_URL)")
	}
	return cfg.Database.URL, nil
}
