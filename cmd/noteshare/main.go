package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/blueplan/noteshare-go/internal/noteshare/config"
	logx "github.com/blueplan/noteshare-go/internal/noteshare/log"
)

var Version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "noteshare",
		Short:         "One-time password note sharing service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads and validates configuration, then builds the logger.
func loadConfig() (*config.Config, *logx.Logger, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logx.NewWithConfig(&logx.LogConfig{
		Level:  cfg.LogLevel(),
		Format: cfg.App.LogFormat,
		File:   cfg.App.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "noteshare %s\n", Version)
		},
	}
}
