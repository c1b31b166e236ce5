package main

import (
	"os"

	"github.com/nimasrn/sms-ledger/internal/config"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := newRootCmd().Execute()
	if err != nil {
		logger.Error("command failed", "error", err)
	}
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envPath string

	root := &cobra.Command{
		Use:   "ledger",
		Short: "Maintenance commands for the SMS ledger",
		Long: `ledger runs one-off maintenance against the ledger store.

Examples:
  ledger migrate --dir ./migrations
  ledger import --file export.csv
  ledger sweep
  ledger watermark reset`,
		Version:       version + " (" + commit + ", " + date + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envPath == "" {
				if _, err := os.Stat(".env"); err == nil {
					envPath = ".env"
				}
			}
			return config.Load(envPath)
		},
	}
	root.PersistentFlags().StringVar(&envPath, "env", "", "path to a .env file")

	root.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newSweepCmd(),
		newStatsCmd(),
		newWatermarkCmd(),
	)
	return root
}
