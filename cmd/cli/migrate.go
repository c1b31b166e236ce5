package main

import (
	"github.com/nimasrn/sms-ledger/internal/config"
	"github.com/nimasrn/sms-ledger/pkg/pg"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = config.Get().MigrationsDir
			}
			if err := validateDir(dir); err != nil {
				return err
			}
			return pg.Migrate(config.Get().PostgresWrite(), dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default MIGRATIONS_DIR)")
	return cmd
}
