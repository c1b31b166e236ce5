package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nimasrn/sms-ledger/internal/app"
	"github.com/nimasrn/sms-ledger/internal/config"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark open debts past their due date as overdue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			db, err := app.ConnectPostgres(cfg)
			if err != nil {
				return err
			}
			ledger, err := app.NewLedger(cfg, db)
			if err != nil {
				return err
			}

			n, err := ledger.DebtLedger.SweepOverdue(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d debts marked overdue\n", n)
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print raw message counts by parse status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			db, err := app.ConnectPostgres(cfg)
			if err != nil {
				return err
			}
			ledger, err := app.NewLedger(cfg, db)
			if err != nil {
				return err
			}

			stats, err := ledger.Reader.ParseStats(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func newWatermarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watermark",
		Short: "Inspect or reset the inbox pull watermark",
	}

	settings := func() (*repository.SettingsRepository, error) {
		adapter, err := app.ConnectRedis(config.Get())
		if err != nil {
			return nil, err
		}
		return repository.NewSettingsRepository(adapter), nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current watermark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := settings()
			if err != nil {
				return err
			}
			ts, ok, err := repo.Watermark(cmd.Context(), config.Get().WatermarkKey)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "no watermark set")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ts.Format(time.RFC3339Nano))
			return nil
		},
	}, &cobra.Command{
		Use:   "reset",
		Short: "Forget the watermark so the next poll refetches the whole inbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := settings()
			if err != nil {
				return err
			}
			if err := repo.ResetWatermark(cmd.Context(), config.Get().WatermarkKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "watermark reset")
			return nil
		},
	})
	return cmd
}
