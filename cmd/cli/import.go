package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/sms-ledger/internal/app"
	"github.com/nimasrn/sms-ledger/internal/config"
	"github.com/nimasrn/sms-ledger/internal/importer"
	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type historicalImporter interface {
	ImportHistorical(ctx context.Context, msgs []model.InboundMessage, progress services.ProgressFunc) (services.BatchSummary, error)
}

func newImportCmd() *cobra.Command {
	var (
		file  string
		every int
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replay an exported message history into the ledger",
		Long: `Reads a CSV (address, body, date columns) or JSON export and runs every
message through the ingestion pipeline oldest first. Interrupting the command
stops it after the message in flight.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFile(file); err != nil {
				return err
			}

			cfg := config.Get()
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			msgs, err := importer.ReadFile(file, loc)
			if err != nil {
				return err
			}

			db, err := app.ConnectPostgres(cfg)
			if err != nil {
				return err
			}
			ledger, err := app.NewLedger(cfg, db)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			_, err = runImport(ctx, cmd.OutOrStdout(), ledger.Ingest, msgs, every)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "export file (.csv or .json)")
	cmd.Flags().IntVar(&every, "progress-every", 100, "print progress every N messages")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runImport(ctx context.Context, out io.Writer, ing historicalImporter, msgs []model.InboundMessage, every int) (services.BatchSummary, error) {
	runID := uuid.NewString()
	started := time.Now()
	log := logger.GetLogger().With("run_id", runID)
	log.Info("historical import started", "messages", len(msgs))

	summary, err := ing.ImportHistorical(ctx, msgs, func(p services.Progress) {
		if every > 0 && (p.Done%every == 0 || p.Done == p.Total) {
			fmt.Fprintf(out, "[%s] %d/%d processed=%d duplicates=%d\n", runID[:8], p.Done, p.Total, p.Summary.Processed, p.Summary.Duplicates)
		}
	})

	fmt.Fprintf(out, "found=%d processed=%d duplicates=%d parse_failed=%d not_financial=%d failed_skipped=%d errors=%d elapsed=%s\n",
		summary.Found, summary.Processed, summary.Duplicates, summary.ParseFailed,
		summary.NotFinancial, summary.FailedSkipped, summary.Errors, time.Since(started).Round(time.Millisecond))

	if err != nil {
		log.Error("historical import aborted", "error", err, "processed", summary.Processed)
		return summary, errors.Wrapf(err, "import %s", runID)
	}
	log.Info("historical import finished", "found", summary.Found, "processed", summary.Processed, "duplicates", summary.Duplicates)
	return summary, nil
}

func validateFile(path string) error {
	if path == "" {
		return errors.New("file path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", path)
	}
	if info.IsDir() {
		return errors.Errorf("%s is a directory", path)
	}
	return nil
}

func validateDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(err, "cannot read %s", path)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", path)
	}
	return nil
}
