// Package app wires configuration into the connections and services shared
// by the ledger binaries.
package app

import (
	"context"
	"os"
	"strings"

	"github.com/nimasrn/sms-ledger/internal/config"
	"github.com/nimasrn/sms-ledger/internal/filter"
	"github.com/nimasrn/sms-ledger/internal/parser"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/nimasrn/sms-ledger/pkg/pg"
	"github.com/nimasrn/sms-ledger/pkg/redis"
	"github.com/pkg/errors"
)

// Ledger bundles the services built on top of one database.
type Ledger struct {
	DB           *pg.DB
	Messages     *repository.RawMessageRepository
	Transactions *repository.TransactionRepository
	Debts        *repository.DebtRepository

	Ingest     *services.IngestService
	Reader     *services.LedgerService
	DebtLedger *services.DebtService
}

func ConnectPostgres(c *config.Config) (*pg.DB, error) {
	db, err := pg.CreateReadWrite(c.PostgresRead(), c.PostgresWrite(), c.AppDebug)
	if err != nil {
		return nil, errors.Wrap(err, "failed connecting to pg")
	}
	return db, nil
}

func ConnectRedis(c *config.Config) (redis.RedisAdapter, error) {
	adapter, err := redis.NewRedisAdapter("default", c.RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{c.RedisAddr},
		ClientName: c.AppName,
		DB:         c.RedisDatabase,
		Username:   c.RedisUsername,
		Password:   c.RedisPassword,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed connecting to redis")
	}
	return adapter, nil
}

// NewLedger builds the ingestion pipeline and its read surfaces.
func NewLedger(c *config.Config, db *pg.DB) (*Ledger, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	list, err := filter.LoadAllowList(c.LedgerSenderAllowlistFile)
	if err != nil {
		return nil, err
	}

	p := parser.New(loc)
	messages := repository.NewRawMessageRepository(db)
	txns := repository.NewTransactionRepository(db)
	links := repository.NewLinkRepository(db)
	debtRepo := repository.NewDebtRepository(db)

	linker := services.NewLinkerService(messages, links, p)
	debts := services.NewDebtService(debtRepo, txns)

	logger.Info("ledger pipeline ready", "timezone", loc.String(), "allowlist", c.LedgerSenderAllowlistFile)

	return &Ledger{
		DB:           db,
		Messages:     messages,
		Transactions: txns,
		Debts:        debtRepo,
		Ingest:       services.NewIngestService(db, filter.New(list), p, messages, txns, linker, debts),
		Reader:       services.NewLedgerService(txns, messages),
		DebtLedger:   debts,
	}, nil
}

// HealthChecks probes postgres and, when given, redis.
func HealthChecks(db *pg.DB, adapter redis.RedisAdapter) []services.HealthCheck {
	checks := []services.HealthCheck{{Name: "postgres", Check: db.Ping}}
	if adapter != nil {
		checks = append(checks, services.HealthCheck{
			Name: "redis",
			Check: func(ctx context.Context) error {
				return adapter.Ping(ctx)
			},
		})
	}
	return checks
}

// EnvPath returns the value of a --env=path argument when the file exists.
func EnvPath(args []string) string {
	for _, v := range args {
		if path, ok := strings.CutPrefix(v, "--env="); ok {
			if _, err := os.Stat(path); err != nil {
				logger.Error("failed to open the passed env file", "error", err)
				return ""
			}
			return path
		}
	}
	return ""
}
