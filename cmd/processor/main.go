package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/sms-ledger/internal/app"
	"github.com/nimasrn/sms-ledger/internal/config"
	gateway "github.com/nimasrn/sms-ledger/internal/gateways"
	"github.com/nimasrn/sms-ledger/internal/processor"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/nimasrn/sms-ledger/pkg/prom"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(app.EnvPath(os.Args))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting processor", "version", version, "commit", commit, "date", date)

	db, err := app.ConnectPostgres(cfg)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := app.ConnectRedis(cfg)
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	ledger, err := app.NewLedger(cfg, db)
	if err != nil {
		logger.Error("failed building ledger", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err = prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}
	go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)

	metrics := processor.NewServiceMetrics()
	idempotencyService := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	ingestProcessor := processor.NewIngestProcessor(ledger.Ingest, idempotencyService, metrics)

	service := processor.NewProcessorService(redisAdap, cfg.Queue(), metrics)
	service.RegisterProcessor(ingestProcessor)

	if cfg.InboxURL != "" {
		inboxConf := gateway.DefaultConfig(cfg.InboxURL)
		inboxConf.Timeout = cfg.InboxTimeout
		client, err := gateway.NewClient(inboxConf)
		if err != nil {
			logger.Error("failed to create inbox client", "error", err)
			return
		}
		poller := processor.NewInboxPoller(client, repository.NewSettingsRepository(redisAdap), ingestProcessor, cfg.WatermarkKey, cfg.InboxPollInterval)
		service.RegisterTask("inbox-poller", poller.Run)
	} else {
		logger.Warn("INBOX_URL not set, pull channel disabled")
	}

	sweeper := processor.NewOverdueSweeper(ledger.DebtLedger, cfg.OverdueSweepInterval)
	service.RegisterTask("overdue-sweeper", sweeper.Run)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := service.Start(); err != nil {
			logger.Error("failed to start processor", "error", err)
		}
	}()

	<-c
	service.Stop()
	logger.Sync()
}
