package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nimasrn/sms-ledger/internal/app"
	"github.com/nimasrn/sms-ledger/internal/config"
	"github.com/nimasrn/sms-ledger/internal/handlers"
	"github.com/nimasrn/sms-ledger/internal/queue"
	"github.com/nimasrn/sms-ledger/internal/services"
	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
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
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	opt := xhttp.DefaultServerOption()
	opt.Name = "sms-ledger-api"
	s := xhttp.NewServer(opt)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(opt.RequestTimeout))

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

	q, err := queue.NewQueue(redisAdap, cfg.Queue())
	if err != nil {
		logger.Error("failed creating queue", "error", err)
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

	// services
	messageService := services.NewMessageService(q)
	healthService := services.NewHealthService(app.HealthChecks(db, redisAdap)...)

	// v1 handlers
	g := s.Router.Group(cfg.HttpBaseRequestUrl)
	handlers.RegisterMessageRoutes(g, handlers.NewMessageHandler(messageService, ledger.Ingest, ledger.Reader))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(ledger.Reader))
	handlers.RegisterDebtRoutes(g, handlers.NewDebtHandler(ledger.DebtLedger))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		var err = s.ListenAndServe(cfg.HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	<-c
	s.Shutdown()
	logger.Sync()
}
