package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/sms-ledger/internal/queue"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/nimasrn/sms-ledger/pkg/prom"
	"github.com/nimasrn/sms-ledger/pkg/redis"
	"github.com/nimasrn/sms-ledger/pkg/worker"
)

const ProcessingTimeout = time.Second * 30
const HealthInterval = time.Second * 30
const ShutdownTimeout = time.Minute

// Processor handles one queue entry.
type Processor interface {
	Process(ctx context.Context, message *queue.Message) error
	GetType() string
}

// Task is a background loop run for the lifetime of the service.
type Task func(ctx context.Context)

// ProcessorService drains the push-channel queue through a single worker so
// that ledger writes are applied one at a time, and runs the registered
// background tasks (inbox poller, overdue sweeper).
type ProcessorService struct {
	adapter     redis.RedisAdapter
	queueConfig queue.QueueConfig
	queue       *queue.Queue
	processor   Processor
	metrics     *ServiceMetrics
	tasks       map[string]Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	worker      *worker.WorkerManager[*job]
}

func NewProcessorService(adapter redis.RedisAdapter, queueConfig queue.QueueConfig, metrics *ServiceMetrics) *ProcessorService {
	if metrics == nil {
		metrics = NewServiceMetrics()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessorService{
		adapter:     adapter,
		queueConfig: queueConfig,
		metrics:     metrics,
		tasks:       make(map[string]Task),
		ctx:         ctx,
		cancel:      cancel,
		worker:      worker.NewWorkerManager[*job](64, 1),
	}
}

func (s *ProcessorService) RegisterProcessor(processor Processor) {
	s.processor = processor
	logger.Info("registered processor", "type", processor.GetType())
}

func (s *ProcessorService) RegisterTask(name string, task Task) {
	s.tasks[name] = task
	logger.Info("registered task", "task", name)
}

func (s *ProcessorService) Start() error {
	if s.processor == nil {
		return fmt.Errorf("no processor registered")
	}
	logger.Info("starting processor service", "queue", s.queueConfig.Name)

	s.worker.SetWorker(s.workerHandler)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Start(); err != nil {
			logger.Info("worker manager stopped", "reason", err)
		}
	}()

	q, err := queue.NewQueue(s.adapter, s.queueConfig)
	if err != nil {
		return fmt.Errorf("failed to create queue: %w", err)
	}
	if err := q.Consume(s.messageHandler); err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	s.queue = q

	for name, task := range s.tasks {
		s.wg.Add(1)
		go func(name string, task Task) {
			defer s.wg.Done()
			task(s.ctx)
			logger.Info("task stopped", "task", name)
		}(name, task)
	}

	s.wg.Add(2)
	go s.metricsReporter()
	go s.healthChecker()

	logger.Info("processor service started", "tasks", len(s.tasks))
	return nil
}

func (s *ProcessorService) metricsReporter() {
	defer s.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reportMetrics()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) reportMetrics() {
	stats := s.metrics.GetStats()
	kv := make([]interface{}, 0, len(stats)*2)
	for k, v := range stats {
		kv = append(kv, k, v)
	}
	logger.Info("ingest metrics", kv...)

	if s.queue != nil {
		if qStats, err := s.queue.GetStats(s.ctx); err == nil {
			logger.Info("queue stats", "total", qStats.TotalMessages, "pending", qStats.PendingMessages, "dead_letters", qStats.DeadLetters)
			prom.SetQueueDepth(qStats.TotalMessages, qStats.PendingMessages, qStats.DeadLetters)
		}
	}
}

func (s *ProcessorService) healthChecker() {
	defer s.wg.Done()

	ticker := time.NewTicker(HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.performHealthCheck()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *ProcessorService) performHealthCheck() {
	if err := s.adapter.Ping(s.ctx); err != nil {
		logger.Error("health check failed: redis connection error", "error", err)
		return
	}
	if s.queue == nil {
		return
	}

	stats, err := s.queue.GetStats(s.ctx)
	if err != nil {
		logger.Warn("health check: queue stats unavailable", "error", err)
		return
	}
	if stats.PendingMessages > 1000 {
		logger.Warn("health check: ingest is lagging", "pending_messages", stats.PendingMessages)
	}
	if stats.DeadLetters > 0 {
		logger.Warn("health check: dead letters waiting", "count", stats.DeadLetters)
	}
}

// Stop stops the consumer first so the entry in flight completes, then the
// worker and the background tasks.
func (s *ProcessorService) Stop() {
	logger.Info("shutting down processor service")

	if s.queue != nil {
		if err := s.queue.Stop(ShutdownTimeout); err != nil {
			logger.Error("error stopping queue", "error", err)
		}
	}
	s.cancel()
	s.worker.Exit()
	s.wg.Wait()

	s.reportMetrics()
	logger.Info("processor service stopped")
}

type job struct {
	msg    *queue.Message
	result chan error
	ctx    context.Context
}

// messageHandler hands the entry to the worker and waits for its result.
func (s *ProcessorService) messageHandler(ctx context.Context, msg *queue.Message) error {
	ctx, cancel := context.WithTimeout(ctx, ProcessingTimeout)
	defer cancel()

	j := &job{
		msg:    msg,
		result: make(chan error, 1),
		ctx:    ctx,
	}
	if err := s.worker.Enqueue(ctx, j); err != nil {
		return fmt.Errorf("enqueue to worker: %w", err)
	}

	select {
	case err := <-j.result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for worker to process message: %w", ctx.Err())
	}
}

func (s *ProcessorService) workerHandler(workerIndex int, j *job) {
	if j.ctx.Err() != nil {
		logger.Warn("job context cancelled before processing started", "worker", workerIndex, "queue_id", j.msg.ID)
		return
	}

	// result is buffered; the handler may already have timed out
	j.result <- s.processor.Process(j.ctx, j.msg)
}
