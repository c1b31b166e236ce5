package processor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/nimasrn/sms-ledger/pkg/prom"
)

// ServiceMetrics keeps in-process counters for the periodic log report and
// mirrors every observation into prometheus.
type ServiceMetrics struct {
	totalIngested   int64
	totalFailed     int64
	totalDurationNs int64
	startedNs       int64

	mu       sync.Mutex
	outcomes map[services.OutcomeKind]int64
}

func NewServiceMetrics() *ServiceMetrics {
	return &ServiceMetrics{
		startedNs: time.Now().UnixNano(),
		outcomes:  make(map[services.OutcomeKind]int64),
	}
}

func (m *ServiceMetrics) RecordOutcome(kind services.OutcomeKind, channel string, duration time.Duration) {
	atomic.AddInt64(&m.totalIngested, 1)
	atomic.AddInt64(&m.totalDurationNs, int64(duration))

	m.mu.Lock()
	m.outcomes[kind]++
	m.mu.Unlock()

	prom.IncIngestOutcome(string(kind), channel)
	prom.AddIngestDuration(duration.Seconds(), channel)
}

func (m *ServiceMetrics) RecordFailure(channel string) {
	atomic.AddInt64(&m.totalFailed, 1)
	prom.IncIngestOutcome("error", channel)
}

func (m *ServiceMetrics) Outcome(kind services.OutcomeKind) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[kind]
}

func (m *ServiceMetrics) GetStats() map[string]interface{} {
	ingested := atomic.LoadInt64(&m.totalIngested)
	durationNs := atomic.LoadInt64(&m.totalDurationNs)
	elapsed := time.Since(time.Unix(0, atomic.LoadInt64(&m.startedNs))).Seconds()

	avg := time.Duration(0)
	if ingested > 0 {
		avg = time.Duration(durationNs / ingested)
	}

	stats := map[string]interface{}{
		"total_ingested":  ingested,
		"total_failed":    atomic.LoadInt64(&m.totalFailed),
		"avg_duration_ms": avg.Milliseconds(),
		"uptime_seconds":  elapsed,
	}

	m.mu.Lock()
	for kind, n := range m.outcomes {
		stats[string(kind)] = n
	}
	m.mu.Unlock()
	return stats
}
