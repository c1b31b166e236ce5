package prom

import (
	"sync"

	xhttp "github.com/nimasrn/sms-ledger/pkg/http"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	SystemIngest = "ingest"
	SystemDebt   = "debt"
	SystemInbox  = "inbox"
	SystemQueue  = "queue"
)

// metrics is nil until Create runs, which makes every recorder a no-op in
// tests and tools that never start the metrics server.
type metrics struct {
	registry        *prometheus.Registry
	ingestOutcomes  *prometheus.CounterVec
	ingestDuration  *prometheus.HistogramVec
	debtsOverdue    prometheus.Counter
	inboxFetched    prometheus.Counter
	inboxPollFailed prometheus.Counter
	queueDepth      *prometheus.GaugeVec
}

var (
	mu      sync.RWMutex
	current *metrics
)

// Create registers the ledger metrics under namespace with env and instance
// as constant labels. Calling it again replaces the previous set.
func Create(host string, env string, namespace string) error {
	labels := prometheus.Labels{"env": env, "instance": host}
	opts := func(subsystem, name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: labels}
	}

	m := &metrics{registry: prometheus.NewRegistry()}
	m.ingestOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts(opts(SystemIngest, "outcomes_total", "Ingested messages by outcome and channel.")), []string{"outcome", "channel"})
	durationOpts := opts(SystemIngest, "duration_seconds", "Time spent ingesting one message.")
	m.ingestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   durationOpts.Namespace,
		Subsystem:   durationOpts.Subsystem,
		Name:        durationOpts.Name,
		Help:        durationOpts.Help,
		ConstLabels: durationOpts.ConstLabels,
		Buckets:     []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"channel"})
	m.debtsOverdue = prometheus.NewCounter(prometheus.CounterOpts(opts(SystemDebt, "marked_overdue_total", "Debts moved to overdue by the sweeper.")))
	m.inboxFetched = prometheus.NewCounter(prometheus.CounterOpts(opts(SystemInbox, "fetched_total", "Messages fetched from the device inbox.")))
	m.inboxPollFailed = prometheus.NewCounter(prometheus.CounterOpts(opts(SystemInbox, "poll_failures_total", "Inbox polls that fetched or handled with an error.")))
	m.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts(opts(SystemQueue, "entries", "Push queue entries by state.")), []string{"state"})

	for _, c := range []prometheus.Collector{m.ingestOutcomes, m.ingestDuration, m.debtsOverdue, m.inboxFetched, m.inboxPollFailed, m.queueDepth} {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}

	mu.Lock()
	current = m
	mu.Unlock()
	return nil
}

func get() *metrics {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// ListenAndServer serves the registry on addr at url. It blocks.
func ListenAndServer(addr string, url string) {
	m := get()
	if m == nil {
		logger.Warn("[metrics-server] metrics not created, not serving")
		return
	}
	s := xhttp.CreateServer()
	s.GET(url, fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})))
	logger.Info("[metrics-server] listening...", "addr", addr, "url", url)
	if err := s.ListenAndServe(addr); err != nil {
		logger.Error("[metrics-server] http listen error", "error", err)
	}
}

func IncIngestOutcome(outcome, channel string) {
	if m := get(); m != nil {
		m.ingestOutcomes.WithLabelValues(outcome, channel).Inc()
	}
}

func AddIngestDuration(seconds float64, channel string) {
	if m := get(); m != nil {
		m.ingestDuration.WithLabelValues(channel).Observe(seconds)
	}
}

func AddDebtsMarkedOverdue(n int64) {
	if m := get(); m != nil && n > 0 {
		m.debtsOverdue.Add(float64(n))
	}
}

func AddInboxFetched(n int) {
	if m := get(); m != nil && n > 0 {
		m.inboxFetched.Add(float64(n))
	}
}

func IncInboxPollFailure() {
	if m := get(); m != nil {
		m.inboxPollFailed.Inc()
	}
}

// SetQueueDepth records the stream length, pending entries and dead letters.
func SetQueueDepth(total, pending, deadLetters int64) {
	m := get()
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues("total").Set(float64(total))
	m.queueDepth.WithLabelValues("pending").Set(float64(pending))
	m.queueDepth.WithLabelValues("dead_letter").Set(float64(deadLetters))
}
