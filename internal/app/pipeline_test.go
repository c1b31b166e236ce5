package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/sms-ledger/internal/config"
	gateway "github.com/nimasrn/sms-ledger/internal/gateways"
	"github.com/nimasrn/sms-ledger/internal/handlers"
	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/processor"
	"github.com/nimasrn/sms-ledger/internal/queue"
	"github.com/nimasrn/sms-ledger/internal/repository"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/nimasrn/sms-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

const (
	pushedBody  = "QJK3ABCD19 Confirmed. Ksh 250.00 paid to NAIVAS SUPERMARKET. on 7/11/26 at 6:10 PM.New M-PESA balance is Ksh 2,750.00. Transaction cost, Ksh 0.00."
	pulledBody  = "QJK3ABCD17 Confirmed.You have received Ksh 2,500.00 from JANE WANJIKU 0722000111 on 4/11/26 at 1:05 PM New M-PESA balance is Ksh 4,500.00."
	watermarkID = "test:watermark"
)

type pipelineEnv struct {
	ledger    *Ledger
	adapter   redis.RedisAdapter
	handler   *handlers.MessageHandler
	processor *processor.IngestProcessor
}

func setupPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	ledger, err := NewLedger(&config.Config{LedgerTimezone: "Africa/Nairobi"}, repository.NewTestDB(t))
	require.NoError(t, err)

	queueConfig := queue.QueueConfig{
		Name:              "test:inbound",
		ConsumerGroup:     "ledger",
		ConsumerName:      "api",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      20 * time.Millisecond,
		BatchSize:         10,
		MaxLen:            1000,
		EnableDLQ:         true,
	}
	q, err := queue.NewQueue(adapter, queueConfig)
	require.NoError(t, err)

	metrics := processor.NewServiceMetrics()
	ingest := processor.NewIngestProcessor(ledger.Ingest, processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig()), metrics)

	queueConfig.ConsumerName = "worker"
	svc := processor.NewProcessorService(adapter, queueConfig, metrics)
	svc.RegisterProcessor(ingest)
	require.NoError(t, svc.Start())
	t.Cleanup(svc.Stop)

	return &pipelineEnv{
		ledger:    ledger,
		adapter:   adapter,
		handler:   handlers.NewMessageHandler(services.NewMessageService(q), ledger.Ingest, ledger.Reader),
		processor: ingest,
	}
}

func (e *pipelineEnv) push(t *testing.T, msg model.InboundMessage) int {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod("POST")
	ctx.Request.SetRequestURI("/api/v1/messages")
	ctx.Request.SetBody(body)
	e.handler.SubmitMessage(ctx)
	return ctx.Response.StatusCode()
}

func (e *pipelineEnv) transactionCount() int64 {
	_, total, err := e.ledger.Reader.ListTransactions(context.Background(), model.TransactionFilter{})
	if err != nil {
		return -1
	}
	return total
}

func inboxServer(t *testing.T, msgs ...gateway.InboxMessage) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gateway.InboxResponse{Messages: msgs})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPipeline_PushThenPullOfSameMessage(t *testing.T) {
	env := setupPipelineEnv(t)
	at := time.Date(2025, 11, 7, 15, 10, 0, 0, time.UTC)

	require.Equal(t, 202, env.push(t, model.InboundMessage{Sender: "MPESA", Body: pushedBody, ReceivedAt: at}))

	assert.Eventually(t, func() bool {
		return env.transactionCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	srv := inboxServer(t,
		gateway.InboxMessage{Sender: "MPESA", Body: pushedBody, ReceivedAt: at},
		gateway.InboxMessage{Sender: "MPESA", Body: pulledBody, ReceivedAt: at.Add(-72 * time.Hour)},
	)
	conf := gateway.DefaultConfig(srv.URL)
	conf.MaxRetries = 0
	client, err := gateway.NewClient(conf)
	require.NoError(t, err)

	settings := repository.NewSettingsRepository(env.adapter)
	poller := processor.NewInboxPoller(client, settings, env.processor, watermarkID, time.Minute)

	handled, err := poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, handled)

	// the pushed message is not booked twice
	assert.Equal(t, int64(2), env.transactionCount())

	mark, ok, err := settings.Watermark(context.Background(), watermarkID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mark.Equal(at))

	handled, err = poller.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, handled)

	stats, err := env.ledger.Reader.ParseStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Parsed)
}

func TestPipeline_RejectsInvalidPush(t *testing.T) {
	env := setupPipelineEnv(t)

	assert.Equal(t, 400, env.push(t, model.InboundMessage{Sender: "MPESA"}))
	assert.Equal(t, 400, env.push(t, model.InboundMessage{Sender: "MPESA", Body: pushedBody, ReceivedAt: time.Now().Add(time.Hour)}))
	assert.Equal(t, int64(0), env.transactionCount())
}
