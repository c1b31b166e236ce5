package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/queue"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) ProcessMessage(ctx context.Context, sender, body string, receivedAt time.Time) (*services.Outcome, error) {
	args := m.Called(ctx, sender, body, receivedAt)
	out, _ := args.Get(0).(*services.Outcome)
	return out, args.Error(1)
}

func inbound() model.InboundMessage {
	return model.InboundMessage{
		Sender:     "MPESA",
		Body:       "QJK3ABCD22 Confirmed. Ksh 500.00 sent to JOHN DOE",
		ReceivedAt: time.Date(2026, time.November, 10, 13, 0, 0, 0, time.UTC),
		Channel:    model.ChannelPush,
	}
}

func TestIngestProcessor_Handle(t *testing.T) {
	_, adapter := setupTestRedis(t)
	idem := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ingester := new(MockIngester)
	metrics := NewServiceMetrics()
	p := NewIngestProcessor(ingester, idem, metrics)
	ctx := context.Background()
	msg := inbound()

	ingester.On("ProcessMessage", mock.Anything, msg.Sender, msg.Body, msg.ReceivedAt).
		Return(&services.Outcome{Kind: services.OutcomeProcessed, TransactionID: 7}, nil).Once()

	out, err := p.Handle(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.TransactionID)

	t.Run("same delivery on the pull channel is skipped", func(t *testing.T) {
		pulled := msg
		pulled.Channel = model.ChannelPull
		out, err := p.Handle(ctx, pulled)
		require.NoError(t, err)
		assert.Equal(t, services.OutcomeDuplicate, out.Kind)
	})

	ingester.AssertExpectations(t)
	assert.Equal(t, int64(1), metrics.Outcome(services.OutcomeProcessed))
	assert.Equal(t, int64(1), metrics.Outcome(services.OutcomeDuplicate))
}

func TestIngestProcessor_Handle_Failure(t *testing.T) {
	_, adapter := setupTestRedis(t)
	idem := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ingester := new(MockIngester)
	p := NewIngestProcessor(ingester, idem, nil)
	ctx := context.Background()
	msg := inbound()

	ingester.On("ProcessMessage", mock.Anything, msg.Sender, msg.Body, msg.ReceivedAt).
		Return(nil, errors.New("database is locked")).Once()
	ingester.On("ProcessMessage", mock.Anything, msg.Sender, msg.Body, msg.ReceivedAt).
		Return(&services.Outcome{Kind: services.OutcomeProcessed}, nil).Once()

	_, err := p.Handle(ctx, msg)
	assert.Error(t, err)

	count, err := idem.GetRetryCount(ctx, msg.Fingerprint())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	out, err := p.Handle(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeProcessed, out.Kind)
	ingester.AssertExpectations(t)
}

func TestIngestProcessor_Handle_WithoutRedis(t *testing.T) {
	ingester := new(MockIngester)
	p := NewIngestProcessor(ingester, nil, nil)
	msg := inbound()

	ingester.On("ProcessMessage", mock.Anything, msg.Sender, msg.Body, msg.ReceivedAt).
		Return(&services.Outcome{Kind: services.OutcomeDuplicate}, nil).Twice()

	for i := 0; i < 2; i++ {
		out, err := p.Handle(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, services.OutcomeDuplicate, out.Kind)
	}
	ingester.AssertExpectations(t)
}

func TestIngestProcessor_Process(t *testing.T) {
	ingester := new(MockIngester)
	p := NewIngestProcessor(ingester, nil, nil)
	ctx := context.Background()

	t.Run("decodes queue entry", func(t *testing.T) {
		msg := inbound()
		msg.Channel = ""
		data, err := json.Marshal(msg)
		require.NoError(t, err)

		ingester.On("ProcessMessage", mock.Anything, msg.Sender, msg.Body, mock.MatchedBy(func(ts time.Time) bool {
			return ts.Equal(msg.ReceivedAt)
		})).Return(&services.Outcome{Kind: services.OutcomeParseFailed}, nil).Once()

		assert.NoError(t, p.Process(ctx, &queue.Message{ID: "1-0", Data: data}))
		ingester.AssertExpectations(t)
	})

	t.Run("garbage payload is rejected", func(t *testing.T) {
		assert.Error(t, p.Process(ctx, &queue.Message{ID: "2-0", Data: []byte("{")}))
	})

	t.Run("invalid message is acked", func(t *testing.T) {
		data, _ := json.Marshal(model.InboundMessage{Sender: "MPESA"})
		assert.NoError(t, p.Process(ctx, &queue.Message{ID: "3-0", Data: data}))
	})

	t.Run("ingest error is returned for redelivery", func(t *testing.T) {
		msg := inbound()
		msg.Body = "other body"
		data, _ := json.Marshal(msg)
		ingester.On("ProcessMessage", mock.Anything, msg.Sender, msg.Body, mock.Anything).
			Return(nil, errors.New("boom")).Once()

		assert.Error(t, p.Process(ctx, &queue.Message{ID: "4-0", Data: data}))
	})
}

func TestIngestProcessor_Process_GivesUp(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = 1
	p := NewIngestProcessor(new(MockIngester), NewIdempotencyService(adapter, cfg), nil)

	msg := inbound()
	require.NoError(t, mr.Set(cfg.RetryKeyPrefix+msg.Fingerprint(), "1"))
	data, _ := json.Marshal(msg)

	assert.NoError(t, p.Process(context.Background(), &queue.Message{ID: "5-0", Data: data}))
}
