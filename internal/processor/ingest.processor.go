package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/queue"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/nimasrn/sms-ledger/pkg/logger"
)

// Ingester is the single-message entry point of the ledger pipeline.
type Ingester interface {
	ProcessMessage(ctx context.Context, sender, body string, receivedAt time.Time) (*services.Outcome, error)
}

// IngestProcessor feeds deliveries from either channel into the pipeline.
// The redis fingerprint check is a fast path only; the reference-code check
// inside the pipeline remains the authority on duplicates.
type IngestProcessor struct {
	ingest      Ingester
	idempotency *IdempotencyService
	metrics     *ServiceMetrics
}

func NewIngestProcessor(ingest Ingester, idempotency *IdempotencyService, metrics *ServiceMetrics) *IngestProcessor {
	if metrics == nil {
		metrics = NewServiceMetrics()
	}
	return &IngestProcessor{
		ingest:      ingest,
		idempotency: idempotency,
		metrics:     metrics,
	}
}

func (p *IngestProcessor) GetType() string {
	return "inbound_message"
}

// Process handles one push-channel queue entry. A nil return acks it.
func (p *IngestProcessor) Process(ctx context.Context, queueMessage *queue.Message) error {
	var msg model.InboundMessage
	if err := json.Unmarshal(queueMessage.Data, &msg); err != nil {
		logger.Error("failed to unmarshal inbound message", "queue_id", queueMessage.ID, "error", err)
		return fmt.Errorf("decode queue entry %s: %w", queueMessage.ID, err)
	}
	if msg.Channel == "" {
		msg.Channel = model.ChannelPush
	}
	if err := msg.Validate(); err != nil {
		// retrying cannot fix the payload
		logger.Warn("dropping invalid inbound message", "queue_id", queueMessage.ID, "error", err)
		return nil
	}

	_, err := p.Handle(ctx, msg)
	if errors.Is(err, ErrMaxRetriesExceeded) {
		logger.Error("giving up on inbound message", "queue_id", queueMessage.ID, "sender", msg.Sender)
		return nil
	}
	return err
}

// Handle ingests msg. A delivery already seen on another channel returns a
// duplicate outcome without touching the database.
func (p *IngestProcessor) Handle(ctx context.Context, msg model.InboundMessage) (*services.Outcome, error) {
	channel := string(msg.Channel)
	fingerprint := msg.Fingerprint()

	var pc *ProcessingContext
	if p.idempotency != nil {
		var err error
		pc, err = p.idempotency.AcquireProcessingLock(ctx, fingerprint)
		switch {
		case errors.Is(err, ErrAlreadyProcessed):
			logger.Debug("delivery already ingested", "fingerprint", fingerprint, "channel", channel)
			p.metrics.RecordOutcome(services.OutcomeDuplicate, channel, 0)
			return &services.Outcome{Kind: services.OutcomeDuplicate}, nil
		case errors.Is(err, ErrMaxRetriesExceeded), errors.Is(err, ErrLockAcquireFailed):
			return nil, err
		case err != nil:
			logger.Warn("idempotency check unavailable, continuing", "fingerprint", fingerprint, "error", err)
		}
	}
	defer func() {
		if pc != nil && pc.lockAcquired {
			_ = p.idempotency.ReleaseLock(context.WithoutCancel(ctx), pc)
		}
	}()

	start := time.Now()
	out, err := p.ingest.ProcessMessage(ctx, msg.Sender, msg.Body, msg.ReceivedAt)
	if err != nil {
		p.metrics.RecordFailure(channel)
		if pc != nil {
			if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
				logger.Error("failed to mark failure", "fingerprint", fingerprint, "error", markErr)
			}
		}
		return nil, err
	}
	p.metrics.RecordOutcome(out.Kind, channel, time.Since(start))

	if pc != nil {
		if markErr := p.idempotency.MarkSuccess(ctx, pc); markErr != nil {
			logger.Error("failed to mark success", "fingerprint", fingerprint, "error", markErr)
		}
	}

	logger.Info("message ingested",
		"channel", channel,
		"sender", msg.Sender,
		"outcome", out.Kind,
		"transaction_id", out.TransactionID,
		"needs_classification", out.NeedsClassification)
	return out, nil
}
