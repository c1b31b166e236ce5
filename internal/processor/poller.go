package processor

import (
	"context"
	"sort"
	"time"

	"github.com/nimasrn/sms-ledger/internal/model"
	"github.com/nimasrn/sms-ledger/internal/services"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/nimasrn/sms-ledger/pkg/prom"
)

type InboxSource interface {
	FetchSince(ctx context.Context, since time.Time) ([]model.InboundMessage, error)
}

type WatermarkStore interface {
	Watermark(ctx context.Context, key string) (time.Time, bool, error)
	AdvanceWatermark(ctx context.Context, key string, ts time.Time) error
}

type MessageHandler interface {
	Handle(ctx context.Context, msg model.InboundMessage) (*services.Outcome, error)
}

// InboxPoller is the pull channel. Each poll fetches what the device inbox
// delivered after the stored watermark, ingests it oldest first and moves
// the watermark to the newest message ingested.
type InboxPoller struct {
	source     InboxSource
	watermarks WatermarkStore
	handler    MessageHandler
	key        string
	interval   time.Duration
}

func NewInboxPoller(source InboxSource, watermarks WatermarkStore, handler MessageHandler, key string, interval time.Duration) *InboxPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	return &InboxPoller{
		source:     source,
		watermarks: watermarks,
		handler:    handler,
		key:        key,
		interval:   interval,
	}
}

// Poll runs one pull. It stops at the first message that fails so the
// watermark never passes an unprocessed message.
func (p *InboxPoller) Poll(ctx context.Context) (int, error) {
	since, _, err := p.watermarks.Watermark(ctx, p.key)
	if err != nil {
		return 0, err
	}

	msgs, err := p.source.FetchSince(ctx, since)
	if err != nil {
		prom.IncInboxPollFailure()
		return 0, err
	}
	prom.AddInboxFetched(len(msgs))

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.Before(msgs[j].ReceivedAt)
	})

	handled := 0
	newest := since
	var handleErr error
	for _, m := range msgs {
		if ctx.Err() != nil {
			break
		}
		if !m.ReceivedAt.After(since) {
			continue
		}
		m.Channel = model.ChannelPull
		if _, err := p.handler.Handle(ctx, m); err != nil {
			prom.IncInboxPollFailure()
			logger.Error("pull ingest failed", "sender", m.Sender, "received_at", m.ReceivedAt, "error", err)
			handleErr = err
			// a message sharing the failed one's timestamp must be fetched again
			if !newest.Before(m.ReceivedAt) {
				newest = m.ReceivedAt.Add(-time.Nanosecond)
			}
			break
		}
		handled++
		newest = m.ReceivedAt
	}

	if newest.After(since) {
		if err := p.watermarks.AdvanceWatermark(ctx, p.key, newest); err != nil {
			return handled, err
		}
	}
	if handled > 0 {
		logger.Info("inbox poll finished", "handled", handled, "watermark", newest)
	}
	return handled, handleErr
}

// Run polls on every tick until ctx is done.
func (p *InboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("inbox poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
