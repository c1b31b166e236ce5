package processor

import (
	"context"
	"time"

	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/nimasrn/sms-ledger/pkg/prom"
)

type OverdueMarker interface {
	SweepOverdue(ctx context.Context, now time.Time) (int64, error)
}

// OverdueSweeper periodically moves open debts past their due date to overdue.
type OverdueSweeper struct {
	debts    OverdueMarker
	interval time.Duration
	now      func() time.Time
}

func NewOverdueSweeper(debts OverdueMarker, interval time.Duration) *OverdueSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueSweeper{
		debts:    debts,
		interval: interval,
		now:      time.Now,
	}
}

func (s *OverdueSweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.debts.SweepOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	prom.AddDebtsMarkedOverdue(n)
	return n, nil
}

func (s *OverdueSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.Error("overdue sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
