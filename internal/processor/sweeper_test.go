package processor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOverdueMarker struct {
	mock.Mock
}

func (m *MockOverdueMarker) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestOverdueSweeper_SweepOnce(t *testing.T) {
	now := time.Date(2026, time.November, 16, 0, 0, 0, 0, time.UTC)
	debts := new(MockOverdueMarker)
	sweeper := NewOverdueSweeper(debts, time.Hour)
	sweeper.now = func() time.Time { return now }

	debts.On("SweepOverdue", mock.Anything, now).Return(int64(2), nil).Once()
	debts.On("SweepOverdue", mock.Anything, now).Return(int64(0), errors.New("db gone")).Once()

	n, err := sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = sweeper.SweepOnce(context.Background())
	assert.Error(t, err)
	debts.AssertExpectations(t)
}

type countingMarker struct {
	calls atomic.Int32
}

func (c *countingMarker) SweepOverdue(ctx context.Context, now time.Time) (int64, error) {
	c.calls.Add(1)
	return 0, nil
}

func TestOverdueSweeper_Run(t *testing.T) {
	debts := &countingMarker{}
	sweeper := NewOverdueSweeper(debts, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return debts.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
