package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/sms-ledger/pkg/logger"
	"github.com/nimasrn/sms-ledger/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("message already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IdempotencyConfig controls the redis fast path that skips a delivery seen
// on another channel before it reaches the database.
type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       7 * 24 * time.Hour,
		MaxRetries:         5,
		RetryKeyPrefix:     "ledger:retry:",
		LockKeyPrefix:      "ledger:lock:",
		ProcessedKeyPrefix: "ledger:seen:",
	}
}

type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

// ProcessingContext is held while one delivery is being ingested.
type ProcessingContext struct {
	Fingerprint  string
	RetryCount   int
	IsRetry      bool
	token        string
	lockAcquired bool
}

func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, fingerprint string) (*ProcessingContext, error) {
	seen, err := s.IsProcessed(ctx, fingerprint)
	if err != nil {
		// the reference-code check in the database still guards correctness
		logger.Warn("failed to check processed marker", "fingerprint", fingerprint, "error", err)
	} else if seen {
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, fingerprint)
	if err != nil {
		logger.Warn("failed to read retry counter", "fingerprint", fingerprint, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: fingerprint=%s, retries=%d", ErrMaxRetriesExceeded, fingerprint, retryCount)
	}

	token := uuid.NewString()
	acquired, err := s.redis.SetNX(ctx, s.config.LockKeyPrefix+fingerprint, []byte(token), s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		logger.Debug("lock held by another consumer", "fingerprint", fingerprint)
		return nil, ErrLockAcquireFailed
	}

	return &ProcessingContext{
		Fingerprint:  fingerprint,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		token:        token,
		lockAcquired: true,
	}, nil
}

// MarkSuccess sets the long-lived processed marker and clears the lock and
// retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(ctx, s.config.ProcessedKeyPrefix+pc.Fingerprint, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if err := s.redis.Del(ctx, s.config.RetryKeyPrefix+pc.Fingerprint); err != nil {
		logger.Warn("failed to clear retry counter", "fingerprint", pc.Fingerprint, "error", err)
	}
	return s.ReleaseLock(ctx, pc)
}

func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	next := pc.RetryCount + 1
	if err := s.redis.Set(ctx, s.config.RetryKeyPrefix+pc.Fingerprint, []byte(strconv.Itoa(next)), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to increment retry counter", "fingerprint", pc.Fingerprint, "error", err)
	}

	logger.Warn("ingest failed, will retry",
		"fingerprint", pc.Fingerprint,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return s.ReleaseLock(ctx, pc)
}

// ReleaseLock drops the lock only while it still carries this holder's
// token. A lock that expired and was taken by another consumer is left alone.
func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	pc.lockAcquired = false

	// the ingest ctx may already be done, the lock must still go
	ctx = context.WithoutCancel(ctx)
	key := s.config.LockKeyPrefix + pc.Fingerprint
	current, err := s.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return nil
		}
		return err
	}
	if string(current) != pc.token {
		logger.Warn("lock taken over by another consumer", "fingerprint", pc.Fingerprint)
		return nil
	}
	return s.redis.Del(ctx, key)
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, fingerprint string) (int, error) {
	raw, err := s.redis.Get(ctx, s.config.RetryKeyPrefix+fingerprint)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt retry counter: %w", err)
	}
	return n, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, fingerprint string) (bool, error) {
	return s.redis.Exists(ctx, s.config.ProcessedKeyPrefix+fingerprint)
}
