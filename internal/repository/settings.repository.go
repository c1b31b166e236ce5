package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/sms-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

const settingsPrefix = "ledger:settings:"

// SettingsRepository keeps small process-level values such as the pull
// channel watermark in redis.
type SettingsRepository struct {
	redis redis.RedisAdapter
}

func NewSettingsRepository(adapter redis.RedisAdapter) *SettingsRepository {
	return &SettingsRepository{redis: adapter}
}

// Watermark returns the stored timestamp for key; ok is false when unset.
func (r *SettingsRepository) Watermark(ctx context.Context, key string) (time.Time, bool, error) {
	raw, err := r.redis.Get(ctx, settingsPrefix+key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	nanos, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("watermark %s: %w", key, err)
	}
	return time.Unix(0, nanos).UTC(), true, nil
}

// AdvanceWatermark stores ts only when it is newer than the current value.
func (r *SettingsRepository) AdvanceWatermark(ctx context.Context, key string, ts time.Time) error {
	current, ok, err := r.Watermark(ctx, key)
	if err != nil {
		return err
	}
	if ok && !ts.After(current) {
		return nil
	}
	return r.redis.Set(ctx, settingsPrefix+key, []byte(strconv.FormatInt(ts.UnixNano(), 10)), 0)
}

func (r *SettingsRepository) ResetWatermark(ctx context.Context, key string) error {
	return r.redis.Del(ctx, settingsPrefix+key)
}
