package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var NilError = goredis.Nil

type Options = goredis.UniversalOptions

// StreamMessage is one redis stream entry.
type StreamMessage struct {
	ID     string
	Values map[string]any
}

// PendingEntry is one entry of a consumer group's pending list.
type PendingEntry struct {
	ID         string
	Consumer   string
	Idle       time.Duration
	Deliveries int64
}

// RedisAdapter prefixes every key and stream name. Callers pass bare names.
type RedisAdapter interface {
	Ping(ctx context.Context) error
	Close() error

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	XAdd(ctx context.Context, stream string, values map[string]any, maxLen int64) (string, error)
	XReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]StreamMessage, error)
	XAck(ctx context.Context, stream, group string, ids ...string) error
	XGroupCreate(ctx context.Context, stream, group string) error
	XLen(ctx context.Context, stream string) (int64, error)
	XPendingCount(ctx context.Context, stream, group string) (count int64, consumers int, err error)
	XPendingEntries(ctx context.Context, stream, group string, count int64) ([]PendingEntry, error)
	XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error)
}

type redisAdapter struct {
	prefix string
	conn   goredis.UniversalClient
	name   string
}

var (
	redisLock      = &sync.RWMutex{}
	redisInstances = map[string]RedisAdapter{}
)

// NewRedisAdapter returns the adapter registered under connName, connecting
// on first use.
func NewRedisAdapter(connName string, keysPrefix string, opts *goredis.UniversalOptions) (RedisAdapter, error) {
	redisLock.RLock()
	adapter, ok := redisInstances[connName]
	redisLock.RUnlock()
	if ok {
		return adapter, nil
	}

	c := goredis.NewUniversalClient(opts)
	if err := c.Ping(context.Background()).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}

	redisLock.Lock()
	defer redisLock.Unlock()
	if adapter, ok := redisInstances[connName]; ok {
		_ = c.Close()
		return adapter, nil
	}

	adapter = &redisAdapter{conn: c, prefix: keysPrefix, name: connName}
	redisInstances[connName] = adapter
	return adapter, nil
}

// GetRedis looks up a registered adapter, "default" when no name is given.
func GetRedis(connName ...string) RedisAdapter {
	name := "default"
	if len(connName) > 0 && connName[0] != "" {
		name = connName[0]
	}

	redisLock.RLock()
	defer redisLock.RUnlock()
	return redisInstances[name]
}

func (r *redisAdapter) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx).Err()
}

// Close disconnects and forgets the adapter so the name can be reused.
func (r *redisAdapter) Close() error {
	redisLock.Lock()
	if redisInstances[r.name] == r {
		delete(redisInstances, r.name)
	}
	redisLock.Unlock()
	return r.conn.Close()
}

func (r *redisAdapter) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.conn.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *redisAdapter) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	return r.conn.SetNX(ctx, r.prefix+key, value, ttl).Result()
}

func (r *redisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	return r.conn.Get(ctx, r.prefix+key).Bytes()
}

func (r *redisAdapter) Del(ctx context.Context, key string) error {
	return r.conn.Del(ctx, r.prefix+key).Err()
}

func (r *redisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.conn.Exists(ctx, r.prefix+key).Result()
	return n > 0, err
}

// XAdd appends an entry. A positive maxLen trims the stream approximately.
func (r *redisAdapter) XAdd(ctx context.Context, stream string, values map[string]any, maxLen int64) (string, error) {
	args := &goredis.XAddArgs{Stream: r.prefix + stream, ID: "*", Values: values}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return r.conn.XAdd(ctx, args).Result()
}

// XReadGroup reads new entries without blocking. An empty stream returns
// NilError.
func (r *redisAdapter) XReadGroup(ctx context.Context, stream, group, consumer string, count int64) ([]StreamMessage, error) {
	streams, err := r.conn.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{r.prefix + stream, ">"},
		Count:    count,
		Block:    -1,
	}).Result()
	if err != nil {
		return nil, err
	}

	var out []StreamMessage
	for _, s := range streams {
		out = append(out, toStreamMessages(s.Messages)...)
	}
	return out, nil
}

func (r *redisAdapter) XAck(ctx context.Context, stream, group string, ids ...string) error {
	return r.conn.XAck(ctx, r.prefix+stream, group, ids...).Err()
}

// XGroupCreate creates the group at the start of the stream, creating the
// stream if needed. An existing group is not an error.
func (r *redisAdapter) XGroupCreate(ctx context.Context, stream, group string) error {
	err := r.conn.XGroupCreateMkStream(ctx, r.prefix+stream, group, "0").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *redisAdapter) XLen(ctx context.Context, stream string) (int64, error) {
	return r.conn.XLen(ctx, r.prefix+stream).Result()
}

func (r *redisAdapter) XPendingCount(ctx context.Context, stream, group string) (int64, int, error) {
	p, err := r.conn.XPending(ctx, r.prefix+stream, group).Result()
	if err != nil {
		return 0, 0, err
	}
	return p.Count, len(p.Consumers), nil
}

func (r *redisAdapter) XPendingEntries(ctx context.Context, stream, group string, count int64) ([]PendingEntry, error) {
	pending, err := r.conn.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: r.prefix + stream,
		Group:  group,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]PendingEntry, 0, len(pending))
	for _, p := range pending {
		out = append(out, PendingEntry{ID: p.ID, Consumer: p.Consumer, Idle: p.Idle, Deliveries: p.RetryCount})
	}
	return out, nil
}

func (r *redisAdapter) XClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, ids ...string) ([]StreamMessage, error) {
	msgs, err := r.conn.XClaim(ctx, &goredis.XClaimArgs{
		Stream:   r.prefix + stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, err
	}
	return toStreamMessages(msgs), nil
}

func toStreamMessages(msgs []goredis.XMessage) []StreamMessage {
	out := make([]StreamMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, StreamMessage{ID: m.ID, Values: m.Values})
	}
	return out
}
