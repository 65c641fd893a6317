package mirror

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/progressfacts/internal/data/docstore"
	"github.com/yungbote/progressfacts/internal/platform/logger"
)

const defaultPrefix = "progressFacts"

// RedisConfig addresses the redis hash mirror.
type RedisConfig struct {
	Addr        string
	Prefix      string
	MaxAttempts int
}

// RedisMirror stores the mirror as one redis hash per owner whose fields are
// dotted leaf paths holding JSON values. Increments map to HINCRBYFLOAT,
// array unions run as WATCH/MULTI read-merge-write, and server timestamps
// come from redis TIME.
type RedisMirror struct {
	log         *logger.Logger
	rdb         goredis.UniversalClient
	prefix      string
	maxAttempts int
}

// NewRedisMirror dials redis and verifies connectivity.
func NewRedisMirror(log *logger.Logger, cfg RedisConfig) (*RedisMirror, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisMirrorFromClient(log, rdb, cfg), nil
}

// NewRedisMirrorFromClient wraps an existing client.
func NewRedisMirrorFromClient(log *logger.Logger, rdb goredis.UniversalClient, cfg RedisConfig) *RedisMirror {
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}
	return &RedisMirror{
		log:         log.With("service", "RedisMirror"),
		rdb:         rdb,
		prefix:      prefix,
		maxAttempts: attempts,
	}
}

func (m *RedisMirror) Close() error {
	if m == nil || m.rdb == nil {
		return nil
	}
	return m.rdb.Close()
}

// Client exposes the underlying client for health collectors.
func (m *RedisMirror) Client() goredis.UniversalClient {
	if m == nil {
		return nil
	}
	return m.rdb
}

func (m *RedisMirror) key(ownerID string) string {
	return m.prefix + ":" + ownerID
}

func (m *RedisMirror) MergeFlat(ctx context.Context, ownerID string, patch docstore.Document) error {
	if m == nil || m.rdb == nil {
		return fmt.Errorf("redis mirror not initialized")
	}
	flat := Flatten(patch)
	if len(flat) == 0 {
		return nil
	}

	var now time.Time
	set := map[string]any{}
	incr := map[string]float64{}
	unions := map[string]docstore.ArrayUnionOp{}
	for path, v := range flat {
		switch op := v.(type) {
		case docstore.ServerTimestampOp:
			if now.IsZero() {
				t, err := m.rdb.Time(ctx).Result()
				if err != nil {
					return mapError("mirror.redis.time", err)
				}
				now = t.UTC()
			}
			set[path] = now
		case docstore.IncrementOp:
			incr[path] = op.By
		case docstore.ArrayUnionOp:
			unions[path] = op
		default:
			set[path] = v
		}
	}

	key := m.key(ownerID)
	if len(unions) == 0 {
		_, err := m.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return queueWrites(ctx, pipe, key, set, incr)
		})
		return mapError("mirror.redis.merge", err)
	}

	fields := make([]string, 0, len(unions))
	for f := range unions {
		fields = append(fields, f)
	}
	txf := func(tx *goredis.Tx) error {
		vals, err := tx.HMGet(ctx, key, fields...).Result()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		merged := make(map[string]any, len(set)+len(fields))
		for k, v := range set {
			merged[k] = v
		}
		for i, f := range fields {
			var cur any
			if i < len(vals) {
				if s, ok := vals[i].(string); ok {
					cur = decodeField(s)
				}
			}
			merged[f] = unions[f].Apply(cur, now)
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			return queueWrites(ctx, pipe, key, merged, incr)
		})
		return err
	}
	var err error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		err = m.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
		m.log.Debug("mirror watch conflict, retrying", "attempt", attempt+1)
	}
	return mapError("mirror.redis.union", err)
}

func queueWrites(ctx context.Context, pipe goredis.Pipeliner, key string, set map[string]any, incr map[string]float64) error {
	if len(set) > 0 {
		values := make(map[string]any, len(set))
		for k, v := range set {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			values[k] = string(raw)
		}
		pipe.HSet(ctx, key, values)
	}
	for field, by := range incr {
		pipe.HIncrByFloat(ctx, key, field, by)
	}
	return nil
}

func (m *RedisMirror) Load(ctx context.Context, ownerID string) (docstore.Document, error) {
	if m == nil || m.rdb == nil {
		return nil, fmt.Errorf("redis mirror not initialized")
	}
	raw, err := m.rdb.HGetAll(ctx, m.key(ownerID)).Result()
	if err != nil {
		return nil, mapError("mirror.redis.load", err)
	}
	if len(raw) == 0 {
		return nil, docstore.ErrNotFound
	}
	flat := make(map[string]any, len(raw))
	for k, v := range raw {
		flat[k] = decodeField(v)
	}
	return Unflatten(flat), nil
}

func decodeField(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goredis.Nil):
		return docstore.ErrNotFound
	case errors.Is(err, goredis.TxFailedErr):
		return docstore.MapError(op, errors.Join(docstore.ErrConflict, err))
	default:
		return docstore.MapError(op, err)
	}
}
