package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"rps_arena/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

const maxTxRetries = 16

var ErrConflict = errors.New("match update conflict")

// RedisBackend stores each match as a JSON value and applies updates with
// WATCH/MULTI, retrying when another writer touched the key first.
type RedisBackend struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisBackend(rdb *redis.Client, ttl time.Duration) *RedisBackend {
	return &RedisBackend{rdb: rdb, ttl: ttl, prefix: "match:"}
}

func (b *RedisBackend) key(id int64) string {
	return b.prefix + strconv.FormatInt(id, 10)
}

func (b *RedisBackend) Load(ctx context.Context, id int64) (*domain.Match, bool, error) {
	raw, err := b.rdb.Get(ctx, b.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load match %d: %w", id, err)
	}
	var m domain.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, fmt.Errorf("decode match %d: %w", id, err)
	}
	return &m, true, nil
}

func (b *RedisBackend) Update(ctx context.Context, id int64, fn UpdateFunc) (*domain.Match, error) {
	key := b.key(id)
	var result *domain.Match

	txf := func(tx *redis.Tx) error {
		working := &domain.Match{ID: id}
		exists := true
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			exists = false
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, working); err != nil {
				return fmt.Errorf("decode match %d: %w", id, err)
			}
		}

		changed, err := fn(working, exists)
		if err != nil {
			return err
		}
		result = working
		if !changed {
			return nil
		}

		data, err := json.Marshal(working)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, b.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := b.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: match %d", ErrConflict, id)
}
