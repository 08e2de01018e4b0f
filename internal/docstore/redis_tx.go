package docstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"volunteer-hub/internal/status"
)

// Transact implements the guarded read-modify-write on top of WATCH/MULTI/EXEC.
// The read set is watched for the whole attempt; if any of its documents is
// written by someone else before EXEC, the attempt is discarded and body runs
// again against fresh reads.
func (s *RedisStore) Transact(ctx context.Context, readSet []string, body func(tx Tx) error) error {
	keys := make([]string, 0, len(readSet))
	for _, p := range readSet {
		keys = append(keys, docKey(p))
	}

	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		t := newRedisTx(ctx, readSet)
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			t.rtx = rtx
			if err := body(t); err != nil {
				return err
			}
			if len(t.writes) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, w := range t.writes {
					w(pipe)
				}
				return nil
			})
			return err
		}, keys...)

		switch {
		case err == nil:
			s.publish(ctx, t.touched...)
			return nil
		case errors.Is(err, redis.TxFailedErr):
			if s.onRetry != nil {
				s.onRetry()
			}
			if err := s.backoff(ctx, attempt); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts", status.ErrConflict, s.maxRetries)
}

func (s *RedisStore) backoff(ctx context.Context, attempt int) error {
	d := time.Duration(attempt)*s.retryDelay + rand.N(s.retryDelay+1)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type redisTx struct {
	ctx     context.Context
	rtx     *redis.Tx
	readSet map[string]struct{}
	writes  []func(redis.Pipeliner)
	touched []string
}

func newRedisTx(ctx context.Context, readSet []string) *redisTx {
	rs := make(map[string]struct{}, len(readSet))
	for _, p := range readSet {
		rs[p] = struct{}{}
	}
	return &redisTx{ctx: ctx, readSet: rs}
}

func (t *redisTx) Get(path string) (Document, bool, error) {
	_, id := Split(path)
	if _, ok := t.readSet[path]; !ok {
		return Document{}, false, fmt.Errorf("transaction read of %s outside its read set", path)
	}
	vals, err := t.rtx.HGetAll(t.ctx, docKey(path)).Result()
	if err != nil {
		return Document{}, false, fmt.Errorf("transaction read %s: %w", path, err)
	}
	if len(vals) == 0 {
		return Document{ID: id, Path: path}, false, nil
	}
	return Document{ID: id, Path: path, Fields: vals}, true, nil
}

func (t *redisTx) Set(path string, fields Fields) {
	collection, id := Split(path)
	t.add(path, func(pipe redis.Pipeliner) {
		pipe.Del(t.ctx, docKey(path))
		pipe.HSet(t.ctx, docKey(path), map[string]string(fields))
		pipe.SAdd(t.ctx, colKey(collection), id)
	})
}

func (t *redisTx) Update(path string, fields Fields) {
	t.add(path, func(pipe redis.Pipeliner) {
		pipe.HSet(t.ctx, docKey(path), map[string]string(fields))
	})
}

func (t *redisTx) Delete(path string) {
	collection, id := Split(path)
	t.add(path, func(pipe redis.Pipeliner) {
		pipe.Del(t.ctx, docKey(path))
		pipe.SRem(t.ctx, colKey(collection), id)
	})
}

func (t *redisTx) add(path string, w func(redis.Pipeliner)) {
	t.writes = append(t.writes, w)
	t.touched = append(t.touched, path)
}
