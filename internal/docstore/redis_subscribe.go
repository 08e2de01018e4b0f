package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"volunteer-hub/internal/status"
)

const maxResubscribeDelay = 5 * time.Second

// Subscribe streams the full membership of q.Collection: once the change
// channel is confirmed, then again after every committed change and every
// reconnect. A failed load is retried with backoff. Bursts of
// change messages are folded into a single reload.
func (s *RedisStore) Subscribe(ctx context.Context, q Query, fn Listener) (Subscription, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("subscribe: %w: empty collection", status.ErrInvalidInput)
	}
	load := func(ctx context.Context) Snapshot {
		docs, err := s.List(ctx, q)
		if err != nil {
			return Snapshot{Path: q.Collection, Err: err}
		}
		return Snapshot{Path: q.Collection, Docs: docs}
	}
	return s.watch(ctx, q.Collection, load, fn), nil
}

// SubscribeDocument streams a single document. A missing document is
// delivered as an empty snapshot, not as an error.
func (s *RedisStore) SubscribeDocument(ctx context.Context, path string, fn Listener) (Subscription, error) {
	if path == "" {
		return nil, fmt.Errorf("subscribe: %w: empty path", status.ErrInvalidInput)
	}
	load := func(ctx context.Context) Snapshot {
		doc, err := s.Get(ctx, path)
		switch {
		case errors.Is(err, status.ErrNotFound):
			return Snapshot{Path: path}
		case err != nil:
			return Snapshot{Path: path, Err: err}
		}
		return Snapshot{Path: path, Docs: []Document{doc}}
	}
	return s.watch(ctx, path, load, fn), nil
}

type redisSubscription struct {
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (r *redisSubscription) Remove() {
	r.once.Do(r.cancel)
}

func (s *RedisStore) watch(parent context.Context, path string, load func(context.Context) Snapshot, fn Listener) *redisSubscription {
	ctx, cancel := context.WithCancel(parent)
	sub := &redisSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		channel := changeChannel(path)
		ps := s.client.Subscribe(ctx, channel)
		defer ps.Close()

		// the initial load must happen after the channel is live, otherwise a
		// write landing in between would never be seen
		for attempt := 1; ; attempt++ {
			_, err := ps.Receive(ctx)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("change channel not ready", slog.String("channel", channel), slog.Int("attempt", attempt), slog.String("error", err.Error()))
			deliver(ctx, fn, Snapshot{Path: path, Err: fmt.Errorf("subscribe %s: %w", path, err)})
			if !sleep(ctx, resubscribeDelay(attempt)) {
				return
			}
		}

		// a failed load is retried on a backoff timer so a listener is never
		// left holding an error snapshot while the channel stays quiet
		var (
			retry    <-chan time.Time
			failures int
		)
		reload := func() {
			snap := load(ctx)
			deliver(ctx, fn, snap)
			if snap.Err == nil || ctx.Err() != nil {
				failures, retry = 0, nil
				return
			}
			failures++
			s.log.Warn("reload failed", slog.String("path", path), slog.Int("attempt", failures), slog.String("error", snap.Err.Error()))
			retry = time.After(resubscribeDelay(failures))
		}
		reload()

		// go-redis resubscribes after a dropped connection and reports it as a
		// *redis.Subscription; changes published while disconnected are lost,
		// so that also triggers a reload
		msgs := ps.ChannelWithSubscriptions()
		for {
			select {
			case <-ctx.Done():
				return
			case <-retry:
				reload()
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				if resub, ok := msg.(*redis.Subscription); ok {
					s.log.Debug("change channel resubscribed", slog.String("channel", resub.Channel))
				}
				drain(msgs)
				reload()
			}
		}
	}()

	return sub
}

func deliver(ctx context.Context, fn Listener, snap Snapshot) {
	if ctx.Err() != nil {
		return
	}
	fn(snap)
}

func drain[T any](ch <-chan T) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func resubscribeDelay(attempt int) time.Duration {
	d := time.Duration(attempt) * 100 * time.Millisecond
	return min(d, maxResubscribeDelay)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
