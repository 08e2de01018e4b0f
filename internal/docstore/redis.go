package docstore

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"volunteer-hub/internal/status"
)

const (
	docPrefix     = "doc:"
	colPrefix     = "col:"
	channelPrefix = "chg:"

	defaultMaxTxRetries = 25
	publishTimeout      = 2 * time.Second
)

// RedisStore keeps each document in a hash and each collection's membership in
// a set. Every committed write publishes the document id on the change
// channels of its collection and of the document itself.
type RedisStore struct {
	client     *redis.Client
	log        *slog.Logger
	maxRetries int
	retryDelay time.Duration
	onRetry    func()
}

type Option func(*RedisStore)

func WithLogger(log *slog.Logger) Option {
	return func(s *RedisStore) { s.log = log }
}

// WithMaxRetries bounds how many times a conflicting transaction is re-run.
func WithMaxRetries(n int) Option {
	return func(s *RedisStore) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithRetryHook is called once per conflicting transaction attempt.
func WithRetryHook(fn func()) Option {
	return func(s *RedisStore) { s.onRetry = fn }
}

func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:     client,
		log:        slog.Default(),
		maxRetries: defaultMaxTxRetries,
		retryDelay: 2 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func docKey(path string) string        { return docPrefix + path }
func colKey(collection string) string  { return colPrefix + collection }
func changeChannel(path string) string { return channelPrefix + path }

func (s *RedisStore) Get(ctx context.Context, path string) (Document, error) {
	vals, err := s.client.HGetAll(ctx, docKey(path)).Result()
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", path, err)
	}
	if len(vals) == 0 {
		return Document{}, fmt.Errorf("%w: %s", status.ErrNotFound, path)
	}
	_, id := Split(path)
	return Document{ID: id, Path: path, Fields: vals}, nil
}

func (s *RedisStore) List(ctx context.Context, q Query) ([]Document, error) {
	ids, err := s.client.SMembers(ctx, colKey(q.Collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}
	if len(ids) == 0 {
		return []Document{}, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, docKey(Join(q.Collection, id)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", q.Collection, err)
	}

	docs := make([]Document, 0, len(ids))
	for i, id := range ids {
		vals := cmds[i].Val()
		// membership and document are written together, an empty hash only
		// shows up for a document deleted between the two reads
		if len(vals) == 0 {
			continue
		}
		docs = append(docs, Document{ID: id, Path: Join(q.Collection, id), Fields: vals})
	}
	sortDocuments(docs, q)
	return docs, nil
}

func (s *RedisStore) Add(ctx context.Context, collection string, fields Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, Join(collection, id), fields, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, fields Fields, merge bool) error {
	if len(fields) == 0 {
		return fmt.Errorf("set %s: %w: no fields", path, status.ErrInvalidInput)
	}
	collection, id := Split(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if !merge {
			pipe.Del(ctx, docKey(path))
		}
		pipe.HSet(ctx, docKey(path), map[string]string(fields))
		pipe.SAdd(ctx, colKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	s.publish(ctx, path)
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	collection, id := Split(path)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, docKey(path))
		pipe.SRem(ctx, colKey(collection), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.publish(ctx, path)
	return nil
}

// publish announces committed writes. It runs detached from the caller's
// cancellation since the writes already landed. A failed publish is only
// logged; subscribers catch up on the next change.
func (s *RedisStore) publish(ctx context.Context, paths ...string) {
	if len(paths) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	seen := make(map[string]struct{}, len(paths)*2)
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range paths {
			collection, id := Split(p)
			for _, ch := range []string{changeChannel(collection), changeChannel(p)} {
				if _, ok := seen[ch]; ok {
					continue
				}
				seen[ch] = struct{}{}
				pipe.Publish(ctx, ch, id)
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("failed to publish document changes", slog.Any("paths", paths), slog.String("error", err.Error()))
	}
}

func sortDocuments(docs []Document, q Query) {
	slices.SortStableFunc(docs, func(a, b Document) int {
		c := 0
		if q.OrderBy != "" {
			c = cmp.Compare(orderValue(a, q.OrderBy), orderValue(b, q.OrderBy))
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.Descending {
			return -c
		}
		return c
	})
}

func orderValue(d Document, field string) int64 {
	v, err := strconv.ParseInt(d.Fields[field], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
