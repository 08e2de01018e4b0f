// Package testutil provides shared helpers for volunteer-hub tests.
package testutil

import (
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// Polling bounds for require.Eventually on live streams.
const (
	WaitFor = 2 * time.Second
	Tick    = 10 * time.Millisecond
)

// NewRedis starts an in-process Redis server and returns a client connected
// to it. Both are shut down when the test completes.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr:     mr.Addr(),
		Protocol: 2,
	})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
