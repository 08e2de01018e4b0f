package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/pocketbase/pocketbase/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volunteer-hub/internal/testutil"
)

func newRequestEvent(userID, userAgent string) (*core.RequestEvent, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events/e1/tasks/t1/signup", nil)
	req.Header.Set("User-Agent", userAgent)
	rec := httptest.NewRecorder()

	e := &core.RequestEvent{}
	e.Request = req
	e.Response = rec
	if userID != "" {
		auth := core.NewRecord(core.NewAuthCollection("users"))
		auth.Id = userID
		e.Auth = auth
	}
	return e, rec
}

func TestRateLimiter_AllowSetsWindowOnFirstHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRateLimiter(db, 2, time.Minute, testutil.Logger())
	ctx := context.Background()

	mock.ExpectIncr("ratelimit:signup:user:u1").SetVal(1)
	mock.ExpectExpire("ratelimit:signup:user:u1", time.Minute).SetVal(true)
	mock.ExpectIncr("ratelimit:signup:user:u1").SetVal(2)
	mock.ExpectIncr("ratelimit:signup:user:u1").SetVal(3)

	ok, err := rl.Allow(ctx, "signup", "user:u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(ctx, "signup", "user:u1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rl.Allow(ctx, "signup", "user:u1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_MiddlewareRejectsOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRateLimiter(db, 1, time.Minute, testutil.Logger())

	mock.ExpectIncr("ratelimit:signup:user:u1").SetVal(2)

	e, rec := newRequestEvent("u1", "Mozilla/5.0")
	err := rl.SignupRateLimit()(e)

	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_MiddlewareFailsOpen(t *testing.T) {
	db, mock := redismock.NewClientMock()
	rl := NewRateLimiter(db, 1, time.Minute, testutil.Logger())

	mock.ExpectIncr("ratelimit:signup:user:u1").SetErr(errors.New("redis down"))

	e, rec := newRequestEvent("u1", "Mozilla/5.0")
	err := rl.SignupRateLimit()(e)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_AnonymousCallersKeyedByIP(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	rl := NewRateLimiter(client, 1, time.Minute, testutil.Logger())

	e, rec := newRequestEvent("", "Mozilla/5.0")
	require.NoError(t, rl.SignupRateLimit()(e))
	assert.Equal(t, http.StatusOK, rec.Code)

	e, rec = newRequestEvent("", "Mozilla/5.0")
	require.NoError(t, rl.SignupRateLimit()(e))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// a signed-in user has a separate budget
	e, rec = newRequestEvent("u1", "Mozilla/5.0")
	require.NoError(t, rl.SignupRateLimit()(e))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiter_AntiBot(t *testing.T) {
	rl := NewRateLimiter(nil, 1, time.Minute, testutil.Logger())

	e, rec := newRequestEvent("", "Googlebot/2.1")
	require.NoError(t, rl.AntiBotMiddleware()(e))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	e, rec = newRequestEvent("", "Mozilla/5.0")
	require.NoError(t, rl.AntiBotMiddleware()(e))
	assert.Equal(t, http.StatusOK, rec.Code)
}
