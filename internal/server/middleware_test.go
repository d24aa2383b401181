package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(10, time.Second, quartz.NewMock(t))
	connID := "test-conn-1"

	for i := 0; i < 10; i++ {
		if !limiter.Allow(connID) {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}

	if limiter.Allow(connID) {
		t.Error("11th request should be denied")
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	limiter := NewRateLimiter(2, 100*time.Millisecond, mClock)
	connID := "test-conn-2"

	if !limiter.Allow(connID) {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow(connID) {
		t.Error("Second request should be allowed")
	}
	if limiter.Allow(connID) {
		t.Error("Third request should be denied")
	}

	mClock.Advance(150 * time.Millisecond).MustWait(ctx)

	if !limiter.Allow(connID) {
		t.Error("Request after window reset should be allowed")
	}
}

func TestRateLimiter_SlidingWindow(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	limiter := NewRateLimiter(2, time.Second, mClock)

	assert.True(limiter.Allow("conn"))
	mClock.Advance(600 * time.Millisecond).MustWait(ctx)
	assert.True(limiter.Allow("conn"))
	assert.False(limiter.Allow("conn"))

	// Only the first request has left the window.
	mClock.Advance(500 * time.Millisecond).MustWait(ctx)
	assert.True(limiter.Allow("conn"))
	assert.False(limiter.Allow("conn"))
}

func TestRateLimiter_MultipleConnections(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second, quartz.NewMock(t))
	conn1 := "conn-1"
	conn2 := "conn-2"

	for i := 0; i < 5; i++ {
		limiter.Allow(conn1)
	}

	if limiter.Allow(conn1) {
		t.Error("conn1 should be rate limited")
	}
	if !limiter.Allow(conn2) {
		t.Error("conn2 should not be affected by conn1's limit")
	}
}

func TestRateLimiter_CleanupAndRemove(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	limiter := NewRateLimiter(5, time.Second, mClock)

	limiter.Allow("old")
	mClock.Advance(2 * time.Second).MustWait(ctx)
	limiter.Allow("fresh")
	limiter.Allow("gone")
	assert.Equal(3, limiter.tracked())

	limiter.Cleanup()
	assert.Equal(2, limiter.tracked())

	limiter.RemoveConnection("gone")
	assert.Equal(1, limiter.tracked())
}

func TestConnectionHealth(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	mClock := quartz.NewMock(t)
	health := NewConnectionHealth(mClock)

	assert.False(health.IsInactive("unknown", time.Second))

	health.UpdateActivity("idle")
	mClock.Advance(3 * time.Minute).MustWait(ctx)
	health.UpdateActivity("busy")
	mClock.Advance(3 * time.Minute).MustWait(ctx)

	assert.True(health.IsInactive("idle", 5*time.Minute))
	assert.False(health.IsInactive("busy", 5*time.Minute))
	assert.Equal([]string{"idle"}, health.GetInactiveConnections(5*time.Minute))

	health.RemoveConnection("idle")
	assert.Empty(health.GetInactiveConnections(5 * time.Minute))
}

func TestValidateMessageType(t *testing.T) {
	for _, msgType := range []string{"ping", "create_game", "join_game", "reconnect", "apply_action", "get_state"} {
		assert.NoError(t, ValidateMessageType(msgType), msgType)
	}

	err := ValidateMessageType("execute_move")
	assert.ErrorContains(t, err, "INVALID_MESSAGE_TYPE")
	assert.Equal(t, "INVALID_MESSAGE_TYPE", errorCode(err))
}

func TestRateLimitMiddleware(t *testing.T) {
	assert := assert.New(t)
	s := &Server{
		rateLimiter: NewRateLimiter(1, time.Minute, quartz.NewMock(t)),
		logger:      testLogger(),
	}
	handler := s.rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/games", nil)
	req.RemoteAddr = "10.0.0.1:5000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(http.StatusTooManyRequests, rec.Code)
	assert.Contains(rec.Body.String(), "RATE_LIMITED")

	// A different port on the same host shares the budget.
	req.RemoteAddr = "10.0.0.1:6000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(http.StatusTooManyRequests, rec.Code)
}

func TestCorsMiddlewarePreflight(t *testing.T) {
	assert := assert.New(t)
	s := &Server{}
	called := false
	handler := s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/games", nil))

	assert.Equal(http.StatusNoContent, rec.Code)
	assert.Equal("*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.False(called)
}
