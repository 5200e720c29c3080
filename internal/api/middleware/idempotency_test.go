package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finflow-ledger/internal/util"
)

func setupIdempotency(t *testing.T, next http.HandlerFunc) (http.Handler, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })
	return Idempotency(cache, time.Minute, util.DiscardLogger())(next), mr
}

func post(h http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/users/A/deposit", strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	h, _ := setupIdempotency(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})

	rec := post(h, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	var calls atomic.Int64
	h, _ := setupIdempotency(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"new_balance":500}`))
	})

	first := post(h, "abc123")
	second := post(h, "abc123")

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	h, mr := setupIdempotency(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	})
	require.NoError(t, mr.Set(idempotencyPrefix+"busy", inProgressMarker))

	rec := post(h, "busy")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	var calls atomic.Int64
	h, mr := setupIdempotency(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusServiceUnavailable, post(h, "retry-me").Code)
	assert.False(t, mr.Exists(idempotencyPrefix+"retry-me"))
	assert.Equal(t, http.StatusOK, post(h, "retry-me").Code)
	assert.Equal(t, int64(2), calls.Load())
}

func TestIdempotencySkipsSafeMethods(t *testing.T) {
	var calls atomic.Int64
	h, _ := setupIdempotency(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/users/A/wallets", nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, int64(2), calls.Load())
}
