// internal/api/middleware/idempotency.go
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	redisTimeout         = 2 * time.Second
)

type storedResponse struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

// recorder captures the status and body a handler writes while passing them
// through to the client.
type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency makes unsafe requests replayable. The first request with a
// given Idempotency-Key runs and its response is stored in Redis for ttl; a
// repeat gets the stored response back without reaching the handler, and a
// repeat that arrives while the first is still running gets 409. Conflicts
// and server errors are not stored so the caller can retry them.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				writeError(w, http.StatusBadRequest, "missing Idempotency-Key header")
				return
			}
			cacheKey := idempotencyPrefix + key

			ctx, cancel := context.WithTimeout(r.Context(), redisTimeout)
			defer cancel()

			reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
			if err != nil {
				logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
				writeError(w, http.StatusInternalServerError, "idempotency store failure")
				return
			}
			if !reserved {
				replay(ctx, w, cache, cacheKey, key, logger)
				return
			}

			rec := &recorder{ResponseWriter: w}
			completed := false
			defer func() {
				if !completed {
					release(cache, cacheKey)
				}
			}()
			next.ServeHTTP(rec, r)

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			if rec.status == http.StatusConflict || rec.status >= http.StatusInternalServerError {
				return
			}

			stored := storedResponse{
				Status:  rec.status,
				Body:    rec.body.String(),
				Headers: map[string]string{},
			}
			for name := range rec.Header() {
				if name == "Content-Length" {
					continue
				}
				stored.Headers[name] = rec.Header().Get(name)
			}
			payload, err := json.Marshal(stored)
			if err != nil {
				logger.Error("failed to encode idempotent response", slog.String("key", key), slog.Any("error", err))
				return
			}

			persistCtx, persistCancel := context.WithTimeout(context.Background(), redisTimeout)
			defer persistCancel()
			if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
				logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
				return
			}
			completed = true
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, cache *redis.Client, cacheKey, key string, logger *slog.Logger) {
	cached, err := cache.Get(ctx, cacheKey).Result()
	if errors.Is(err, redis.Nil) {
		// Released between SETNX and GET; the first attempt failed.
		writeError(w, http.StatusConflict, "duplicate request, retry")
		return
	}
	if err != nil {
		logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "idempotency store failure")
		return
	}
	if cached == inProgressMarker {
		writeError(w, http.StatusConflict, "duplicate request currently processing")
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		writeError(w, http.StatusConflict, "duplicate request")
		return
	}
	for name, value := range stored.Headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write([]byte(stored.Body))
}

// release drops the in-progress marker, best effort.
func release(cache *redis.Client, cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	cache.Del(ctx, cacheKey)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
