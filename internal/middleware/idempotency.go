package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/momoso/api/internal/cache"
	"github.com/momoso/api/internal/model"
)

// inFlightMarker occupies the key while the first request runs
const inFlightMarker = "in-flight"

// IdempotencyConfig holds configuration for idempotency middleware
type IdempotencyConfig struct {
	Store   cache.Store
	TTL     time.Duration // How long to keep results (default 24h)
	LockTTL time.Duration // How long an unfinished request holds the key (default 2m)
}

type storedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// generateKey fingerprints the request so a reused key with a different
// body is treated as a new request
func generateKey(idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(idempotencyKey))
	h.Write([]byte{0})
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyResponseWriter captures the response for caching
type idempotencyResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *idempotencyResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency returns middleware that replays the stored response for a
// repeated Idempotency-Key on POST/PATCH requests. Records live in Redis so
// every API instance sees them. A second request that arrives while the
// first is still running gets 409. Server errors are not stored, so the
// client may retry them.
func Idempotency(cfg IdempotencyConfig) Middleware {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 2 * time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := GetUserID(r.Context())
			if scope == "" {
				scope = r.RemoteAddr
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				model.NewBadRequestError("could not read request body").WriteJSON(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			key := cache.IdempotencyKey(scope, generateKey(idempotencyKey, r.Method, r.URL.Path, body))

			acquired, err := cfg.Store.SetNX(ctx, key, inFlightMarker, cfg.LockTTL)
			if err != nil {
				slog.WarnContext(ctx, "idempotency store unavailable, processing without it",
					slog.String("request_id", GetRequestID(ctx)),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			if !acquired {
				raw, err := cfg.Store.Get(ctx, key)
				switch {
				case errors.Is(err, cache.ErrMiss):
					// Lock expired between the two calls; run without caching
					next.ServeHTTP(w, r)
				case err != nil:
					model.NewServiceUnavailableError("idempotency store unavailable").WriteJSON(w)
				case raw == inFlightMarker:
					model.NewConflictError("a request with this Idempotency-Key is still being processed").WriteJSON(w)
				default:
					replay(w, raw)
				}
				return
			}

			irw := &idempotencyResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(irw, r)

			// The client may be gone by now. The record must still replace
			// the in-flight marker, or retries get 409 until LockTTL.
			ctx = context.WithoutCancel(ctx)

			if irw.status >= http.StatusInternalServerError {
				_ = cfg.Store.Delete(ctx, key)
				return
			}

			data, err := json.Marshal(storedResponse{
				Status: irw.status,
				Header: irw.Header().Clone(),
				Body:   irw.body.Bytes(),
			})
			if err == nil {
				err = cfg.Store.Set(ctx, key, string(data), cfg.TTL)
			}
			if err != nil {
				slog.WarnContext(ctx, "failed to store idempotent response",
					slog.String("request_id", GetRequestID(ctx)),
					slog.String("error", err.Error()),
				)
				_ = cfg.Store.Delete(ctx, key)
			}
		})
	}
}

func replay(w http.ResponseWriter, raw string) {
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		model.NewInternalError("corrupt idempotency record").WriteJSON(w)
		return
	}

	for k, v := range stored.Header {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}
