package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autexline/api/internal/platform/observability"
)

const defaultHeader = "Idempotency-Key"

type middlewareConfig struct {
	header string
	ttl    time.Duration
	clock  func() time.Time
}

// MiddlewareOption adjusts the middleware configuration.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header carrying the idempotency key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if strings.TrimSpace(name) != "" {
			cfg.header = name
		}
	}
}

// WithTTL overrides how long responses stay replayable.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware replays stored responses for repeated mutating requests carrying
// the same idempotency key. Requests without the header pass through.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		header: defaultHeader,
		ttl:    DefaultTTL,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(cfg.header))
			if key == "" || store == nil || !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := observability.FromContext(ctx)

			fingerprint, err := Fingerprint(r)
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_request", "could not read request body")
				return
			}

			now := cfg.clock().UTC()
			reservation, err := store.Reserve(ctx, key, fingerprint, now, cfg.ttl)
			if errors.Is(err, ErrFingerprintMismatch) {
				respondError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", "idempotency key was used for a different request")
				return
			}
			if err != nil {
				logger.Warn("idempotency reserve failed; proceeding without replay", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			switch reservation.State {
			case StateReplay:
				record := reservation.Record
				if record.ContentType != "" {
					w.Header().Set("Content-Type", record.ContentType)
				}
				w.Header().Set("X-Idempotency-Replayed", "true")
				w.WriteHeader(record.ResponseStatus)
				_, _ = w.Write(record.ResponseBody)
				return
			case StateInFlight:
				respondError(w, http.StatusConflict, "request_in_flight", "a request with this idempotency key is still being processed")
				return
			}

			recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.status >= http.StatusInternalServerError {
				if err := store.Release(ctx, key); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err))
				}
				return
			}
			contentType := recorder.Header().Get("Content-Type")
			if err := store.Complete(ctx, key, fingerprint, recorder.status, contentType, recorder.body.Bytes(), cfg.clock().UTC(), cfg.ttl); err != nil {
				logger.Warn("idempotency complete failed", zap.Error(err))
			}
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	})
}
