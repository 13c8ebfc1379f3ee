package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long stored responses remain replayable.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch is returned when a key is reused with a different request body.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with different request")

// State describes the outcome of reserving an idempotency key.
type State int

const (
	// StateNew means the key was reserved and the request should proceed.
	StateNew State = iota
	// StateReplay means a stored response exists and should be returned as-is.
	StateReplay
	// StateInFlight means another request holding the key has not finished yet.
	StateInFlight
)

// Record is the persisted response for a completed key.
type Record struct {
	Key            string
	Fingerprint    string
	Completed      bool
	ResponseStatus int
	ResponseBody   []byte
	ContentType    string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Reservation reports the reservation state plus the stored record on replay.
type Reservation struct {
	State  State
	Record Record
}

// Store persists idempotency reservations and completed responses.
type Store interface {
	// Reserve claims key for the given request fingerprint. Expired records
	// are treated as absent.
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	// Complete stores the response to replay for subsequent uses of key.
	Complete(ctx context.Context, key, fingerprint string, status int, contentType string, body []byte, now time.Time, ttl time.Duration) error
	// Release drops an in-flight reservation after a handler failure.
	Release(ctx context.Context, key string) error
}

// Fingerprint derives a stable digest for the request method, path, and body.
// The body reader is restored on the request.
func Fingerprint(r *http.Request) (string, error) {
	var body []byte
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return "", err
		}
		body = data
		r.Body = io.NopCloser(strings.NewReader(string(data)))
	}

	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{0})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func recordKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}
