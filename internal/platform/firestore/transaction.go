package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

const (
	txMaxAttempts    = 5
	txDefaultTimeout = 15 * time.Second
)

// TxFunc is the body executed inside a Firestore transaction. It may run more
// than once when the transaction retries on contention.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption adjusts how a transaction is executed.
type TxOption func(*txSettings)

type txSettings struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts caps the number of commit attempts.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the wall-clock time of the whole transaction, retries
// included.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// RunTransaction executes fn transactionally on client, mapping the outcome
// through the repository error categorisation.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	settings := txSettings{attempts: txMaxAttempts, timeout: txDefaultTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}

	// Tighten the context only when the caller's deadline is looser than ours.
	if settings.timeout > 0 {
		if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > settings.timeout {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, settings.timeout)
			defer cancel()
		}
	}

	err := client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		return fn(ctx, tx)
	}, firestore.MaxAttempts(settings.attempts))

	return WrapError("transaction", err)
}
