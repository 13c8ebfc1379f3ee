package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/autexline/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err represents a missing document.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err represents a conflicting write.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err represents a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// CounterRepository issues strictly increasing sequence values per key.
type CounterRepository interface {
	// Next atomically increments the counter identified by key and returns
	// the new value. The counter is created at 1 on first use.
	Next(ctx context.Context, key string) (int64, error)
}

// ReviewUpdate carries the request mutation produced by a review decision.
type ReviewUpdate struct {
	Status domain.RequestStatus
	// ProductData replaces the stored payload when non-nil.
	ProductData map[string]any

	ReviewedBy      string
	ReviewedAt      time.Time
	RejectionReason string
	AdminNotes      string

	ApprovedProductID   string
	ApprovedProductKind domain.CatalogKind
}

// CatalogWrite describes the catalog entity to create in the same transaction
// as the review update. Exactly one of Vehicle or Part is set.
type CatalogWrite struct {
	ID      string
	Vehicle *domain.Vehicle
	Part    *domain.Part
}

// ReviewDecision inspects the current request state inside the transaction and
// returns the update to apply. Returning an error aborts the transaction with
// no state mutated.
type ReviewDecision func(current domain.ProductRequest) (ReviewUpdate, *CatalogWrite, error)

// ProductRequestRepository persists submitted listing requests and their review outcomes.
type ProductRequestRepository interface {
	Create(ctx context.Context, request domain.ProductRequest) (domain.ProductRequest, error)
	GetByID(ctx context.Context, id string) (domain.ProductRequest, error)

	// FinalizeReview runs decide inside a transaction. The status re-check,
	// the catalog entity create, and the request update commit together.
	FinalizeReview(ctx context.Context, id string, decide ReviewDecision) (domain.ProductRequest, error)

	List(ctx context.Context, filter domain.RequestFilter) (domain.RequestPage, error)
	CountPending(ctx context.Context) (int64, error)
	ListByRequester(ctx context.Context, requesterID string) ([]domain.ProductRequest, error)
}
