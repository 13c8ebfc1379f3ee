package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/autexline/api/internal/domain"
	"github.com/autexline/api/internal/platform/observability"
	"github.com/autexline/api/internal/repositories"
)

var (
	// ErrRequestInvalidInput indicates the submission or review payload is unusable.
	ErrRequestInvalidInput = errors.New("request: invalid input")
	// ErrRequestNotFound indicates the request does not exist.
	ErrRequestNotFound = errors.New("request: not found")
	// ErrRequestConflict indicates the request already left the pending state.
	ErrRequestConflict = errors.New("request: already reviewed")
	// ErrSubmitterNotAllowed indicates the caller may not submit listing requests.
	ErrSubmitterNotAllowed = errors.New("request: submitter not allowed")
)

// RequestServiceDeps bundles collaborators for the request lifecycle service.
type RequestServiceDeps struct {
	Requests repositories.ProductRequestRepository
	Counters CounterService
	// Format normalises display text on approved entities.
	Format domain.TextFormatter
	// Sanitize strips markup from seller free-text on ingress.
	Sanitize func(string) string
	Clock    func() time.Time
	NewID    func() string
}

type requestService struct {
	requests repositories.ProductRequestRepository
	counters CounterService
	format   domain.TextFormatter
	sanitize func(string) string
	clock    func() time.Time
	newID    func() string
}

// NewRequestService constructs the product request lifecycle service.
func NewRequestService(deps RequestServiceDeps) (RequestService, error) {
	if deps.Requests == nil {
		return nil, errors.New("request service: repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("request service: counter service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}

	return &requestService{
		requests: deps.Requests,
		counters: deps.Counters,
		format:   deps.Format,
		sanitize: deps.Sanitize,
		clock:    func() time.Time { return clock().UTC() },
		newID:    newID,
	}, nil
}

// Submit validates and stores a new seller submission in the pending state.
func (s *requestService) Submit(ctx context.Context, input SubmitRequestInput) (domain.ProductRequest, error) {
	requestType, ok := domain.ParseRequestType(input.Type)
	if !ok {
		return domain.ProductRequest{}, fmt.Errorf("%w: unknown request type %q", ErrRequestInvalidInput, input.Type)
	}
	if !domain.IsSellerRole(input.Requester.Role) {
		return domain.ProductRequest{}, fmt.Errorf("%w: role %q may not submit", ErrSubmitterNotAllowed, input.Requester.Role)
	}
	if !strings.EqualFold(input.Requester.AccountStatus, domain.AccountStatusActive) {
		return domain.ProductRequest{}, fmt.Errorf("%w: account is not active", ErrSubmitterNotAllowed)
	}
	if len(input.ProductData) == 0 {
		return domain.ProductRequest{}, fmt.Errorf("%w: product data is required", ErrRequestInvalidInput)
	}

	data := domain.NormalizePayload(input.ProductData, s.sanitize)
	if domain.PayloadString(data, "title", "model") == "" {
		return domain.ProductRequest{}, fmt.Errorf("%w: a title or model is required", ErrRequestInvalidInput)
	}

	if requestType == domain.RequestTypePart {
		normalizePartSubmission(data)
	}

	now := s.clock()
	request := domain.ProductRequest{
		ID:            s.newID(),
		Type:          requestType,
		Status:        domain.RequestStatusPending,
		RequesterID:   input.Requester.ID,
		RequesterName: input.Requester.Name,
		RequesterRole: strings.ToLower(strings.TrimSpace(input.Requester.Role)),
		ProductData:   data,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.requests.Create(ctx, request)
	if err != nil {
		return domain.ProductRequest{}, err
	}

	observability.FromContext(ctx).Info("product request submitted",
		zap.String("request_id", created.ID),
		zap.String("request_type", string(created.Type)),
		zap.String("requester_id", created.RequesterID),
	)
	return created, nil
}

// normalizePartSubmission keeps the raw price/stock strings alongside their
// lenient numeric values and mirrors make/model into brand/name for catalogue
// search parity.
func normalizePartSubmission(data map[string]any) {
	if raw, ok := data["price"]; ok {
		data["priceOriginal"] = raw
		data["price"] = domain.NumberOr(raw, 1)
	}
	if raw, ok := data["stock"]; ok {
		data["stockOriginal"] = raw
		data["stock"] = domain.NumberOr(raw, 1)
	}
	if domain.PayloadString(data, "brand") == "" {
		if maker := domain.PayloadString(data, "make"); maker != "" {
			data["brand"] = maker
		}
	}
	if domain.PayloadString(data, "name") == "" {
		if model := domain.PayloadString(data, "model"); model != "" {
			data["name"] = model
		}
	}
}

// Approve turns a pending request into a catalog entity.
func (s *requestService) Approve(ctx context.Context, requestID string, reviewer Reviewer, adminNotes string) (ReviewResult, error) {
	return s.approve(ctx, requestID, reviewer, nil, adminNotes)
}

// EditAndApprove merges the administrator's payload patch into the request and
// approves it in the same atomic transition.
func (s *requestService) EditAndApprove(ctx context.Context, requestID string, reviewer Reviewer, patch map[string]any, adminNotes string) (ReviewResult, error) {
	if len(patch) == 0 {
		return ReviewResult{}, fmt.Errorf("%w: edit payload is required", ErrRequestInvalidInput)
	}
	return s.approve(ctx, requestID, reviewer, patch, adminNotes)
}

func (s *requestService) approve(ctx context.Context, requestID string, reviewer Reviewer, patch map[string]any, adminNotes string) (ReviewResult, error) {
	current, err := s.getForReview(ctx, requestID)
	if err != nil {
		return ReviewResult{}, err
	}

	merged := current.ProductData
	payloadChanged := false
	if len(patch) > 0 {
		merged = domain.MergePayload(current.ProductData, domain.NormalizePayload(patch, s.sanitize))
		payloadChanged = true
	}

	ref := RefNo{Value: domain.PayloadString(merged, "refNo")}
	if ref.Value == "" {
		key := CounterKeyVehicle
		if current.Type == domain.RequestTypePart {
			key = CounterKeyPartRef
		}
		ref, err = s.counters.NextRefNo(ctx, key)
		if err != nil {
			return ReviewResult{}, err
		}
		merged = domain.MergePayload(merged, map[string]any{"refNo": ref.Value})
		payloadChanged = true
	}

	now := s.clock()
	projection := domain.ProjectionInput{
		RefNo:        ref.Value,
		PostedBy:     current.RequesterID,
		PostedByRole: current.RequesterRole,
		Now:          now,
		Format:       s.format,
	}

	write := repositories.CatalogWrite{ID: s.newID()}
	var kind domain.CatalogKind
	switch current.Type {
	case domain.RequestTypeVehicle:
		vehicle := domain.ProjectVehicle(merged, projection)
		if err := vehicle.Validate(); err != nil {
			return ReviewResult{}, fmt.Errorf("%w: %v", ErrRequestInvalidInput, err)
		}
		write.Vehicle = &vehicle
		kind = domain.CatalogKindVehicle
	case domain.RequestTypePart:
		part := domain.ProjectPart(merged, projection)
		if err := part.Validate(); err != nil {
			return ReviewResult{}, fmt.Errorf("%w: %v", ErrRequestInvalidInput, err)
		}
		write.Part = &part
		kind = domain.CatalogKindPart
	default:
		return ReviewResult{}, fmt.Errorf("%w: unknown request type %q", ErrRequestInvalidInput, current.Type)
	}

	updated, err := s.requests.FinalizeReview(ctx, requestID, func(cur domain.ProductRequest) (repositories.ReviewUpdate, *repositories.CatalogWrite, error) {
		if cur.Status != domain.RequestStatusPending {
			return repositories.ReviewUpdate{}, nil, ErrRequestConflict
		}
		update := repositories.ReviewUpdate{
			Status:              domain.RequestStatusApproved,
			ReviewedBy:          reviewerRef(reviewer),
			ReviewedAt:          now,
			AdminNotes:          adminNotes,
			ApprovedProductID:   write.ID,
			ApprovedProductKind: kind,
		}
		if payloadChanged {
			update.ProductData = merged
		}
		return update, &write, nil
	})
	if err != nil {
		return ReviewResult{}, s.mapReviewError(err)
	}

	observability.FromContext(ctx).Info("product request approved",
		zap.String("request_id", requestID),
		zap.String("product_id", write.ID),
		zap.String("ref_no", ref.Value),
		zap.Bool("ref_degraded", ref.Degraded),
		zap.Bool("edited", len(patch) > 0),
	)
	return ReviewResult{Request: updated, RefNo: ref}, nil
}

// Reject declines a pending request with a reason.
func (s *requestService) Reject(ctx context.Context, requestID string, reviewer Reviewer, reason, adminNotes string) (domain.ProductRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return domain.ProductRequest{}, fmt.Errorf("%w: rejection reason is required", ErrRequestInvalidInput)
	}
	if _, err := s.getForReview(ctx, requestID); err != nil {
		return domain.ProductRequest{}, err
	}

	now := s.clock()
	updated, err := s.requests.FinalizeReview(ctx, requestID, func(cur domain.ProductRequest) (repositories.ReviewUpdate, *repositories.CatalogWrite, error) {
		if cur.Status != domain.RequestStatusPending {
			return repositories.ReviewUpdate{}, nil, ErrRequestConflict
		}
		return repositories.ReviewUpdate{
			Status:          domain.RequestStatusRejected,
			ReviewedBy:      reviewerRef(reviewer),
			ReviewedAt:      now,
			RejectionReason: strings.TrimSpace(reason),
			AdminNotes:      adminNotes,
		}, nil, nil
	})
	if err != nil {
		return domain.ProductRequest{}, s.mapReviewError(err)
	}

	observability.FromContext(ctx).Info("product request rejected",
		zap.String("request_id", requestID),
	)
	return updated, nil
}

// Get returns a single request.
func (s *requestService) Get(ctx context.Context, requestID string) (domain.ProductRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return domain.ProductRequest{}, fmt.Errorf("%w: request id is required", ErrRequestInvalidInput)
	}
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.ProductRequest{}, ErrRequestNotFound
		}
		return domain.ProductRequest{}, err
	}
	return request, nil
}

// List returns a filtered page of requests, newest first.
func (s *requestService) List(ctx context.Context, filter domain.RequestFilter) (domain.RequestPage, error) {
	return s.requests.List(ctx, filter)
}

// PendingCount returns the number of requests awaiting review.
func (s *requestService) PendingCount(ctx context.Context) (int64, error) {
	return s.requests.CountPending(ctx)
}

// ListMine returns the requester's own submissions, newest first.
func (s *requestService) ListMine(ctx context.Context, requesterID string) ([]domain.ProductRequest, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, fmt.Errorf("%w: requester id is required", ErrRequestInvalidInput)
	}
	return s.requests.ListByRequester(ctx, requesterID)
}

func (s *requestService) getForReview(ctx context.Context, requestID string) (domain.ProductRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return domain.ProductRequest{}, fmt.Errorf("%w: request id is required", ErrRequestInvalidInput)
	}
	current, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return domain.ProductRequest{}, ErrRequestNotFound
		}
		return domain.ProductRequest{}, err
	}
	if current.Status != domain.RequestStatusPending {
		return domain.ProductRequest{}, ErrRequestConflict
	}
	return current, nil
}

func (s *requestService) mapReviewError(err error) error {
	switch {
	case errors.Is(err, ErrRequestConflict):
		return ErrRequestConflict
	case repositories.IsNotFound(err):
		return ErrRequestNotFound
	case repositories.IsConflict(err):
		return ErrRequestConflict
	default:
		return err
	}
}

func reviewerRef(reviewer Reviewer) string {
	if strings.TrimSpace(reviewer.ID) != "" {
		return reviewer.ID
	}
	return reviewer.Name
}
