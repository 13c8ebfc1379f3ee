package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/autexline/api/internal/domain"
	"github.com/autexline/api/internal/repositories"
)

type fakeRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return "fake repository error" }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

type fakeRequestRepo struct {
	mu       sync.Mutex
	requests map[string]domain.ProductRequest
	vehicles map[string]domain.Vehicle
	parts    map[string]domain.Part

	// beforeFinalize simulates a concurrent reviewer winning the race between
	// the service's read and the transaction.
	beforeFinalize func(r *fakeRequestRepo)

	createErr error
	getErr    error
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{
		requests: make(map[string]domain.ProductRequest),
		vehicles: make(map[string]domain.Vehicle),
		parts:    make(map[string]domain.Part),
	}
}

func (f *fakeRequestRepo) Create(_ context.Context, request domain.ProductRequest) (domain.ProductRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.ProductRequest{}, f.createErr
	}
	if _, exists := f.requests[request.ID]; exists {
		return domain.ProductRequest{}, &fakeRepoError{conflict: true}
	}
	f.requests[request.ID] = request
	return request, nil
}

func (f *fakeRequestRepo) GetByID(_ context.Context, id string) (domain.ProductRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return domain.ProductRequest{}, f.getErr
	}
	request, ok := f.requests[id]
	if !ok {
		return domain.ProductRequest{}, &fakeRepoError{notFound: true}
	}
	return request, nil
}

func (f *fakeRequestRepo) FinalizeReview(_ context.Context, id string, decide repositories.ReviewDecision) (domain.ProductRequest, error) {
	if f.beforeFinalize != nil {
		f.beforeFinalize(f)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.requests[id]
	if !ok {
		return domain.ProductRequest{}, &fakeRepoError{notFound: true}
	}
	update, write, err := decide(current)
	if err != nil {
		return domain.ProductRequest{}, err
	}

	if write != nil {
		switch {
		case write.Vehicle != nil:
			f.vehicles[write.ID] = *write.Vehicle
		case write.Part != nil:
			f.parts[write.ID] = *write.Part
		}
	}

	current.Status = update.Status
	if update.ProductData != nil {
		current.ProductData = update.ProductData
	}
	current.ReviewedBy = update.ReviewedBy
	reviewedAt := update.ReviewedAt
	current.ReviewedAt = &reviewedAt
	current.RejectionReason = update.RejectionReason
	current.AdminNotes = update.AdminNotes
	current.ApprovedProductID = update.ApprovedProductID
	current.ApprovedProductKind = update.ApprovedProductKind
	current.UpdatedAt = update.ReviewedAt
	f.requests[id] = current
	return current, nil
}

func (f *fakeRequestRepo) List(_ context.Context, filter domain.RequestFilter) (domain.RequestPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.ProductRequest
	for _, r := range f.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.RequesterID != "" && r.RequesterID != filter.RequesterID {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return domain.RequestPage{Requests: matched, Page: 1, PageCount: 1, TotalItems: int64(len(matched))}, nil
}

func (f *fakeRequestRepo) CountPending(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, r := range f.requests {
		if r.Status == domain.RequestStatusPending {
			count++
		}
	}
	return count, nil
}

func (f *fakeRequestRepo) ListByRequester(_ context.Context, requesterID string) ([]domain.ProductRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []domain.ProductRequest
	for _, r := range f.requests {
		if r.RequesterID == requesterID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	return matched, nil
}

type fakeCounterService struct {
	mu    sync.Mutex
	seq   int64
	err   error
	calls []string
	// degraded forces the returned RefNo to report a fallback allocation.
	degraded bool
}

func (f *fakeCounterService) NextRefNo(_ context.Context, key string) (RefNo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)
	if f.err != nil {
		return RefNo{}, f.err
	}
	f.seq++
	return RefNo{Value: FormatRefNo(key, f.seq), Seq: f.seq, Degraded: f.degraded}, nil
}

func newTestRequestService(t *testing.T, repo *fakeRequestRepo, counters *fakeCounterService) RequestService {
	t.Helper()
	var idSeq int
	svc, err := NewRequestService(RequestServiceDeps{
		Requests: repo,
		Counters: counters,
		Clock:    func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			idSeq++
			return fmt.Sprintf("id-%03d", idSeq)
		},
	})
	if err != nil {
		t.Fatalf("NewRequestService: %v", err)
	}
	return svc
}

func activeDealer() Requester {
	return Requester{ID: "dealer-1", Name: "Dealer One", Role: "dealer", AccountStatus: "active"}
}

func TestSubmitCreatesPendingRequest(t *testing.T) {
	repo := newFakeRequestRepo()
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	created, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:      "vehicle",
		Requester: activeDealer(),
		ProductData: map[string]any{
			"title": "toyota corolla",
			"price": "12000",
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created.Status != domain.RequestStatusPending {
		t.Errorf("status = %q, want pending", created.Status)
	}
	if created.Type != domain.RequestTypeVehicle {
		t.Errorf("type = %q, want vehicle", created.Type)
	}
	if created.RequesterID != "dealer-1" {
		t.Errorf("requesterID = %q", created.RequesterID)
	}
	if created.ID == "" || created.CreatedAt.IsZero() {
		t.Errorf("missing identity or timestamps: %+v", created)
	}
	if _, ok := repo.requests[created.ID]; !ok {
		t.Error("request not persisted")
	}
}

func TestSubmitPartKeepsOriginalNumericStrings(t *testing.T) {
	repo := newFakeRequestRepo()
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	created, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:      "part",
		Requester: activeDealer(),
		ProductData: map[string]any{
			"model": "brake pad set",
			"make":  "toyota",
			"price": "1,200 yen",
			"stock": "about 5",
		},
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	data := created.ProductData
	if got := data["priceOriginal"]; got != "1,200 yen" {
		t.Errorf("priceOriginal = %v", got)
	}
	if got := data["price"]; got != float64(1200) {
		t.Errorf("price = %v, want 1200", got)
	}
	if got := data["stock"]; got != float64(5) {
		t.Errorf("stock = %v, want 5", got)
	}
	if got := domain.PayloadString(data, "brand"); got != "toyota" {
		t.Errorf("brand = %q, want mirrored make", got)
	}
	if got := domain.PayloadString(data, "name"); got != "brake pad set" {
		t.Errorf("name = %q, want mirrored model", got)
	}
}

func TestSubmitRejectsUnknownTypeAndMissingTitle(t *testing.T) {
	svc := newTestRequestService(t, newFakeRequestRepo(), &fakeCounterService{})

	_, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:        "boat",
		Requester:   activeDealer(),
		ProductData: map[string]any{"title": "x"},
	})
	if !errors.Is(err, ErrRequestInvalidInput) {
		t.Errorf("unknown type: err = %v, want invalid input", err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequestInput{
		Type:        "vehicle",
		Requester:   activeDealer(),
		ProductData: map[string]any{"price": "100"},
	})
	if !errors.Is(err, ErrRequestInvalidInput) {
		t.Errorf("missing title: err = %v, want invalid input", err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequestInput{
		Type:        "part",
		Requester:   activeDealer(),
		ProductData: map[string]any{"name": "brake pad"},
	})
	if !errors.Is(err, ErrRequestInvalidInput) {
		t.Errorf("name without title or model: err = %v, want invalid input", err)
	}
}

func TestSubmitGatesRoleAndAccountStatus(t *testing.T) {
	svc := newTestRequestService(t, newFakeRequestRepo(), &fakeCounterService{})
	data := map[string]any{"title": "something"}

	_, err := svc.Submit(context.Background(), SubmitRequestInput{
		Type:        "vehicle",
		Requester:   Requester{ID: "u1", Role: "admin", AccountStatus: "active"},
		ProductData: data,
	})
	if !errors.Is(err, ErrSubmitterNotAllowed) {
		t.Errorf("admin submit: err = %v, want not allowed", err)
	}

	_, err = svc.Submit(context.Background(), SubmitRequestInput{
		Type:        "vehicle",
		Requester:   Requester{ID: "u2", Role: "dealer", AccountStatus: "suspended"},
		ProductData: data,
	})
	if !errors.Is(err, ErrSubmitterNotAllowed) {
		t.Errorf("suspended submit: err = %v, want not allowed", err)
	}
}

func seedPendingVehicle(repo *fakeRequestRepo, id string) {
	repo.requests[id] = domain.ProductRequest{
		ID:            id,
		Type:          domain.RequestTypeVehicle,
		Status:        domain.RequestStatusPending,
		RequesterID:   "dealer-1",
		RequesterRole: "dealer",
		ProductData: map[string]any{
			"title": "Toyota Corolla",
			"price": "12000",
		},
		CreatedAt: time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC),
	}
}

func TestApproveCreatesCatalogEntityAndAllocatesRefNo(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	counters := &fakeCounterService{}
	svc := newTestRequestService(t, repo, counters)

	result, err := svc.Approve(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "looks good")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if result.Request.Status != domain.RequestStatusApproved {
		t.Errorf("status = %q, want approved", result.Request.Status)
	}
	if result.RefNo.Value != "VEH-000001" {
		t.Errorf("refNo = %q, want VEH-000001", result.RefNo.Value)
	}
	if len(counters.calls) != 1 || counters.calls[0] != CounterKeyVehicle {
		t.Errorf("counter calls = %v", counters.calls)
	}

	vehicle, ok := repo.vehicles[result.Request.ApprovedProductID]
	if !ok {
		t.Fatalf("no vehicle stored under %q", result.Request.ApprovedProductID)
	}
	if vehicle.RefNo != "VEH-000001" {
		t.Errorf("vehicle refNo = %q", vehicle.RefNo)
	}
	if vehicle.PostedBy != "dealer-1" || vehicle.PostedByRole != "dealer" {
		t.Errorf("posted by = %q/%q", vehicle.PostedBy, vehicle.PostedByRole)
	}
	if result.Request.ApprovedProductKind != domain.CatalogKindVehicle {
		t.Errorf("kind = %q", result.Request.ApprovedProductKind)
	}
	if got := domain.PayloadString(result.Request.ProductData, "refNo"); got != "VEH-000001" {
		t.Errorf("payload refNo = %q", got)
	}
}

func TestApproveSkipsCounterWhenRefNoPresent(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	req := repo.requests["req-1"]
	req.ProductData["refNo"] = "VEH-000777"
	repo.requests["req-1"] = req
	counters := &fakeCounterService{}
	svc := newTestRequestService(t, repo, counters)

	result, err := svc.Approve(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if result.RefNo.Value != "VEH-000777" {
		t.Errorf("refNo = %q, want preserved VEH-000777", result.RefNo.Value)
	}
	if len(counters.calls) != 0 {
		t.Errorf("counter called %d times, want 0", len(counters.calls))
	}
}

func TestApproveWithDegradedRefNoStillSucceeds(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	counters := &fakeCounterService{degraded: true}
	svc := newTestRequestService(t, repo, counters)

	result, err := svc.Approve(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if !result.RefNo.Degraded {
		t.Error("expected degraded allocation to be surfaced")
	}
	if result.Request.Status != domain.RequestStatusApproved {
		t.Errorf("status = %q, want approved", result.Request.Status)
	}
}

func TestApproveConflictsWhenAlreadyReviewed(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	req := repo.requests["req-1"]
	req.Status = domain.RequestStatusRejected
	repo.requests["req-1"] = req
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	_, err := svc.Approve(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "")
	if !errors.Is(err, ErrRequestConflict) {
		t.Errorf("err = %v, want conflict", err)
	}
}

func TestApproveConflictsOnConcurrentReview(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	repo.beforeFinalize = func(r *fakeRequestRepo) {
		r.mu.Lock()
		defer r.mu.Unlock()
		req := r.requests["req-1"]
		req.Status = domain.RequestStatusApproved
		r.requests["req-1"] = req
	}
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	_, err := svc.Approve(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "")
	if !errors.Is(err, ErrRequestConflict) {
		t.Fatalf("err = %v, want conflict", err)
	}
	if len(repo.vehicles) != 0 {
		t.Errorf("catalog write leaked: %d vehicles", len(repo.vehicles))
	}
}

func TestApproveNotFound(t *testing.T) {
	svc := newTestRequestService(t, newFakeRequestRepo(), &fakeCounterService{})
	_, err := svc.Approve(context.Background(), "missing", Reviewer{ID: "admin-1"}, "")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestEditAndApproveMergesPatch(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	result, err := svc.EditAndApprove(context.Background(), "req-1", Reviewer{ID: "admin-1"},
		map[string]any{"price": "13500", "color": "silver"}, "price corrected")
	if err != nil {
		t.Fatalf("EditAndApprove: %v", err)
	}
	data := result.Request.ProductData
	if got := domain.PayloadString(data, "price"); got != "13500" {
		t.Errorf("price = %q, want patched 13500", got)
	}
	if got := domain.PayloadString(data, "color"); got != "silver" {
		t.Errorf("color = %q, want silver", got)
	}
	if got := domain.PayloadString(data, "title"); got != "Toyota Corolla" {
		t.Errorf("title = %q, want untouched original", got)
	}
	if result.Request.AdminNotes != "price corrected" {
		t.Errorf("adminNotes = %q", result.Request.AdminNotes)
	}

	vehicle := repo.vehicles[result.Request.ApprovedProductID]
	if vehicle.Price != "13500" {
		t.Errorf("vehicle price = %q, want patched value projected", vehicle.Price)
	}
}

func TestEditAndApproveRequiresPatch(t *testing.T) {
	svc := newTestRequestService(t, newFakeRequestRepo(), &fakeCounterService{})
	_, err := svc.EditAndApprove(context.Background(), "req-1", Reviewer{ID: "admin-1"}, nil, "")
	if !errors.Is(err, ErrRequestInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
}

func TestApproveInvalidEntityKeepsRequestPending(t *testing.T) {
	repo := newFakeRequestRepo()
	repo.requests["req-2"] = domain.ProductRequest{
		ID:            "req-2",
		Type:          domain.RequestTypePart,
		Status:        domain.RequestStatusPending,
		RequesterID:   "agent-1",
		RequesterRole: "agent",
		ProductData: map[string]any{
			"model": "Oil Filter",
			"price": float64(-5),
		},
		CreatedAt: time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC),
	}
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	_, err := svc.Approve(context.Background(), "req-2", Reviewer{ID: "admin-1"}, "")
	if !errors.Is(err, ErrRequestInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if got := repo.requests["req-2"].Status; got != domain.RequestStatusPending {
		t.Errorf("status = %q, want still pending", got)
	}
	if len(repo.parts) != 0 {
		t.Errorf("catalog write leaked: %d parts", len(repo.parts))
	}
}

func TestApprovePartUsesPartCounterKey(t *testing.T) {
	repo := newFakeRequestRepo()
	repo.requests["req-3"] = domain.ProductRequest{
		ID:            "req-3",
		Type:          domain.RequestTypePart,
		Status:        domain.RequestStatusPending,
		RequesterID:   "agent-1",
		RequesterRole: "agent",
		ProductData: map[string]any{
			"model": "Oil Filter",
			"price": float64(450),
			"stock": float64(12),
		},
		CreatedAt: time.Date(2024, 5, 30, 9, 0, 0, 0, time.UTC),
	}
	counters := &fakeCounterService{}
	svc := newTestRequestService(t, repo, counters)

	result, err := svc.Approve(context.Background(), "req-3", Reviewer{ID: "admin-1"}, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(counters.calls) != 1 || counters.calls[0] != CounterKeyPartRef {
		t.Errorf("counter calls = %v, want [part_ref]", counters.calls)
	}
	if result.RefNo.Value != "APT-000001" {
		t.Errorf("refNo = %q, want APT-000001", result.RefNo.Value)
	}
	part, ok := repo.parts[result.Request.ApprovedProductID]
	if !ok {
		t.Fatal("no part stored")
	}
	if part.Price != 450 || part.Stock != 12 {
		t.Errorf("part price/stock = %v/%v", part.Price, part.Stock)
	}
	if result.Request.ApprovedProductKind != domain.CatalogKindPart {
		t.Errorf("kind = %q", result.Request.ApprovedProductKind)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	_, err := svc.Reject(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "  ", "")
	if !errors.Is(err, ErrRequestInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
	if got := repo.requests["req-1"].Status; got != domain.RequestStatusPending {
		t.Errorf("status = %q, want still pending", got)
	}
}

func TestRejectRecordsReviewMetadata(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	updated, err := svc.Reject(context.Background(), "req-1", Reviewer{ID: "admin-1"}, "duplicate listing", "spoke to seller")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if updated.Status != domain.RequestStatusRejected {
		t.Errorf("status = %q, want rejected", updated.Status)
	}
	if updated.RejectionReason != "duplicate listing" {
		t.Errorf("reason = %q", updated.RejectionReason)
	}
	if updated.ReviewedBy != "admin-1" || updated.ReviewedAt == nil {
		t.Errorf("review metadata missing: %+v", updated)
	}
	if updated.AdminNotes != "spoke to seller" {
		t.Errorf("adminNotes = %q", updated.AdminNotes)
	}
	if len(repo.vehicles) != 0 {
		t.Errorf("rejection must not create catalog entities")
	}
}

func TestGetAndListMine(t *testing.T) {
	repo := newFakeRequestRepo()
	seedPendingVehicle(repo, "req-1")
	svc := newTestRequestService(t, repo, &fakeCounterService{})

	got, err := svc.Get(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "req-1" {
		t.Errorf("id = %q", got.ID)
	}

	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("Get missing: err = %v, want not found", err)
	}

	mine, err := svc.ListMine(context.Background(), "dealer-1")
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("mine = %d requests, want 1", len(mine))
	}
	if _, err := svc.ListMine(context.Background(), ""); !errors.Is(err, ErrRequestInvalidInput) {
		t.Errorf("empty requester: err = %v, want invalid input", err)
	}
}
