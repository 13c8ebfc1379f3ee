package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/autexline/api/internal/domain"
	"github.com/autexline/api/internal/services"
)

type fakeRequestService struct {
	submitted    []services.SubmitRequestInput
	submitOut    domain.ProductRequest
	submitErr    error
	approveOut   services.ReviewResult
	approveErr   error
	rejectOut    domain.ProductRequest
	rejectErr    error
	editOut      services.ReviewResult
	editErr      error
	getOut       domain.ProductRequest
	getErr       error
	listOut      domain.RequestPage
	listFilter   domain.RequestFilter
	pending      int64
	mineOut      []domain.ProductRequest
	lastReqID    string
	lastPatch    map[string]any
	lastNotes    string
	lastReason   string
	lastReviewer services.Reviewer
}

func (f *fakeRequestService) Submit(_ context.Context, input services.SubmitRequestInput) (domain.ProductRequest, error) {
	f.submitted = append(f.submitted, input)
	if f.submitErr != nil {
		return domain.ProductRequest{}, f.submitErr
	}
	return f.submitOut, nil
}

func (f *fakeRequestService) Approve(_ context.Context, requestID string, reviewer services.Reviewer, adminNotes string) (services.ReviewResult, error) {
	f.lastReqID, f.lastReviewer, f.lastNotes = requestID, reviewer, adminNotes
	return f.approveOut, f.approveErr
}

func (f *fakeRequestService) Reject(_ context.Context, requestID string, reviewer services.Reviewer, reason, adminNotes string) (domain.ProductRequest, error) {
	f.lastReqID, f.lastReviewer, f.lastReason, f.lastNotes = requestID, reviewer, reason, adminNotes
	return f.rejectOut, f.rejectErr
}

func (f *fakeRequestService) EditAndApprove(_ context.Context, requestID string, reviewer services.Reviewer, patch map[string]any, adminNotes string) (services.ReviewResult, error) {
	f.lastReqID, f.lastReviewer, f.lastPatch, f.lastNotes = requestID, reviewer, patch, adminNotes
	return f.editOut, f.editErr
}

func (f *fakeRequestService) Get(_ context.Context, requestID string) (domain.ProductRequest, error) {
	f.lastReqID = requestID
	return f.getOut, f.getErr
}

func (f *fakeRequestService) List(_ context.Context, filter domain.RequestFilter) (domain.RequestPage, error) {
	f.listFilter = filter
	return f.listOut, nil
}

func (f *fakeRequestService) PendingCount(_ context.Context) (int64, error) {
	return f.pending, nil
}

func (f *fakeRequestService) ListMine(_ context.Context, requesterID string) ([]domain.ProductRequest, error) {
	return f.mineOut, nil
}

func newRequestRouter(svc services.RequestService) chi.Router {
	h := NewRequestHandlers(newTestAuthenticator(), svc)
	return NewRouter(WithRequestRoutes(h.Routes))
}

func pendingRequest() domain.ProductRequest {
	return domain.ProductRequest{
		ID:            "req-1",
		Type:          domain.RequestTypeVehicle,
		Status:        domain.RequestStatusPending,
		RequesterID:   "dealer-1",
		RequesterName: "Dealer One",
		RequesterRole: "dealer",
		ProductData:   map[string]any{"title": "Toyota Corolla"},
		CreatedAt:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSubmitEndpoint(t *testing.T) {
	svc := &fakeRequestService{submitOut: pendingRequest()}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/", "dealer-token",
		`{"type":"vehicle","product_data":{"title":"Toyota Corolla"}}`))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("submit calls = %d", len(svc.submitted))
	}
	input := svc.submitted[0]
	if input.Requester.ID != "dealer-1" || input.Requester.Role != "dealer" {
		t.Errorf("requester = %+v", input.Requester)
	}
	var resp struct {
		Request struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"request"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Request.ID != "req-1" || resp.Request.Status != "pending" {
		t.Errorf("response = %+v", resp)
	}
}

func TestSubmitRequiresSellerRole(t *testing.T) {
	svc := &fakeRequestService{}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/", "admin-token",
		`{"type":"vehicle","product_data":{"title":"x"}}`))
	if rec.Code != http.StatusForbidden {
		t.Errorf("admin submit status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/", "",
		`{"type":"vehicle","product_data":{"title":"x"}}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous submit status = %d, want 401", rec.Code)
	}
	if len(svc.submitted) != 0 {
		t.Errorf("service reached despite auth failure")
	}
}

func TestListEndpointAdminOnly(t *testing.T) {
	svc := &fakeRequestService{listOut: domain.RequestPage{
		Requests:   []domain.ProductRequest{pendingRequest()},
		Page:       2,
		PageCount:  5,
		TotalItems: 42,
	}}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/?page=2&limit=10&status=pending&type=vehicle", "admin-token", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.listFilter.Page != 2 || svc.listFilter.Limit != 10 {
		t.Errorf("filter paging = %+v", svc.listFilter)
	}
	if svc.listFilter.Status != domain.RequestStatusPending || svc.listFilter.Type != domain.RequestTypeVehicle {
		t.Errorf("filter = %+v", svc.listFilter)
	}

	var resp struct {
		TotalItems int64 `json:"total_items"`
		PageCount  int   `json:"page_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.TotalItems != 42 || resp.PageCount != 5 {
		t.Errorf("response = %+v", resp)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/", "dealer-token", ""))
	if rec.Code != http.StatusForbidden {
		t.Errorf("dealer list status = %d, want 403", rec.Code)
	}
}

func TestPendingCountEndpoint(t *testing.T) {
	svc := &fakeRequestService{pending: 7}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/pending-count", "admin-token", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		PendingCount int64 `json:"pending_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.PendingCount != 7 {
		t.Errorf("pending_count = %d", resp.PendingCount)
	}
}

func TestGetEndpointOwnerAccess(t *testing.T) {
	svc := &fakeRequestService{getOut: pendingRequest()}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/req-1", "dealer-token", ""))
	if rec.Code != http.StatusOK {
		t.Errorf("owner get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/req-1", "admin-token", ""))
	if rec.Code != http.StatusOK {
		t.Errorf("admin get status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/req-1", "other-token", ""))
	if rec.Code != http.StatusForbidden {
		t.Errorf("other seller get status = %d, want 403", rec.Code)
	}
}

func TestGetEndpointNotFound(t *testing.T) {
	svc := &fakeRequestService{getErr: services.ErrRequestNotFound}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/missing", "admin-token", ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestApproveEndpoint(t *testing.T) {
	approved := pendingRequest()
	approved.Status = domain.RequestStatusApproved
	approved.ApprovedProductID = "veh-9"
	svc := &fakeRequestService{approveOut: services.ReviewResult{
		Request: approved,
		RefNo:   services.RefNo{Value: "VEH-000001", Seq: 1},
	}}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/req-1/approve", "admin-token",
		`{"admin_notes":"ok"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastReqID != "req-1" || svc.lastNotes != "ok" {
		t.Errorf("call = %q/%q", svc.lastReqID, svc.lastNotes)
	}
	if svc.lastReviewer.ID != "admin-1" {
		t.Errorf("reviewer = %+v", svc.lastReviewer)
	}
	var resp struct {
		RefNo string `json:"ref_no"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.RefNo != "VEH-000001" {
		t.Errorf("ref_no = %q", resp.RefNo)
	}
}

func TestApproveEndpointAcceptsEmptyBody(t *testing.T) {
	svc := &fakeRequestService{approveOut: services.ReviewResult{Request: pendingRequest()}}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/req-1/approve", "admin-token", ""))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 without body", rec.Code)
	}
}

func TestApproveEndpointConflict(t *testing.T) {
	svc := &fakeRequestService{approveErr: services.ErrRequestConflict}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/req-1/approve", "admin-token", ""))
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRejectEndpoint(t *testing.T) {
	rejected := pendingRequest()
	rejected.Status = domain.RequestStatusRejected
	svc := &fakeRequestService{rejectOut: rejected}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/req-1/reject", "admin-token",
		`{"rejection_reason":"duplicate","admin_notes":"spoke to seller"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastReason != "duplicate" || svc.lastNotes != "spoke to seller" {
		t.Errorf("call = %q/%q", svc.lastReason, svc.lastNotes)
	}
}

func TestEditApproveEndpoint(t *testing.T) {
	svc := &fakeRequestService{editOut: services.ReviewResult{Request: pendingRequest()}}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodPost, "/api/v1/requests/req-1/edit-approve", "admin-token",
		`{"product_data":{"price":"13500"},"admin_notes":"fixed price"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.lastPatch["price"] != "13500" {
		t.Errorf("patch = %v", svc.lastPatch)
	}
}

func TestListMineEndpoint(t *testing.T) {
	svc := &fakeRequestService{mineOut: []domain.ProductRequest{pendingRequest()}}
	router := newRequestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, authedRequest(http.MethodGet, "/api/v1/requests/mine", "dealer-token", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Requests []struct {
			ID string `json:"id"`
		} `json:"requests"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Requests) != 1 || resp.Requests[0].ID != "req-1" {
		t.Errorf("response = %+v", resp)
	}
}
