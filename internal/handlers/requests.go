package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autexline/api/internal/domain"
	"github.com/autexline/api/internal/platform/auth"
	"github.com/autexline/api/internal/platform/httpx"
	"github.com/autexline/api/internal/platform/pagination"
	"github.com/autexline/api/internal/repositories"
	"github.com/autexline/api/internal/services"
)

// RequestHandlers exposes the product request lifecycle endpoints.
type RequestHandlers struct {
	authn    *auth.Authenticator
	requests services.RequestService
}

// NewRequestHandlers constructs handlers over the request service.
func NewRequestHandlers(authn *auth.Authenticator, requests services.RequestService) *RequestHandlers {
	return &RequestHandlers{
		authn:    authn,
		requests: requests,
	}
}

// Routes wires the /requests endpoints onto the provided router.
func (h *RequestHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Group(func(seller chi.Router) {
		if h.authn != nil {
			seller.Use(h.authn.RequireAuth(domain.RoleDealer, domain.RoleAgent))
		}
		seller.Post("/", h.submit)
		seller.Get("/mine", h.listMine)
	})

	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAuth(domain.RoleAdmin))
		}
		admin.Get("/", h.list)
		admin.Get("/pending-count", h.pendingCount)
		admin.Post("/{requestID}/approve", h.approve)
		admin.Post("/{requestID}/reject", h.reject)
		admin.Post("/{requestID}/edit-approve", h.editAndApprove)
	})

	r.Group(func(authed chi.Router) {
		if h.authn != nil {
			authed.Use(h.authn.RequireAuth())
		}
		authed.Get("/{requestID}", h.get)
	})
}

type submitRequestBody struct {
	Type        string         `json:"type"`
	ProductData map[string]any `json:"product_data"`
}

func (h *RequestHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body submitRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	created, err := h.requests.Submit(ctx, services.SubmitRequestInput{
		Type: body.Type,
		Requester: services.Requester{
			ID:            identity.UID,
			Name:          identity.Name,
			Role:          identity.Role,
			AccountStatus: identity.AccountStatus,
		},
		ProductData: body.ProductData,
	})
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, requestResponse{Request: buildRequestPayload(created)})
}

func (h *RequestHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	requests, err := h.requests.ListMine(ctx, identity.UID)
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	payload := make([]requestPayload, 0, len(requests))
	for _, request := range requests {
		payload = append(payload, buildRequestPayload(request))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"requests": payload})
}

func (h *RequestHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	filter := domain.RequestFilter{
		Page:  params.Page,
		Limit: params.Limit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		filter.Status = domain.RequestStatus(strings.ToLower(raw))
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		requestType, ok := domain.ParseRequestType(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown request type filter", http.StatusBadRequest))
			return
		}
		filter.Type = requestType
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("requester_id")); raw != "" {
		filter.RequesterID = raw
	}

	page, err := h.requests.List(ctx, filter)
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	payload := make([]requestPayload, 0, len(page.Requests))
	for _, request := range page.Requests {
		payload = append(payload, buildRequestPayload(request))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"requests":    payload,
		"page":        page.Page,
		"page_count":  page.PageCount,
		"total_items": page.TotalItems,
	})
}

func (h *RequestHandlers) pendingCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count, err := h.requests.PendingCount(ctx)
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"pending_count": count})
}

func (h *RequestHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	request, err := h.requests.Get(ctx, chi.URLParam(r, "requestID"))
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	if !identity.HasRole(domain.RoleAdmin) && request.RequesterID != identity.UID {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you may only view your own requests", http.StatusForbidden))
		return
	}

	writeJSONResponse(w, http.StatusOK, requestResponse{Request: buildRequestPayload(request)})
}

type approveRequestBody struct {
	AdminNotes string `json:"admin_notes"`
}

func (h *RequestHandlers) approve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body approveRequestBody
	if err := decodeJSONBody(r, &body); err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.requests.Approve(ctx, chi.URLParam(r, "requestID"), reviewerFromIdentity(identity), body.AdminNotes)
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildReviewResponse(result))
}

type rejectRequestBody struct {
	RejectionReason string `json:"rejection_reason"`
	AdminNotes      string `json:"admin_notes"`
}

func (h *RequestHandlers) reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body rejectRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	updated, err := h.requests.Reject(ctx, chi.URLParam(r, "requestID"), reviewerFromIdentity(identity), body.RejectionReason, body.AdminNotes)
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, requestResponse{Request: buildRequestPayload(updated)})
}

type editApproveRequestBody struct {
	ProductData map[string]any `json:"product_data"`
	AdminNotes  string         `json:"admin_notes"`
}

func (h *RequestHandlers) editAndApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var body editApproveRequestBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.requests.EditAndApprove(ctx, chi.URLParam(r, "requestID"), reviewerFromIdentity(identity), body.ProductData, body.AdminNotes)
	if err != nil {
		writeRequestError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildReviewResponse(result))
}

type requestResponse struct {
	Request requestPayload `json:"request"`
}

type reviewResponse struct {
	Request     requestPayload `json:"request"`
	RefNo       string         `json:"ref_no,omitempty"`
	RefDegraded bool           `json:"ref_degraded,omitempty"`
}

type requestPayload struct {
	ID                  string         `json:"id"`
	Type                string         `json:"type"`
	Status              string         `json:"status"`
	RequesterID         string         `json:"requester_id"`
	RequesterName       string         `json:"requester_name,omitempty"`
	RequesterRole       string         `json:"requester_role,omitempty"`
	ProductData         map[string]any `json:"product_data"`
	ReviewedBy          string         `json:"reviewed_by,omitempty"`
	ReviewedAt          string         `json:"reviewed_at,omitempty"`
	RejectionReason     string         `json:"rejection_reason,omitempty"`
	AdminNotes          string         `json:"admin_notes,omitempty"`
	ApprovedProductID   string         `json:"approved_product_id,omitempty"`
	ApprovedProductKind string         `json:"approved_product_kind,omitempty"`
	CreatedAt           string         `json:"created_at,omitempty"`
	UpdatedAt           string         `json:"updated_at,omitempty"`
}

func buildRequestPayload(request domain.ProductRequest) requestPayload {
	return requestPayload{
		ID:                  request.ID,
		Type:                string(request.Type),
		Status:              string(request.Status),
		RequesterID:         request.RequesterID,
		RequesterName:       request.RequesterName,
		RequesterRole:       request.RequesterRole,
		ProductData:         request.ProductData,
		ReviewedBy:          request.ReviewedBy,
		ReviewedAt:          formatTimePtr(request.ReviewedAt),
		RejectionReason:     request.RejectionReason,
		AdminNotes:          request.AdminNotes,
		ApprovedProductID:   request.ApprovedProductID,
		ApprovedProductKind: string(request.ApprovedProductKind),
		CreatedAt:           formatTime(request.CreatedAt),
		UpdatedAt:           formatTime(request.UpdatedAt),
	}
}

func buildReviewResponse(result services.ReviewResult) reviewResponse {
	return reviewResponse{
		Request:     buildRequestPayload(result.Request),
		RefNo:       result.RefNo.Value,
		RefDegraded: result.RefNo.Degraded,
	}
}

func reviewerFromIdentity(identity *auth.Identity) services.Reviewer {
	return services.Reviewer{ID: identity.UID, Name: identity.Name}
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeRequestError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrRequestInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrSubmitterNotAllowed):
		httpx.WriteError(ctx, w, httpx.NewError("submitter_not_allowed", err.Error(), http.StatusForbidden))
		return
	case errors.Is(err, services.ErrRequestNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("request_not_found", "product request not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrRequestConflict):
		httpx.WriteError(ctx, w, httpx.NewError("request_conflict", "product request was already reviewed", http.StatusConflict))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			httpx.WriteError(ctx, w, httpx.NewError("request_not_found", "product request not found", http.StatusNotFound))
			return
		case repoErr.IsConflict():
			httpx.WriteError(ctx, w, httpx.NewError("request_conflict", "product request was already reviewed", http.StatusConflict))
			return
		case repoErr.IsUnavailable():
			httpx.WriteError(ctx, w, httpx.NewError("request_service_unavailable", "request repository unavailable", http.StatusServiceUnavailable))
			return
		}
	}

	httpx.WriteError(ctx, w, httpx.NewError("request_error", err.Error(), http.StatusInternalServerError))
}
