package domain

import (
	"strings"
	"time"
)

// RequestType enumerates the product kinds a seller may submit for review.
type RequestType string

const (
	// RequestTypeVehicle identifies a vehicle listing request.
	RequestTypeVehicle RequestType = "vehicle"
	// RequestTypePart identifies a spare-part listing request.
	RequestTypePart RequestType = "part"
)

// ParseRequestType normalises and validates a request type value.
func ParseRequestType(value string) (RequestType, bool) {
	switch RequestType(strings.ToLower(strings.TrimSpace(value))) {
	case RequestTypeVehicle:
		return RequestTypeVehicle, true
	case RequestTypePart:
		return RequestTypePart, true
	default:
		return "", false
	}
}

// RequestStatus describes the review lifecycle of a product request.
type RequestStatus string

const (
	// RequestStatusPending indicates the request awaits an administrator decision.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusApproved indicates the request produced a catalog entity.
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusRejected indicates the request was declined.
	RequestStatusRejected RequestStatus = "rejected"
	// RequestStatusEdited marks a request whose payload was amended by an
	// administrator during approval. The edit is recorded as part of the same
	// atomic pending to approved transition.
	RequestStatusEdited RequestStatus = "edited"
)

// Terminal reports whether no further review transition is permitted.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// CatalogKind identifies which catalog collection an approved entity lives in.
type CatalogKind string

const (
	// CatalogKindVehicle marks entities in the vehicles collection.
	CatalogKindVehicle CatalogKind = "vehicle"
	// CatalogKindPart marks entities in the parts collection.
	CatalogKindPart CatalogKind = "part"
)

// Seller and administrator roles recognised by the review pipeline.
const (
	RoleDealer = "dealer"
	RoleAgent  = "agent"
	RoleAdmin  = "admin"
)

// IsSellerRole reports whether the role may submit listing requests.
func IsSellerRole(role string) bool {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleDealer, RoleAgent:
		return true
	default:
		return false
	}
}

// AccountStatusActive is the canonical account status that allows a seller to
// submit requests. The legacy system accepted both "approved" and "active"
// interchangeably; only "active" is honoured here.
const AccountStatusActive = "active"

// ProductRequest is one submitted listing awaiting (or past) review.
type ProductRequest struct {
	ID            string
	Type          RequestType
	Status        RequestStatus
	RequesterID   string
	RequesterName string
	RequesterRole string

	// ProductData holds the seller-submitted payload after ingress
	// normalisation. Values are strings, []string, or float64.
	ProductData map[string]any

	// Review metadata, populated only when status leaves pending.
	ReviewedBy      string
	ReviewedAt      *time.Time
	RejectionReason string
	AdminNotes      string

	// Back-reference to the catalog entity created on approval.
	ApprovedProductID   string
	ApprovedProductKind CatalogKind

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reviewed reports whether review metadata is present.
func (r ProductRequest) Reviewed() bool {
	return r.ReviewedBy != "" && r.ReviewedAt != nil
}

// RequestFilter narrows product request listings.
type RequestFilter struct {
	Status      RequestStatus
	Type        RequestType
	RequesterID string
	Page        int
	Limit       int
}

// RequestPage is one page of product requests plus the total match count.
type RequestPage struct {
	Requests   []ProductRequest
	Page       int
	PageCount  int
	TotalItems int64
}
