package services

import (
	"context"
	"time"

	"github.com/autexline/api/internal/domain"
	"github.com/autexline/api/internal/invoicing"
)

// RefNo is an allocated product reference number.
type RefNo struct {
	Value string
	Seq   int64
	// Degraded marks a fallback reference derived from the clock after a
	// counter failure. Uniqueness is only best-effort for degraded values.
	Degraded bool
}

// CounterService allocates formatted, strictly increasing reference numbers.
type CounterService interface {
	NextRefNo(ctx context.Context, key string) (RefNo, error)
}

// Requester identifies the authenticated seller submitting a request.
type Requester struct {
	ID            string
	Name          string
	Role          string
	AccountStatus string
}

// Reviewer identifies the administrator deciding a request.
type Reviewer struct {
	ID   string
	Name string
}

// SubmitRequestInput carries a new seller submission.
type SubmitRequestInput struct {
	Type        string
	Requester   Requester
	ProductData map[string]any
}

// ReviewResult reports the request state after a review decision, plus the
// reference allocation details when an entity was created.
type ReviewResult struct {
	Request domain.ProductRequest
	RefNo   RefNo
}

// RequestService owns the product request lifecycle from submission to review.
type RequestService interface {
	Submit(ctx context.Context, input SubmitRequestInput) (domain.ProductRequest, error)
	Approve(ctx context.Context, requestID string, reviewer Reviewer, adminNotes string) (ReviewResult, error)
	Reject(ctx context.Context, requestID string, reviewer Reviewer, reason, adminNotes string) (domain.ProductRequest, error)
	EditAndApprove(ctx context.Context, requestID string, reviewer Reviewer, patch map[string]any, adminNotes string) (ReviewResult, error)

	Get(ctx context.Context, requestID string) (domain.ProductRequest, error)
	List(ctx context.Context, filter domain.RequestFilter) (domain.RequestPage, error)
	PendingCount(ctx context.Context) (int64, error)
	ListMine(ctx context.Context, requesterID string) ([]domain.ProductRequest, error)
}

// IssueInvoiceInput carries a buyer purchase intent.
type IssueInvoiceInput struct {
	BuyerEmail  string
	BuyerName   string
	ProductName string
	ProductRef  string
	Amount      float64
	Currency    string
	Quantity    int64
	Note        string
}

// IssueInvoiceResult reports the outcome of an invoice issuance.
type IssueInvoiceResult struct {
	Invoice    invoicing.Invoice
	Accessible bool
	Notified   bool
	IssuedAt   time.Time
}

// InvoiceService orchestrates external invoice issuance and lookups.
type InvoiceService interface {
	IssueInvoice(ctx context.Context, input IssueInvoiceInput) (IssueInvoiceResult, error)
	GetInvoice(ctx context.Context, invoiceID string) (invoicing.Invoice, error)
	GetStatus(ctx context.Context, invoiceID string) (invoicing.Status, error)
	CheckAccessibility(ctx context.Context, invoiceID string) (bool, error)
}
