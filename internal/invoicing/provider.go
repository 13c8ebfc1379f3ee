package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status enumerates the normalised invoice states shared across providers.
type Status string

const (
	// StatusDraft indicates the invoice was created but not yet sent.
	StatusDraft Status = "DRAFT"
	// StatusSent indicates the invoice was delivered to the buyer.
	StatusSent Status = "SENT"
	// StatusPaid indicates the invoice is fully paid.
	StatusPaid Status = "PAID"
	// StatusPartiallyPaid indicates a partial payment was recorded.
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	// StatusCancelled indicates the invoice was cancelled by the seller.
	StatusCancelled Status = "CANCELLED"
)

// Accessible reports whether the buyer can open and pay the invoice. Only
// delivered invoices (sent or carrying payments) are reachable through the
// provider's payer surface.
func Accessible(status Status) bool {
	switch Status(strings.ToUpper(strings.TrimSpace(string(status)))) {
	case StatusSent, StatusPaid, StatusPartiallyPaid:
		return true
	default:
		return false
	}
}

// ErrBusinessEmailMissing indicates the merchant account is not configured and
// no invoice can be issued.
var ErrBusinessEmailMissing = errors.New("invoicing: business email is not configured")

// ProviderError carries the provider diagnostics for an upstream rejection.
type ProviderError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Raw        string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("invoicing: %s failed with status %d (%s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("invoicing: %s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

// LineItem describes a single invoiced position.
type LineItem struct {
	Name      string
	Quantity  int64
	UnitPrice float64
	Currency  string
}

// Draft captures the payload required to create an invoice.
type Draft struct {
	BuyerEmail string
	BuyerName  string
	Reference  string
	Note       string
	Items      []LineItem
}

// Invoice represents the provider's view of an issued invoice.
type Invoice struct {
	ID       string
	Number   string
	Status   Status
	ViewURL  string
	Total    float64
	Currency string
}

// Accessible reports whether the buyer can currently open the invoice.
func (i Invoice) Accessible() bool {
	return Accessible(i.Status)
}

// Provider defines the contract for external invoicing adapters.
type Provider interface {
	CreateInvoice(ctx context.Context, draft Draft) (Invoice, error)
	SendInvoice(ctx context.Context, invoiceID string) error
	GetInvoice(ctx context.Context, invoiceID string) (Invoice, error)
}
