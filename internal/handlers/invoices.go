package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autexline/api/internal/invoicing"
	"github.com/autexline/api/internal/platform/auth"
	"github.com/autexline/api/internal/platform/httpx"
	"github.com/autexline/api/internal/services"
)

// InvoiceHandlers exposes the external invoice issuance endpoints.
type InvoiceHandlers struct {
	authn    *auth.Authenticator
	invoices services.InvoiceService
}

// NewInvoiceHandlers constructs handlers over the invoice service.
func NewInvoiceHandlers(authn *auth.Authenticator, invoices services.InvoiceService) *InvoiceHandlers {
	return &InvoiceHandlers{
		authn:    authn,
		invoices: invoices,
	}
}

// Routes wires the /invoices endpoints onto the provided router.
func (h *InvoiceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/", h.issue)
	r.Get("/{invoiceID}", h.get)
	r.Get("/{invoiceID}/status", h.status)
	r.Get("/{invoiceID}/accessibility", h.accessibility)
}

type issueInvoiceBody struct {
	BuyerEmail  string  `json:"buyer_email"`
	BuyerName   string  `json:"buyer_name"`
	ProductName string  `json:"product_name"`
	ProductRef  string  `json:"product_ref"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Quantity    int64   `json:"quantity"`
	Note        string  `json:"note"`
}

func (h *InvoiceHandlers) issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body issueInvoiceBody
	if err := decodeJSONBody(r, &body); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	result, err := h.invoices.IssueInvoice(ctx, services.IssueInvoiceInput{
		BuyerEmail:  body.BuyerEmail,
		BuyerName:   body.BuyerName,
		ProductName: body.ProductName,
		ProductRef:  body.ProductRef,
		Amount:      body.Amount,
		Currency:    body.Currency,
		Quantity:    body.Quantity,
		Note:        body.Note,
	})
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, issueInvoiceResponse{
		Invoice:    buildInvoicePayload(result.Invoice),
		Accessible: result.Accessible,
		Notified:   result.Notified,
		IssuedAt:   formatTime(result.IssuedAt),
	})
}

func (h *InvoiceHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoice, err := h.invoices.GetInvoice(ctx, chi.URLParam(r, "invoiceID"))
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"invoice": buildInvoicePayload(invoice)})
}

func (h *InvoiceHandlers) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID := chi.URLParam(r, "invoiceID")
	status, err := h.invoices.GetStatus(ctx, invoiceID)
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"invoice_id": invoiceID,
		"status":     string(status),
		"accessible": invoicing.Accessible(status),
	})
}

func (h *InvoiceHandlers) accessibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	invoiceID := chi.URLParam(r, "invoiceID")
	accessible, err := h.invoices.CheckAccessibility(ctx, invoiceID)
	if err != nil {
		writeInvoiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"invoice_id": invoiceID,
		"accessible": accessible,
	})
}

type issueInvoiceResponse struct {
	Invoice    invoicePayload `json:"invoice"`
	Accessible bool           `json:"accessible"`
	Notified   bool           `json:"notified"`
	IssuedAt   string         `json:"issued_at,omitempty"`
}

type invoicePayload struct {
	ID       string  `json:"id"`
	Number   string  `json:"number,omitempty"`
	Status   string  `json:"status"`
	ViewURL  string  `json:"view_url,omitempty"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency,omitempty"`
}

func buildInvoicePayload(invoice invoicing.Invoice) invoicePayload {
	return invoicePayload{
		ID:       invoice.ID,
		Number:   invoice.Number,
		Status:   string(invoice.Status),
		ViewURL:  invoice.ViewURL,
		Total:    invoice.Total,
		Currency: invoice.Currency,
	}
}

func writeInvoiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvoiceInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, invoicing.ErrBusinessEmailMissing):
		httpx.WriteError(ctx, w, httpx.NewError("invoicing_not_configured", "invoicing business account is not configured", http.StatusServiceUnavailable))
		return
	}

	var providerErr *invoicing.ProviderError
	if errors.As(err, &providerErr) {
		if providerErr.StatusCode == http.StatusNotFound {
			httpx.WriteError(ctx, w, httpx.NewError("invoice_not_found", "invoice not found", http.StatusNotFound))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("invoicing_upstream_error", providerErr.Error(), http.StatusBadGateway))
		return
	}

	httpx.WriteError(ctx, w, httpx.NewError("invoice_error", err.Error(), http.StatusInternalServerError))
}
