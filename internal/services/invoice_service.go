package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autexline/api/internal/invoicing"
	"github.com/autexline/api/internal/notify"
	"github.com/autexline/api/internal/platform/observability"
)

// ErrInvoiceInvalidInput indicates the issuance input is unusable.
var ErrInvoiceInvalidInput = errors.New("invoice: invalid input")

const (
	defaultInvoiceCurrency = "USD"
	defaultSendWait        = 3 * time.Second
)

// InvoiceServiceDeps bundles collaborators for the invoice issuance pipeline.
type InvoiceServiceDeps struct {
	Provider invoicing.Provider
	Notifier notify.Notifier
	// AdminEmail receives an issuance record mail. Empty disables the admin copy.
	AdminEmail string
	// SendWait is the pause between sending the invoice and re-fetching its
	// state, giving the provider time to settle the status transition.
	SendWait time.Duration
	Clock    func() time.Time
	// Wait overrides the pause implementation. Tests inject an immediate return.
	Wait func(ctx context.Context, d time.Duration) error
}

type invoiceService struct {
	provider   invoicing.Provider
	notifier   notify.Notifier
	adminEmail string
	sendWait   time.Duration
	clock      func() time.Time
	wait       func(ctx context.Context, d time.Duration) error
}

// NewInvoiceService constructs the invoice issuance service.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Provider == nil {
		return nil, errors.New("invoice service: provider is required")
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Noop()
	}
	sendWait := deps.SendWait
	if sendWait <= 0 {
		sendWait = defaultSendWait
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	wait := deps.Wait
	if wait == nil {
		wait = func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		}
	}

	return &invoiceService{
		provider:   deps.Provider,
		notifier:   notifier,
		adminEmail: strings.TrimSpace(deps.AdminEmail),
		sendWait:   sendWait,
		clock:      func() time.Time { return clock().UTC() },
		wait:       wait,
	}, nil
}

// IssueInvoice creates, sends, and verifies an invoice for a buyer purchase,
// then notifies the buyer and the back office once the invoice is reachable.
func (s *invoiceService) IssueInvoice(ctx context.Context, input IssueInvoiceInput) (IssueInvoiceResult, error) {
	input, err := normalizeIssueInput(input)
	if err != nil {
		return IssueInvoiceResult{}, err
	}

	draft := invoicing.Draft{
		BuyerEmail: input.BuyerEmail,
		BuyerName:  input.BuyerName,
		Reference:  input.ProductRef,
		Note:       input.Note,
		Items: []invoicing.LineItem{{
			Name:      input.ProductName,
			Quantity:  input.Quantity,
			UnitPrice: input.Amount,
			Currency:  input.Currency,
		}},
	}

	created, err := s.provider.CreateInvoice(ctx, draft)
	if err != nil {
		return IssueInvoiceResult{}, fmt.Errorf("create invoice: %w", err)
	}
	if created.ID == "" {
		return IssueInvoiceResult{}, errors.New("create invoice: provider returned no invoice id")
	}

	logger := observability.FromContext(ctx).With(
		zap.String("invoice_id", created.ID),
		zap.String("invoice_number", created.Number),
	)

	if err := s.provider.SendInvoice(ctx, created.ID); err != nil {
		return IssueInvoiceResult{}, fmt.Errorf("send invoice %s: %w", created.ID, err)
	}

	if err := s.wait(ctx, s.sendWait); err != nil {
		return IssueInvoiceResult{}, err
	}

	invoice, err := s.provider.GetInvoice(ctx, created.ID)
	if err != nil {
		// The invoice exists and was sent; surface it without the settled
		// state rather than failing the whole issuance.
		logger.Warn("invoice state re-fetch failed", zap.Error(err))
		invoice = created
	}

	result := IssueInvoiceResult{
		Invoice:    invoice,
		Accessible: invoice.Accessible(),
		IssuedAt:   s.clock(),
	}
	if !result.Accessible {
		logger.Warn("invoice not accessible after send", zap.String("status", string(invoice.Status)))
		return result, nil
	}

	result.Notified = s.notifyIssued(ctx, logger, input, invoice)
	return result, nil
}

// notifyIssued sends the buyer and admin mails. Delivery failures are logged,
// never propagated.
func (s *invoiceService) notifyIssued(ctx context.Context, logger *zap.Logger, input IssueInvoiceInput, invoice invoicing.Invoice) bool {
	data := newInvoiceEmailData(input, invoice)

	notified := false
	subject, body, err := renderBuyerInvoiceEmail(data)
	if err != nil {
		logger.Error("buyer invoice email render failed", zap.Error(err))
	} else if err := s.notifier.Send(ctx, notify.Message{To: input.BuyerEmail, Subject: subject, HTMLBody: body}); err != nil {
		logger.Warn("buyer invoice email delivery failed", zap.Error(err))
	} else {
		notified = true
	}

	if s.adminEmail == "" {
		return notified
	}
	subject, body, err = renderAdminInvoiceEmail(data)
	if err != nil {
		logger.Error("admin invoice email render failed", zap.Error(err))
		return notified
	}
	if err := s.notifier.Send(ctx, notify.Message{To: s.adminEmail, Subject: subject, HTMLBody: body}); err != nil {
		logger.Warn("admin invoice email delivery failed", zap.Error(err))
	}
	return notified
}

// GetInvoice returns the provider's current view of an invoice.
func (s *invoiceService) GetInvoice(ctx context.Context, invoiceID string) (invoicing.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return invoicing.Invoice{}, fmt.Errorf("%w: invoice id is required", ErrInvoiceInvalidInput)
	}
	return s.provider.GetInvoice(ctx, invoiceID)
}

// GetStatus returns the invoice's current lifecycle status.
func (s *invoiceService) GetStatus(ctx context.Context, invoiceID string) (invoicing.Status, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return "", err
	}
	return invoice.Status, nil
}

// CheckAccessibility reports whether the buyer can currently open the invoice.
func (s *invoiceService) CheckAccessibility(ctx context.Context, invoiceID string) (bool, error) {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return false, err
	}
	return invoice.Accessible(), nil
}

func normalizeIssueInput(input IssueInvoiceInput) (IssueInvoiceInput, error) {
	input.BuyerEmail = strings.TrimSpace(input.BuyerEmail)
	input.BuyerName = strings.TrimSpace(input.BuyerName)
	input.ProductName = strings.TrimSpace(input.ProductName)
	input.ProductRef = strings.TrimSpace(input.ProductRef)
	input.Currency = strings.ToUpper(strings.TrimSpace(input.Currency))

	if input.BuyerEmail == "" || !strings.Contains(input.BuyerEmail, "@") {
		return input, fmt.Errorf("%w: a valid buyer email is required", ErrInvoiceInvalidInput)
	}
	if input.ProductName == "" {
		return input, fmt.Errorf("%w: product name is required", ErrInvoiceInvalidInput)
	}
	if input.Amount <= 0 {
		return input, fmt.Errorf("%w: amount must be positive", ErrInvoiceInvalidInput)
	}
	if input.Quantity < 0 {
		return input, fmt.Errorf("%w: quantity must not be negative", ErrInvoiceInvalidInput)
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if input.Currency == "" {
		input.Currency = defaultInvoiceCurrency
	}
	return input, nil
}
