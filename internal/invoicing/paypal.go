package invoicing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/autexline/api/internal/platform/config"
)

const (
	paypalSandboxBaseURL = "https://api-m.sandbox.paypal.com"
	paypalLiveBaseURL    = "https://api-m.paypal.com"

	// Tokens are refreshed this long before their reported expiry.
	tokenExpiryMargin = 60 * time.Second

	defaultRetryMax = 3
)

// PayPalProvider implements Provider against the PayPal Invoicing v2 REST API.
type PayPalProvider struct {
	httpClient    *http.Client
	baseURL       string
	clientID      string
	secret        string
	businessEmail string
	now           func() time.Time

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// PayPalOption customises provider construction.
type PayPalOption func(*PayPalProvider)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(baseURL string) PayPalOption {
	return func(p *PayPalProvider) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			p.baseURL = trimmed
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) PayPalOption {
	return func(p *PayPalProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithClock injects a custom clock (used in tests).
func WithClock(clock func() time.Time) PayPalOption {
	return func(p *PayPalProvider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewPayPalProvider constructs a PayPal invoicing adapter from configuration.
func NewPayPalProvider(cfg config.PayPalConfig, opts ...PayPalOption) (*PayPalProvider, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("invoicing: paypal client id and secret are required")
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = defaultRetryMax
	retry.Logger = nil
	client := retry.StandardClient()
	if cfg.HTTPTimeout > 0 {
		client.Timeout = cfg.HTTPTimeout
	}

	baseURL := paypalLiveBaseURL
	if cfg.Sandbox() {
		baseURL = paypalSandboxBaseURL
	}

	p := &PayPalProvider{
		httpClient:    client,
		baseURL:       baseURL,
		clientID:      cfg.ClientID,
		secret:        cfg.Secret,
		businessEmail: strings.TrimSpace(cfg.BusinessEmail),
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalInvoice struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Detail struct {
		InvoiceNumber string `json:"invoice_number"`
		CurrencyCode  string `json:"currency_code"`
	} `json:"detail"`
	Amount paypalMoney `json:"amount"`
	Links  []struct {
		Rel    string `json:"rel"`
		Href   string `json:"href"`
		Method string `json:"method"`
	} `json:"links"`
	Metadata struct {
		RecipientViewURL string `json:"recipient_view_url"`
	} `json:"metadata"`
}

func (inv paypalInvoice) toInvoice() Invoice {
	out := Invoice{
		ID:       inv.ID,
		Number:   inv.Detail.InvoiceNumber,
		Status:   Status(strings.ToUpper(inv.Status)),
		ViewURL:  inv.Metadata.RecipientViewURL,
		Currency: inv.Detail.CurrencyCode,
	}
	if out.Currency == "" {
		out.Currency = inv.Amount.CurrencyCode
	}
	if inv.Amount.Value != "" {
		if total, err := strconv.ParseFloat(inv.Amount.Value, 64); err == nil {
			out.Total = total
		}
	}
	if out.ViewURL == "" {
		for _, link := range inv.Links {
			if strings.EqualFold(link.Rel, "payer-view") {
				out.ViewURL = link.Href
				break
			}
		}
	}
	return out
}

// CreateInvoice creates a draft invoice and re-fetches it for the assigned
// number and view link.
func (p *PayPalProvider) CreateInvoice(ctx context.Context, draft Draft) (Invoice, error) {
	if p.businessEmail == "" {
		return Invoice{}, ErrBusinessEmailMissing
	}
	if strings.TrimSpace(draft.BuyerEmail) == "" {
		return Invoice{}, errors.New("invoicing: buyer email is required")
	}
	if len(draft.Items) == 0 {
		return Invoice{}, errors.New("invoicing: at least one line item is required")
	}

	items := make([]map[string]any, 0, len(draft.Items))
	currency := ""
	for _, item := range draft.Items {
		if currency == "" {
			currency = item.Currency
		}
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		items = append(items, map[string]any{
			"name":     item.Name,
			"quantity": strconv.FormatInt(quantity, 10),
			"unit_amount": paypalMoney{
				CurrencyCode: item.Currency,
				Value:        strconv.FormatFloat(item.UnitPrice, 'f', 2, 64),
			},
		})
	}
	if currency == "" {
		currency = "USD"
	}

	body := map[string]any{
		"detail": map[string]any{
			"currency_code": currency,
			"reference":     draft.Reference,
			"note":          draft.Note,
		},
		"invoicer": map[string]any{
			"email_address": p.businessEmail,
		},
		"primary_recipients": []map[string]any{
			{
				"billing_info": map[string]any{
					"email_address": draft.BuyerEmail,
					"name": map[string]any{
						"given_name": draft.BuyerName,
					},
				},
			},
		},
		"items": items,
	}

	var created struct {
		ID   string `json:"id"`
		Href string `json:"href"`
	}
	if err := p.doJSON(ctx, http.MethodPost, "/v2/invoicing/invoices", body, &created, "create invoice"); err != nil {
		return Invoice{}, err
	}

	invoiceID := created.ID
	if invoiceID == "" && created.Href != "" {
		parts := strings.Split(strings.TrimRight(created.Href, "/"), "/")
		invoiceID = parts[len(parts)-1]
	}
	if invoiceID == "" {
		return Invoice{}, &ProviderError{Op: "create invoice", Message: "response carried no invoice id"}
	}

	return p.GetInvoice(ctx, invoiceID)
}

// SendInvoice delivers the invoice to the buyer.
func (p *PayPalProvider) SendInvoice(ctx context.Context, invoiceID string) error {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return errors.New("invoicing: invoice id is required")
	}
	body := map[string]any{"send_to_invoicer": false}
	path := fmt.Sprintf("/v2/invoicing/invoices/%s/send", url.PathEscape(invoiceID))
	return p.doJSON(ctx, http.MethodPost, path, body, nil, "send invoice")
}

// GetInvoice fetches the current provider state of the invoice.
func (p *PayPalProvider) GetInvoice(ctx context.Context, invoiceID string) (Invoice, error) {
	invoiceID = strings.TrimSpace(invoiceID)
	if invoiceID == "" {
		return Invoice{}, errors.New("invoicing: invoice id is required")
	}

	var fetched paypalInvoice
	path := fmt.Sprintf("/v2/invoicing/invoices/%s", url.PathEscape(invoiceID))
	if err := p.doJSON(ctx, http.MethodGet, path, nil, &fetched, "get invoice"); err != nil {
		return Invoice{}, err
	}
	if fetched.ID == "" {
		fetched.ID = invoiceID
	}
	return fetched.toInvoice(), nil
}

func (p *PayPalProvider) doJSON(ctx context.Context, method, path string, body, out any, op string) error {
	token, err := p.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("invoicing: encode %s payload: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("invoicing: build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoicing: %s request: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("invoicing: read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providerErrorFromResponse(op, resp.StatusCode, raw)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("invoicing: decode %s response: %w", op, err)
		}
	}
	return nil
}

func (p *PayPalProvider) accessToken(ctx context.Context) (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()

	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := strings.NewReader("grant_type=client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", fmt.Errorf("invoicing: build token request: %w", err)
	}
	req.SetBasicAuth(p.clientID, p.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoicing: token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("invoicing: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", providerErrorFromResponse("token", resp.StatusCode, raw)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("invoicing: decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", &ProviderError{Op: "token", StatusCode: resp.StatusCode, Message: "response carried no access token"}
	}

	p.token = token.AccessToken
	p.tokenExpiry = p.now().Add(time.Duration(token.ExpiresIn)*time.Second - tokenExpiryMargin)
	return p.token, nil
}

func providerErrorFromResponse(op string, statusCode int, raw []byte) error {
	perr := &ProviderError{
		Op:         op,
		StatusCode: statusCode,
		Raw:        string(raw),
	}

	var body struct {
		Name             string `json:"name"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Name != "":
			perr.Code = body.Name
			perr.Message = body.Message
		case body.Error != "":
			perr.Code = body.Error
			perr.Message = body.ErrorDescription
		}
	}
	if perr.Message == "" {
		perr.Message = http.StatusText(statusCode)
	}
	return perr
}
