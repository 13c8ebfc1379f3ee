package services

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/autexline/api/internal/invoicing"
)

// Invoice notification emails. The buyer mail carries the payment link, the
// admin mail is a plain issuance record.

var buyerInvoiceTmpl = template.Must(template.New("buyerInvoice").Parse(`<html>
<body>
  <p>Dear {{if .BuyerName}}{{.BuyerName}}{{else}}Customer{{end}},</p>
  <p>Your invoice <strong>{{.Number}}</strong> for {{.ProductName}}{{if .ProductRef}} (Ref: {{.ProductRef}}){{end}} has been issued.</p>
  <p>Amount due: <strong>{{.Total}} {{.Currency}}</strong></p>
  {{if .ViewURL}}<p><a href="{{.ViewURL}}">View and pay your invoice</a></p>{{end}}
  <p>Thank you for your purchase.</p>
</body>
</html>`))

var adminInvoiceTmpl = template.Must(template.New("adminInvoice").Parse(`<html>
<body>
  <p>Invoice <strong>{{.Number}}</strong> was issued to {{.BuyerEmail}}.</p>
  <ul>
    <li>Product: {{.ProductName}}{{if .ProductRef}} (Ref: {{.ProductRef}}){{end}}</li>
    <li>Amount: {{.Total}} {{.Currency}}</li>
    <li>Status: {{.Status}}</li>
  </ul>
  {{if .ViewURL}}<p><a href="{{.ViewURL}}">Invoice link</a></p>{{end}}
</body>
</html>`))

type invoiceEmailData struct {
	BuyerName   string
	BuyerEmail  string
	ProductName string
	ProductRef  string
	Number      string
	Total       string
	Currency    string
	Status      string
	ViewURL     string
}

func newInvoiceEmailData(input IssueInvoiceInput, invoice invoicing.Invoice) invoiceEmailData {
	number := invoice.Number
	if number == "" {
		number = invoice.ID
	}
	return invoiceEmailData{
		BuyerName:   input.BuyerName,
		BuyerEmail:  input.BuyerEmail,
		ProductName: input.ProductName,
		ProductRef:  input.ProductRef,
		Number:      number,
		Total:       fmt.Sprintf("%.2f", invoice.Total),
		Currency:    invoice.Currency,
		Status:      string(invoice.Status),
		ViewURL:     invoice.ViewURL,
	}
}

func renderBuyerInvoiceEmail(data invoiceEmailData) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := buyerInvoiceTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render buyer invoice email: %w", err)
	}
	return fmt.Sprintf("Your invoice %s", data.Number), buf.String(), nil
}

func renderAdminInvoiceEmail(data invoiceEmailData) (subject, body string, err error) {
	var buf bytes.Buffer
	if err := adminInvoiceTmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render admin invoice email: %w", err)
	}
	return fmt.Sprintf("Invoice %s issued to %s", data.Number, data.BuyerEmail), buf.String(), nil
}
