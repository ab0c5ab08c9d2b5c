package services

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/example/oakline/internal/models"
)

// InvoiceRenderer produces a retrievable document for an invoice and
// returns its location. Rendering sits outside the invoice transaction and
// may fail without affecting the record.
type InvoiceRenderer interface {
	Render(invoice *models.Invoice, order *models.Order) (string, error)
}

// HTMLInvoiceRenderer writes an itemized HTML document under a local
// directory that the server exposes statically.
type HTMLInvoiceRenderer struct {
	dir string
}

// NewHTMLInvoiceRenderer creates the renderer, ensuring the target
// directory exists.
func NewHTMLInvoiceRenderer(dir string) (*HTMLInvoiceRenderer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("invoice renderer: create directory: %w", err)
	}
	return &HTMLInvoiceRenderer{dir: dir}, nil
}

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Invoice {{.Invoice.InvoiceNumber}}</title></head>
<body>
<h1>Invoice {{.Invoice.InvoiceNumber}}</h1>
<p>Order: {{.Order.ID}}</p>
<p>Issued: {{.Invoice.CreatedAt.Format "2006-01-02"}} &mdash; Due: {{.Invoice.DueDate.Format "2006-01-02"}}</p>
<p>Status: {{.Invoice.Status}}</p>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Item</th><th>Qty</th><th>Unit price</th><th>Installation</th><th>Line total</th></tr>
{{range .Order.Items}}<tr>
<td>{{.ProductName}}</td><td>{{.Quantity}}</td><td>{{printf "%.2f" .UnitPrice}}</td>
<td>{{if .InstallationRequired}}{{printf "%.2f" .InstallationFee}}{{else}}&ndash;{{end}}</td>
<td>{{printf "%.2f" .TotalPrice}}</td>
</tr>{{end}}
</table>
<p>Subtotal: {{printf "%.2f" .Order.Subtotal}}</p>
<p>Tax: {{printf "%.2f" .Order.Tax}}</p>
<p>Delivery fee: {{printf "%.2f" .Order.DeliveryFee}}</p>
<p>Installation fee: {{printf "%.2f" .Order.InstallationFee}}</p>
<p><strong>Total: {{printf "%.2f" .Invoice.Amount}} {{.Invoice.Currency}}</strong></p>
</body>
</html>
`))

// Render writes the invoice document and returns its public path.
func (r *HTMLInvoiceRenderer) Render(invoice *models.Invoice, order *models.Order) (string, error) {
	filename := invoice.InvoiceNumber + ".html"

	file, err := os.Create(filepath.Join(r.dir, filename))
	if err != nil {
		return "", fmt.Errorf("invoice renderer: create file: %w", err)
	}
	defer file.Close()

	data := struct {
		Invoice *models.Invoice
		Order   *models.Order
	}{invoice, order}

	if err := invoiceTemplate.Execute(file, data); err != nil {
		return "", fmt.Errorf("invoice renderer: execute template: %w", err)
	}

	return "/documents/" + filename, nil
}
