package printing

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared/valueobject"
)

// InvoiceTemplate renders invoices as standalone HTML documents
type InvoiceTemplate struct {
	tmpl *template.Template
}

// InvoiceTemplateOption configures InvoiceTemplate
type InvoiceTemplateOption func(*invoiceTemplateOptions)

type invoiceTemplateOptions struct {
	content string
	lang    language.Tag
}

// WithTemplateContent replaces the built-in invoice layout
func WithTemplateContent(content string) InvoiceTemplateOption {
	return func(o *invoiceTemplateOptions) {
		o.content = content
	}
}

// WithLanguage sets the casing rules for labels
func WithLanguage(tag language.Tag) InvoiceTemplateOption {
	return func(o *invoiceTemplateOptions) {
		o.lang = tag
	}
}

// NewInvoiceTemplate parses the invoice layout
func NewInvoiceTemplate(opts ...InvoiceTemplateOption) (*InvoiceTemplate, error) {
	o := invoiceTemplateOptions{content: defaultInvoiceTemplate, lang: language.English}
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(o.content) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "template content is empty", nil)
	}

	tmpl, err := template.New("invoice").Funcs(templateFuncs(o.lang)).Parse(o.content)
	if err != nil {
		return nil, NewRenderError(ErrCodeTemplate, "failed to parse template", err)
	}
	return &InvoiceTemplate{tmpl: tmpl}, nil
}

// Render produces the HTML for one invoice
func (t *InvoiceTemplate) Render(invoice *billing.Invoice) (string, error) {
	if invoice == nil {
		return "", NewRenderError(ErrCodeTemplate, "invoice is nil", nil)
	}

	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, newInvoiceView(invoice)); err != nil {
		return "", NewRenderError(ErrCodeTemplate, "failed to execute template", err)
	}
	return buf.String(), nil
}

type invoiceView struct {
	*billing.Invoice
	Usage    []usageRow
	Lines    []lineRow
	Platform *platformView
	Total    valueobject.Money
}

type usageRow struct {
	Metric   billing.Metric
	Quantity decimal.Decimal
}

type lineRow struct {
	Metric billing.Metric
	billing.LineItem
}

type platformView struct {
	Tier       billing.TierName
	MonthlyFee decimal.Decimal
	Overages   []overageRow
}

type overageRow struct {
	Metric billing.Metric
	billing.OverageDetail
}

func newInvoiceView(inv *billing.Invoice) invoiceView {
	view := invoiceView{Invoice: inv, Total: inv.Total()}

	inv.UsageSummary.Each(func(m billing.Metric, q decimal.Decimal) {
		view.Usage = append(view.Usage, usageRow{Metric: m, Quantity: q})
	})
	inv.BillingDetails.Each(func(m billing.Metric, li billing.LineItem) {
		view.Lines = append(view.Lines, lineRow{Metric: m, LineItem: li})
	})
	if pc := inv.PlatformCharges; pc != nil {
		p := &platformView{Tier: pc.Tier, MonthlyFee: pc.MonthlyFee}
		pc.Overages.Each(func(m billing.Metric, d billing.OverageDetail) {
			p.Overages = append(p.Overages, overageRow{Metric: m, OverageDetail: d})
		})
		view.Platform = p
	}
	return view
}

func templateFuncs(lang language.Tag) template.FuncMap {
	caser := cases.Title(lang)
	label := func(s string) string {
		return caser.String(strings.ReplaceAll(s, "_", " "))
	}
	return template.FuncMap{
		"label": func(v any) string {
			switch s := v.(type) {
			case billing.Metric:
				return s.DisplayName()
			case billing.TierName:
				return label(string(s))
			case billing.InvoiceStatus:
				return label(string(s))
			case string:
				return label(s)
			}
			return ""
		},
		"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"qty":   func(d decimal.Decimal) string { return d.String() },
		"date":  formatDate,
	}
}

// formatDate keeps the calendar date of a stored timestamp
func formatDate(ts string) string {
	if len(ts) >= 10 {
		return ts[:10]
	}
	return ts
}

const defaultInvoiceTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Invoice {{.InvoiceID}}</title>
<style>
  body { font-family: "Helvetica Neue", Arial, sans-serif; font-size: 12px; color: #222; }
  h1 { font-size: 22px; margin: 0 0 4px; }
  .meta { color: #666; margin-bottom: 24px; }
  table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
  th, td { padding: 6px 8px; border-bottom: 1px solid #ddd; text-align: right; }
  th:first-child, td:first-child { text-align: left; }
  th { background: #f5f5f5; }
  .total { font-size: 16px; font-weight: bold; text-align: right; }
</style>
</head>
<body>
<h1>Invoice {{.InvoiceID}}</h1>
<div class="meta">
  <div>{{.CustomerName}} &lt;{{.CustomerEmail}}&gt;</div>
  <div>Period: {{date .PeriodStart}} to {{date .PeriodEnd}}</div>
  <div>Issued: {{date .CreatedAt}} &middot; Due: {{date .DueDate}}</div>
  <div>Status: {{label .Status}}</div>
</div>
{{if .Platform}}
<h2>{{label .Platform.Tier}} plan</h2>
<table>
  <tr><th>Item</th><th>Usage</th><th>Limit</th><th>Overage</th><th>Rate</th><th>Amount</th></tr>
  <tr><td>Monthly fee</td><td></td><td></td><td></td><td></td><td>{{money .Platform.MonthlyFee}}</td></tr>
  {{range .Platform.Overages}}
  <tr><td>{{label .Metric}}</td><td>{{qty .Usage}}</td><td>{{.Limit}}</td><td>{{qty .OverageAmount}}</td><td>{{qty .Rate}}</td><td>{{money .Cost}}</td></tr>
  {{end}}
</table>
{{end}}
{{if .Lines}}
<table>
  <tr><th>Usage</th><th>Total</th><th>Free</th><th>Billable</th><th>Rate</th><th>Amount</th></tr>
  {{range .Lines}}
  <tr><td>{{label .Metric}}</td><td>{{qty .TotalQuantity}}</td><td>{{qty .FreeQuantity}}</td><td>{{qty .BillableQuantity}}</td><td>{{qty .Rate}}</td><td>{{money .Cost}}</td></tr>
  {{end}}
</table>
{{end}}
{{if .Usage}}
<table>
  <tr><th>Metered usage</th><th>Quantity</th></tr>
  {{range .Usage}}<tr><td>{{label .Metric}}</td><td>{{qty .Quantity}}</td></tr>{{end}}
</table>
{{end}}
<div class="total">Total due: {{.Total}}</div>
</body>
</html>
`
