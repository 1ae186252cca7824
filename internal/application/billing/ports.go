package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/squill/backend/internal/domain/billing"
)

// UsageCache stores aggregated usage per customer and window.
// Get returns (nil, nil) on a miss.
type UsageCache interface {
	Get(ctx context.Context, key UsageCacheKey) (*billing.AggregatedUsage, error)
	Set(ctx context.Context, key UsageCacheKey, usage *billing.AggregatedUsage) error
	InvalidateCustomer(ctx context.Context, customerID string) error
}

// UsageCacheKey identifies one cached aggregation
type UsageCacheKey struct {
	CustomerID string
	Start      string
	End        string
	Daily      bool
}

// InvoiceArchiver keeps a durable copy of generated invoices outside the database
type InvoiceArchiver interface {
	ArchiveInvoice(ctx context.Context, invoice *billing.Invoice) error
	ArchivePDF(ctx context.Context, invoice *billing.Invoice, pdf []byte) error
}

// InvoiceRenderer renders an invoice document
type InvoiceRenderer interface {
	RenderPDF(ctx context.Context, invoice *billing.Invoice) ([]byte, error)
}

// BillingMetrics records billing business metrics
type BillingMetrics interface {
	RecordUsageIngested(ctx context.Context, eventType string, quantity decimal.Decimal)
	RecordInvoiceGenerated(ctx context.Context, invoice *billing.Invoice)
	RecordInvoiceBatch(ctx context.Context, succeeded, failed int, elapsed time.Duration)
}

type noopArchiver struct{}

func (noopArchiver) ArchiveInvoice(context.Context, *billing.Invoice) error     { return nil }
func (noopArchiver) ArchivePDF(context.Context, *billing.Invoice, []byte) error { return nil }

type noopMetrics struct{}

func (noopMetrics) RecordUsageIngested(context.Context, string, decimal.Decimal) {}
func (noopMetrics) RecordInvoiceGenerated(context.Context, *billing.Invoice)     {}
func (noopMetrics) RecordInvoiceBatch(context.Context, int, int, time.Duration)  {}
