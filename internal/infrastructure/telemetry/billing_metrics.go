package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/squill/backend/internal/domain/billing"
)

// Attribute keys for billing metrics
const (
	AttrEventType   = attribute.Key("event_type")
	AttrCurrency    = attribute.Key("currency")
	AttrInvoiceKind = attribute.Key("invoice_kind")
	AttrOutcome     = attribute.Key("outcome")
)

// BillingMetrics records ingestion and invoicing instruments
type BillingMetrics struct {
	usageEvents   *Counter
	usageQuantity metric.Float64Counter
	invoices      *Counter
	invoiceAmount *Histogram
	batchInvoices *Counter
	batchDuration *Histogram
}

// NewBillingMetrics creates every instrument on meter
func NewBillingMetrics(meter metric.Meter) (*BillingMetrics, error) {
	usageEvents, err := NewCounter(meter, "squill_usage_events_total", "Usage events ingested", "{event}")
	if err != nil {
		return nil, err
	}
	usageQuantity, err := meter.Float64Counter("squill_usage_quantity_total",
		metric.WithDescription("Sum of ingested usage quantities"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	invoices, err := NewCounter(meter, "squill_invoices_generated_total", "Invoices generated", "{invoice}")
	if err != nil {
		return nil, err
	}
	invoiceAmount, err := NewHistogram(meter, HistogramOpts{
		Name:        "squill_invoice_amount",
		Description: "Invoice totals",
		Unit:        "{currency}",
		Boundaries:  []float64{0, 10, 50, 100, 250, 500, 1000, 5000, 10000},
	})
	if err != nil {
		return nil, err
	}
	batchInvoices, err := NewCounter(meter, "squill_invoice_batch_results_total", "Batch invoice outcomes", "{invoice}")
	if err != nil {
		return nil, err
	}
	batchDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "squill_invoice_batch_duration_seconds",
		Description: "Batch invoice generation latency",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	return &BillingMetrics{
		usageEvents:   usageEvents,
		usageQuantity: usageQuantity,
		invoices:      invoices,
		invoiceAmount: invoiceAmount,
		batchInvoices: batchInvoices,
		batchDuration: batchDuration,
	}, nil
}

// RecordUsageIngested counts one stored usage event
func (m *BillingMetrics) RecordUsageIngested(ctx context.Context, eventType string, quantity decimal.Decimal) {
	attrs := metric.WithAttributes(AttrEventType.String(eventType))
	m.usageEvents.counter.Add(ctx, 1, attrs)
	m.usageQuantity.Add(ctx, quantity.InexactFloat64(), attrs)
}

// RecordInvoiceGenerated counts an invoice and observes its total
func (m *BillingMetrics) RecordInvoiceGenerated(ctx context.Context, invoice *billing.Invoice) {
	kind := "customer"
	if invoice.PlatformCharges != nil {
		kind = "platform"
	}
	total := invoice.Total()
	attrs := []attribute.KeyValue{
		AttrCurrency.String(string(total.Currency())),
		AttrInvoiceKind.String(kind),
	}
	m.invoices.Add(ctx, 1, attrs...)
	m.invoiceAmount.Record(ctx, total.Amount().InexactFloat64(), attrs...)
}

// RecordInvoiceBatch records the outcome of one batch run
func (m *BillingMetrics) RecordInvoiceBatch(ctx context.Context, succeeded, failed int, elapsed time.Duration) {
	m.batchInvoices.Add(ctx, int64(succeeded), AttrOutcome.String("succeeded"))
	m.batchInvoices.Add(ctx, int64(failed), AttrOutcome.String("failed"))
	m.batchDuration.RecordDuration(ctx, elapsed)
}
