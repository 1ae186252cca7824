package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/squill/backend/internal/domain/billing"
)

func newTestBillingMetrics(t *testing.T) (*BillingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := NewBillingMetrics(provider.Meter("squill.billing"))
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestBillingMetrics_RecordUsageIngested(t *testing.T) {
	m, reader := newTestBillingMetrics(t)
	ctx := context.Background()

	m.RecordUsageIngested(ctx, "api_call", decimal.RequireFromString("50"))
	m.RecordUsageIngested(ctx, "api_call", decimal.RequireFromString("75"))
	m.RecordUsageIngested(ctx, "storage_gb", decimal.RequireFromString("1.5"))

	got := collect(t, reader)

	events, ok := got["squill_usage_events_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range events.DataPoints {
		v, _ := dp.Attributes.Value(AttrEventType)
		counts[v.AsString()] = dp.Value
	}
	assert.Equal(t, map[string]int64{"api_call": 2, "storage_gb": 1}, counts)

	qty, ok := got["squill_usage_quantity_total"].Data.(metricdata.Sum[float64])
	require.True(t, ok)
	for _, dp := range qty.DataPoints {
		if v, _ := dp.Attributes.Value(AttrEventType); v.AsString() == "api_call" {
			assert.InDelta(t, 125.0, dp.Value, 1e-9)
		}
	}
}

func TestBillingMetrics_RecordInvoiceGenerated(t *testing.T) {
	m, reader := newTestBillingMetrics(t)
	ctx := context.Background()

	m.RecordInvoiceGenerated(ctx, &billing.Invoice{TotalAmount: decimal.RequireFromString("1.25")})
	m.RecordInvoiceGenerated(ctx, &billing.Invoice{
		Currency:        "USD",
		TotalAmount:     decimal.RequireFromString("149"),
		PlatformCharges: &billing.SubscriptionBillingResult{},
	})

	got := collect(t, reader)
	invoices, ok := got["squill_invoices_generated_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, invoices.DataPoints, 2)

	kinds := map[string]int64{}
	for _, dp := range invoices.DataPoints {
		v, _ := dp.Attributes.Value(AttrInvoiceKind)
		kinds[v.AsString()] = dp.Value
		currency, _ := dp.Attributes.Value(AttrCurrency)
		assert.Equal(t, "USD", currency.AsString(), "missing currency falls back to the default")
	}
	assert.Equal(t, map[string]int64{"customer": 1, "platform": 1}, kinds)

	amounts, ok := got["squill_invoice_amount"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var total float64
	for _, dp := range amounts.DataPoints {
		total += dp.Sum
	}
	assert.InDelta(t, 150.25, total, 1e-9)
}

func TestBillingMetrics_RecordInvoiceBatch(t *testing.T) {
	m, reader := newTestBillingMetrics(t)

	m.RecordInvoiceBatch(context.Background(), 9, 1, 3*time.Second)

	got := collect(t, reader)
	results, ok := got["squill_invoice_batch_results_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	outcomes := map[string]int64{}
	for _, dp := range results.DataPoints {
		v, _ := dp.Attributes.Value(AttrOutcome)
		outcomes[v.AsString()] = dp.Value
	}
	assert.Equal(t, int64(9), outcomes["succeeded"])
	assert.Equal(t, int64(1), outcomes["failed"])

	duration, ok := got["squill_invoice_batch_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, duration.DataPoints, 1)
	assert.InDelta(t, 3.0, duration.DataPoints[0].Sum, 1e-9)
	assert.Equal(t, attribute.NewSet(), duration.DataPoints[0].Attributes)
}
