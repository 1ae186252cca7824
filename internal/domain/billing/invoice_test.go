package billing

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squill/backend/internal/domain/shared/valueobject"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func testCustomer(t *testing.T) *Customer {
	t.Helper()
	c, err := NewCustomer("cust-42", "Acme Corp", "billing@acme.test", TierBasic, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func TestInvoiceAssembler_Assemble(t *testing.T) {
	created := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	assembler := NewInvoiceAssembler(WithClock(fixedClock(created)))
	period := CurrentMonth(time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC))

	events := []UsageEvent{
		event("2024-12-02T00:00:00", "api_call", "50"),
		event("2024-12-03T00:00:00", "api_call", "75"),
		event("2024-12-04T00:00:00", "api_call", "100"),
	}
	usage := NewUsagePeriodAggregator().AggregatePeriod(events, period)
	client := NewClientBillingCalculator(DefaultClientRules()).Compute(nil, GroupQuantities(events, period.StartString(), period.EndString()))

	inv := assembler.Assemble(testCustomer(t), period, usage, client)

	assert.Equal(t, "INV-202412-cust-42", inv.InvoiceID)
	assert.Equal(t, "cust-42", inv.CustomerID)
	assert.Equal(t, "Acme Corp", inv.CustomerName)
	assert.Equal(t, "billing@acme.test", inv.CustomerEmail)
	assert.Equal(t, "2024-12-01T00:00:00", inv.PeriodStart)
	assert.Equal(t, "2024-12-31T23:59:59.999999", inv.PeriodEnd)
	assert.Equal(t, "2025-01-30T23:59:59.999999", inv.DueDate)
	assert.Equal(t, InvoiceGenerated, inv.Status)
	assert.Equal(t, "2025-01-02T09:00:00", inv.CreatedAt)
	assert.Equal(t, 3, inv.TotalEvents)
	assert.Equal(t, valueobject.USD, inv.Currency)
	assert.True(t, inv.TotalAmount.Equal(dec("1.25")))
	assert.Equal(t, "1.25", inv.DisplayTotal())
	assert.Nil(t, inv.PlatformCharges)
}

func TestInvoiceAssembler_SubscriptionResult(t *testing.T) {
	assembler := NewInvoiceAssembler(WithDueDays(15), WithCurrency(valueobject.EUR))
	period := PreviousMonth(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC))

	sub, err := NewSubscriptionBillingCalculator(DefaultTierCatalog()).Compute(TierBasic, usageOf(
		Entry(MetricCustomers, dec("1500")),
	))
	require.NoError(t, err)

	inv := assembler.Assemble(testCustomer(t), period, AggregatedUsage{Totals: NewMetricMap[decimal.Decimal]()}, sub)
	assert.Equal(t, "INV-202402-cust-42", inv.InvoiceID)
	assert.Equal(t, "2024-03-15T23:59:59.999999", inv.DueDate)
	require.NotNil(t, inv.PlatformCharges)
	assert.Equal(t, "149.00", inv.DisplayTotal())
	assert.Equal(t, valueobject.EUR, inv.Total().Currency())
	assert.Equal(t, 0, inv.BillingDetails.Len())
}

func TestInvoiceAssembler_Idempotent(t *testing.T) {
	period := CurrentMonth(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	usage := AggregatedUsage{Totals: usageOf(Entry(MetricAPICall, dec("333.333")))}
	client := NewClientBillingCalculator(DefaultClientRules()).Compute(nil, MetricMapOf(
		Entry(MetricAPICall, quantities("333.333")),
	))

	first := NewInvoiceAssembler(WithClock(fixedClock(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)))).
		Assemble(testCustomer(t), period, usage, client)
	second := NewInvoiceAssembler(WithClock(fixedClock(time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC)))).
		Assemble(testCustomer(t), period, usage, client)

	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.True(t, first.TotalAmount.Equal(second.TotalAmount))
	assert.Equal(t, first.DisplayTotal(), second.DisplayTotal())
}

func TestInvoice_DisplayRoundsHalfUpOnlyAtSerialization(t *testing.T) {
	inv := &Invoice{InvoiceID: "INV-1", TotalAmount: dec("2.335"), Status: InvoiceGenerated}

	assert.True(t, inv.TotalAmount.Equal(dec("2.335")), "internal value stays exact")

	data, err := json.Marshal(inv)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_amount":"2.34"`)

	var decoded Invoice
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "INV-1", decoded.InvoiceID)
	assert.True(t, decoded.TotalAmount.Equal(dec("2.34")))
}

func TestInvoiceStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to InvoiceStatus
		allowed  bool
	}{
		{InvoiceGenerated, InvoiceCurrent, true},
		{InvoiceGenerated, InvoicePaid, true},
		{InvoiceCurrent, InvoicePaid, true},
		{InvoicePaid, InvoiceCurrent, false},
		{InvoiceCurrent, InvoiceGenerated, false},
		{InvoiceGenerated, InvoiceGenerated, false},
		{InvoiceGenerated, "void", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			inv := &Invoice{Status: tt.from}
			err := inv.TransitionTo(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, inv.Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.from, inv.Status)
			}
		})
	}
}
