package printing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/squill/backend/internal/domain/billing"
)

func sampleInvoice(t *testing.T) *billing.Invoice {
	t.Helper()
	period := billing.CurrentMonth(time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC))
	customer, err := billing.NewCustomer("cust-42", "Acme & Co", "billing@acme.test", billing.TierBasic, time.Now())
	require.NoError(t, err)

	var events []billing.UsageEvent
	for _, qty := range []string{"50", "75", "100"} {
		e, err := billing.NewUsageEvent("cust-42", "api_call", decimal.RequireFromString(qty), "2024-12-02T00:00:00")
		require.NoError(t, err)
		events = append(events, *e)
	}
	usage := billing.NewUsagePeriodAggregator().AggregatePeriod(events, period)
	result := billing.NewClientBillingCalculator(billing.DefaultClientRules()).
		Compute(nil, billing.GroupQuantities(events, period.StartString(), period.EndString()))

	return billing.NewInvoiceAssembler(billing.WithClock(func() time.Time {
		return time.Date(2024, 12, 16, 0, 0, 0, 0, time.UTC)
	})).Assemble(customer, period, usage, result)
}

func TestInvoiceTemplate_Render(t *testing.T) {
	tmpl, err := NewInvoiceTemplate()
	require.NoError(t, err)

	t.Run("customer invoice", func(t *testing.T) {
		html, err := tmpl.Render(sampleInvoice(t))
		require.NoError(t, err)

		assert.Contains(t, html, "<title>Invoice INV-202412-cust-42</title>")
		assert.Contains(t, html, "Acme &amp; Co")
		assert.Contains(t, html, "Period: 2024-12-01 to 2024-12-31")
		assert.Contains(t, html, "<td>API Call</td><td>225</td><td>100</td><td>125</td><td>0.01</td><td>1.25</td>")
		assert.Contains(t, html, "Total due: USD 1.25")
		assert.NotContains(t, html, "plan</h2>")
	})

	t.Run("platform invoice lists overages", func(t *testing.T) {
		charges, err := billing.NewSubscriptionBillingCalculator(billing.DefaultTierCatalog()).Compute(billing.TierBasic,
			billing.MetricMapOf(billing.Entry(billing.MetricCustomers, decimal.NewFromInt(1500))))
		require.NoError(t, err)

		inv := sampleInvoice(t)
		inv.PlatformCharges = charges
		inv.BillingDetails = billing.NewMetricMap[billing.LineItem]()
		inv.TotalAmount = charges.TotalCost

		html, err := tmpl.Render(inv)
		require.NoError(t, err)
		assert.Contains(t, html, "<h2>Basic plan</h2>")
		assert.Contains(t, html, "<td>Customers</td><td>1500</td><td>1000</td><td>500</td>")
		assert.Contains(t, html, "Total due: USD 149.00")
	})

	t.Run("nil invoice", func(t *testing.T) {
		_, err := tmpl.Render(nil)
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeTemplate, renderErr.Code)
	})
}

func TestNewInvoiceTemplate_Custom(t *testing.T) {
	t.Run("custom layout", func(t *testing.T) {
		tmpl, err := NewInvoiceTemplate(WithTemplateContent(`{{.InvoiceID}} {{label .Status}} {{.Total.Display}} {{.Total.Currency}}`))
		require.NoError(t, err)

		html, err := tmpl.Render(sampleInvoice(t))
		require.NoError(t, err)
		assert.Equal(t, "INV-202412-cust-42 Generated 1.25 USD", html)
	})

	t.Run("empty layout", func(t *testing.T) {
		_, err := NewInvoiceTemplate(WithTemplateContent("  "))
		assert.Error(t, err)
	})

	t.Run("parse error", func(t *testing.T) {
		_, err := NewInvoiceTemplate(WithTemplateContent("{{.InvoiceID"))
		var renderErr *RenderError
		require.ErrorAs(t, err, &renderErr)
		assert.Equal(t, ErrCodeTemplate, renderErr.Code)
	})
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "2024-12-01", formatDate("2024-12-01T00:00:00"))
	assert.Equal(t, "", formatDate(""))
}
