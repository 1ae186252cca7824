package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
)

type invoiceFixture struct {
	customers     *mockCustomerRepo
	usage         *mockUsageRepo
	subscriptions *mockSubscriptionRepo
	invoices      *mockInvoiceRepo
	archiver      *mockArchiver
	renderer      *mockRenderer
	metrics       *mockMetrics
	svc           *InvoiceService
}

var invoiceNow = time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC)

func newInvoiceFixture(config InvoiceServiceConfig) *invoiceFixture {
	f := &invoiceFixture{
		customers:     new(mockCustomerRepo),
		usage:         new(mockUsageRepo),
		subscriptions: new(mockSubscriptionRepo),
		invoices:      new(mockInvoiceRepo),
		archiver:      new(mockArchiver),
		renderer:      new(mockRenderer),
		metrics:       new(mockMetrics),
	}
	f.svc = NewInvoiceService(InvoiceServiceDeps{
		Customers:     f.customers,
		Usage:         f.usage,
		Subscriptions: f.subscriptions,
		Invoices:      f.invoices,
		Tiers:         billing.DefaultTierCatalog(),
		Rates:         billing.NewClientRateCatalog(billing.DefaultClientRules()),
		Archiver:      f.archiver,
		Renderer:      f.renderer,
		Metrics:       f.metrics,
	}, config, nil, fixedNow(invoiceNow))
	return f
}

// expectStore wires the calls made for every stored invoice
func (f *invoiceFixture) expectStore() {
	f.invoices.On("Upsert", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)
	f.archiver.On("ArchiveInvoice", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return(nil)
	f.metrics.On("RecordInvoiceGenerated", mock.Anything, mock.AnythingOfType("*billing.Invoice")).Return()
}

func testBillingCustomer(t *testing.T, id string) *billing.Customer {
	t.Helper()
	c, err := billing.NewCustomer(id, "Acme Corp", "billing@acme.test", billing.TierBasic, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return c
}

func decemberFilter() billing.UsageEventFilter {
	return billing.UsageEventFilter{}.WithPeriod(billing.CurrentMonth(invoiceNow))
}

func TestInvoiceService_GenerateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("bills with default client rules", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.customers.On("FindByID", ctx, "cust-42").Return(testBillingCustomer(t, "cust-42"), nil)
		f.usage.On("FindByCustomer", ctx, "cust-42", decemberFilter()).Return([]billing.UsageEvent{
			usageEvent("cust-42", "2024-12-02T00:00:00", "api_call", "50"),
			usageEvent("cust-42", "2024-12-03T00:00:00", "api_call", "75"),
			usageEvent("cust-42", "2024-12-04T00:00:00", "api_call", "100"),
		}, nil)
		f.subscriptions.On("FindByClientID", ctx, "cust-42").Return(nil, shared.ErrNotFound)
		f.expectStore()

		inv, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "cust-42"})

		require.NoError(t, err)
		assert.Equal(t, "INV-202412-cust-42", inv.InvoiceID)
		assert.Equal(t, "1.25", inv.DisplayTotal())
		assert.Equal(t, 3, inv.TotalEvents)
		assert.Equal(t, "2024-12-20T09:00:00", inv.CreatedAt)
		assert.Equal(t, "Acme Corp", inv.CustomerName)
		line, ok := inv.BillingDetails.Get(billing.MetricAPICall)
		require.True(t, ok)
		assert.Equal(t, "125", line.BillableQuantity.String())
		f.invoices.AssertExpectations(t)
		f.archiver.AssertExpectations(t)
	})

	t.Run("uses rules stored on matching subscription", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		sub, err := billing.NewSubscription("cust-42", "Acme", "ops@acme.test", billing.TierPro, invoiceNow)
		require.NoError(t, err)
		require.NoError(t, sub.SetPricingRules(billing.MetricMapOf(
			billing.Entry(billing.MetricAPICall, billing.ClientPricingRule{Rate: dec("1"), FreeTier: dec("0")}),
		), invoiceNow))

		f.customers.On("FindByID", ctx, "cust-42").Return(testBillingCustomer(t, "cust-42"), nil)
		f.usage.On("FindByCustomer", ctx, "cust-42", decemberFilter()).Return([]billing.UsageEvent{
			usageEvent("cust-42", "2024-12-02T00:00:00", "api_call", "3"),
			usageEvent("cust-42", "2024-12-02T00:00:00", "storage_gb", "10"),
		}, nil)
		f.subscriptions.On("FindByClientID", ctx, "cust-42").Return(sub, nil)
		f.expectStore()

		inv, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "cust-42"})

		require.NoError(t, err)
		assert.Equal(t, "3.00", inv.DisplayTotal())
		assert.False(t, inv.BillingDetails.Has(billing.MetricStorageGB))
	})

	t.Run("catalog override applies without subscription", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.svc.rates = billing.NewClientRateCatalog(billing.DefaultClientRules()).WithOverride("cust-42", billing.MetricMapOf(
			billing.Entry(billing.MetricAPICall, billing.ClientPricingRule{Rate: dec("0.10"), FreeTier: dec("0")}),
		))

		f.customers.On("FindByID", ctx, "cust-42").Return(testBillingCustomer(t, "cust-42"), nil)
		f.usage.On("FindByCustomer", ctx, "cust-42", decemberFilter()).Return([]billing.UsageEvent{
			usageEvent("cust-42", "2024-12-02T00:00:00", "api_call", "20"),
		}, nil)
		f.subscriptions.On("FindByClientID", ctx, "cust-42").Return(nil, shared.ErrNotFound)
		f.expectStore()

		inv, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "cust-42"})

		require.NoError(t, err)
		assert.Equal(t, "2.00", inv.DisplayTotal())
	})

	t.Run("previous month period", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		november := billing.UsageEventFilter{}.WithPeriod(billing.PreviousMonth(invoiceNow))
		f.customers.On("FindByID", ctx, "cust-42").Return(testBillingCustomer(t, "cust-42"), nil)
		f.usage.On("FindByCustomer", ctx, "cust-42", november).Return([]billing.UsageEvent{}, nil)
		f.subscriptions.On("FindByClientID", ctx, "cust-42").Return(nil, shared.ErrNotFound)
		f.expectStore()

		inv, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "cust-42", BillingPeriod: "previous_month"})

		require.NoError(t, err)
		assert.Equal(t, "INV-202411-cust-42", inv.InvoiceID)
		assert.Equal(t, "0.00", inv.DisplayTotal())
	})

	t.Run("unknown customer", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.customers.On("FindByID", ctx, "ghost").Return(nil, shared.ErrNotFound)

		_, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "ghost"})
		assert.ErrorIs(t, err, shared.ErrNotFound)
		f.invoices.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("invalid period", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		_, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "cust-42", BillingPeriod: "last_week"})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, billing.CodeInvalidBillingPeriod, domainErr.Code)
	})

	t.Run("archive failure is not fatal", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.customers.On("FindByID", ctx, "cust-42").Return(testBillingCustomer(t, "cust-42"), nil)
		f.usage.On("FindByCustomer", ctx, "cust-42", decemberFilter()).Return([]billing.UsageEvent{}, nil)
		f.subscriptions.On("FindByClientID", ctx, "cust-42").Return(nil, shared.ErrNotFound)
		f.invoices.On("Upsert", ctx, mock.Anything).Return(nil)
		f.archiver.On("ArchiveInvoice", ctx, mock.Anything).Return(errors.New("bucket missing"))
		f.metrics.On("RecordInvoiceGenerated", ctx, mock.Anything).Return()

		_, err := f.svc.GenerateInvoice(ctx, GenerateInvoiceRequest{CustomerID: "cust-42"})
		assert.NoError(t, err)
	})
}

func TestInvoiceService_GenerateInvoices(t *testing.T) {
	ctx := context.Background()

	t.Run("collects per-customer failures", func(t *testing.T) {
		f := newInvoiceFixture(InvoiceServiceConfig{Concurrency: 2})
		for _, id := range []string{"a", "b", "d"} {
			f.customers.On("FindByID", mock.Anything, id).Return(testBillingCustomer(t, id), nil)
			f.usage.On("FindByCustomer", mock.Anything, id, decemberFilter()).Return([]billing.UsageEvent{
				usageEvent(id, "2024-12-05T00:00:00", "transaction", "12"),
			}, nil)
			f.subscriptions.On("FindByClientID", mock.Anything, id).Return(nil, shared.ErrNotFound)
		}
		f.customers.On("FindByID", mock.Anything, "c").Return(nil, shared.ErrNotFound)
		f.expectStore()
		f.metrics.On("RecordInvoiceBatch", ctx, 3, 1, mock.Anything).Return()

		result, err := f.svc.GenerateInvoices(ctx, GenerateInvoicesRequest{CustomerIDs: []string{"a", "b", "c", "d"}})

		require.NoError(t, err)
		require.Len(t, result.Invoices, 3)
		assert.Equal(t, "INV-202412-a", result.Invoices[0].InvoiceID)
		assert.Equal(t, "INV-202412-d", result.Invoices[2].InvoiceID)
		assert.Equal(t, "0.60", result.Invoices[0].DisplayTotal())
		require.Len(t, result.Failures, 1)
		assert.Equal(t, "c", result.Failures[0].CustomerID)
		assert.Equal(t, "2024-12-01T00:00:00", result.PeriodStart)
		f.metrics.AssertExpectations(t)
	})

	t.Run("empty list bills every customer", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.customers.On("ListIDs", ctx).Return([]string{"only"}, nil)
		f.customers.On("FindByID", mock.Anything, "only").Return(testBillingCustomer(t, "only"), nil)
		f.usage.On("FindByCustomer", mock.Anything, "only", decemberFilter()).Return([]billing.UsageEvent{}, nil)
		f.subscriptions.On("FindByClientID", mock.Anything, "only").Return(nil, shared.ErrNotFound)
		f.expectStore()
		f.metrics.On("RecordInvoiceBatch", ctx, 1, 0, mock.Anything).Return()

		result, err := f.svc.GenerateInvoices(ctx, GenerateInvoicesRequest{})

		require.NoError(t, err)
		assert.Len(t, result.Invoices, 1)
		assert.Empty(t, result.Failures)
	})

	t.Run("customer list failure aborts", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.customers.On("ListIDs", ctx).Return(nil, errors.New("db down"))

		_, err := f.svc.GenerateInvoices(ctx, GenerateInvoicesRequest{})
		assert.EqualError(t, err, "db down")
	})
}

func TestInvoiceService_GeneratePlatformInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("tier fee plus overage", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		sub, err := billing.NewSubscription("client-1", "Acme", "ops@acme.test", billing.TierBasic, invoiceNow)
		require.NoError(t, err)

		f.subscriptions.On("FindByClientID", ctx, "client-1").Return(sub, nil)
		f.usage.On("FindByCustomer", ctx, "client-1", decemberFilter()).Return([]billing.UsageEvent{
			usageEvent("client-1", "2024-12-01T00:00:00", "customers", "1500"),
			usageEvent("client-1", "2024-12-02T00:00:00", "api_calls", "5000"),
		}, nil)
		f.expectStore()

		inv, err := f.svc.GeneratePlatformInvoice(ctx, GeneratePlatformInvoiceRequest{ClientID: "client-1"})

		require.NoError(t, err)
		assert.Equal(t, "PLT-202412-client-1", inv.InvoiceID)
		assert.Equal(t, "Acme", inv.CustomerName)
		require.NotNil(t, inv.PlatformCharges)
		assert.Equal(t, "149.00", inv.DisplayTotal())
		assert.True(t, inv.PlatformCharges.Overages.Has(billing.MetricCustomers))
	})

	t.Run("suspended subscription", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		sub, err := billing.NewSubscription("client-1", "Acme", "ops@acme.test", billing.TierBasic, invoiceNow)
		require.NoError(t, err)
		sub.Status = billing.SubscriptionSuspended
		f.subscriptions.On("FindByClientID", ctx, "client-1").Return(sub, nil)

		_, err = f.svc.GeneratePlatformInvoice(ctx, GeneratePlatformInvoiceRequest{ClientID: "client-1"})
		assert.Error(t, err)
		f.invoices.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})
}

func TestInvoiceService_UpdateInvoiceStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("forward transition", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.invoices.On("FindByID", ctx, "INV-1").Return(&billing.Invoice{InvoiceID: "INV-1", Status: billing.InvoiceGenerated}, nil)
		f.invoices.On("UpdateStatus", ctx, "INV-1", billing.InvoicePaid).Return(nil)

		inv, err := f.svc.UpdateInvoiceStatus(ctx, "INV-1", UpdateInvoiceStatusRequest{Status: "paid"})

		require.NoError(t, err)
		assert.Equal(t, billing.InvoicePaid, inv.Status)
	})

	t.Run("backward transition rejected", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		f.invoices.On("FindByID", ctx, "INV-1").Return(&billing.Invoice{InvoiceID: "INV-1", Status: billing.InvoicePaid}, nil)

		_, err := f.svc.UpdateInvoiceStatus(ctx, "INV-1", UpdateInvoiceStatusRequest{Status: "current"})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, billing.CodeInvalidStatusTransition, domainErr.Code)
		f.invoices.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestInvoiceService_RenderInvoicePDF(t *testing.T) {
	ctx := context.Background()

	t.Run("renders and archives", func(t *testing.T) {
		f := newInvoiceFixture(DefaultInvoiceServiceConfig())
		inv := &billing.Invoice{InvoiceID: "INV-1"}
		pdf := []byte("%PDF-1.4")
		f.invoices.On("FindByID", ctx, "INV-1").Return(inv, nil)
		f.renderer.On("RenderPDF", ctx, inv).Return(pdf, nil)
		f.archiver.On("ArchivePDF", ctx, inv, pdf).Return(nil)

		out, err := f.svc.RenderInvoicePDF(ctx, "INV-1")

		require.NoError(t, err)
		assert.Equal(t, pdf, out)
		f.archiver.AssertExpectations(t)
	})

	t.Run("no renderer configured", func(t *testing.T) {
		svc := NewInvoiceService(InvoiceServiceDeps{
			Tiers: billing.DefaultTierCatalog(),
			Rates: billing.NewClientRateCatalog(billing.DefaultClientRules()),
		}, DefaultInvoiceServiceConfig(), nil, nil)

		_, err := svc.RenderInvoicePDF(ctx, "INV-1")
		assert.ErrorIs(t, err, ErrRendererUnavailable)
	})
}

func TestInvoiceService_ListAndAnalytics(t *testing.T) {
	ctx := context.Background()
	f := newInvoiceFixture(DefaultInvoiceServiceConfig())

	invoices := []billing.Invoice{
		{InvoiceID: "INV-202412-a", CustomerID: "a", TotalAmount: dec("10.005"), CreatedAt: "2024-12-19T00:00:00"},
		{InvoiceID: "INV-202411-a", CustomerID: "a", TotalAmount: dec("5"), CreatedAt: "2024-11-30T00:00:00"},
	}
	f.invoices.On("FindByCustomer", ctx, "a").Return(invoices, nil)
	f.invoices.On("FindAll", ctx).Return(invoices, nil)
	f.customers.On("Count", ctx).Return(int64(4), nil)
	f.usage.On("FindRecent", ctx, 0).Return([]billing.UsageEvent{
		usageEvent("a", "2024-12-20T08:00:00", "api_call", "7"),
	}, nil)

	list, err := f.svc.ListInvoices(ctx, InvoiceListQuery{CustomerID: "a"})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	analytics, err := f.svc.GetAnalytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, analytics.TotalCustomers)
	assert.Equal(t, 2, analytics.TotalInvoices)
	assert.True(t, analytics.TotalRevenue.Equal(dec("15.005")))
	require.Len(t, analytics.RecentActivities, 1)
	assert.Equal(t, "60 minutes ago", analytics.RecentActivities[0].TimeAgo)
}
