package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/squill/backend/internal/domain/billing"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type mockUsageRepo struct {
	mock.Mock
}

func (m *mockUsageRepo) Save(ctx context.Context, event *billing.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockUsageRepo) FindByCustomer(ctx context.Context, customerID string, filter billing.UsageEventFilter) ([]billing.UsageEvent, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.UsageEvent), args.Error(1)
}

func (m *mockUsageRepo) FindRecent(ctx context.Context, limit int) ([]billing.UsageEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.UsageEvent), args.Error(1)
}

type mockCustomerRepo struct {
	mock.Mock
}

func (m *mockCustomerRepo) Create(ctx context.Context, customer *billing.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *mockCustomerRepo) Update(ctx context.Context, customer *billing.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *mockCustomerRepo) FindByID(ctx context.Context, customerID string) (*billing.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Customer), args.Error(1)
}

func (m *mockCustomerRepo) ExistsByID(ctx context.Context, customerID string) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockCustomerRepo) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockCustomerRepo) ListIDs(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, subscription *billing.Subscription) error {
	args := m.Called(ctx, subscription)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) FindByClientID(ctx context.Context, clientID string) (*billing.Subscription, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Subscription), args.Error(1)
}

type mockInvoiceRepo struct {
	mock.Mock
}

func (m *mockInvoiceRepo) Upsert(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockInvoiceRepo) FindByID(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindByCustomer(ctx context.Context, customerID string) ([]billing.Invoice, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) FindAll(ctx context.Context) ([]billing.Invoice, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.Invoice), args.Error(1)
}

func (m *mockInvoiceRepo) UpdateStatus(ctx context.Context, invoiceID string, status billing.InvoiceStatus) error {
	args := m.Called(ctx, invoiceID, status)
	return args.Error(0)
}

// =============================================================================
// Mock Ports
// =============================================================================

type mockUsageCache struct {
	mock.Mock
}

func (m *mockUsageCache) Get(ctx context.Context, key UsageCacheKey) (*billing.AggregatedUsage, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.AggregatedUsage), args.Error(1)
}

func (m *mockUsageCache) Set(ctx context.Context, key UsageCacheKey, usage *billing.AggregatedUsage) error {
	args := m.Called(ctx, key, usage)
	return args.Error(0)
}

func (m *mockUsageCache) InvalidateCustomer(ctx context.Context, customerID string) error {
	args := m.Called(ctx, customerID)
	return args.Error(0)
}

type mockArchiver struct {
	mock.Mock
}

func (m *mockArchiver) ArchiveInvoice(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *mockArchiver) ArchivePDF(ctx context.Context, invoice *billing.Invoice, pdf []byte) error {
	args := m.Called(ctx, invoice, pdf)
	return args.Error(0)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) RenderPDF(ctx context.Context, invoice *billing.Invoice) ([]byte, error) {
	args := m.Called(ctx, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockMetrics struct {
	mock.Mock
}

func (m *mockMetrics) RecordUsageIngested(ctx context.Context, eventType string, quantity decimal.Decimal) {
	m.Called(ctx, eventType, quantity)
}

func (m *mockMetrics) RecordInvoiceGenerated(ctx context.Context, invoice *billing.Invoice) {
	m.Called(ctx, invoice)
}

func (m *mockMetrics) RecordInvoiceBatch(ctx context.Context, succeeded, failed int, elapsed time.Duration) {
	m.Called(ctx, succeeded, failed, elapsed)
}

// =============================================================================
// Helpers
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func usageOf(pairs ...billing.MetricValue[decimal.Decimal]) *billing.MetricMap[decimal.Decimal] {
	m := billing.MetricMapOf(pairs...)
	return &m
}

func fixedNow(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func usageEvent(customerID, ts, eventType, qty string) billing.UsageEvent {
	e, err := billing.NewUsageEvent(customerID, eventType, dec(qty), ts)
	if err != nil {
		panic(err)
	}
	return *e
}
