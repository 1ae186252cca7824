package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	billingapp "github.com/squill/backend/internal/application/billing"
	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/infrastructure/scheduler"
	"github.com/squill/backend/internal/interfaces/http/dto"
	"github.com/squill/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.RegisterValidators()
}

type mockUsageService struct{ mock.Mock }

func (m *mockUsageService) IngestUsage(ctx context.Context, req billingapp.IngestUsageRequest) (*billing.UsageEvent, error) {
	args := m.Called(ctx, req)
	ev, _ := args.Get(0).(*billing.UsageEvent)
	return ev, args.Error(1)
}

func (m *mockUsageService) GetCustomerUsage(ctx context.Context, customerID string, q billingapp.UsageQuery) (*billingapp.CustomerUsageResponse, error) {
	args := m.Called(ctx, customerID, q)
	resp, _ := args.Get(0).(*billingapp.CustomerUsageResponse)
	return resp, args.Error(1)
}

type mockCustomerService struct{ mock.Mock }

func (m *mockCustomerService) CreateCustomer(ctx context.Context, req billingapp.CreateCustomerRequest) (*billing.Customer, error) {
	args := m.Called(ctx, req)
	c, _ := args.Get(0).(*billing.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerService) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	args := m.Called(ctx, customerID)
	c, _ := args.Get(0).(*billing.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerService) UpdateCustomer(ctx context.Context, customerID string, req billingapp.UpdateCustomerRequest) (*billing.Customer, error) {
	args := m.Called(ctx, customerID, req)
	c, _ := args.Get(0).(*billing.Customer)
	return c, args.Error(1)
}

type mockPricingService struct{ mock.Mock }

func (m *mockPricingService) CreateSubscription(ctx context.Context, req billingapp.CreateSubscriptionRequest) (*billingapp.SubscriptionResponse, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(*billingapp.SubscriptionResponse)
	return s, args.Error(1)
}

func (m *mockPricingService) GetSubscription(ctx context.Context, clientID string) (*billingapp.SubscriptionResponse, error) {
	args := m.Called(ctx, clientID)
	s, _ := args.Get(0).(*billingapp.SubscriptionResponse)
	return s, args.Error(1)
}

func (m *mockPricingService) CalculatePricing(ctx context.Context, req billingapp.CalculatePricingRequest) (*billingapp.PricingResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*billingapp.PricingResult)
	return r, args.Error(1)
}

func (m *mockPricingService) UpdatePricingRules(ctx context.Context, clientID string, req billingapp.UpdatePricingRulesRequest) (*billing.Subscription, error) {
	args := m.Called(ctx, clientID, req)
	s, _ := args.Get(0).(*billing.Subscription)
	return s, args.Error(1)
}

func (m *mockPricingService) ListTiers() []*billing.Tier {
	args := m.Called()
	t, _ := args.Get(0).([]*billing.Tier)
	return t
}

type mockInvoiceService struct{ mock.Mock }

func (m *mockInvoiceService) GenerateInvoice(ctx context.Context, req billingapp.GenerateInvoiceRequest) (*billing.Invoice, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*billing.Invoice)
	return inv, args.Error(1)
}

func (m *mockInvoiceService) GenerateInvoices(ctx context.Context, req billingapp.GenerateInvoicesRequest) (*billingapp.BatchInvoiceResult, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*billingapp.BatchInvoiceResult)
	return r, args.Error(1)
}

func (m *mockInvoiceService) GeneratePlatformInvoice(ctx context.Context, req billingapp.GeneratePlatformInvoiceRequest) (*billing.Invoice, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*billing.Invoice)
	return inv, args.Error(1)
}

func (m *mockInvoiceService) ListInvoices(ctx context.Context, q billingapp.InvoiceListQuery) ([]billing.Invoice, error) {
	args := m.Called(ctx, q)
	invs, _ := args.Get(0).([]billing.Invoice)
	return invs, args.Error(1)
}

func (m *mockInvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	args := m.Called(ctx, invoiceID)
	inv, _ := args.Get(0).(*billing.Invoice)
	return inv, args.Error(1)
}

func (m *mockInvoiceService) UpdateInvoiceStatus(ctx context.Context, invoiceID string, req billingapp.UpdateInvoiceStatusRequest) (*billing.Invoice, error) {
	args := m.Called(ctx, invoiceID, req)
	inv, _ := args.Get(0).(*billing.Invoice)
	return inv, args.Error(1)
}

func (m *mockInvoiceService) RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	args := m.Called(ctx, invoiceID)
	pdf, _ := args.Get(0).([]byte)
	return pdf, args.Error(1)
}

func (m *mockInvoiceService) GetAnalytics(ctx context.Context) (*billing.Analytics, error) {
	args := m.Called(ctx)
	a, _ := args.Get(0).(*billing.Analytics)
	return a, args.Error(1)
}

type mockInvoiceRunner struct{ mock.Mock }

func (m *mockInvoiceRunner) RunNow(ctx context.Context) (*billingapp.BatchInvoiceResult, error) {
	args := m.Called(ctx)
	r, _ := args.Get(0).(*billingapp.BatchInvoiceResult)
	return r, args.Error(1)
}

func (m *mockInvoiceRunner) Status() scheduler.InvoiceSchedulerStatus {
	return m.Called().Get(0).(scheduler.InvoiceSchedulerStatus)
}

// performRequest sends body as JSON (nil for none) through router
func performRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeResponse unmarshals the envelope, keeping Data raw
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) (dto.Response, json.RawMessage) {
	t.Helper()
	var envelope struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope), w.Body.String())
	return envelope.Response, envelope.Data
}
