package billing

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
	"github.com/squill/backend/internal/domain/shared/valueobject"
)

// ErrRendererUnavailable is returned when no PDF renderer is configured
var ErrRendererUnavailable = shared.NewDomainError("RENDERER_UNAVAILABLE", "Invoice PDF rendering is not enabled")

// InvoiceServiceConfig holds configuration for the invoice service
type InvoiceServiceConfig struct {
	// Concurrency bounds parallel invoice generation in a batch
	Concurrency int
	// DueDays is the payment term added to the period end
	DueDays int
	// Currency is stamped on every invoice
	Currency valueobject.Currency
	// ArchivePDF stores rendered PDFs next to the archived invoice JSON
	ArchivePDF bool
}

// DefaultInvoiceServiceConfig returns default configuration
func DefaultInvoiceServiceConfig() InvoiceServiceConfig {
	return InvoiceServiceConfig{
		Concurrency: 8,
		DueDays:     billing.DefaultDueDays,
		Currency:    valueobject.DefaultCurrency,
		ArchivePDF:  true,
	}
}

// InvoiceServiceDeps groups the collaborators of InvoiceService
type InvoiceServiceDeps struct {
	Customers     billing.CustomerRepository
	Usage         billing.UsageEventRepository
	Subscriptions billing.SubscriptionRepository
	Invoices      billing.InvoiceRepository
	Tiers         *billing.TierCatalog
	Rates         *billing.ClientRateCatalog

	// Optional
	Archiver InvoiceArchiver
	Renderer InvoiceRenderer
	Metrics  BillingMetrics
}

// InvoiceService generates, stores and reports on invoices
type InvoiceService struct {
	customerRepo     billing.CustomerRepository
	usageRepo        billing.UsageEventRepository
	subscriptionRepo billing.SubscriptionRepository
	invoiceRepo      billing.InvoiceRepository

	aggregator billing.UsagePeriodAggregator
	platform   *billing.SubscriptionBillingCalculator
	client     *billing.ClientBillingCalculator
	rates      *billing.ClientRateCatalog
	assembler  *billing.InvoiceAssembler

	archiver InvoiceArchiver
	renderer InvoiceRenderer
	metrics  BillingMetrics

	config InvoiceServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewInvoiceService creates a new InvoiceService. A nil clock uses time.Now.
func NewInvoiceService(deps InvoiceServiceDeps, config InvoiceServiceConfig, logger *zap.Logger, now func() time.Time) *InvoiceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	defaults := DefaultInvoiceServiceConfig()
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.DueDays <= 0 {
		config.DueDays = defaults.DueDays
	}
	if config.Currency == "" {
		config.Currency = defaults.Currency
	}

	s := &InvoiceService{
		customerRepo:     deps.Customers,
		usageRepo:        deps.Usage,
		subscriptionRepo: deps.Subscriptions,
		invoiceRepo:      deps.Invoices,
		aggregator:       billing.NewUsagePeriodAggregator(),
		platform:         billing.NewSubscriptionBillingCalculator(deps.Tiers),
		client:           billing.NewClientBillingCalculator(deps.Rates.Defaults()),
		rates:            deps.Rates,
		assembler: billing.NewInvoiceAssembler(
			billing.WithDueDays(config.DueDays),
			billing.WithCurrency(config.Currency),
			billing.WithClock(func() time.Time { return now().UTC() }),
		),
		archiver: deps.Archiver,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		config:   config,
		logger:   logger,
		now:      now,
	}
	if s.archiver == nil {
		s.archiver = noopArchiver{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	return s
}

// GenerateInvoice bills one customer's usage for the selected period
func (s *InvoiceService) GenerateInvoice(ctx context.Context, req GenerateInvoiceRequest) (*billing.Invoice, error) {
	period, err := billing.ResolvePeriod(billing.PeriodSelector(req.BillingPeriod), s.now())
	if err != nil {
		return nil, err
	}
	return s.generateForCustomer(ctx, req.CustomerID, period)
}

// GenerateInvoices bills many customers in parallel. Failures are collected
// per customer; the batch itself only fails when the customer list cannot be
// loaded or the context is cancelled.
func (s *InvoiceService) GenerateInvoices(ctx context.Context, req GenerateInvoicesRequest) (*BatchInvoiceResult, error) {
	period, err := billing.ResolvePeriod(billing.PeriodSelector(req.BillingPeriod), s.now())
	if err != nil {
		return nil, err
	}

	customerIDs := req.CustomerIDs
	if len(customerIDs) == 0 {
		customerIDs, err = s.customerRepo.ListIDs(ctx)
		if err != nil {
			return nil, err
		}
	}

	started := time.Now()
	invoices := make([]*billing.Invoice, len(customerIDs))
	failures := make([]*InvoiceFailure, len(customerIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)
	for i, customerID := range customerIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			inv, err := s.generateForCustomer(gctx, customerID, period)
			if err != nil {
				s.logger.Warn("Invoice generation failed",
					zap.String("customer_id", customerID),
					zap.Error(err),
				)
				failures[i] = &InvoiceFailure{CustomerID: customerID, Error: err.Error()}
				return nil
			}
			invoices[i] = inv
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BatchInvoiceResult{
		PeriodStart: period.StartString(),
		PeriodEnd:   period.EndString(),
		Invoices:    make([]*billing.Invoice, 0, len(customerIDs)),
		Failures:    make([]InvoiceFailure, 0),
	}
	for i := range customerIDs {
		if invoices[i] != nil {
			result.Invoices = append(result.Invoices, invoices[i])
		}
		if failures[i] != nil {
			result.Failures = append(result.Failures, *failures[i])
		}
	}

	s.metrics.RecordInvoiceBatch(ctx, len(result.Invoices), len(result.Failures), time.Since(started))
	s.logger.Info("Invoice batch completed",
		zap.String("period_start", result.PeriodStart),
		zap.Int("generated", len(result.Invoices)),
		zap.Int("failed", len(result.Failures)),
	)
	return result, nil
}

// GeneratePlatformInvoice bills a subscribed client its tier fee plus overage
// on the client's own usage in the period
func (s *InvoiceService) GeneratePlatformInvoice(ctx context.Context, req GeneratePlatformInvoiceRequest) (*billing.Invoice, error) {
	period, err := billing.ResolvePeriod(billing.PeriodSelector(req.BillingPeriod), s.now())
	if err != nil {
		return nil, err
	}

	sub, err := s.subscriptionRepo.FindByClientID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Subscription is not active")
	}

	events, err := s.usageRepo.FindByCustomer(ctx, sub.ClientID, billing.UsageEventFilter{}.WithPeriod(period))
	if err != nil {
		return nil, err
	}
	usage := s.aggregator.AggregatePeriod(events, period)

	result, err := s.platform.Compute(sub.SubscriptionTier, usage.Totals)
	if err != nil {
		return nil, err
	}

	payer := &billing.Customer{
		CustomerID:  sub.ClientID,
		Name:        sub.CompanyName,
		Email:       sub.Email,
		PricingTier: sub.SubscriptionTier,
	}
	inv := s.assembler.Assemble(payer, period, usage, result)
	inv.InvoiceID = billing.PlatformInvoiceID(sub.ClientID, period)

	if err := s.store(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns invoices newest first, optionally for one customer
func (s *InvoiceService) ListInvoices(ctx context.Context, q InvoiceListQuery) ([]billing.Invoice, error) {
	if q.CustomerID != "" {
		return s.invoiceRepo.FindByCustomer(ctx, q.CustomerID)
	}
	return s.invoiceRepo.FindAll(ctx)
}

// GetInvoice returns an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	return s.invoiceRepo.FindByID(ctx, invoiceID)
}

// UpdateInvoiceStatus moves an invoice forward in its lifecycle
func (s *InvoiceService) UpdateInvoiceStatus(ctx context.Context, invoiceID string, req UpdateInvoiceStatusRequest) (*billing.Invoice, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	previous := inv.Status
	if err := inv.TransitionTo(billing.InvoiceStatus(req.Status)); err != nil {
		return nil, err
	}

	if err := s.invoiceRepo.UpdateStatus(ctx, inv.InvoiceID, inv.Status); err != nil {
		return nil, err
	}

	s.logger.Info("Invoice status updated",
		zap.String("invoice_id", inv.InvoiceID),
		zap.String("from", string(previous)),
		zap.String("to", string(inv.Status)),
	)
	return inv, nil
}

// RenderInvoicePDF renders an invoice as PDF and archives the document
func (s *InvoiceService) RenderInvoicePDF(ctx context.Context, invoiceID string) ([]byte, error) {
	if s.renderer == nil {
		return nil, ErrRendererUnavailable
	}

	inv, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.RenderPDF(ctx, inv)
	if err != nil {
		return nil, err
	}

	if s.config.ArchivePDF {
		if err := s.archiver.ArchivePDF(ctx, inv, pdf); err != nil {
			s.logger.Warn("Failed to archive invoice PDF",
				zap.String("invoice_id", inv.InvoiceID),
				zap.Error(err),
			)
		}
	}
	return pdf, nil
}

// GetAnalytics summarizes revenue, invoices and usage
func (s *InvoiceService) GetAnalytics(ctx context.Context) (*billing.Analytics, error) {
	invoices, err := s.invoiceRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	customers, err := s.customerRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.usageRepo.FindRecent(ctx, 0)
	if err != nil {
		return nil, err
	}

	analytics := billing.ComputeAnalytics(invoices, int(customers), events, s.now().UTC())
	return &analytics, nil
}

func (s *InvoiceService) generateForCustomer(ctx context.Context, customerID string, period billing.BillingPeriod) (*billing.Invoice, error) {
	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	events, err := s.usageRepo.FindByCustomer(ctx, customerID, billing.UsageEventFilter{}.WithPeriod(period))
	if err != nil {
		return nil, err
	}

	rules, err := s.clientRules(ctx, customerID)
	if err != nil {
		return nil, err
	}

	usage := s.aggregator.AggregatePeriod(events, period)
	for _, m := range usage.Totals.Keys() {
		if !m.IsValid() {
			s.logger.Debug("Skipping unknown metric",
				zap.String("customer_id", customerID),
				zap.String("metric", m.String()),
			)
		}
	}

	result := s.client.Compute(&rules, billing.GroupQuantities(events, period.StartString(), period.EndString()))
	inv := s.assembler.Assemble(customer, period, usage, result)

	if err := s.store(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// clientRules resolves the end-customer rules for customerID through the
// rate catalog. Customers without a subscription get the catalog defaults.
func (s *InvoiceService) clientRules(ctx context.Context, customerID string) (billing.ClientRules, error) {
	if s.subscriptionRepo == nil {
		return s.rates.RulesFor(customerID), nil
	}
	sub, err := s.subscriptionRepo.FindByClientID(ctx, customerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return s.rates.RulesFor(customerID), nil
		}
		return billing.ClientRules{}, err
	}
	return s.rates.ForSubscription(sub), nil
}

func (s *InvoiceService) store(ctx context.Context, inv *billing.Invoice) error {
	if err := s.invoiceRepo.Upsert(ctx, inv); err != nil {
		return err
	}

	if err := s.archiver.ArchiveInvoice(ctx, inv); err != nil {
		s.logger.Warn("Failed to archive invoice",
			zap.String("invoice_id", inv.InvoiceID),
			zap.Error(err),
		)
	}

	s.metrics.RecordInvoiceGenerated(ctx, inv)
	s.logger.Info("Invoice generated",
		zap.String("invoice_id", inv.InvoiceID),
		zap.String("customer_id", inv.CustomerID),
		zap.String("total_amount", inv.DisplayTotal()),
		zap.Int("total_events", inv.TotalEvents),
	)
	return nil
}
