package billing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/squill/backend/internal/domain/billing"
)

// UsageService ingests usage events and serves aggregated usage
type UsageService struct {
	usageRepo  billing.UsageEventRepository
	cache      UsageCache
	metrics    BillingMetrics
	aggregator billing.UsagePeriodAggregator
	logger     *zap.Logger
	now        func() time.Time
}

// UsageServiceOption configures a UsageService
type UsageServiceOption func(*UsageService)

// WithUsageCache enables cache-aside reads of aggregated usage
func WithUsageCache(cache UsageCache) UsageServiceOption {
	return func(s *UsageService) {
		s.cache = cache
	}
}

// WithUsageMetrics records ingestion metrics
func WithUsageMetrics(metrics BillingMetrics) UsageServiceOption {
	return func(s *UsageService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithUsageClock overrides the ingestion clock
func WithUsageClock(now func() time.Time) UsageServiceOption {
	return func(s *UsageService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewUsageService creates a new UsageService
func NewUsageService(usageRepo billing.UsageEventRepository, logger *zap.Logger, opts ...UsageServiceOption) *UsageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &UsageService{
		usageRepo:  usageRepo,
		metrics:    noopMetrics{},
		aggregator: billing.NewUsagePeriodAggregator(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestUsage validates and stores one usage event stamped with the server clock
func (s *UsageService) IngestUsage(ctx context.Context, req IngestUsageRequest) (*billing.UsageEvent, error) {
	quantity, err := billing.ParsePositiveQuantity(req.Quantity.String())
	if err != nil {
		return nil, err
	}

	event, err := billing.NewUsageEvent(req.CustomerID, req.EventType, quantity, billing.FormatTimestamp(s.now().UTC()))
	if err != nil {
		return nil, err
	}
	if len(req.Metadata) > 0 {
		event.WithMetadata(req.Metadata)
	}

	if _, known := event.Metric(); !known {
		s.logger.Debug("Ingesting usage for unpriced event type",
			zap.String("customer_id", event.CustomerID),
			zap.String("event_type", event.EventType),
		)
	}

	if err := s.usageRepo.Save(ctx, event); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.InvalidateCustomer(ctx, event.CustomerID); err != nil {
			s.logger.Warn("Failed to invalidate usage cache",
				zap.String("customer_id", event.CustomerID),
				zap.Error(err),
			)
		}
	}

	s.metrics.RecordUsageIngested(ctx, event.EventType, event.Quantity)
	s.logger.Info("Usage event recorded",
		zap.String("event_id", event.ID.String()),
		zap.String("customer_id", event.CustomerID),
		zap.String("event_type", event.EventType),
		zap.String("quantity", event.Quantity.String()),
	)
	return event, nil
}

// GetCustomerUsage aggregates a customer's usage over the inclusive window in q
func (s *UsageService) GetCustomerUsage(ctx context.Context, customerID string, q UsageQuery) (*CustomerUsageResponse, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	key := UsageCacheKey{CustomerID: customerID, Start: q.Start, End: q.End, Daily: q.Daily}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Usage cache read failed", zap.String("customer_id", customerID), zap.Error(err))
		} else if cached != nil {
			return &CustomerUsageResponse{
				CustomerID: customerID,
				Start:      q.Start,
				End:        q.End,
				Usage:      *cached,
				Cached:     true,
			}, nil
		}
	}

	events, err := s.usageRepo.FindByCustomer(ctx, customerID, billing.UsageEventFilter{}.WithWindow(q.Start, q.End))
	if err != nil {
		return nil, err
	}

	var opts []billing.AggregateOption
	if q.Daily {
		opts = append(opts, billing.WithDailyBreakdown())
	}
	usage := s.aggregator.Aggregate(events, q.Start, q.End, opts...)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &usage); err != nil {
			s.logger.Warn("Usage cache write failed", zap.String("customer_id", customerID), zap.Error(err))
		}
	}

	return &CustomerUsageResponse{
		CustomerID: customerID,
		Start:      q.Start,
		End:        q.End,
		Usage:      usage,
	}, nil
}
