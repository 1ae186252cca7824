package billing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
)

// PricingService manages platform subscriptions and prices usage against them
type PricingService struct {
	subscriptionRepo billing.SubscriptionRepository
	tiers            *billing.TierCatalog
	platform         *billing.SubscriptionBillingCalculator
	client           *billing.ClientBillingCalculator
	rates            *billing.ClientRateCatalog
	limits           *billing.LimitValidator
	logger           *zap.Logger
	now              func() time.Time
}

// NewPricingService creates a new PricingService
func NewPricingService(
	subscriptionRepo billing.SubscriptionRepository,
	tiers *billing.TierCatalog,
	rates *billing.ClientRateCatalog,
	logger *zap.Logger,
) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricingService{
		subscriptionRepo: subscriptionRepo,
		tiers:            tiers,
		platform:         billing.NewSubscriptionBillingCalculator(tiers),
		client:           billing.NewClientBillingCalculator(rates.Defaults()),
		rates:            rates,
		limits:           billing.NewLimitValidator(tiers),
		logger:           logger,
		now:              time.Now,
	}
}

// CreateSubscription subscribes a client to a tier
func (s *PricingService) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*SubscriptionResponse, error) {
	tierName, err := billing.ParseTierName(req.SubscriptionTier)
	if err != nil {
		return nil, err
	}

	_, err = s.subscriptionRepo.FindByClientID(ctx, req.ClientID)
	switch {
	case err == nil:
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Subscription for this client already exists")
	case !errors.Is(err, shared.ErrNotFound):
		return nil, err
	}

	now := s.now().UTC()
	sub, err := billing.NewSubscription(req.ClientID, req.CompanyName, req.Email, tierName, now)
	if err != nil {
		return nil, err
	}
	if req.PricingRules != nil && req.PricingRules.Len() > 0 {
		if err := sub.SetPricingRules(*req.PricingRules, now); err != nil {
			return nil, err
		}
	}

	if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Subscription created",
		zap.String("client_id", sub.ClientID),
		zap.String("tier", sub.SubscriptionTier.String()),
	)
	return s.toResponse(sub)
}

// GetSubscription returns a subscription with its tier definition
func (s *PricingService) GetSubscription(ctx context.Context, clientID string) (*SubscriptionResponse, error) {
	sub, err := s.subscriptionRepo.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(sub)
}

// CalculatePricing prices usage for a subscribed client. Missing client usage
// events yield an empty client bill.
func (s *PricingService) CalculatePricing(ctx context.Context, req CalculatePricingRequest) (*PricingResult, error) {
	sub, err := s.subscriptionRepo.FindByClientID(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	usage := billing.NewMetricMap[decimal.Decimal]()
	if req.UsageData != nil {
		usage = *req.UsageData
	}
	s.logUnpriced(req.ClientID, usage.Keys())

	platform, err := s.platform.Compute(sub.SubscriptionTier, usage)
	if err != nil {
		return nil, err
	}

	rules := s.rates.ForSubscription(sub)
	client := s.client.Compute(&rules, req.ClientUsageEvents)

	within, violations, err := s.limits.Validate(sub.SubscriptionTier, usage)
	if err != nil {
		return nil, err
	}

	return &PricingResult{
		ClientID:         sub.ClientID,
		SubscriptionTier: sub.SubscriptionTier,
		PlatformBilling:  platform,
		ClientBilling:    client,
		WithinLimits:     within,
		LimitViolations:  violations,
	}, nil
}

// UpdatePricingRules replaces the end-customer rules of an existing subscription
func (s *PricingService) UpdatePricingRules(ctx context.Context, clientID string, req UpdatePricingRulesRequest) (*billing.Subscription, error) {
	sub, err := s.subscriptionRepo.FindByClientID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if err := sub.SetPricingRules(req.PricingRules, s.now().UTC()); err != nil {
		return nil, err
	}

	if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.Info("Pricing rules updated",
		zap.String("client_id", clientID),
		zap.Int("rules", req.PricingRules.Len()),
	)
	return sub, nil
}

// ListTiers returns the tier catalog in display order
func (s *PricingService) ListTiers() []*billing.Tier {
	return s.tiers.Tiers()
}

func (s *PricingService) toResponse(sub *billing.Subscription) (*SubscriptionResponse, error) {
	tier, err := s.tiers.Lookup(sub.SubscriptionTier)
	if err != nil {
		return nil, err
	}
	return &SubscriptionResponse{Subscription: sub, TierDetails: tier}, nil
}

func (s *PricingService) logUnpriced(clientID string, metrics []billing.Metric) {
	for _, m := range metrics {
		if !m.IsValid() {
			s.logger.Debug("Skipping unknown metric",
				zap.String("client_id", clientID),
				zap.String("metric", m.String()),
			)
		}
	}
}
