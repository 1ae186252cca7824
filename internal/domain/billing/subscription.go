package billing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/squill/backend/internal/domain/shared"
)

// SubscriptionStatus is the lifecycle state of a client subscription
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionSuspended SubscriptionStatus = "suspended"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// IsValid returns true if the status is known
func (s SubscriptionStatus) IsValid() bool {
	switch s {
	case SubscriptionActive, SubscriptionSuspended, SubscriptionCancelled:
		return true
	}
	return false
}

// Subscription binds a client to a tier and, optionally, to its own
// end-customer pricing rules.
type Subscription struct {
	ClientID         string                     `json:"client_id"`
	CompanyName      string                     `json:"company_name"`
	Email            string                     `json:"email"`
	SubscriptionTier TierName                   `json:"subscription_tier"`
	Status           SubscriptionStatus         `json:"status"`
	CurrentUsage     MetricMap[decimal.Decimal] `json:"current_usage"`
	PricingRules     *ClientRules               `json:"pricing_rules,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// NewSubscription creates an active subscription with zeroed usage counters
func NewSubscription(clientID, companyName, email string, tier TierName, now time.Time) (*Subscription, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Client ID cannot be empty")
	}
	if strings.TrimSpace(companyName) == "" {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Company name cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return nil, shared.NewDomainError("INVALID_SUBSCRIPTION", "Email cannot be empty")
	}
	if !tier.IsValid() {
		return nil, NewInvalidTierError(string(tier))
	}

	return &Subscription{
		ClientID:         clientID,
		CompanyName:      companyName,
		Email:            email,
		SubscriptionTier: tier,
		Status:           SubscriptionActive,
		CurrentUsage: MetricMapOf(
			Entry(MetricCustomers, decimal.Zero),
			Entry(MetricAPICalls, decimal.Zero),
			Entry(MetricStorageGB, decimal.Zero),
		),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetPricingRules validates and replaces the client's end-customer rules.
// Rules must reference known metrics.
func (s *Subscription) SetPricingRules(rules ClientRules, now time.Time) error {
	if rules.Len() == 0 {
		return shared.NewDomainError("INVALID_PRICING_RULE", "Pricing rules cannot be empty")
	}
	normalized := NewMetricMap[ClientPricingRule]()
	var ruleErr error
	rules.Each(func(m Metric, r ClientPricingRule) {
		if ruleErr != nil {
			return
		}
		if !m.IsValid() {
			ruleErr = shared.NewDomainError("INVALID_PRICING_RULE", "Unknown metric in pricing rules: "+m.String())
			return
		}
		r.Metric = m
		if err := r.Validate(); err != nil {
			ruleErr = err
			return
		}
		normalized.Set(m, r)
	})
	if ruleErr != nil {
		return ruleErr
	}
	s.PricingRules = &normalized
	s.UpdatedAt = now
	return nil
}

// IsActive returns true when the subscription is billable
func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionActive
}
