package billing

import (
	"github.com/shopspring/decimal"
	"github.com/squill/backend/internal/domain/shared"
)

// ClientPricingRule is what a client charges its end customers for one metric:
// the first FreeTier units are free, the rest cost Rate each.
type ClientPricingRule struct {
	Metric   Metric          `json:"metric"`
	Rate     decimal.Decimal `json:"rate"`
	FreeTier decimal.Decimal `json:"free_tier"`
}

// Validate checks the rule's invariants
func (r ClientPricingRule) Validate() error {
	if r.Metric == "" {
		return shared.NewDomainError("INVALID_PRICING_RULE", "Pricing rule metric cannot be empty")
	}
	if r.Rate.IsNegative() {
		return shared.NewDomainError("INVALID_PRICING_RULE", "Pricing rule rate cannot be negative")
	}
	if r.FreeTier.IsNegative() {
		return shared.NewDomainError("INVALID_PRICING_RULE", "Pricing rule free tier cannot be negative")
	}
	return nil
}

// ClientRules maps a metric to the rule that prices it
type ClientRules = MetricMap[ClientPricingRule]

// DefaultClientRules returns the rule set applied when a client has no override
func DefaultClientRules() ClientRules {
	return MetricMapOf(
		Entry(MetricAPICall, ClientPricingRule{
			Metric:   MetricAPICall,
			Rate:     decimal.RequireFromString("0.01"),
			FreeTier: decimal.NewFromInt(100),
		}),
		Entry(MetricStorageGB, ClientPricingRule{
			Metric:   MetricStorageGB,
			Rate:     decimal.RequireFromString("5.00"),
			FreeTier: decimal.NewFromInt(1),
		}),
		Entry(MetricTransaction, ClientPricingRule{
			Metric:   MetricTransaction,
			Rate:     decimal.RequireFromString("0.30"),
			FreeTier: decimal.NewFromInt(10),
		}),
	)
}

// ClientRateCatalog resolves the rule set for a client: its override when one
// was loaded, the defaults otherwise.
type ClientRateCatalog struct {
	defaults  ClientRules
	overrides map[string]ClientRules
}

// NewClientRateCatalog creates a catalog with the given defaults
func NewClientRateCatalog(defaults ClientRules) *ClientRateCatalog {
	return &ClientRateCatalog{
		defaults:  defaults,
		overrides: make(map[string]ClientRules),
	}
}

// WithOverride returns a copy of the catalog with rules registered for clientID
func (c *ClientRateCatalog) WithOverride(clientID string, rules ClientRules) *ClientRateCatalog {
	next := &ClientRateCatalog{
		defaults:  c.defaults,
		overrides: make(map[string]ClientRules, len(c.overrides)+1),
	}
	for k, v := range c.overrides {
		next.overrides[k] = v
	}
	next.overrides[clientID] = rules
	return next
}

// RulesFor returns the rules that apply to clientID
func (c *ClientRateCatalog) RulesFor(clientID string) ClientRules {
	if rules, ok := c.overrides[clientID]; ok {
		return rules
	}
	return c.defaults
}

// ForSubscription resolves the rules for sub's client. Rules stored on the
// subscription take precedence over anything registered in the catalog.
func (c *ClientRateCatalog) ForSubscription(sub *Subscription) ClientRules {
	if sub == nil {
		return c.defaults
	}
	catalog := c
	if sub.PricingRules != nil {
		catalog = c.WithOverride(sub.ClientID, *sub.PricingRules)
	}
	return catalog.RulesFor(sub.ClientID)
}

// Defaults returns the catalog's fallback rules
func (c *ClientRateCatalog) Defaults() ClientRules {
	return c.defaults
}
