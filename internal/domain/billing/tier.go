package billing

import (
	"github.com/shopspring/decimal"
)

// TierName identifies a subscription plan
type TierName string

const (
	TierBasic      TierName = "basic"
	TierPro        TierName = "pro"
	TierEnterprise TierName = "enterprise"
)

// String returns the string representation of TierName
func (t TierName) String() string {
	return string(t)
}

// IsValid returns true if the tier name is one of the known plans
func (t TierName) IsValid() bool {
	switch t {
	case TierBasic, TierPro, TierEnterprise:
		return true
	}
	return false
}

// AllTierNames returns all known tier names, cheapest first
func AllTierNames() []TierName {
	return []TierName{TierBasic, TierPro, TierEnterprise}
}

// ParseTierName parses a string into a TierName
func ParseTierName(s string) (TierName, error) {
	t := TierName(s)
	if !t.IsValid() {
		return "", NewInvalidTierError(s)
	}
	return t, nil
}

// Tier is a subscription plan: a monthly fee, per-metric usage limits and
// the rate charged for each unit over a limit.
type Tier struct {
	Name         TierName                   `json:"name"`
	MonthlyFee   decimal.Decimal            `json:"monthly_fee"`
	Limits       MetricMap[Limit]           `json:"limits"`
	OverageRates MetricMap[decimal.Decimal] `json:"overage_rates"`
}

// LimitFor returns the tier's limit for m
func (t *Tier) LimitFor(m Metric) (Limit, bool) {
	return t.Limits.Get(m)
}

// OverageRateFor returns the overage rate for m, zero when none is configured
func (t *Tier) OverageRateFor(m Metric) decimal.Decimal {
	rate, ok := t.OverageRates.Get(m)
	if !ok {
		return decimal.Zero
	}
	return rate
}

// TierCatalog is an immutable registry of subscription tiers
type TierCatalog struct {
	tiers map[TierName]*Tier
	order []TierName
}

// NewTierCatalog creates a catalog from the given tiers
func NewTierCatalog(tiers ...*Tier) *TierCatalog {
	c := &TierCatalog{tiers: make(map[TierName]*Tier, len(tiers))}
	for _, t := range tiers {
		if _, exists := c.tiers[t.Name]; !exists {
			c.order = append(c.order, t.Name)
		}
		c.tiers[t.Name] = t
	}
	return c
}

// Lookup returns the tier with the given name or an INVALID_TIER error
func (c *TierCatalog) Lookup(name TierName) (*Tier, error) {
	t, ok := c.tiers[name]
	if !ok {
		return nil, NewInvalidTierError(string(name))
	}
	return t, nil
}

// Tiers returns all tiers in registration order
func (c *TierCatalog) Tiers() []*Tier {
	out := make([]*Tier, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tiers[name])
	}
	return out
}

// DefaultTierCatalog returns the platform's published subscription plans
func DefaultTierCatalog() *TierCatalog {
	return NewTierCatalog(
		&Tier{
			Name:       TierBasic,
			MonthlyFee: decimal.RequireFromString("99.00"),
			Limits: MetricMapOf(
				Entry(MetricCustomers, FiniteLimitInt(1000)),
				Entry(MetricAPICalls, FiniteLimitInt(10000)),
				Entry(MetricStorageGB, FiniteLimitInt(10)),
			),
			OverageRates: MetricMapOf(
				Entry(MetricCustomers, decimal.RequireFromString("0.10")),
				Entry(MetricAPICalls, decimal.RequireFromString("0.001")),
				Entry(MetricStorageGB, decimal.RequireFromString("1.00")),
			),
		},
		&Tier{
			Name:       TierPro,
			MonthlyFee: decimal.RequireFromString("299.00"),
			Limits: MetricMapOf(
				Entry(MetricCustomers, FiniteLimitInt(10000)),
				Entry(MetricAPICalls, FiniteLimitInt(100000)),
				Entry(MetricStorageGB, FiniteLimitInt(100)),
			),
			OverageRates: MetricMapOf(
				Entry(MetricCustomers, decimal.RequireFromString("0.08")),
				Entry(MetricAPICalls, decimal.RequireFromString("0.0008")),
				Entry(MetricStorageGB, decimal.RequireFromString("0.80")),
			),
		},
		&Tier{
			Name:       TierEnterprise,
			MonthlyFee: decimal.RequireFromString("999.00"),
			Limits: MetricMapOf(
				Entry(MetricCustomers, Unbounded()),
				Entry(MetricAPICalls, Unbounded()),
				Entry(MetricStorageGB, Unbounded()),
			),
			OverageRates: MetricMapOf(
				Entry(MetricCustomers, decimal.Zero),
				Entry(MetricAPICalls, decimal.Zero),
				Entry(MetricStorageGB, decimal.Zero),
			),
		},
	)
}
