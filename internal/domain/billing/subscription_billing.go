package billing

import (
	"github.com/shopspring/decimal"
)

// OverageDetail is the charge for usage above a tier limit on one metric
type OverageDetail struct {
	Usage         decimal.Decimal `json:"usage"`
	Limit         Limit           `json:"limit"`
	OverageAmount decimal.Decimal `json:"overage_amount"`
	Rate          decimal.Decimal `json:"rate"`
	Cost          decimal.Decimal `json:"cost"`
}

// SubscriptionBillingResult is what the platform charges a client for a period
type SubscriptionBillingResult struct {
	Tier       TierName                 `json:"tier"`
	MonthlyFee decimal.Decimal          `json:"monthly_fee"`
	Overages   MetricMap[OverageDetail] `json:"overages"`
	TotalCost  decimal.Decimal          `json:"total_cost"`
}

// OverageTotal returns the sum of all overage costs
func (r *SubscriptionBillingResult) OverageTotal() decimal.Decimal {
	total := decimal.Zero
	r.Overages.Each(func(_ Metric, d OverageDetail) {
		total = total.Add(d.Cost)
	})
	return total
}

// SubscriptionBillingCalculator prices a client's usage against its tier
type SubscriptionBillingCalculator struct {
	catalog *TierCatalog
}

// NewSubscriptionBillingCalculator creates a calculator backed by catalog
func NewSubscriptionBillingCalculator(catalog *TierCatalog) *SubscriptionBillingCalculator {
	return &SubscriptionBillingCalculator{catalog: catalog}
}

// Compute returns the monthly fee plus overage charges for usage.
// Overages are emitted in the iteration order of usage. Metrics the tier
// does not limit, and unbounded limits, never produce an overage.
func (c *SubscriptionBillingCalculator) Compute(tierName TierName, usage MetricMap[decimal.Decimal]) (*SubscriptionBillingResult, error) {
	tier, err := c.catalog.Lookup(tierName)
	if err != nil {
		return nil, err
	}

	result := &SubscriptionBillingResult{
		Tier:       tier.Name,
		MonthlyFee: tier.MonthlyFee,
		Overages:   NewMetricMap[OverageDetail](),
		TotalCost:  tier.MonthlyFee,
	}

	usage.Each(func(m Metric, used decimal.Decimal) {
		if !m.IsValid() {
			return
		}
		limit, ok := tier.LimitFor(m)
		if !ok {
			return
		}
		overage, exceeded := limit.Exceeds(used)
		if !exceeded {
			return
		}

		rate := tier.OverageRateFor(m)
		cost := overage.Mul(rate)
		result.Overages.Set(m, OverageDetail{
			Usage:         used,
			Limit:         limit,
			OverageAmount: overage,
			Rate:          rate,
			Cost:          cost,
		})
		result.TotalCost = result.TotalCost.Add(cost)
	})

	return result, nil
}
