package billing

import (
	"github.com/shopspring/decimal"
)

// LineItem is the end-customer charge for one metric
type LineItem struct {
	TotalQuantity    decimal.Decimal `json:"total_quantity"`
	FreeQuantity     decimal.Decimal `json:"free_quantity"`
	BillableQuantity decimal.Decimal `json:"billable_quantity"`
	Rate             decimal.Decimal `json:"rate"`
	Cost             decimal.Decimal `json:"cost"`
}

// ClientBillingResult is what a client charges its end customers for a period
type ClientBillingResult struct {
	BillingDetails MetricMap[LineItem] `json:"billing_details"`
	TotalCost      decimal.Decimal     `json:"total_cost"`
}

// ClientBillingCalculator prices end-customer usage with free-tier deduction
type ClientBillingCalculator struct {
	defaults ClientRules
}

// NewClientBillingCalculator creates a calculator that falls back to defaults
// when a client has no rules of its own.
func NewClientBillingCalculator(defaults ClientRules) *ClientBillingCalculator {
	return &ClientBillingCalculator{defaults: defaults}
}

// Compute bills every metric in usageEvents that has a rule. A nil rules
// argument selects the calculator's defaults. Metrics without a rule are
// skipped.
func (c *ClientBillingCalculator) Compute(rules *ClientRules, usageEvents MetricMap[[]decimal.Decimal]) *ClientBillingResult {
	active := c.defaults
	if rules != nil {
		active = *rules
	}

	result := &ClientBillingResult{
		BillingDetails: NewMetricMap[LineItem](),
		TotalCost:      decimal.Zero,
	}

	usageEvents.Each(func(m Metric, values []decimal.Decimal) {
		if !m.IsValid() {
			return
		}
		rule, ok := active.Get(m)
		if !ok {
			return
		}

		item := PriceLine(rule, decimal.Sum(decimal.Zero, values...))
		result.BillingDetails.Set(m, item)
		result.TotalCost = result.TotalCost.Add(item.Cost)
	})

	return result
}

// PriceLine applies a single rule to a total quantity
func PriceLine(rule ClientPricingRule, total decimal.Decimal) LineItem {
	free := decimal.Min(total, rule.FreeTier)
	billable := decimal.Max(decimal.Zero, total.Sub(rule.FreeTier))
	return LineItem{
		TotalQuantity:    total,
		FreeQuantity:     free,
		BillableQuantity: billable,
		Rate:             rule.Rate,
		Cost:             billable.Mul(rule.Rate),
	}
}
