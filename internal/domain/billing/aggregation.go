package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// AggregatedUsage is usage reduced over a window. Totals are keyed by event
// type in first-seen order, including event types no rule prices.
type AggregatedUsage struct {
	Totals     MetricMap[decimal.Decimal]            `json:"totals"`
	EventCount int                                   `json:"event_count"`
	ByDay      map[string]MetricMap[decimal.Decimal] `json:"by_day,omitempty"`
}

// Total returns the total for m, zero when absent
func (a AggregatedUsage) Total(m Metric) decimal.Decimal {
	v, ok := a.Totals.Get(m)
	if !ok {
		return decimal.Zero
	}
	return v
}

// Days returns the keys of ByDay in ascending order
func (a AggregatedUsage) Days() []string {
	days := make([]string, 0, len(a.ByDay))
	for d := range a.ByDay {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}

// AggregateOption configures an aggregation run
type AggregateOption func(*aggregateOptions)

type aggregateOptions struct {
	daily bool
}

// WithDailyBreakdown also sums usage per (date, event type)
func WithDailyBreakdown() AggregateOption {
	return func(o *aggregateOptions) {
		o.daily = true
	}
}

// UsagePeriodAggregator reduces raw usage events to per-metric totals
type UsagePeriodAggregator struct{}

// NewUsagePeriodAggregator creates an aggregator
func NewUsagePeriodAggregator() UsagePeriodAggregator {
	return UsagePeriodAggregator{}
}

// Aggregate sums events whose timestamp lies in [windowStart, windowEnd].
// Bounds are compared as strings; both must use the FormatTimestamp layout.
// An empty bound leaves that side of the window open.
func (UsagePeriodAggregator) Aggregate(events []UsageEvent, windowStart, windowEnd string, opts ...AggregateOption) AggregatedUsage {
	var o aggregateOptions
	for _, opt := range opts {
		opt(&o)
	}

	result := AggregatedUsage{Totals: NewMetricMap[decimal.Decimal]()}
	if o.daily {
		result.ByDay = make(map[string]MetricMap[decimal.Decimal])
	}

	for i := range events {
		e := &events[i]
		if windowStart != "" && e.Timestamp < windowStart {
			continue
		}
		if windowEnd != "" && e.Timestamp > windowEnd {
			continue
		}

		key := Metric(e.EventType)
		current, _ := result.Totals.Get(key)
		result.Totals.Set(key, current.Add(e.Quantity))
		result.EventCount++

		if o.daily {
			day := e.Day()
			bucket, ok := result.ByDay[day]
			if !ok {
				bucket = NewMetricMap[decimal.Decimal]()
			}
			dayTotal, _ := bucket.Get(key)
			bucket.Set(key, dayTotal.Add(e.Quantity))
			result.ByDay[day] = bucket
		}
	}

	return result
}

// AggregatePeriod is Aggregate over the formatted bounds of period
func (a UsagePeriodAggregator) AggregatePeriod(events []UsageEvent, period BillingPeriod, opts ...AggregateOption) AggregatedUsage {
	return a.Aggregate(events, period.StartString(), period.EndString(), opts...)
}

// GroupQuantities collects the quantities of in-window events per event type,
// the input shape of ClientBillingCalculator.
func GroupQuantities(events []UsageEvent, windowStart, windowEnd string) MetricMap[[]decimal.Decimal] {
	out := NewMetricMap[[]decimal.Decimal]()
	for i := range events {
		e := &events[i]
		if windowStart != "" && e.Timestamp < windowStart {
			continue
		}
		if windowEnd != "" && e.Timestamp > windowEnd {
			continue
		}
		key := Metric(e.EventType)
		values, _ := out.Get(key)
		out.Set(key, append(values, e.Quantity))
	}
	return out
}
