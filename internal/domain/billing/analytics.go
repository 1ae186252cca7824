package billing

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Analytics summarizes revenue and usage across all customers
type Analytics struct {
	TotalRevenue     decimal.Decimal            `json:"total_revenue"`
	TotalCustomers   int                        `json:"total_customers"`
	TotalInvoices    int                        `json:"total_invoices"`
	AvgInvoiceAmount decimal.Decimal            `json:"avg_invoice_amount"`
	MonthlyRevenue   map[string]decimal.Decimal `json:"monthly_revenue"`
	UsageByType      MetricMap[decimal.Decimal] `json:"usage_by_type"`
	RecentActivities []Activity                 `json:"recent_activities"`
}

// Activity is a recent usage event rendered for a dashboard feed
type Activity struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	CustomerID  string `json:"customer_id"`
	Timestamp   string `json:"timestamp"`
	TimeAgo     string `json:"time_ago"`
}

// MaxRecentActivities bounds the activity feed
const MaxRecentActivities = 10

// ComputeAnalytics aggregates invoices and recent usage. Revenue sums the
// exact invoice totals; months are keyed by the created_at YYYY-MM prefix.
func ComputeAnalytics(invoices []Invoice, customerCount int, recentUsage []UsageEvent, now time.Time) Analytics {
	result := Analytics{
		TotalRevenue:     decimal.Zero,
		TotalCustomers:   customerCount,
		TotalInvoices:    len(invoices),
		MonthlyRevenue:   make(map[string]decimal.Decimal),
		UsageByType:      NewMetricMap[decimal.Decimal](),
		RecentActivities: make([]Activity, 0),
	}

	for i := range invoices {
		inv := &invoices[i]
		result.TotalRevenue = result.TotalRevenue.Add(inv.TotalAmount)
		month := inv.CreatedAt
		if len(month) > 7 {
			month = month[:7]
		}
		result.MonthlyRevenue[month] = result.MonthlyRevenue[month].Add(inv.TotalAmount)
	}

	divisor := int64(len(invoices))
	if divisor < 1 {
		divisor = 1
	}
	result.AvgInvoiceAmount = result.TotalRevenue.Div(decimal.NewFromInt(divisor))

	sorted := make([]UsageEvent, len(recentUsage))
	copy(sorted, recentUsage)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp > sorted[j].Timestamp
	})

	for i := range sorted {
		e := &sorted[i]
		key := Metric(e.EventType)
		current, _ := result.UsageByType.Get(key)
		result.UsageByType.Set(key, current.Add(e.Quantity))

		if i < MaxRecentActivities {
			result.RecentActivities = append(result.RecentActivities, Activity{
				ID:          i,
				Type:        "usage_event",
				Description: fmt.Sprintf("%s - %s units", e.EventType, e.Quantity.String()),
				CustomerID:  e.CustomerID,
				Timestamp:   e.Timestamp,
				TimeAgo:     TimeAgo(e.Timestamp, now),
			})
		}
	}

	return result
}

// TimeAgo renders the distance between a stored timestamp and now
func TimeAgo(timestamp string, now time.Time) string {
	t, err := ParseTimestamp(timestamp)
	if err != nil {
		return "Unknown"
	}
	diff := now.UTC().Sub(t)
	days := int(diff.Hours()) / 24
	secs := int(diff.Seconds()) % 86400

	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case secs > 3600:
		return plural(secs/3600, "hour") + " ago"
	case secs > 60:
		return plural(secs/60, "minute") + " ago"
	default:
		return "Just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
