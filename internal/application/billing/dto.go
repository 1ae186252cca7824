package billing

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared"
)

// IngestUsageRequest records one usage event
type IngestUsageRequest struct {
	CustomerID string         `json:"customer_id" binding:"required,max=100"`
	EventType  string         `json:"event_type" binding:"required,max=50"`
	Quantity   json.Number    `json:"quantity" binding:"required,decimal_gt0"`
	Metadata   map[string]any `json:"metadata"`
}

// UsageQuery selects the window for a usage read. Empty bounds are open.
type UsageQuery struct {
	Start string `form:"start"`
	End   string `form:"end"`
	Daily bool   `form:"daily"`
}

// Normalize rewrites both bounds in stored timestamp form so that they
// compare correctly against event timestamps. Unparseable or inverted
// windows are INVALID_INPUT.
func (q UsageQuery) Normalize() (UsageQuery, error) {
	var err error
	if q.Start != "" {
		if q.Start, err = billing.ParseWindowBound(q.Start, false); err != nil {
			return q, shared.NewDomainError("INVALID_INPUT", "start: "+err.Error())
		}
	}
	if q.End != "" {
		if q.End, err = billing.ParseWindowBound(q.End, true); err != nil {
			return q, shared.NewDomainError("INVALID_INPUT", "end: "+err.Error())
		}
	}
	if q.Start != "" && q.End != "" && q.Start > q.End {
		return q, shared.NewDomainError("INVALID_INPUT", "start must not be after end")
	}
	return q, nil
}

// CustomerUsageResponse is a customer's aggregated usage over a window
type CustomerUsageResponse struct {
	CustomerID string                  `json:"customer_id"`
	Start      string                  `json:"start,omitempty"`
	End        string                  `json:"end,omitempty"`
	Usage      billing.AggregatedUsage `json:"usage"`
	Cached     bool                    `json:"cached"`
}

// CreateCustomerRequest registers a billable customer
type CreateCustomerRequest struct {
	CustomerID  string         `json:"customer_id" binding:"required,max=100"`
	Name        string         `json:"name" binding:"required,max=200"`
	Email       string         `json:"email" binding:"required,email"`
	PricingTier string         `json:"pricing_tier"`
	Metadata    map[string]any `json:"metadata"`
}

// UpdateCustomerRequest patches a customer; nil fields are left alone
type UpdateCustomerRequest struct {
	Name        *string        `json:"name" binding:"omitempty,min=1,max=200"`
	Email       *string        `json:"email" binding:"omitempty,email"`
	PricingTier *string        `json:"pricing_tier"`
	Metadata    map[string]any `json:"metadata"`
}

// CreateSubscriptionRequest subscribes a client to a platform tier
type CreateSubscriptionRequest struct {
	ClientID         string               `json:"client_id" binding:"required,max=100"`
	CompanyName      string               `json:"company_name" binding:"required,max=200"`
	Email            string               `json:"email" binding:"required,email"`
	SubscriptionTier string               `json:"subscription_tier" binding:"required"`
	PricingRules     *billing.ClientRules `json:"pricing_rules"`
}

// SubscriptionResponse is a subscription with its tier definition
type SubscriptionResponse struct {
	*billing.Subscription
	TierDetails *billing.Tier `json:"tier_details"`
}

// CalculatePricingRequest prices hypothetical usage for a subscribed client.
// UsageData is nil when the key is absent from the body.
type CalculatePricingRequest struct {
	ClientID          string                               `json:"client_id" binding:"required"`
	UsageData         *billing.MetricMap[decimal.Decimal]  `json:"usage_data"`
	ClientUsageEvents billing.MetricMap[[]decimal.Decimal] `json:"client_usage_events"`
}

// PricingResult is the platform bill, the client bill and the limit check
type PricingResult struct {
	ClientID         string                             `json:"client_id"`
	SubscriptionTier billing.TierName                   `json:"subscription_tier"`
	PlatformBilling  *billing.SubscriptionBillingResult `json:"squill_billing"`
	ClientBilling    *billing.ClientBillingResult       `json:"client_billing"`
	WithinLimits     bool                               `json:"within_limits"`
	LimitViolations  []billing.Violation                `json:"limit_violations"`
}

// UpdatePricingRulesRequest replaces a client's end-customer rates
type UpdatePricingRulesRequest struct {
	PricingRules billing.ClientRules `json:"pricing_rules"`
}

// GenerateInvoiceRequest bills one customer for a period
type GenerateInvoiceRequest struct {
	CustomerID    string `json:"customer_id" binding:"required"`
	BillingPeriod string `json:"billing_period" binding:"omitempty,oneof=current_month previous_month"`
}

// GenerateInvoicesRequest bills many customers for a period.
// An empty CustomerIDs bills every customer.
type GenerateInvoicesRequest struct {
	CustomerIDs   []string `json:"customer_ids" binding:"omitempty,dive,required"`
	BillingPeriod string   `json:"billing_period" binding:"omitempty,oneof=current_month previous_month"`
}

// GeneratePlatformInvoiceRequest bills a subscribed client for its tier
type GeneratePlatformInvoiceRequest struct {
	ClientID      string `json:"client_id" binding:"required"`
	BillingPeriod string `json:"billing_period" binding:"omitempty,oneof=current_month previous_month"`
}

// InvoiceFailure reports why one customer in a batch could not be billed
type InvoiceFailure struct {
	CustomerID string `json:"customer_id"`
	Error      string `json:"error"`
}

// BatchInvoiceResult is the outcome of a batch run
type BatchInvoiceResult struct {
	PeriodStart string             `json:"billing_period_start"`
	PeriodEnd   string             `json:"billing_period_end"`
	Invoices    []*billing.Invoice `json:"invoices"`
	Failures    []InvoiceFailure   `json:"failures"`
}

// UpdateInvoiceStatusRequest moves an invoice through its lifecycle
type UpdateInvoiceStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=generated current paid"`
}

// InvoiceListQuery filters the invoice list
type InvoiceListQuery struct {
	CustomerID string `form:"customer_id"`
}
