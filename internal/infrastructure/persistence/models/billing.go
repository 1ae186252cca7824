package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/squill/backend/internal/domain/billing"
	"github.com/squill/backend/internal/domain/shared/valueobject"
)

// billingLogger reads the global logger at call time, after main replaces it
func billingLogger() *zap.Logger { return zap.L().Named("billing.models") }

// UsageEventModel is the persistence model for a raw usage event.
// EventTimestamp keeps the domain's sortable string form so window
// filters compare the same way in SQL and in memory.
type UsageEventModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID     string          `gorm:"type:varchar(100);not null;index:idx_usage_events_customer_ts,priority:1"`
	EventTimestamp string          `gorm:"column:event_timestamp;type:varchar(32);not null;index:idx_usage_events_customer_ts,priority:2;index:idx_usage_events_ts"`
	EventType      string          `gorm:"type:varchar(50);not null"`
	Quantity       decimal.Decimal `gorm:"type:numeric(24,8);not null"`
	Metadata       []byte          `gorm:"type:jsonb"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM
func (UsageEventModel) TableName() string {
	return "usage_events"
}

// ToDomain converts the model to a domain usage event
func (m *UsageEventModel) ToDomain() *billing.UsageEvent {
	event := &billing.UsageEvent{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		Timestamp:  m.EventTimestamp,
		EventType:  m.EventType,
		Quantity:   m.Quantity,
		Metadata:   make(map[string]any),
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &event.Metadata); err != nil {
			billingLogger().Warn("failed to parse usage event metadata",
				zap.String("event_id", m.ID.String()),
				zap.Error(err))
		}
	}
	return event
}

// UsageEventModelFromDomain creates a persistence model from a usage event
func UsageEventModelFromDomain(e *billing.UsageEvent) (*UsageEventModel, error) {
	m := &UsageEventModel{
		ID:             e.ID,
		CustomerID:     e.CustomerID,
		EventTimestamp: e.Timestamp,
		EventType:      e.EventType,
		Quantity:       e.Quantity,
	}
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		m.Metadata = data
	}
	return m, nil
}

// CustomerModel is the persistence model for a billable customer
type CustomerModel struct {
	CustomerID  string    `gorm:"type:varchar(100);primaryKey"`
	Name        string    `gorm:"type:varchar(200);not null"`
	Email       string    `gorm:"type:varchar(255);not null"`
	PricingTier string    `gorm:"type:varchar(20);not null;default:'basic'"`
	Metadata    []byte    `gorm:"type:jsonb"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CustomerModel) TableName() string {
	return "billing_customers"
}

// ToDomain converts the model to a domain customer
func (m *CustomerModel) ToDomain() *billing.Customer {
	c := &billing.Customer{
		CustomerID:  m.CustomerID,
		Name:        m.Name,
		Email:       m.Email,
		PricingTier: billing.TierName(m.PricingTier),
		Metadata:    make(map[string]any),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &c.Metadata); err != nil {
			billingLogger().Warn("failed to parse customer metadata",
				zap.String("customer_id", m.CustomerID),
				zap.Error(err))
		}
	}
	return c
}

// CustomerModelFromDomain creates a persistence model from a customer
func CustomerModelFromDomain(c *billing.Customer) (*CustomerModel, error) {
	m := &CustomerModel{
		CustomerID:  c.CustomerID,
		Name:        c.Name,
		Email:       c.Email,
		PricingTier: string(c.PricingTier),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if len(c.Metadata) > 0 {
		data, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, err
		}
		m.Metadata = data
	}
	return m, nil
}

// SubscriptionModel is the persistence model for a client subscription.
// PricingRules is NULL when the client bills with the default rules.
type SubscriptionModel struct {
	ClientID         string    `gorm:"type:varchar(100);primaryKey"`
	CompanyName      string    `gorm:"type:varchar(200);not null"`
	Email            string    `gorm:"type:varchar(255);not null"`
	SubscriptionTier string    `gorm:"type:varchar(20);not null"`
	Status           string    `gorm:"type:varchar(20);not null;default:'active'"`
	CurrentUsage     []byte    `gorm:"type:jsonb"`
	PricingRules     []byte    `gorm:"type:jsonb"`
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the model to a domain subscription
func (m *SubscriptionModel) ToDomain() (*billing.Subscription, error) {
	sub := &billing.Subscription{
		ClientID:         m.ClientID,
		CompanyName:      m.CompanyName,
		Email:            m.Email,
		SubscriptionTier: billing.TierName(m.SubscriptionTier),
		Status:           billing.SubscriptionStatus(m.Status),
		CurrentUsage:     billing.NewMetricMap[decimal.Decimal](),
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if len(m.CurrentUsage) > 0 {
		if err := json.Unmarshal(m.CurrentUsage, &sub.CurrentUsage); err != nil {
			return nil, err
		}
	}
	if len(m.PricingRules) > 0 {
		rules := billing.NewMetricMap[billing.ClientPricingRule]()
		if err := json.Unmarshal(m.PricingRules, &rules); err != nil {
			return nil, err
		}
		if rules.Len() > 0 {
			sub.PricingRules = &rules
		}
	}
	return sub, nil
}

// SubscriptionModelFromDomain creates a persistence model from a subscription
func SubscriptionModelFromDomain(s *billing.Subscription) (*SubscriptionModel, error) {
	usage, err := json.Marshal(s.CurrentUsage)
	if err != nil {
		return nil, err
	}
	m := &SubscriptionModel{
		ClientID:         s.ClientID,
		CompanyName:      s.CompanyName,
		Email:            s.Email,
		SubscriptionTier: string(s.SubscriptionTier),
		Status:           string(s.Status),
		CurrentUsage:     usage,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
	if s.PricingRules != nil {
		rules, err := json.Marshal(s.PricingRules)
		if err != nil {
			return nil, err
		}
		m.PricingRules = rules
	}
	return m, nil
}

// InvoiceModel is the persistence model for an invoice. TotalAmount is
// stored exact; display rounding happens when the invoice is serialized.
type InvoiceModel struct {
	InvoiceID       string          `gorm:"type:varchar(150);primaryKey"`
	CustomerID      string          `gorm:"type:varchar(100);not null;index"`
	CustomerName    string          `gorm:"type:varchar(200)"`
	CustomerEmail   string          `gorm:"type:varchar(255)"`
	PeriodStart     string          `gorm:"column:billing_period_start;type:varchar(32);not null"`
	PeriodEnd       string          `gorm:"column:billing_period_end;type:varchar(32);not null"`
	DueDate         string          `gorm:"type:varchar(32);not null"`
	UsageSummary    []byte          `gorm:"type:jsonb"`
	BillingDetails  []byte          `gorm:"type:jsonb"`
	PlatformCharges []byte          `gorm:"type:jsonb"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric;not null"`
	Currency        string          `gorm:"type:varchar(3);not null;default:'USD'"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
	IssuedAt        string          `gorm:"column:created_at;type:varchar(32);not null;index"`
	TotalEvents     int             `gorm:"not null;default:0"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the model to a domain invoice
func (m *InvoiceModel) ToDomain() (*billing.Invoice, error) {
	inv := &billing.Invoice{
		InvoiceID:      m.InvoiceID,
		CustomerID:     m.CustomerID,
		CustomerName:   m.CustomerName,
		CustomerEmail:  m.CustomerEmail,
		PeriodStart:    m.PeriodStart,
		PeriodEnd:      m.PeriodEnd,
		DueDate:        m.DueDate,
		UsageSummary:   billing.NewMetricMap[decimal.Decimal](),
		BillingDetails: billing.NewMetricMap[billing.LineItem](),
		TotalAmount:    m.TotalAmount,
		Currency:       valueobject.Currency(m.Currency),
		Status:         billing.InvoiceStatus(m.Status),
		CreatedAt:      m.IssuedAt,
		TotalEvents:    m.TotalEvents,
	}
	if len(m.UsageSummary) > 0 {
		if err := json.Unmarshal(m.UsageSummary, &inv.UsageSummary); err != nil {
			return nil, err
		}
	}
	if len(m.BillingDetails) > 0 {
		if err := json.Unmarshal(m.BillingDetails, &inv.BillingDetails); err != nil {
			return nil, err
		}
	}
	if len(m.PlatformCharges) > 0 {
		var charges billing.SubscriptionBillingResult
		if err := json.Unmarshal(m.PlatformCharges, &charges); err != nil {
			return nil, err
		}
		inv.PlatformCharges = &charges
	}
	return inv, nil
}

// InvoiceModelFromDomain creates a persistence model from an invoice
func InvoiceModelFromDomain(inv *billing.Invoice) (*InvoiceModel, error) {
	usage, err := json.Marshal(inv.UsageSummary)
	if err != nil {
		return nil, err
	}
	details, err := json.Marshal(inv.BillingDetails)
	if err != nil {
		return nil, err
	}
	m := &InvoiceModel{
		InvoiceID:      inv.InvoiceID,
		CustomerID:     inv.CustomerID,
		CustomerName:   inv.CustomerName,
		CustomerEmail:  inv.CustomerEmail,
		PeriodStart:    inv.PeriodStart,
		PeriodEnd:      inv.PeriodEnd,
		DueDate:        inv.DueDate,
		UsageSummary:   usage,
		BillingDetails: details,
		TotalAmount:    inv.TotalAmount,
		Currency:       string(inv.Currency),
		Status:         string(inv.Status),
		IssuedAt:       inv.CreatedAt,
		TotalEvents:    inv.TotalEvents,
	}
	if inv.PlatformCharges != nil {
		charges, err := json.Marshal(inv.PlatformCharges)
		if err != nil {
			return nil, err
		}
		m.PlatformCharges = charges
	}
	return m, nil
}
