package billing

import (
	"strings"
	"time"

	"github.com/squill/backend/internal/domain/shared"
)

// Customer is a billable account whose usage events are invoiced
type Customer struct {
	CustomerID  string         `json:"customer_id"`
	Name        string         `json:"name"`
	Email       string         `json:"email"`
	PricingTier TierName       `json:"pricing_tier"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewCustomer creates a validated customer. An empty tier defaults to basic.
func NewCustomer(customerID, name, email string, tier TierName, now time.Time) (*Customer, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer name cannot be empty")
	}
	if strings.TrimSpace(email) == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer email cannot be empty")
	}
	if tier == "" {
		tier = TierBasic
	}
	if !tier.IsValid() {
		return nil, NewInvalidTierError(string(tier))
	}
	return &Customer{
		CustomerID:  customerID,
		Name:        name,
		Email:       email,
		PricingTier: tier,
		Metadata:    make(map[string]any),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CustomerUpdate carries optional changes; nil fields are left untouched
type CustomerUpdate struct {
	Name        *string
	Email       *string
	PricingTier *TierName
	Metadata    map[string]any
}

// Apply applies the update to c
func (c *Customer) Apply(u CustomerUpdate, now time.Time) error {
	if u.Name != nil {
		if strings.TrimSpace(*u.Name) == "" {
			return shared.NewDomainError("INVALID_CUSTOMER", "Customer name cannot be empty")
		}
		c.Name = *u.Name
	}
	if u.Email != nil {
		if strings.TrimSpace(*u.Email) == "" {
			return shared.NewDomainError("INVALID_CUSTOMER", "Customer email cannot be empty")
		}
		c.Email = *u.Email
	}
	if u.PricingTier != nil {
		if !u.PricingTier.IsValid() {
			return NewInvalidTierError(string(*u.PricingTier))
		}
		c.PricingTier = *u.PricingTier
	}
	if u.Metadata != nil {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		for k, v := range u.Metadata {
			c.Metadata[k] = v
		}
	}
	c.UpdatedAt = now
	return nil
}
