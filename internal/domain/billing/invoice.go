package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/squill/backend/internal/domain/shared"
	"github.com/squill/backend/internal/domain/shared/valueobject"
)

// DefaultDueDays is the payment term applied to a period's end
const DefaultDueDays = 30

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceGenerated InvoiceStatus = "generated"
	InvoiceCurrent   InvoiceStatus = "current"
	InvoicePaid      InvoiceStatus = "paid"
)

// IsValid returns true if the status is known
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceGenerated, InvoiceCurrent, InvoicePaid:
		return true
	}
	return false
}

func (s InvoiceStatus) rank() int {
	switch s {
	case InvoiceGenerated:
		return 0
	case InvoiceCurrent:
		return 1
	case InvoicePaid:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether next is a forward move from s
func (s InvoiceStatus) CanTransitionTo(next InvoiceStatus) bool {
	return next.IsValid() && next.rank() > s.rank()
}

// BillingResult is the output of either calculator
type BillingResult interface {
	GrandTotal() decimal.Decimal
}

// GrandTotal implements BillingResult
func (r *SubscriptionBillingResult) GrandTotal() decimal.Decimal { return r.TotalCost }

// GrandTotal implements BillingResult
func (r *ClientBillingResult) GrandTotal() decimal.Decimal { return r.TotalCost }

// Invoice is the billed outcome of one customer over one period.
// TotalAmount is exact; it is rounded to two places only when serialized.
type Invoice struct {
	InvoiceID       string                     `json:"invoice_id"`
	CustomerID      string                     `json:"customer_id"`
	CustomerName    string                     `json:"customer_name"`
	CustomerEmail   string                     `json:"customer_email"`
	PeriodStart     string                     `json:"billing_period_start"`
	PeriodEnd       string                     `json:"billing_period_end"`
	DueDate         string                     `json:"due_date"`
	UsageSummary    MetricMap[decimal.Decimal] `json:"usage_summary"`
	BillingDetails  MetricMap[LineItem]        `json:"billing_details"`
	PlatformCharges *SubscriptionBillingResult `json:"platform_charges,omitempty"`
	TotalAmount     decimal.Decimal            `json:"-"`
	Currency        valueobject.Currency       `json:"currency"`
	Status          InvoiceStatus              `json:"status"`
	CreatedAt       string                     `json:"created_at"`
	TotalEvents     int                        `json:"total_events"`
}

type invoiceJSON Invoice

// MarshalJSON renders total_amount at display precision
func (i Invoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		invoiceJSON
		TotalAmount string `json:"total_amount"`
	}{
		invoiceJSON: invoiceJSON(i),
		TotalAmount: i.DisplayTotal(),
	})
}

// UnmarshalJSON reads an invoice written by MarshalJSON
func (i *Invoice) UnmarshalJSON(data []byte) error {
	var aux struct {
		invoiceJSON
		TotalAmount decimal.Decimal `json:"total_amount"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = Invoice(aux.invoiceJSON)
	i.TotalAmount = aux.TotalAmount
	return nil
}

// DisplayTotal returns TotalAmount rounded half-up to two places
func (i *Invoice) DisplayTotal() string {
	return i.Total().Display()
}

// Total returns the invoice total as Money
func (i *Invoice) Total() valueobject.Money {
	currency := i.Currency
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}
	return valueobject.MustNewMoney(i.TotalAmount, currency)
}

// TransitionTo moves the invoice forward in its lifecycle
func (i *Invoice) TransitionTo(next InvoiceStatus) error {
	if !i.Status.CanTransitionTo(next) {
		return shared.NewDomainError(
			CodeInvalidStatusTransition,
			fmt.Sprintf("Cannot move invoice from %s to %s", i.Status, next),
		)
	}
	i.Status = next
	return nil
}

// InvoiceID derives the deterministic invoice identifier for a customer and period
func InvoiceID(customerID string, period BillingPeriod) string {
	return fmt.Sprintf("INV-%s-%s", period.YearMonth(), customerID)
}

// PlatformInvoiceID derives the identifier of a client's tier invoice.
// It never collides with InvoiceID for the same period.
func PlatformInvoiceID(clientID string, period BillingPeriod) string {
	return fmt.Sprintf("PLT-%s-%s", period.YearMonth(), clientID)
}

// InvoiceAssembler turns billing output into an invoice record
type InvoiceAssembler struct {
	dueDays  int
	currency valueobject.Currency
	now      func() time.Time
}

// InvoiceAssemblerOption configures an InvoiceAssembler
type InvoiceAssemblerOption func(*InvoiceAssembler)

// WithDueDays overrides the payment term
func WithDueDays(days int) InvoiceAssemblerOption {
	return func(a *InvoiceAssembler) {
		if days > 0 {
			a.dueDays = days
		}
	}
}

// WithCurrency sets the invoice currency
func WithCurrency(c valueobject.Currency) InvoiceAssemblerOption {
	return func(a *InvoiceAssembler) {
		if c != "" {
			a.currency = c
		}
	}
}

// WithClock sets the source of created_at timestamps
func WithClock(now func() time.Time) InvoiceAssemblerOption {
	return func(a *InvoiceAssembler) {
		if now != nil {
			a.now = now
		}
	}
}

// NewInvoiceAssembler creates an assembler
func NewInvoiceAssembler(opts ...InvoiceAssemblerOption) *InvoiceAssembler {
	a := &InvoiceAssembler{
		dueDays:  DefaultDueDays,
		currency: valueobject.DefaultCurrency,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the invoice for customer over period. Assembling the same
// inputs twice yields the same InvoiceID and TotalAmount.
func (a *InvoiceAssembler) Assemble(customer *Customer, period BillingPeriod, usage AggregatedUsage, result BillingResult) *Invoice {
	inv := &Invoice{
		InvoiceID:      InvoiceID(customer.CustomerID, period),
		CustomerID:     customer.CustomerID,
		CustomerName:   customer.Name,
		CustomerEmail:  customer.Email,
		PeriodStart:    period.StartString(),
		PeriodEnd:      period.EndString(),
		DueDate:        FormatTimestamp(period.End.AddDate(0, 0, a.dueDays)),
		UsageSummary:   usage.Totals,
		BillingDetails: NewMetricMap[LineItem](),
		TotalAmount:    decimal.Zero,
		Currency:       a.currency,
		Status:         InvoiceGenerated,
		CreatedAt:      FormatTimestamp(a.now()),
		TotalEvents:    usage.EventCount,
	}

	switch r := result.(type) {
	case *ClientBillingResult:
		inv.BillingDetails = r.BillingDetails
	case *SubscriptionBillingResult:
		inv.PlatformCharges = r
	}
	if result != nil {
		inv.TotalAmount = result.GrandTotal()
	}
	return inv
}
