package billing

import (
	"context"
)

// UsageEventRepository persists and queries raw usage events
type UsageEventRepository interface {
	// Save persists a new usage event
	Save(ctx context.Context, event *UsageEvent) error

	// FindByCustomer returns a customer's events ordered by timestamp ascending
	FindByCustomer(ctx context.Context, customerID string, filter UsageEventFilter) ([]UsageEvent, error)

	// FindRecent returns events across all customers, newest first.
	// A limit <= 0 returns every event.
	FindRecent(ctx context.Context, limit int) ([]UsageEvent, error)
}

// UsageEventFilter restricts an event query to an inclusive timestamp window.
// Empty bounds are open.
type UsageEventFilter struct {
	Start string
	End   string
}

// WithWindow sets the inclusive window bounds
func (f UsageEventFilter) WithWindow(start, end string) UsageEventFilter {
	f.Start = start
	f.End = end
	return f
}

// WithPeriod sets the window to a billing period
func (f UsageEventFilter) WithPeriod(p BillingPeriod) UsageEventFilter {
	return f.WithWindow(p.StartString(), p.EndString())
}

// CustomerRepository persists customers keyed by customer_id
type CustomerRepository interface {
	// Create inserts a customer, returning shared.ErrAlreadyExists on conflict
	Create(ctx context.Context, customer *Customer) error

	// Update replaces a customer
	Update(ctx context.Context, customer *Customer) error

	// FindByID returns shared.ErrNotFound when missing
	FindByID(ctx context.Context, customerID string) (*Customer, error)

	// ExistsByID reports whether a customer exists
	ExistsByID(ctx context.Context, customerID string) (bool, error)

	// Count returns the number of customers
	Count(ctx context.Context) (int64, error)

	// ListIDs returns every customer ID in ascending order
	ListIDs(ctx context.Context) ([]string, error)
}

// SubscriptionRepository persists subscriptions keyed by client_id
type SubscriptionRepository interface {
	// Save creates or replaces a subscription
	Save(ctx context.Context, subscription *Subscription) error

	// FindByClientID returns shared.ErrNotFound when missing
	FindByClientID(ctx context.Context, clientID string) (*Subscription, error)
}

// InvoiceRepository persists invoices keyed by invoice_id
type InvoiceRepository interface {
	// Upsert stores an invoice, overwriting any invoice with the same ID
	Upsert(ctx context.Context, invoice *Invoice) error

	// FindByID returns shared.ErrNotFound when missing
	FindByID(ctx context.Context, invoiceID string) (*Invoice, error)

	// FindByCustomer returns a customer's invoices, newest first
	FindByCustomer(ctx context.Context, customerID string) ([]Invoice, error)

	// FindAll returns every invoice, newest first
	FindAll(ctx context.Context) ([]Invoice, error)

	// UpdateStatus changes the status of an invoice
	UpdateStatus(ctx context.Context, invoiceID string, status InvoiceStatus) error
}
