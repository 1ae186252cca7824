package billing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/squill/backend/internal/domain/shared"
)

// UsageEvent is an immutable record of consumption reported for a customer.
// Timestamp is a UTC ISO-8601 string in the fixed format produced by
// FormatTimestamp so that lexicographic order matches time order.
type UsageEvent struct {
	ID         uuid.UUID       `json:"id"`
	CustomerID string          `json:"customer_id"`
	Timestamp  string          `json:"timestamp"`
	EventType  string          `json:"event_type"`
	Quantity   decimal.Decimal `json:"quantity"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// NewUsageEvent creates a validated usage event
func NewUsageEvent(customerID, eventType string, quantity decimal.Decimal, timestamp string) (*UsageEvent, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if strings.TrimSpace(eventType) == "" {
		return nil, shared.NewDomainError("INVALID_EVENT_TYPE", "Event type cannot be empty")
	}
	if quantity.IsNegative() {
		return nil, NewMalformedUsageError(quantity.String())
	}
	return &UsageEvent{
		ID:         uuid.New(),
		CustomerID: customerID,
		Timestamp:  timestamp,
		EventType:  eventType,
		Quantity:   quantity,
		Metadata:   make(map[string]any),
	}, nil
}

// WithMetadata returns the event with metadata attached
func (e *UsageEvent) WithMetadata(metadata map[string]any) *UsageEvent {
	if metadata == nil {
		return e
	}
	for k, v := range metadata {
		e.Metadata[k] = v
	}
	return e
}

// Metric resolves the event type against the known metric vocabulary
func (e *UsageEvent) Metric() (Metric, bool) {
	return LookupMetric(e.EventType)
}

// Day returns the date component of the timestamp (YYYY-MM-DD)
func (e *UsageEvent) Day() string {
	if len(e.Timestamp) < 10 {
		return e.Timestamp
	}
	return e.Timestamp[:10]
}

// QuantityScale is the number of decimal places a stored quantity keeps
const QuantityScale int32 = 8

// ParseQuantity parses a raw usage quantity. Anything that is not a
// non-negative decimal is MALFORMED_USAGE.
func ParseQuantity(raw string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, NewMalformedUsageError(raw)
	}
	if q.IsNegative() {
		return decimal.Zero, NewMalformedUsageError(raw)
	}
	return q, nil
}

// ParsePositiveQuantity is ParseQuantity for ingestion, which also rejects
// zero and anything finer than QuantityScale
func ParsePositiveQuantity(raw string) (decimal.Decimal, error) {
	q, err := ParseQuantity(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if q.IsZero() {
		return decimal.Zero, shared.NewDomainError(CodeMalformedUsage, "Usage quantity must be greater than zero")
	}
	if !q.Equal(q.Truncate(QuantityScale)) {
		return decimal.Zero, shared.NewDomainError(CodeMalformedUsage, "Usage quantity has more than 8 decimal places")
	}
	return q, nil
}
