package billing

// Metric identifies a measurable quantity that billing rules can price.
type Metric string

const (
	// MetricCustomers counts end customers managed by a client (subscription limit)
	MetricCustomers Metric = "customers"

	// MetricAPICalls counts platform API calls made by a client (subscription limit)
	MetricAPICalls Metric = "api_calls"

	// MetricStorageGB is storage consumption in gigabytes
	MetricStorageGB Metric = "storage_gb"

	// MetricAPICall is a single end-customer API call event
	MetricAPICall Metric = "api_call"

	// MetricTransaction is a single end-customer transaction event
	MetricTransaction Metric = "transaction"
)

// String returns the string representation of Metric
func (m Metric) String() string {
	return string(m)
}

// IsValid returns true if the metric is part of the known vocabulary
func (m Metric) IsValid() bool {
	switch m {
	case MetricCustomers,
		MetricAPICalls,
		MetricStorageGB,
		MetricAPICall,
		MetricTransaction:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the metric
func (m Metric) DisplayName() string {
	switch m {
	case MetricCustomers:
		return "Customers"
	case MetricAPICalls:
		return "API Calls"
	case MetricStorageGB:
		return "Storage (GB)"
	case MetricAPICall:
		return "API Call"
	case MetricTransaction:
		return "Transaction"
	default:
		return string(m)
	}
}

// LookupMetric resolves an event type against the known vocabulary.
// ok is false for event types no pricing rule can reference; callers skip them.
func LookupMetric(eventType string) (m Metric, ok bool) {
	m = Metric(eventType)
	return m, m.IsValid()
}
