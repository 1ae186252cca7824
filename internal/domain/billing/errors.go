package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/squill/backend/internal/domain/shared"
)

// Error codes raised by the billing domain
const (
	CodeInvalidTier             = "INVALID_TIER"
	CodeMalformedUsage          = "MALFORMED_USAGE"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeInvalidBillingPeriod    = "INVALID_BILLING_PERIOD"
)

// NewInvalidTierError reports an unknown subscription tier name
func NewInvalidTierError(name string) *shared.DomainError {
	valid := make([]string, 0, len(AllTierNames()))
	for _, t := range AllTierNames() {
		valid = append(valid, t.String())
	}
	return shared.NewDomainError(
		CodeInvalidTier,
		fmt.Sprintf("Invalid subscription tier %q, valid tiers: %s", name, strings.Join(valid, ", ")),
	)
}

// NewMalformedUsageError reports a usage quantity that is not a non-negative number
func NewMalformedUsageError(raw string) *shared.DomainError {
	return shared.NewDomainError(
		CodeMalformedUsage,
		fmt.Sprintf("Usage quantity %q must be a non-negative number", raw),
	)
}

// IsInvalidTier reports whether err carries the INVALID_TIER code
func IsInvalidTier(err error) bool {
	return hasCode(err, CodeInvalidTier)
}

// IsMalformedUsage reports whether err carries the MALFORMED_USAGE code
func IsMalformedUsage(err error) bool {
	return hasCode(err, CodeMalformedUsage)
}

func hasCode(err error, code string) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
