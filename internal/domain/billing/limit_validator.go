package billing

import (
	"github.com/shopspring/decimal"
)

// Violation records a metric whose usage exceeds a finite tier limit
type Violation struct {
	Metric  Metric          `json:"metric"`
	Usage   decimal.Decimal `json:"usage"`
	Limit   decimal.Decimal `json:"limit"`
	Overage decimal.Decimal `json:"overage"`
}

// LimitValidator checks usage against tier limits without pricing it
type LimitValidator struct {
	catalog *TierCatalog
}

// NewLimitValidator creates a validator backed by catalog
func NewLimitValidator(catalog *TierCatalog) *LimitValidator {
	return &LimitValidator{catalog: catalog}
}

// Validate returns one violation per metric over a finite limit, in usage
// order. withinLimits is true iff there are none.
func (v *LimitValidator) Validate(tierName TierName, usage MetricMap[decimal.Decimal]) (withinLimits bool, violations []Violation, err error) {
	tier, err := v.catalog.Lookup(tierName)
	if err != nil {
		return false, nil, err
	}

	violations = make([]Violation, 0)
	usage.Each(func(m Metric, used decimal.Decimal) {
		if !m.IsValid() {
			return
		}
		limit, ok := tier.LimitFor(m)
		if !ok {
			return
		}
		overage, exceeded := limit.Exceeds(used)
		if !exceeded {
			return
		}
		ceiling, _ := limit.Value()
		violations = append(violations, Violation{
			Metric:  m,
			Usage:   used,
			Limit:   ceiling,
			Overage: overage,
		})
	})

	return len(violations) == 0, violations, nil
}
