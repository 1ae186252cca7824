package billing

import (
	"fmt"
	"time"

	"github.com/squill/backend/internal/domain/shared"
)

// timestampLayout is the second-precision part of every stored timestamp
const timestampLayout = "2006-01-02T15:04:05"

const dateLayout = "2006-01-02"

// PeriodSelector names a billing period relative to "now"
type PeriodSelector string

const (
	PeriodCurrentMonth  PeriodSelector = "current_month"
	PeriodPreviousMonth PeriodSelector = "previous_month"
)

// IsValid returns true if the selector is known
func (p PeriodSelector) IsValid() bool {
	switch p {
	case PeriodCurrentMonth, PeriodPreviousMonth:
		return true
	}
	return false
}

// BillingPeriod is an inclusive time window over which usage is billed
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// CurrentMonth returns the calendar month containing now, in UTC.
// End is the last microsecond of the month.
func CurrentMonth(now time.Time) BillingPeriod {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return BillingPeriod{
		Start: start,
		End:   start.AddDate(0, 1, 0).Add(-time.Microsecond),
	}
}

// PreviousMonth returns the calendar month before the one containing now
func PreviousMonth(now time.Time) BillingPeriod {
	current := CurrentMonth(now)
	start := current.Start.AddDate(0, -1, 0)
	return BillingPeriod{
		Start: start,
		End:   current.Start.Add(-time.Microsecond),
	}
}

// ResolvePeriod maps a selector to concrete bounds
func ResolvePeriod(selector PeriodSelector, now time.Time) (BillingPeriod, error) {
	switch selector {
	case PeriodCurrentMonth, "":
		return CurrentMonth(now), nil
	case PeriodPreviousMonth:
		return PreviousMonth(now), nil
	default:
		return BillingPeriod{}, shared.NewDomainError(CodeInvalidBillingPeriod, fmt.Sprintf("Invalid billing period: %s. Valid periods: current_month, previous_month", selector))
	}
}

// StartString returns the formatted start bound
func (p BillingPeriod) StartString() string {
	return FormatTimestamp(p.Start)
}

// EndString returns the formatted end bound
func (p BillingPeriod) EndString() string {
	return FormatTimestamp(p.End)
}

// YearMonth returns the period's start month as YYYYMM
func (p BillingPeriod) YearMonth() string {
	return p.Start.UTC().Format("200601")
}

// FormatTimestamp renders t in UTC as YYYY-MM-DDTHH:MM:SS, followed by a
// six-digit microsecond fraction when it is non-zero.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	base := t.Format(timestampLayout)
	micros := t.Nanosecond() / int(time.Microsecond)
	if micros == 0 {
		return base
	}
	return fmt.Sprintf("%s.%06d", base, micros)
}

// ParseTimestamp parses a timestamp written by FormatTimestamp, or RFC 3339
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05.999999", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp: %s", s)
}

// ParseWindowBound parses a query bound given as a date or a timestamp and
// renders it with FormatTimestamp. A bare date used as an end bound extends
// to the last microsecond of that day.
func ParseWindowBound(s string, end bool) (string, error) {
	if d, err := time.Parse(dateLayout, s); err == nil {
		if end {
			d = d.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		return FormatTimestamp(d), nil
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return "", err
	}
	return FormatTimestamp(t), nil
}
