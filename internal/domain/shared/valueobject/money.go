package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code (ISO 4217)
type Currency string

const (
	USD Currency = "USD" // US Dollar (default)
	EUR Currency = "EUR" // Euro
	GBP Currency = "GBP" // British Pound
)

// DefaultCurrency is what invoices are issued in unless configured otherwise
const DefaultCurrency = USD

// DisplayPlaces is the number of decimal places money is shown with
const DisplayPlaces int32 = 2

// Money is an exact amount in one currency. Amounts keep full precision and
// are only rounded for display.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney creates a new Money with the specified amount and currency
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if currency == "" {
		return Money{}, errors.New("currency cannot be empty")
	}
	return Money{
		amount:   amount,
		currency: currency,
	}, nil
}

// MustNewMoney is NewMoney for callers that already hold a valid currency
func MustNewMoney(amount decimal.Decimal, currency Currency) Money {
	m, err := NewMoney(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Amount returns the unrounded amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Currency returns the currency
func (m Money) Currency() Currency {
	return m.currency
}

// Display returns the amount rounded half away from zero to DisplayPlaces
func (m Money) Display() string {
	return m.amount.StringFixed(DisplayPlaces)
}

// String renders the currency code followed by the display amount
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.currency, m.Display())
}
