package valueobject

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount   = errors.New("amount must be non-negative")
	ErrInvalidCurrency = errors.New("invalid currency code")
)

// Money represents a monetary value in minor units (cents)
type Money struct {
	AmountMinor int64
	Currency    string // ISO 4217 currency code (e.g., "USD", "EUR")
}

// NewMoney creates a new Money value object
func NewMoney(amountMinor int64, currency string) (Money, error) {
	if amountMinor < 0 {
		return Money{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amountMinor)
	}
	if !isValidCurrency(currency) {
		return Money{}, fmt.Errorf("%w: %s", ErrInvalidCurrency, currency)
	}
	return Money{
		AmountMinor: amountMinor,
		Currency:    currency,
	}, nil
}

// isValidCurrency checks if the currency code is valid (3 letters)
func isValidCurrency(currency string) bool {
	if len(currency) != 3 {
		return false
	}
	for _, c := range currency {
		if !((c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')) {
			return false
		}
	}
	return true
}

// String returns a string representation of the money
func (m Money) String() string {
	return fmt.Sprintf("%d.%02d %s", m.AmountMinor/100, m.AmountMinor%100, m.Currency)
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.AmountMinor == 0
}
