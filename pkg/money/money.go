// Package money provides currency-aware amount arithmetic and formatting.
// Amounts are held in integer minor units through go-money; conversions from
// floating point go through shopspring/decimal so rounding is explicit.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	INR = "INR" // Indian Rupee
	USD = "USD" // US Dollar
	CAD = "CAD" // Canadian Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
	JPY = "JPY" // Japanese Yen (no decimal places)
)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// code returns an upper-cased known currency code, USD otherwise.
func code(currencyCode string) string {
	c := strings.ToUpper(strings.TrimSpace(currencyCode))
	if money.GetCurrency(c) == nil {
		return USD
	}
	return c
}

// NewFromFloat creates Money from a floating-point value, rounding half away
// from zero to the currency's minor unit.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return fromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

func fromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	c := code(currencyCode)
	multiplier := decimal.New(1, int32(money.GetCurrency(c).Fraction))
	return &Money{m: money.New(amount.Mul(multiplier).Round(0).IntPart(), c)}
}

// Sum adds float amounts exactly and returns the total as Money.
func Sum(currencyCode string, amounts ...float64) *Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return fromDecimal(total, currencyCode)
}

// Format renders amount with the currency symbol and grouping, e.g. "₹1,234.50".
func Format(amount float64, currencyCode string) string {
	return NewFromFloat(amount, currencyCode).Display()
}

// Display returns a formatted string for display (e.g., "$1,234.56")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "$0.00"
	}
	return m.m.Display()
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	divisor := decimal.New(1, int32(m.m.Currency().Fraction))
	return decimal.NewFromInt(m.m.Amount()).Div(divisor)
}

// ToFloat64 converts to float64 (use with caution for display only)
func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}
