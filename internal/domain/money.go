package domain

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	symbolPrefix  = regexp.MustCompile(`^[^\d\s]+`)
	nonNumericRun = regexp.MustCompile(`[^\d.]`)

	// an unparseable price only keeps a symbol without letters: "$abc" is "$"
	signPrefix = regexp.MustCompile(`^[^\p{L}\d\s]+`)
)

// Money is an amount tagged with the currency symbol it is displayed with.
// An Invalid value never takes part in arithmetic or re-tagging; Raw keeps
// the unparseable display string, empty when there was no price at all.
type Money struct {
	Amount  decimal.Decimal
	Symbol  string
	Raw     string
	Invalid bool
}

func NewMoney(amount decimal.Decimal, symbol string) Money {
	return Money{Amount: amount.Round(2), Symbol: symbol}
}

// ParseMoney reads a display string such as "₪120" or "$1,200.5". Digits
// after a second decimal point are ignored, so "₪1.2.3" reads as 1.20. An
// empty string is an invalid price, not zero.
func ParseMoney(display string) Money {
	display = strings.TrimSpace(display)
	if display == "" {
		return Money{Invalid: true}
	}

	symbol := symbolPrefix.FindString(display)

	digits := nonNumericRun.ReplaceAllString(display, "")
	if first := strings.IndexByte(digits, '.'); first >= 0 {
		if second := strings.IndexByte(digits[first+1:], '.'); second >= 0 {
			digits = digits[:first+1+second]
		}
	}

	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return Money{Symbol: signPrefix.FindString(display), Raw: display, Invalid: true}
	}

	return NewMoney(amount, symbol)
}

// SymbolOf returns the leading currency symbol of a display string.
func SymbolOf(display string) string {
	return symbolPrefix.FindString(strings.TrimSpace(display))
}

func (m Money) Valid() bool {
	return !m.Invalid
}

// WithSymbol re-tags a valid amount, leaving invalid values untouched.
func (m Money) WithSymbol(symbol string) Money {
	if !m.Valid() {
		return m
	}
	return NewMoney(m.Amount, symbol)
}

// Numeric is the amount used for totals; invalid values count as zero.
func (m Money) Numeric() decimal.Decimal {
	if !m.Valid() {
		return decimal.Zero
	}
	return m.Amount
}

func (m Money) String() string {
	if !m.Valid() {
		return m.Raw
	}
	return m.Symbol + m.Amount.StringFixed(2)
}
