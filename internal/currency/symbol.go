package currency

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
)

var symbols = map[string]string{
	"ILS": "₪",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"KRW": "₩",
	"RUB": "₽",
	"UAH": "₴",
	"TRY": "₺",
	"PLN": "zł",
	"CHF": "CHF",
}

// SymbolFor maps an ISO 4217 code to its display symbol. Values that are not
// ISO codes are taken to be symbols already.
func SymbolFor(value string) string {
	value = strings.TrimSpace(value)
	if len(value) != 3 {
		return value
	}

	unit, err := currency.ParseISO(value)
	if err != nil {
		return value
	}

	if sym, ok := symbols[unit.String()]; ok {
		return sym
	}
	return unit.String()
}

// SymbolForLocale picks the currency used in the locale's region.
func SymbolForLocale(locale string) (string, bool) {
	tag, err := language.Parse(locale)
	if err != nil {
		return "", false
	}

	unit, conf := currency.FromTag(tag)
	if conf == language.No {
		return "", false
	}
	return SymbolFor(unit.String()), true
}
