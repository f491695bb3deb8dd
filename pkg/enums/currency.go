package enums

import "fmt"

// Currency represents supported monetary denominations. Amounts are whole
// units; none of the supported currencies carries a minor unit.
type Currency string

const (
	CurrencyXOF Currency = "XOF"
)

var validCurrencies = []Currency{
	CurrencyXOF,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// Label returns the symbol shown to customers.
func (c Currency) Label() string {
	switch c {
	case CurrencyXOF:
		return "FCFA"
	default:
		return string(c)
	}
}

// IsValid reports whether the currency is recognized.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts a raw string into a Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
