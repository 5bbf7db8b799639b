package derivation

import "github.com/shopspring/decimal"

// Default currency tags. Quoted prices tagged with the foreign currency are
// converted into the base currency using the period exchange rate; any other
// tag is treated as already being in the base currency.
const (
	DefaultBaseCurrency    = "CNY"
	DefaultForeignCurrency = "USD"
)

// Settings carries the engine-level derivation configuration. It is passed
// explicitly into every derivation call instead of living in ambient state.
type Settings struct {
	BaseCurrency    string
	ForeignCurrency string
}

// DefaultSettings returns the standard CNY-base / USD-foreign configuration.
func DefaultSettings() Settings {
	return Settings{
		BaseCurrency:    DefaultBaseCurrency,
		ForeignCurrency: DefaultForeignCurrency,
	}
}

// NormalizePrice converts a quoted price into the base currency. Prices
// tagged with the foreign currency are multiplied by the exchange rate;
// everything else passes through unchanged. Pure and total.
func (s Settings) NormalizePrice(quoted decimal.Decimal, currency string, rate decimal.Decimal) decimal.Decimal {
	if currency == s.ForeignCurrency {
		return quoted.Mul(rate)
	}
	return quoted
}
