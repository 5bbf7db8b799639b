package derivation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PeriodLayout is the canonical time-period format ("2026-01"). Periods are
// stored as strings and compared lexicographically, which for this layout
// matches chronological order.
const PeriodLayout = "2006-01"

// Stream identifies which raw fact stream a record belongs to.
type Stream string

const (
	StreamActual Stream = "actual"
	StreamBudget Stream = "budget"
)

// IsValid checks if the stream is a known fact stream
func (s Stream) IsValid() bool {
	return s == StreamActual || s == StreamBudget
}

// String returns the string representation of Stream
func (s Stream) String() string {
	return string(s)
}

// FactKey is the natural key shared by raw facts and reporting rows.
type FactKey struct {
	Period  string
	Country string
	Product string
}

// String renders the key for log and error messages.
func (k FactKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Period, k.Country, k.Product)
}

// Validate checks that every key component is present.
func (k FactKey) Validate() error {
	if k.Period == "" || k.Country == "" || k.Product == "" {
		return fmt.Errorf("incomplete fact key %q", k.String())
	}
	return nil
}

// Fact is one raw observation of quantity sold. Descriptive fields (Market,
// Series, Label) are resolved during derivation and carried so that a fact
// re-read from storage round-trips without another metadata lookup.
type Fact struct {
	FactKey
	Market   string
	Series   string
	Label    string
	Quantity decimal.Decimal
}

// DerivedRecord is a fact augmented with the computed financial metrics.
// All monetary values are in the base currency, rounded to 2 decimal places.
type DerivedRecord struct {
	Fact
	Revenue      decimal.Decimal
	GrossProfit  decimal.Decimal
	MarginProfit decimal.Decimal
	NetIncome    decimal.Decimal
}

// Zeroed returns a derived record for the fact with all metrics at zero.
// Used as the per-row fallback when derivation fails.
func Zeroed(fact Fact) DerivedRecord {
	return DerivedRecord{
		Fact:         fact,
		Revenue:      decimal.Zero,
		GrossProfit:  decimal.Zero,
		MarginProfit: decimal.Zero,
		NetIncome:    decimal.Zero,
	}
}

// ReportFilter narrows reporting-table reads. Empty fields match everything.
type ReportFilter struct {
	Period  string
	Country string
	Product string
}
