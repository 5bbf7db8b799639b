package derivation

import (
	"context"
	"time"
)

// DefaultTrailingPeriods is the width of the maintenance sweep: the reporting
// table is refreshed for the trailing three periods when no narrower scope is
// given.
const DefaultTrailingPeriods = 3

// Scope selects which raw facts a recompute pass covers: a single natural
// key, a whole period, or the trailing N periods.
type Scope struct {
	Key      *FactKey
	Period   string
	Trailing int
}

// KeyScope scopes recomputation to one natural key.
func KeyScope(key FactKey) Scope {
	return Scope{Key: &key}
}

// PeriodScope scopes recomputation to every fact in one period.
func PeriodScope(period string) Scope {
	return Scope{Period: period}
}

// TrailingScope scopes recomputation to the trailing n periods.
func TrailingScope(n int) Scope {
	return Scope{Trailing: n}
}

// Validate checks that exactly one scope dimension is set.
func (s Scope) Validate() error {
	set := 0
	if s.Key != nil {
		set++
	}
	if s.Period != "" {
		set++
	}
	if s.Trailing > 0 {
		set++
	}
	if set != 1 {
		return errInvalidScope
	}
	if s.Key != nil {
		return s.Key.Validate()
	}
	return nil
}

// CutoffPeriod returns the earliest period a trailing scope covers, in
// PeriodLayout. Only meaningful when Trailing is set.
func (s Scope) CutoffPeriod(now time.Time) string {
	return now.AddDate(0, -s.Trailing, 0).Format(PeriodLayout)
}

var errInvalidScope = scopeError{}

type scopeError struct{}

func (scopeError) Error() string {
	return "scope must set exactly one of key, period, trailing"
}

// FactRepository persists raw facts and reporting rows. Uniqueness is
// enforced on the natural key (period, country, product); upserts overwrite
// every non-key column. Concurrent writers to the same key are not
// coordinated beyond that upsert: the last write to complete wins.
type FactRepository interface {
	// UpsertFacts writes a derived batch into the raw table for the stream.
	// Atomic per batch: either every record lands or none does.
	UpsertFacts(ctx context.Context, stream Stream, records []DerivedRecord) error

	// DeleteFact removes one raw fact from the stream. Returns
	// shared.ErrNotFound when the key is absent.
	DeleteFact(ctx context.Context, stream Stream, key FactKey) error

	// FactsInScope selects the union of matching rows from both raw fact
	// streams, actual first, for re-derivation.
	FactsInScope(ctx context.Context, scope Scope) ([]Fact, error)

	// UpsertReporting writes a derived batch into the reporting table.
	UpsertReporting(ctx context.Context, records []DerivedRecord) error

	// DeleteReporting removes one reporting row. Absent keys are not an error.
	DeleteReporting(ctx context.Context, key FactKey) error

	// Reporting reads reporting rows matching the filter.
	Reporting(ctx context.Context, filter ReportFilter) ([]DerivedRecord, error)
}

// ReferenceRepository loads the externally maintained reference tables. Each
// method loads its whole table once per batch; the caller decides how to
// handle a load failure (the engine substitutes an empty lookup so one
// unavailable table does not block derivation for facts that don't need it).
type ReferenceRepository interface {
	ExchangeRates(ctx context.Context) ([]ExchangeRate, error)
	UnitCosts(ctx context.Context) ([]UnitCost, error)
	PriceQuotes(ctx context.Context) ([]PriceQuote, error)
	SeriesRatios(ctx context.Context) ([]SeriesRatio, error)
	CountryRatios(ctx context.Context) ([]CountryRatio, error)
	LabelRatios(ctx context.Context) ([]LabelRatio, error)
	RegionalExpenses(ctx context.Context) ([]RegionalExpense, error)
	Products(ctx context.Context) ([]Product, error)
	Countries(ctx context.Context) ([]Country, error)
}
