package derivation

import "fmt"

// RowFailure records a per-row derivation failure so the caller can log it
// with the offending natural key. Failed rows never abort the batch.
type RowFailure struct {
	Key FactKey
	Err error
}

// DeriveBatch applies Derive to every fact, isolating per-row failures. The
// result has the same length and order as the input; a failed row becomes a
// zeroed record with its descriptive fields passed through unchanged.
func DeriveBatch(facts []Fact, refs *ReferenceSet, settings Settings) ([]DerivedRecord, []RowFailure) {
	records := make([]DerivedRecord, len(facts))
	var failures []RowFailure

	for i, fact := range facts {
		record, err := deriveRow(fact, refs, settings)
		if err != nil {
			failures = append(failures, RowFailure{Key: fact.FactKey, Err: err})
			record = Zeroed(fact)
		}
		records[i] = record
	}

	return records, failures
}

// deriveRow wraps Derive with a panic boundary so that a single corrupt row
// cannot take down the batch.
func deriveRow(fact Fact, refs *ReferenceSet, settings Settings) (record DerivedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("derivation panic for %s: %v", fact.FactKey, r)
		}
	}()
	return Derive(fact, refs, settings)
}
