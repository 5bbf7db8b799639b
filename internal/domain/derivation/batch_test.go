package derivation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveBatch(t *testing.T) {
	t.Run("preserves input length and order", func(t *testing.T) {
		facts := []Fact{
			{FactKey: FactKey{Period: "2026-01", Country: "Germany", Product: "Widget-A"}, Quantity: d("100")},
			{FactKey: FactKey{Period: "2026-01", Country: "France", Product: "Widget-A"}, Quantity: d("10")},
			{FactKey: FactKey{Period: "2026-02", Country: "Germany", Product: "Widget-A"}, Quantity: d("5")},
		}

		records, failures := DeriveBatch(facts, fullReferenceSet(), DefaultSettings())

		require.Len(t, records, 3)
		assert.Empty(t, failures)
		for i := range facts {
			assert.Equal(t, facts[i].FactKey, records[i].FactKey)
		}
	})

	t.Run("a failed row is zeroed without aborting the batch", func(t *testing.T) {
		facts := []Fact{
			{FactKey: FactKey{Period: "2026-01", Country: "Germany", Product: "Widget-A"}, Quantity: d("100")},
			{FactKey: FactKey{Period: "2026-01", Country: "Germany", Product: "Widget-A"}, Quantity: d("-1")},
			{FactKey: FactKey{Period: "2026-01", Country: "Germany", Product: "Widget-A"}, Quantity: d("100")},
		}

		records, failures := DeriveBatch(facts, fullReferenceSet(), DefaultSettings())

		require.Len(t, records, 3)
		require.Len(t, failures, 1)
		assert.Equal(t, facts[1].FactKey, failures[0].Key)

		assert.Equal(t, "5000", records[0].Revenue.String())
		assert.True(t, records[1].Revenue.IsZero())
		assert.Equal(t, "5000", records[2].Revenue.String())
	})

	t.Run("empty batch yields empty results", func(t *testing.T) {
		records, failures := DeriveBatch(nil, fullReferenceSet(), DefaultSettings())

		assert.Empty(t, records)
		assert.Empty(t, failures)
	})
}
