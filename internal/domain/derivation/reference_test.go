package derivation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewReferenceSet(t *testing.T) {
	t.Run("label ratios resolve to the highest surrogate id", func(t *testing.T) {
		rs := NewReferenceSet(nil, nil, nil, nil, nil,
			[]LabelRatio{
				{ID: 3, Label: "Premium", Country: "Germany", AfterSalesRate: d("0.05")},
				{ID: 7, Label: "Premium", Country: "Germany", AfterSalesRate: d("0.08")},
				{ID: 5, Label: "Premium", Country: "Germany", AfterSalesRate: d("0.06")},
				{ID: 4, Label: "Premium", Country: "France", AfterSalesRate: d("0.02")},
			},
			nil, nil, nil,
		)

		assert.Equal(t, "0.08", rs.LabelRatio("Premium", "Germany").AfterSalesRate.String())
		assert.Equal(t, "0.02", rs.LabelRatio("Premium", "France").AfterSalesRate.String())
	})

	t.Run("unit costs keep the first row per key", func(t *testing.T) {
		rs := NewReferenceSet(nil,
			[]UnitCost{
				{Product: "Widget-A", Country: "Germany", Period: "2026-01", Cost: d("30")},
				{Product: "Widget-A", Country: "Germany", Period: "2026-01", Cost: d("99")},
			},
			nil, nil, nil, nil, nil, nil, nil,
		)

		assert.Equal(t, "30", rs.UnitCost("Widget-A", "Germany", "2026-01").String())
	})

	t.Run("price quotes keep the first row per key", func(t *testing.T) {
		rs := NewReferenceSet(nil, nil,
			[]PriceQuote{
				{Product: "Widget-A", Country: "Germany", Period: "2026-01", Price: d("50"), Currency: "CNY"},
				{Product: "Widget-A", Country: "Germany", Period: "2026-01", Price: d("77"), Currency: "USD"},
			},
			nil, nil, nil, nil, nil, nil,
		)

		quote, ok := rs.PriceQuote("Widget-A", "Germany", "2026-01")
		assert.True(t, ok)
		assert.Equal(t, "50", quote.Price.String())
		assert.Equal(t, "CNY", quote.Currency)
	})

	t.Run("regional expenses keep the first row per key", func(t *testing.T) {
		rs := NewReferenceSet(nil, nil, nil, nil, nil, nil,
			[]RegionalExpense{
				{Country: "Germany", Period: "2026-01", Marketing: d("200")},
				{Country: "Germany", Period: "2026-01", Marketing: d("999")},
			},
			nil, nil,
		)

		assert.Equal(t, "200", rs.RegionalExpense("Germany", "2026-01").Marketing.String())
	})

	t.Run("missing exchange rate defaults to identity", func(t *testing.T) {
		rs := EmptyReferenceSet()

		assert.Equal(t, "1", rs.ExchangeRate("2026-01").String())
	})

	t.Run("missing lookups return zero values", func(t *testing.T) {
		rs := EmptyReferenceSet()

		assert.True(t, rs.UnitCost("x", "y", "z").IsZero())
		assert.True(t, rs.SeriesRatio("x").AmortizationRate.IsZero())
		assert.True(t, rs.CountryRatio("x").FunctionalRate.IsZero())
		assert.True(t, rs.LabelRatio("x", "y").AfterSalesRate.IsZero())
		assert.True(t, rs.RegionalExpense("x", "y").OtherFixed.IsZero())
		assert.Empty(t, rs.Product("x").Series)
		assert.Empty(t, rs.Country("x").Market)

		_, ok := rs.PriceQuote("x", "y", "z")
		assert.False(t, ok)
	})
}
