package derivation

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the local-to-base conversion rate for one period.
type ExchangeRate struct {
	Period string
	Rate   decimal.Decimal
}

// UnitCost is the per-unit cost of a product in a country for one period.
type UnitCost struct {
	Product string
	Country string
	Period  string
	Cost    decimal.Decimal
}

// PriceQuote is a quoted sales price with its currency tag.
type PriceQuote struct {
	Product  string
	Country  string
	Period   string
	Price    decimal.Decimal
	Currency string
}

// SeriesRatio carries the cost-accrual rates keyed by product series.
type SeriesRatio struct {
	Series           string
	AmortizationRate decimal.Decimal
	RnDRate          decimal.Decimal
}

// CountryRatio carries the allocation and provision rates keyed by country.
type CountryRatio struct {
	Country                string
	FunctionalRate         decimal.Decimal
	HeadquartersRate       decimal.Decimal
	MarketingProvisionRate decimal.Decimal
}

// LabelRatio carries the after-sales provision rate keyed by product label
// and country. The underlying table accumulates superseding rows without
// deleting old ones, so the declared key is not unique; ID is the monotonic
// surrogate used to pick the latest row.
type LabelRatio struct {
	ID             uint
	Label          string
	Country        string
	AfterSalesRate decimal.Decimal
}

// RegionalExpense carries the absolute expense amounts for a country/period.
type RegionalExpense struct {
	Country       string
	Period        string
	Marketing     decimal.Decimal
	Labor         decimal.Decimal
	OtherVariable decimal.Decimal
	OtherFixed    decimal.Decimal
}

// Product is product metadata: which series and label a product belongs to.
type Product struct {
	Product string
	Series  string
	Label   string
}

// Country is country metadata: which market a country belongs to.
type Country struct {
	Country string
	Market  string
}

type costKey struct {
	product string
	country string
	period  string
}

type labelKey struct {
	label   string
	country string
}

type regionKey struct {
	country string
	period  string
}

// ReferenceSet is a per-batch snapshot of every reference table, keyed for
// O(1) lookup. Build it once per batch with NewReferenceSet; a table that
// could not be loaded is represented by a nil slice and every lookup against
// it misses, degrading that term to its zero/identity default.
type ReferenceSet struct {
	exchangeRates    map[string]decimal.Decimal
	unitCosts        map[costKey]decimal.Decimal
	priceQuotes      map[costKey]PriceQuote
	seriesRatios     map[string]SeriesRatio
	countryRatios    map[string]CountryRatio
	labelRatios      map[labelKey]LabelRatio
	regionalExpenses map[regionKey]RegionalExpense
	products         map[string]Product
	countries        map[string]Country
}

// NewReferenceSet builds the lookup snapshot, applying the deduplication
// policy once for the whole batch. Label ratios resolve to the row with the
// highest surrogate id per (label, country); unit costs, price quotes and
// regional expenses keep the first row per key.
func NewReferenceSet(
	rates []ExchangeRate,
	costs []UnitCost,
	quotes []PriceQuote,
	seriesRatios []SeriesRatio,
	countryRatios []CountryRatio,
	labelRatios []LabelRatio,
	expenses []RegionalExpense,
	products []Product,
	countries []Country,
) *ReferenceSet {
	rs := &ReferenceSet{
		exchangeRates:    make(map[string]decimal.Decimal, len(rates)),
		unitCosts:        make(map[costKey]decimal.Decimal, len(costs)),
		priceQuotes:      make(map[costKey]PriceQuote, len(quotes)),
		seriesRatios:     make(map[string]SeriesRatio, len(seriesRatios)),
		countryRatios:    make(map[string]CountryRatio, len(countryRatios)),
		labelRatios:      make(map[labelKey]LabelRatio, len(labelRatios)),
		regionalExpenses: make(map[regionKey]RegionalExpense, len(expenses)),
		products:         make(map[string]Product, len(products)),
		countries:        make(map[string]Country, len(countries)),
	}

	for _, r := range rates {
		rs.exchangeRates[r.Period] = r.Rate
	}
	for _, c := range costs {
		k := costKey{c.Product, c.Country, c.Period}
		if _, ok := rs.unitCosts[k]; !ok {
			rs.unitCosts[k] = c.Cost
		}
	}
	for _, q := range quotes {
		k := costKey{q.Product, q.Country, q.Period}
		if _, ok := rs.priceQuotes[k]; !ok {
			rs.priceQuotes[k] = q
		}
	}
	for _, r := range seriesRatios {
		rs.seriesRatios[r.Series] = r
	}
	for _, r := range countryRatios {
		rs.countryRatios[r.Country] = r
	}

	// Latest-wins: sort by surrogate id descending, keep the first row per
	// key. Superseded configuration rows are never deleted upstream.
	sorted := make([]LabelRatio, len(labelRatios))
	copy(sorted, labelRatios)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	for _, r := range sorted {
		k := labelKey{r.Label, r.Country}
		if _, ok := rs.labelRatios[k]; !ok {
			rs.labelRatios[k] = r
		}
	}

	for _, e := range expenses {
		k := regionKey{e.Country, e.Period}
		if _, ok := rs.regionalExpenses[k]; !ok {
			rs.regionalExpenses[k] = e
		}
	}
	for _, p := range products {
		rs.products[p.Product] = p
	}
	for _, c := range countries {
		rs.countries[c.Country] = c
	}

	return rs
}

// EmptyReferenceSet returns a snapshot with no reference data at all; every
// lookup misses and derivation degrades to defaults.
func EmptyReferenceSet() *ReferenceSet {
	return NewReferenceSet(nil, nil, nil, nil, nil, nil, nil, nil, nil)
}

// ExchangeRate returns the local-to-base rate for a period, defaulting to 1.
func (rs *ReferenceSet) ExchangeRate(period string) decimal.Decimal {
	if r, ok := rs.exchangeRates[period]; ok {
		return r
	}
	return decimal.NewFromInt(1)
}

// UnitCost returns the per-unit cost for a product/country/period, or zero.
func (rs *ReferenceSet) UnitCost(product, country, period string) decimal.Decimal {
	return rs.unitCosts[costKey{product, country, period}]
}

// PriceQuote returns the quoted price for a product/country/period.
func (rs *ReferenceSet) PriceQuote(product, country, period string) (PriceQuote, bool) {
	q, ok := rs.priceQuotes[costKey{product, country, period}]
	return q, ok
}

// SeriesRatio returns the cost-accrual rates for a series; zero rates when absent.
func (rs *ReferenceSet) SeriesRatio(series string) SeriesRatio {
	return rs.seriesRatios[series]
}

// CountryRatio returns the allocation rates for a country; zero rates when absent.
func (rs *ReferenceSet) CountryRatio(country string) CountryRatio {
	return rs.countryRatios[country]
}

// LabelRatio returns the after-sales rate for a label/country after
// deduplication; zero rate when absent.
func (rs *ReferenceSet) LabelRatio(label, country string) LabelRatio {
	return rs.labelRatios[labelKey{label, country}]
}

// RegionalExpense returns the absolute expenses for a country/period; all
// four components are zero when absent.
func (rs *ReferenceSet) RegionalExpense(country, period string) RegionalExpense {
	return rs.regionalExpenses[regionKey{country, period}]
}

// Product returns the product metadata; empty series/label when absent.
func (rs *ReferenceSet) Product(product string) Product {
	return rs.products[product]
}

// Country returns the country metadata; empty market when absent.
func (rs *ReferenceSet) Country(country string) Country {
	return rs.countries[country]
}
