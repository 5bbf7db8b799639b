package derivation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// metricPrecision is the single external rounding contract: the four output
// metrics are rounded to 2 decimal places at the point of assignment, never
// earlier.
const metricPrecision = 2

// Derive resolves a raw fact against the reference snapshot and computes the
// financial metrics. Missing reference data degrades to zero/identity
// defaults; the only error condition is a malformed fact. The computation
// order is load-bearing: each later term is defined as a subtraction from the
// previous running total.
func Derive(fact Fact, refs *ReferenceSet, settings Settings) (DerivedRecord, error) {
	if err := fact.Validate(); err != nil {
		return Zeroed(fact), err
	}
	if fact.Quantity.IsNegative() {
		return Zeroed(fact), fmt.Errorf("negative quantity %s for %s", fact.Quantity, fact.FactKey)
	}

	// Descriptive attributes
	product := refs.Product(fact.Product)
	fact.Series = product.Series
	fact.Label = product.Label
	fact.Market = refs.Country(fact.Country).Market

	// Reference resolution
	rate := refs.ExchangeRate(fact.Period)

	basePrice := decimal.Zero
	if quote, ok := refs.PriceQuote(fact.Product, fact.Country, fact.Period); ok {
		basePrice = settings.NormalizePrice(quote.Price, quote.Currency, rate)
	}

	unitCost := refs.UnitCost(fact.Product, fact.Country, fact.Period)
	seriesRatio := refs.SeriesRatio(fact.Series)
	countryRatio := refs.CountryRatio(fact.Country)
	labelRatio := refs.LabelRatio(fact.Label, fact.Country)
	regional := refs.RegionalExpense(fact.Country, fact.Period)

	// Running-total computation
	revenue := fact.Quantity.Mul(basePrice)
	totalCost := unitCost.Mul(fact.Quantity)
	grossProfit := revenue.Sub(totalCost)

	rndExpense := totalCost.Mul(seriesRatio.AmortizationRate.Add(seriesRatio.RnDRate))
	afterSalesProvision := totalCost.Mul(labelRatio.AfterSalesRate)
	marketingProvision := revenue.Mul(countryRatio.MarketingProvisionRate)

	marginProfit := grossProfit.
		Sub(rndExpense).
		Sub(afterSalesProvision).
		Sub(marketingProvision).
		Sub(regional.Marketing).
		Sub(regional.Labor).
		Sub(regional.OtherVariable)

	functionalExpense := totalCost.Mul(countryRatio.FunctionalRate)
	headquartersExpense := totalCost.Mul(countryRatio.HeadquartersRate)

	netIncome := marginProfit.
		Sub(regional.OtherFixed).
		Sub(functionalExpense).
		Sub(headquartersExpense)

	return DerivedRecord{
		Fact:         fact,
		Revenue:      revenue.Round(metricPrecision),
		GrossProfit:  grossProfit.Round(metricPrecision),
		MarginProfit: marginProfit.Round(metricPrecision),
		NetIncome:    netIncome.Round(metricPrecision),
	}, nil
}
