package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/salesboard/engine/internal/domain/derivation"
	"github.com/salesboard/engine/internal/infrastructure/persistence/models"
)

// GormReferenceRepository implements derivation.ReferenceRepository using
// GORM. Every method loads its whole table; the engine builds a per-batch
// lookup snapshot from the result. The reference tables are owned and edited
// by external administrative tooling, never written here.
type GormReferenceRepository struct {
	db *gorm.DB
}

// NewGormReferenceRepository creates a new GormReferenceRepository
func NewGormReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

// ExchangeRates loads the exchange-rate table.
func (r *GormReferenceRepository) ExchangeRates(ctx context.Context) ([]derivation.ExchangeRate, error) {
	var rows []models.ExchangeRateModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	rates := make([]derivation.ExchangeRate, len(rows))
	for i, row := range rows {
		rates[i] = derivation.ExchangeRate{Period: row.Period, Rate: row.Rate}
	}
	return rates, nil
}

// UnitCosts loads the unit-cost table.
func (r *GormReferenceRepository) UnitCosts(ctx context.Context) ([]derivation.UnitCost, error) {
	var rows []models.UnitCostModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	costs := make([]derivation.UnitCost, len(rows))
	for i, row := range rows {
		costs[i] = derivation.UnitCost{
			Product: row.Product,
			Country: row.Country,
			Period:  row.Period,
			Cost:    row.Cost,
		}
	}
	return costs, nil
}

// PriceQuotes loads the price-quote table.
func (r *GormReferenceRepository) PriceQuotes(ctx context.Context) ([]derivation.PriceQuote, error) {
	var rows []models.PriceQuoteModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	quotes := make([]derivation.PriceQuote, len(rows))
	for i, row := range rows {
		quotes[i] = derivation.PriceQuote{
			Product:  row.Product,
			Country:  row.Country,
			Period:   row.Period,
			Price:    row.Price,
			Currency: row.Currency,
		}
	}
	return quotes, nil
}

// SeriesRatios loads the series ratio table.
func (r *GormReferenceRepository) SeriesRatios(ctx context.Context) ([]derivation.SeriesRatio, error) {
	var rows []models.SeriesRatioModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	ratios := make([]derivation.SeriesRatio, len(rows))
	for i, row := range rows {
		ratios[i] = derivation.SeriesRatio{
			Series:           row.Series,
			AmortizationRate: row.AmortizationRate,
			RnDRate:          row.RnDRate,
		}
	}
	return ratios, nil
}

// CountryRatios loads the country ratio table.
func (r *GormReferenceRepository) CountryRatios(ctx context.Context) ([]derivation.CountryRatio, error) {
	var rows []models.CountryRatioModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	ratios := make([]derivation.CountryRatio, len(rows))
	for i, row := range rows {
		ratios[i] = derivation.CountryRatio{
			Country:                row.Country,
			FunctionalRate:         row.FunctionalRate,
			HeadquartersRate:       row.HeadquartersRate,
			MarketingProvisionRate: row.MarketingProvisionRate,
		}
	}
	return ratios, nil
}

// LabelRatios loads the label ratio table, duplicates included; the domain
// dedup policy resolves them.
func (r *GormReferenceRepository) LabelRatios(ctx context.Context) ([]derivation.LabelRatio, error) {
	var rows []models.LabelRatioModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	ratios := make([]derivation.LabelRatio, len(rows))
	for i, row := range rows {
		ratios[i] = derivation.LabelRatio{
			ID:             row.ID,
			Label:          row.Label,
			Country:        row.Country,
			AfterSalesRate: row.AfterSalesRate,
		}
	}
	return ratios, nil
}

// RegionalExpenses loads the regional expense table.
func (r *GormReferenceRepository) RegionalExpenses(ctx context.Context) ([]derivation.RegionalExpense, error) {
	var rows []models.RegionalExpenseModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	expenses := make([]derivation.RegionalExpense, len(rows))
	for i, row := range rows {
		expenses[i] = derivation.RegionalExpense{
			Country:       row.Country,
			Period:        row.Period,
			Marketing:     row.Marketing,
			Labor:         row.Labor,
			OtherVariable: row.OtherVariable,
			OtherFixed:    row.OtherFixed,
		}
	}
	return expenses, nil
}

// Products loads the product metadata table.
func (r *GormReferenceRepository) Products(ctx context.Context) ([]derivation.Product, error) {
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	products := make([]derivation.Product, len(rows))
	for i, row := range rows {
		products[i] = derivation.Product{
			Product: row.Product,
			Series:  row.Series,
			Label:   row.Label,
		}
	}
	return products, nil
}

// Countries loads the country metadata table.
func (r *GormReferenceRepository) Countries(ctx context.Context) ([]derivation.Country, error) {
	var rows []models.CountryModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	countries := make([]derivation.Country, len(rows))
	for i, row := range rows {
		countries[i] = derivation.Country{Country: row.Country, Market: row.Market}
	}
	return countries, nil
}
