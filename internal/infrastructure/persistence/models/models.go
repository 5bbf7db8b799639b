// Package models contains the persistence models for the derivation engine.
// Raw fact tables, the reporting table, and the reference tables map to the
// domain types in internal/domain/derivation; conversions live next to each
// model so the domain stays free of gorm tags.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/salesboard/engine/internal/domain/audit"
	"github.com/salesboard/engine/internal/domain/derivation"
)

// Fact table names. The two raw streams and the reporting table share one
// row shape, so a single model is bound to a table at query time.
const (
	TableActualFacts   = "actual_facts"
	TableBudgetFacts   = "budget_facts"
	TableReportingRows = "reporting_rows"
)

// FactTableFor maps a fact stream to its raw table.
func FactTableFor(stream derivation.Stream) string {
	if stream == derivation.StreamBudget {
		return TableBudgetFacts
	}
	return TableActualFacts
}

// FactRowModel is the persistence model for raw fact rows and reporting rows.
// The natural key (period, country, product) is the composite primary key;
// upserts overwrite every non-key column.
type FactRowModel struct {
	Period       string          `gorm:"column:period;type:varchar(7);primaryKey"`
	Country      string          `gorm:"column:country;type:varchar(100);primaryKey"`
	Product      string          `gorm:"column:product;type:varchar(100);primaryKey"`
	Market       string          `gorm:"column:market;type:varchar(100);not null;default:''"`
	Series       string          `gorm:"column:series;type:varchar(100);not null;default:''"`
	Label        string          `gorm:"column:label;type:varchar(100);not null;default:''"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:decimal(18,4);not null"`
	Revenue      decimal.Decimal `gorm:"column:revenue;type:decimal(18,2);not null"`
	GrossProfit  decimal.Decimal `gorm:"column:gross_profit;type:decimal(18,2);not null"`
	MarginProfit decimal.Decimal `gorm:"column:margin_profit;type:decimal(18,2);not null"`
	NetIncome    decimal.Decimal `gorm:"column:net_income;type:decimal(18,2);not null"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

// FactUpdateColumns are the non-key columns overwritten on upsert.
var FactUpdateColumns = []string{
	"market", "series", "label", "quantity",
	"revenue", "gross_profit", "margin_profit", "net_income",
	"updated_at",
}

// ToDomain converts the persistence model to a domain DerivedRecord.
func (m *FactRowModel) ToDomain() derivation.DerivedRecord {
	return derivation.DerivedRecord{
		Fact: derivation.Fact{
			FactKey: derivation.FactKey{
				Period:  m.Period,
				Country: m.Country,
				Product: m.Product,
			},
			Market:   m.Market,
			Series:   m.Series,
			Label:    m.Label,
			Quantity: m.Quantity,
		},
		Revenue:      m.Revenue,
		GrossProfit:  m.GrossProfit,
		MarginProfit: m.MarginProfit,
		NetIncome:    m.NetIncome,
	}
}

// ToFact converts the persistence model to a bare domain Fact.
func (m *FactRowModel) ToFact() derivation.Fact {
	return m.ToDomain().Fact
}

// FactRowModelFromDomain creates a persistence model from a derived record.
func FactRowModelFromDomain(r derivation.DerivedRecord) FactRowModel {
	return FactRowModel{
		Period:       r.Period,
		Country:      r.Country,
		Product:      r.Product,
		Market:       r.Market,
		Series:       r.Series,
		Label:        r.Label,
		Quantity:     r.Quantity,
		Revenue:      r.Revenue,
		GrossProfit:  r.GrossProfit,
		MarginProfit: r.MarginProfit,
		NetIncome:    r.NetIncome,
		UpdatedAt:    time.Now(),
	}
}

// ExchangeRateModel is the persistence model for the exchange-rate table.
type ExchangeRateModel struct {
	Period string          `gorm:"column:period;type:varchar(7);primaryKey"`
	Rate   decimal.Decimal `gorm:"column:rate;type:decimal(18,6);not null"`
}

// TableName returns the table name for GORM
func (ExchangeRateModel) TableName() string { return "exchange_rates" }

// UnitCostModel is the persistence model for the unit-cost table.
type UnitCostModel struct {
	Product string          `gorm:"column:product;type:varchar(100);primaryKey"`
	Country string          `gorm:"column:country;type:varchar(100);primaryKey"`
	Period  string          `gorm:"column:period;type:varchar(7);primaryKey"`
	Cost    decimal.Decimal `gorm:"column:cost;type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (UnitCostModel) TableName() string { return "unit_costs" }

// PriceQuoteModel is the persistence model for the price-quote table.
type PriceQuoteModel struct {
	Product  string          `gorm:"column:product;type:varchar(100);primaryKey"`
	Country  string          `gorm:"column:country;type:varchar(100);primaryKey"`
	Period   string          `gorm:"column:period;type:varchar(7);primaryKey"`
	Price    decimal.Decimal `gorm:"column:price;type:decimal(18,4);not null"`
	Currency string          `gorm:"column:currency;type:varchar(10);not null"`
}

// TableName returns the table name for GORM
func (PriceQuoteModel) TableName() string { return "price_quotes" }

// SeriesRatioModel is the persistence model for the series ratio table.
type SeriesRatioModel struct {
	Series           string          `gorm:"column:series;type:varchar(100);primaryKey"`
	AmortizationRate decimal.Decimal `gorm:"column:amortization_rate;type:decimal(10,6);not null"`
	RnDRate          decimal.Decimal `gorm:"column:rnd_rate;type:decimal(10,6);not null"`
}

// TableName returns the table name for GORM
func (SeriesRatioModel) TableName() string { return "series_ratios" }

// CountryRatioModel is the persistence model for the country ratio table.
type CountryRatioModel struct {
	Country                string          `gorm:"column:country;type:varchar(100);primaryKey"`
	FunctionalRate         decimal.Decimal `gorm:"column:functional_rate;type:decimal(10,6);not null"`
	HeadquartersRate       decimal.Decimal `gorm:"column:headquarters_rate;type:decimal(10,6);not null"`
	MarketingProvisionRate decimal.Decimal `gorm:"column:marketing_provision_rate;type:decimal(10,6);not null"`
}

// TableName returns the table name for GORM
func (CountryRatioModel) TableName() string { return "country_ratios" }

// LabelRatioModel is the persistence model for the label ratio table. The
// declared key (label, country) is deliberately not unique: superseding
// configuration rows accumulate and the engine resolves the latest by the
// auto-incrementing surrogate id.
type LabelRatioModel struct {
	ID             uint            `gorm:"column:id;primaryKey;autoIncrement"`
	Label          string          `gorm:"column:label;type:varchar(100);not null;index:idx_label_ratios_key"`
	Country        string          `gorm:"column:country;type:varchar(100);not null;index:idx_label_ratios_key"`
	AfterSalesRate decimal.Decimal `gorm:"column:after_sales_rate;type:decimal(10,6);not null"`
}

// TableName returns the table name for GORM
func (LabelRatioModel) TableName() string { return "label_ratios" }

// RegionalExpenseModel is the persistence model for the regional expense table.
type RegionalExpenseModel struct {
	Country       string          `gorm:"column:country;type:varchar(100);primaryKey"`
	Period        string          `gorm:"column:period;type:varchar(7);primaryKey"`
	Marketing     decimal.Decimal `gorm:"column:marketing;type:decimal(18,2);not null"`
	Labor         decimal.Decimal `gorm:"column:labor;type:decimal(18,2);not null"`
	OtherVariable decimal.Decimal `gorm:"column:other_variable;type:decimal(18,2);not null"`
	OtherFixed    decimal.Decimal `gorm:"column:other_fixed;type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (RegionalExpenseModel) TableName() string { return "regional_expenses" }

// ProductModel is the persistence model for product metadata.
type ProductModel struct {
	Product string `gorm:"column:product;type:varchar(100);primaryKey"`
	Series  string `gorm:"column:series;type:varchar(100);not null;default:''"`
	Label   string `gorm:"column:label;type:varchar(100);not null;default:''"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string { return "products" }

// CountryModel is the persistence model for country metadata.
type CountryModel struct {
	Country string `gorm:"column:country;type:varchar(100);primaryKey"`
	Market  string `gorm:"column:market;type:varchar(100);not null;default:''"`
}

// TableName returns the table name for GORM
func (CountryModel) TableName() string { return "countries" }

// AuditEntryModel is the persistence model for engine audit entries.
type AuditEntryModel struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username  string    `gorm:"column:username;type:varchar(100);not null"`
	Role      string    `gorm:"column:role;type:varchar(50);not null"`
	Action    string    `gorm:"column:action;type:varchar(50);not null;index"`
	Details   string    `gorm:"column:details;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string { return "engine_audit_log" }

// AuditEntryModelFromDomain creates a persistence model from an audit entry.
func AuditEntryModelFromDomain(e *audit.Entry) *AuditEntryModel {
	return &AuditEntryModel{
		ID:        e.ID,
		Username:  e.Username,
		Role:      e.Role,
		Action:    string(e.Action),
		Details:   e.Details,
		CreatedAt: e.CreatedAt,
	}
}
