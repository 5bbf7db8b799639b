package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/salesboard/engine/internal/domain/derivation"
	"github.com/salesboard/engine/internal/domain/shared"
	"github.com/salesboard/engine/internal/infrastructure/persistence/models"
)

// factKeyColumns is the natural key every fact table enforces uniqueness on.
var factKeyColumns = []clause.Column{
	{Name: "period"},
	{Name: "country"},
	{Name: "product"},
}

// GormFactRepository implements derivation.FactRepository using GORM. Both
// raw fact tables and the reporting table share the FactRowModel shape and
// the same ON CONFLICT upsert on the natural key; that upsert is the only
// coordination between concurrent writers to the same key.
type GormFactRepository struct {
	db *gorm.DB
}

// NewGormFactRepository creates a new GormFactRepository
func NewGormFactRepository(db *gorm.DB) *GormFactRepository {
	return &GormFactRepository{db: db}
}

// UpsertFacts writes a derived batch into the raw table for the stream.
// The batch is wrapped in one transaction: either every record lands or none does.
func (r *GormFactRepository) UpsertFacts(ctx context.Context, stream derivation.Stream, records []derivation.DerivedRecord) error {
	return r.upsert(ctx, models.FactTableFor(stream), records)
}

// UpsertReporting writes a derived batch into the reporting table.
func (r *GormFactRepository) UpsertReporting(ctx context.Context, records []derivation.DerivedRecord) error {
	return r.upsert(ctx, models.TableReportingRows, records)
}

func (r *GormFactRepository) upsert(ctx context.Context, table string, records []derivation.DerivedRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([]models.FactRowModel, len(records))
	for i, record := range records {
		rows[i] = models.FactRowModelFromDomain(record)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).
			Clauses(clause.OnConflict{
				Columns:   factKeyColumns,
				DoUpdates: clause.AssignmentColumns(models.FactUpdateColumns),
			}).
			Create(&rows).Error
	})
}

// DeleteFact removes one raw fact from the stream.
func (r *GormFactRepository) DeleteFact(ctx context.Context, stream derivation.Stream, key derivation.FactKey) error {
	result := r.db.WithContext(ctx).
		Table(models.FactTableFor(stream)).
		Where("period = ? AND country = ? AND product = ?", key.Period, key.Country, key.Product).
		Delete(&models.FactRowModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteReporting removes one reporting row. Absent keys are not an error.
func (r *GormFactRepository) DeleteReporting(ctx context.Context, key derivation.FactKey) error {
	return r.db.WithContext(ctx).
		Table(models.TableReportingRows).
		Where("period = ? AND country = ? AND product = ?", key.Period, key.Country, key.Product).
		Delete(&models.FactRowModel{}).Error
}

// FactsInScope selects the union of matching rows from both raw fact
// streams, actual first so that on duplicated keys the budget-derived row is
// the later reporting write.
func (r *GormFactRepository) FactsInScope(ctx context.Context, scope derivation.Scope) ([]derivation.Fact, error) {
	var facts []derivation.Fact
	for _, table := range []string{models.TableActualFacts, models.TableBudgetFacts} {
		var rows []models.FactRowModel
		query := r.scopeQuery(r.db.WithContext(ctx).Table(table), scope).
			Order("period, country, product")
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			facts = append(facts, row.ToFact())
		}
	}
	return facts, nil
}

// Reporting reads reporting rows matching the filter.
func (r *GormFactRepository) Reporting(ctx context.Context, filter derivation.ReportFilter) ([]derivation.DerivedRecord, error) {
	query := r.db.WithContext(ctx).Table(models.TableReportingRows)
	if filter.Period != "" {
		query = query.Where("period = ?", filter.Period)
	}
	if filter.Country != "" {
		query = query.Where("country = ?", filter.Country)
	}
	if filter.Product != "" {
		query = query.Where("product = ?", filter.Product)
	}

	var rows []models.FactRowModel
	if err := query.Order("period DESC, country, product").Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]derivation.DerivedRecord, len(rows))
	for i, row := range rows {
		records[i] = row.ToDomain()
	}
	return records, nil
}

// scopeQuery applies the recompute scope to a fact-table query. Trailing
// scopes rely on the lexicographic ordering of YYYY-MM period strings.
func (r *GormFactRepository) scopeQuery(query *gorm.DB, scope derivation.Scope) *gorm.DB {
	switch {
	case scope.Key != nil:
		return query.Where("period = ? AND country = ? AND product = ?",
			scope.Key.Period, scope.Key.Country, scope.Key.Product)
	case scope.Period != "":
		return query.Where("period = ?", scope.Period)
	default:
		return query.Where("period >= ?", scope.CutoffPeriod(time.Now()))
	}
}
