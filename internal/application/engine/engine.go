package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/salesboard/engine/internal/domain/audit"
	"github.com/salesboard/engine/internal/domain/derivation"
	"github.com/salesboard/engine/internal/domain/shared"
)

// Engine is the financial derivation engine: it turns raw sales facts into
// derived financial metrics, persists them with upsert semantics, and keeps
// the reporting table consistent through synchronous propagation.
//
// The engine owns no concurrency: every entry point runs one synchronous
// derive → persist → propagate sequence on the calling goroutine.
type Engine struct {
	facts     derivation.FactRepository
	refs      derivation.ReferenceRepository
	auditRepo audit.Repository
	logger    *zap.Logger
	settings  derivation.Settings
	trailing  int
	validate  *validator.Validate
}

// Option is a functional option for configuring the Engine
type Option func(*Engine)

// WithAuditRepository enables best-effort audit logging of engine operations.
func WithAuditRepository(repo audit.Repository) Option {
	return func(e *Engine) {
		e.auditRepo = repo
	}
}

// WithSettings overrides the currency settings.
func WithSettings(settings derivation.Settings) Option {
	return func(e *Engine) {
		e.settings = settings
	}
}

// WithTrailingPeriods overrides the width of the default maintenance sweep.
func WithTrailingPeriods(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.trailing = n
		}
	}
}

// New creates a new Engine
func New(facts derivation.FactRepository, refs derivation.ReferenceRepository, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		facts:    facts,
		refs:     refs,
		logger:   logger,
		settings: derivation.DefaultSettings(),
		trailing: derivation.DefaultTrailingPeriods,
		validate: validator.New(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SubmitFactCommand is the single entry point payload for a fact write.
type SubmitFactCommand struct {
	Stream   derivation.Stream `validate:"required,oneof=actual budget"`
	Period   string            `validate:"required"`
	Country  string            `validate:"required"`
	Product  string            `validate:"required"`
	Quantity decimal.Decimal   `validate:"-"`
}

// Key returns the natural key of the submitted fact.
func (c SubmitFactCommand) Key() derivation.FactKey {
	return derivation.FactKey{Period: c.Period, Country: c.Country, Product: c.Product}
}

func (c SubmitFactCommand) validateWith(v *validator.Validate) error {
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	if _, err := time.Parse(derivation.PeriodLayout, c.Period); err != nil {
		return fmt.Errorf("%w: period %q must be formatted as YYYY-MM", shared.ErrInvalidInput, c.Period)
	}
	if c.Quantity.IsNegative() {
		return fmt.Errorf("%w: quantity must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

// SubmitFact derives metrics for one fact, upserts it into the raw stream
// table, and synchronously propagates the recomputation into the reporting
// table. The raw write and the reporting write are independent failure
// domains: when only the reporting upsert fails the raw fact is durable, the
// error wraps shared.ErrReportingStale, and the next propagation sweep
// covering the key corrects the reporting table.
func (e *Engine) SubmitFact(ctx context.Context, actor audit.Actor, cmd SubmitFactCommand) error {
	if err := cmd.validateWith(e.validate); err != nil {
		return err
	}

	refs := e.loadReferences(ctx)

	fact := derivation.Fact{FactKey: cmd.Key(), Quantity: cmd.Quantity}
	records := e.deriveAndLog(ctx, []derivation.Fact{fact}, refs)

	if err := e.facts.UpsertFacts(ctx, cmd.Stream, records); err != nil {
		return errors.Join(shared.ErrPersistenceFailed,
			fmt.Errorf("upsert %s fact %s: %w", cmd.Stream, fact.FactKey, err))
	}

	e.writeAudit(ctx, actor, audit.ActionSubmitFact,
		fmt.Sprintf("stream=%s key=%s quantity=%s", cmd.Stream, fact.FactKey, cmd.Quantity))

	return e.propagate(ctx, derivation.KeyScope(fact.FactKey), refs)
}

// DeleteFact removes one raw fact from a stream and propagates the change so
// the reporting row reflects the surviving stream, or disappears when neither
// stream still has the key.
func (e *Engine) DeleteFact(ctx context.Context, actor audit.Actor, stream derivation.Stream, key derivation.FactKey) error {
	if !stream.IsValid() {
		return fmt.Errorf("%w: unknown stream %q", shared.ErrInvalidInput, stream)
	}
	if err := key.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if err := e.facts.DeleteFact(ctx, stream, key); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return err
		}
		return errors.Join(shared.ErrPersistenceFailed,
			fmt.Errorf("delete %s fact %s: %w", stream, key, err))
	}

	e.writeAudit(ctx, actor, audit.ActionDeleteFact,
		fmt.Sprintf("stream=%s key=%s", stream, key))

	return e.propagate(ctx, derivation.KeyScope(key), e.loadReferences(ctx))
}

// Recompute re-derives and re-upserts the reporting table for the scope.
// This is the explicit administrative trigger for reference-data changes;
// reference-table edits never propagate automatically.
func (e *Engine) Recompute(ctx context.Context, actor audit.Actor, scope derivation.Scope) error {
	if err := scope.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidScope, err)
	}

	e.writeAudit(ctx, actor, audit.ActionRecompute, scopeDetails(scope))

	return e.propagate(ctx, scope, e.loadReferences(ctx))
}

// RecomputeTrailing runs the default maintenance sweep over the configured
// trailing window.
func (e *Engine) RecomputeTrailing(ctx context.Context, actor audit.Actor) error {
	return e.Recompute(ctx, actor, derivation.TrailingScope(e.trailing))
}

// ReadReportingTable reads reporting rows matching the filter. Every row
// satisfies the derivation formula as of the last propagation covering its
// key; there is no freshness guarantee beyond that.
func (e *Engine) ReadReportingTable(ctx context.Context, filter derivation.ReportFilter) ([]derivation.DerivedRecord, error) {
	records, err := e.facts.Reporting(ctx, filter)
	if err != nil {
		return nil, errors.Join(shared.ErrPersistenceFailed,
			fmt.Errorf("read reporting table: %w", err))
	}
	return records, nil
}

// propagate re-selects the affected raw facts from both streams, re-runs
// derivation against the snapshot, and upserts the reporting table. For a
// key scope with no surviving raw facts the reporting row is removed.
func (e *Engine) propagate(ctx context.Context, scope derivation.Scope, refs *derivation.ReferenceSet) error {
	facts, err := e.facts.FactsInScope(ctx, scope)
	if err != nil {
		return errors.Join(shared.ErrReportingStale,
			fmt.Errorf("select facts for recompute: %w", err))
	}

	if len(facts) == 0 {
		if scope.Key != nil {
			if err := e.facts.DeleteReporting(ctx, *scope.Key); err != nil {
				return errors.Join(shared.ErrReportingStale,
					fmt.Errorf("delete reporting row %s: %w", scope.Key, err))
			}
		}
		return nil
	}

	records := e.deriveAndLog(ctx, facts, refs)

	if err := e.facts.UpsertReporting(ctx, records); err != nil {
		e.logger.Error("reporting table upsert failed, rows are stale until the next sweep",
			zap.String("scope", scopeDetails(scope)),
			zap.Error(err))
		return errors.Join(shared.ErrReportingStale,
			fmt.Errorf("upsert reporting rows: %w", err))
	}

	return nil
}

// deriveAndLog runs the batch derivation and logs per-row failures. Failed
// rows land as zeroed records; they never abort the batch.
func (e *Engine) deriveAndLog(_ context.Context, facts []derivation.Fact, refs *derivation.ReferenceSet) []derivation.DerivedRecord {
	records, failures := derivation.DeriveBatch(facts, refs, e.settings)
	for _, f := range failures {
		e.logger.Warn("row derivation failed, metrics zeroed",
			zap.String("key", f.Key.String()),
			zap.Error(f.Err))
	}
	return records
}

// loadReferences assembles the per-batch reference snapshot. Each table is
// loaded best-effort: a failed load is warn-logged and replaced by an empty
// lookup so one unavailable table does not block derivation for facts that
// don't need it.
func (e *Engine) loadReferences(ctx context.Context) *derivation.ReferenceSet {
	rates := loadTable(ctx, e.logger, "exchange_rates", e.refs.ExchangeRates)
	costs := loadTable(ctx, e.logger, "unit_costs", e.refs.UnitCosts)
	quotes := loadTable(ctx, e.logger, "price_quotes", e.refs.PriceQuotes)
	seriesRatios := loadTable(ctx, e.logger, "series_ratios", e.refs.SeriesRatios)
	countryRatios := loadTable(ctx, e.logger, "country_ratios", e.refs.CountryRatios)
	labelRatios := loadTable(ctx, e.logger, "label_ratios", e.refs.LabelRatios)
	expenses := loadTable(ctx, e.logger, "regional_expenses", e.refs.RegionalExpenses)
	products := loadTable(ctx, e.logger, "products", e.refs.Products)
	countries := loadTable(ctx, e.logger, "countries", e.refs.Countries)

	return derivation.NewReferenceSet(
		rates, costs, quotes,
		seriesRatios, countryRatios, labelRatios,
		expenses, products, countries,
	)
}

// loadTable wraps one reference load with the empty-on-failure policy.
func loadTable[T any](ctx context.Context, logger *zap.Logger, table string, load func(context.Context) ([]T, error)) []T {
	rows, err := load(ctx)
	if err != nil {
		logger.Warn("reference table unavailable, derivation falls back to defaults",
			zap.String("table", table),
			zap.Error(err))
		return nil
	}
	return rows
}

// writeAudit persists an audit entry best-effort. A failed audit write must
// never block the operation it describes.
func (e *Engine) writeAudit(ctx context.Context, actor audit.Actor, action audit.ActionType, details string) {
	if e.auditRepo == nil {
		return
	}
	entry := audit.NewEntry(actor, action, details)
	if err := e.auditRepo.Save(ctx, entry); err != nil {
		e.logger.Warn("audit entry not saved",
			zap.String("action", string(action)),
			zap.String("details", details),
			zap.Error(err))
	}
}

func scopeDetails(scope derivation.Scope) string {
	switch {
	case scope.Key != nil:
		return fmt.Sprintf("scope=key key=%s", scope.Key)
	case scope.Period != "":
		return fmt.Sprintf("scope=period period=%s", scope.Period)
	default:
		return fmt.Sprintf("scope=trailing periods=%d", scope.Trailing)
	}
}
