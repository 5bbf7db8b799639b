package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/salesboard/engine/internal/domain/audit"
	"github.com/salesboard/engine/internal/domain/derivation"
	"github.com/salesboard/engine/internal/domain/shared"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// mockFactRepository is a mock implementation of derivation.FactRepository.
type mockFactRepository struct {
	mock.Mock
}

func (m *mockFactRepository) UpsertFacts(ctx context.Context, stream derivation.Stream, records []derivation.DerivedRecord) error {
	args := m.Called(ctx, stream, records)
	return args.Error(0)
}

func (m *mockFactRepository) DeleteFact(ctx context.Context, stream derivation.Stream, key derivation.FactKey) error {
	args := m.Called(ctx, stream, key)
	return args.Error(0)
}

func (m *mockFactRepository) FactsInScope(ctx context.Context, scope derivation.Scope) ([]derivation.Fact, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]derivation.Fact), args.Error(1)
}

func (m *mockFactRepository) UpsertReporting(ctx context.Context, records []derivation.DerivedRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockFactRepository) DeleteReporting(ctx context.Context, key derivation.FactKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockFactRepository) Reporting(ctx context.Context, filter derivation.ReportFilter) ([]derivation.DerivedRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]derivation.DerivedRecord), args.Error(1)
}

// mockAuditRepository is a mock implementation of audit.Repository.
type mockAuditRepository struct {
	mock.Mock
}

func (m *mockAuditRepository) Save(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// stubReferenceRepository serves fixed reference rows; tables named in
// failing return an error to exercise the empty-on-failure policy.
type stubReferenceRepository struct {
	rates         []derivation.ExchangeRate
	costs         []derivation.UnitCost
	quotes        []derivation.PriceQuote
	seriesRatios  []derivation.SeriesRatio
	countryRatios []derivation.CountryRatio
	labelRatios   []derivation.LabelRatio
	expenses      []derivation.RegionalExpense
	products      []derivation.Product
	countries     []derivation.Country
	failing       map[string]error
}

func (s *stubReferenceRepository) fail(table string) error {
	if s.failing == nil {
		return nil
	}
	return s.failing[table]
}

func (s *stubReferenceRepository) ExchangeRates(context.Context) ([]derivation.ExchangeRate, error) {
	return s.rates, s.fail("exchange_rates")
}

func (s *stubReferenceRepository) UnitCosts(context.Context) ([]derivation.UnitCost, error) {
	return s.costs, s.fail("unit_costs")
}

func (s *stubReferenceRepository) PriceQuotes(context.Context) ([]derivation.PriceQuote, error) {
	return s.quotes, s.fail("price_quotes")
}

func (s *stubReferenceRepository) SeriesRatios(context.Context) ([]derivation.SeriesRatio, error) {
	return s.seriesRatios, s.fail("series_ratios")
}

func (s *stubReferenceRepository) CountryRatios(context.Context) ([]derivation.CountryRatio, error) {
	return s.countryRatios, s.fail("country_ratios")
}

func (s *stubReferenceRepository) LabelRatios(context.Context) ([]derivation.LabelRatio, error) {
	return s.labelRatios, s.fail("label_ratios")
}

func (s *stubReferenceRepository) RegionalExpenses(context.Context) ([]derivation.RegionalExpense, error) {
	return s.expenses, s.fail("regional_expenses")
}

func (s *stubReferenceRepository) Products(context.Context) ([]derivation.Product, error) {
	return s.products, s.fail("products")
}

func (s *stubReferenceRepository) Countries(context.Context) ([]derivation.Country, error) {
	return s.countries, s.fail("countries")
}

func newStubReferences() *stubReferenceRepository {
	return &stubReferenceRepository{
		rates:  []derivation.ExchangeRate{{Period: "2026-01", Rate: d("7.2")}},
		costs:  []derivation.UnitCost{{Product: "Widget-A", Country: "Germany", Period: "2026-01", Cost: d("30")}},
		quotes: []derivation.PriceQuote{{Product: "Widget-A", Country: "Germany", Period: "2026-01", Price: d("50"), Currency: "CNY"}},
		seriesRatios: []derivation.SeriesRatio{
			{Series: "W-Series", AmortizationRate: d("0.02"), RnDRate: d("0.03")},
		},
		countryRatios: []derivation.CountryRatio{
			{Country: "Germany", FunctionalRate: d("0.01"), HeadquartersRate: d("0.015"), MarketingProvisionRate: d("0.02")},
		},
		labelRatios: []derivation.LabelRatio{
			{ID: 1, Label: "Premium", Country: "Germany", AfterSalesRate: d("0.01")},
		},
		expenses: []derivation.RegionalExpense{
			{Country: "Germany", Period: "2026-01", Marketing: d("200"), Labor: d("300"), OtherVariable: d("100"), OtherFixed: d("50")},
		},
		products:  []derivation.Product{{Product: "Widget-A", Series: "W-Series", Label: "Premium"}},
		countries: []derivation.Country{{Country: "Germany", Market: "Europe"}},
	}
}

var testKey = derivation.FactKey{Period: "2026-01", Country: "Germany", Product: "Widget-A"}

func testActor() audit.Actor {
	return audit.Actor{UserID: "u-1", Username: "analyst", Role: "Editor"}
}

func testCommand() SubmitFactCommand {
	return SubmitFactCommand{
		Stream:   derivation.StreamActual,
		Period:   testKey.Period,
		Country:  testKey.Country,
		Product:  testKey.Product,
		Quantity: d("100"),
	}
}

func TestSubmitFact(t *testing.T) {
	ctx := context.Background()

	t.Run("derives, upserts and propagates", func(t *testing.T) {
		facts := new(mockFactRepository)
		auditRepo := new(mockAuditRepository)
		eng := New(facts, newStubReferences(), zap.NewNop(), WithAuditRepository(auditRepo))

		storedFact := derivation.Fact{FactKey: testKey, Market: "Europe", Series: "W-Series", Label: "Premium", Quantity: d("100")}

		facts.On("UpsertFacts", ctx, derivation.StreamActual, mock.MatchedBy(func(records []derivation.DerivedRecord) bool {
			return len(records) == 1 &&
				records[0].Revenue.Equal(d("5000")) &&
				records[0].GrossProfit.Equal(d("2000")) &&
				records[0].MarginProfit.Equal(d("1120")) &&
				records[0].NetIncome.Equal(d("995"))
		})).Return(nil)
		auditRepo.On("Save", ctx, mock.MatchedBy(func(entry *audit.Entry) bool {
			return entry.Action == audit.ActionSubmitFact && entry.Username == "analyst"
		})).Return(nil)
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).Return([]derivation.Fact{storedFact}, nil)
		facts.On("UpsertReporting", ctx, mock.MatchedBy(func(records []derivation.DerivedRecord) bool {
			return len(records) == 1 && records[0].FactKey == testKey
		})).Return(nil)

		err := eng.SubmitFact(ctx, testActor(), testCommand())
		require.NoError(t, err)

		facts.AssertExpectations(t)
		auditRepo.AssertExpectations(t)
	})

	t.Run("rejects unknown stream", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		cmd := testCommand()
		cmd.Stream = "forecast"

		err := eng.SubmitFact(ctx, testActor(), cmd)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		facts.AssertNotCalled(t, "UpsertFacts", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects malformed period", func(t *testing.T) {
		eng := New(new(mockFactRepository), newStubReferences(), zap.NewNop())

		cmd := testCommand()
		cmd.Period = "Jan 2026"

		err := eng.SubmitFact(ctx, testActor(), cmd)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		eng := New(new(mockFactRepository), newStubReferences(), zap.NewNop())

		cmd := testCommand()
		cmd.Quantity = d("-1")

		err := eng.SubmitFact(ctx, testActor(), cmd)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("raw upsert failure is a persistence error", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("UpsertFacts", ctx, derivation.StreamActual, mock.Anything).Return(errors.New("connection refused"))

		err := eng.SubmitFact(ctx, testActor(), testCommand())
		assert.ErrorIs(t, err, shared.ErrPersistenceFailed)
		facts.AssertNotCalled(t, "UpsertReporting", mock.Anything, mock.Anything)
	})

	t.Run("reporting upsert failure leaves the raw fact durable", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("UpsertFacts", ctx, derivation.StreamActual, mock.Anything).Return(nil)
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).
			Return([]derivation.Fact{{FactKey: testKey, Quantity: d("100")}}, nil)
		facts.On("UpsertReporting", ctx, mock.Anything).Return(errors.New("deadlock detected"))

		err := eng.SubmitFact(ctx, testActor(), testCommand())
		assert.ErrorIs(t, err, shared.ErrReportingStale)
		assert.NotErrorIs(t, err, shared.ErrPersistenceFailed)
	})

	t.Run("unavailable reference table degrades to defaults", func(t *testing.T) {
		facts := new(mockFactRepository)
		refs := newStubReferences()
		refs.failing = map[string]error{"price_quotes": errors.New("relation does not exist")}
		eng := New(facts, refs, zap.NewNop())

		// No quote means zero revenue; unit costs still accrue.
		facts.On("UpsertFacts", ctx, derivation.StreamActual, mock.MatchedBy(func(records []derivation.DerivedRecord) bool {
			return len(records) == 1 &&
				records[0].Revenue.IsZero() &&
				records[0].GrossProfit.Equal(d("-3000"))
		})).Return(nil)
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).Return([]derivation.Fact{}, nil)
		facts.On("DeleteReporting", ctx, testKey).Return(nil)

		err := eng.SubmitFact(ctx, testActor(), testCommand())
		require.NoError(t, err)
		facts.AssertExpectations(t)
	})

	t.Run("audit failure never blocks the write", func(t *testing.T) {
		facts := new(mockFactRepository)
		auditRepo := new(mockAuditRepository)
		eng := New(facts, newStubReferences(), zap.NewNop(), WithAuditRepository(auditRepo))

		facts.On("UpsertFacts", ctx, derivation.StreamActual, mock.Anything).Return(nil)
		auditRepo.On("Save", ctx, mock.Anything).Return(errors.New("audit table full"))
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).
			Return([]derivation.Fact{{FactKey: testKey, Quantity: d("100")}}, nil)
		facts.On("UpsertReporting", ctx, mock.Anything).Return(nil)

		err := eng.SubmitFact(ctx, testActor(), testCommand())
		require.NoError(t, err)
	})

	t.Run("resubmitting the same key overwrites instead of duplicating", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("UpsertFacts", ctx, derivation.StreamActual, mock.Anything).Return(nil).Twice()
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).
			Return([]derivation.Fact{{FactKey: testKey, Quantity: d("100")}}, nil).Twice()
		facts.On("UpsertReporting", ctx, mock.MatchedBy(func(records []derivation.DerivedRecord) bool {
			return len(records) == 1
		})).Return(nil).Twice()

		require.NoError(t, eng.SubmitFact(ctx, testActor(), testCommand()))
		require.NoError(t, eng.SubmitFact(ctx, testActor(), testCommand()))

		facts.AssertExpectations(t)
	})
}

func TestDeleteFact(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the fact and the orphaned reporting row", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("DeleteFact", ctx, derivation.StreamActual, testKey).Return(nil)
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).Return([]derivation.Fact{}, nil)
		facts.On("DeleteReporting", ctx, testKey).Return(nil)

		err := eng.DeleteFact(ctx, testActor(), derivation.StreamActual, testKey)
		require.NoError(t, err)
		facts.AssertExpectations(t)
	})

	t.Run("surviving stream keeps the reporting row", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		budgetFact := derivation.Fact{FactKey: testKey, Quantity: d("80")}

		facts.On("DeleteFact", ctx, derivation.StreamActual, testKey).Return(nil)
		facts.On("FactsInScope", ctx, derivation.KeyScope(testKey)).Return([]derivation.Fact{budgetFact}, nil)
		facts.On("UpsertReporting", ctx, mock.Anything).Return(nil)

		err := eng.DeleteFact(ctx, testActor(), derivation.StreamActual, testKey)
		require.NoError(t, err)
		facts.AssertNotCalled(t, "DeleteReporting", mock.Anything, mock.Anything)
	})

	t.Run("missing fact returns not found", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("DeleteFact", ctx, derivation.StreamActual, testKey).Return(shared.ErrNotFound)

		err := eng.DeleteFact(ctx, testActor(), derivation.StreamActual, testKey)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		facts.AssertNotCalled(t, "FactsInScope", mock.Anything, mock.Anything)
	})

	t.Run("rejects unknown stream", func(t *testing.T) {
		eng := New(new(mockFactRepository), newStubReferences(), zap.NewNop())

		err := eng.DeleteFact(ctx, testActor(), "forecast", testKey)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()

	t.Run("period scope re-derives every fact in the period", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		stored := []derivation.Fact{
			{FactKey: testKey, Quantity: d("100")},
			{FactKey: derivation.FactKey{Period: "2026-01", Country: "France", Product: "Widget-A"}, Quantity: d("40")},
		}

		facts.On("FactsInScope", ctx, derivation.PeriodScope("2026-01")).Return(stored, nil)
		facts.On("UpsertReporting", ctx, mock.MatchedBy(func(records []derivation.DerivedRecord) bool {
			return len(records) == 2
		})).Return(nil)

		err := eng.Recompute(ctx, testActor(), derivation.PeriodScope("2026-01"))
		require.NoError(t, err)
		facts.AssertExpectations(t)
	})

	t.Run("empty period scope is a no-op", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("FactsInScope", ctx, derivation.PeriodScope("2030-12")).Return([]derivation.Fact{}, nil)

		err := eng.Recompute(ctx, testActor(), derivation.PeriodScope("2030-12"))
		require.NoError(t, err)
		facts.AssertNotCalled(t, "UpsertReporting", mock.Anything, mock.Anything)
		facts.AssertNotCalled(t, "DeleteReporting", mock.Anything, mock.Anything)
	})

	t.Run("rejects an ambiguous scope", func(t *testing.T) {
		eng := New(new(mockFactRepository), newStubReferences(), zap.NewNop())

		err := eng.Recompute(ctx, testActor(), derivation.Scope{Period: "2026-01", Trailing: 3})
		assert.ErrorIs(t, err, shared.ErrInvalidScope)
	})

	t.Run("select failure marks reporting stale", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("FactsInScope", ctx, mock.Anything).Return(nil, errors.New("timeout"))

		err := eng.Recompute(ctx, testActor(), derivation.PeriodScope("2026-01"))
		assert.ErrorIs(t, err, shared.ErrReportingStale)
	})

	t.Run("trailing sweep uses the configured window", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop(), WithTrailingPeriods(6))

		facts.On("FactsInScope", ctx, derivation.TrailingScope(6)).Return([]derivation.Fact{}, nil)

		err := eng.RecomputeTrailing(ctx, testActor())
		require.NoError(t, err)
		facts.AssertExpectations(t)
	})
}

func TestReadReportingTable(t *testing.T) {
	ctx := context.Background()

	t.Run("passes the filter through", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		rows := []derivation.DerivedRecord{
			{Fact: derivation.Fact{FactKey: testKey}, Revenue: d("5000")},
		}
		filter := derivation.ReportFilter{Period: "2026-01", Country: "Germany"}

		facts.On("Reporting", ctx, filter).Return(rows, nil)

		got, err := eng.ReadReportingTable(ctx, filter)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	t.Run("read failure is a persistence error", func(t *testing.T) {
		facts := new(mockFactRepository)
		eng := New(facts, newStubReferences(), zap.NewNop())

		facts.On("Reporting", ctx, mock.Anything).Return(nil, errors.New("timeout"))

		_, err := eng.ReadReportingTable(ctx, derivation.ReportFilter{})
		assert.ErrorIs(t, err, shared.ErrPersistenceFailed)
	})
}
