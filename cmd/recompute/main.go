// Command recompute is the administrative propagation trigger: it re-derives
// and re-upserts the reporting table for a single natural key, a whole
// period, or the trailing maintenance window. Run it after editing reference
// tables; reference edits never propagate automatically.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/salesboard/engine/internal/application/engine"
	"github.com/salesboard/engine/internal/domain/audit"
	"github.com/salesboard/engine/internal/domain/derivation"
	"github.com/salesboard/engine/internal/infrastructure/config"
	"github.com/salesboard/engine/internal/infrastructure/logger"
	"github.com/salesboard/engine/internal/infrastructure/persistence"
)

func main() {
	var (
		period   string
		country  string
		product  string
		trailing int
		operator string
	)

	flag.StringVar(&period, "period", "", "Time period (YYYY-MM)")
	flag.StringVar(&country, "country", "", "Country (requires -period and -product)")
	flag.StringVar(&product, "product", "", "Product (requires -period and -country)")
	flag.IntVar(&trailing, "trailing", 0, "Recompute the trailing N periods")
	flag.StringVar(&operator, "operator", "maintenance", "Operator name recorded in the audit log")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	scope, err := buildScope(period, country, product, trailing, cfg.Engine.TrailingPeriods)
	if err != nil {
		log.Fatal("Invalid scope", zap.Error(err))
	}

	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Warn("Failed to close database", zap.Error(err))
		}
	}()

	eng := engine.New(
		persistence.NewGormFactRepository(db.DB),
		persistence.NewGormReferenceRepository(db.DB),
		log,
		engine.WithAuditRepository(persistence.NewGormAuditLogRepository(db.DB)),
		engine.WithSettings(derivation.Settings{
			BaseCurrency:    cfg.Engine.BaseCurrency,
			ForeignCurrency: cfg.Engine.ForeignCurrency,
		}),
		engine.WithTrailingPeriods(cfg.Engine.TrailingPeriods),
	)

	actor := audit.Actor{Username: operator, Role: "Operator"}
	if err := eng.Recompute(context.Background(), actor, scope); err != nil {
		log.Fatal("Recompute failed", zap.Error(err))
	}

	log.Info("Recompute completed")
}

// buildScope derives the recompute scope from the flags. With no flags at
// all the configured trailing window is swept.
func buildScope(period, country, product string, trailing, defaultTrailing int) (derivation.Scope, error) {
	switch {
	case country != "" || product != "":
		if period == "" || country == "" || product == "" {
			return derivation.Scope{}, fmt.Errorf("a key scope needs -period, -country and -product")
		}
		return derivation.KeyScope(derivation.FactKey{
			Period:  period,
			Country: country,
			Product: product,
		}), nil
	case period != "":
		return derivation.PeriodScope(period), nil
	case trailing > 0:
		return derivation.TrailingScope(trailing), nil
	default:
		return derivation.TrailingScope(defaultTrailing), nil
	}
}
