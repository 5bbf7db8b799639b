package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/salesboard/engine/internal/domain/audit"
)

func newMockAuditLogRepository(t *testing.T) (*GormAuditLogRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormAuditLogRepository(gormDB), mock, mockDB
}

func TestGormAuditLogRepository_Save(t *testing.T) {
	t.Run("persists the entry", func(t *testing.T) {
		repo, mock, mockDB := newMockAuditLogRepository(t)
		defer mockDB.Close()

		entry := audit.NewEntry(
			audit.Actor{Username: "analyst", Role: "Editor"},
			audit.ActionSubmitFact,
			"stream=actual key=2026-01/Germany/Widget-A quantity=100",
		)

		mock.ExpectExec(`INSERT INTO "engine_audit_log"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Save(context.Background(), entry)

		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates write failure", func(t *testing.T) {
		repo, mock, mockDB := newMockAuditLogRepository(t)
		defer mockDB.Close()

		entry := audit.NewEntry(audit.Actor{UserID: "u-1"}, audit.ActionRecompute, "scope=period period=2026-01")

		mock.ExpectExec(`INSERT INTO "engine_audit_log"`).
			WillReturnError(errors.New("table full"))

		err := repo.Save(context.Background(), entry)

		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
