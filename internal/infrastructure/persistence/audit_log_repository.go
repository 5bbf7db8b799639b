package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/salesboard/engine/internal/domain/audit"
	"github.com/salesboard/engine/internal/infrastructure/persistence/models"
)

// GormAuditLogRepository implements audit.Repository using GORM.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Save persists an audit entry.
func (r *GormAuditLogRepository) Save(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Create(models.AuditEntryModelFromDomain(entry)).Error
}
