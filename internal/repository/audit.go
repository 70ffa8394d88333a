package repository

import (
	"context"

	"gorm.io/gorm"

	"infinitetms/internal/models"
)

type AuditRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	// List returns the newest entries first; a nil userID lists everyone.
	List(ctx context.Context, userID *int64, limit int) ([]models.AuditLog, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return wrap(r.db.WithContext(ctx).Create(entry).Error, "create audit log")
}

func (r *auditRepository) List(ctx context.Context, userID *int64, limit int) ([]models.AuditLog, error) {
	q := r.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var logs []models.AuditLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, wrap(err, "list audit logs")
	}
	return logs, nil
}
