package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"infinitetms/internal/models"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	FindByID(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	// RevokeAllForUser revokes every live session of userID and returns
	// their IDs.
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) ([]string, error)
	// DeleteExpired removes sessions that expired or were revoked before
	// cutoff and reports how many rows went away.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, s *models.Session) error {
	return wrap(r.db.WithContext(ctx).Create(s).Error, "create session")
}

func (r *sessionRepository) FindByID(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, wrap(err, "find session")
	}
	return &s, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error
	return wrap(err, "revoke session")
}

func (r *sessionRepository) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).
			Where("user_id = ? AND revoked_at IS NULL", userID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&models.Session{}).Where("id IN ?", ids).Update("revoked_at", at).Error
	})
	if err != nil {
		return nil, wrap(err, "revoke user sessions")
	}
	return ids, nil
}

func (r *sessionRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR revoked_at < ?", cutoff, cutoff).
		Delete(&models.Session{})
	return res.RowsAffected, wrap(res.Error, "delete expired sessions")
}
