package repository

import (
	"context"

	"gorm.io/gorm"

	"infinitetms/internal/models"
)

type AttendanceRepository interface {
	FindByUserDate(ctx context.Context, userID int64, date string) (*models.Attendance, error)
	Save(ctx context.Context, a *models.Attendance) error
	List(ctx context.Context, userID *int64) ([]models.Attendance, error)
}

type DocumentRepository interface {
	Create(ctx context.Context, d *models.Document) error
	FindByID(ctx context.Context, id int64) (*models.Document, error)
	List(ctx context.Context, userID *int64) ([]models.Document, error)
	Delete(ctx context.Context, id int64) error
}

type WorkUpdateRepository interface {
	Create(ctx context.Context, w *models.WorkUpdate) error
	List(ctx context.Context, userID *int64) ([]models.WorkUpdate, error)
}

type attendanceRepository struct{ db *gorm.DB }

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) FindByUserDate(ctx context.Context, userID int64, date string) (*models.Attendance, error) {
	var a models.Attendance
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, date).First(&a).Error
	if err != nil {
		return nil, wrap(err, "find attendance")
	}
	return &a, nil
}

func (r *attendanceRepository) Save(ctx context.Context, a *models.Attendance) error {
	return wrap(r.db.WithContext(ctx).Save(a).Error, "save attendance")
}

func (r *attendanceRepository) List(ctx context.Context, userID *int64) ([]models.Attendance, error) {
	q := r.db.WithContext(ctx).Order("date desc")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var out []models.Attendance
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap(err, "list attendance")
	}
	return out, nil
}

type documentRepository struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) Create(ctx context.Context, d *models.Document) error {
	return wrap(r.db.WithContext(ctx).Create(d).Error, "create document")
}

func (r *documentRepository) FindByID(ctx context.Context, id int64) (*models.Document, error) {
	var d models.Document
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, wrap(err, "find document")
	}
	return &d, nil
}

func (r *documentRepository) List(ctx context.Context, userID *int64) ([]models.Document, error) {
	q := r.db.WithContext(ctx).Order("uploaded_at desc")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var out []models.Document
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap(err, "list documents")
	}
	return out, nil
}

func (r *documentRepository) Delete(ctx context.Context, id int64) error {
	return wrap(r.db.WithContext(ctx).Delete(&models.Document{}, id).Error, "delete document")
}

type workUpdateRepository struct{ db *gorm.DB }

func NewWorkUpdateRepository(db *gorm.DB) WorkUpdateRepository {
	return &workUpdateRepository{db: db}
}

func (r *workUpdateRepository) Create(ctx context.Context, w *models.WorkUpdate) error {
	return wrap(r.db.WithContext(ctx).Create(w).Error, "create work update")
}

func (r *workUpdateRepository) List(ctx context.Context, userID *int64) ([]models.WorkUpdate, error) {
	q := r.db.WithContext(ctx).Order("date desc, created_at desc")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var out []models.WorkUpdate
	if err := q.Find(&out).Error; err != nil {
		return nil, wrap(err, "list work updates")
	}
	return out, nil
}
