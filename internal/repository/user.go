package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"infinitetms/internal/models"
)

type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, wrap(err, "find user by email "+email)
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, wrap(err, "find user by id")
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, wrap(err, "list users")
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return wrap(r.db.WithContext(ctx).Create(user).Error, "create user")
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return wrap(r.db.WithContext(ctx).Save(user).Error, "update user")
}

// Delete removes the user and returns every ticket assigned to them to the
// pool in the same transaction.
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Ticket{}).
			Where("assignee_id = ?", id).
			Updates(map[string]any{
				"assignee_id": nil,
				"status":      models.StatusOpen,
				"version":     gorm.Expr("version + 1"),
				"updated_at":  time.Now(),
			}).Error
		if err != nil {
			return wrap(err, "release tickets of user")
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return wrap(res.Error, "delete user")
		}
		if res.RowsAffected == 0 {
			return wrap(gorm.ErrRecordNotFound, "delete user")
		}
		return nil
	})
}
