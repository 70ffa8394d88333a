package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
	"infinitetms/internal/storage"
)

type CreateUserInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	Department  string `json:"department"`
	Designation string `json:"designation"`
	Phone       string `json:"phone"`
	Location    string `json:"location"`
}

type UpdateUserInput struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
	Department  *string `json:"department"`
	Designation *string `json:"designation"`
	IsActive    *bool   `json:"isActive"`
}

// ProfileInput is what users may change about themselves.
type ProfileInput struct {
	Name        *string
	Phone       *string
	Location    *string
	Designation *string
	Avatar      *storage.Upload
}

// SessionRevoker ends every live session of a user. *AuthService
// satisfies it.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID int64) error
}

type UserService struct {
	users    repository.UserRepository
	files    FileStore
	sessions SessionRevoker
	audit    *Auditor
	lg       *zap.SugaredLogger
}

func NewUserService(users repository.UserRepository, files FileStore, sessions SessionRevoker, audit *Auditor, lg *zap.SugaredLogger) *UserService {
	return &UserService{users: users, files: files, sessions: sessions, audit: audit, lg: lg}
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) Create(ctx context.Context, actor auth.Claims, in CreateUserInput) (*models.User, error) {
	role := models.RoleUser
	if in.Role != "" {
		r, err := models.ParseRole(in.Role)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		role = r
	}
	if !auth.CanGrantRole(actor.Role, role) {
		return nil, apperr.Forbidden(fmt.Sprintf("%s cannot create %s accounts", actor.Role, role))
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, email, 0); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Department:   strings.TrimSpace(in.Department),
		Designation:  strings.TrimSpace(in.Designation),
		Phone:        strings.TrimSpace(in.Phone),
		Location:     strings.TrimSpace(in.Location),
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.UserID, "user.create", map[string]any{"id": u.ID, "role": u.Role})
	return u, nil
}

func (s *UserService) Update(ctx context.Context, actor auth.Claims, id int64, in UpdateUserInput) (*models.User, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		if err := s.ensureEmailFree(ctx, email, u.ID); err != nil {
			return nil, err
		}
		u.Email = email
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := auth.HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if in.Role != nil {
		r, err := models.ParseRole(*in.Role)
		if err != nil {
			return nil, apperr.Validation(err.Error())
		}
		if !auth.CanGrantRole(actor.Role, r) {
			return nil, apperr.Forbidden("cannot grant role " + string(r))
		}
		u.Role = r
	}
	if in.Department != nil {
		u.Department = strings.TrimSpace(*in.Department)
	}
	if in.Designation != nil {
		u.Designation = strings.TrimSpace(*in.Designation)
	}
	if in.IsActive != nil {
		if !*in.IsActive && u.ID == actor.UserID {
			return nil, apperr.Validation("you cannot deactivate your own account")
		}
		u.IsActive = *in.IsActive
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	if !u.IsActive {
		if err := s.sessions.RevokeUserSessions(ctx, u.ID); err != nil {
			return nil, err
		}
	}
	s.audit.Record(ctx, actor.UserID, "user.update", map[string]any{"id": u.ID})
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, actor auth.Claims, id int64) error {
	if id == actor.UserID {
		return apperr.Validation("you cannot delete your own account")
	}
	if err := s.sessions.RevokeUserSessions(ctx, id); err != nil {
		return err
	}
	// assigned tickets go back to the pool with the row
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor.UserID, "user.delete", map[string]any{"id": id})
	return nil
}

// UpdateProfile applies self-service edits. A new avatar replaces the old
// file, which is removed once the row is saved.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperr.Validation("name cannot be empty")
		}
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Location != nil {
		u.Location = strings.TrimSpace(*in.Location)
	}
	if in.Designation != nil {
		u.Designation = strings.TrimSpace(*in.Designation)
	}
	var oldAvatar *string
	if in.Avatar != nil {
		p, err := s.files.Save(ctx, dirAvatars, *in.Avatar)
		if err != nil {
			return nil, err
		}
		oldAvatar = u.AvatarPath
		u.AvatarPath = &p
	}
	if err := s.users.Update(ctx, u); err != nil {
		if in.Avatar != nil {
			_ = s.files.Remove(*u.AvatarPath)
		}
		return nil, err
	}
	if oldAvatar != nil {
		if err := s.files.Remove(*oldAvatar); err != nil {
			s.lg.Warnw("remove old avatar failed", "path", *oldAvatar, "error", err)
		}
	}
	return u, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email string, self int64) error {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return apperr.Conflict("email already in use")
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", apperr.Validation("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.Validation("invalid email address")
	}
	return email, nil
}
