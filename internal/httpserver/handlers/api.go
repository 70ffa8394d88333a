package handlers

import (
	"context"

	"infinitetms/internal/assistant"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/service"
	"infinitetms/internal/storage"
)

// The interfaces below are the slices of the service layer each handler
// group depends on.

type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*service.RefreshResult, error)
	Logout(ctx context.Context, claims auth.Claims) error
	Me(ctx context.Context, userID int64) (*service.MeResult, error)
}

type TicketAPI interface {
	Create(ctx context.Context, actor auth.Claims, in service.CreateTicketInput) (*models.Ticket, error)
	List(ctx context.Context, actor auth.Claims, view service.TicketView, status *models.TicketStatus) ([]models.Ticket, error)
	Get(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error)
	Update(ctx context.Context, actor auth.Claims, id int64, in service.UpdateTicketInput) (*models.Ticket, error)
	Claim(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error)
	Delete(ctx context.Context, actor auth.Claims, id int64) error
	AddUpdate(ctx context.Context, actor auth.Claims, in service.AddUpdateInput) (*models.TicketUpdate, *models.Ticket, error)
	ListUpdates(ctx context.Context, actor auth.Claims, ticketID int64) ([]models.TicketUpdate, error)
	Summary(ctx context.Context, actor auth.Claims, id int64) (string, error)
}

type UserAPI interface {
	List(ctx context.Context) ([]models.User, error)
	Get(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, actor auth.Claims, in service.CreateUserInput) (*models.User, error)
	Update(ctx context.Context, actor auth.Claims, id int64, in service.UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, actor auth.Claims, id int64) error
	UpdateProfile(ctx context.Context, userID int64, in service.ProfileInput) (*models.User, error)
}

type AttendanceAPI interface {
	Mark(ctx context.Context, userID int64, lat, lng float64) (*service.MarkResult, error)
	History(ctx context.Context, actor auth.Claims, userID *int64) ([]models.Attendance, error)
}

type DocumentAPI interface {
	Upload(ctx context.Context, userID int64, docType string, up storage.Upload) (*models.Document, error)
	List(ctx context.Context, actor auth.Claims, userID *int64) ([]models.Document, error)
	Delete(ctx context.Context, actor auth.Claims, id int64) error
}

type WorkUpdateAPI interface {
	Create(ctx context.Context, userID int64, in service.WorkUpdateInput) (*models.WorkUpdate, error)
	List(ctx context.Context, actor auth.Claims, userID *int64) ([]models.WorkUpdate, error)
}

type AuditAPI interface {
	List(ctx context.Context, actor auth.Claims, all bool) ([]models.AuditLog, error)
}

type ChatAPI interface {
	Chat(ctx context.Context, message string, history []assistant.Message) string
}
