package handlers

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"infinitetms/internal/assistant"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/service"
	"infinitetms/internal/storage"
)

var nopLogger = zap.NewNop().Sugar()

var errNotImplemented = errors.New("not implemented")

// =============================================================================
// Mock services
// =============================================================================

type mockTickets struct {
	createFunc      func(ctx context.Context, actor auth.Claims, in service.CreateTicketInput) (*models.Ticket, error)
	listFunc        func(ctx context.Context, actor auth.Claims, view service.TicketView, status *models.TicketStatus) ([]models.Ticket, error)
	getFunc         func(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error)
	updateFunc      func(ctx context.Context, actor auth.Claims, id int64, in service.UpdateTicketInput) (*models.Ticket, error)
	claimFunc       func(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error)
	deleteFunc      func(ctx context.Context, actor auth.Claims, id int64) error
	addUpdateFunc   func(ctx context.Context, actor auth.Claims, in service.AddUpdateInput) (*models.TicketUpdate, *models.Ticket, error)
	listUpdatesFunc func(ctx context.Context, actor auth.Claims, ticketID int64) ([]models.TicketUpdate, error)
	summaryFunc     func(ctx context.Context, actor auth.Claims, id int64) (string, error)
}

func (m *mockTickets) Create(ctx context.Context, actor auth.Claims, in service.CreateTicketInput) (*models.Ticket, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, actor, in)
	}
	return nil, errNotImplemented
}

func (m *mockTickets) List(ctx context.Context, actor auth.Claims, view service.TicketView, status *models.TicketStatus) ([]models.Ticket, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, actor, view, status)
	}
	return nil, errNotImplemented
}

func (m *mockTickets) Get(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, actor, id)
	}
	return nil, errNotImplemented
}

func (m *mockTickets) Update(ctx context.Context, actor auth.Claims, id int64, in service.UpdateTicketInput) (*models.Ticket, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, actor, id, in)
	}
	return nil, errNotImplemented
}

func (m *mockTickets) Claim(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error) {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, actor, id)
	}
	return nil, errNotImplemented
}

func (m *mockTickets) Delete(ctx context.Context, actor auth.Claims, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, actor, id)
	}
	return errNotImplemented
}

func (m *mockTickets) AddUpdate(ctx context.Context, actor auth.Claims, in service.AddUpdateInput) (*models.TicketUpdate, *models.Ticket, error) {
	if m.addUpdateFunc != nil {
		return m.addUpdateFunc(ctx, actor, in)
	}
	return nil, nil, errNotImplemented
}

func (m *mockTickets) ListUpdates(ctx context.Context, actor auth.Claims, ticketID int64) ([]models.TicketUpdate, error) {
	if m.listUpdatesFunc != nil {
		return m.listUpdatesFunc(ctx, actor, ticketID)
	}
	return nil, errNotImplemented
}

func (m *mockTickets) Summary(ctx context.Context, actor auth.Claims, id int64) (string, error) {
	if m.summaryFunc != nil {
		return m.summaryFunc(ctx, actor, id)
	}
	return "", errNotImplemented
}

type mockAuth struct {
	loginFunc   func(ctx context.Context, email, password string) (*service.LoginResult, error)
	refreshFunc func(ctx context.Context, token string) (*service.RefreshResult, error)
	logoutFunc  func(ctx context.Context, claims auth.Claims) error
	meFunc      func(ctx context.Context, userID int64) (*service.MeResult, error)
}

func (m *mockAuth) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, email, password)
	}
	return nil, errNotImplemented
}

func (m *mockAuth) Refresh(ctx context.Context, token string) (*service.RefreshResult, error) {
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, token)
	}
	return nil, errNotImplemented
}

func (m *mockAuth) Logout(ctx context.Context, claims auth.Claims) error {
	if m.logoutFunc != nil {
		return m.logoutFunc(ctx, claims)
	}
	return errNotImplemented
}

func (m *mockAuth) Me(ctx context.Context, userID int64) (*service.MeResult, error) {
	if m.meFunc != nil {
		return m.meFunc(ctx, userID)
	}
	return nil, errNotImplemented
}

type mockAttendance struct {
	markFunc func(ctx context.Context, userID int64, lat, lng float64) (*service.MarkResult, error)
}

func (m *mockAttendance) Mark(ctx context.Context, userID int64, lat, lng float64) (*service.MarkResult, error) {
	if m.markFunc != nil {
		return m.markFunc(ctx, userID, lat, lng)
	}
	return nil, errNotImplemented
}

func (m *mockAttendance) History(context.Context, auth.Claims, *int64) ([]models.Attendance, error) {
	return nil, nil
}

type mockDocuments struct {
	uploadFunc func(ctx context.Context, userID int64, docType string, up storage.Upload) (*models.Document, error)
}

func (m *mockDocuments) Upload(ctx context.Context, userID int64, docType string, up storage.Upload) (*models.Document, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, userID, docType, up)
	}
	return nil, errNotImplemented
}

func (m *mockDocuments) List(context.Context, auth.Claims, *int64) ([]models.Document, error) {
	return nil, nil
}

func (m *mockDocuments) Delete(context.Context, auth.Claims, int64) error { return nil }

type mockChat struct {
	got []assistant.Message
}

func (m *mockChat) Chat(_ context.Context, message string, history []assistant.Message) string {
	m.got = history
	return "echo: " + message
}
