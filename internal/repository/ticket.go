package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"infinitetms/internal/apperr"
	"infinitetms/internal/models"
)

type TicketScope int

const (
	ScopeAll TicketScope = iota
	ScopePool
	ScopeAssigned
	ScopeAssignedOrPool
)

// TicketFilter narrows a listing. UserID is the assignee for ScopeAssigned
// and ScopeAssignedOrPool and ignored otherwise.
type TicketFilter struct {
	Scope  TicketScope
	UserID int64
	Status *models.TicketStatus
}

type TicketRepository interface {
	Create(ctx context.Context, t *models.Ticket) error
	FindByID(ctx context.Context, id int64) (*models.Ticket, error)
	List(ctx context.Context, f TicketFilter) ([]models.Ticket, error)
	// CompareAndSwap writes t only if the stored version still equals
	// expected, bumping the version by one. A lost race yields ErrConflict.
	CompareAndSwap(ctx context.Context, t *models.Ticket, expected int64) error
	Delete(ctx context.Context, id int64) error

	CreateUpdate(ctx context.Context, u *models.TicketUpdate) error
	DeleteUpdate(ctx context.Context, id int64) error
	ListUpdates(ctx context.Context, ticketID int64) ([]models.TicketUpdate, error)
}

type ticketRepository struct {
	db *gorm.DB
}

func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) withAssignee(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Ticket{}).
		Select("tickets.*, users.name AS assignee_name").
		Joins("LEFT JOIN users ON users.id = tickets.assignee_id")
}

func (r *ticketRepository) Create(ctx context.Context, t *models.Ticket) error {
	if t.Version == 0 {
		t.Version = 1
	}
	return wrap(r.db.WithContext(ctx).Create(t).Error, "create ticket")
}

func (r *ticketRepository) FindByID(ctx context.Context, id int64) (*models.Ticket, error) {
	var t models.Ticket
	if err := r.withAssignee(ctx).Where("tickets.id = ?", id).Take(&t).Error; err != nil {
		return nil, wrap(err, fmt.Sprintf("find ticket %d", id))
	}
	return &t, nil
}

func (r *ticketRepository) List(ctx context.Context, f TicketFilter) ([]models.Ticket, error) {
	q := r.withAssignee(ctx)
	switch f.Scope {
	case ScopePool:
		q = q.Where("tickets.assignee_id IS NULL")
	case ScopeAssigned:
		q = q.Where("tickets.assignee_id = ?", f.UserID)
	case ScopeAssignedOrPool:
		q = q.Where("tickets.assignee_id = ? OR tickets.assignee_id IS NULL", f.UserID)
	case ScopeAll:
	}
	if f.Status != nil {
		q = q.Where("tickets.status = ?", *f.Status)
	}
	var tickets []models.Ticket
	if err := q.Order("tickets.created_at desc").Find(&tickets).Error; err != nil {
		return nil, wrap(err, "list tickets")
	}
	return tickets, nil
}

func (r *ticketRepository) CompareAndSwap(ctx context.Context, t *models.Ticket, expected int64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id = ? AND version = ?", t.ID, expected).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"month":       t.Month,
			"year":        t.Year,
			"assignee_id": t.AssigneeID,
			"status":      t.Status,
			"version":     expected + 1,
			"updated_at":  now,
		})
	if res.Error != nil {
		return wrap(res.Error, fmt.Sprintf("update ticket %d", t.ID))
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(fmt.Sprintf("ticket %d was modified concurrently", t.ID))
	}
	t.Version = expected + 1
	t.UpdatedAt = now
	return nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ticket_id = ?", id).Delete(&models.TicketUpdate{}).Error; err != nil {
			return wrap(err, "delete ticket updates")
		}
		res := tx.Delete(&models.Ticket{}, id)
		if res.Error != nil {
			return wrap(res.Error, "delete ticket")
		}
		if res.RowsAffected == 0 {
			return wrap(gorm.ErrRecordNotFound, fmt.Sprintf("delete ticket %d", id))
		}
		return nil
	})
}

func (r *ticketRepository) CreateUpdate(ctx context.Context, u *models.TicketUpdate) error {
	return wrap(r.db.WithContext(ctx).Create(u).Error, "create ticket update")
}

func (r *ticketRepository) DeleteUpdate(ctx context.Context, id int64) error {
	return wrap(r.db.WithContext(ctx).Delete(&models.TicketUpdate{}, id).Error, "delete ticket update")
}

func (r *ticketRepository) ListUpdates(ctx context.Context, ticketID int64) ([]models.TicketUpdate, error) {
	var updates []models.TicketUpdate
	err := r.db.WithContext(ctx).Model(&models.TicketUpdate{}).
		Select("ticket_updates.*, users.name AS author_name").
		Joins("LEFT JOIN users ON users.id = ticket_updates.author_id").
		Where("ticket_updates.ticket_id = ?", ticketID).
		Order("ticket_updates.created_at asc").
		Find(&updates).Error
	if err != nil {
		return nil, wrap(err, "list ticket updates")
	}
	return updates, nil
}
