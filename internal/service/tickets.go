package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/lifecycle"
	"infinitetms/internal/metrics"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
	"infinitetms/internal/storage"
)

const maxCASAttempts = 5

// Summarizer produces a short text summary of a ticket and its updates. It
// never fails; problems are reported inside the returned text.
type Summarizer interface {
	Summarize(ctx context.Context, t models.Ticket, updates []models.TicketUpdate) string
}

type CreateTicketInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Month       string `json:"month"`
	Year        int    `json:"year"`
	Assignee    *int64 `json:"assignee"`
}

// UpdateTicketInput is a manual edit. Version, when set, must match the
// stored version or the edit is rejected with a conflict.
type UpdateTicketInput struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Status      *models.TicketStatus `json:"status"`
	Assignee    *int64               `json:"assignee"`
	Unassign    bool                 `json:"unassign"`
	Version     *int64               `json:"version"`
}

type AddUpdateInput struct {
	TicketID   int64
	Text       string
	Screenshot *storage.Upload
}

type TicketView string

const (
	ViewDefault TicketView = ""
	ViewPool    TicketView = "pool"
	ViewMine    TicketView = "mine"
	ViewAll     TicketView = "all"
)

type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	files      FileStore
	summarizer Summarizer
	audit      *Auditor
	lg         *zap.SugaredLogger
	now        func() time.Time
}

func NewTicketService(
	tickets repository.TicketRepository,
	users repository.UserRepository,
	files FileStore,
	summarizer Summarizer,
	audit *Auditor,
	lg *zap.SugaredLogger,
) *TicketService {
	return &TicketService{
		tickets:    tickets,
		users:      users,
		files:      files,
		summarizer: summarizer,
		audit:      audit,
		lg:         lg,
		now:        time.Now,
	}
}

func (s *TicketService) Create(ctx context.Context, actor auth.Claims, in CreateTicketInput) (*models.Ticket, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.Validation("title is required")
	}
	now := s.now()
	month, err := normalizeMonth(in.Month, now.Month())
	if err != nil {
		return nil, err
	}
	year := in.Year
	if year == 0 {
		year = now.Year()
	}
	if year < 2000 || year > 9999 {
		return nil, apperr.Validation(fmt.Sprintf("invalid year %d", year))
	}

	assignee := in.Assignee
	if !auth.CanAssignOthers(actor.Role) {
		if assignee != nil && *assignee != actor.UserID {
			return nil, apperr.Forbidden("you can only create tickets for yourself")
		}
		self := actor.UserID
		assignee = &self
	} else if assignee != nil {
		if err := s.checkAssignee(ctx, actor, *assignee); err != nil {
			return nil, err
		}
	}

	t := &models.Ticket{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Month:       month,
		Year:        year,
		AssigneeID:  assignee,
		Status:      lifecycle.Initial(),
		CreatedBy:   actor.UserID,
	}
	if err := s.tickets.Create(ctx, t); err != nil {
		return nil, err
	}
	metrics.TicketTransitions.WithLabelValues("", string(t.Status), string(lifecycle.CauseCreate)).Inc()
	s.audit.Record(ctx, actor.UserID, "ticket.create", map[string]any{"id": t.ID, "assignee": t.AssigneeID})
	return t, nil
}

// List returns the tickets visible under view. The default view is every
// ticket for managers and "mine plus pool" for everyone else.
func (s *TicketService) List(ctx context.Context, actor auth.Claims, view TicketView, status *models.TicketStatus) ([]models.Ticket, error) {
	f := repository.TicketFilter{UserID: actor.UserID, Status: status}
	switch view {
	case ViewDefault:
		if auth.CanViewAllTickets(actor.Role) {
			f.Scope = repository.ScopeAll
		} else {
			f.Scope = repository.ScopeAssignedOrPool
		}
	case ViewPool:
		f.Scope = repository.ScopePool
	case ViewMine:
		f.Scope = repository.ScopeAssigned
	case ViewAll:
		if !auth.CanViewAllTickets(actor.Role) {
			return nil, apperr.Forbidden("only team managers can list all tickets")
		}
		f.Scope = repository.ScopeAll
	default:
		return nil, apperr.Validation("unknown view " + string(view))
	}
	return s.tickets.List(ctx, f)
}

func (s *TicketService) Get(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error) {
	t, err := s.tickets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, t) {
		return nil, apperr.Forbidden("ticket belongs to another user")
	}
	return t, nil
}

// Update applies a manual edit through the lifecycle rules.
func (s *TicketService) Update(ctx context.Context, actor auth.Claims, id int64, in UpdateTicketInput) (*models.Ticket, error) {
	if in.Assignee != nil {
		if err := s.checkAssignee(ctx, actor, *in.Assignee); err != nil {
			return nil, err
		}
	}
	var title, description *string
	if in.Title != nil {
		v := strings.TrimSpace(*in.Title)
		if v == "" {
			return nil, apperr.Validation("title cannot be empty")
		}
		title = &v
	}
	if in.Description != nil {
		v := strings.TrimSpace(*in.Description)
		description = &v
	}
	edit := lifecycle.Edit{Status: in.Status, Assignee: in.Assignee, Unassign: in.Unassign}
	la := lifecycle.Actor{UserID: actor.UserID, Role: actor.Role}

	var assigneeBefore *int64
	t, tr, err := s.mutate(ctx, id, func(t *models.Ticket) (lifecycle.Transition, error) {
		if in.Version != nil && *in.Version != t.Version {
			return lifecycle.Transition{}, apperr.Conflict(fmt.Sprintf("ticket %d is at version %d, not %d", t.ID, t.Version, *in.Version))
		}
		assigneeBefore = t.AssigneeID
		tr, err := lifecycle.ApplyEdit(t, la, edit)
		if err != nil {
			return tr, err
		}
		if title != nil && *title != t.Title {
			t.Title = *title
			tr.Noop = false
		}
		if description != nil && *description != t.Description {
			t.Description = *description
			tr.Noop = false
		}
		return tr, nil
	})
	if err != nil {
		return nil, err
	}
	if !tr.Noop {
		s.audit.Record(ctx, actor.UserID, "ticket.update", map[string]any{
			"id": t.ID, "from": tr.From, "to": tr.To, "assignee": t.AssigneeID,
		})
	}
	if !sameID(assigneeBefore, t.AssigneeID) {
		// refresh the joined assignee name
		return s.tickets.FindByID(ctx, t.ID)
	}
	return t, nil
}

// Claim assigns a pool ticket to the caller and starts it.
func (s *TicketService) Claim(ctx context.Context, actor auth.Claims, id int64) (*models.Ticket, error) {
	t, tr, err := s.mutate(ctx, id, func(t *models.Ticket) (lifecycle.Transition, error) {
		return lifecycle.Claim(t, actor.UserID)
	})
	if err != nil {
		return nil, err
	}
	if !tr.Noop {
		s.audit.Record(ctx, actor.UserID, "ticket.claim", map[string]any{"id": t.ID})
		return s.tickets.FindByID(ctx, t.ID)
	}
	return t, nil
}

func (s *TicketService) Delete(ctx context.Context, actor auth.Claims, id int64) error {
	if !auth.CanDeleteTickets(actor.Role) {
		return apperr.Forbidden("only team managers can delete tickets")
	}
	updates, err := s.tickets.ListUpdates(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return err
	}
	for _, u := range updates {
		if u.ScreenshotPath == nil {
			continue
		}
		if err := s.files.Remove(*u.ScreenshotPath); err != nil {
			s.lg.Warnw("remove screenshot failed", "path", *u.ScreenshotPath, "error", err)
		}
	}
	s.audit.Record(ctx, actor.UserID, "ticket.delete", map[string]any{"id": id})
	return nil
}

// AddUpdate appends a progress note and, if the ticket is still OPEN, moves
// it to IN_PROGRESS. Pool tickets must be claimed first.
func (s *TicketService) AddUpdate(ctx context.Context, actor auth.Claims, in AddUpdateInput) (*models.TicketUpdate, *models.Ticket, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil, apperr.Validation("updateText is required")
	}
	t, err := s.tickets.FindByID(ctx, in.TicketID)
	if err != nil {
		return nil, nil, err
	}
	if t.AssigneeID == nil {
		return nil, nil, apperr.Validation("claim the ticket before posting updates")
	}
	if !t.AssignedTo(actor.UserID) && !auth.CanAssignOthers(actor.Role) {
		return nil, nil, apperr.Forbidden("only the assignee or a team manager can post updates")
	}

	u := &models.TicketUpdate{TicketID: t.ID, AuthorID: actor.UserID, UpdateText: text}
	if in.Screenshot != nil {
		p, err := s.files.Save(ctx, dirScreenshots, *in.Screenshot)
		if err != nil {
			return nil, nil, err
		}
		u.ScreenshotPath = &p
	}
	if err := s.tickets.CreateUpdate(ctx, u); err != nil {
		if u.ScreenshotPath != nil {
			_ = s.files.Remove(*u.ScreenshotPath)
		}
		return nil, nil, err
	}

	t, _, err = s.mutate(ctx, t.ID, func(t *models.Ticket) (lifecycle.Transition, error) {
		if t.AssigneeID == nil {
			// unassigned since the check above; the pool stays OPEN
			return lifecycle.Transition{From: t.Status, To: t.Status, Cause: lifecycle.CauseUpdate, Noop: true}, nil
		}
		return lifecycle.ApplyUpdate(t), nil
	})
	if err != nil {
		s.discardUpdate(ctx, u)
		return nil, nil, err
	}
	s.audit.Record(ctx, actor.UserID, "ticket.update_posted", map[string]any{"id": t.ID, "update": u.ID})
	return u, t, nil
}

// discardUpdate undoes a posted update whose status change could not be
// written.
func (s *TicketService) discardUpdate(ctx context.Context, u *models.TicketUpdate) {
	if err := s.tickets.DeleteUpdate(context.WithoutCancel(ctx), u.ID); err != nil {
		s.lg.Warnw("discard ticket update failed", "update", u.ID, "error", err)
	}
	if u.ScreenshotPath != nil {
		if err := s.files.Remove(*u.ScreenshotPath); err != nil {
			s.lg.Warnw("remove screenshot failed", "path", *u.ScreenshotPath, "error", err)
		}
	}
}

func (s *TicketService) ListUpdates(ctx context.Context, actor auth.Claims, ticketID int64) ([]models.TicketUpdate, error) {
	if _, err := s.Get(ctx, actor, ticketID); err != nil {
		return nil, err
	}
	return s.tickets.ListUpdates(ctx, ticketID)
}

func (s *TicketService) Summary(ctx context.Context, actor auth.Claims, id int64) (string, error) {
	t, err := s.Get(ctx, actor, id)
	if err != nil {
		return "", err
	}
	updates, err := s.tickets.ListUpdates(ctx, id)
	if err != nil {
		return "", err
	}
	return s.summarizer.Summarize(ctx, *t, updates), nil
}

// mutate reads ticket id, lets fn change it and writes it back with a
// version check. A lost race re-reads and re-applies fn, so fn must be
// safe to call more than once.
func (s *TicketService) mutate(ctx context.Context, id int64, fn func(*models.Ticket) (lifecycle.Transition, error)) (*models.Ticket, lifecycle.Transition, error) {
	var tr lifecycle.Transition
	for attempt := 1; ; attempt++ {
		t, err := s.tickets.FindByID(ctx, id)
		if err != nil {
			return nil, tr, err
		}
		expected := t.Version
		tr, err = fn(t)
		if err != nil {
			return nil, tr, err
		}
		if tr.Noop {
			return t, tr, nil
		}
		err = s.tickets.CompareAndSwap(ctx, t, expected)
		if err == nil {
			if tr.StatusChanged() {
				metrics.TicketTransitions.WithLabelValues(string(tr.From), string(tr.To), string(tr.Cause)).Inc()
				s.lg.Infow("ticket status changed", "ticket_id", t.ID, "from", tr.From, "to", tr.To, "cause", tr.Cause)
			}
			return t, tr, nil
		}
		if !errors.Is(err, apperr.ErrConflict) || attempt >= maxCASAttempts {
			return nil, tr, err
		}
		metrics.CASRetries.Inc()
	}
}

// checkAssignee enforces who the actor may hand a ticket to: admins anyone,
// team leads themselves or members of their department, others themselves.
func (s *TicketService) checkAssignee(ctx context.Context, actor auth.Claims, assignee int64) error {
	if assignee == actor.UserID {
		return nil
	}
	if !auth.CanAssignOthers(actor.Role) {
		return apperr.Forbidden("only team managers can assign tickets to others")
	}
	target, err := s.users.FindByID(ctx, assignee)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.Validation(fmt.Sprintf("assignee %d does not exist", assignee))
	}
	if err != nil {
		return err
	}
	if !target.IsActive {
		return apperr.Validation("assignee account is disabled")
	}
	if actor.Role == models.RoleTeamLead {
		lead, err := s.users.FindByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if lead.Department == "" || !strings.EqualFold(lead.Department, target.Department) {
			return apperr.Forbidden("team leads can only assign within their department")
		}
	}
	return nil
}

func canSee(actor auth.Claims, t *models.Ticket) bool {
	return auth.CanViewAllTickets(actor.Role) || t.AssigneeID == nil || t.AssignedTo(actor.UserID)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
