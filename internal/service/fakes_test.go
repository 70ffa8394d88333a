package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
	"infinitetms/internal/storage"
)

var nopLogger = zap.NewNop().Sugar()

// =============================================================================
// In-memory repositories
// =============================================================================

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]models.User
}

func newMemUsers(users ...models.User) *memUsers {
	m := &memUsers{rows: map[int64]models.User{}}
	for _, u := range users {
		u := u
		_ = m.Create(context.Background(), &u)
	}
	return m
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.rows {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (m *memUsers) List(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == 0 {
		m.nextID++
		u.ID = m.nextID
	} else if u.ID > m.nextID {
		m.nextID = u.ID
	}
	u.CreatedAt = time.Now()
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[u.ID] = *u
	return nil
}

func (m *memUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return apperr.NotFound("user")
	}
	delete(m.rows, id)
	return nil
}

type memSessions struct {
	mu   sync.Mutex
	rows map[string]models.Session
}

func newMemSessions() *memSessions { return &memSessions{rows: map[string]models.Session{}} }

func (m *memSessions) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = *s
	return nil
}

func (m *memSessions) FindByID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, apperr.NotFound("session")
	}
	return &s, nil
}

func (m *memSessions) Revoke(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok && s.RevokedAt == nil {
		s.RevokedAt = &at
		m.rows[id] = s
	}
	return nil
}

func (m *memSessions) RevokeAllForUser(_ context.Context, userID int64, at time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.rows {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &at
			m.rows[id] = s
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memSessions) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.rows {
		if s.ExpiresAt.Before(cutoff) || (s.RevokedAt != nil && s.RevokedAt.Before(cutoff)) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

// memTickets mimics the version-checked write of the gorm repository.
// beforeCAS, when set, runs just before each compare-and-swap so tests can
// interleave a competing writer. casErr fails every compare-and-swap.
type memTickets struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]models.Ticket
	updates   []models.TicketUpdate
	users     *memUsers
	beforeCAS func()
	casErr    error
}

func newMemTickets(users *memUsers) *memTickets {
	return &memTickets{rows: map[int64]models.Ticket{}, users: users}
}

func (m *memTickets) decorate(t models.Ticket) models.Ticket {
	t.AssigneeName = ""
	if t.AssigneeID != nil && m.users != nil {
		if u, err := m.users.FindByID(context.Background(), *t.AssigneeID); err == nil {
			t.AssigneeName = u.Name
		}
	}
	return t
}

func (m *memTickets) Create(_ context.Context, t *models.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	if t.Version == 0 {
		t.Version = 1
	}
	t.CreatedAt = time.Now()
	m.rows[t.ID] = *t
	return nil
}

func (m *memTickets) FindByID(_ context.Context, id int64) (*models.Ticket, error) {
	m.mu.Lock()
	t, ok := m.rows[id]
	m.mu.Unlock()
	if !ok {
		return nil, apperr.NotFound("ticket")
	}
	t = m.decorate(t)
	return &t, nil
}

func (m *memTickets) List(_ context.Context, f repository.TicketFilter) ([]models.Ticket, error) {
	m.mu.Lock()
	var out []models.Ticket
	for _, t := range m.rows {
		switch f.Scope {
		case repository.ScopePool:
			if t.AssigneeID != nil {
				continue
			}
		case repository.ScopeAssigned:
			if !t.AssignedTo(f.UserID) {
				continue
			}
		case repository.ScopeAssignedOrPool:
			if t.AssigneeID != nil && !t.AssignedTo(f.UserID) {
				continue
			}
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		out = append(out, t)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	for i := range out {
		out[i] = m.decorate(out[i])
	}
	return out, nil
}

func (m *memTickets) CompareAndSwap(_ context.Context, t *models.Ticket, expected int64) error {
	if m.beforeCAS != nil {
		m.beforeCAS()
	}
	if m.casErr != nil {
		return m.casErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[t.ID]
	if !ok {
		return apperr.NotFound("ticket")
	}
	if cur.Version != expected {
		return apperr.Conflict("version mismatch")
	}
	t.Version = expected + 1
	t.UpdatedAt = time.Now()
	stored := *t
	stored.AssigneeName = ""
	m.rows[t.ID] = stored
	return nil
}

func (m *memTickets) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return apperr.NotFound("ticket")
	}
	delete(m.rows, id)
	kept := m.updates[:0]
	for _, u := range m.updates {
		if u.TicketID != id {
			kept = append(kept, u)
		}
	}
	m.updates = kept
	return nil
}

func (m *memTickets) CreateUpdate(_ context.Context, u *models.TicketUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = int64(len(m.updates) + 1)
	u.CreatedAt = time.Now()
	m.updates = append(m.updates, *u)
	return nil
}

func (m *memTickets) DeleteUpdate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, u := range m.updates {
		if u.ID == id {
			m.updates = append(m.updates[:i], m.updates[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memTickets) ListUpdates(_ context.Context, ticketID int64) ([]models.TicketUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TicketUpdate
	for _, u := range m.updates {
		if u.TicketID == ticketID {
			out = append(out, u)
		}
	}
	return out, nil
}

// set overwrites a stored ticket, bumping its version like a real write.
func (m *memTickets) set(t models.Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.Version = m.rows[t.ID].Version + 1
	m.rows[t.ID] = t
}

type memAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (m *memAudit) Create(_ context.Context, e *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAudit) List(_ context.Context, userID *int64, limit int) ([]models.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditLog
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.entries[i]
		if userID != nil && (e.UserID == nil || *e.UserID != *userID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Action
	}
	return out
}

type memFiles struct {
	mu      sync.Mutex
	saved   []string
	removed []string
	saveErr error
}

func (m *memFiles) Save(_ context.Context, dir string, up storage.Upload) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := storage.URLPrefix + dir + "/" + up.Filename
	m.saved = append(m.saved, p)
	return p, nil
}

func (m *memFiles) Remove(p string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, p)
	return nil
}

type revokerFunc func(ctx context.Context, userID int64) error

func (f revokerFunc) RevokeUserSessions(ctx context.Context, userID int64) error { return f(ctx, userID) }

func noRevoke(context.Context, int64) error { return nil }

type stubSummarizer struct{ text string }

func (s stubSummarizer) Summarize(context.Context, models.Ticket, []models.TicketUpdate) string {
	return s.text
}

func int64Ptr(v int64) *int64 { return &v }

func statusPtr(s models.TicketStatus) *models.TicketStatus { return &s }
