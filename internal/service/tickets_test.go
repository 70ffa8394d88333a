package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/storage"
)

var (
	admin    = auth.Claims{UserID: 1, Role: models.RoleAdmin}
	lead     = auth.Claims{UserID: 2, Role: models.RoleTeamLead}
	dev      = auth.Claims{UserID: 3, Role: models.RoleDeveloper}
	designer = auth.Claims{UserID: 4, Role: models.RoleDesigner}
	dev2     = auth.Claims{UserID: 5, Role: models.RoleDeveloper}
)

type ticketFixture struct {
	svc     *TicketService
	tickets *memTickets
	files   *memFiles
	audit   *memAudit
}

func newTicketFixture() *ticketFixture {
	users := newMemUsers(
		models.User{ID: 1, Name: "Admin", Email: "admin@infinite.com", Role: models.RoleAdmin, IsActive: true},
		models.User{ID: 2, Name: "Lead", Email: "lead@infinite.com", Role: models.RoleTeamLead, Department: "Engineering", IsActive: true},
		models.User{ID: 3, Name: "Dev", Email: "dev@infinite.com", Role: models.RoleDeveloper, Department: "Engineering", IsActive: true},
		models.User{ID: 4, Name: "Designer", Email: "design@infinite.com", Role: models.RoleDesigner, Department: "Design", IsActive: true},
		models.User{ID: 5, Name: "Dev Two", Email: "dev2@infinite.com", Role: models.RoleDeveloper, Department: "Engineering", IsActive: true},
	)
	f := &ticketFixture{tickets: newMemTickets(users), files: &memFiles{}, audit: &memAudit{}}
	f.svc = NewTicketService(f.tickets, users, f.files, stubSummarizer{text: "summary"}, NewAuditor(f.audit, nopLogger), nopLogger)
	f.svc.now = func() time.Time { return time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *ticketFixture) create(t *testing.T, actor auth.Claims, in CreateTicketInput) *models.Ticket {
	t.Helper()
	tk, err := f.svc.Create(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return tk
}

func ids(ts []models.Ticket) map[int64]models.Ticket {
	out := map[int64]models.Ticket{}
	for _, t := range ts {
		out[t.ID] = t
	}
	return out
}

// =============================================================================
// Creation
// =============================================================================

func TestCreate_PoolTicketIsOpen(t *testing.T) {
	f := newTicketFixture()
	tk := f.create(t, admin, CreateTicketInput{Title: "Server Migration Patch v2.4", Description: "Migrate legacy servers"})

	if tk.Status != models.StatusOpen || tk.AssigneeID != nil {
		t.Fatalf("ticket = %+v, want OPEN and unassigned", tk)
	}
	if tk.Month != "March" || tk.Year != 2025 {
		t.Errorf("period = %s, want March 2025", tk.Period())
	}
	pool, err := f.svc.List(context.Background(), dev, ViewPool, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := ids(pool)[tk.ID]; !ok || got.Status != models.StatusOpen {
		t.Errorf("pool view = %+v, want the new OPEN ticket", pool)
	}
}

func TestCreate_AssignmentRules(t *testing.T) {
	tests := []struct {
		name     string
		actor    auth.Claims
		assignee *int64
		want     error
		wantID   *int64
	}{
		{"developer gets own ticket", dev, nil, nil, int64Ptr(3)},
		{"developer assigns self", dev, int64Ptr(3), nil, int64Ptr(3)},
		{"developer cannot assign others", dev, int64Ptr(5), apperr.ErrForbidden, nil},
		{"lead creates pool ticket", lead, nil, nil, nil},
		{"lead assigns own department", lead, int64Ptr(3), nil, int64Ptr(3)},
		{"lead cannot assign other department", lead, int64Ptr(4), apperr.ErrForbidden, nil},
		{"admin assigns anyone", admin, int64Ptr(4), nil, int64Ptr(4)},
		{"unknown assignee", admin, int64Ptr(99), apperr.ErrValidation, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketFixture()
			tk, err := f.svc.Create(context.Background(), tt.actor, CreateTicketInput{Title: "Task", Assignee: tt.assignee})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Create() error = %v, want %v", err, tt.want)
			}
			if err != nil {
				return
			}
			if !sameID(tk.AssigneeID, tt.wantID) {
				t.Errorf("assignee = %v, want %v", tk.AssigneeID, tt.wantID)
			}
			if tk.Status != models.StatusOpen {
				t.Errorf("status = %s, want OPEN", tk.Status)
			}
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, admin, CreateTicketInput{Title: "  "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty title error = %v", err)
	}
	if _, err := f.svc.Create(ctx, admin, CreateTicketInput{Title: "x", Month: "Smarch"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad month error = %v", err)
	}
	tk, err := f.svc.Create(ctx, admin, CreateTicketInput{Title: "x", Month: "dec", Year: 2024})
	if err != nil || tk.Month != "December" || tk.Year != 2024 {
		t.Errorf("Create() = %+v, %v", tk, err)
	}
}

// =============================================================================
// Claim
// =============================================================================

func TestClaim_PoolTicket(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, admin, CreateTicketInput{Title: "Server Migration Patch v2.4"})

	claimed, err := f.svc.Claim(ctx, dev, tk.ID)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !claimed.AssignedTo(dev.UserID) || claimed.Status != models.StatusInProgress {
		t.Fatalf("claimed = %+v, want assigned to dev and IN_PROGRESS", claimed)
	}
	if claimed.AssigneeName != "Dev" {
		t.Errorf("assignee name = %q", claimed.AssigneeName)
	}

	pool, _ := f.svc.List(ctx, dev, ViewPool, nil)
	if _, ok := ids(pool)[tk.ID]; ok {
		t.Error("claimed ticket is still in the pool")
	}
	mine, _ := f.svc.List(ctx, dev, ViewMine, nil)
	if got, ok := ids(mine)[tk.ID]; !ok || got.Status != models.StatusInProgress {
		t.Errorf("mine = %+v, want the claimed ticket IN_PROGRESS", mine)
	}

	again, err := f.svc.Claim(ctx, dev, tk.ID)
	if err != nil {
		t.Fatalf("repeat Claim() error = %v", err)
	}
	if again.Version != claimed.Version || again.Status != models.StatusInProgress {
		t.Errorf("repeat claim changed the ticket: %+v -> %+v", claimed, again)
	}
}

func TestClaim_HeldByAnother(t *testing.T) {
	f := newTicketFixture()
	tk := f.create(t, admin, CreateTicketInput{Title: "t"})
	if _, err := f.svc.Claim(context.Background(), dev, tk.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Claim(context.Background(), dev2, tk.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Claim() by second user error = %v, want conflict", err)
	}
}

func TestClaim_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	f := newTicketFixture()
	tk := f.create(t, admin, CreateTicketInput{Title: "race"})

	claimers := []auth.Claims{dev, dev2, designer, lead}
	var wg sync.WaitGroup
	errs := make([]error, len(claimers))
	for i, c := range claimers {
		wg.Add(1)
		go func(i int, c auth.Claims) {
			defer wg.Done()
			_, errs[i] = f.svc.Claim(context.Background(), c, tk.ID)
		}(i, c)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		switch {
		case err == nil:
			winners++
		case !errors.Is(err, apperr.ErrConflict):
			t.Errorf("unexpected error %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("%d claims succeeded, want exactly 1", winners)
	}
	final, _ := f.tickets.FindByID(context.Background(), tk.ID)
	if final.AssigneeID == nil || final.Status != models.StatusInProgress {
		t.Errorf("final ticket = %+v", final)
	}
}

func TestClaim_RetriesAfterLostRace(t *testing.T) {
	f := newTicketFixture()
	tk := f.create(t, lead, CreateTicketInput{Title: "t", Assignee: int64Ptr(3)})

	// A concurrent progress update starts the ticket between our read and write.
	var once sync.Once
	f.tickets.beforeCAS = func() {
		once.Do(func() {
			cur, _ := f.tickets.FindByID(context.Background(), tk.ID)
			cur.Status = models.StatusInProgress
			f.tickets.set(*cur)
		})
	}
	got, err := f.svc.Claim(context.Background(), dev, tk.ID)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if got.Status != models.StatusInProgress || !got.AssignedTo(3) {
		t.Errorf("ticket = %+v, want IN_PROGRESS for dev", got)
	}
}

// =============================================================================
// Progress updates
// =============================================================================

func TestAddUpdate_OpenBecomesInProgress(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, dev, CreateTicketInput{Title: "mine"})
	if tk.Status != models.StatusOpen {
		t.Fatalf("status = %s", tk.Status)
	}

	u, got, err := f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: tk.ID, Text: "started",
		Screenshot: &storage.Upload{Filename: "s.png", Content: strings.NewReader("png")}})
	if err != nil {
		t.Fatalf("AddUpdate() error = %v", err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status after first update = %s, want IN_PROGRESS", got.Status)
	}
	if u.ScreenshotPath == nil || *u.ScreenshotPath != "/uploads/screenshots/s.png" {
		t.Errorf("screenshot = %v", u.ScreenshotPath)
	}

	_, got, err = f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: tk.ID, Text: "more"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusInProgress {
		t.Errorf("status after second update = %s, want IN_PROGRESS", got.Status)
	}
	updates, _ := f.svc.ListUpdates(ctx, dev, tk.ID)
	if len(updates) != 2 {
		t.Errorf("ListUpdates() = %d entries, want 2", len(updates))
	}
}

func TestAddUpdate_NeverChangesLaterStatuses(t *testing.T) {
	for _, st := range []models.TicketStatus{models.StatusInProgress, models.StatusReview, models.StatusCompleted} {
		t.Run(string(st), func(t *testing.T) {
			f := newTicketFixture()
			tk := f.create(t, dev, CreateTicketInput{Title: "t"})
			tk.Status = st
			f.tickets.set(*tk)

			_, got, err := f.svc.AddUpdate(context.Background(), dev, AddUpdateInput{TicketID: tk.ID, Text: "note"})
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != st {
				t.Errorf("status = %s, want %s", got.Status, st)
			}
		})
	}
}

func TestAddUpdate_Rejections(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	pool := f.create(t, admin, CreateTicketInput{Title: "pool"})
	theirs := f.create(t, designer, CreateTicketInput{Title: "design"})

	if _, _, err := f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: pool.ID, Text: "x"}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("update on pool ticket error = %v, want validation", err)
	}
	if _, _, err := f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: theirs.ID, Text: "x"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("update on someone else's ticket error = %v, want forbidden", err)
	}
	if _, _, err := f.svc.AddUpdate(ctx, designer, AddUpdateInput{TicketID: theirs.ID, Text: " "}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("empty update error = %v, want validation", err)
	}
	if _, _, err := f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: 999, Text: "x"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing ticket error = %v, want not found", err)
	}
	if got, _ := f.tickets.FindByID(ctx, pool.ID); got.Status != models.StatusOpen {
		t.Errorf("pool ticket status = %s, want OPEN", got.Status)
	}
}

// =============================================================================
// Manual edits
// =============================================================================

func TestUpdate_StatusRules(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, dev, CreateTicketInput{Title: "t"})
	if _, err := f.svc.Claim(ctx, dev, tk.ID); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Update(ctx, dev, tk.ID, UpdateTicketInput{Status: statusPtr(models.StatusReview)})
	if err != nil || got.Status != models.StatusReview {
		t.Fatalf("forward move = %+v, %v", got, err)
	}
	if _, err := f.svc.Update(ctx, dev, tk.ID, UpdateTicketInput{Status: statusPtr(models.StatusInProgress)}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("backward move by developer error = %v, want forbidden", err)
	}
	if _, err := f.svc.Update(ctx, lead, tk.ID, UpdateTicketInput{Status: statusPtr(models.StatusOpen)}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("backward move by lead error = %v, want forbidden", err)
	}
	got, err = f.svc.Update(ctx, admin, tk.ID, UpdateTicketInput{Status: statusPtr(models.StatusInProgress)})
	if err != nil || got.Status != models.StatusInProgress {
		t.Errorf("admin override = %+v, %v", got, err)
	}
	if _, err := f.svc.Update(ctx, dev2, tk.ID, UpdateTicketInput{Status: statusPtr(models.StatusCompleted)}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("edit by non-assignee error = %v, want forbidden", err)
	}
}

func TestUpdate_UnassignForcesOpen(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, lead, CreateTicketInput{Title: "t", Assignee: int64Ptr(3)})
	if _, err := f.svc.Claim(ctx, dev, tk.ID); err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.Update(ctx, lead, tk.ID, UpdateTicketInput{Unassign: true})
	if err != nil {
		t.Fatal(err)
	}
	if got.AssigneeID != nil || got.Status != models.StatusOpen || got.AssigneeName != "" {
		t.Errorf("unassigned ticket = %+v, want OPEN pool ticket", got)
	}
	if _, err := f.svc.Update(ctx, admin, tk.ID, UpdateTicketInput{Status: statusPtr(models.StatusReview)}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("REVIEW on pool ticket error = %v, want validation", err)
	}
}

func TestUpdate_Reassign(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, lead, CreateTicketInput{Title: "t", Assignee: int64Ptr(3)})

	got, err := f.svc.Update(ctx, lead, tk.ID, UpdateTicketInput{Assignee: int64Ptr(5)})
	if err != nil {
		t.Fatal(err)
	}
	if !got.AssignedTo(5) || got.AssigneeName != "Dev Two" {
		t.Errorf("reassigned ticket = %+v", got)
	}
	if _, err := f.svc.Update(ctx, lead, tk.ID, UpdateTicketInput{Assignee: int64Ptr(4)}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("cross-department reassignment error = %v, want forbidden", err)
	}
}

func TestUpdate_VersionConflict(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, dev, CreateTicketInput{Title: "t"})

	if _, err := f.svc.Update(ctx, dev, tk.ID, UpdateTicketInput{Title: strPtr("renamed"), Version: int64Ptr(tk.Version)}); err != nil {
		t.Fatalf("Update() with current version error = %v", err)
	}
	_, err := f.svc.Update(ctx, dev, tk.ID, UpdateTicketInput{Title: strPtr("again"), Version: int64Ptr(tk.Version)})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Update() with stale version error = %v, want conflict", err)
	}
	got, err := f.svc.Update(ctx, dev, tk.ID, UpdateTicketInput{Title: strPtr("last write wins")})
	if err != nil || got.Title != "last write wins" {
		t.Errorf("Update() without version = %+v, %v", got, err)
	}
}

func TestUpdate_VersionCheckedAfterLostRace(t *testing.T) {
	f := newTicketFixture()
	tk := f.create(t, dev, CreateTicketInput{Title: "t"})

	var once sync.Once
	f.tickets.beforeCAS = func() {
		once.Do(func() {
			cur, _ := f.tickets.FindByID(context.Background(), tk.ID)
			cur.Title = "someone else"
			f.tickets.set(*cur)
		})
	}
	_, err := f.svc.Update(context.Background(), dev, tk.ID, UpdateTicketInput{Title: strPtr("mine"), Version: int64Ptr(tk.Version)})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("Update() error = %v, want conflict", err)
	}
}

// =============================================================================
// Listing / deletion / summary
// =============================================================================

func TestList_Scopes(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	pool := f.create(t, admin, CreateTicketInput{Title: "pool"})
	mine := f.create(t, dev, CreateTicketInput{Title: "mine"})
	other := f.create(t, designer, CreateTicketInput{Title: "other"})

	def, _ := f.svc.List(ctx, dev, ViewDefault, nil)
	got := ids(def)
	if _, ok := got[other.ID]; ok || len(got) != 2 {
		t.Errorf("developer default view = %v, want pool + own", got)
	}
	if _, ok := got[pool.ID]; !ok {
		t.Error("developer default view misses the pool")
	}
	if _, ok := got[mine.ID]; !ok {
		t.Error("developer default view misses own ticket")
	}

	all, err := f.svc.List(ctx, lead, ViewDefault, nil)
	if err != nil || len(all) != 3 {
		t.Errorf("lead default view = %d tickets, %v", len(all), err)
	}
	if _, err := f.svc.List(ctx, dev, ViewAll, nil); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("developer all view error = %v, want forbidden", err)
	}
	if _, err := f.svc.List(ctx, dev, TicketView("everything"), nil); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown view error = %v, want validation", err)
	}
	open, _ := f.svc.List(ctx, admin, ViewAll, statusPtr(models.StatusInProgress))
	if len(open) != 0 {
		t.Errorf("status filter returned %d tickets", len(open))
	}

	if _, err := f.svc.Get(ctx, dev, other.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("Get() of another user's ticket error = %v, want forbidden", err)
	}
}

func TestAddUpdate_DiscardedWhenStatusWriteFails(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, dev, CreateTicketInput{Title: "mine"})
	f.tickets.casErr = errors.New("connection reset")

	_, _, err := f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: tk.ID, Text: "started",
		Screenshot: &storage.Upload{Filename: "s.png", Content: strings.NewReader("png")}})
	if err == nil {
		t.Fatal("AddUpdate() succeeded although the status write failed")
	}
	if left, _ := f.tickets.ListUpdates(ctx, tk.ID); len(left) != 0 {
		t.Errorf("orphan updates = %+v", left)
	}
	if len(f.files.removed) != 1 || f.files.removed[0] != "/uploads/screenshots/s.png" {
		t.Errorf("removed files = %v, want the screenshot", f.files.removed)
	}
	if got, _ := f.tickets.FindByID(ctx, tk.ID); got.Status != models.StatusOpen {
		t.Errorf("status = %s, want OPEN", got.Status)
	}
}

func TestDelete(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()
	tk := f.create(t, dev, CreateTicketInput{Title: "t"})
	_, _, err := f.svc.AddUpdate(ctx, dev, AddUpdateInput{TicketID: tk.ID, Text: "x",
		Screenshot: &storage.Upload{Filename: "s.png", Content: strings.NewReader("png")}})
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Delete(ctx, dev, tk.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("developer Delete() error = %v, want forbidden", err)
	}
	if err := f.svc.Delete(ctx, lead, tk.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.tickets.FindByID(ctx, tk.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted ticket still found: %v", err)
	}
	if len(f.files.removed) != 1 {
		t.Errorf("removed files = %v, want the screenshot", f.files.removed)
	}
}

func TestSummary(t *testing.T) {
	f := newTicketFixture()
	tk := f.create(t, dev, CreateTicketInput{Title: "t"})
	got, err := f.svc.Summary(context.Background(), dev, tk.ID)
	if err != nil || got != "summary" {
		t.Errorf("Summary() = %q, %v", got, err)
	}
}

func TestGroupByPeriod(t *testing.T) {
	in := []models.Ticket{
		{ID: 1, Month: "January", Year: 2025},
		{ID: 2, Month: "December", Year: 2024},
		{ID: 3, Month: "March", Year: 2025},
		{ID: 4, Month: "January", Year: 2025},
	}
	groups := GroupByPeriod(in)
	var periods []string
	for _, g := range groups {
		periods = append(periods, g.Period)
	}
	want := "March 2025,January 2025,December 2024"
	if strings.Join(periods, ",") != want {
		t.Errorf("periods = %v, want %s", periods, want)
	}
	if len(groups[1].Tickets) != 2 || groups[1].Tickets[0].ID != 1 {
		t.Errorf("January group = %+v", groups[1].Tickets)
	}
}

func TestNormalizeMonth(t *testing.T) {
	tests := map[string]string{"": "June", "3": "March", "03": "March", "sep": "September", "OCTOBER": "October"}
	for in, want := range tests {
		got, err := normalizeMonth(in, time.June)
		if err != nil || got != want {
			t.Errorf("normalizeMonth(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"13", "0", "ja", "Januaryy"} {
		if _, err := normalizeMonth(bad, time.June); err == nil {
			t.Errorf("normalizeMonth(%q) should fail", bad)
		}
	}
}

func strPtr(s string) *string { return &s }
