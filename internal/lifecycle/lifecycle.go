// Package lifecycle holds the ticket state machine:
//
//	OPEN -> IN_PROGRESS -> REVIEW -> COMPLETED
//
// Claiming a ticket and posting the first progress update move it to
// IN_PROGRESS automatically; REVIEW and COMPLETED are only reached through
// explicit edits. Backward moves require an administrator. A ticket without
// an assignee is always OPEN.
//
// The functions here mutate the ticket in memory and report what changed;
// persisting the result is the caller's job.
package lifecycle

import (
	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
)

type Cause string

const (
	CauseCreate Cause = "create"
	CauseClaim  Cause = "claim"
	CauseUpdate Cause = "update"
	CauseEdit   Cause = "edit"
)

type Actor struct {
	UserID int64
	Role   models.Role
}

// Transition describes the effect of one lifecycle operation. Noop is set
// when neither status nor assignee changed and nothing needs to be written.
type Transition struct {
	From  models.TicketStatus
	To    models.TicketStatus
	Cause Cause
	Noop  bool
}

func (t Transition) StatusChanged() bool { return t.From != t.To }

// Initial is the status of a freshly created ticket, assigned or not.
func Initial() models.TicketStatus { return models.StatusOpen }

// Claim assigns t to the acting user and starts work on it. Claiming a ticket
// the actor already holds is a no-op once work has started; claiming one held
// by somebody else is a conflict.
func Claim(t *models.Ticket, actor int64) (Transition, error) {
	tr := Transition{From: t.Status, To: t.Status, Cause: CauseClaim}
	switch {
	case t.AssigneeID == nil:
		id := actor
		t.AssigneeID = &id
		t.Status = models.StatusInProgress
	case *t.AssigneeID == actor:
		if t.Status != models.StatusOpen {
			tr.Noop = true
			return tr, nil
		}
		t.Status = models.StatusInProgress
	default:
		return tr, apperr.Conflict("ticket is already assigned to another user")
	}
	tr.To = t.Status
	return tr, nil
}

// ApplyUpdate is the side effect of posting a progress note: OPEN becomes
// IN_PROGRESS, every other status is left alone.
func ApplyUpdate(t *models.Ticket) Transition {
	tr := Transition{From: t.Status, To: t.Status, Cause: CauseUpdate}
	if t.Status != models.StatusOpen {
		tr.Noop = true
		return tr
	}
	t.Status = models.StatusInProgress
	tr.To = t.Status
	return tr
}

// Edit is a manual change requested through the ticket update endpoint.
// Assignee and Unassign are mutually exclusive.
type Edit struct {
	Status   *models.TicketStatus
	Assignee *int64
	Unassign bool
}

// ApplyEdit validates and applies a manual edit. Assignee checks that need
// the user directory (department scope) are done by the caller beforehand.
func ApplyEdit(t *models.Ticket, actor Actor, e Edit) (Transition, error) {
	tr := Transition{From: t.Status, To: t.Status, Cause: CauseEdit}
	manager := auth.CanAssignOthers(actor.Role)
	if !manager && !t.AssignedTo(actor.UserID) {
		return tr, apperr.Forbidden("only the assignee or a team manager can edit this ticket")
	}
	if e.Unassign && e.Assignee != nil {
		return tr, apperr.Validation("assignee and unassign are mutually exclusive")
	}

	prevAssignee := t.AssigneeID
	switch {
	case e.Unassign:
		t.AssigneeID = nil
	case e.Assignee != nil:
		if !manager && *e.Assignee != actor.UserID {
			return tr, apperr.Forbidden("only team managers can assign tickets to others")
		}
		id := *e.Assignee
		t.AssigneeID = &id
	}

	target := t.Status
	if e.Status != nil {
		target = *e.Status
		if !target.Valid() {
			return tr, apperr.Validation("unknown status " + string(target))
		}
	}
	if t.AssigneeID == nil {
		if e.Status != nil && target != models.StatusOpen {
			return tr, apperr.Validation("an unassigned ticket must stay OPEN")
		}
		target = models.StatusOpen
	}
	if target.Rank() < t.Status.Rank() && t.AssigneeID != nil && !auth.CanOverrideStatus(actor.Role) {
		return tr, apperr.Forbidden("moving a ticket backwards requires an administrator")
	}
	t.Status = target
	tr.To = target
	tr.Noop = !tr.StatusChanged() && sameAssignee(prevAssignee, t.AssigneeID)
	return tr, nil
}

func sameAssignee(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
