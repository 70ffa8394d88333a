package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
)

const auditListLimit = 200

// Auditor appends to the audit log. Recording never fails the request that
// triggered it; write errors are logged and dropped.
type Auditor struct {
	repo repository.AuditRepository
	lg   *zap.SugaredLogger
}

func NewAuditor(repo repository.AuditRepository, lg *zap.SugaredLogger) *Auditor {
	return &Auditor{repo: repo, lg: lg}
}

func (a *Auditor) Record(ctx context.Context, userID int64, action string, meta map[string]any) {
	if a == nil {
		return
	}
	entry := models.AuditLog{Action: action}
	if userID != 0 {
		entry.UserID = &userID
	}
	if meta != nil {
		if raw, err := json.Marshal(meta); err == nil {
			entry.Metadata = datatypes.JSON(raw)
		}
	}
	if err := a.repo.Create(context.WithoutCancel(ctx), &entry); err != nil {
		a.lg.Warnw("audit write failed", "action", action, "user_id", userID, "error", err)
	}
}

// List returns the caller's own entries, or everyone's when all is set and
// the caller is an administrator.
func (a *Auditor) List(ctx context.Context, actor auth.Claims, all bool) ([]models.AuditLog, error) {
	if all && auth.CanAdministerUsers(actor.Role) {
		return a.repo.List(ctx, nil, auditListLimit)
	}
	uid := actor.UserID
	return a.repo.List(ctx, &uid, auditListLimit)
}
