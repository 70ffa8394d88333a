package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"infinitetms/internal/apperr"
	"infinitetms/internal/auth"
	"infinitetms/internal/models"
	"infinitetms/internal/repository"
	"infinitetms/internal/storage"
)

type DocumentService struct {
	repo  repository.DocumentRepository
	files FileStore
	audit *Auditor
	lg    *zap.SugaredLogger
}

func NewDocumentService(repo repository.DocumentRepository, files FileStore, audit *Auditor, lg *zap.SugaredLogger) *DocumentService {
	return &DocumentService{repo: repo, files: files, audit: audit, lg: lg}
}

func (s *DocumentService) Upload(ctx context.Context, userID int64, docType string, up storage.Upload) (*models.Document, error) {
	docType = strings.TrimSpace(docType)
	if docType == "" {
		return nil, apperr.Validation("documentType is required")
	}
	p, err := s.files.Save(ctx, dirDocuments, up)
	if err != nil {
		return nil, err
	}
	d := &models.Document{UserID: userID, DocumentType: docType, FilePath: p}
	if err := s.repo.Create(ctx, d); err != nil {
		_ = s.files.Remove(p)
		return nil, err
	}
	s.audit.Record(ctx, userID, "document.upload", map[string]any{"id": d.ID, "type": docType})
	return d, nil
}

func (s *DocumentService) List(ctx context.Context, actor auth.Claims, userID *int64) ([]models.Document, error) {
	scope, err := ownerScope(actor, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope)
}

func (s *DocumentService) Delete(ctx context.Context, actor auth.Claims, id int64) error {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if d.UserID != actor.UserID && !auth.CanAdministerUsers(actor.Role) {
		return apperr.Forbidden("document belongs to another user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.Remove(d.FilePath); err != nil {
		s.lg.Warnw("remove document file failed", "path", d.FilePath, "error", err)
	}
	s.audit.Record(ctx, actor.UserID, "document.delete", map[string]any{"id": id})
	return nil
}

var workStatuses = []string{"In Progress", "Completed", "On Hold"}

type WorkUpdateInput struct {
	Date        string `json:"date"`
	ProjectName string `json:"projectName"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type WorkUpdateService struct {
	repo repository.WorkUpdateRepository
	now  func() time.Time
}

func NewWorkUpdateService(repo repository.WorkUpdateRepository) *WorkUpdateService {
	return &WorkUpdateService{repo: repo, now: time.Now}
}

func (s *WorkUpdateService) Create(ctx context.Context, userID int64, in WorkUpdateInput) (*models.WorkUpdate, error) {
	w := &models.WorkUpdate{
		UserID:      userID,
		Date:        strings.TrimSpace(in.Date),
		ProjectName: strings.TrimSpace(in.ProjectName),
		Description: strings.TrimSpace(in.Description),
		Status:      "In Progress",
	}
	if w.ProjectName == "" || w.Description == "" {
		return nil, apperr.Validation("projectName and description are required")
	}
	if w.Date == "" {
		w.Date = s.now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, w.Date); err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	if in.Status != "" {
		status, ok := matchWorkStatus(in.Status)
		if !ok {
			return nil, apperr.Validation("status must be one of " + strings.Join(workStatuses, ", "))
		}
		w.Status = status
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WorkUpdateService) List(ctx context.Context, actor auth.Claims, userID *int64) ([]models.WorkUpdate, error) {
	scope, err := ownerScope(actor, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, scope)
}

func matchWorkStatus(v string) (string, bool) {
	v = strings.ReplaceAll(strings.TrimSpace(v), "_", " ")
	for _, s := range workStatuses {
		if strings.EqualFold(s, v) {
			return s, true
		}
	}
	return "", false
}
