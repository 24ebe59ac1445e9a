package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type auditLogger interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type auditRepository interface {
	auditLogger
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error)
}

// AuditService exposes the append-only audit trail.
type AuditService struct {
	repo   auditRepository
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditRepository, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// List returns a page of audit entries newest first.
func (s *AuditService) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit logs")
	}
	page, size := pageBounds(filter.Page, filter.PageSize)
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Create appends an entry and reports the repository error to the caller.
func (s *AuditService) Create(ctx context.Context, entry *models.AuditLog) error {
	if s == nil || entry == nil {
		return nil
	}
	return s.repo.Create(ctx, entry)
}

// Record appends an entry. Failures are logged and swallowed.
func (s *AuditService) Record(ctx context.Context, entry *models.AuditLog) {
	writeAudit(ctx, s.repo, s.logger, entry)
}

// newAuditEntry builds an entry attributed to actor. Values are JSON encoded when non-nil.
func newAuditEntry(actor *models.JWTClaims, action, resource, resourceID string, oldValues, newValues interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		Action:   action,
		Resource: resource,
	}
	if resourceID != "" {
		id := resourceID
		entry.ResourceID = &id
	}
	if actor != nil {
		entry.ActorID = userIDPtr(actor)
		entry.ActorNIP = actor.NIP
		entry.ActorRole = string(actor.Role)
		entry.IPAddress = actor.ClientIP
		entry.UserAgent = actor.UserAgent
	}
	if oldValues != nil {
		entry.OldValues, _ = json.Marshal(oldValues)
	}
	if newValues != nil {
		entry.NewValues, _ = json.Marshal(newValues)
	}
	return entry
}

func writeAudit(ctx context.Context, repo auditLogger, logger *zap.Logger, entry *models.AuditLog) {
	if repo == nil || entry == nil {
		return
	}
	if err := repo.Create(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	id := actor.UserID
	return &id
}

func pageBounds(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
