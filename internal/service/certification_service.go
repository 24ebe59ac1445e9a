package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/repository"
	"github.com/noah-isme/supermen-api/internal/review"
	"github.com/noah-isme/supermen-api/internal/validation"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const (
	selectionKeyPrefix = "sel:"
)

// Bulk skip reasons.
const (
	SkipNotFound   = "not_found"
	SkipNotPending = "not_pending"
	SkipFailed     = "failed"
)

type certificationStore interface {
	Create(ctx context.Context, record *models.CertificationRecord) error
	GetByID(ctx context.Context, id string) (*models.CertificationRecord, error)
	List(ctx context.Context, filter models.CertificationFilter) ([]models.CertificationRecord, error)
	UpdateStatus(ctx context.Context, id string, t models.StatusTransition) error
	Delete(ctx context.Context, id string, onlyUnverified bool) error
}

type certificationOwnerReader interface {
	FindByNIP(ctx context.Context, nip string) (*models.Personnel, error)
}

type certificationDocuments interface {
	Lookup(ctx context.Context, id string) (*models.Document, error)
	Discard(ctx context.Context, id string) error
}

type cacheInvalidator interface {
	Purge(ctx context.Context) error
}

// SubmitCertificationRequest files a new record. OwnerNIP defaults to the caller.
type SubmitCertificationRequest struct {
	OwnerNIP          string `json:"ownerNip" validate:"omitempty,nip"`
	CertificationType string `json:"certificationType" validate:"required"`
	IssueDate         string `json:"issueDate" validate:"required"`
	ExpiryDate        string `json:"expiryDate" validate:"required"`
	DocumentID        string `json:"documentId"`
}

// CertificationQuery combines the verifier search with SQL side filters and paging.
type CertificationQuery struct {
	review.Query
	Type       string    `form:"type"`
	IssuedFrom time.Time `form:"issuedFrom" time_format:"2006-01-02"`
	IssuedTo   time.Time `form:"issuedTo" time_format:"2006-01-02"`
	Page       int       `form:"page"`
	PageSize   int       `form:"pageSize"`
}

// BulkSkip reports one record left untouched by a bulk approval.
type BulkSkip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkApproveResult summarises a bulk approval.
type BulkApproveResult struct {
	Approved      []string   `json:"approved"`
	Skipped       []BulkSkip `json:"skipped"`
	ApprovedCount int        `json:"approvedCount"`
	SkippedCount  int        `json:"skippedCount"`
}

// CertificationServiceConfig tunes review behaviour.
type CertificationServiceConfig struct {
	SelectionTTL time.Duration
	BulkMax      int
}

// CertificationService runs the certification lifecycle: intake, review, selection and removal.
type CertificationService struct {
	repo      certificationStore
	owners    certificationOwnerReader
	documents certificationDocuments
	state     draftStore
	cache     cacheInvalidator
	notifier  Notifier
	audit     auditLogger
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CertificationServiceConfig
	now       func() time.Time
}

// NewCertificationService constructs the service.
func NewCertificationService(repo certificationStore, owners certificationOwnerReader, documents certificationDocuments, state draftStore, cache cacheInvalidator, notifier Notifier, audit auditLogger, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg CertificationServiceConfig) *CertificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.NewValidator()
	}
	if cfg.SelectionTTL <= 0 {
		cfg.SelectionTTL = 8 * time.Hour
	}
	if cfg.BulkMax <= 0 {
		cfg.BulkMax = 200
	}
	return &CertificationService{
		repo:      repo,
		owners:    owners,
		documents: documents,
		state:     state,
		cache:     cache,
		notifier:  notifier,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit creates a PENDING record. Field officers file for themselves with a pdf from the
// officer context; regional officers may file for personnel of their province.
func (s *CertificationService) Submit(ctx context.Context, actor *models.JWTClaims, req SubmitCertificationRequest) (*models.CertificationRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionCertificationSubmit) {
		return nil, appErrors.ErrForbidden
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid certification payload", validation.Describe(err))
	}

	ownerNIP := strings.TrimSpace(req.OwnerNIP)
	onBehalf := ownerNIP != "" && ownerNIP != actor.NIP
	if !onBehalf {
		ownerNIP = actor.NIP
	}
	if onBehalf && !authz.Allows(actor.Role, authz.ActionCertificationViewRegion) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only regional officers may submit on behalf of others")
	}

	fields := validation.FieldErrors{}
	certType := models.CertificationType(strings.TrimSpace(req.CertificationType))
	if !certType.Valid() {
		fields.Add("certificationType", errors.New("jenis sertifikasi tidak dikenal"))
	}
	issue, issueErr := time.Parse(DateLayout, req.IssueDate)
	expiry, expiryErr := time.Parse(DateLayout, req.ExpiryDate)
	switch {
	case issueErr != nil:
		fields.Add("issueDate", validation.ErrDateMissing)
	case expiryErr != nil:
		fields.Add("expiryDate", validation.ErrDateMissing)
	default:
		fields.Add("expiryDate", validation.DateOrder(issue, expiry))
	}

	docID := strings.TrimSpace(req.DocumentID)
	var doc *models.Document
	if docID == "" {
		fields.Add("documentId", validation.ErrFileMissing)
	} else {
		loaded, err := s.documents.Lookup(ctx, docID)
		switch {
		case err == nil:
			doc = loaded
			fields.Add("documentId", documentUsable(actor, doc, onBehalf))
		case errors.Is(err, appErrors.ErrNotFound):
			fields.Add("documentId", validation.ErrFileMissing)
		default:
			return nil, err
		}
	}
	if !fields.Valid() {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid certification payload", fields)
	}

	owner, err := s.owners.FindByNIP(ctx, ownerNIP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithFields(appErrors.ErrValidation, "unknown owner", map[string]string{"ownerNip": "NIP tidak terdaftar"})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load owner")
	}
	if onBehalf && !strings.EqualFold(owner.Province, actor.Region) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "owner is outside your province")
	}
	if owner.Status == models.PersonnelStatusInactive {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "owner account is inactive")
	}

	record := &models.CertificationRecord{
		OwnerNIP:          owner.NIP,
		OwnerID:           owner.ID,
		OwnerName:         owner.FullName,
		Region:            owner.Province,
		CertificationType: certType,
		IssueDate:         issue,
		ExpiryDate:        expiry,
		DocumentRef:       doc.ID,
		SubmittedBy:       userIDPtr(actor),
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "document already attached to another certification")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certification")
	}

	s.metrics.RecordTransition(string(models.CertificationPending), "submitted")
	s.emitAudit(ctx, actor, models.AuditActionCertificationSubmit, record.ID, nil, map[string]interface{}{
		"ownerNip": record.OwnerNIP,
		"type":     record.CertificationType,
		"onBehalf": onBehalf,
	})
	s.invalidateDashboards(ctx)
	return record, nil
}

// List returns records visible to actor, filtered and paginated.
func (s *CertificationService) List(ctx context.Context, actor *models.JWTClaims, query CertificationQuery) ([]models.CertificationRecord, *models.Pagination, error) {
	records, err := s.visible(ctx, actor, query)
	if err != nil {
		return nil, nil, err
	}
	page, size := pageBounds(query.Page, query.PageSize)
	return review.Page(records, page, size), &models.Pagination{Page: page, PageSize: size, TotalCount: len(records)}, nil
}

// Search returns every record visible to actor that matches query, without paging.
func (s *CertificationService) Search(ctx context.Context, actor *models.JWTClaims, query CertificationQuery) ([]models.CertificationRecord, error) {
	return s.visible(ctx, actor, query)
}

// Pending is the verifier queue. Without an explicit status filter only PENDING records are shown.
func (s *CertificationService) Pending(ctx context.Context, actor *models.JWTClaims, query CertificationQuery) ([]models.CertificationRecord, *models.Pagination, error) {
	if err := s.requireReviewer(actor); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(query.Status) == "" {
		query.Status = string(models.CertificationPending)
	}
	return s.List(ctx, actor, query)
}

// Get returns one record visible to actor.
func (s *CertificationService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.CertificationRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.CanViewCertification(actor, *record) {
		return nil, appErrors.ErrForbidden
	}
	return record, nil
}

// Approve verifies a PENDING record.
func (s *CertificationService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.CertificationRecord, error) {
	if err := s.requireReviewer(actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, actor, id, models.CertificationVerified, nil)
}

// Reject refuses a PENDING record with a non-empty reason stored verbatim.
func (s *CertificationService) Reject(ctx context.Context, actor *models.JWTClaims, id, reason string) (*models.CertificationRecord, error) {
	if err := s.requireReviewer(actor); err != nil {
		return nil, err
	}
	if err := validation.Required(reason); err != nil {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "rejection reason is required", map[string]string{"reason": err.Error()})
	}
	return s.transition(ctx, actor, id, models.CertificationRejected, &reason)
}

// BulkApprove approves each id independently. With no ids the caller's selection is used.
// Records that are missing or no longer PENDING are skipped; approved ids leave the selection.
func (s *CertificationService) BulkApprove(ctx context.Context, actor *models.JWTClaims, ids []string) (*BulkApproveResult, error) {
	if err := s.requireReviewer(actor); err != nil {
		return nil, err
	}
	fromSelection := len(ids) == 0
	if fromSelection {
		selected, err := s.loadSelection(ctx, actor)
		if err != nil {
			return nil, err
		}
		ids = selected.IDs()
	}
	ids = review.NewSelection(ids...).IDs()
	if len(ids) == 0 {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "nothing selected", map[string]string{"ids": validation.ErrRequired.Error()})
	}
	if len(ids) > s.cfg.BulkMax {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "too many records", map[string]string{"ids": fmt.Sprintf("maksimal %d data per proses", s.cfg.BulkMax)})
	}

	result := &BulkApproveResult{Approved: []string{}, Skipped: []BulkSkip{}}
	for _, id := range ids {
		_, err := s.transition(ctx, actor, id, models.CertificationVerified, nil)
		switch {
		case err == nil:
			result.Approved = append(result.Approved, id)
		case errors.Is(err, appErrors.ErrNotFound):
			result.Skipped = append(result.Skipped, BulkSkip{ID: id, Reason: SkipNotFound})
		case errors.Is(err, appErrors.ErrNotPending):
			result.Skipped = append(result.Skipped, BulkSkip{ID: id, Reason: SkipNotPending})
		default:
			s.logger.Warn("bulk approve item failed", zap.String("certification_id", id), zap.Error(err))
			result.Skipped = append(result.Skipped, BulkSkip{ID: id, Reason: SkipFailed})
		}
	}
	result.ApprovedCount = len(result.Approved)
	result.SkippedCount = len(result.Skipped)

	if len(result.Approved) > 0 {
		selection, err := s.loadSelection(ctx, actor)
		if err == nil {
			for _, id := range result.Approved {
				selection.Deselect(id)
			}
			if err := s.saveSelection(ctx, actor, selection); err != nil {
				s.logger.Warn("failed to update selection after bulk approve", zap.Error(err))
			}
		}
	}
	return result, nil
}

// Selection returns the caller's selected ids.
func (s *CertificationService) Selection(ctx context.Context, actor *models.JWTClaims) ([]string, error) {
	if err := s.requireReviewer(actor); err != nil {
		return nil, err
	}
	selection, err := s.loadSelection(ctx, actor)
	if err != nil {
		return nil, err
	}
	return selection.IDs(), nil
}

// ToggleSelection flips one id. It reports whether the id is now selected.
func (s *CertificationService) ToggleSelection(ctx context.Context, actor *models.JWTClaims, id string) (bool, []string, error) {
	if err := s.requireReviewer(actor); err != nil {
		return false, nil, err
	}
	if strings.TrimSpace(id) == "" {
		return false, nil, appErrors.WithFields(appErrors.ErrValidation, "id is required", map[string]string{"id": validation.ErrRequired.Error()})
	}
	selection, err := s.loadSelection(ctx, actor)
	if err != nil {
		return false, nil, err
	}
	selected := selection.Toggle(id)
	if err := s.saveSelection(ctx, actor, selection); err != nil {
		return false, nil, err
	}
	return selected, selection.IDs(), nil
}

// SelectAll replaces the selection with the PENDING records matching query.
func (s *CertificationService) SelectAll(ctx context.Context, actor *models.JWTClaims, query CertificationQuery) ([]string, error) {
	if err := s.requireReviewer(actor); err != nil {
		return nil, err
	}
	query.Status = string(models.CertificationPending)
	records, err := s.visible(ctx, actor, query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.ID)
	}
	selection := review.NewSelection()
	selection.SelectAll(ids)
	if err := s.saveSelection(ctx, actor, selection); err != nil {
		return nil, err
	}
	return selection.IDs(), nil
}

// ClearSelection empties the caller's selection.
func (s *CertificationService) ClearSelection(ctx context.Context, actor *models.JWTClaims) error {
	if err := s.requireReviewer(actor); err != nil {
		return err
	}
	if err := s.state.Delete(ctx, selectionKeyPrefix+actor.UserID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear selection")
	}
	return nil
}

// Delete removes a record. Owners and submitters may remove their unverified records;
// administrators may remove any.
func (s *CertificationService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionCertificationDelete) {
		return appErrors.ErrForbidden
	}
	record, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	admin := authz.Allows(actor.Role, authz.ActionPersonnelManage)
	own := record.OwnerNIP == actor.NIP || (record.SubmittedBy != nil && *record.SubmittedBy == actor.UserID)
	if !admin && !own {
		return appErrors.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id, !admin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if !admin && record.Status == models.CertificationVerified {
				return appErrors.Clone(appErrors.ErrConflict, "verified certifications cannot be deleted")
			}
			return appErrors.Clone(appErrors.ErrNotFound, "certification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete certification")
	}
	if s.documents != nil {
		if err := s.documents.Discard(ctx, record.DocumentRef); err != nil {
			s.logger.Warn("failed to discard certification document", zap.String("document_id", record.DocumentRef), zap.Error(err))
		}
	}
	s.emitAudit(ctx, actor, models.AuditActionCertificationDelete, id, map[string]interface{}{
		"ownerNip": record.OwnerNIP,
		"status":   record.Status,
	}, nil)
	s.invalidateDashboards(ctx)
	return nil
}

// transition resolves a PENDING record. A stale or racing update yields ErrNotPending and
// never notifies.
func (s *CertificationService) transition(ctx context.Context, actor *models.JWTClaims, id string, status models.CertificationStatus, reason *string) (*models.CertificationRecord, error) {
	record, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.CertificationPending {
		s.metrics.RecordTransition(string(status), "stale")
		return nil, appErrors.ErrNotPending
	}

	at := s.now().UTC()
	t := models.StatusTransition{Status: status, VerifierID: actor.UserID, RejectionReason: reason, At: at}
	if err := s.repo.UpdateStatus(ctx, id, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition(string(status), "stale")
			return nil, appErrors.ErrNotPending
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update certification")
	}
	s.metrics.RecordTransition(string(status), "applied")

	previous := record.Status
	record.Status = status
	record.VerifiedBy = &t.VerifierID
	record.VerifiedAt = &at
	record.RejectionReason = reason

	template := models.TemplateCertificationApproved
	action := models.AuditActionCertificationApprove
	payload := map[string]string{"type": record.CertificationType.Label()}
	if status == models.CertificationRejected {
		template = models.TemplateCertificationRejected
		action = models.AuditActionCertificationReject
		payload["reason"] = *reason
	}
	if s.notifier != nil && record.OwnerID != "" {
		s.notifier.Notify(ctx, record.OwnerID, template, payload)
	}
	s.emitAudit(ctx, actor, action, id, map[string]interface{}{"status": previous}, map[string]interface{}{
		"status":          status,
		"rejectionReason": reason,
	})
	s.invalidateDashboards(ctx)
	return record, nil
}

func (s *CertificationService) visible(ctx context.Context, actor *models.JWTClaims, query CertificationQuery) ([]models.CertificationRecord, error) {
	scope, ok := authz.CertificationScope(actor)
	if !ok {
		if actor == nil {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, appErrors.ErrForbidden
	}
	filter := models.CertificationFilter{Scope: scope, Type: models.CertificationType(query.Type)}
	if status := models.CertificationStatus(strings.ToUpper(strings.TrimSpace(query.Status))); status.Valid() {
		filter.Statuses = []models.CertificationStatus{status}
	}
	if !query.IssuedFrom.IsZero() {
		from := query.IssuedFrom
		filter.IssuedFrom = &from
	}
	if !query.IssuedTo.IsZero() {
		to := query.IssuedTo
		filter.IssuedTo = &to
	}
	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certifications")
	}
	return review.Filter(records, query.Query), nil
}

func (s *CertificationService) load(ctx context.Context, id string) (*models.CertificationRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certification")
	}
	return record, nil
}

func (s *CertificationService) requireReviewer(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionCertificationReview) {
		return appErrors.ErrForbidden
	}
	return nil
}

func (s *CertificationService) loadSelection(ctx context.Context, actor *models.JWTClaims) (*review.Selection, error) {
	var ids []string
	if err := s.state.Get(ctx, selectionKeyPrefix+actor.UserID, &ids); err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load selection")
	}
	return review.NewSelection(ids...), nil
}

func (s *CertificationService) saveSelection(ctx context.Context, actor *models.JWTClaims, selection *review.Selection) error {
	if err := s.state.Set(ctx, selectionKeyPrefix+actor.UserID, selection.IDs(), s.cfg.SelectionTTL); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save selection")
	}
	return nil
}

func (s *CertificationService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Purge(ctx); err != nil {
		s.logger.Warn("failed to purge dashboard cache", zap.Error(err))
	}
}

func (s *CertificationService) emitAudit(ctx context.Context, actor *models.JWTClaims, action, id string, oldValues, newValues interface{}) {
	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, action, "certification", id, oldValues, newValues))
}

// documentUsable checks that an upload belongs to actor and fits the submission path.
func documentUsable(actor *models.JWTClaims, doc *models.Document, onBehalf bool) error {
	if doc.UploadedBy == nil || *doc.UploadedBy != actor.UserID {
		return errors.New("dokumen bukan milik Anda")
	}
	switch doc.Context {
	case models.UploadContextOfficerCertification:
		return nil
	case models.UploadContextCertification:
		if onBehalf || actor.Role != models.RoleFieldOfficer {
			return nil
		}
		return validation.ErrFileType
	}
	return validation.ErrFileType
}
