package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/validation"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/idgen"
	"github.com/noah-isme/supermen-api/pkg/storage"
)

// DefaultMaxUploadBytes caps every upload context.
const DefaultMaxUploadBytes int64 = 5 * 1024 * 1024

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Referenced(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

type documentFileStorage interface {
	SaveStream(filename string, r io.Reader) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type documentSigner interface {
	Sign(g storage.Grant) (string, time.Time, error)
	Verify(token string) (storage.Grant, error)
}

// DocumentUpload carries an incoming file.
type DocumentUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// DocumentDownload bundles an opened file for streaming.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// DocumentServiceConfig holds intake limits.
type DocumentServiceConfig struct {
	MaxFileSize int64
	APIPrefix   string
}

var extensionMIMEs = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// DocumentService accepts uploads per context and serves them back through signed URLs.
type DocumentService struct {
	repo    documentStore
	storage documentFileStorage
	signer  documentSigner
	audit   auditLogger
	metrics *MetricsService
	logger  *zap.Logger
	cfg     DocumentServiceConfig
}

// NewDocumentService constructs the service with defaults.
func NewDocumentService(repo documentStore, files documentFileStorage, signer documentSigner, audit auditLogger, metrics *MetricsService, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxUploadBytes
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &DocumentService{repo: repo, storage: files, signer: signer, audit: audit, metrics: metrics, logger: logger, cfg: cfg}
}

// Constraints returns the intake rules of an upload context. Officer self-service accepts pdf only.
func (s *DocumentService) Constraints(uploadCtx models.UploadContext) validation.FileConstraints {
	c := validation.FileConstraints{MaxSizeBytes: s.cfg.MaxFileSize, AllowedExtensions: []string{"pdf", "jpg", "jpeg", "png"}}
	if uploadCtx == models.UploadContextOfficerCertification {
		c.AllowedExtensions = []string{"pdf"}
	}
	return c
}

// Accept validates and stores an upload. Rejections carry a "file" field message and nothing is stored.
// actor may be nil only for the public registration context.
func (s *DocumentService) Accept(ctx context.Context, upload DocumentUpload, uploadCtx models.UploadContext, actor *models.JWTClaims) (*models.Document, error) {
	if !uploadCtx.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown upload context")
	}
	if actor == nil && uploadCtx != models.UploadContextRegistration {
		return nil, appErrors.ErrUnauthorized
	}

	file := validation.File{Name: upload.Filename, Size: upload.Size}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, s.reject(uploadCtx, "missing", validation.FilePresence(nil))
	}
	if err := validation.FilePresence(&file); err != nil {
		return nil, s.reject(uploadCtx, "missing", err)
	}
	if err := validation.FileConstraintsCheck(file, s.Constraints(uploadCtx)); err != nil {
		reason := "extension"
		if errors.Is(err, validation.ErrFileTooLarge) {
			reason = "too_large"
		}
		return nil, s.reject(uploadCtx, reason, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.Filename), "."))
	mimeType, err := sniff(upload.Content)
	if err != nil {
		return nil, err
	}
	if mimeType != extensionMIMEs[ext] {
		return nil, s.reject(uploadCtx, "content_mismatch", validation.ErrFileType)
	}

	id := idgen.New()
	relPath := filepath.Join(strings.ToLower(string(uploadCtx)), id+"."+ext)
	written, err := s.storage.SaveStream(relPath, io.LimitReader(upload.Content, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document")
	}
	if written > s.cfg.MaxFileSize {
		_ = s.storage.Delete(relPath)
		return nil, s.reject(uploadCtx, "too_large", validation.ErrFileTooLarge)
	}

	doc := &models.Document{
		ID:           id,
		Context:      uploadCtx,
		OriginalName: filepath.Base(upload.Filename),
		FilePath:     relPath,
		MimeType:     mimeType,
		SizeBytes:    written,
		UploadedBy:   userIDPtr(actor),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		_ = s.storage.Delete(relPath)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document metadata")
	}
	s.logger.Debug("document accepted", zap.String("document_id", id), zap.String("context", string(uploadCtx)), zap.Int64("size", written))
	return doc, nil
}

// Lookup returns a document without access checks, for services that validate references.
func (s *DocumentService) Lookup(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// Get returns document metadata visible to actor.
func (s *DocumentService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Document, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canReadDocument(actor, doc) {
		return nil, appErrors.ErrForbidden
	}
	return doc, nil
}

// GetDownloadURL signs a short-lived download link.
func (s *DocumentService) GetDownloadURL(ctx context.Context, id string, actor *models.JWTClaims) (string, time.Time, error) {
	if s.signer == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return "", time.Time{}, err
	}
	token, expiresAt, err := s.signer.Sign(storage.Grant{DocumentID: doc.ID, Path: doc.FilePath, IssuedTo: actor.UserID})
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/documents/%s/download?token=%s", base, doc.ID, token), expiresAt, nil
}

// Download validates the token and opens the stored file.
func (s *DocumentService) Download(ctx context.Context, id, token string, actor *models.JWTClaims) (*DocumentDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	doc, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	grant, err := s.signer.Verify(token)
	if errors.Is(err, storage.ErrTokenExpired) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	}
	if err != nil || grant.DocumentID != doc.ID || grant.Path != doc.FilePath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	file, err := s.storage.Open(grant.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, models.AuditActionDocumentDownload, "document", doc.ID, nil, map[string]string{"link_issued_to": grant.IssuedTo}))
	return &DocumentDownload{
		File:      file,
		Filename:  doc.OriginalName,
		MimeType:  doc.MimeType,
		SizeBytes: info.Size(),
		ExpiresAt: grant.ExpiresAt,
	}, nil
}

// Discard removes a document no certification points at. Referenced documents are kept.
func (s *DocumentService) Discard(ctx context.Context, id string) error {
	doc, err := s.Lookup(ctx, id)
	if err != nil {
		return err
	}
	referenced, err := s.repo.Referenced(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check document references")
	}
	if referenced {
		return nil
	}
	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.storage.Delete(doc.FilePath); err != nil {
		s.logger.Warn("failed to remove document file", zap.String("document_id", id), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) reject(uploadCtx models.UploadContext, reason string, err error) error {
	s.metrics.RecordUploadRejected(string(uploadCtx), reason)
	return appErrors.WithFields(appErrors.ErrUploadRejected, err.Error(), map[string]string{"file": err.Error()})
}

func sniff(content io.ReadSeeker) (string, error) {
	header := make([]byte, 512)
	n, err := io.ReadFull(content, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.WithFields(appErrors.ErrUploadRejected, "empty file", map[string]string{"file": validation.ErrFileMissing.Error()})
	}
	mimeType := http.DetectContentType(header[:n])
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType, nil
}

func canReadDocument(actor *models.JWTClaims, doc *models.Document) bool {
	if doc.UploadedBy != nil && *doc.UploadedBy == actor.UserID {
		return true
	}
	switch {
	case authz.Allows(actor.Role, authz.ActionCertificationViewAll),
		authz.Allows(actor.Role, authz.ActionCertificationViewRegion),
		authz.Allows(actor.Role, authz.ActionPersonnelManage):
		return true
	}
	return false
}
