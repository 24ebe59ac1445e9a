package service

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/storage"
)

type documentRepoStub struct {
	mu         sync.Mutex
	docs       map[string]*models.Document
	referenced map[string]bool
}

func newDocumentRepoStub() *documentRepoStub {
	return &documentRepoStub{docs: make(map[string]*models.Document), referenced: make(map[string]bool)}
}

func (r *documentRepoStub) Create(ctx context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *doc
	r.docs[doc.ID] = &cp
	return nil
}

func (r *documentRepoStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *doc
	return &cp, nil
}

func (r *documentRepoStub) Referenced(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.referenced[id], nil
}

func (r *documentRepoStub) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.docs, id)
	return nil
}

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
)

func newDocumentFixture(t *testing.T) (*DocumentService, *documentRepoStub, *auditStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := newDocumentRepoStub()
	audit := &auditStub{}
	svc := NewDocumentService(repo, store, storage.NewSignedURLSigner("secret", time.Minute), audit, NewMetricsService(), nil, DocumentServiceConfig{})
	return svc, repo, audit
}

func upload(name string, content []byte) DocumentUpload {
	return DocumentUpload{Filename: name, Size: int64(len(content)), Content: bytes.NewReader(content)}
}

func TestDocumentServiceAcceptPerContext(t *testing.T) {
	svc, repo, _ := newDocumentFixture(t)
	ctx := context.Background()
	officer := &models.JWTClaims{UserID: "u1", Role: models.RoleFieldOfficer}

	doc, err := svc.Accept(ctx, upload("sertifikat.png", pngBytes), models.UploadContextCertification, officer)
	require.NoError(t, err)
	assert.Equal(t, "image/png", doc.MimeType)
	assert.Contains(t, repo.docs, doc.ID)

	_, err = svc.Accept(ctx, upload("sertifikat.png", pngBytes), models.UploadContextOfficerCertification, officer)
	appErr := appErrors.FromError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, appErrors.ErrUploadRejected.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "file")

	doc, err = svc.Accept(ctx, upload("sertifikat.PDF", pdfBytes), models.UploadContextOfficerCertification, officer)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, "u1", *doc.UploadedBy)
}

func TestDocumentServiceAcceptRejections(t *testing.T) {
	svc, repo, _ := newDocumentFixture(t)
	ctx := context.Background()

	big := DocumentUpload{Filename: "besar.pdf", Size: DefaultMaxUploadBytes + 1, Content: bytes.NewReader(pdfBytes)}
	_, err := svc.Accept(ctx, big, models.UploadContextRegistration, nil)
	assert.Equal(t, appErrors.ErrUploadRejected.Code, appErrors.FromError(err).Code)

	_, err = svc.Accept(ctx, upload("palsu.pdf", pngBytes), models.UploadContextRegistration, nil)
	assert.Equal(t, appErrors.ErrUploadRejected.Code, appErrors.FromError(err).Code)

	_, err = svc.Accept(ctx, upload("dokumen.docx", pdfBytes), models.UploadContextRegistration, nil)
	assert.Equal(t, appErrors.ErrUploadRejected.Code, appErrors.FromError(err).Code)

	_, err = svc.Accept(ctx, upload("kosong.pdf", nil), models.UploadContextRegistration, nil)
	assert.Equal(t, appErrors.ErrUploadRejected.Code, appErrors.FromError(err).Code)

	_, err = svc.Accept(ctx, upload("a.pdf", pdfBytes), models.UploadContextCertification, nil)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	assert.Empty(t, repo.docs)
}

func TestDocumentServiceSizeLimitCountsBytesWritten(t *testing.T) {
	svc, repo, _ := newDocumentFixture(t)
	content := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("x"), int(DefaultMaxUploadBytes))...)
	lying := DocumentUpload{Filename: "a.pdf", Size: 10, Content: bytes.NewReader(content)}

	_, err := svc.Accept(context.Background(), lying, models.UploadContextRegistration, nil)
	assert.Equal(t, appErrors.ErrUploadRejected.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.docs)
}

func TestDocumentServiceDownload(t *testing.T) {
	svc, _, audit := newDocumentFixture(t)
	ctx := context.Background()
	owner := &models.JWTClaims{UserID: "u1", Role: models.RoleFieldOfficer}

	doc, err := svc.Accept(ctx, upload("sertifikat.pdf", pdfBytes), models.UploadContextOfficerCertification, owner)
	require.NoError(t, err)

	link, _, err := svc.GetDownloadURL(ctx, doc.ID, owner)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(link, "/api/v1/documents/"+doc.ID+"/download?token="))
	parsed, err := url.Parse(link)
	require.NoError(t, err)
	token := parsed.Query().Get("token")

	_, _, err = svc.GetDownloadURL(ctx, doc.ID, &models.JWTClaims{UserID: "u2", Role: models.RoleFieldOfficer})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	verifier := &models.JWTClaims{UserID: "v1", Role: models.RoleVerifier}
	dl, err := svc.Download(ctx, doc.ID, token, verifier)
	require.NoError(t, err)
	defer dl.File.Close()
	data, err := io.ReadAll(dl.File)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
	assert.Equal(t, "sertifikat.pdf", dl.Filename)
	assert.Equal(t, []string{models.AuditActionDocumentDownload}, audit.actions())

	_, err = svc.Download(ctx, doc.ID, token+"x", verifier)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceDiscardKeepsReferenced(t *testing.T) {
	svc, repo, _ := newDocumentFixture(t)
	ctx := context.Background()

	kept, err := svc.Accept(ctx, upload("a.pdf", pdfBytes), models.UploadContextRegistration, nil)
	require.NoError(t, err)
	dropped, err := svc.Accept(ctx, upload("b.pdf", pdfBytes), models.UploadContextRegistration, nil)
	require.NoError(t, err)
	repo.referenced[kept.ID] = true

	require.NoError(t, svc.Discard(ctx, kept.ID))
	require.NoError(t, svc.Discard(ctx, dropped.ID))
	assert.Contains(t, repo.docs, kept.ID)
	assert.NotContains(t, repo.docs, dropped.ID)
}
