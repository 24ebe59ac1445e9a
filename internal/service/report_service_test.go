package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/models"
	"github.com/noah-isme/supermen-api/internal/review"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

func reportRecords() []models.CertificationRecord {
	verified := pendingRecord("c2", nipSari, "u2", "bali")
	verified.Status = models.CertificationVerified
	rejected := pendingRecord("c3", nipBudi, "u1", "jawa-barat")
	rejected.Status = models.CertificationRejected
	reason := "dokumen buram"
	rejected.RejectionReason = &reason
	return []models.CertificationRecord{pendingRecord("c1", nipBudi, "u1", "jawa-barat"), verified, rejected}
}

func newReportFixture(t *testing.T) (*ReportService, *auditStub) {
	t.Helper()
	f := newCertificationFixture(t, reportRecords()...)
	audit := &auditStub{}
	svc := NewReportService(f.svc, audit, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC) }
	return svc, audit
}

func TestReportCertificationsCSV(t *testing.T) {
	svc, audit := newReportFixture(t)

	file, err := svc.Certifications(context.Background(), verifierClaims, dto.ReportFormatCSV, CertificationQuery{})
	require.NoError(t, err)
	assert.Equal(t, "sertifikasi_20240601_100000.csv", file.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", file.ContentType)
	assert.Equal(t, 3, file.RowCount)

	require.True(t, bytes.HasPrefix(file.Data, []byte("\xef\xbb\xbf")))
	rows, err := csv.NewReader(bytes.NewReader(file.Data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, reportHeaders, rows[0])

	var notes []string
	for _, row := range rows[1:] {
		notes = append(notes, row[7])
	}
	assert.Contains(t, notes, "dokumen buram")
	assert.Contains(t, notes, "Sisa 944 hari")
	assert.Equal(t, []string{models.AuditActionReportExport}, audit.actions())
}

func TestReportCertificationsScopedAndFiltered(t *testing.T) {
	svc, _ := newReportFixture(t)

	file, err := svc.Certifications(context.Background(), regionalClaims, dto.ReportFormatCSV, CertificationQuery{
		Query: review.Query{Status: "pending"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, file.RowCount)

	file, err = svc.Certifications(context.Background(), verifierClaims, "PDF", CertificationQuery{Query: review.Query{Region: "bali"}})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, 1, file.RowCount)
	assert.True(t, bytes.HasPrefix(file.Data, []byte("%PDF")))
}

func TestReportCertificationsRejects(t *testing.T) {
	svc, _ := newReportFixture(t)
	ctx := context.Background()

	_, err := svc.Certifications(ctx, officerClaims, dto.ReportFormatCSV, CertificationQuery{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.Certifications(ctx, verifierClaims, "xlsx", CertificationQuery{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "format")

	_, err = svc.Certifications(ctx, verifierClaims, dto.ReportFormatCSV, CertificationQuery{
		IssuedFrom: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		IssuedTo:   time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
