package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/dto"
	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/export"
)

type certificationSearcher interface {
	Search(ctx context.Context, actor *models.JWTClaims, query CertificationQuery) ([]models.CertificationRecord, error)
}

type reportRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

var reportHeaders = []string{"NIP", "Nama", "Provinsi", "Jenis Sertifikasi", "Tanggal Terbit", "Berlaku Hingga", "Status", "Catatan"}

// ReportService renders the caller's visible certification list as a downloadable file.
type ReportService struct {
	certifications certificationSearcher
	renderers      map[dto.ReportFormat]reportRenderer
	audit          auditLogger
	logger         *zap.Logger
	now            func() time.Time
}

// NewReportService constructs the report service with CSV and PDF renderers.
func NewReportService(certifications certificationSearcher, audit auditLogger, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		certifications: certifications,
		renderers: map[dto.ReportFormat]reportRenderer{
			dto.ReportFormatCSV: export.NewCSVExporter(),
			dto.ReportFormatPDF: export.NewPDFExporter(),
		},
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Certifications exports the filtered certification list in format.
func (s *ReportService) Certifications(ctx context.Context, actor *models.JWTClaims, format dto.ReportFormat, query CertificationQuery) (*dto.ReportFile, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !authz.Allows(actor.Role, authz.ActionReportExport) {
		return nil, appErrors.ErrForbidden
	}
	if format == "" {
		format = dto.ReportFormatCSV
	}
	renderer, ok := s.renderers[dto.ReportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "unsupported report format", map[string]string{"format": "must be csv or pdf"})
	}
	if !query.IssuedFrom.IsZero() && !query.IssuedTo.IsZero() && query.IssuedTo.Before(query.IssuedFrom) {
		return nil, appErrors.WithFields(appErrors.ErrValidation, "invalid issue date range", map[string]string{"issuedTo": "must not be before issuedFrom"})
	}

	records, err := s.certifications.Search(ctx, actor, query)
	if err != nil {
		return nil, err
	}

	now := s.now()
	payload, err := renderer.Render(s.dataset(records, query, now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	writeAudit(ctx, s.audit, s.logger, newAuditEntry(actor, models.AuditActionReportExport, "report", "", nil, map[string]interface{}{
		"format": renderer.Extension(),
		"rows":   len(records),
		"region": query.Region,
		"status": query.Status,
		"type":   query.Type,
	}))
	s.logger.Info("certification report exported",
		zap.String("actor", actor.NIP),
		zap.String("format", renderer.Extension()),
		zap.Int("rows", len(records)))

	return &dto.ReportFile{
		Filename:    fmt.Sprintf("sertifikasi_%s.%s", now.Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
		RowCount:    len(records),
	}, nil
}

func (s *ReportService) dataset(records []models.CertificationRecord, query CertificationQuery, now time.Time) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, record := range records {
		note := ""
		switch {
		case record.Status == models.CertificationRejected && record.RejectionReason != nil:
			note = *record.RejectionReason
		case record.IsExpired(now):
			note = "Kedaluwarsa"
		case record.Status == models.CertificationVerified:
			note = "Sisa " + strconv.Itoa(record.DaysUntilExpiry(now)) + " hari"
		}
		rows = append(rows, map[string]string{
			"NIP":               record.OwnerNIP,
			"Nama":              record.OwnerName,
			"Provinsi":          record.Region,
			"Jenis Sertifikasi": record.CertificationType.Label(),
			"Tanggal Terbit":    record.IssueDate.Format(DateLayout),
			"Berlaku Hingga":    record.ExpiryDate.Format(DateLayout),
			"Status":            string(record.Status),
			"Catatan":           note,
		})
	}
	return export.Dataset{
		Title:   "Laporan Sertifikasi Personel Metrologi Legal",
		Notes:   reportNotes(query, now, len(records)),
		Headers: reportHeaders,
		Rows:    rows,
	}
}

func reportNotes(query CertificationQuery, now time.Time, total int) []string {
	notes := []string{"Dibuat: " + now.Format("2006-01-02 15:04")}
	if query.Region != "" {
		notes = append(notes, "Provinsi: "+query.Region)
	}
	if query.Status != "" {
		notes = append(notes, "Status: "+strings.ToUpper(query.Status))
	}
	if query.Type != "" {
		notes = append(notes, "Jenis: "+models.CertificationType(query.Type).Label())
	}
	if !query.IssuedFrom.IsZero() || !query.IssuedTo.IsZero() {
		notes = append(notes, "Periode terbit: "+formatBound(query.IssuedFrom)+" s.d. "+formatBound(query.IssuedTo))
	}
	return append(notes, "Jumlah data: "+strconv.Itoa(total))
}

func formatBound(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}
