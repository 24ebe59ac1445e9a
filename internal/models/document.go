package models

import "time"

// UploadContext selects the intake rules applied to an upload.
type UploadContext string

const (
	UploadContextRegistration         UploadContext = "REGISTRATION"
	UploadContextCertification        UploadContext = "CERTIFICATION"
	UploadContextOfficerCertification UploadContext = "OFFICER_CERTIFICATION"
)

// Valid reports whether c is a known context.
func (c UploadContext) Valid() bool {
	switch c {
	case UploadContextRegistration, UploadContextCertification, UploadContextOfficerCertification:
		return true
	}
	return false
}

// Document is accepted upload metadata; the bytes live in file storage.
type Document struct {
	ID           string        `db:"id" json:"id"`
	UploadedBy   *string       `db:"uploaded_by" json:"uploadedBy,omitempty"`
	Context      UploadContext `db:"context" json:"context"`
	OriginalName string        `db:"original_name" json:"originalName"`
	FilePath     string        `db:"file_path" json:"-"`
	MimeType     string        `db:"mime_type" json:"mimeType"`
	SizeBytes    int64         `db:"size_bytes" json:"sizeBytes"`
	UploadedAt   time.Time     `db:"uploaded_at" json:"uploadedAt"`
}
