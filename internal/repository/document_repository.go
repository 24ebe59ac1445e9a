package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supermen-api/internal/models"
)

const documentColumns = `id, uploaded_by, context, original_name, file_path, mime_type, size_bytes, uploaded_at`

// DocumentRepository persists upload metadata.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores metadata for an accepted upload. The caller assigns the ID.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (` + documentColumns + `)
	VALUES (:id, :uploaded_by, :context, :original_name, :file_path, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", translate(err))
	}
	return nil
}

// GetByID returns one document row or sql.ErrNoRows.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Referenced reports whether a certification points at the document.
func (r *DocumentRepository) Referenced(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM certifications WHERE document_ref = $1)`, id); err != nil {
		return false, fmt.Errorf("check document reference: %w", err)
	}
	return exists, nil
}

// Delete removes the metadata row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res)
}
