package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supermen-api/internal/models"
)

const certificationSelect = `SELECT c.id, c.owner_nip, p.id AS owner_id, p.full_name AS owner_name, p.province AS region,
       c.certification_type, c.issue_date, c.expiry_date, c.document_ref, c.status, c.verified_by, c.verified_at,
       c.rejection_reason, c.submitted_by, c.created_at, c.updated_at
	FROM certifications c JOIN personnel p ON p.nip = c.owner_nip`

// CertificationRepository persists certification records and their verification outcome.
type CertificationRepository struct {
	db *sqlx.DB
}

// NewCertificationRepository constructs the repository.
func NewCertificationRepository(db *sqlx.DB) *CertificationRepository {
	return &CertificationRepository{db: db}
}

// Create inserts a PENDING record.
func (r *CertificationRepository) Create(ctx context.Context, record *models.CertificationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.Status = models.CertificationPending
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	const query = `INSERT INTO certifications
	(id, owner_nip, certification_type, issue_date, expiry_date, document_ref, status, submitted_by, created_at, updated_at)
	VALUES (:id, :owner_nip, :certification_type, :issue_date, :expiry_date, :document_ref, :status, :submitted_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create certification: %w", translate(err))
	}
	return nil
}

// GetByID fetches a record joined with its owner.
func (r *CertificationRepository) GetByID(ctx context.Context, id string) (*models.CertificationRecord, error) {
	query := certificationSelect + ` WHERE c.id = $1`
	var record models.CertificationRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get certification: %w", err)
	}
	return &record, nil
}

func scopeConditions(scope models.CertificationScope, args []interface{}) ([]string, []interface{}) {
	conditions := make([]string, 0, 2)
	if scope.OwnerNIP != "" {
		args = append(args, scope.OwnerNIP)
		conditions = append(conditions, fmt.Sprintf("c.owner_nip = $%d", len(args)))
	}
	if scope.Region != "" && !strings.EqualFold(scope.Region, models.RegionAll) {
		args = append(args, strings.ToLower(scope.Region))
		conditions = append(conditions, fmt.Sprintf("p.province = $%d", len(args)))
	}
	return conditions, args
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

// List returns records visible within the filter scope, latest first.
func (r *CertificationRepository) List(ctx context.Context, filter models.CertificationFilter) ([]models.CertificationRecord, error) {
	conditions, args := scopeConditions(filter.Scope, make([]interface{}, 0, 6))
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("c.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("c.certification_type = $%d", len(args)))
	}
	if filter.IssuedFrom != nil {
		args = append(args, *filter.IssuedFrom)
		conditions = append(conditions, fmt.Sprintf("c.issue_date >= $%d", len(args)))
	}
	if filter.IssuedTo != nil {
		args = append(args, *filter.IssuedTo)
		conditions = append(conditions, fmt.Sprintf("c.issue_date <= $%d", len(args)))
	}

	query := certificationSelect + whereClause(conditions) + " ORDER BY c.created_at DESC"
	var records []models.CertificationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list certifications: %w", err)
	}
	return records, nil
}

// UpdateStatus resolves a PENDING record. It returns sql.ErrNoRows when the record is
// missing or already resolved, so concurrent reviewers see exactly one winner.
func (r *CertificationRepository) UpdateStatus(ctx context.Context, id string, t models.StatusTransition) error {
	const query = `UPDATE certifications
	SET status = :status, verified_by = :verified_by, verified_at = :verified_at, rejection_reason = :rejection_reason, updated_at = :verified_at
	WHERE id = :id AND status = 'PENDING'`
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"id":               id,
		"status":           t.Status,
		"verified_by":      t.VerifierID,
		"verified_at":      t.At,
		"rejection_reason": t.RejectionReason,
	})
	if err != nil {
		return fmt.Errorf("update certification status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check certification update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a record. When onlyUnverified is set a VERIFIED row is left untouched
// and sql.ErrNoRows is returned.
func (r *CertificationRepository) Delete(ctx context.Context, id string, onlyUnverified bool) error {
	query := `DELETE FROM certifications WHERE id = $1`
	if onlyUnverified {
		query += ` AND status <> 'VERIFIED'`
	}
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete certification: %w", err)
	}
	return requireAffected(result)
}

// ListExpiring returns VERIFIED records whose expiry falls within [from, to].
func (r *CertificationRepository) ListExpiring(ctx context.Context, region string, from, to time.Time) ([]models.CertificationRecord, error) {
	conditions, args := scopeConditions(models.CertificationScope{Region: region}, []interface{}{})
	args = append(args, from, to)
	conditions = append(conditions,
		"c.status = 'VERIFIED'",
		fmt.Sprintf("c.expiry_date BETWEEN $%d AND $%d", len(args)-1, len(args)),
	)
	query := certificationSelect + whereClause(conditions) + " ORDER BY c.expiry_date ASC"
	var records []models.CertificationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list expiring certifications: %w", err)
	}
	return records, nil
}

// CountRow is one grouped aggregate.
type CountRow struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// CountBy groups scoped records by status, certification_type or region.
func (r *CertificationRepository) CountBy(ctx context.Context, scope models.CertificationScope, dimension string) ([]CountRow, error) {
	column, ok := map[string]string{
		"status": "c.status",
		"type":   "c.certification_type",
		"region": "p.province",
	}[dimension]
	if !ok {
		return nil, fmt.Errorf("unsupported dimension %q", dimension)
	}
	conditions, args := scopeConditions(scope, []interface{}{})
	query := fmt.Sprintf(`SELECT %s AS key, COUNT(*) AS count FROM certifications c JOIN personnel p ON p.nip = c.owner_nip%s GROUP BY %s ORDER BY %s`,
		column, whereClause(conditions), column, column)
	var rows []CountRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count certifications by %s: %w", dimension, err)
	}
	return rows, nil
}

// CountExpiry returns verified records already expired before today and those expiring within days.
func (r *CertificationRepository) CountExpiry(ctx context.Context, scope models.CertificationScope, today time.Time, days int) (expired, expiring int, err error) {
	conditions, args := scopeConditions(scope, []interface{}{})
	args = append(args, today, today.AddDate(0, 0, days))
	conditions = append(conditions, "c.status = 'VERIFIED'")
	query := fmt.Sprintf(`SELECT
	COUNT(*) FILTER (WHERE c.expiry_date < $%d) AS expired,
	COUNT(*) FILTER (WHERE c.expiry_date >= $%d AND c.expiry_date <= $%d) AS expiring
	FROM certifications c JOIN personnel p ON p.nip = c.owner_nip%s`, len(args)-1, len(args)-1, len(args), whereClause(conditions))
	var out struct {
		Expired  int `db:"expired"`
		Expiring int `db:"expiring"`
	}
	if err := r.db.GetContext(ctx, &out, query, args...); err != nil {
		return 0, 0, fmt.Errorf("count certification expiry: %w", err)
	}
	return out.Expired, out.Expiring, nil
}
