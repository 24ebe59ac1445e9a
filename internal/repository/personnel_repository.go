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

const personnelColumns = `id, nip, email, password_hash, full_name, position, institution, province, phone, role, status, certificate_ref, email_notifications, last_login, created_at, updated_at`

// PersonnelRepository provides database access for personnel accounts and their refresh tokens.
type PersonnelRepository struct {
	db *sqlx.DB
}

// NewPersonnelRepository creates a new instance of PersonnelRepository.
func NewPersonnelRepository(db *sqlx.DB) *PersonnelRepository {
	return &PersonnelRepository{db: db}
}

func (r *PersonnelRepository) findOne(ctx context.Context, column, value, label string) (*models.Personnel, error) {
	query := fmt.Sprintf("SELECT %s FROM personnel WHERE %s = $1 LIMIT 1", personnelColumns, column)
	var p models.Personnel
	if err := r.db.GetContext(ctx, &p, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find personnel by %s: %w", label, err)
	}
	return &p, nil
}

// FindByEmail returns personnel by e-mail, case-insensitively.
func (r *PersonnelRepository) FindByEmail(ctx context.Context, email string) (*models.Personnel, error) {
	return r.findOne(ctx, "LOWER(email)", strings.ToLower(strings.TrimSpace(email)), "email")
}

// FindByNIP returns personnel by NIP.
func (r *PersonnelRepository) FindByNIP(ctx context.Context, nip string) (*models.Personnel, error) {
	return r.findOne(ctx, "nip", nip, "nip")
}

// FindByID returns personnel by identifier.
func (r *PersonnelRepository) FindByID(ctx context.Context, id string) (*models.Personnel, error) {
	return r.findOne(ctx, "id", id, "id")
}

// ListIDsByProvince returns active personnel ids, optionally limited to one province.
func (r *PersonnelRepository) ListIDsByProvince(ctx context.Context, province string) ([]string, error) {
	query := `SELECT id FROM personnel WHERE status = 'ACTIVE'`
	args := []interface{}{}
	if province != "" && !strings.EqualFold(province, models.RegionAll) {
		query += ` AND province = $1`
		args = append(args, province)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list personnel ids: %w", err)
	}
	return ids, nil
}

// UpdateLastLogin updates the last_login timestamp.
func (r *PersonnelRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE personnel SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *PersonnelRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE personnel SET password_hash = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

// UpdateStatus sets the activation status.
func (r *PersonnelRepository) UpdateStatus(ctx context.Context, id string, status models.PersonnelStatus, updatedAt time.Time) error {
	const query = `UPDATE personnel SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, updatedAt)
	if err != nil {
		return fmt.Errorf("update personnel status: %w", err)
	}
	return requireAffected(res)
}

// List returns personnel based on filters with total count.
func (r *PersonnelRepository) List(ctx context.Context, filter models.PersonnelFilter) ([]models.Personnel, int, error) {
	baseQuery := `FROM personnel WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *filter.Role)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Province != "" && !strings.EqualFold(filter.Province, models.RegionAll) {
		conditions = append(conditions, fmt.Sprintf("province = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Province))
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(nip LIKE $%d OR LOWER(email) LIKE $%d OR LOWER(full_name) LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(filter.Search))+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"nip":        true,
		"email":      true,
		"full_name":  true,
		"province":   true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page, pageSize := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", personnelColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var personnel []models.Personnel
	if err := r.db.SelectContext(ctx, &personnel, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list personnel: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count personnel: %w", err)
	}

	return personnel, total, nil
}

// Create inserts a new personnel record. Unique violations on nip or email surface as ErrDuplicate.
func (r *PersonnelRepository) Create(ctx context.Context, p *models.Personnel) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.Status == "" {
		p.Status = models.PersonnelStatusPending
	}

	const query = `INSERT INTO personnel (id, nip, email, password_hash, full_name, position, institution, province, phone, role, status, certificate_ref, email_notifications, created_at, updated_at) VALUES (:id, :nip, :email, :password_hash, :full_name, :position, :institution, :province, :phone, :role, :status, :certificate_ref, :email_notifications, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create personnel: %w", translate(err))
	}
	return nil
}

// Update writes the administrator-editable profile fields.
func (r *PersonnelRepository) Update(ctx context.Context, p *models.Personnel) error {
	p.UpdatedAt = time.Now().UTC()
	const query = `UPDATE personnel SET email = :email, full_name = :full_name, position = :position, institution = :institution, province = :province, phone = :phone, role = :role, email_notifications = :email_notifications, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("update personnel: %w", translate(err))
	}
	return requireAffected(res)
}

// Delete removes the personnel row permanently; certifications cascade.
func (r *PersonnelRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM personnel WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete personnel: %w", err)
	}
	return requireAffected(res)
}

// CreateRefreshToken persists a refresh token entry.
func (r *PersonnelRepository) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent) VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :revoked_at, :ip_address, :user_agent)`
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken returns a refresh token by token string.
func (r *PersonnelRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a token as revoked.
func (r *PersonnelRepository) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, revokedAt); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserRefreshTokens revokes all refresh tokens for an account.
func (r *PersonnelRepository) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
