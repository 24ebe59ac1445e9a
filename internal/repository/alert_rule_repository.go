package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/supermen-api/internal/models"
)

const alertRuleColumns = `id, name, days_before_expiry, region, frequency, active, created_by, last_run_at, created_at, updated_at`

// AlertRuleRepository persists expiry reminder rules.
type AlertRuleRepository struct {
	db *sqlx.DB
}

// NewAlertRuleRepository constructs the repository.
func NewAlertRuleRepository(db *sqlx.DB) *AlertRuleRepository {
	return &AlertRuleRepository{db: db}
}

// List returns every rule ordered by name.
func (r *AlertRuleRepository) List(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := r.db.SelectContext(ctx, &rules, `SELECT `+alertRuleColumns+` FROM alert_rules ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list alert rules: %w", err)
	}
	return rules, nil
}

// ListActive returns rules eligible for the periodic scan.
func (r *AlertRuleRepository) ListActive(ctx context.Context) ([]models.AlertRule, error) {
	var rules []models.AlertRule
	if err := r.db.SelectContext(ctx, &rules, `SELECT `+alertRuleColumns+` FROM alert_rules WHERE active = TRUE ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list active alert rules: %w", err)
	}
	return rules, nil
}

// GetByID returns one rule or sql.ErrNoRows.
func (r *AlertRuleRepository) GetByID(ctx context.Context, id string) (*models.AlertRule, error) {
	var rule models.AlertRule
	if err := r.db.GetContext(ctx, &rule, `SELECT `+alertRuleColumns+` FROM alert_rules WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// Create inserts a rule.
func (r *AlertRuleRepository) Create(ctx context.Context, rule *models.AlertRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	const query = `INSERT INTO alert_rules (` + alertRuleColumns + `)
	VALUES (:id, :name, :days_before_expiry, :region, :frequency, :active, :created_by, :last_run_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create alert rule: %w", err)
	}
	return nil
}

// Update overwrites the editable fields of a rule.
func (r *AlertRuleRepository) Update(ctx context.Context, rule *models.AlertRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE alert_rules SET name = :name, days_before_expiry = :days_before_expiry, region = :region,
	frequency = :frequency, active = :active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("update alert rule: %w", err)
	}
	return requireAffected(res)
}

// MarkRun records when a rule last produced reminders.
func (r *AlertRuleRepository) MarkRun(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alert_rules SET last_run_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark alert rule run: %w", err)
	}
	return requireAffected(res)
}

// Delete removes a rule.
func (r *AlertRuleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete alert rule: %w", err)
	}
	return requireAffected(res)
}
