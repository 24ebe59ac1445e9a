package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/supermen-api/internal/models"
)

const configurationColumns = `key, value, type, description, updated_by, updated_at`

// Description is only overwritten when a new one is supplied.
const configurationUpsert = `INSERT INTO configurations (` + configurationColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (key) DO UPDATE
   SET value = EXCLUDED.value,
       type = EXCLUDED.type,
       description = COALESCE(EXCLUDED.description, configurations.description),
       updated_by = EXCLUDED.updated_by,
       updated_at = EXCLUDED.updated_at`

// ConfigurationRepository stores the admin-tunable settings table.
type ConfigurationRepository struct {
	db *sqlx.DB
}

func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// ListByKeys loads the stored rows among keys. Keys without a row are simply absent.
func (r *ConfigurationRepository) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var rows []models.Configuration
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+configurationColumns+` FROM configurations WHERE key = ANY($1) ORDER BY key`,
		pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return rows, nil
}

// Get returns sql.ErrNoRows for an unknown key.
func (r *ConfigurationRepository) Get(ctx context.Context, key string) (*models.Configuration, error) {
	var row models.Configuration
	if err := r.db.GetContext(ctx, &row, `SELECT `+configurationColumns+` FROM configurations WHERE key = $1`, key); err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *ConfigurationRepository) Upsert(ctx context.Context, cfg *models.Configuration) error {
	cfg.UpdatedAt = time.Now().UTC()
	if err := upsertConfiguration(ctx, r.db, cfg); err != nil {
		return fmt.Errorf("upsert configuration %s: %w", cfg.Key, err)
	}
	return nil
}

// BulkUpsert writes every entry in one transaction.
func (r *ConfigurationRepository) BulkUpsert(ctx context.Context, cfgs []models.Configuration) (err error) {
	if len(cfgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin configuration tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stamp := time.Now().UTC()
	for i := range cfgs {
		cfgs[i].UpdatedAt = stamp
		if err = upsertConfiguration(ctx, tx, &cfgs[i]); err != nil {
			return fmt.Errorf("upsert configuration %s: %w", cfgs[i].Key, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit configuration tx: %w", err)
	}
	return nil
}

func upsertConfiguration(ctx context.Context, exec sqlx.ExecerContext, cfg *models.Configuration) error {
	_, err := exec.ExecContext(ctx, configurationUpsert,
		cfg.Key, cfg.Value, cfg.Type, cfg.Description, cfg.UpdatedBy, cfg.UpdatedAt)
	return err
}
