package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/models"
)

func newConfigurationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "postgres")
	return db, mock, func() { _ = db.Close() }
}

func TestConfigurationRepositoryListByKeys(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow("allowed_email_domains", ".go.id", "STRING", "desc", "admin", time.Now())
	mock.ExpectQuery("FROM configurations WHERE key = ANY").
		WithArgs(pq.Array([]string{"allowed_email_domains", "max_login_attempts"})).
		WillReturnRows(rows)

	result, err := repo.ListByKeys(context.Background(), []string{"allowed_email_domains", "max_login_attempts"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, ".go.id", result[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryListByKeysEmpty(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()

	result, err := NewConfigurationRepository(db).ListByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryGetMissing(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("WHERE key = \\$1").WithArgs("unknown").WillReturnError(sql.ErrNoRows)

	_, err := NewConfigurationRepository(db).Get(context.Background(), "unknown")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestConfigurationRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("max_login_attempts", "5", "INTEGER", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	cfg := &models.Configuration{
		Key:       "max_login_attempts",
		Value:     "5",
		Type:      models.ConfigurationTypeInteger,
		UpdatedBy: strPtr("admin"),
	}
	require.NoError(t, repo.Upsert(context.Background(), cfg))
	assert.False(t, cfg.UpdatedAt.IsZero())
}

func TestConfigurationRepositoryBulkUpsertRollsBack(t *testing.T) {
	db, mock, cleanup := newConfigurationRepoMock(t)
	defer cleanup()
	repo := NewConfigurationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("allowed_email_domains", ".go.id,.kemendag.go.id", "STRING", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO configurations").
		WithArgs("expiry_reminder_enabled", "true", "BOOLEAN", sqlmock.AnyArg(), "admin", sqlmock.AnyArg()).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	items := []models.Configuration{
		{Key: "allowed_email_domains", Value: ".go.id,.kemendag.go.id", Type: models.ConfigurationTypeString, UpdatedBy: strPtr("admin")},
		{Key: "expiry_reminder_enabled", Value: "true", Type: models.ConfigurationTypeBoolean, UpdatedBy: strPtr("admin")},
	}
	require.Error(t, repo.BulkUpsert(context.Background(), items))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(value string) *string {
	return &value
}
