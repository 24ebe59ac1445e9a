package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/supermen-api/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Env:       "test",
		Port:      0,
		APIPrefix: "/api/v1",
		JWT: config.JWTConfig{
			Secret:            "test-secret",
			Expiration:        15 * time.Minute,
			RefreshExpiration: time.Hour,
		},
		Auth:          config.AuthConfig{MaxLoginAttempts: 5, LockoutWindow: time.Minute},
		CORS:          config.CORSConfig{AllowedOrigins: []string{"*"}},
		Uploads:       config.UploadsConfig{StorageDir: t.TempDir(), SignedURLSecret: "signing", SignedURLTTL: time.Minute, MaxFileSizeBytes: 5 << 20},
		Registration:  config.RegistrationConfig{DraftTTL: time.Hour, DefaultEmailDomains: []string{".go.id"}},
		Review:        config.ReviewConfig{SelectionTTL: time.Hour, BulkMax: 50},
		Notifications: config.NotificationsConfig{Workers: 1, BufferSize: 8, MaxRetries: 1, RetryDelay: time.Millisecond},
		Dashboard:     config.DashboardConfig{CacheTTL: time.Minute, ExpiringWithin: 30},
	}
}

func TestBuildAppWiresRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := buildApp(ctx, testConfig(t), sqlx.NewDb(db, "sqlmock"), nil, zap.NewNop())
	require.NoError(t, err)
	defer app.close()

	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/v1/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/certifications", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/verifications/bulk-approve", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		app.router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.want, rec.Code, tc.method+" "+tc.path)
	}
}

func TestConfigurationDefaults(t *testing.T) {
	cfg := testConfig(t)
	defaults := configurationDefaults(cfg)
	assert.Equal(t, ".go.id", defaults["allowed_email_domains"])
	assert.Equal(t, "5", defaults["max_login_attempts"])
	assert.Equal(t, "15", defaults["session_expire_minutes"])
}
