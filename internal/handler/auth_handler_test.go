package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/middleware"
	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type authServiceMock struct {
	loginReq  models.LoginRequest
	loginErr  error
	logoutTok string
	changeErr error
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.TokenPair, error) {
	m.loginReq = req
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.TokenPair, error) {
	return &models.TokenPair{AccessToken: "access-2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, actor *models.JWTClaims) error {
	m.logoutTok = refreshToken
	return nil
}

func (m *authServiceMock) ChangePassword(ctx context.Context, actor *models.JWTClaims, req models.ChangePasswordRequest) error {
	return m.changeErr
}

func TestAuthHandlerLoginCapturesClientMetadata(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"identifier":"198001012005011001","password":"Rahasia123"}`))
	c.Request.Header.Set("User-Agent", "browser")
	c.Request.RemoteAddr = "192.0.2.10:4000"

	handler.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "198001012005011001", mock.loginReq.Identifier)
	assert.Equal(t, "192.0.2.10", mock.loginReq.IP)
	assert.Equal(t, "browser", mock.loginReq.UserAgent)
}

func TestAuthHandlerLoginInvalidCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{loginErr: appErrors.ErrInvalidCredentials})
	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"identifier":"x@kemendag.go.id","password":"salah"}`))

	handler.Login(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogoutRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &authServiceMock{}
	handler := NewAuthHandler(mock)

	c, w := newGinContext(http.MethodPost, "/auth/logout", []byte(`{}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleFieldOfficer})
	handler.Logout(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/logout", []byte(`{"refresh_token":"rt-1"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleFieldOfficer})
	handler.Logout(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "rt-1", mock.logoutTok)
}

func TestAuthHandlerPermissionsListsRoleActions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(&authServiceMock{})
	c, w := newGinContext(http.MethodGet, "/me/permissions", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "o-1", Role: models.RoleFieldOfficer})

	handler.Permissions(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, string(models.RoleFieldOfficer), envelope.Data["role"])
	actions, ok := envelope.Data["actions"].([]interface{})
	require.True(t, ok)
	assert.Contains(t, actions, "certification:submit")
	assert.NotContains(t, actions, "certification:review")
}
