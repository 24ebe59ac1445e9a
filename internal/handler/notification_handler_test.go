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
	"github.com/noah-isme/supermen-api/internal/service"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
)

type notificationServiceMock struct {
	filter    models.NotificationFilter
	markedID  string
	markErr   error
	markedAll int64
}

func (m *notificationServiceMock) List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, *models.Pagination, error) {
	m.filter = filter
	return []models.Notification{}, &models.Pagination{Page: 1, PageSize: filter.Limit}, nil
}

func (m *notificationServiceMock) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	return 5, nil
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, recipientID, id string) error {
	m.markedID = id
	return m.markErr
}

func (m *notificationServiceMock) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return m.markedAll, nil
}

func TestNotificationHandlerListScopesToCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &notificationServiceMock{}
	handler := NewNotificationHandler(mock)
	c, w := newGinContext(http.MethodGet, "/notifications?page=3&page_size=10&unread=true&kind=reminder", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-42", Role: models.RoleFieldOfficer})

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-42", mock.filter.RecipientID)
	assert.True(t, mock.filter.UnreadOnly)
	assert.Equal(t, models.NotificationReminder, mock.filter.Kind)
	assert.Equal(t, 10, mock.filter.Limit)
	assert.Equal(t, 20, mock.filter.Offset)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &notificationServiceMock{markErr: appErrors.ErrNotFound}
	handler := NewNotificationHandler(mock)
	c, w := newGinContext(http.MethodPost, "/notifications/n-1/read", nil)
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-42", Role: models.RoleFieldOfficer})

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "n-1", mock.markedID)
}

func TestNotificationHandlerMarkAllRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewNotificationHandler(&notificationServiceMock{markedAll: 3})
	c, w := newGinContext(http.MethodPost, "/notifications/read-all", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-42", Role: models.RoleFieldOfficer})

	handler.MarkAllRead(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.EqualValues(t, 3, envelope.Data["updated"])
}

type alertServiceMock struct {
	broadcast service.BroadcastRequest
	created   service.AlertRuleRequest
	err       error
}

func (m *alertServiceMock) ListRules(ctx context.Context, actor *models.JWTClaims) ([]models.AlertRule, error) {
	return []models.AlertRule{{ID: "r-1", Name: "Jatuh tempo 30 hari"}}, m.err
}

func (m *alertServiceMock) CreateRule(ctx context.Context, actor *models.JWTClaims, req service.AlertRuleRequest) (*models.AlertRule, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return &models.AlertRule{ID: "r-2", Name: req.Name, DaysBeforeExpiry: req.DaysBeforeExpiry}, nil
}

func (m *alertServiceMock) UpdateRule(ctx context.Context, actor *models.JWTClaims, id string, req service.AlertRuleRequest) (*models.AlertRule, error) {
	return &models.AlertRule{ID: id, Name: req.Name}, m.err
}

func (m *alertServiceMock) DeleteRule(ctx context.Context, actor *models.JWTClaims, id string) error {
	return m.err
}

func (m *alertServiceMock) RunNow(ctx context.Context, actor *models.JWTClaims) (*service.AlertRunResult, error) {
	return &service.AlertRunResult{RulesRun: 2, Notified: 7}, m.err
}

func (m *alertServiceMock) Broadcast(ctx context.Context, actor *models.JWTClaims, req service.BroadcastRequest) (int, error) {
	m.broadcast = req
	return 12, m.err
}

func TestAlertHandlerCreateRule(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &alertServiceMock{}
	handler := NewAlertHandler(mock)
	c, w := newGinContext(http.MethodPost, "/alerts/rules", []byte(`{"name":"Sepekan","daysBeforeExpiry":7,"region":"all","frequency":"DAILY"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "v-1", Role: models.RoleVerifier})

	handler.CreateRule(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 7, mock.created.DaysBeforeExpiry)
	assert.Equal(t, models.AlertFrequency("DAILY"), mock.created.Frequency)
}

func TestAlertHandlerBroadcastReportsRecipients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &alertServiceMock{}
	handler := NewAlertHandler(mock)
	c, w := newGinContext(http.MethodPost, "/alerts/broadcast", []byte(`{"province":"Bali","title":"Pemeliharaan","message":"Sistem offline pukul 22.00"}`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "a-1", Role: models.RoleAdmin})

	handler.Broadcast(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "Bali", mock.broadcast.Province)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.EqualValues(t, 12, envelope.Data["recipients"])
}

func TestAlertHandlerRunForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAlertHandler(&alertServiceMock{err: appErrors.ErrForbidden})
	c, w := newGinContext(http.MethodPost, "/alerts/run", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "o-1", Role: models.RoleFieldOfficer})

	handler.Run(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
