package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/models"
)

type auditServiceMock struct {
	entries []models.AuditLog
	called  bool
	filter  models.AuditFilter
}

func (m *auditServiceMock) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, *models.Pagination, error) {
	m.called = true
	m.filter = filter
	return m.entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(m.entries)}, nil
}

func TestAuditHandlerListInclusiveRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &auditServiceMock{entries: []models.AuditLog{{ID: "a-1", Action: "VERIFY"}}}
	handler := NewAuditHandler(mock)
	c, w := newGinContext(http.MethodGet, "/audit-logs?actorNip=198001012005011001&action=verify&from=2024-03-01&to=2024-03-31", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "198001012005011001", mock.filter.ActorNIP)
	assert.Equal(t, "VERIFY", mock.filter.Action)
	require.NotNil(t, mock.filter.From)
	require.NotNil(t, mock.filter.To)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *mock.filter.From)
	assert.True(t, mock.filter.To.After(time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)))
	assert.True(t, mock.filter.To.Before(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAuditHandlerListInvalidDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &auditServiceMock{}
	handler := NewAuditHandler(mock)
	c, w := newGinContext(http.MethodGet, "/audit-logs?from=March", nil)

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mock.called)
	assert.Contains(t, w.Body.String(), "YYYY-MM-DD")
}
