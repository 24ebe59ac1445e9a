package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermen-api/internal/authz"
	"github.com/noah-isme/supermen-api/internal/models"
	appErrors "github.com/noah-isme/supermen-api/pkg/errors"
	"github.com/noah-isme/supermen-api/pkg/middleware/requestid"
	"github.com/noah-isme/supermen-api/pkg/response"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	cp := *v.claims
	return &cp, nil
}

type recorderStub struct{ entries []*models.AuditLog }

func (r *recorderStub) Record(ctx context.Context, entry *models.AuditLog) {
	r.entries = append(r.entries, entry)
}

type observerStub struct{ paths []string }

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.paths = append(o.paths, path)
}

func officer() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u1", NIP: "199001012015031001", Role: models.RoleFieldOfficer, Region: "jawa-barat"}
}

func TestJWTAttachesRequestMetadata(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen *models.JWTClaims
	r := gin.New()
	r.GET("/me", JWT(validatorStub{claims: officer()}), func(c *gin.Context) {
		seen = CurrentUser(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set("User-Agent", "supermen-test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "supermen-test", seen.UserAgent)
	assert.NotEmpty(t, seen.ClientIP)
}

func TestJWTRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", JWT(validatorStub{claims: officer()}), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, header := range []string{"", "Token good", "Bearer ", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		role   models.UserRole
		action authz.Action
		want   int
	}{
		{models.RoleVerifier, authz.ActionCertificationReview, http.StatusOK},
		{models.RoleAdmin, authz.ActionCertificationReview, http.StatusForbidden},
		{models.RoleFieldOfficer, authz.ActionConfigurationManage, http.StatusForbidden},
		{models.RoleAdmin, authz.ActionConfigurationManage, http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, r := gin.CreateTestContext(rec)
		r.GET("/x", func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "x", Role: tc.role})
			c.Next()
		}, RequirePermission(tc.action), func(c *gin.Context) { c.Status(http.StatusOK) })
		c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)
		r.HandleContext(c)
		assert.Equal(t, tc.want, rec.Code, string(tc.role)+" "+string(tc.action))
	}

	rec := httptest.NewRecorder()
	r := gin.New()
	r.GET("/x", RequirePermission(authz.ActionDashboardView), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuditRecordsSuccessOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := &recorderStub{}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextUserKey, officer())
		c.Next()
	})
	r.POST("/documents", Audit(recorder, models.AuditActionDocumentUpload, "document"), func(c *gin.Context) {
		if c.Query("fail") != "" {
			c.Status(http.StatusUnprocessableEntity)
			return
		}
		c.Set(AuditResourceIDKey, "doc-1")
		c.Status(http.StatusCreated)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/documents", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/documents?fail=1", nil))

	require.Len(t, recorder.entries, 1)
	entry := recorder.entries[0]
	assert.Equal(t, models.AuditActionDocumentUpload, entry.Action)
	assert.Equal(t, "199001012015031001", entry.ActorNIP)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "doc-1", *entry.ResourceID)
	assert.Contains(t, string(entry.NewValues), `"status":201`)
}

func TestMetricsCollapsesUnmatchedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/certifications/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/certifications/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/123", nil))

	assert.Equal(t, []string{"/certifications/:id", "unmatched"}, observer.paths)
}

func TestResponseMetaRecordsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	r.GET("/dashboard", func(c *gin.Context) {
		SetCacheHit(c, true)
		response.JSON(c, http.StatusOK, gin.H{"pending": 2}, nil)
	})
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body.Meta[cacheHitKey])
	assert.Equal(t, "req-42", body.Meta["request_id"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}
