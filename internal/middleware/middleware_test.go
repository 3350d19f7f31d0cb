package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

type stubValidator map[string]*models.JWTClaims

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newSecuredRouter(audit *recordingAudit) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator := stubValidator{
		"admin":    {UserID: "a1", Username: "admin1", Role: models.RoleAdmin},
		"staff":    {UserID: "u1", Username: "jdoe", Role: models.RoleUser},
		"nameless": {UserID: "u2", Role: models.RoleUser},
	}
	router := gin.New()
	secured := router.Group("/", JWT(validator))
	secured.GET("/items", func(c *gin.Context) { c.Status(http.StatusOK) })
	secured.DELETE("/items/:id", AdminOnly(), Audit(audit, models.AuditActionItemDelete, "items"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func perform(router *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	router := newSecuredRouter(&recordingAudit{})

	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/items", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/items", "bogus").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/items", "nameless").Code)
	assert.Equal(t, http.StatusOK, perform(router, http.MethodGet, "/items", "staff").Code)

	req := httptest.NewRequest(http.MethodGet, "/items", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOnlyAndAudit(t *testing.T) {
	audit := &recordingAudit{}
	router := newSecuredRouter(audit)

	w := perform(router, http.MethodDelete, "/items/42", "staff")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "admin access required")
	assert.Empty(t, audit.logs)

	w = perform(router, http.MethodDelete, "/items/42", "admin")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionItemDelete, audit.logs[0].Action)
	assert.Equal(t, "a1", *audit.logs[0].UserID)
	assert.Contains(t, audit.logs[0].NewValues, `"path":"/items/:id"`)
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, perform(router, http.MethodGet, "/", "").Code)
}
