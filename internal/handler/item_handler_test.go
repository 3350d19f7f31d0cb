package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/middleware"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

type itemServiceMock struct {
	actor      service.Actor
	filter     models.ItemFilter
	lookup     []string
	olderThan  time.Duration
	checkOut   dto.CheckOutRequest
	toggledOn  *bool
	checkOutFn func() (*models.Item, error)
}

func (m *itemServiceMock) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	m.filter = filter
	return []models.Item{{Barcode: "TB-1"}}, nil
}

func (m *itemServiceMock) Get(ctx context.Context, barcode string) (*dto.ItemDetail, error) {
	if barcode != "TB-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Item not found")
	}
	return &dto.ItemDetail{Item: &models.Item{Barcode: barcode}}, nil
}

func (m *itemServiceMock) Lookup(ctx context.Context, barcodes []string) ([]models.ItemSummary, error) {
	m.lookup = barcodes
	return []models.ItemSummary{}, nil
}

func (m *itemServiceMock) Logs(ctx context.Context, barcode string) ([]models.LogEntry, error) {
	return []models.LogEntry{}, nil
}

func (m *itemServiceMock) MyLogs(ctx context.Context, username string) ([]models.UserLogEntry, error) {
	m.actor.Username = username
	return []models.UserLogEntry{}, nil
}

func (m *itemServiceMock) Unreturned(ctx context.Context, olderThan time.Duration) ([]dto.UnreturnedItem, error) {
	m.olderThan = olderThan
	return []dto.UnreturnedItem{}, nil
}

func (m *itemServiceMock) Create(ctx context.Context, actor service.Actor, req dto.CreateItemRequest) (*models.Item, error) {
	m.actor = actor
	return &models.Item{Barcode: req.Barcode}, nil
}

func (m *itemServiceMock) Update(ctx context.Context, actor service.Actor, id string, req dto.UpdateItemRequest) (*models.Item, error) {
	return &models.Item{ID: id}, nil
}

func (m *itemServiceMock) Delete(ctx context.Context, actor service.Actor, id string) error {
	return nil
}

func (m *itemServiceMock) AddLog(ctx context.Context, actor service.Actor, barcode string, req dto.AddLogRequest) (*models.LogEntry, error) {
	return &models.LogEntry{Action: models.LogAction(req.Action), User: actor.Username}, nil
}

func (m *itemServiceMock) SetArchive(ctx context.Context, actor service.Actor, barcode string, on bool) (*models.Item, error) {
	m.toggledOn = &on
	return &models.Item{Barcode: barcode, Archive: on}, nil
}

func (m *itemServiceMock) SetMaintenance(ctx context.Context, actor service.Actor, barcode string, on bool) (*models.Item, error) {
	m.toggledOn = &on
	return &models.Item{Barcode: barcode, Maintenance: on}, nil
}

func (m *itemServiceMock) CheckOut(ctx context.Context, actor service.Actor, req dto.CheckOutRequest) (*models.Item, error) {
	m.actor = actor
	m.checkOut = req
	if m.checkOutFn != nil {
		return m.checkOutFn()
	}
	return &models.Item{Barcode: req.Barcode}, nil
}

func (m *itemServiceMock) CheckIn(ctx context.Context, actor service.Actor, req dto.CheckInRequest) (*dto.CheckInResult, error) {
	return &dto.CheckInResult{Item: &models.Item{Barcode: req.Barcode}, UnreconciledParts: []string{}}, nil
}

func (m *itemServiceMock) ReportIssue(ctx context.Context, actor service.Actor, req dto.ReportIssueRequest) (*models.Item, error) {
	return &models.Item{Barcode: req.Barcode}, nil
}

func (m *itemServiceMock) ResolveIssue(ctx context.Context, actor service.Actor, req dto.ResolveIssueRequest) (*models.Item, error) {
	return &models.Item{Barcode: req.Barcode}, nil
}

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "scanner/1.0")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Username: "jdoe", Role: models.RoleUser})
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *appErrors.Error {
	t.Helper()
	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	return envelope.Error
}

func TestItemHandlerCheckOutUsesTokenActor(t *testing.T) {
	svc := &itemServiceMock{}
	h := NewItemHandler(svc)
	body, _ := json.Marshal(map[string]interface{}{
		"barcode":             "TB-1",
		"room":                "MU 210",
		"techBagVerification": map[string]bool{"LP-1": true},
		"username":            "someone-else",
	})
	c, w := newTestContext(http.MethodPost, "/items/check-out", body)

	h.CheckOut(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jdoe", svc.actor.Username)
	assert.Equal(t, "u1", svc.actor.UserID)
	assert.Equal(t, "scanner/1.0", svc.actor.UserAgent)
	assert.Equal(t, "MU 210", svc.checkOut.Room)
	assert.True(t, svc.checkOut.TechBagVerification["LP-1"])
}

func TestItemHandlerCheckOutMapsServiceErrors(t *testing.T) {
	svc := &itemServiceMock{checkOutFn: func() (*models.Item, error) {
		return nil, appErrors.Clone(appErrors.ErrStaleWrite, appErrors.ErrStaleWrite.Message)
	}}
	h := NewItemHandler(svc)
	c, w := newTestContext(http.MethodPost, "/items/check-out", []byte(`{"barcode":"TB-1"}`))

	h.CheckOut(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, appErrors.ErrStaleWrite.Code, decodeError(t, w).Code)

	c, w = newTestContext(http.MethodPost, "/items/check-out", []byte(`{`))
	h.CheckOut(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandlerListAndLookup(t *testing.T) {
	svc := &itemServiceMock{}
	h := NewItemHandler(svc)

	c, w := newTestContext(http.MethodGet, "/items?building=Memorial+Union&status=Available", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Memorial Union", svc.filter.Building)
	assert.Equal(t, "Available", svc.filter.Status)

	c, w = newTestContext(http.MethodGet, "/items/lookup?barcodes=TB-1,CH-2", nil)
	h.Lookup(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"TB-1", "CH-2"}, svc.lookup)

	c, w = newTestContext(http.MethodGet, "/items/lookup", nil)
	h.Lookup(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandlerGetNotFound(t *testing.T) {
	h := NewItemHandler(&itemServiceMock{})
	c, w := newTestContext(http.MethodGet, "/items/NOPE", nil)
	c.Params = gin.Params{{Key: "barcode", Value: "NOPE"}}

	h.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Item not found", decodeError(t, w).Message)
}

func TestItemHandlerUnreturnedDuration(t *testing.T) {
	svc := &itemServiceMock{}
	h := NewItemHandler(svc)

	c, w := newTestContext(http.MethodGet, "/items/unreturned?older_than=24h", nil)
	h.Unreturned(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 24*time.Hour, svc.olderThan)

	c, w = newTestContext(http.MethodGet, "/items/unreturned?older_than=soon", nil)
	h.Unreturned(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandlerToggleRequiresFlag(t *testing.T) {
	svc := &itemServiceMock{}
	h := NewItemHandler(svc)

	c, w := newTestContext(http.MethodPost, "/items/TB-1/archive", []byte(`{}`))
	c.Params = gin.Params{{Key: "barcode", Value: "TB-1"}}
	h.Archive(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, svc.toggledOn)

	c, w = newTestContext(http.MethodPost, "/items/TB-1/maintenance", []byte(`{"enabled":false}`))
	c.Params = gin.Params{{Key: "barcode", Value: "TB-1"}}
	h.Maintenance(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.toggledOn)
	assert.False(t, *svc.toggledOn)
}

func TestItemHandlerMyLogsNeedsUser(t *testing.T) {
	svc := &itemServiceMock{}
	h := NewItemHandler(svc)

	c, w := newTestContext(http.MethodGet, "/items/my-logs", nil)
	h.MyLogs(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jdoe", svc.actor.Username)

	gin.SetMode(gin.TestMode)
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/items/my-logs", nil)
	h.MyLogs(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
