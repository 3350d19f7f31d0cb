package handler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

type exportServiceMock struct {
	dir     string
	request dto.CreateExportRequest
}

func (m *exportServiceMock) Generate(ctx context.Context, req dto.CreateExportRequest) (*dto.ExportResponse, error) {
	m.request = req
	if req.Dataset == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "dataset is required")
	}
	return &dto.ExportResponse{ID: "exp-1", FileName: "tabling_logs.csv", DownloadURL: "/api/v1/exports/tok", Rows: 2}, nil
}

func (m *exportServiceMock) Resolve(token string) (string, string, error) {
	if token != "good" {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "export link is invalid or expired")
	}
	return "tabling_logs.csv", "text/csv", nil
}

func (m *exportServiceMock) Open(relPath string) (*os.File, error) {
	return os.Open(filepath.Join(m.dir, relPath))
}

func TestExportHandlerCreate(t *testing.T) {
	svc := &exportServiceMock{}
	h := NewExportHandler(svc)

	c, w := newTestContext(http.MethodPost, "/exports", []byte(`{"dataset":"tabling_logs","format":"csv"}`))
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, dto.ExportFormatCSV, svc.request.Format)
	assert.Contains(t, w.Body.String(), "/api/v1/exports/tok")

	c, w = newTestContext(http.MethodPost, "/exports", []byte(`{}`))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tabling_logs.csv"), []byte("Organization,Event\nChess Club,EV-9\n"), 0o644))
	h := NewExportHandler(&exportServiceMock{dir: dir})

	c, w := newTestContext(http.MethodGet, "/exports/good", nil)
	c.Params = gin.Params{{Key: "token", Value: "good"}}
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="tabling_logs.csv"`)
	assert.Contains(t, w.Body.String(), "Chess Club,EV-9")

	c, w = newTestContext(http.MethodGet, "/exports/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}
	h.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "export link is invalid or expired", decodeError(t, w).Message)
}
