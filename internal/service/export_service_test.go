package service

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
	"github.com/noah-isme/facility-inventory-api/pkg/storage"
)

type tablingStub struct {
	rows []models.MergedReservation
}

func (s tablingStub) MergedLogs(ctx context.Context) ([]models.MergedReservation, error) {
	return s.rows, nil
}

type checksStub struct {
	limit int
	rows  []models.InventoryCheck
}

func (s *checksStub) List(ctx context.Context, limit int) ([]models.InventoryCheck, error) {
	s.limit = limit
	return s.rows, nil
}

type historyStub struct {
	logs map[string][]models.LogEntry
}

func (s historyStub) Logs(ctx context.Context, barcode string) ([]models.LogEntry, error) {
	logs, ok := s.logs[barcode]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Item not found")
	}
	return logs, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *checksStub) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	in := time.Date(2024, 4, 2, 10, 0, 0, 0, time.UTC)
	out := in.Add(3 * time.Hour)
	checks := &checksStub{rows: []models.InventoryCheck{{
		User:         "jdoe",
		Building:     models.BuildingMemorialUnion,
		CheckedAt:    in,
		PresentItems: models.Barcodes{"TB-1", "MT-1"},
		MissingItems: models.Barcodes{"CH-9"},
		Notes:        "N/A",
	}}}
	sources := ExportSources{
		Tabling: tablingStub{rows: []models.MergedReservation{{
			Organization: "Chess Club",
			EventNumber:  "E100",
			TablingSpot:  "Spot 4",
			User:         "jdoe",
			CheckInTime:  &in,
			CheckOutTime: &out,
			Table:        &models.ItemRef{Barcode: "MT-1"},
			Chairs:       []models.ItemRef{{Barcode: "CH-1"}, {Barcode: "CH-2"}},
		}}},
		InventoryChecks: checks,
		ItemHistory: historyStub{logs: map[string][]models.LogEntry{
			"TB-1": {{Action: models.ActionCheckOut, User: "jdoe", Timestamp: in, Room: "MU 210"}},
		}},
	}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewExportService(sources, store, signer, NewMetricsService(), ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return out }
	return svc, checks
}

func readExport(t *testing.T, svc *ExportService, url string) ([][]string, string) {
	t.Helper()
	token := strings.TrimPrefix(url, "/api/v1/exports/")
	relPath, contentType, err := svc.Resolve(token)
	require.NoError(t, err)
	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	raw, err := io.ReadAll(file)
	require.NoError(t, err)
	records, err := csv.NewReader(strings.NewReader(string(raw))).ReadAll()
	require.NoError(t, err)
	return records, contentType
}

func TestExportServiceTablingCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	resp, err := svc.Generate(context.Background(), dto.CreateExportRequest{Dataset: dto.ExportDatasetTablingLogs, Format: dto.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Rows)
	assert.Equal(t, "tabling_logs_20240402_130000.csv", resp.FileName)
	assert.True(t, strings.HasPrefix(resp.DownloadURL, "/api/v1/exports/"))

	records, contentType := readExport(t, svc, resp.DownloadURL)
	assert.Equal(t, "text/csv", contentType)
	require.Len(t, records, 2)
	assert.Equal(t, "Organization", records[0][0])
	assert.Equal(t, []string{"Chess Club", "E100", "Spot 4", "jdoe", "2024-04-02 10:00", "2024-04-02 13:00", "MT-1", "CH-1 CH-2", "No", ""}, records[1])
}

func TestExportServiceInventoryChecksUncapped(t *testing.T) {
	svc, checks := newExportServiceForTest(t)

	resp, err := svc.Generate(context.Background(), dto.CreateExportRequest{Dataset: dto.ExportDatasetInventoryChecks, Format: dto.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, 0, checks.limit)

	records, _ := readExport(t, svc, resp.DownloadURL)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"2024-04-02 10:00", "jdoe", "Memorial Union", "2", "CH-9", "N/A"}, records[1])
}

func TestExportServiceItemHistory(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	ctx := context.Background()

	_, err := svc.Generate(ctx, dto.CreateExportRequest{Dataset: dto.ExportDatasetItemHistory, Format: dto.ExportFormatCSV})
	assertAppError(t, err, appErrors.ErrValidation, "")

	_, err = svc.Generate(ctx, dto.CreateExportRequest{Dataset: dto.ExportDatasetItemHistory, Format: dto.ExportFormatCSV, Barcode: "NOPE"})
	assertAppError(t, err, appErrors.ErrNotFound, "Item not found")

	resp, err := svc.Generate(ctx, dto.CreateExportRequest{Dataset: dto.ExportDatasetItemHistory, Format: dto.ExportFormatPDF, Barcode: "TB-1"})
	require.NoError(t, err)
	assert.Equal(t, "item_history-tb-1_20240402_130000.pdf", resp.FileName)

	token := strings.TrimPrefix(resp.DownloadURL, "/api/v1/exports/")
	relPath, contentType, err := svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	header := make([]byte, 4)
	_, err = io.ReadFull(file, header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportServiceRejectsBadInput(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	_, err := svc.Generate(context.Background(), dto.CreateExportRequest{Dataset: "grades", Format: dto.ExportFormatCSV})
	assertAppError(t, err, appErrors.ErrValidation, "")

	_, _, err = svc.Resolve("garbage")
	assertAppError(t, err, appErrors.ErrNotFound, "export link is invalid or expired")

	_, err = svc.Open("missing.csv")
	assertAppError(t, err, appErrors.ErrNotFound, "export file no longer exists")
}

func TestExportServiceCleanup(t *testing.T) {
	svc, _ := newExportServiceForTest(t)

	resp, err := svc.Generate(context.Background(), dto.CreateExportRequest{Dataset: dto.ExportDatasetTablingLogs, Format: dto.ExportFormatCSV})
	require.NoError(t, err)

	removed, err := svc.Cleanup(time.Hour)
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = svc.Cleanup(-1)
	require.NoError(t, err)
	assert.Empty(t, removed)

	time.Sleep(20 * time.Millisecond)
	removed, err = svc.Cleanup(time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{resp.FileName}, removed)
}
