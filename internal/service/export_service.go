package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
	"github.com/noah-isme/facility-inventory-api/pkg/export"
	"github.com/noah-isme/facility-inventory-api/pkg/storage"
)

const exportTimeLayout = "2006-01-02 15:04"

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type tablingLogSource interface {
	MergedLogs(ctx context.Context) ([]models.MergedReservation, error)
}

type inventoryCheckSource interface {
	List(ctx context.Context, limit int) ([]models.InventoryCheck, error)
}

type itemHistorySource interface {
	Logs(ctx context.Context, barcode string) ([]models.LogEntry, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportSources groups the read models an export can draw from.
type ExportSources struct {
	Tabling         tablingLogSource
	InventoryChecks inventoryCheckSource
	ItemHistory     itemHistorySource
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	sources   ExportSources
	storage   fileStorage
	renderers map[string]renderer
	signer    *storage.SignedURLSigner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(sources ExportSources, files fileStorage, signer *storage.SignedURLSigner, metrics *MetricsService, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		sources: sources,
		storage: files,
		renderers: map[string]renderer{
			dto.ExportFormatCSV: export.NewCSVExporter(),
			dto.ExportFormatPDF: export.NewPDFExporter(),
		},
		signer:    signer,
		metrics:   metrics,
		validator: validator.New(),
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Generate renders the requested dataset, stores it and returns a signed download link.
func (s *ExportService) Generate(ctx context.Context, req dto.CreateExportRequest) (*dto.ExportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	render, ok := s.renderers[req.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}

	dataset, err := s.buildDataset(ctx, req)
	if err != nil {
		return nil, err
	}
	dataset.GeneratedAt = s.now().UTC()

	payload, err := render.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(s.buildFilename(req, render.Extension()), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.metrics.RecordExport(req.Dataset, req.Format)
	s.logger.Info("export generated", zap.String("dataset", req.Dataset), zap.String("format", req.Format), zap.Int("rows", len(dataset.Rows)))

	return &dto.ExportResponse{
		ID:          id,
		FileName:    filepath.Base(relPath),
		DownloadURL: fmt.Sprintf("%s/exports/%s", prefix, token),
		ExpiresAt:   expiresAt,
		Rows:        len(dataset.Rows),
	}, nil
}

// Resolve validates a download token and returns the stored path and its content type.
func (s *ExportService) Resolve(token string) (string, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", "", appErrors.Clone(appErrors.ErrNotFound, "export link is invalid or expired")
	}
	contentType := "application/octet-stream"
	for _, r := range s.renderers {
		if strings.EqualFold(filepath.Ext(relPath), "."+r.Extension()) {
			contentType = r.ContentType()
		}
	}
	return relPath, contentType, nil
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export file no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return file, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(req dto.CreateExportRequest, ext string) string {
	name := req.Dataset
	if req.Barcode != "" {
		name += "-" + req.Barcode
	}
	return fmt.Sprintf("%s_%s.%s", slug.Make(name), s.now().UTC().Format("20060102_150405"), ext)
}

func (s *ExportService) buildDataset(ctx context.Context, req dto.CreateExportRequest) (export.Dataset, error) {
	switch req.Dataset {
	case dto.ExportDatasetTablingLogs:
		return s.buildTablingDataset(ctx)
	case dto.ExportDatasetInventoryChecks:
		return s.buildInventoryCheckDataset(ctx)
	case dto.ExportDatasetItemHistory:
		return s.buildItemHistoryDataset(ctx, strings.TrimSpace(req.Barcode))
	default:
		return export.Dataset{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported dataset %s", req.Dataset))
	}
}

func (s *ExportService) buildTablingDataset(ctx context.Context) (export.Dataset, error) {
	if s.sources.Tabling == nil {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrInternal, "tabling source unavailable")
	}
	rows, err := s.sources.Tabling.MergedLogs(ctx)
	if err != nil {
		return export.Dataset{}, err
	}
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		table := ""
		if row.Table != nil {
			table = row.Table.Barcode
		}
		chairs := make([]string, 0, len(row.Chairs))
		for _, chair := range row.Chairs {
			chairs = append(chairs, chair.Barcode)
		}
		noShow := "No"
		if row.NoShow {
			noShow = "Yes"
		}
		data = append(data, map[string]string{
			"Organization": row.Organization,
			"Event":        row.EventNumber,
			"Spot":         row.TablingSpot,
			"User":         row.User,
			"Check In":     formatExportTime(row.CheckInTime),
			"Check Out":    formatExportTime(row.CheckOutTime),
			"Table":        table,
			"Chairs":       strings.Join(chairs, " "),
			"No Show":      noShow,
			"Notes":        row.Notes,
		})
	}
	return export.Dataset{
		Title:   "Tabling Logs",
		Headers: []string{"Organization", "Event", "Spot", "User", "Check In", "Check Out", "Table", "Chairs", "No Show", "Notes"},
		Rows:    data,
	}, nil
}

func (s *ExportService) buildInventoryCheckDataset(ctx context.Context) (export.Dataset, error) {
	if s.sources.InventoryChecks == nil {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrInternal, "inventory check source unavailable")
	}
	checks, err := s.sources.InventoryChecks.List(ctx, 0)
	if err != nil {
		return export.Dataset{}, err
	}
	data := make([]map[string]string, 0, len(checks))
	for _, check := range checks {
		checkedAt := check.CheckedAt
		data = append(data, map[string]string{
			"Checked At": formatExportTime(&checkedAt),
			"User":       check.User,
			"Building":   string(check.Building),
			"Present":    fmt.Sprintf("%d", len(check.PresentItems)),
			"Missing":    strings.Join(check.MissingItems, " "),
			"Notes":      check.Notes,
		})
	}
	return export.Dataset{
		Title:   "Inventory Checks",
		Headers: []string{"Checked At", "User", "Building", "Present", "Missing", "Notes"},
		Rows:    data,
	}, nil
}

func (s *ExportService) buildItemHistoryDataset(ctx context.Context, barcode string) (export.Dataset, error) {
	if s.sources.ItemHistory == nil {
		return export.Dataset{}, appErrors.Clone(appErrors.ErrInternal, "item history source unavailable")
	}
	logs, err := s.sources.ItemHistory.Logs(ctx, barcode)
	if err != nil {
		return export.Dataset{}, err
	}
	data := make([]map[string]string, 0, len(logs))
	for _, entry := range logs {
		at := entry.Timestamp
		data = append(data, map[string]string{
			"Timestamp": formatExportTime(&at),
			"Action":    string(entry.Action),
			"User":      entry.User,
			"Room":      entry.Room,
			"Client":    entry.ClientName,
			"Event":     entry.EventNumber,
			"Notes":     entry.Notes,
		})
	}
	return export.Dataset{
		Title:   fmt.Sprintf("Item History %s", barcode),
		Headers: []string{"Timestamp", "Action", "User", "Room", "Client", "Event", "Notes"},
		Rows:    data,
	}, nil
}

func formatExportTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(exportTimeLayout)
}
