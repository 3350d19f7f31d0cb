package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

// PublicInventoryCheckLimit caps the unauthenticated verification log.
const PublicInventoryCheckLimit = 50

type inventoryCheckStore interface {
	Create(ctx context.Context, check *models.InventoryCheck) error
	List(ctx context.Context, limit int) ([]models.InventoryCheck, error)
}

type itemNameLookup interface {
	Lookup(ctx context.Context, barcodes []string) ([]models.ItemSummary, error)
}

type inventoryCheckNotifier interface {
	InventoryCheckSummary(ctx context.Context, check models.InventoryCheck, names map[string]string)
}

// InventoryCheckService records shift verification snapshots.
type InventoryCheckService struct {
	checks    inventoryCheckStore
	items     itemNameLookup
	notifier  inventoryCheckNotifier
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewInventoryCheckService constructs the service.
func NewInventoryCheckService(checks inventoryCheckStore, items itemNameLookup, notifier inventoryCheckNotifier, validate *validator.Validate, logger *zap.Logger) *InventoryCheckService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryCheckService{checks: checks, items: items, notifier: notifier, validator: validate, logger: logger, now: time.Now}
}

// Create stores a verification and mails the summary to admins.
func (s *InventoryCheckService) Create(ctx context.Context, actor Actor, req dto.CreateInventoryCheckRequest) (*models.InventoryCheck, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Missing or invalid input fields")
	}
	if strings.TrimSpace(actor.Username) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Unauthorized")
	}
	if !req.Building.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "building must be Memorial Union or Student Pavilion")
	}

	check := &models.InventoryCheck{
		User:         actor.Username,
		Building:     req.Building,
		CheckedAt:    *timeOrNow(req.CheckedAt, s.now().UTC()),
		Confirmed:    req.Confirmed,
		PresentItems: models.Barcodes(normalizeBarcodes(req.PresentItems)),
		MissingItems: models.Barcodes(normalizeBarcodes(req.MissingItems)),
		Notes:        defaultString(strings.TrimSpace(req.Notes), defaultCheckOutNotes),
	}
	if err := s.checks.Create(ctx, check); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save inventory check")
	}

	if s.notifier != nil {
		s.notifier.InventoryCheckSummary(ctx, *check, s.names(ctx, check))
	}
	return check, nil
}

// List returns verifications newest first. A positive limit caps the result.
func (s *InventoryCheckService) List(ctx context.Context, limit int) ([]models.InventoryCheck, error) {
	checks, err := s.checks.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch inventory checks")
	}
	if checks == nil {
		checks = []models.InventoryCheck{}
	}
	return checks, nil
}

func (s *InventoryCheckService) names(ctx context.Context, check *models.InventoryCheck) map[string]string {
	names := make(map[string]string)
	if s.items == nil {
		return names
	}
	barcodes := append(append([]string{}, check.PresentItems...), check.MissingItems...)
	summaries, err := s.items.Lookup(ctx, normalizeBarcodes(barcodes))
	if err != nil {
		s.logger.Warn("inventory check name lookup failed", zap.Error(err))
		return names
	}
	for _, summary := range summaries {
		names[summary.Barcode] = summary.Name
	}
	return names
}
