package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

type itemStore interface {
	List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	FindByBarcode(ctx context.Context, exec sqlx.ExtContext, barcode string) (*models.Item, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Item, error)
	FindByBarcodes(ctx context.Context, exec sqlx.ExtContext, barcodes []string) ([]models.Item, error)
	FindTableHoldingChair(ctx context.Context, exec sqlx.ExtContext, barcode string) (*models.Item, error)
	Lookup(ctx context.Context, barcodes []string) ([]models.ItemSummary, error)
	ListUnreturned(ctx context.Context) ([]models.Item, error)
	ListWithLogs(ctx context.Context) ([]models.Item, error)
	ExistsBarcode(ctx context.Context, barcode, excludeID string) (bool, error)
	Create(ctx context.Context, item *models.Item) error
	Update(ctx context.Context, exec sqlx.ExtContext, item *models.Item) error
	Delete(ctx context.Context, id string) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type itemNotifier interface {
	FlaggedItemCheckIn(ctx context.Context, item models.Item, actor string)
	TechBagMissingParts(ctx context.Context, bag models.Item, parts []string, actor string)
	EMSEscalation(ctx context.Context, item models.Item, actor, message string)
	UnreturnedDigest(ctx context.Context, items []dto.UnreturnedItem, overdueAfter time.Duration)
}

// Actor identifies the authenticated caller performing an operation.
type Actor struct {
	UserID    string
	Username  string
	IP        string
	UserAgent string
}

// ItemService runs the item lifecycle: check-out, check-in, issue reports and admin edits.
type ItemService struct {
	items     itemStore
	tx        txProvider
	cache     *CacheService
	notifier  itemNotifier
	metrics   *MetricsService
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewItemService constructs the item service.
func NewItemService(items itemStore, tx txProvider, cache *CacheService, notifier itemNotifier, metrics *MetricsService, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *ItemService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemService{
		items:     items,
		tx:        tx,
		cache:     cache,
		notifier:  notifier,
		metrics:   metrics,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns items matching filter. Results are cached until the next item write.
func (s *ItemService) List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	if filter.Status != "" && filter.Status != models.StatusFilterAvailable && filter.Status != models.StatusFilterCheckedOut {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Available or CheckedOut")
	}
	key := fmt.Sprintf("%slist:%s|%s|%s|%s", cacheItemsPrefix, filter.Building, filter.Category, filter.Barcode, filter.Status)
	return cachedRead(ctx, s.cache, key, func() ([]models.Item, error) {
		items, err := s.items.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list items")
		}
		if items == nil {
			items = []models.Item{}
		}
		return items, nil
	})
}

// Get returns one item with its tech bag parts and attached chairs resolved.
func (s *ItemService) Get(ctx context.Context, barcode string) (*dto.ItemDetail, error) {
	item, err := s.loadItem(ctx, nil, barcode)
	if err != nil {
		return nil, err
	}
	detail := &dto.ItemDetail{Item: item, TechBagParts: []models.Item{}, Chairs: []models.Item{}}
	if parts := item.TechBagContents.Parts(); len(parts) > 0 {
		if detail.TechBagParts, err = s.items.FindByBarcodes(ctx, nil, parts); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tech bag parts")
		}
	}
	if len(item.MallChairRefs) > 0 {
		if detail.Chairs, err = s.items.FindByBarcodes(ctx, nil, item.MallChairRefs); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mall chairs")
		}
	}
	return detail, nil
}

// Lookup resolves item names for a set of barcodes.
func (s *ItemService) Lookup(ctx context.Context, barcodes []string) ([]models.ItemSummary, error) {
	cleaned := normalizeBarcodes(barcodes)
	if len(cleaned) == 0 {
		return []models.ItemSummary{}, nil
	}
	out, err := s.items.Lookup(ctx, cleaned)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up items")
	}
	return out, nil
}

// Logs returns an item's history newest first.
func (s *ItemService) Logs(ctx context.Context, barcode string) ([]models.LogEntry, error) {
	item, err := s.loadItem(ctx, nil, barcode)
	if err != nil {
		return nil, err
	}
	logs := append([]models.LogEntry{}, item.Logs...)
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	return logs, nil
}

// MyLogs returns every history entry recorded by username across all items, newest first.
func (s *ItemService) MyLogs(ctx context.Context, username string) ([]models.UserLogEntry, error) {
	items, err := s.items.ListWithLogs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load logs")
	}
	out := make([]models.UserLogEntry, 0)
	for _, item := range items {
		for _, entry := range item.Logs {
			if strings.EqualFold(entry.User, username) {
				out = append(out, models.UserLogEntry{LogEntry: entry, Barcode: item.Barcode, ItemName: item.Name})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Unreturned lists items still held by someone. With olderThan > 0 only items checked out before now-olderThan are returned.
func (s *ItemService) Unreturned(ctx context.Context, olderThan time.Duration) ([]dto.UnreturnedItem, error) {
	items, err := s.items.ListUnreturned(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list unreturned items")
	}
	cutoff := s.now().Add(-olderThan)
	out := make([]dto.UnreturnedItem, 0, len(items))
	for _, item := range items {
		last := lastCheckOut(item)
		if olderThan > 0 {
			since := item.UpdatedAt
			if last != nil {
				since = last.Timestamp
			}
			if since.After(cutoff) {
				continue
			}
		}
		holder := ""
		if item.CheckedOutBy != nil {
			holder = *item.CheckedOutBy
		}
		out = append(out, dto.UnreturnedItem{
			Barcode:      item.Barcode,
			Name:         item.Name,
			Building:     item.Building,
			Category:     item.Category,
			CheckedOutBy: holder,
			LastCheckOut: last,
		})
	}
	return out, nil
}

// SendUnreturnedDigest mails admins the items overdue by more than overdueAfter.
func (s *ItemService) SendUnreturnedDigest(ctx context.Context, overdueAfter time.Duration) (int, error) {
	items, err := s.Unreturned(ctx, overdueAfter)
	if err != nil {
		return 0, err
	}
	if len(items) > 0 && s.notifier != nil {
		s.notifier.UnreturnedDigest(ctx, items, overdueAfter)
	}
	return len(items), nil
}

// EMSAlert escalates an unreturned item to the EMS desk.
func (s *ItemService) EMSAlert(ctx context.Context, actor Actor, req dto.EMSAlertRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ems alert payload")
	}
	item, err := s.loadItem(ctx, nil, req.Barcode)
	if err != nil {
		return err
	}
	if item.CheckedOutBy == nil {
		return appErrors.Clone(appErrors.ErrInvalidState, "Item is not checked out")
	}
	if s.notifier != nil {
		s.notifier.EMSEscalation(ctx, *item, actor.Username, req.Message)
	}
	s.logger.Info("ems escalation sent", zap.String("barcode", item.Barcode), zap.String("actor", actor.Username))
	return nil
}

// Create registers a new item.
func (s *ItemService) Create(ctx context.Context, actor Actor, req dto.CreateItemRequest) (*models.Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create item payload")
	}
	if err := validateClassification(req.Building, req.Category); err != nil {
		return nil, err
	}
	barcode := strings.TrimSpace(req.Barcode)
	if err := s.ensureBarcodeFree(ctx, barcode, ""); err != nil {
		return nil, err
	}

	item := &models.Item{
		Barcode:     barcode,
		Name:        strings.TrimSpace(req.Name),
		Building:    req.Building,
		Category:    req.Category,
		IsAvailable: true,
	}
	if req.Category == models.CategoryTechBag && req.TechBagContents != nil {
		contents, err := s.validateTechBagContents(ctx, barcode, *req.TechBagContents)
		if err != nil {
			return nil, err
		}
		item.TechBagContents = contents
	}
	if err := s.items.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create item")
	}

	s.invalidate(ctx)
	s.recordAudit(ctx, actor, models.AuditActionItemCreate, item, map[string]interface{}{"barcode": item.Barcode, "category": item.Category})
	return item, nil
}

// Update applies admin edits to the item identified by id.
func (s *ItemService) Update(ctx context.Context, actor Actor, id string, req dto.UpdateItemRequest) (*models.Item, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update item payload")
	}

	item, err := s.items.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}

	if req.Barcode != nil {
		barcode := strings.TrimSpace(*req.Barcode)
		if barcode == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "barcode cannot be empty")
		}
		if barcode != item.Barcode {
			if err := s.ensureBarcodeFree(ctx, barcode, item.ID); err != nil {
				return nil, err
			}
			item.Barcode = barcode
		}
	}
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.Building != nil {
		item.Building = *req.Building
	}
	if req.Category != nil {
		item.Category = *req.Category
	}
	if err := validateClassification(item.Building, item.Category); err != nil {
		return nil, err
	}
	if req.TechBagContents != nil {
		if !item.IsTechBag() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "only a Tech Bag can carry tech bag contents")
		}
		contents, err := s.validateTechBagContents(ctx, item.Barcode, *req.TechBagContents)
		if err != nil {
			return nil, err
		}
		item.TechBagContents = contents
	}

	now := s.now()
	if req.Archive != nil && *req.Archive != item.Archive {
		item.SetArchive(*req.Archive, actor.Username, now)
	}
	if req.Maintenance != nil && *req.Maintenance != item.Maintenance {
		item.SetMaintenance(*req.Maintenance, actor.Username, now)
	}
	for _, extra := range req.Logs {
		item.Logs = append(item.Logs, logEntryFrom(extra, actor.Username, now))
	}

	if err := s.items.Update(ctx, nil, item); err != nil {
		return nil, writeError(err, "failed to update item")
	}

	s.invalidate(ctx)
	s.recordAudit(ctx, actor, models.AuditActionItemUpdate, item, req)
	return item, nil
}

// Delete removes an item permanently.
func (s *ItemService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := s.items.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Item not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete item")
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, models.AuditActionItemDelete, &models.Item{ID: id}, nil)
	return nil
}

// AddLog appends a free-form history entry to an item.
func (s *ItemService) AddLog(ctx context.Context, actor Actor, barcode string, req dto.AddLogRequest) (*models.LogEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid log payload")
	}
	item, err := s.loadItem(ctx, nil, barcode)
	if err != nil {
		return nil, err
	}
	entry := logEntryFrom(req, actor.Username, s.now())
	item.Logs = append(item.Logs, entry)
	if err := s.items.Update(ctx, nil, item); err != nil {
		return nil, writeError(err, "failed to add log")
	}
	s.invalidate(ctx)
	return &entry, nil
}

// SetArchive toggles the archive flag.
func (s *ItemService) SetArchive(ctx context.Context, actor Actor, barcode string, on bool) (item *models.Item, err error) {
	defer func() { s.metrics.RecordTransition("archive", outcomeOf(err)) }()
	item, err = s.loadItem(ctx, nil, barcode)
	if err != nil {
		return nil, err
	}
	item.SetArchive(on, actor.Username, s.now())
	if err = s.items.Update(ctx, nil, item); err != nil {
		return nil, writeError(err, "failed to update archive flag")
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, models.AuditActionArchive, item, map[string]bool{"archive": on})
	return item, nil
}

// SetMaintenance toggles the maintenance flag.
func (s *ItemService) SetMaintenance(ctx context.Context, actor Actor, barcode string, on bool) (item *models.Item, err error) {
	defer func() { s.metrics.RecordTransition("maintenance", outcomeOf(err)) }()
	item, err = s.loadItem(ctx, nil, barcode)
	if err != nil {
		return nil, err
	}
	item.SetMaintenance(on, actor.Username, s.now())
	if err = s.items.Update(ctx, nil, item); err != nil {
		return nil, writeError(err, "failed to update maintenance flag")
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, models.AuditActionMaintenance, item, map[string]bool{"maintenance": on})
	return item, nil
}

// CheckOut hands an item to the caller. Tech bag parts and mall chairs move with it in one transaction.
func (s *ItemService) CheckOut(ctx context.Context, actor Actor, req dto.CheckOutRequest) (out *models.Item, err error) {
	defer func() { s.metrics.RecordTransition("check_out", outcomeOf(err)) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-out payload")
	}
	if strings.TrimSpace(actor.Username) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User ID is required for check-out")
	}

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		item, err := s.loadItem(ctx, tx, req.Barcode)
		if err != nil {
			return err
		}
		if err := checkOutGuard(item); err != nil {
			return err
		}

		entry := models.LogEntry{
			Action:      models.ActionCheckOut,
			User:        actor.Username,
			Timestamp:   s.now().UTC(),
			Room:        req.Room,
			ClientName:  req.ClientName,
			EventNumber: req.EventNumber,
		}

		var dependents []models.Item
		switch {
		case item.IsTechBag():
			parts, err := s.verifyTechBag(ctx, tx, item, req.TechBagVerification)
			if err != nil {
				return err
			}
			for idx := range parts {
				parts[idx].CheckOutWithBag(actor.Username, item.Barcode, entry)
			}
			dependents = parts
		case item.IsMallTable() && req.MallChairBarcodes != nil:
			chairs, err := s.verifyChairs(ctx, tx, req.MallChairBarcodes)
			if err != nil {
				return err
			}
			barcodes := make([]string, 0, len(chairs))
			for idx := range chairs {
				chairs[idx].CheckOut(actor.Username, entry)
				barcodes = append(barcodes, chairs[idx].Barcode)
			}
			item.AttachChairs(barcodes)
			dependents = chairs
		}

		item.CheckOut(actor.Username, entry)
		for idx := range dependents {
			if err := s.items.Update(ctx, tx, &dependents[idx]); err != nil {
				return writeError(err, "failed to check out item")
			}
		}
		if err := s.items.Update(ctx, tx, item); err != nil {
			return writeError(err, "failed to check out item")
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	s.logger.Info("item checked out", zap.String("barcode", out.Barcode), zap.String("actor", actor.Username))
	return out, nil
}

// CheckIn returns an item. A tech bag reconciles its parts through the markMissing and markCheckedIn lists.
func (s *ItemService) CheckIn(ctx context.Context, actor Actor, req dto.CheckInRequest) (result *dto.CheckInResult, err error) {
	defer func() { s.metrics.RecordTransition("check_in", outcomeOf(err)) }()
	if strings.TrimSpace(actor.Username) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User ID is required for check-in")
	}
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}

	var (
		flagged      *models.Item
		missingParts []string
	)
	result = &dto.CheckInResult{UnreconciledParts: []string{}}

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		item, err := s.loadItem(ctx, tx, req.Barcode)
		if err != nil {
			return err
		}
		if err := lockGuard(item); err != nil {
			return err
		}
		if item.IsMissing {
			flagged = item
			return appErrors.Clone(appErrors.ErrInvalidState, "This item is marked as missing. Please report it as found to an admin.")
		}
		if item.BelongsToTechBag != nil && *item.BelongsToTechBag != "" {
			return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("This item is part of Tech Bag %s. Please check in the entire Tech Bag.", *item.BelongsToTechBag))
		}
		if item.Category == models.CategoryMallChair {
			table, err := s.items.FindTableHoldingChair(ctx, tx, item.Barcode)
			switch {
			case err == nil:
				return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("This chair is attached to Mall Table %s. Please check in the entire Mall Table.", table.Barcode))
			case !errors.Is(err, sql.ErrNoRows):
				return writeError(err, "failed to load mall table")
			}
		}
		if item.IsAvailable {
			return appErrors.Clone(appErrors.ErrInvalidState, "Item is already checked in")
		}

		now := s.now()
		var dependents []models.Item

		if item.IsTechBag() {
			parts, err := s.items.FindByBarcodes(ctx, tx, item.TechBagContents.Parts())
			if err != nil {
				return writeError(err, "failed to load tech bag parts")
			}
			markMissing := toSet(req.MarkMissing)
			markCheckedIn := toSet(req.MarkCheckedIn)
			for idx := range parts {
				part := &parts[idx]
				switch {
				case part.Barcode == item.Barcode:
					continue
				case markMissing[part.Barcode]:
					part.MarkMissing(models.NewLogEntry(models.ActionMarkedMissing, actor.Username, now))
					missingParts = append(missingParts, part.Barcode)
					dependents = append(dependents, *part)
				case markCheckedIn[part.Barcode]:
					part.IsMissing = false
					part.Release(models.NewLogEntry(models.ActionCheckIn, actor.Username, now))
					dependents = append(dependents, *part)
				default:
					result.UnreconciledParts = append(result.UnreconciledParts, part.Barcode)
				}
			}
		}

		if item.IsMallTable() && len(item.MallChairRefs) > 0 {
			chairs, err := s.items.FindByBarcodes(ctx, tx, item.DetachChairs())
			if err != nil {
				return writeError(err, "failed to load mall chairs")
			}
			for idx := range chairs {
				chair := &chairs[idx]
				if chair.IsAvailable || !sameHolder(chair.CheckedOutBy, item.CheckedOutBy) {
					s.logger.Warn("mall chair no longer held with its table",
						zap.String("table", item.Barcode), zap.String("chair", chair.Barcode))
					continue
				}
				chair.Release(models.NewLogEntry(models.ActionCheckIn, actor.Username, now))
				dependents = append(dependents, *chair)
			}
		}

		item.Release(models.NewLogEntry(models.ActionCheckIn, actor.Username, now))
		for idx := range dependents {
			if err := s.items.Update(ctx, tx, &dependents[idx]); err != nil {
				return writeError(err, "failed to check in item")
			}
		}
		if err := s.items.Update(ctx, tx, item); err != nil {
			return writeError(err, "failed to check in item")
		}
		result.Item = item
		return nil
	})

	if flagged != nil && s.notifier != nil {
		s.notifier.FlaggedItemCheckIn(ctx, *flagged, actor.Username)
	}
	if err != nil {
		return nil, err
	}

	if len(missingParts) > 0 && s.notifier != nil {
		s.notifier.TechBagMissingParts(ctx, *result.Item, missingParts, actor.Username)
	}
	if len(result.UnreconciledParts) > 0 {
		s.logger.Warn("tech bag returned with unreconciled parts",
			zap.String("barcode", result.Item.Barcode),
			zap.Strings("parts", result.UnreconciledParts))
	}
	s.invalidate(ctx)
	return result, nil
}

// ReportIssue flags an item missing or broken and records the description.
func (s *ItemService) ReportIssue(ctx context.Context, actor Actor, req dto.ReportIssueRequest) (item *models.Item, err error) {
	defer func() { s.metrics.RecordTransition("report_issue", outcomeOf(err)) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	issue, ok := models.ParseIssueType(req.IssueType)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid issue type")
	}

	item, err = s.loadItem(ctx, nil, req.Barcode)
	if err != nil {
		return nil, err
	}
	if err = reportGuard(item); err != nil {
		return nil, err
	}
	entry := models.NewLogEntry(models.ActionReportIssue, actor.Username, s.now())
	entry.Notes = fmt.Sprintf("%s: %s", issue, strings.TrimSpace(req.Description))
	item.ReportIssue(issue, entry)
	if err = s.items.Update(ctx, nil, item); err != nil {
		return nil, writeError(err, "failed to report issue")
	}
	s.invalidate(ctx)
	return item, nil
}

// ResolveIssue closes open reports on an item as found or fixed and returns it to the shelf.
func (s *ItemService) ResolveIssue(ctx context.Context, actor Actor, req dto.ResolveIssueRequest) (item *models.Item, err error) {
	defer func() { s.metrics.RecordTransition("resolve_issue", outcomeOf(err)) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolve payload")
	}
	resolution := models.ResolutionType(req.ResolutionType)
	if resolution != models.ResolutionFound && resolution != models.ResolutionFixed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "Invalid resolution type")
	}

	item, err = s.loadItem(ctx, nil, req.Barcode)
	if err != nil {
		return nil, err
	}
	item.ResolveIssue(resolution, actor.Username, s.now())
	if err = s.items.Update(ctx, nil, item); err != nil {
		return nil, writeError(err, "failed to resolve issue")
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actor, models.AuditActionResolve, item, map[string]string{"resolution": string(resolution)})
	return item, nil
}

func (s *ItemService) loadItem(ctx context.Context, exec sqlx.ExtContext, barcode string) (*models.Item, error) {
	item, err := s.items.FindByBarcode(ctx, exec, strings.TrimSpace(barcode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load item")
	}
	return item, nil
}

func (s *ItemService) verifyTechBag(ctx context.Context, tx sqlx.ExtContext, bag *models.Item, verification map[string]bool) ([]models.Item, error) {
	refs := normalizeBarcodes(bag.TechBagContents.Parts())
	if len(refs) == 0 {
		return nil, nil
	}
	found, err := s.items.FindByBarcodes(ctx, tx, refs)
	if err != nil {
		return nil, writeError(err, "failed to load tech bag parts")
	}
	byBarcode := make(map[string]models.Item, len(found))
	for _, part := range found {
		byBarcode[part.Barcode] = part
	}

	parts := make([]models.Item, 0, len(refs))
	for _, ref := range refs {
		part, ok := byBarcode[ref]
		if ref == bag.Barcode {
			ok = false
		}
		if !ok {
			s.logger.Warn("tech bag references unknown part", zap.String("bag", bag.Barcode), zap.String("part", ref))
			continue
		}
		confirmed, answered := verification[part.Barcode]
		if !part.IsAvailable && !(answered && !confirmed) {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("Cannot check out. %s (%s) is not available.", part.Name, part.Barcode))
		}
		if !confirmed {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, "Please verify all tech bag contents.")
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func (s *ItemService) verifyChairs(ctx context.Context, tx sqlx.ExtContext, scanned []string) ([]models.Item, error) {
	barcodes := normalizeBarcodes(scanned)
	found, err := s.items.FindByBarcodes(ctx, tx, barcodes)
	if err != nil {
		return nil, writeError(err, "failed to load mall chairs")
	}
	if len(found) != len(barcodes) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "One or more scanned chairs not found.")
	}
	byBarcode := make(map[string]models.Item, len(found))
	for _, chair := range found {
		byBarcode[chair.Barcode] = chair
	}

	chairs := make([]models.Item, 0, len(barcodes))
	for _, barcode := range barcodes {
		chair := byBarcode[barcode]
		if chair.Category != models.CategoryMallChair {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("%s is not a Mall Chair.", chair.Barcode))
		}
		if !chair.IsAvailable {
			return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("%s is already checked out.", chair.Barcode))
		}
		chairs = append(chairs, chair)
	}
	return chairs, nil
}

// validateTechBagContents checks that every slot names a distinct existing item of the slot's category.
func (s *ItemService) validateTechBagContents(ctx context.Context, bagBarcode string, contents models.TechBagContents) (models.TechBagContents, error) {
	slots := []struct {
		ref      **string
		category models.ItemCategory
	}{
		{&contents.HDMICable, models.CategoryHDMICable},
		{&contents.Clicker, models.CategoryClicker},
		{&contents.Adapter, models.CategoryTypeCAdapters},
	}
	seen := make(map[string]struct{}, len(slots))
	for _, slot := range slots {
		if *slot.ref == nil || strings.TrimSpace(**slot.ref) == "" {
			*slot.ref = nil
			continue
		}
		barcode := strings.TrimSpace(**slot.ref)
		*slot.ref = &barcode
		if barcode == bagBarcode {
			return contents, appErrors.Clone(appErrors.ErrValidation, "A Tech Bag cannot contain itself.")
		}
		if _, dup := seen[barcode]; dup {
			return contents, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is listed more than once in the Tech Bag.", barcode))
		}
		seen[barcode] = struct{}{}

		part, err := s.items.FindByBarcode(ctx, nil, barcode)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return contents, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("Tech Bag part %s not found.", barcode))
			}
			return contents, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tech bag part")
		}
		if part.Category != slot.category {
			return contents, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a %s, not a %s.", barcode, slot.category, part.Category))
		}
	}
	return contents, nil
}

func (s *ItemService) ensureBarcodeFree(ctx context.Context, barcode, excludeID string) error {
	exists, err := s.items.ExistsBarcode(ctx, barcode, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check barcode")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicate, "Barcode already exists in the system")
	}
	return nil
}

func (s *ItemService) invalidate(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, cacheItemsPrefix+"*")
}

func (s *ItemService) recordAudit(ctx context.Context, actor Actor, action string, item *models.Item, values interface{}) {
	if s.audit == nil {
		return
	}
	payload := ""
	if values != nil {
		raw, _ := json.Marshal(values)
		payload = string(raw)
	}
	var userID *string
	if actor.UserID != "" {
		userID = &actor.UserID
	}
	resourceID := item.ID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     userID,
		Action:     action,
		Resource:   "items",
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  actor.IP,
		UserAgent:  actor.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record item audit log", zap.String("action", action), zap.Error(err))
	}
}

func lockGuard(item *models.Item) error {
	if item.Archive {
		return appErrors.Clone(appErrors.ErrItemLocked, "This item is archived and cannot be checked in/out.")
	}
	if item.Maintenance {
		return appErrors.Clone(appErrors.ErrItemLocked, "Item is under maintenance and cannot be checked in/out.")
	}
	return nil
}

// reportGuard keeps condition flags off items outside the active fleet.
func reportGuard(item *models.Item) error {
	switch {
	case item.Archive:
		return appErrors.Clone(appErrors.ErrItemLocked, "This item is archived. Unarchive it before reporting an issue.")
	case item.Maintenance:
		return appErrors.Clone(appErrors.ErrItemLocked, "Item is under maintenance. End maintenance before reporting an issue.")
	}
	return nil
}

func checkOutGuard(item *models.Item) error {
	if err := lockGuard(item); err != nil {
		return err
	}
	if item.IsMissing || item.IsBroken {
		condition := "missing"
		if !item.IsMissing {
			condition = "broken"
		}
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("This item is marked as %s and is not available for checkout.", condition))
	}
	if !item.IsAvailable {
		return appErrors.Clone(appErrors.ErrInvalidState, "Item is already checked out")
	}
	return nil
}

func validateClassification(building models.Building, category models.ItemCategory) error {
	if !building.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "building must be Memorial Union or Student Pavilion")
	}
	if !category.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown category %q", category))
	}
	return nil
}

func logEntryFrom(req dto.AddLogRequest, user string, at time.Time) models.LogEntry {
	entry := models.NewLogEntry(models.LogAction(strings.TrimSpace(req.Action)), user, at)
	entry.Room = req.Room
	entry.ClientName = req.ClientName
	entry.EventNumber = req.EventNumber
	entry.Notes = req.Notes
	return entry
}

func sameHolder(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func lastCheckOut(item models.Item) *models.LogEntry {
	for idx := len(item.Logs) - 1; idx >= 0; idx-- {
		if item.Logs[idx].Action == models.ActionCheckOut {
			entry := item.Logs[idx]
			return &entry
		}
	}
	return nil
}

// normalizeBarcodes trims, drops blanks and removes duplicates while keeping order.
func normalizeBarcodes(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, barcode := range raw {
		barcode = strings.TrimSpace(barcode)
		if barcode == "" {
			continue
		}
		if _, ok := seen[barcode]; ok {
			continue
		}
		seen[barcode] = struct{}{}
		out = append(out, barcode)
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = true
	}
	return set
}
