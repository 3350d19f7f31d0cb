package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

const (
	defaultCheckOutNotes = "N/A"
	systemActor          = "System"
)

type organizationStore interface {
	FindByKey(ctx context.Context, exec sqlx.ExtContext, nameKey string) (*models.Organization, error)
	List(ctx context.Context, activeOnly bool) ([]models.Organization, error)
	ListNames(ctx context.Context) ([]string, error)
	Create(ctx context.Context, exec sqlx.ExtContext, org *models.Organization) error
	Update(ctx context.Context, exec sqlx.ExtContext, org *models.Organization) error
}

type reservationItemStore interface {
	FindByBarcodes(ctx context.Context, exec sqlx.ExtContext, barcodes []string) ([]models.Item, error)
	Update(ctx context.Context, exec sqlx.ExtContext, item *models.Item) error
}

type reservationNotifier interface {
	NoShowReported(ctx context.Context, organization string, entry models.Reservation)
}

// ReservationService records tabling reservations and the tables and chairs they hold.
type ReservationService struct {
	orgs      organizationStore
	items     reservationItemStore
	tx        txProvider
	cache     *CacheService
	notifier  reservationNotifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReservationService constructs the reservation service.
func NewReservationService(orgs organizationStore, items reservationItemStore, tx txProvider, cache *CacheService, notifier reservationNotifier, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		orgs:      orgs,
		items:     items,
		tx:        tx,
		cache:     cache,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// CheckIn opens a reservation for an organization and checks out the table and chairs it holds.
func (s *ReservationService) CheckIn(ctx context.Context, actor Actor, req dto.OrganizationCheckInRequest) (result *dto.OrganizationCheckInResult, err error) {
	defer func() { s.metrics.RecordTransition("org_check_in", outcomeOf(err)) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-in payload")
	}
	if strings.TrimSpace(actor.Username) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "User ID is required for check-in")
	}
	name, key, err := organizationName(req.Organization)
	if err != nil {
		return nil, err
	}

	requested := make([]string, 0, len(req.Chairs)+1)
	if req.Table != nil {
		requested = append(requested, req.Table.Barcode)
	}
	for _, chair := range req.Chairs {
		requested = append(requested, chair.Barcode)
	}
	requested = normalizeBarcodes(requested)

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		found, err := s.items.FindByBarcodes(ctx, tx, requested)
		if err != nil {
			return writeError(err, "failed to resolve reservation items")
		}
		byBarcode := make(map[string]*models.Item, len(found))
		for idx := range found {
			byBarcode[found[idx].Barcode] = &found[idx]
		}

		org, created, err := s.loadOrCreate(ctx, tx, name, key)
		if err != nil {
			return err
		}
		if org.OpenReservation(strings.TrimSpace(req.EventNumber)) >= 0 {
			return appErrors.Clone(appErrors.ErrInvalidState, "Reservation already open for this event.")
		}

		now := s.now().UTC()
		entry := models.Reservation{
			ID:          uuid.NewString(),
			Action:      models.ReservationCheckIn,
			ClientName:  defaultString(strings.TrimSpace(req.ClientName), org.Name),
			TablingSpot: strings.TrimSpace(req.TablingSpot),
			EventNumber: strings.TrimSpace(req.EventNumber),
			CheckInTime: timeOrNow(req.CheckInTime, now),
			RangeStart:  req.RangeStart,
			RangeEnd:    req.RangeEnd,
			User:        actor.Username,
			Chairs:      []models.ItemRef{},
			Timestamp:   now,
		}

		dropped := make([]string, 0)
		var held []*models.Item
		if req.Table != nil && strings.TrimSpace(req.Table.Barcode) != "" {
			barcode := strings.TrimSpace(req.Table.Barcode)
			if item, ok := byBarcode[barcode]; ok {
				entry.Table = &models.ItemRef{Barcode: item.Barcode, ItemRef: item.ID}
				held = append(held, item)
			} else {
				dropped = append(dropped, barcode)
			}
		}
		for _, chair := range normalizeBarcodes(barcodesOf(req.Chairs)) {
			item, ok := byBarcode[chair]
			if !ok {
				dropped = append(dropped, chair)
				continue
			}
			if entry.Table != nil && entry.Table.Barcode == chair {
				continue
			}
			entry.Chairs = append(entry.Chairs, models.ItemRef{Barcode: item.Barcode, ItemRef: item.ID})
			held = append(held, item)
		}
		if len(dropped) > 0 {
			s.logger.Warn("reservation barcodes not found", zap.String("organization", org.Name), zap.Strings("barcodes", dropped))
		}

		org.Reservations = append(org.Reservations, entry)
		if created {
			err = s.orgs.Create(ctx, tx, org)
		} else {
			err = s.orgs.Update(ctx, tx, org)
		}
		if err != nil {
			return writeError(err, "failed to save reservation")
		}

		for _, item := range held {
			if !item.IsAvailable {
				s.logger.Warn("reservation took an unavailable item", zap.String("barcode", item.Barcode), zap.String("state", string(item.State())))
			}
			item.CheckOut(actor.Username, models.LogEntry{
				Action:      models.ActionCheckOut,
				User:        actor.Username,
				Timestamp:   now,
				Room:        entry.TablingSpot,
				ClientName:  entry.ClientName,
				EventNumber: entry.EventNumber,
			})
			if err := s.items.Update(ctx, tx, item); err != nil {
				return writeError(err, "failed to check out reservation item")
			}
		}

		result = &dto.OrganizationCheckInResult{Organization: org.Name, Reservation: entry, DroppedBarcodes: dropped}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, len(requested) > 0)
	return result, nil
}

// CheckOut closes the first open reservation for the event and releases its table and chairs.
func (s *ReservationService) CheckOut(ctx context.Context, actor Actor, req dto.OrganizationCheckOutRequest) (closing *models.Reservation, err error) {
	defer func() { s.metrics.RecordTransition("org_check_out", outcomeOf(err)) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid check-out payload")
	}
	user := defaultString(strings.TrimSpace(actor.Username), systemActor)
	notes := defaultString(strings.TrimSpace(req.Notes), defaultCheckOutNotes)
	eventNumber := strings.TrimSpace(req.EventNumber)

	var released int
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		org, err := s.orgs.FindByKey(ctx, tx, models.OrganizationKey(req.Organization))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "Organization not found.")
			}
			return writeError(err, "failed to load organization")
		}
		idx := org.OpenReservation(eventNumber)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, "Active reservation not found.")
		}

		now := s.now().UTC()
		open := &org.Reservations[idx]
		open.CheckOutTime = &now
		open.Notes = notes

		entry := models.Reservation{
			ID:           uuid.NewString(),
			Action:       models.ReservationCheckOut,
			ClientName:   open.ClientName,
			TablingSpot:  open.TablingSpot,
			EventNumber:  open.EventNumber,
			CheckOutTime: &now,
			User:         user,
			Table:        open.Table,
			Chairs:       append([]models.ItemRef{}, open.Chairs...),
			Notes:        notes,
			Timestamp:    now,
		}
		barcodes := open.Barcodes()
		org.Reservations = append(org.Reservations, entry)
		if err := s.orgs.Update(ctx, tx, org); err != nil {
			return writeError(err, "failed to close reservation")
		}

		items, err := s.items.FindByBarcodes(ctx, tx, barcodes)
		if err != nil {
			return writeError(err, "failed to resolve reservation items")
		}
		for idx := range items {
			items[idx].Release(models.LogEntry{
				Action:      models.ActionCheckIn,
				User:        user,
				Timestamp:   now,
				Room:        entry.TablingSpot,
				ClientName:  entry.ClientName,
				EventNumber: entry.EventNumber,
			})
			if err := s.items.Update(ctx, tx, &items[idx]); err != nil {
				return writeError(err, "failed to release reservation item")
			}
		}
		released = len(items)
		closing = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, released > 0)
	return closing, nil
}

// NoShow logs a reservation that never arrived. Unknown organizations are created inactive.
func (s *ReservationService) NoShow(ctx context.Context, actor Actor, req dto.OrganizationNoShowRequest) (logged *models.Reservation, err error) {
	defer func() { s.metrics.RecordTransition("org_no_show", outcomeOf(err)) }()
	if err = s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid no-show payload")
	}
	name, key, err := organizationName(req.Organization)
	if err != nil {
		return nil, err
	}

	var orgName string
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		org, created, err := s.loadOrCreate(ctx, tx, name, key)
		if err != nil {
			return err
		}
		entry := models.Reservation{
			ID:          uuid.NewString(),
			Action:      models.ReservationNoShow,
			ClientName:  defaultString(strings.TrimSpace(req.ClientName), org.Name),
			TablingSpot: strings.TrimSpace(req.TablingSpot),
			EventNumber: strings.TrimSpace(req.EventNumber),
			RangeStart:  req.RangeStart,
			RangeEnd:    req.RangeEnd,
			User:        defaultString(strings.TrimSpace(actor.Username), systemActor),
			NoShow:      true,
			Timestamp:   s.now().UTC(),
		}
		org.Reservations = append(org.Reservations, entry)
		if created {
			err = s.orgs.Create(ctx, tx, org)
		} else {
			err = s.orgs.Update(ctx, tx, org)
		}
		if err != nil {
			return writeError(err, "failed to log no-show")
		}
		orgName = org.Name
		logged = &entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, false)
	if req.Notify && s.notifier != nil {
		s.notifier.NoShowReported(ctx, orgName, *logged)
	}
	return logged, nil
}

// ActiveOrganizations returns the names of organizations holding an open reservation.
func (s *ReservationService) ActiveOrganizations(ctx context.Context) ([]string, error) {
	orgs, err := s.orgs.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch active organizations")
	}
	names := make([]string, 0, len(orgs))
	for _, org := range orgs {
		names = append(names, org.Name)
	}
	return names, nil
}

// Names returns every known organization name.
func (s *ReservationService) Names(ctx context.Context) ([]string, error) {
	names, err := s.orgs.ListNames(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch organizations")
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// MergedLogs folds every organization's reservation log into reporting rows.
func (s *ReservationService) MergedLogs(ctx context.Context) ([]models.MergedReservation, error) {
	return cachedRead(ctx, s.cache, cacheTablingPrefix+"all-logs", func() ([]models.MergedReservation, error) {
		orgs, err := s.orgs.List(ctx, false)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch tabling logs")
		}
		rows := make([]models.MergedReservation, 0)
		for _, org := range orgs {
			rows = append(rows, models.MergeReservations(org)...)
		}
		return rows, nil
	})
}

// ActiveReservation returns the open reservation of the named organization.
func (s *ReservationService) ActiveReservation(ctx context.Context, organization string) (*dto.ActiveReservationResponse, error) {
	org, err := s.orgs.FindByKey(ctx, nil, models.OrganizationKey(organization))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch organization")
	}
	entry, ok := org.ActiveReservation()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No active reservation found.")
	}
	return &dto.ActiveReservationResponse{Organization: org.Name, Reservation: entry}, nil
}

// ReservationByTable finds the open reservation holding tableBarcode.
func (s *ReservationService) ReservationByTable(ctx context.Context, tableBarcode string) (*dto.ActiveReservationResponse, error) {
	orgs, err := s.orgs.List(ctx, true)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch reservation by table")
	}
	barcode := strings.TrimSpace(tableBarcode)
	for idx := range orgs {
		if entry, ok := orgs[idx].OpenReservationForTable(barcode); ok {
			return &dto.ActiveReservationResponse{Organization: orgs[idx].Name, Reservation: entry}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "No active reservation found for table.")
}

func (s *ReservationService) loadOrCreate(ctx context.Context, tx sqlx.ExtContext, name, key string) (*models.Organization, bool, error) {
	org, err := s.orgs.FindByKey(ctx, tx, key)
	if err == nil {
		return org, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, writeError(err, "failed to load organization")
	}
	return &models.Organization{Name: name, NameKey: key, Reservations: models.Reservations{}}, true, nil
}

func (s *ReservationService) invalidate(ctx context.Context, itemsTouched bool) {
	_ = s.cache.Invalidate(ctx, cacheTablingPrefix+"*")
	if itemsTouched {
		_ = s.cache.Invalidate(ctx, cacheItemsPrefix+"*")
	}
}

func organizationName(raw string) (string, string, error) {
	name := strings.TrimSpace(raw)
	key := models.OrganizationKey(name)
	if key == "" {
		return "", "", appErrors.Clone(appErrors.ErrValidation, "organization is required")
	}
	return name, key, nil
}

func barcodesOf(refs []dto.BarcodeRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, ref.Barcode)
	}
	return out
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func timeOrNow(t *time.Time, now time.Time) *time.Time {
	if t != nil && !t.IsZero() {
		utc := t.UTC()
		return &utc
	}
	return &now
}
