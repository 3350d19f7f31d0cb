package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
)

type reservationServiceMock struct {
	actor     service.Actor
	checkIn   dto.OrganizationCheckInRequest
	byTable   string
	activeOrg string
}

func (m *reservationServiceMock) CheckIn(ctx context.Context, actor service.Actor, req dto.OrganizationCheckInRequest) (*dto.OrganizationCheckInResult, error) {
	m.actor = actor
	m.checkIn = req
	return &dto.OrganizationCheckInResult{
		Organization:    req.Organization,
		Reservation:     models.Reservation{Action: models.ReservationCheckIn, User: actor.Username},
		DroppedBarcodes: []string{"CH-404"},
	}, nil
}

func (m *reservationServiceMock) CheckOut(ctx context.Context, actor service.Actor, req dto.OrganizationCheckOutRequest) (*models.Reservation, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "Organization not found")
}

func (m *reservationServiceMock) NoShow(ctx context.Context, actor service.Actor, req dto.OrganizationNoShowRequest) (*models.Reservation, error) {
	return &models.Reservation{Action: models.ReservationNoShow, User: actor.Username}, nil
}

func (m *reservationServiceMock) ActiveOrganizations(ctx context.Context) ([]string, error) {
	return []string{"Chess Club"}, nil
}

func (m *reservationServiceMock) Names(ctx context.Context) ([]string, error) {
	return []string{"Chess Club", "Robotics"}, nil
}

func (m *reservationServiceMock) MergedLogs(ctx context.Context) ([]models.MergedReservation, error) {
	return []models.MergedReservation{}, nil
}

func (m *reservationServiceMock) ActiveReservation(ctx context.Context, organization string) (*dto.ActiveReservationResponse, error) {
	m.activeOrg = organization
	return &dto.ActiveReservationResponse{Organization: organization}, nil
}

func (m *reservationServiceMock) ReservationByTable(ctx context.Context, tableBarcode string) (*dto.ActiveReservationResponse, error) {
	m.byTable = tableBarcode
	return nil, appErrors.Clone(appErrors.ErrNotFound, "No active reservation for this table")
}

func TestOrganizationHandlerCheckIn(t *testing.T) {
	svc := &reservationServiceMock{}
	h := NewOrganizationHandler(svc)
	body := []byte(`{"organization":"Chess Club","eventNumber":"EV-9","table":{"barcode":"MT-1"},"chairs":[{"barcode":"CH-404"}]}`)
	c, w := newTestContext(http.MethodPost, "/organizations/checkin", body)

	h.CheckIn(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "jdoe", svc.actor.Username)
	require.NotNil(t, svc.checkIn.Table)
	assert.Equal(t, "MT-1", svc.checkIn.Table.Barcode)

	var envelope struct {
		Data dto.OrganizationCheckInResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"CH-404"}, envelope.Data.DroppedBarcodes)
	assert.Equal(t, "jdoe", envelope.Data.Reservation.User)
}

func TestOrganizationHandlerErrors(t *testing.T) {
	svc := &reservationServiceMock{}
	h := NewOrganizationHandler(svc)

	c, w := newTestContext(http.MethodPost, "/organizations/checkout", []byte(`{"organization":"Ghost","eventNumber":"1"}`))
	h.CheckOut(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newTestContext(http.MethodPost, "/organizations/noshow", []byte(`not-json`))
	h.NoShow(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/organizations/by-table/MT-9", nil)
	c.Params = gin.Params{{Key: "tableBarcode", Value: "MT-9"}}
	h.ByTable(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "MT-9", svc.byTable)
}

func TestOrganizationHandlerReads(t *testing.T) {
	svc := &reservationServiceMock{}
	h := NewOrganizationHandler(svc)

	c, w := newTestContext(http.MethodGet, "/organizations", nil)
	h.Names(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Robotics")

	c, w = newTestContext(http.MethodGet, "/organizations/Chess%20Club", nil)
	c.Params = gin.Params{{Key: "orgName", Value: "Chess Club"}}
	h.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Chess Club", svc.activeOrg)
}

type inventoryCheckServiceMock struct {
	limit   int
	created dto.CreateInventoryCheckRequest
	actor   service.Actor
}

func (m *inventoryCheckServiceMock) Create(ctx context.Context, actor service.Actor, req dto.CreateInventoryCheckRequest) (*models.InventoryCheck, error) {
	m.actor = actor
	m.created = req
	return &models.InventoryCheck{ID: "chk-1", User: actor.Username, Building: req.Building}, nil
}

func (m *inventoryCheckServiceMock) List(ctx context.Context, limit int) ([]models.InventoryCheck, error) {
	m.limit = limit
	return []models.InventoryCheck{}, nil
}

func TestInventoryCheckHandlerLimits(t *testing.T) {
	svc := &inventoryCheckServiceMock{}
	h := NewInventoryCheckHandler(svc)

	c, w := newTestContext(http.MethodGet, "/inventory-checks/public", nil)
	h.Public(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.PublicInventoryCheckLimit, svc.limit)

	c, w = newTestContext(http.MethodGet, "/inventory-checks?limit=5", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.limit)

	c, _ = newTestContext(http.MethodGet, "/inventory-checks?limit=-3", nil)
	h.List(c)
	assert.Equal(t, 0, svc.limit)
}

func TestInventoryCheckHandlerCreate(t *testing.T) {
	svc := &inventoryCheckServiceMock{}
	h := NewInventoryCheckHandler(svc)
	body := []byte(`{"building":"Memorial Union","confirmed":true,"presentItems":["TB-1"],"missingItems":["MIC-2"]}`)
	c, w := newTestContext(http.MethodPost, "/inventory-checks", body)

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "jdoe", svc.actor.Username)
	assert.Equal(t, models.BuildingMemorialUnion, svc.created.Building)
	assert.Equal(t, []string{"MIC-2"}, svc.created.MissingItems)
}

type alerterMock struct {
	req dto.EMSAlertRequest
	err error
}

func (m *alerterMock) EMSAlert(ctx context.Context, actor service.Actor, req dto.EMSAlertRequest) error {
	m.req = req
	return m.err
}

func TestNotificationHandlerEMSAlert(t *testing.T) {
	alerts := &alerterMock{}
	h := NewNotificationHandler(alerts)

	c, w := newTestContext(http.MethodPost, "/notifications/ems-alert", []byte(`{"barcode":"TB-1","message":"overdue"}`))
	h.EMSAlert(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "EMS alert queued")
	assert.Equal(t, "TB-1", alerts.req.Barcode)

	alerts.err = appErrors.Clone(appErrors.ErrNotFound, "Item not found")
	c, w = newTestContext(http.MethodPost, "/notifications/ems-alert", []byte(`{"barcode":"NOPE"}`))
	h.EMSAlert(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
