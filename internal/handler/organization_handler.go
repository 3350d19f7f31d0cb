package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
	"github.com/noah-isme/facility-inventory-api/pkg/response"
)

type reservationService interface {
	CheckIn(ctx context.Context, actor service.Actor, req dto.OrganizationCheckInRequest) (*dto.OrganizationCheckInResult, error)
	CheckOut(ctx context.Context, actor service.Actor, req dto.OrganizationCheckOutRequest) (*models.Reservation, error)
	NoShow(ctx context.Context, actor service.Actor, req dto.OrganizationNoShowRequest) (*models.Reservation, error)
	ActiveOrganizations(ctx context.Context) ([]string, error)
	Names(ctx context.Context) ([]string, error)
	MergedLogs(ctx context.Context) ([]models.MergedReservation, error)
	ActiveReservation(ctx context.Context, organization string) (*dto.ActiveReservationResponse, error)
	ReservationByTable(ctx context.Context, tableBarcode string) (*dto.ActiveReservationResponse, error)
}

// OrganizationHandler exposes the tabling reservation log.
type OrganizationHandler struct {
	service reservationService
}

// NewOrganizationHandler builds a new handler.
func NewOrganizationHandler(service reservationService) *OrganizationHandler {
	return &OrganizationHandler{service: service}
}

// CheckIn godoc
// @Summary Open a tabling reservation
// @Description Unknown table or chair barcodes are dropped and listed in droppedBarcodes.
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body dto.OrganizationCheckInRequest true "Check-in"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /organizations/checkin [post]
func (h *OrganizationHandler) CheckIn(c *gin.Context) {
	var req dto.OrganizationCheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	result, err := h.service.CheckIn(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// CheckOut godoc
// @Summary Close a tabling reservation
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body dto.OrganizationCheckOutRequest true "Check-out"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/checkout [post]
func (h *OrganizationHandler) CheckOut(c *gin.Context) {
	var req dto.OrganizationCheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-out payload"))
		return
	}
	entry, err := h.service.CheckOut(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// NoShow godoc
// @Summary Log a no-show
// @Tags Organizations
// @Accept json
// @Produce json
// @Param payload body dto.OrganizationNoShowRequest true "No-show"
// @Success 201 {object} response.Envelope
// @Router /organizations/noshow [post]
func (h *OrganizationHandler) NoShow(c *gin.Context) {
	var req dto.OrganizationNoShowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid no-show payload"))
		return
	}
	entry, err := h.service.NoShow(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Names godoc
// @Summary Names of every known organization
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *OrganizationHandler) Names(c *gin.Context) {
	names, err := h.service.Names(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, names, nil)
}

// Active godoc
// @Summary Organizations with an open reservation
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations/active [get]
func (h *OrganizationHandler) Active(c *gin.Context) {
	names, err := h.service.ActiveOrganizations(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, names, nil)
}

// AllLogs godoc
// @Summary Merged reservation history
// @Tags Organizations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /organizations/all-logs [get]
func (h *OrganizationHandler) AllLogs(c *gin.Context) {
	rows, err := h.service.MergedLogs(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// ByTable godoc
// @Summary Open reservation holding a table
// @Tags Organizations
// @Produce json
// @Param tableBarcode path string true "Table barcode"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/by-table/{tableBarcode} [get]
func (h *OrganizationHandler) ByTable(c *gin.Context) {
	res, err := h.service.ReservationByTable(c.Request.Context(), c.Param("tableBarcode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Get godoc
// @Summary Open reservation of an organization
// @Tags Organizations
// @Produce json
// @Param orgName path string true "Organization name"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/{orgName} [get]
func (h *OrganizationHandler) Get(c *gin.Context) {
	res, err := h.service.ActiveReservation(c.Request.Context(), c.Param("orgName"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}
