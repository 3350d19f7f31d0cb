package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
	"github.com/noah-isme/facility-inventory-api/pkg/response"
)

type inventoryCheckService interface {
	Create(ctx context.Context, actor service.Actor, req dto.CreateInventoryCheckRequest) (*models.InventoryCheck, error)
	List(ctx context.Context, limit int) ([]models.InventoryCheck, error)
}

// InventoryCheckHandler exposes shift verification snapshots.
type InventoryCheckHandler struct {
	service inventoryCheckService
}

// NewInventoryCheckHandler builds a new handler.
func NewInventoryCheckHandler(service inventoryCheckService) *InventoryCheckHandler {
	return &InventoryCheckHandler{service: service}
}

// Create godoc
// @Summary Record an inventory check
// @Tags InventoryChecks
// @Accept json
// @Produce json
// @Param payload body dto.CreateInventoryCheckRequest true "Inventory check"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /inventory-checks [post]
func (h *InventoryCheckHandler) Create(c *gin.Context) {
	var req dto.CreateInventoryCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Missing or invalid input fields"))
		return
	}
	check, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, check)
}

// List godoc
// @Summary List inventory checks, newest first
// @Tags InventoryChecks
// @Produce json
// @Param limit query int false "Maximum number of entries"
// @Success 200 {object} response.Envelope
// @Router /inventory-checks [get]
func (h *InventoryCheckHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 {
		limit = 0
	}
	h.list(c, limit)
}

// Public godoc
// @Summary Most recent inventory checks
// @Tags InventoryChecks
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /inventory-checks/public [get]
func (h *InventoryCheckHandler) Public(c *gin.Context) {
	h.list(c, service.PublicInventoryCheckLimit)
}

func (h *InventoryCheckHandler) list(c *gin.Context, limit int) {
	checks, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, checks, nil)
}
