package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/models"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
	"github.com/noah-isme/facility-inventory-api/pkg/response"
)

type itemService interface {
	List(ctx context.Context, filter models.ItemFilter) ([]models.Item, error)
	Get(ctx context.Context, barcode string) (*dto.ItemDetail, error)
	Lookup(ctx context.Context, barcodes []string) ([]models.ItemSummary, error)
	Logs(ctx context.Context, barcode string) ([]models.LogEntry, error)
	MyLogs(ctx context.Context, username string) ([]models.UserLogEntry, error)
	Unreturned(ctx context.Context, olderThan time.Duration) ([]dto.UnreturnedItem, error)
	Create(ctx context.Context, actor service.Actor, req dto.CreateItemRequest) (*models.Item, error)
	Update(ctx context.Context, actor service.Actor, id string, req dto.UpdateItemRequest) (*models.Item, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	AddLog(ctx context.Context, actor service.Actor, barcode string, req dto.AddLogRequest) (*models.LogEntry, error)
	SetArchive(ctx context.Context, actor service.Actor, barcode string, on bool) (*models.Item, error)
	SetMaintenance(ctx context.Context, actor service.Actor, barcode string, on bool) (*models.Item, error)
	CheckOut(ctx context.Context, actor service.Actor, req dto.CheckOutRequest) (*models.Item, error)
	CheckIn(ctx context.Context, actor service.Actor, req dto.CheckInRequest) (*dto.CheckInResult, error)
	ReportIssue(ctx context.Context, actor service.Actor, req dto.ReportIssueRequest) (*models.Item, error)
	ResolveIssue(ctx context.Context, actor service.Actor, req dto.ResolveIssueRequest) (*models.Item, error)
}

// ItemHandler exposes the item state engine.
type ItemHandler struct {
	service itemService
}

// NewItemHandler builds a new handler.
func NewItemHandler(service itemService) *ItemHandler {
	return &ItemHandler{service: service}
}

// List godoc
// @Summary List items
// @Tags Items
// @Produce json
// @Param building query string false "Building"
// @Param category query string false "Category"
// @Param barcode query string false "Barcode substring"
// @Param status query string false "Available or CheckedOut"
// @Success 200 {object} response.Envelope
// @Router /items [get]
func (h *ItemHandler) List(c *gin.Context) {
	filter := models.ItemFilter{
		Building: c.Query("building"),
		Category: c.Query("category"),
		Barcode:  c.Query("barcode"),
		Status:   c.Query("status"),
	}
	items, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Lookup godoc
// @Summary Look up item names by barcode
// @Tags Items
// @Produce json
// @Param barcodes query string true "Comma separated barcodes"
// @Success 200 {object} response.Envelope
// @Router /items/lookup [get]
func (h *ItemHandler) Lookup(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("barcodes"))
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "barcodes query parameter is required"))
		return
	}
	items, err := h.service.Lookup(c.Request.Context(), strings.Split(raw, ","))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get item by barcode
// @Tags Items
// @Produce json
// @Param barcode path string true "Barcode"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /items/{barcode} [get]
func (h *ItemHandler) Get(c *gin.Context) {
	detail, err := h.service.Get(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Logs godoc
// @Summary Item history, newest first
// @Tags Items
// @Produce json
// @Param barcode path string true "Barcode"
// @Success 200 {object} response.Envelope
// @Router /items/{barcode}/logs [get]
func (h *ItemHandler) Logs(c *gin.Context) {
	logs, err := h.service.Logs(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// MyLogs godoc
// @Summary History entries made by the caller
// @Tags Items
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /items/my-logs [get]
func (h *ItemHandler) MyLogs(c *gin.Context) {
	actor := actorFromContext(c)
	if actor.Username == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	logs, err := h.service.MyLogs(c.Request.Context(), actor.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

// Unreturned godoc
// @Summary Items still checked out
// @Tags Items
// @Produce json
// @Param older_than query string false "Only items out longer than this duration, e.g. 24h"
// @Success 200 {object} response.Envelope
// @Router /items/unreturned [get]
func (h *ItemHandler) Unreturned(c *gin.Context) {
	var olderThan time.Duration
	if raw := c.Query("older_than"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "older_than must be a positive duration"))
			return
		}
		olderThan = parsed
	}
	items, err := h.service.Unreturned(c.Request.Context(), olderThan)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Register an item
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.CreateItemRequest true "Item payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /items [post]
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update an item
// @Tags Items
// @Accept json
// @Produce json
// @Param id path string true "Item ID"
// @Param payload body dto.UpdateItemRequest true "Item changes"
// @Success 200 {object} response.Envelope
// @Router /items/{id} [put]
func (h *ItemHandler) Update(c *gin.Context) {
	var req dto.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid item payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete an item
// @Tags Items
// @Param id path string true "Item ID"
// @Success 204
// @Router /items/{id} [delete]
func (h *ItemHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddLog godoc
// @Summary Append a history entry
// @Tags Items
// @Accept json
// @Produce json
// @Param barcode path string true "Barcode"
// @Param payload body dto.AddLogRequest true "Log entry"
// @Success 201 {object} response.Envelope
// @Router /items/{barcode}/log [post]
func (h *ItemHandler) AddLog(c *gin.Context) {
	var req dto.AddLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid log payload"))
		return
	}
	entry, err := h.service.AddLog(c.Request.Context(), actorFromContext(c), c.Param("barcode"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Archive godoc
// @Summary Toggle archive
// @Tags Items
// @Accept json
// @Produce json
// @Param barcode path string true "Barcode"
// @Param payload body dto.ToggleRequest true "Toggle"
// @Success 200 {object} response.Envelope
// @Router /items/{barcode}/archive [post]
func (h *ItemHandler) Archive(c *gin.Context) {
	h.toggle(c, h.service.SetArchive)
}

// Maintenance godoc
// @Summary Toggle maintenance
// @Tags Items
// @Accept json
// @Produce json
// @Param barcode path string true "Barcode"
// @Param payload body dto.ToggleRequest true "Toggle"
// @Success 200 {object} response.Envelope
// @Router /items/{barcode}/maintenance [post]
func (h *ItemHandler) Maintenance(c *gin.Context) {
	h.toggle(c, h.service.SetMaintenance)
}

func (h *ItemHandler) toggle(c *gin.Context, apply func(context.Context, service.Actor, string, bool) (*models.Item, error)) {
	var req dto.ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "enabled flag is required"))
		return
	}
	item, err := apply(c.Request.Context(), actorFromContext(c), c.Param("barcode"), *req.Enabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// CheckOut godoc
// @Summary Check an item out
// @Description Tech bags require every part verified. Mall tables take their chairs in the same request.
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.CheckOutRequest true "Check-out"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/check-out [post]
func (h *ItemHandler) CheckOut(c *gin.Context) {
	var req dto.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-out payload"))
		return
	}
	item, err := h.service.CheckOut(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// CheckIn godoc
// @Summary Check an item in
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.CheckInRequest true "Check-in"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /items/check-in [post]
func (h *ItemHandler) CheckIn(c *gin.Context) {
	var req dto.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid check-in payload"))
		return
	}
	result, err := h.service.CheckIn(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ReportIssue godoc
// @Summary Report an item missing or broken
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.ReportIssueRequest true "Issue"
// @Success 200 {object} response.Envelope
// @Router /items/report-issue [post]
func (h *ItemHandler) ReportIssue(c *gin.Context) {
	var req dto.ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid issue payload"))
		return
	}
	item, err := h.service.ReportIssue(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// ResolveIssue godoc
// @Summary Resolve open issue reports
// @Tags Items
// @Accept json
// @Produce json
// @Param payload body dto.ResolveIssueRequest true "Resolution"
// @Success 200 {object} response.Envelope
// @Router /items/resolve-issue [post]
func (h *ItemHandler) ResolveIssue(c *gin.Context) {
	var req dto.ResolveIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resolution payload"))
		return
	}
	item, err := h.service.ResolveIssue(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
