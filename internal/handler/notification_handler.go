package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-inventory-api/internal/dto"
	"github.com/noah-isme/facility-inventory-api/internal/service"
	appErrors "github.com/noah-isme/facility-inventory-api/pkg/errors"
	"github.com/noah-isme/facility-inventory-api/pkg/response"
)

type emsAlerter interface {
	EMSAlert(ctx context.Context, actor service.Actor, req dto.EMSAlertRequest) error
}

// NotificationHandler exposes manual escalations.
type NotificationHandler struct {
	alerts emsAlerter
}

// NewNotificationHandler builds a new handler.
func NewNotificationHandler(alerts emsAlerter) *NotificationHandler {
	return &NotificationHandler{alerts: alerts}
}

// EMSAlert godoc
// @Summary Escalate an unreturned item to EMS
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body dto.EMSAlertRequest true "Alert"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notifications/ems-alert [post]
func (h *NotificationHandler) EMSAlert(c *gin.Context) {
	var req dto.EMSAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid alert payload"))
		return
	}
	if err := h.alerts.EMSAlert(c.Request.Context(), actorFromContext(c), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"message": "EMS alert queued"}, nil)
}
