package dto

import (
	"time"

	"github.com/noah-isme/facility-inventory-api/internal/models"
)

// CreateInventoryCheckRequest records a shift verification.
type CreateInventoryCheckRequest struct {
	Building     models.Building `json:"building" validate:"required"`
	CheckedAt    *time.Time      `json:"checkedAt"`
	Confirmed    bool            `json:"confirmed"`
	PresentItems []string        `json:"presentItems" validate:"dive,required"`
	MissingItems []string        `json:"missingItems" validate:"dive,required"`
	Notes        string          `json:"notes" validate:"max=2000"`
}
