package dto

import "github.com/noah-isme/facility-inventory-api/internal/models"

// CreateItemRequest registers a new asset.
type CreateItemRequest struct {
	Barcode         string                  `json:"barcode" validate:"required,max=64"`
	Name            string                  `json:"name" validate:"required,max=128"`
	Building        models.Building         `json:"building" validate:"required"`
	Category        models.ItemCategory     `json:"category" validate:"required"`
	TechBagContents *models.TechBagContents `json:"techBagContents"`
}

// UpdateItemRequest applies admin edits. Nil fields are left unchanged.
type UpdateItemRequest struct {
	Barcode         *string                 `json:"barcode" validate:"omitempty,max=64"`
	Name            *string                 `json:"name" validate:"omitempty,max=128"`
	Building        *models.Building        `json:"building"`
	Category        *models.ItemCategory    `json:"category"`
	TechBagContents *models.TechBagContents `json:"techBagContents"`
	Archive         *bool                   `json:"archive"`
	Maintenance     *bool                   `json:"maintenance"`
	Logs            []AddLogRequest         `json:"logs" validate:"dive"`
}

// AddLogRequest appends a free-form history entry.
type AddLogRequest struct {
	Action      string `json:"action" validate:"required,max=64"`
	Room        string `json:"room"`
	ClientName  string `json:"clientName"`
	EventNumber string `json:"eventNumber"`
	Notes       string `json:"notes" validate:"max=1000"`
}

// CheckOutRequest hands an item out to the caller.
type CheckOutRequest struct {
	Barcode             string          `json:"barcode" validate:"required"`
	Room                string          `json:"room"`
	ClientName          string          `json:"clientName"`
	EventNumber         string          `json:"eventNumber"`
	TechBagVerification map[string]bool `json:"techBagVerification"`
	MallChairBarcodes   []string        `json:"mallChairBarcodes"`
}

// CheckInRequest returns an item. Tech bag parts are reconciled through the two lists.
type CheckInRequest struct {
	Barcode       string   `json:"barcode" validate:"required"`
	MarkMissing   []string `json:"markMissing"`
	MarkCheckedIn []string `json:"markCheckedIn"`
}

// CheckInResult is the outcome of a check-in.
type CheckInResult struct {
	Item              *models.Item `json:"item"`
	UnreconciledParts []string     `json:"unreconciledParts"`
}

// ReportIssueRequest flags an item missing or broken.
type ReportIssueRequest struct {
	Barcode     string `json:"barcode" validate:"required"`
	IssueType   string `json:"issueType" validate:"required"`
	Description string `json:"description" validate:"max=1000"`
}

// ResolveIssueRequest closes open reports on an item.
type ResolveIssueRequest struct {
	Barcode        string `json:"barcode" validate:"required"`
	ResolutionType string `json:"resolutionType" validate:"required"`
}

// ToggleRequest switches archive or maintenance on or off.
type ToggleRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ItemDetail is an item with its composite parts resolved.
type ItemDetail struct {
	Item         *models.Item  `json:"item"`
	TechBagParts []models.Item `json:"techBagParts"`
	Chairs       []models.Item `json:"chairs"`
}

// UnreturnedItem is an item still held past its check-out.
type UnreturnedItem struct {
	Barcode      string              `json:"barcode"`
	Name         string              `json:"name"`
	Building     models.Building     `json:"building"`
	Category     models.ItemCategory `json:"category"`
	CheckedOutBy string              `json:"checkedOutBy"`
	LastCheckOut *models.LogEntry    `json:"lastCheckOut"`
}
