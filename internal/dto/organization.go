package dto

import (
	"time"

	"github.com/noah-isme/facility-inventory-api/internal/models"
)

// BarcodeRef names an item by barcode.
type BarcodeRef struct {
	Barcode string `json:"barcode"`
}

// OrganizationCheckInRequest opens a tabling reservation.
type OrganizationCheckInRequest struct {
	Organization string       `json:"organization" validate:"required,max=200"`
	ClientName   string       `json:"clientName" validate:"max=200"`
	TablingSpot  string       `json:"tablingSpot" validate:"max=100"`
	EventNumber  string       `json:"eventNumber" validate:"required,max=64"`
	CheckInTime  *time.Time   `json:"checkInTime"`
	RangeStart   *time.Time   `json:"rangeStart"`
	RangeEnd     *time.Time   `json:"rangeEnd"`
	Table        *BarcodeRef  `json:"table"`
	Chairs       []BarcodeRef `json:"chairs"`
}

// OrganizationCheckInResult reports the stored entry and any barcodes that did not resolve.
type OrganizationCheckInResult struct {
	Organization    string             `json:"organization"`
	Reservation     models.Reservation `json:"reservation"`
	DroppedBarcodes []string           `json:"droppedBarcodes"`
}

// OrganizationCheckOutRequest closes the open reservation for an event.
type OrganizationCheckOutRequest struct {
	Organization string `json:"organization" validate:"required"`
	EventNumber  string `json:"eventNumber" validate:"required"`
	Notes        string `json:"notes" validate:"max=1000"`
}

// OrganizationNoShowRequest logs a reservation that never checked in.
type OrganizationNoShowRequest struct {
	Organization string     `json:"organization" validate:"required,max=200"`
	ClientName   string     `json:"clientName" validate:"max=200"`
	EventNumber  string     `json:"eventNumber" validate:"required,max=64"`
	TablingSpot  string     `json:"tablingSpot" validate:"max=100"`
	RangeStart   *time.Time `json:"rangeStart"`
	RangeEnd     *time.Time `json:"rangeEnd"`
	Notify       bool       `json:"notify"`
}

// ActiveReservationResponse pairs an organization with its open reservation.
type ActiveReservationResponse struct {
	Organization string             `json:"organization"`
	Reservation  models.Reservation `json:"reservation"`
}
