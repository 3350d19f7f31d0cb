package dto

// EMSAlertRequest escalates an unreturned item to EMS staff.
type EMSAlertRequest struct {
	Barcode string `json:"barcode" validate:"required"`
	Message string `json:"message" validate:"max=2000"`
}
