package dto

import "time"

// Export datasets and formats.
const (
	ExportDatasetTablingLogs     = "tabling_logs"
	ExportDatasetInventoryChecks = "inventory_checks"
	ExportDatasetItemHistory     = "item_history"

	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// CreateExportRequest asks for a rendered report.
type CreateExportRequest struct {
	Dataset string `json:"dataset" validate:"required,oneof=tabling_logs inventory_checks item_history"`
	Format  string `json:"format" validate:"required,oneof=csv pdf"`
	Barcode string `json:"barcode" validate:"required_if=Dataset item_history"`
}

// ExportResponse points at the rendered file.
type ExportResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Rows        int       `json:"rows"`
}
