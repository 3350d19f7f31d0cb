package models

import "time"

// InventoryCheck is an immutable shift verification snapshot.
type InventoryCheck struct {
	ID           string    `db:"id" json:"id"`
	User         string    `db:"user_name" json:"user"`
	Building     Building  `db:"building" json:"building"`
	CheckedAt    time.Time `db:"checked_at" json:"checkedAt"`
	Confirmed    bool      `db:"confirmed" json:"confirmed"`
	PresentItems Barcodes  `db:"present_items" json:"presentItems"`
	MissingItems Barcodes  `db:"missing_items" json:"missingItems"`
	Notes        string    `db:"notes" json:"notes"`
}
