package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a TEXT/JSON column into dest. NULL and empty values leave dest untouched.
func scanJSON(src interface{}, dest interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// valueJSON encodes v as a string so TEXT columns accept it on every driver.
func valueJSON(v interface{}) (driver.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Barcodes is a list of item barcodes stored as a JSON array.
type Barcodes []string

// Scan implements sql.Scanner.
func (b *Barcodes) Scan(src interface{}) error {
	var out []string
	if err := scanJSON(src, &out); err != nil {
		return fmt.Errorf("scan barcodes: %w", err)
	}
	*b = out
	return nil
}

// Value implements driver.Valuer.
func (b Barcodes) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	return valueJSON([]string(b))
}

// Contains reports whether barcode is in the list.
func (b Barcodes) Contains(barcode string) bool {
	for _, v := range b {
		if v == barcode {
			return true
		}
	}
	return false
}
