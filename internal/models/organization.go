package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// ReservationAction distinguishes reservation entry variants.
type ReservationAction string

const (
	ReservationCheckIn  ReservationAction = "check_in"
	ReservationCheckOut ReservationAction = "check_out"
	ReservationNoShow   ReservationAction = "no_show"
)

// ItemRef is a weak pointer to an item captured on a reservation.
type ItemRef struct {
	Barcode string `json:"barcode"`
	ItemRef string `json:"itemRef,omitempty"`
}

// Reservation is one entry in an organization's tabling log.
type Reservation struct {
	ID           string            `json:"id"`
	Action       ReservationAction `json:"action"`
	ClientName   string            `json:"clientName"`
	TablingSpot  string            `json:"tablingSpot"`
	EventNumber  string            `json:"eventNumber"`
	CheckInTime  *time.Time        `json:"checkInTime,omitempty"`
	CheckOutTime *time.Time        `json:"checkOutTime,omitempty"`
	RangeStart   *time.Time        `json:"rangeStart,omitempty"`
	RangeEnd     *time.Time        `json:"rangeEnd,omitempty"`
	User         string            `json:"user"`
	Table        *ItemRef          `json:"table,omitempty"`
	Chairs       []ItemRef         `json:"chairs,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	NoShow       bool              `json:"noShow"`
	Timestamp    time.Time         `json:"timestamp"`
}

// IsOpen reports whether the entry is a check-in not yet closed.
func (r Reservation) IsOpen() bool {
	return r.Action == ReservationCheckIn && r.CheckOutTime == nil
}

// Barcodes lists the table followed by the chairs captured on the entry.
func (r Reservation) Barcodes() []string {
	out := make([]string, 0, len(r.Chairs)+1)
	if r.Table != nil && r.Table.Barcode != "" {
		out = append(out, r.Table.Barcode)
	}
	for _, chair := range r.Chairs {
		out = append(out, chair.Barcode)
	}
	return out
}

// Reservations is the embedded reservation log stored as a JSON array.
type Reservations []Reservation

// Scan implements sql.Scanner.
func (r *Reservations) Scan(src interface{}) error {
	var out []Reservation
	if err := scanJSON(src, &out); err != nil {
		return fmt.Errorf("scan reservations: %w", err)
	}
	*r = out
	return nil
}

// Value implements driver.Valuer.
func (r Reservations) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	return valueJSON([]Reservation(r))
}

// Organization is a student organization that reserves tabling spots.
type Organization struct {
	ID           string       `db:"id" json:"id"`
	Name         string       `db:"name" json:"name"`
	NameKey      string       `db:"name_key" json:"nameKey"`
	Active       bool         `db:"active" json:"active"`
	Reservations Reservations `db:"reservations" json:"reservations"`
	Version      int          `db:"version" json:"version"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// OrganizationKey canonicalises a display name for lookups: lowercased with whitespace runs collapsed.
// Punctuation is kept so "C++ Club" and "C Club" stay distinct.
func OrganizationKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// OpenReservation returns the index of the first open entry for eventNumber, or -1.
func (o *Organization) OpenReservation(eventNumber string) int {
	for idx, entry := range o.Reservations {
		if entry.IsOpen() && entry.EventNumber == eventNumber {
			return idx
		}
	}
	return -1
}

// ActiveReservation returns the first open entry in insertion order.
func (o *Organization) ActiveReservation() (Reservation, bool) {
	for _, entry := range o.Reservations {
		if entry.IsOpen() {
			return entry, true
		}
	}
	return Reservation{}, false
}

// OpenReservationForTable returns the open entry holding tableBarcode.
func (o *Organization) OpenReservationForTable(tableBarcode string) (Reservation, bool) {
	for _, entry := range o.Reservations {
		if entry.IsOpen() && entry.Table != nil && entry.Table.Barcode == tableBarcode {
			return entry, true
		}
	}
	return Reservation{}, false
}

// RefreshActive recomputes Active from the reservation log.
func (o *Organization) RefreshActive() {
	_, o.Active = o.ActiveReservation()
}

// MergedReservation is the reporting row folded from paired entries.
type MergedReservation struct {
	Organization string     `json:"organization"`
	ClientName   string     `json:"clientName"`
	TablingSpot  string     `json:"tablingSpot"`
	EventNumber  string     `json:"eventNumber"`
	User         string     `json:"user"`
	CheckInTime  *time.Time `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
	RangeStart   *time.Time `json:"rangeStart"`
	RangeEnd     *time.Time `json:"rangeEnd"`
	Table        *ItemRef   `json:"table"`
	Chairs       []ItemRef  `json:"chairs"`
	Notes        string     `json:"notes"`
	NoShow       bool       `json:"noShow"`
}

type mergeKey struct {
	client, event, spot, user string
}

// MergeReservations folds an organization's entries into one row per (client, event, spot, user).
// Rows keep first-seen order and the input is never modified.
func MergeReservations(org Organization) []MergedReservation {
	rows := make([]MergedReservation, 0, len(org.Reservations))
	index := make(map[mergeKey]int, len(org.Reservations))

	for _, entry := range org.Reservations {
		key := mergeKey{entry.ClientName, entry.EventNumber, entry.TablingSpot, entry.User}
		pos, seen := index[key]
		if !seen {
			rows = append(rows, MergedReservation{
				Organization: org.Name,
				ClientName:   entry.ClientName,
				TablingSpot:  entry.TablingSpot,
				EventNumber:  entry.EventNumber,
				User:         entry.User,
				Chairs:       []ItemRef{},
			})
			pos = len(rows) - 1
			index[key] = pos
		}
		row := &rows[pos]

		switch entry.Action {
		case ReservationCheckIn:
			row.CheckInTime = entry.CheckInTime
			row.RangeStart = entry.RangeStart
			row.RangeEnd = entry.RangeEnd
			row.Table = entry.Table
			row.Chairs = append([]ItemRef{}, entry.Chairs...)
			if entry.CheckOutTime != nil {
				row.CheckOutTime = entry.CheckOutTime
			}
		case ReservationCheckOut:
			row.CheckOutTime = entry.CheckOutTime
			if row.Table == nil {
				row.Table = entry.Table
				row.Chairs = append([]ItemRef{}, entry.Chairs...)
			}
		case ReservationNoShow:
			row.NoShow = true
			if row.RangeStart == nil {
				row.RangeStart = entry.RangeStart
				row.RangeEnd = entry.RangeEnd
			}
		}
		if entry.Notes != "" {
			row.Notes = entry.Notes
		}
	}

	return rows
}
