package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Building is one of the two facility locations that own inventory.
type Building string

const (
	BuildingMemorialUnion   Building = "Memorial Union"
	BuildingStudentPavilion Building = "Student Pavilion"
)

// Valid reports whether b names a known building.
func (b Building) Valid() bool {
	return b == BuildingMemorialUnion || b == BuildingStudentPavilion
}

// ItemCategory classifies inventory. Tech Bag and Mall Table are composites.
type ItemCategory string

const (
	CategoryMic           ItemCategory = "Mic"
	CategoryLavaliers     ItemCategory = "Lavaliers"
	CategoryHDMICable     ItemCategory = "HDMI Cable"
	CategoryTechBag       ItemCategory = "Tech Bag"
	CategoryClicker       ItemCategory = "Clicker"
	CategoryTypeCAdapters ItemCategory = "Type C Adapters"
	CategoryMallTable     ItemCategory = "Mall Table"
	CategoryMallChair     ItemCategory = "Mall Chair"
	CategoryEasels        ItemCategory = "Easels"
)

var knownCategories = map[ItemCategory]struct{}{
	CategoryMic: {}, CategoryLavaliers: {}, CategoryHDMICable: {}, CategoryTechBag: {}, CategoryClicker: {},
	CategoryTypeCAdapters: {}, CategoryMallTable: {}, CategoryMallChair: {}, CategoryEasels: {},
}

// Valid reports whether c is a known category.
func (c ItemCategory) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// LogAction names an entry in an item's history.
type LogAction string

const (
	ActionCheckOut       LogAction = "check_out"
	ActionCheckIn        LogAction = "check_in"
	ActionReportIssue    LogAction = "report_issue"
	ActionMarkedFound    LogAction = "marked_found"
	ActionMarkFixed      LogAction = "mark_fixed"
	ActionMarkedMissing  LogAction = "marked_missing"
	ActionArchived       LogAction = "archived"
	ActionUnarchived     LogAction = "unarchived"
	ActionMaintenanceOn  LogAction = "maintenance_on"
	ActionMaintenanceOff LogAction = "maintenance_off"
	ActionNote           LogAction = "note"
)

// LogEntry is one record in an item's history.
type LogEntry struct {
	Action      LogAction  `json:"action"`
	User        string     `json:"user"`
	Timestamp   time.Time  `json:"timestamp"`
	Room        string     `json:"room,omitempty"`
	ClientName  string     `json:"clientName,omitempty"`
	EventNumber string     `json:"eventNumber,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Resolved    bool       `json:"resolved,omitempty"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

// LogEntries is an ordered history stored as a JSON array.
type LogEntries []LogEntry

// Scan implements sql.Scanner.
func (l *LogEntries) Scan(src interface{}) error {
	var out []LogEntry
	if err := scanJSON(src, &out); err != nil {
		return fmt.Errorf("scan log entries: %w", err)
	}
	*l = out
	return nil
}

// Value implements driver.Valuer.
func (l LogEntries) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return valueJSON([]LogEntry(l))
}

// TechBagContents holds weak references (barcodes) to the parts bundled in a tech bag.
type TechBagContents struct {
	HDMICable *string `json:"hdmiCable"`
	Clicker   *string `json:"clicker"`
	Adapter   *string `json:"adapter"`
}

// Parts returns the configured part barcodes in hdmi, clicker, adapter order.
func (c TechBagContents) Parts() []string {
	parts := make([]string, 0, 3)
	for _, ref := range []*string{c.HDMICable, c.Clicker, c.Adapter} {
		if ref != nil && strings.TrimSpace(*ref) != "" {
			parts = append(parts, *ref)
		}
	}
	return parts
}

// Scan implements sql.Scanner.
func (c *TechBagContents) Scan(src interface{}) error {
	var out TechBagContents
	if err := scanJSON(src, &out); err != nil {
		return fmt.Errorf("scan tech bag contents: %w", err)
	}
	*c = out
	return nil
}

// Value implements driver.Valuer.
func (c TechBagContents) Value() (driver.Value, error) {
	return valueJSON(c)
}

// Item is a single tracked asset.
type Item struct {
	ID               string          `db:"id" json:"id"`
	Barcode          string          `db:"barcode" json:"barcode"`
	Name             string          `db:"name" json:"name"`
	Building         Building        `db:"building" json:"building"`
	Category         ItemCategory    `db:"category" json:"category"`
	IsAvailable      bool            `db:"is_available" json:"isAvailable"`
	IsMissing        bool            `db:"is_missing" json:"isMissing"`
	IsBroken         bool            `db:"is_broken" json:"isBroken"`
	Maintenance      bool            `db:"maintenance" json:"maintenance"`
	Archive          bool            `db:"archive" json:"archive"`
	CheckedOutBy     *string         `db:"checked_out_by" json:"checkedOutBy"`
	BelongsToTechBag *string         `db:"belongs_to_tech_bag" json:"belongsToTechBag"`
	TechBagContents  TechBagContents `db:"tech_bag_contents" json:"techBagContents"`
	MallChairRefs    Barcodes        `db:"mall_chair_refs" json:"mallChairRefs"`
	Logs             LogEntries      `db:"logs" json:"logs"`
	ResolvedIssues   LogEntries      `db:"resolved_issues" json:"resolvedIssues"`
	Version          int             `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// MarshalJSON adds the derived state to the wire representation.
func (i Item) MarshalJSON() ([]byte, error) {
	type plain Item
	return json.Marshal(struct {
		plain
		State         ItemState `json:"state"`
		HasOpenReport bool      `json:"hasOpenReport"`
	}{plain: plain(i), State: i.State(), HasOpenReport: i.HasOpenReport()})
}

// IsTechBag reports whether the item is a tech bag composite.
func (i *Item) IsTechBag() bool { return i.Category == CategoryTechBag }

// IsMallTable reports whether the item is a mall table composite.
func (i *Item) IsMallTable() bool { return i.Category == CategoryMallTable }

// ItemFilter captures list query parameters.
type ItemFilter struct {
	Building string
	Category string
	Barcode  string
	Status   string
}

// Item list status filters.
const (
	StatusFilterAvailable  = "Available"
	StatusFilterCheckedOut = "CheckedOut"
)

// ItemSummary is the lightweight name lookup projection.
type ItemSummary struct {
	Barcode string `db:"barcode" json:"barcode"`
	Name    string `db:"name" json:"name"`
}

// UserLogEntry is a log entry annotated with the item it belongs to.
type UserLogEntry struct {
	LogEntry
	Barcode  string `json:"barcode"`
	ItemName string `json:"itemName"`
}
