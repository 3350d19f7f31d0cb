package models

import (
	"strings"
	"time"
)

// ItemState is the single status derived from an item's flags.
type ItemState string

const (
	StateAvailable   ItemState = "available"
	StateCheckedOut  ItemState = "checked_out"
	StateMissing     ItemState = "missing"
	StateBroken      ItemState = "broken"
	StateMaintenance ItemState = "maintenance"
	StateArchived    ItemState = "archived"
)

// IssueType is a condition an item can be reported with.
type IssueType string

const (
	IssueMissing IssueType = "missing"
	IssueBroken  IssueType = "broken"
)

// ParseIssueType accepts missing or broken in any casing.
func ParseIssueType(raw string) (IssueType, bool) {
	switch IssueType(strings.ToLower(strings.TrimSpace(raw))) {
	case IssueMissing:
		return IssueMissing, true
	case IssueBroken:
		return IssueBroken, true
	}
	return "", false
}

// ResolutionType closes an open issue.
type ResolutionType string

const (
	ResolutionFound ResolutionType = "found"
	ResolutionFixed ResolutionType = "fixed"
)

// State derives the status with precedence archived > maintenance > missing > broken > checked_out > available.
func (i *Item) State() ItemState {
	switch {
	case i.Archive:
		return StateArchived
	case i.Maintenance:
		return StateMaintenance
	case i.IsMissing:
		return StateMissing
	case i.IsBroken:
		return StateBroken
	case !i.IsAvailable || i.CheckedOutBy != nil:
		return StateCheckedOut
	default:
		return StateAvailable
	}
}

// HasOpenReport reports whether an unresolved report_issue entry remains in the log.
func (i *Item) HasOpenReport() bool {
	for _, entry := range i.Logs {
		if entry.Action == ActionReportIssue {
			return true
		}
	}
	return false
}

func (i *Item) hasConditionFlag() bool {
	return i.IsMissing || i.IsBroken || i.Maintenance || i.Archive
}

// NewLogEntry builds a history entry stamped with at in UTC.
func NewLogEntry(action LogAction, user string, at time.Time) LogEntry {
	return LogEntry{Action: action, User: user, Timestamp: at.UTC()}
}

// CheckOut hands the item to holder.
func (i *Item) CheckOut(holder string, entry LogEntry) {
	i.IsAvailable = false
	i.CheckedOutBy = &holder
	i.Logs = append(i.Logs, entry)
}

// CheckOutWithBag hands a tech bag part out together with its bag.
func (i *Item) CheckOutWithBag(holder, bagBarcode string, entry LogEntry) {
	i.CheckOut(holder, entry)
	i.BelongsToTechBag = &bagBarcode
}

// Release returns the item from its holder. It goes back on the shelf only when no condition flag is set.
func (i *Item) Release(entry LogEntry) {
	i.CheckedOutBy = nil
	i.BelongsToTechBag = nil
	i.IsAvailable = !i.hasConditionFlag()
	i.Logs = append(i.Logs, entry)
}

// MarkMissing flags a part that did not come back with its bag.
func (i *Item) MarkMissing(entry LogEntry) {
	i.IsMissing = true
	i.IsAvailable = false
	i.CheckedOutBy = nil
	i.BelongsToTechBag = nil
	i.Logs = append(i.Logs, entry)
}

// ReportIssue raises the flag for issue and withdraws the item from circulation.
func (i *Item) ReportIssue(issue IssueType, entry LogEntry) {
	switch issue {
	case IssueMissing:
		i.IsMissing = true
	case IssueBroken:
		i.IsBroken = true
	}
	i.IsAvailable = false
	i.Logs = append(i.Logs, entry)
}

// ResolveIssue archives open report entries into ResolvedIssues, clears the matching flag and returns the item.
func (i *Item) ResolveIssue(resolution ResolutionType, actor string, at time.Time) {
	at = at.UTC()
	kept := make(LogEntries, 0, len(i.Logs))
	for _, entry := range i.Logs {
		if entry.Action != ActionReportIssue {
			kept = append(kept, entry)
			continue
		}
		resolvedAt := at
		entry.Resolved = true
		entry.ResolvedBy = actor
		entry.ResolvedAt = &resolvedAt
		i.ResolvedIssues = append(i.ResolvedIssues, entry)
	}
	i.Logs = kept

	action := ActionMarkFixed
	if resolution == ResolutionFound {
		i.IsMissing = false
		action = ActionMarkedFound
	} else {
		i.IsBroken = false
	}
	i.Logs = append(i.Logs, NewLogEntry(action, actor, at))
	i.Release(NewLogEntry(ActionCheckIn, actor, at))
}

// SetArchive moves the item out of (or back into) the active fleet.
func (i *Item) SetArchive(on bool, actor string, at time.Time) {
	if on {
		i.Archive = true
		i.IsMissing = false
		i.IsBroken = false
		i.Maintenance = false
		i.IsAvailable = false
		i.Logs = append(i.Logs, NewLogEntry(ActionArchived, actor, at))
		return
	}
	i.Archive = false
	i.IsAvailable = i.CheckedOutBy == nil && !i.hasConditionFlag()
	i.Logs = append(i.Logs, NewLogEntry(ActionUnarchived, actor, at))
}

// SetMaintenance puts the item under (or takes it out of) maintenance.
func (i *Item) SetMaintenance(on bool, actor string, at time.Time) {
	if on {
		i.Maintenance = true
		i.IsMissing = false
		i.IsBroken = false
		i.IsAvailable = false
		i.Logs = append(i.Logs, NewLogEntry(ActionMaintenanceOn, actor, at))
		return
	}
	i.Maintenance = false
	i.IsAvailable = i.CheckedOutBy == nil && !i.hasConditionFlag()
	i.Logs = append(i.Logs, NewLogEntry(ActionMaintenanceOff, actor, at))
}

// AttachChairs records the chairs that left with a mall table.
func (i *Item) AttachChairs(barcodes []string) {
	i.MallChairRefs = append(Barcodes{}, barcodes...)
}

// DetachChairs clears the chair references and returns them.
func (i *Item) DetachChairs() []string {
	chairs := []string(i.MallChairRefs)
	i.MallChairRefs = Barcodes{}
	return chairs
}
