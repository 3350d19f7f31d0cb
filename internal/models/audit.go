package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin       = "LOGIN"
	AuditActionLogout      = "LOGOUT"
	AuditActionRefresh     = "TOKEN_REFRESH"
	AuditActionUserCreate  = "USER_CREATE"
	AuditActionUserDelete  = "USER_DELETE"
	AuditActionPassword    = "PASSWORD_CHANGE"
	AuditActionItemCreate  = "ITEM_CREATE"
	AuditActionItemUpdate  = "ITEM_UPDATE"
	AuditActionItemDelete  = "ITEM_DELETE"
	AuditActionResolve     = "ITEM_RESOLVE_ISSUE"
	AuditActionArchive     = "ITEM_ARCHIVE"
	AuditActionMaintenance = "ITEM_MAINTENANCE"
	AuditActionEMSAlert    = "EMS_ALERT"
	AuditActionExport      = "EXPORT_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  string    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
