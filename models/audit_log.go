package models

import (
	"encoding/json"
	"time"
)

// AuditLog records security and workflow events for compliance review.
// UserID is nil for events that fire before a user is identified.
type AuditLog struct {
	ID           uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       *uint           `gorm:"index:idx_audit_user_id" json:"user_id,omitempty"`
	Action       string          `gorm:"size:64;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:64" json:"request_id,omitempty"`
	Metadata     json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"not null;default:false" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"autoCreateTime;index:idx_audit_created_at" json:"created_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Audit actions
const (
	AuditActionSignupCompleted     = "signup_completed"
	AuditActionLoginSuccess        = "login_success"
	AuditActionLoginFailed         = "login_failed"
	AuditActionGoogleLoginSuccess  = "google_login_success"
	AuditActionGoogleLoginRejected = "google_login_rejected"
	AuditActionLogout              = "logout"
	AuditActionTokenRefreshed      = "token_refreshed"
	AuditActionTasksSubmitted      = "tasks_submitted"
	AuditActionTaskAllocationFail  = "task_allocation_failed"
	AuditActionTaskUpdated         = "task_updated"
	AuditActionTaskUpdateFailed    = "task_update_failed"
	AuditActionTasksExported       = "tasks_exported"
)

// IsFailed checks if the audited action failed
func (a *AuditLog) IsFailed() bool {
	return a.Success == nil || !*a.Success
}

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UserID        *uint      `json:"user_id,omitempty"`
	Action        *string    `json:"action,omitempty"`
	Success       *bool      `json:"success,omitempty"`
	RequestID     *string    `json:"request_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
