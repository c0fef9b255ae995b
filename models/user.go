package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles. Clients submit unlock requests; support staff triage them.
const (
	RoleClient  = "client"
	RoleSupport = "support"
)

// Sign-in providers.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// User is an account that can sign in to the unlock desk.
//
// PasswordHash is empty for Google-provisioned accounts. GoogleSubject is
// the stable `sub` claim from Google and is set only for those accounts.
type User struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	Email         string     `gorm:"uniqueIndex;not null;size:255" json:"email"`
	DisplayName   string     `gorm:"size:255;not null" json:"display_name"`
	PasswordHash  string     `gorm:"size:255;not null;default:''" json:"-"`
	Role          string     `gorm:"size:32;not null;index:idx_users_role" json:"role"`
	Provider      string     `gorm:"size:32;not null;default:'password'" json:"provider"`
	GoogleSubject *string    `gorm:"size:255;uniqueIndex" json:"-"`
	IsActive      *bool      `gorm:"default:true;index:idx_users_active" json:"is_active"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index:idx_users_created_at" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Sessions []UserSession `gorm:"foreignKey:UserID" json:"sessions,omitempty"`
}

// TableName returns the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsSupport reports whether the account may triage tasks.
func (u *User) IsSupport() bool {
	return u.Role == RoleSupport
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	Email         *string    `json:"email,omitempty"`
	Role          *string    `json:"role,omitempty"`
	Provider      *string    `json:"provider,omitempty"`
	GoogleSubject *string    `json:"google_subject,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
