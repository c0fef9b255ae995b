package models

import (
	"time"

	"github.com/google/uuid"
)

// UserSession represents one authenticated device/session for a user
type UserSession struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	CorrelationID  uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"correlation_id"`
	UserID         uint       `gorm:"not null;index:idx_sessions_user_id" json:"user_id"`
	SessionToken   string     `gorm:"uniqueIndex;not null;size:512" json:"session_token"`
	RefreshToken   *string    `gorm:"size:512" json:"refresh_token,omitempty"`
	IPAddress      *string    `gorm:"type:inet" json:"ip_address,omitempty"`
	UserAgent      *string    `gorm:"type:text" json:"user_agent,omitempty"`
	IsActive       *bool      `gorm:"default:true;index:idx_sessions_active" json:"is_active"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastAccessedAt time.Time  `gorm:"autoCreateTime" json:"last_accessed_at"`
	ExpiresAt      time.Time  `gorm:"not null;index:idx_sessions_expires_at" json:"expires_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName returns the table name for the UserSession model
func (UserSession) TableName() string {
	return "user_sessions"
}

// IsExpired checks if the session has expired
func (s *UserSession) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// IsValid checks if the session is active and not expired
func (s *UserSession) IsValid() bool {
	return s.IsActive != nil && *s.IsActive && !s.IsExpired() && s.RevokedAt == nil
}

// UserSessionFilter represents filter criteria for session queries
type UserSessionFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UserID        *uint      `json:"user_id,omitempty"`
	SessionToken  *string    `json:"session_token,omitempty"`
	RefreshToken  *string    `json:"refresh_token,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	ExpiresAfter  *time.Time `json:"expires_after,omitempty"`
	ExpiresBefore *time.Time `json:"expires_before,omitempty"`
}
