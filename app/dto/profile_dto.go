package dto

import "time"

// ProfileDTO represents the signed-in user's profile
type ProfileDTO struct {
	ID          uint       `json:"id"`
	UUID        string     `json:"uuid"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	Role        string     `json:"role"`
	Provider    string     `json:"provider"`
	IsActive    *bool      `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GetProfileResponse wraps the profile payload
type GetProfileResponse struct {
	Message string     `json:"message"`
	User    ProfileDTO `json:"user"`
}
