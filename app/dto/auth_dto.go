// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"time"
)

// SignupRequest represents the request payload for creating a client account
type SignupRequest struct {
	Email           string `json:"email" validate:"required,email,max=255" example:"requester@example.com"`
	DisplayName     string `json:"display_name" validate:"required,min=1,max=255" example:"Hanako Sato"`
	Password        string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password" example:"SecurePass123!"`
}

// LoginRequest represents the request payload for password login.
// Support accounts must also solve a rotate captcha.
type LoginRequest struct {
	Email         string   `json:"email" validate:"required,email,max=255" example:"staff@example.co.jp"`
	Password      string   `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
	CaptchaID     *string  `json:"captcha_id,omitempty" validate:"omitempty,max=64"`
	CaptchaAngle  *float64 `json:"captcha_angle,omitempty" validate:"omitempty,min=0,max=360"`
}

// GoogleLoginRequest carries the ID token obtained from Google sign-in
type GoogleLoginRequest struct {
	IDToken string `json:"id_token" validate:"required,min=16" example:"eyJhbGciOiJSUzI1NiIs..."`
}

// RefreshTokenRequest represents the request payload for token refresh
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required" example:"eyJhbGciOiJIUzI1NiIs..."`
}

// UserDTO represents user information returned by auth endpoints
type UserDTO struct {
	ID          uint       `json:"id" example:"123"`
	UUID        string     `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string     `json:"email" example:"requester@example.com"`
	DisplayName string     `json:"display_name" example:"Hanako Sato"`
	Role        string     `json:"role" example:"client"`
	Provider    string     `json:"provider" example:"password"`
	IsActive    *bool      `json:"is_active" example:"true"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SessionDTO represents the issued token pair
type SessionDTO struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type" example:"Bearer"`
	ExpiresIn    int       `json:"expires_in" example:"86400"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponse is returned by signup, login and google login
type AuthResponse struct {
	User    UserDTO    `json:"user"`
	Session SessionDTO `json:"session"`
}

// LogoutRequest represents the request payload for logout
type LogoutRequest struct {
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// CaptchaResponse carries a generated rotate captcha challenge
type CaptchaResponse struct {
	CaptchaID   string `json:"captcha_id"`
	MasterImage string `json:"master_image"`
	ThumbImage  string `json:"thumb_image"`
	ThumbSize   int    `json:"thumb_size"`
	ExpiresIn   int    `json:"expires_in" example:"120"`
}
