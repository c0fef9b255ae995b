// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/keithshino/accountUnlock/app/dto"
	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/utils"
)

const RequestIDKey = "request_id"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// Actor identifies the authenticated caller of a flow operation.
type Actor struct {
	UserID      uint
	Email       string
	DisplayName string
	Role        string
}

// IsSupport reports whether the actor may triage tasks.
func (a Actor) IsSupport() bool {
	return a.Role == models.RoleSupport
}

// ToUserDTO converts a user model to its API representation
func ToUserDTO(user models.User) dto.UserDTO {
	return dto.UserDTO{
		ID:          user.ID,
		UUID:        user.UUID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Provider:    user.Provider,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
	}
}

// ToSessionDTO converts a session model to the issued token pair
func ToSessionDTO(session models.UserSession) dto.SessionDTO {
	refreshToken := ""
	if session.RefreshToken != nil {
		refreshToken = *session.RefreshToken
	}
	return dto.SessionDTO{
		AccessToken:  session.SessionToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    utils.AccessTokenTTLSeconds,
		ExpiresAt:    session.ExpiresAt,
	}
}

// ToTaskDTO converts a task model to its API representation
func ToTaskDTO(task models.Task) dto.TaskDTO {
	return dto.TaskDTO{
		ID:             task.ID,
		RequesterName:  task.RequesterName,
		RequesterEmail: task.RequesterEmail,
		EmployeeName:   task.EmployeeName,
		EmployeeID:     task.EmployeeID,
		Status:         string(task.Status),
		ReportStatus:   string(task.ReportStatus),
		Log:            task.Log,
		CompletedBy:    task.CompletedBy,
		CompletedAt:    task.CompletedAt,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}

// ToTaskDTOs converts a slice of task models
func ToTaskDTOs(tasks []*models.Task) []dto.TaskDTO {
	out := make([]dto.TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskDTO(*t))
	}
	return out
}

// ToProfileDTO converts a user model to its profile representation
func ToProfileDTO(user models.User) dto.ProfileDTO {
	return dto.ProfileDTO{
		ID:          user.ID,
		UUID:        user.UUID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		Provider:    user.Provider,
		IsActive:    user.IsActive,
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}
