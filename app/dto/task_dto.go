package dto

import (
	"time"
)

// UnlockTarget names one employee whose account should be unlocked
type UnlockTarget struct {
	EmployeeName string `json:"employee_name" validate:"required,min=1,max=255" example:"Taro Yamada"`
	EmployeeID   string `json:"employee_id" validate:"required,min=1,max=64" example:"EMP-10234"`
}

// SubmitTasksRequest represents a batch unlock submission from a client.
// Each target becomes its own task with its own sequential identifier.
type SubmitTasksRequest struct {
	RequesterName string         `json:"requester_name" validate:"required,min=1,max=255" example:"Hanako Sato"`
	Targets       []UnlockTarget `json:"targets" validate:"required,min=1,max=20,dive"`
}

// SubmitTasksResponse reports the identifiers minted for the submission.
// On partial failure CreatedTaskIDs still lists the tasks that committed.
type SubmitTasksResponse struct {
	CreatedTaskIDs []string `json:"created_task_ids"`
}

// UpdateTaskRequest carries the full editable state of a task. The
// server diffs it against the stored row and composes the log entry.
type UpdateTaskRequest struct {
	Status       string `json:"status" validate:"required,max=64" example:"対応中"`
	ReportStatus string `json:"report_status" validate:"required,max=32" example:"未報告"`
	Log          string `json:"log" validate:"max=65535"`
}

// ListTasksRequest represents query parameters for the task list
type ListTasksRequest struct {
	Status       *string `query:"status" validate:"omitempty,max=64"`
	ReportStatus *string `query:"report_status" validate:"omitempty,max=32"`
	EmployeeID   *string `query:"employee_id" validate:"omitempty,max=64"`
	Page         int     `query:"page" validate:"omitempty,min=1"`
	PageSize     int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID             string     `json:"id" example:"A000042"`
	RequesterName  string     `json:"requester_name" example:"Hanako Sato"`
	RequesterEmail string     `json:"requester_email" example:"requester@example.com"`
	EmployeeName   string     `json:"employee_name" example:"Taro Yamada"`
	EmployeeID     string     `json:"employee_id" example:"EMP-10234"`
	Status         string     `json:"status" example:"新規受付"`
	ReportStatus   string     `json:"report_status" example:"未報告"`
	Log            string     `json:"log"`
	CompletedBy    *string    `json:"completed_by,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ListTasksResponse represents the task list payload
type ListTasksResponse struct {
	Tasks    []TaskDTO `json:"tasks"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
}
