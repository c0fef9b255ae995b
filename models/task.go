package models

import (
	"fmt"
	"time"
)

// TaskStatus is the triage state of an unlock request. The values are the
// exact strings support staff see in the UI, stored verbatim.
type TaskStatus string

const (
	TaskStatusNew        TaskStatus = "新規受付"
	TaskStatusInProgress TaskStatus = "対応中"
	TaskStatusUnlocked   TaskStatus = "ロック解除済み"
	TaskStatusNotLocked  TaskStatus = "対応不可（ロックなし）"
)

// IsValid reports whether the status is one of the known lifecycle values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusNew, TaskStatusInProgress, TaskStatusUnlocked, TaskStatusNotLocked:
		return true
	}
	return false
}

// IsTerminal reports whether the status ends the triage lifecycle.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusUnlocked || s == TaskStatusNotLocked
}

// ReportStatus tracks whether the requester has been told the outcome.
type ReportStatus string

const (
	ReportStatusUnreported ReportStatus = "未報告"
	ReportStatusReported   ReportStatus = "報告済み"
)

// IsValid reports whether the report status is a known value.
func (s ReportStatus) IsValid() bool {
	return s == ReportStatusUnreported || s == ReportStatusReported
}

// Task is a single account-unlock request for one employee.
//
// ID is a human-facing sequential identifier ("A000001", "A000002", ...)
// minted by the sequence counter; it is the primary key and never reused.
// Status, ReportStatus and Log are the only fields support staff may edit.
// CompletedBy and CompletedAt are stamped exactly once, on the first
// transition of ReportStatus to 報告済み, and never overwritten afterward.
type Task struct {
	ID             string       `gorm:"primaryKey;size:16" json:"id"`
	RequesterName  string       `gorm:"size:255;not null" json:"requester_name"`
	RequesterEmail string       `gorm:"size:255;not null;index:idx_tasks_requester_email" json:"requester_email"`
	EmployeeName   string       `gorm:"size:255;not null" json:"employee_name"`
	EmployeeID     string       `gorm:"size:64;not null" json:"employee_id"`
	Status         TaskStatus   `gorm:"size:64;not null;index:idx_tasks_status" json:"status"`
	ReportStatus   ReportStatus `gorm:"size:32;not null;index:idx_tasks_report_status" json:"report_status"`
	Log            string       `gorm:"type:text;not null;default:''" json:"log"`
	CompletedBy    *string      `gorm:"size:255" json:"completed_by,omitempty"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP;index:idx_tasks_created_at" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName returns the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// IsCompleted reports whether the completion stamp has been set.
func (t *Task) IsCompleted() bool {
	return t.CompletedAt != nil
}

// TaskIDPrefix is the letter every task identifier starts with.
const TaskIDPrefix = "A"

// FormatTaskID renders a counter value as a task identifier,
// e.g. 42 -> "A000042". Values beyond six digits keep all digits.
func FormatTaskID(n int64) string {
	return fmt.Sprintf("%s%06d", TaskIDPrefix, n)
}

// TaskFilter represents filter criteria for task queries
type TaskFilter struct {
	ID             *string       `json:"id,omitempty"`
	RequesterEmail *string       `json:"requester_email,omitempty"`
	EmployeeID     *string       `json:"employee_id,omitempty"`
	Status         *TaskStatus   `json:"status,omitempty"`
	ReportStatus   *ReportStatus `json:"report_status,omitempty"`
	CreatedAfter   *time.Time    `json:"created_after,omitempty"`
	CreatedBefore  *time.Time    `json:"created_before,omitempty"`
	Limit          *int          `json:"limit,omitempty"`
	Offset         *int          `json:"offset,omitempty"`
}
