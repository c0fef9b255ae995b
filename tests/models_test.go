// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"
	"time"

	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/utils"
	"github.com/stretchr/testify/assert"
)

func TestFormatTaskID(t *testing.T) {
	assert.Equal(t, "A000001", models.FormatTaskID(1))
	assert.Equal(t, "A000042", models.FormatTaskID(42))
	assert.Equal(t, "A001000", models.FormatTaskID(1000))
	// Counters past six digits widen rather than wrap
	assert.Equal(t, "A1000000", models.FormatTaskID(1000000))
}

func TestTaskStatusIsValid(t *testing.T) {
	valid := []models.TaskStatus{
		models.TaskStatusNew,
		models.TaskStatusInProgress,
		models.TaskStatusUnlocked,
		models.TaskStatusNotLocked,
	}
	for _, s := range valid {
		assert.True(t, s.IsValid(), "expected %q to be valid", s)
	}

	assert.False(t, models.TaskStatus("").IsValid())
	assert.False(t, models.TaskStatus("done").IsValid())
	assert.False(t, models.TaskStatus("新規").IsValid())
}

func TestTaskStatusIsTerminal(t *testing.T) {
	assert.False(t, models.TaskStatusNew.IsTerminal())
	assert.False(t, models.TaskStatusInProgress.IsTerminal())
	assert.True(t, models.TaskStatusUnlocked.IsTerminal())
	assert.True(t, models.TaskStatusNotLocked.IsTerminal())
}

func TestReportStatusIsValid(t *testing.T) {
	assert.True(t, models.ReportStatusUnreported.IsValid())
	assert.True(t, models.ReportStatusReported.IsValid())
	assert.False(t, models.ReportStatus("").IsValid())
	assert.False(t, models.ReportStatus("やった").IsValid())
}

func TestUserIsSupport(t *testing.T) {
	support := models.User{Role: models.RoleSupport}
	client := models.User{Role: models.RoleClient}
	assert.True(t, support.IsSupport())
	assert.False(t, client.IsSupport())
}

func TestUserSessionValidity(t *testing.T) {
	active := models.UserSession{
		IsActive:  utils.ToPtr(true),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	assert.True(t, active.IsValid())
	assert.False(t, active.IsExpired())

	expired := models.UserSession{
		IsActive:  utils.ToPtr(true),
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	assert.False(t, expired.IsValid())
	assert.True(t, expired.IsExpired())

	revoked := models.UserSession{
		IsActive:  utils.ToPtr(false),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	assert.False(t, revoked.IsValid())
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "users", models.User{}.TableName())
	assert.Equal(t, "user_sessions", models.UserSession{}.TableName())
	assert.Equal(t, "tasks", models.Task{}.TableName())
	assert.Equal(t, "sequence_counters", models.SequenceCounter{}.TableName())
	assert.Equal(t, "audit_logs", models.AuditLog{}.TableName())
}

func TestTokyoTime(t *testing.T) {
	utc := time.Date(2025, 7, 1, 5, 30, 0, 0, time.UTC)
	jst := utils.TokyoTime(utc)
	assert.Equal(t, "2025/07/01 14:30", jst.Format("2006/01/02 15:04"))
}
