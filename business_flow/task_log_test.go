package businessflow

import (
	"testing"
	"time"

	"github.com/keithshino/accountUnlock/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseTask() *models.Task {
	return &models.Task{
		ID:             "A000001",
		RequesterName:  "田中 太郎",
		RequesterEmail: "tanaka@example.com",
		EmployeeName:   "鈴木 次郎",
		EmployeeID:     "E0042",
		Status:         models.TaskStatusNew,
		ReportStatus:   models.ReportStatusUnreported,
	}
}

func TestComposeTaskUpdateStatusChange(t *testing.T) {
	current := baseTask()
	// 2025-07-01 05:30 UTC is 14:30 in Tokyo
	now := time.Date(2025, 7, 1, 5, 30, 0, 0, time.UTC)

	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       models.TaskStatusInProgress,
		ReportStatus: models.ReportStatusUnreported,
		Log:          "",
	}, "staff@example.co.jp", now)

	require.True(t, changed)
	assert.Equal(t, models.TaskStatusInProgress, merged.Status)
	assert.Equal(t,
		"[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to '対応中'",
		merged.Log)

	// The stored task is untouched
	assert.Equal(t, models.TaskStatusNew, current.Status)
	assert.Empty(t, current.Log)
}

func TestComposeTaskUpdateNoChange(t *testing.T) {
	current := baseTask()
	current.Log = "[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to '対応中'"
	current.Status = models.TaskStatusInProgress
	now := time.Date(2025, 7, 2, 1, 0, 0, 0, time.UTC)

	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       current.Status,
		ReportStatus: current.ReportStatus,
		Log:          current.Log,
	}, "staff@example.co.jp", now)

	assert.False(t, changed)
	assert.Equal(t, current.Log, merged.Log)
	assert.Nil(t, merged.CompletedAt)
}

func TestComposeTaskUpdatePrependsNewestFirst(t *testing.T) {
	current := baseTask()
	current.Status = models.TaskStatusInProgress
	current.Log = "[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to '対応中'"
	now := time.Date(2025, 7, 3, 0, 15, 0, 0, time.UTC)

	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       models.TaskStatusUnlocked,
		ReportStatus: current.ReportStatus,
		Log:          current.Log,
	}, "staff@example.co.jp", now)

	require.True(t, changed)
	assert.Equal(t,
		"[2025/07/03 09:15 by staff@example.co.jp] Status changed from '対応中' to 'ロック解除済み'\n"+
			"[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to '対応中'",
		merged.Log)
}

func TestComposeTaskUpdateCombinedClauses(t *testing.T) {
	current := baseTask()
	now := time.Date(2025, 7, 1, 5, 30, 0, 0, time.UTC)

	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       models.TaskStatusUnlocked,
		ReportStatus: models.ReportStatusReported,
		Log:          "called the requester",
	}, "staff@example.co.jp", now)

	require.True(t, changed)
	assert.Equal(t,
		"[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to 'ロック解除済み', "+
			"Report status changed from '未報告' to '報告済み', notes updated\n"+
			"called the requester",
		merged.Log)
}

func TestComposeTaskUpdateNotesOnly(t *testing.T) {
	current := baseTask()
	now := time.Date(2025, 7, 1, 5, 30, 0, 0, time.UTC)

	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       current.Status,
		ReportStatus: current.ReportStatus,
		Log:          "spoke with IT, account is flagged",
	}, "staff@example.co.jp", now)

	require.True(t, changed)
	assert.Equal(t,
		"[2025/07/01 14:30 by staff@example.co.jp] notes updated\nspoke with IT, account is flagged",
		merged.Log)
}

func TestComposeTaskUpdateCompletionStampedOnce(t *testing.T) {
	current := baseTask()
	firstNow := time.Date(2025, 7, 1, 5, 30, 0, 0, time.UTC)

	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       models.TaskStatusUnlocked,
		ReportStatus: models.ReportStatusReported,
		Log:          "",
	}, "first@example.co.jp", firstNow)
	require.True(t, changed)
	require.NotNil(t, merged.CompletedAt)
	require.NotNil(t, merged.CompletedBy)
	assert.Equal(t, "first@example.co.jp", *merged.CompletedBy)
	assert.Equal(t, firstNow, merged.CompletedAt.UTC())

	// Flip the report status away and back; the stamp must survive
	secondNow := firstNow.Add(48 * time.Hour)
	reverted, changed := ComposeTaskUpdate(merged, TaskUpdate{
		Status:       merged.Status,
		ReportStatus: models.ReportStatusUnreported,
		Log:          merged.Log,
	}, "second@example.co.jp", secondNow)
	require.True(t, changed)
	assert.Equal(t, "first@example.co.jp", *reverted.CompletedBy)
	assert.Equal(t, firstNow, reverted.CompletedAt.UTC())

	thirdNow := firstNow.Add(72 * time.Hour)
	restamped, changed := ComposeTaskUpdate(reverted, TaskUpdate{
		Status:       reverted.Status,
		ReportStatus: models.ReportStatusReported,
		Log:          reverted.Log,
	}, "second@example.co.jp", thirdNow)
	require.True(t, changed)
	assert.Equal(t, "first@example.co.jp", *restamped.CompletedBy)
	assert.Equal(t, firstNow, restamped.CompletedAt.UTC())
}

func TestComposeTaskUpdateActorIsRecorded(t *testing.T) {
	current := baseTask()
	now := time.Date(2025, 12, 31, 15, 0, 0, 0, time.UTC)

	// Midnight rollover: 15:00 UTC on Dec 31 is 00:00 JST on Jan 1
	merged, changed := ComposeTaskUpdate(current, TaskUpdate{
		Status:       models.TaskStatusInProgress,
		ReportStatus: current.ReportStatus,
		Log:          "",
	}, "支援 花子", now)

	require.True(t, changed)
	assert.Contains(t, merged.Log, "[2026/01/01 00:00 by 支援 花子]")
}
