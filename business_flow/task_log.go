package businessflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/utils"
)

// logTimeLayout is the timestamp layout used in composed log entries.
const logTimeLayout = "2006/01/02 15:04"

// TaskUpdate is the full editable state a support member submits for a
// task. The composer diffs it against the stored task.
type TaskUpdate struct {
	Status       models.TaskStatus
	ReportStatus models.ReportStatus
	Log          string
}

// ComposeTaskUpdate merges an incoming edit into the current task and
// synthesizes an audit line describing what changed.
//
// The returned task is a copy; the stored task is never mutated. The
// boolean reports whether anything changed at all: when the incoming
// state equals the stored state the copy is returned unchanged and no
// log line is produced, so saving a no-op edit twice yields the same
// log as saving it once.
//
// A generated line looks like
//
//	[2025/07/01 14:30 by staff@example.co.jp] Status changed from '新規受付' to '対応中', notes updated
//
// and is prepended to the incoming log body, newest entry first. The
// timestamp is rendered in Japan Standard Time.
//
// The completion stamp (CompletedBy/CompletedAt) is written exactly
// once, on the first transition of ReportStatus to 報告済み. Later
// edits, including flipping the report status away and back, never
// overwrite it.
func ComposeTaskUpdate(current *models.Task, incoming TaskUpdate, actor string, now time.Time) (*models.Task, bool) {
	merged := *current
	var clauses []string

	if incoming.Status != current.Status {
		clauses = append(clauses, fmt.Sprintf("Status changed from '%s' to '%s'", current.Status, incoming.Status))
		merged.Status = incoming.Status
	}
	if incoming.ReportStatus != current.ReportStatus {
		clauses = append(clauses, fmt.Sprintf("Report status changed from '%s' to '%s'", current.ReportStatus, incoming.ReportStatus))
		merged.ReportStatus = incoming.ReportStatus
	}
	if incoming.Log != current.Log {
		clauses = append(clauses, "notes updated")
	}

	if len(clauses) == 0 {
		return &merged, false
	}

	entry := fmt.Sprintf("[%s by %s] %s",
		utils.TokyoTime(now).Format(logTimeLayout), actor, strings.Join(clauses, ", "))
	if incoming.Log == "" {
		merged.Log = entry
	} else {
		merged.Log = entry + "\n" + incoming.Log
	}

	if merged.ReportStatus == models.ReportStatusReported && merged.CompletedAt == nil {
		completedAt := utils.TimeToUTC(now)
		merged.CompletedBy = &actor
		merged.CompletedAt = &completedAt
	}

	merged.UpdatedAt = utils.TimeToUTC(now)
	return &merged, true
}
