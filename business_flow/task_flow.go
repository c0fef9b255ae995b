package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/keithshino/accountUnlock/app/dto"
	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/repository"
	"github.com/keithshino/accountUnlock/utils"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// TaskEventsChannel is the Redis channel task lifecycle events are published to.
const TaskEventsChannel = "tasks.events"

// TaskFlow handles unlock request submission and triage operations
type TaskFlow interface {
	SubmitTasks(ctx context.Context, request *dto.SubmitTasksRequest, actor Actor, metadata *ClientMetadata) (*dto.SubmitTasksResponse, error)
	ListTasks(ctx context.Context, request *dto.ListTasksRequest, actor Actor) (*dto.ListTasksResponse, error)
	GetTask(ctx context.Context, taskID string, actor Actor) (*dto.TaskDTO, error)
	UpdateTask(ctx context.Context, taskID string, request *dto.UpdateTaskRequest, actor Actor, metadata *ClientMetadata) (*dto.TaskDTO, error)
	ExportTasks(ctx context.Context, request *dto.ListTasksRequest, actor Actor, metadata *ClientMetadata) ([]byte, string, error)
}

// TaskFlowImpl implements the task business flow
type TaskFlowImpl struct {
	taskRepo    repository.TaskRepository
	counterRepo repository.SequenceCounterRepository
	auditRepo   repository.AuditLogRepository
	db          *gorm.DB
	redisClient *redis.Client
}

// NewTaskFlow creates a new task flow instance
func NewTaskFlow(
	taskRepo repository.TaskRepository,
	counterRepo repository.SequenceCounterRepository,
	auditRepo repository.AuditLogRepository,
	db *gorm.DB,
	redisClient *redis.Client,
) TaskFlow {
	return &TaskFlowImpl{
		taskRepo:    taskRepo,
		counterRepo: counterRepo,
		auditRepo:   auditRepo,
		db:          db,
		redisClient: redisClient,
	}
}

// SubmitTasks creates one task per employee target. Each task gets its
// own transaction: the counter bump and the insert commit together, so
// a failure burns no identifier. Tasks are created strictly in the
// order the targets were listed; when one fails, the earlier tasks stay
// committed and the whole submission is reported as failed.
func (tf *TaskFlowImpl) SubmitTasks(ctx context.Context, request *dto.SubmitTasksRequest, actor Actor, metadata *ClientMetadata) (*dto.SubmitTasksResponse, error) {
	if len(request.Targets) == 0 {
		return nil, NewBusinessError("EMPTY_SUBMISSION", "Submission names no employees", ErrEmptySubmission)
	}
	if len(request.Targets) > utils.MaxUnlockBatchSize {
		return nil, NewBusinessError("SUBMISSION_TOO_LARGE", "Submission names too many employees", ErrSubmissionTooLarge)
	}

	createdIDs := make([]string, 0, len(request.Targets))

	for _, target := range request.Targets {
		var created models.Task
		err := repository.WithTransaction(ctx, tf.db, func(txCtx context.Context) error {
			next, err := tf.counterRepo.Next(txCtx, models.TaskIDCounter)
			if err != nil {
				if errors.Is(err, repository.ErrCounterNotFound) {
					return ErrMissingCounter
				}
				return err
			}

			now := utils.UTCNow()
			task := models.Task{
				ID:             models.FormatTaskID(next),
				RequesterName:  request.RequesterName,
				RequesterEmail: actor.Email,
				EmployeeName:   target.EmployeeName,
				EmployeeID:     target.EmployeeID,
				Status:         models.TaskStatusNew,
				ReportStatus:   models.ReportStatusUnreported,
				Log:            "",
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := tf.taskRepo.Create(txCtx, &task); err != nil {
				return err
			}
			created = task
			return nil
		})
		if err != nil {
			errMsg := fmt.Sprintf("Task allocation failed after %d of %d targets: %s", len(createdIDs), len(request.Targets), err.Error())
			_ = tf.logTaskEvent(ctx, actor, models.AuditActionTaskAllocationFail, errMsg, false, &errMsg, metadata)
			return &dto.SubmitTasksResponse{CreatedTaskIDs: createdIDs},
				NewBusinessError("TASK_SUBMISSION_FAILED", "Task submission failed", err)
		}

		createdIDs = append(createdIDs, created.ID)
		tf.publishTaskEvent(ctx, "task.created", created.ID, actor.Email)
	}

	msg := fmt.Sprintf("Submitted %d unlock tasks: %v", len(createdIDs), createdIDs)
	_ = tf.logTaskEvent(ctx, actor, models.AuditActionTasksSubmitted, msg, true, nil, metadata)

	return &dto.SubmitTasksResponse{CreatedTaskIDs: createdIDs}, nil
}

// ListTasks returns tasks visible to the actor. Clients only ever see
// their own requests, capped at the newest ten. Support staff see
// everything, filterable and paged.
func (tf *TaskFlowImpl) ListTasks(ctx context.Context, request *dto.ListTasksRequest, actor Actor) (*dto.ListTasksResponse, error) {
	if !actor.IsSupport() {
		tasks, err := tf.taskRepo.ListForRequester(ctx, actor.Email, utils.ClientTaskListLimit)
		if err != nil {
			return nil, NewBusinessError("TASK_LIST_FAILED", "Failed to list tasks", err)
		}
		return &dto.ListTasksResponse{
			Tasks:    ToTaskDTOs(tasks),
			Total:    int64(len(tasks)),
			Page:     1,
			PageSize: utils.ClientTaskListLimit,
		}, nil
	}

	page := request.Page
	if page < 1 {
		page = 1
	}
	pageSize := request.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	filter := tf.buildFilter(request)
	total, err := tf.taskRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("TASK_LIST_FAILED", "Failed to count tasks", err)
	}

	tasks, err := tf.taskRepo.ByFilter(ctx, filter, "created_at DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("TASK_LIST_FAILED", "Failed to list tasks", err)
	}

	return &dto.ListTasksResponse{
		Tasks:    ToTaskDTOs(tasks),
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// GetTask returns a single task. Clients may only read their own.
func (tf *TaskFlowImpl) GetTask(ctx context.Context, taskID string, actor Actor) (*dto.TaskDTO, error) {
	task, err := tf.taskRepo.ByTaskID(ctx, taskID)
	if err != nil {
		return nil, NewBusinessError("TASK_GET_FAILED", "Failed to get task", err)
	}
	if task == nil {
		return nil, NewBusinessError("TASK_NOT_FOUND", "Task not found", ErrTaskNotFound)
	}
	if !actor.IsSupport() && task.RequesterEmail != actor.Email {
		return nil, NewBusinessError("TASK_ACCESS_DENIED", "Task access denied", ErrTaskAccessDenied)
	}

	result := ToTaskDTO(*task)
	return &result, nil
}

// UpdateTask applies a support member's edit to a task. The stored row
// is diffed against the submitted state, the log line is composed and
// prepended, and the completion stamp is written on the first report.
// A no-op edit returns the task untouched.
func (tf *TaskFlowImpl) UpdateTask(ctx context.Context, taskID string, request *dto.UpdateTaskRequest, actor Actor, metadata *ClientMetadata) (*dto.TaskDTO, error) {
	if !actor.IsSupport() {
		return nil, NewBusinessError("SUPPORT_ROLE_REQUIRED", "Support role required", ErrSupportRoleRequired)
	}

	incoming := TaskUpdate{
		Status:       models.TaskStatus(request.Status),
		ReportStatus: models.ReportStatus(request.ReportStatus),
		Log:          request.Log,
	}
	if !incoming.Status.IsValid() {
		return nil, NewBusinessErrorf("INVALID_STATUS", "Invalid task status: %s", ErrInvalidStatus, request.Status)
	}
	if !incoming.ReportStatus.IsValid() {
		return nil, NewBusinessErrorf("INVALID_REPORT_STATUS", "Invalid report status: %s", ErrInvalidReportStatus, request.ReportStatus)
	}

	var merged *models.Task
	var changed bool
	err := repository.WithTransaction(ctx, tf.db, func(txCtx context.Context) error {
		current, err := tf.taskRepo.ByTaskID(txCtx, taskID)
		if err != nil {
			return err
		}
		if current == nil {
			return ErrTaskNotFound
		}

		merged, changed = ComposeTaskUpdate(current, incoming, actor.Email, time.Now())
		if !changed {
			return nil
		}
		return tf.taskRepo.UpdateLifecycle(txCtx, merged)
	})
	if err != nil {
		errMsg := fmt.Sprintf("Task %s update failed: %s", taskID, err.Error())
		_ = tf.logTaskEvent(ctx, actor, models.AuditActionTaskUpdateFailed, errMsg, false, &errMsg, metadata)
		if errors.Is(err, ErrTaskNotFound) {
			return nil, NewBusinessError("TASK_NOT_FOUND", "Task not found", err)
		}
		return nil, NewBusinessError("TASK_UPDATE_FAILED", "Task update failed", err)
	}

	// A submission that changed nothing leaves no trail
	if changed {
		msg := fmt.Sprintf("Task %s updated by %s", taskID, actor.Email)
		_ = tf.logTaskEvent(ctx, actor, models.AuditActionTaskUpdated, msg, true, nil, metadata)
		tf.publishTaskEvent(ctx, "task.updated", taskID, actor.Email)
	}

	result := ToTaskDTO(*merged)
	return &result, nil
}

// ExportTasks renders the matching tasks as an xlsx workbook for the
// weekly report. Support only.
func (tf *TaskFlowImpl) ExportTasks(ctx context.Context, request *dto.ListTasksRequest, actor Actor, metadata *ClientMetadata) ([]byte, string, error) {
	if !actor.IsSupport() {
		return nil, "", NewBusinessError("SUPPORT_ROLE_REQUIRED", "Support role required", ErrSupportRoleRequired)
	}

	filter := tf.buildFilter(request)
	tasks, err := tf.taskRepo.ByFilter(ctx, filter, "id ASC", 0, 0)
	if err != nil {
		return nil, "", NewBusinessError("TASK_EXPORT_FAILED", "Failed to load tasks for export", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Tasks"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, "", NewBusinessError("TASK_EXPORT_FAILED", "Failed to create sheet", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{"ID", "Created At", "Requester", "Requester Email", "Employee", "Employee ID", "Status", "Report Status", "Completed By", "Completed At", "Log"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for row, task := range tasks {
		completedBy := ""
		if task.CompletedBy != nil {
			completedBy = *task.CompletedBy
		}
		completedAt := ""
		if task.CompletedAt != nil {
			completedAt = utils.TokyoTime(*task.CompletedAt).Format(logTimeLayout)
		}
		values := []any{
			task.ID,
			utils.TokyoTime(task.CreatedAt).Format(logTimeLayout),
			task.RequesterName,
			task.RequesterEmail,
			task.EmployeeName,
			task.EmployeeID,
			string(task.Status),
			string(task.ReportStatus),
			completedBy,
			completedAt,
			task.Log,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", NewBusinessError("TASK_EXPORT_FAILED", "Failed to render workbook", err)
	}

	msg := fmt.Sprintf("Exported %d tasks", len(tasks))
	_ = tf.logTaskEvent(ctx, actor, models.AuditActionTasksExported, msg, true, nil, metadata)

	filename := fmt.Sprintf("unlock-tasks-%s.xlsx", utils.TokyoTime(utils.UTCNow()).Format("20060102-1504"))
	return buf.Bytes(), filename, nil
}

func (tf *TaskFlowImpl) buildFilter(request *dto.ListTasksRequest) models.TaskFilter {
	var filter models.TaskFilter
	if request.Status != nil && *request.Status != "" {
		status := models.TaskStatus(*request.Status)
		filter.Status = &status
	}
	if request.ReportStatus != nil && *request.ReportStatus != "" {
		reportStatus := models.ReportStatus(*request.ReportStatus)
		filter.ReportStatus = &reportStatus
	}
	if request.EmployeeID != nil && *request.EmployeeID != "" {
		filter.EmployeeID = request.EmployeeID
	}
	return filter
}

// publishTaskEvent notifies subscribers of a lifecycle event. A nil or
// unreachable Redis never fails the request.
func (tf *TaskFlowImpl) publishTaskEvent(ctx context.Context, event, taskID, actor string) {
	if tf.redisClient == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"event":   event,
		"task_id": taskID,
		"actor":   actor,
		"at":      utils.UTCNowRFC3339(),
	})
	if err != nil {
		return
	}
	_ = tf.redisClient.Publish(ctx, TaskEventsChannel, payload).Err()
}

func (tf *TaskFlowImpl) logTaskEvent(ctx context.Context, actor Actor, action string, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	userID := actor.UserID
	audit := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	requestID := ctx.Value(RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return tf.auditRepo.Save(ctx, audit)
}
