package handlers

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/keithshino/accountUnlock/app/dto"
	"github.com/keithshino/accountUnlock/app/middleware"
	businessflow "github.com/keithshino/accountUnlock/business_flow"
)

// TaskHandlerInterface defines the contract for task handlers
type TaskHandlerInterface interface {
	SubmitTasks(c fiber.Ctx) error
	ListTasks(c fiber.Ctx) error
	GetTask(c fiber.Ctx) error
	UpdateTask(c fiber.Ctx) error
	ExportTasks(c fiber.Ctx) error
}

// TaskHandler handles unlock task HTTP requests
type TaskHandler struct {
	taskFlow  businessflow.TaskFlow
	validator *validator.Validate
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskFlow businessflow.TaskFlow) *TaskHandler {
	return &TaskHandler{
		taskFlow:  taskFlow,
		validator: validator.New(),
	}
}

func (h *TaskHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *TaskHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// SubmitTasks handles a batch unlock submission
// @Summary Submit Unlock Requests
// @Description Create one task per listed employee. Identifiers are sequential and gap free.
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.SubmitTasksRequest true "Unlock submission"
// @Success 201 {object} dto.APIResponse{data=dto.SubmitTasksResponse} "Tasks created"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Submission failed"
// @Router /api/v1/tasks [post]
func (h *TaskHandler) SubmitTasks(c fiber.Ctx) error {
	var req dto.SubmitTasksRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	actor, err := h.actorFromContext(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.taskFlow.SubmitTasks(h.createRequestContext(c, "/api/v1/tasks"), &req, actor, metadata)
	if err != nil {
		middleware.CountTaskSubmission("failure")

		if businessflow.IsMissingCounter(err) {
			log.Println("Task submission failed, counter row missing", err)
			return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task identifier allocation failed", "MISSING_COUNTER", nil)
		}

		log.Println("Task submission failed", err)
		// Tasks committed before the failure stay on the books.
		details := fiber.Map{}
		if result != nil && len(result.CreatedTaskIDs) > 0 {
			details["created_task_ids"] = result.CreatedTaskIDs
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task submission failed", "TASK_SUBMISSION_FAILED", details)
	}

	middleware.CountTaskSubmission("success")
	return h.SuccessResponse(c, fiber.StatusCreated, "Tasks created", result)
}

// ListTasks lists tasks visible to the caller
// @Summary List Tasks
// @Description Clients see their own newest ten requests. Support staff see everything with filters and paging.
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param report_status query string false "Filter by report status"
// @Param employee_id query string false "Filter by employee ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} dto.APIResponse{data=dto.ListTasksResponse} "Tasks"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Listing failed"
// @Router /api/v1/tasks [get]
func (h *TaskHandler) ListTasks(c fiber.Ctx) error {
	var req dto.ListTasksRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	actor, err := h.actorFromContext(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", nil)
	}

	result, err := h.taskFlow.ListTasks(h.createRequestContext(c, "/api/v1/tasks"), &req, actor)
	if err != nil {
		log.Println("Task listing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task listing failed", "TASK_LIST_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Tasks fetched", result)
}

// GetTask returns a single task
// @Summary Get Task
// @Description Fetch one task by its identifier. Clients may only read their own.
// @Tags Tasks
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task identifier" example(A000042)
// @Success 200 {object} dto.APIResponse{data=dto.TaskDTO} "Task"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Access denied"
// @Failure 404 {object} dto.APIResponse "Task not found"
// @Router /api/v1/tasks/{id} [get]
func (h *TaskHandler) GetTask(c fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Task identifier is required", "INVALID_REQUEST", nil)
	}

	actor, err := h.actorFromContext(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", nil)
	}

	result, err := h.taskFlow.GetTask(h.createRequestContext(c, "/api/v1/tasks/:id"), taskID, actor)
	if err != nil {
		if businessflow.IsTaskNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Task not found", "TASK_NOT_FOUND", nil)
		}
		if businessflow.IsTaskAccessDenied(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Task access denied", "TASK_ACCESS_DENIED", nil)
		}

		log.Println("Task fetch failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task fetch failed", "TASK_GET_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Task fetched", result)
}

// UpdateTask applies a triage edit to a task
// @Summary Update Task
// @Description Submit the full editable state of a task. The change is diffed and logged automatically.
// @Tags Tasks
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Task identifier" example(A000042)
// @Param request body dto.UpdateTaskRequest true "Editable task state"
// @Success 200 {object} dto.APIResponse{data=dto.TaskDTO} "Task updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Support role required"
// @Failure 404 {object} dto.APIResponse "Task not found"
// @Router /api/v1/tasks/{id} [patch]
func (h *TaskHandler) UpdateTask(c fiber.Ctx) error {
	taskID := c.Params("id")
	if taskID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Task identifier is required", "INVALID_REQUEST", nil)
	}

	var req dto.UpdateTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	actor, err := h.actorFromContext(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	result, err := h.taskFlow.UpdateTask(h.createRequestContext(c, "/api/v1/tasks/:id"), taskID, &req, actor, metadata)
	if err != nil {
		if businessflow.IsTaskNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Task not found", "TASK_NOT_FOUND", nil)
		}
		if businessflow.IsSupportRoleRequired(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Support role required", "SUPPORT_ROLE_REQUIRED", nil)
		}
		if businessflow.IsInvalidStatus(err) || businessflow.IsInvalidReportStatus(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lifecycle value", "INVALID_STATUS", nil)
		}

		log.Println("Task update failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task update failed", "TASK_UPDATE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Task updated", result)
}

// ExportTasks downloads the matching tasks as an xlsx workbook
// @Summary Export Tasks
// @Description Download the matching tasks as an xlsx workbook. Support only.
// @Tags Tasks
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param status query string false "Filter by status"
// @Param report_status query string false "Filter by report status"
// @Success 200 {file} binary "Workbook"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 403 {object} dto.APIResponse "Support role required"
// @Router /api/v1/tasks/export [get]
func (h *TaskHandler) ExportTasks(c fiber.Ctx) error {
	var req dto.ListTasksRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	actor, err := h.actorFromContext(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED", nil)
	}

	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))

	payload, filename, err := h.taskFlow.ExportTasks(h.createRequestContext(c, "/api/v1/tasks/export"), &req, actor, metadata)
	if err != nil {
		if businessflow.IsSupportRoleRequired(err) {
			return h.ErrorResponse(c, fiber.StatusForbidden, "Support role required", "SUPPORT_ROLE_REQUIRED", nil)
		}

		log.Println("Task export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Task export failed", "TASK_EXPORT_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	return c.Send(payload)
}

// actorFromContext builds the flow actor from the auth middleware locals
func (h *TaskHandler) actorFromContext(c fiber.Ctx) (businessflow.Actor, error) {
	userID, ok := c.Locals("user_id").(uint)
	if !ok {
		return businessflow.Actor{}, fiber.ErrUnauthorized
	}
	role, _ := c.Locals("user_role").(string)
	email, _ := c.Locals("user_email").(string)

	return businessflow.Actor{
		UserID: userID,
		Email:  email,
		Role:   role,
	}, nil
}

func (h *TaskHandler) createRequestContext(c fiber.Ctx, endpoint string) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	ctx = context.WithValue(ctx, "request_id", c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, "user_agent", c.Get("User-Agent"))
	ctx = context.WithValue(ctx, "ip_address", c.IP())
	ctx = context.WithValue(ctx, "endpoint", endpoint)
	ctx = context.WithValue(ctx, "cancel_func", cancel)

	return ctx
}
