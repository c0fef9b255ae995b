package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/keithshino/accountUnlock/models"
	"gorm.io/gorm"
)

// TaskRepositoryImpl implements TaskRepository interface
type TaskRepositoryImpl struct {
	DB *gorm.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &TaskRepositoryImpl{DB: db}
}

func (r *TaskRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.DB
}

// ByTaskID retrieves a task by its minted identifier, e.g. "A000042"
func (r *TaskRepositoryImpl) ByTaskID(ctx context.Context, id string) (*models.Task, error) {
	db := r.getDB(ctx)
	var row models.Task
	if err := db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Create inserts a task with its pre-minted identifier. It must run in
// the same transaction that bumped the counter, so the identifier is
// never burned without a row to show for it.
func (r *TaskRepositoryImpl) Create(ctx context.Context, task *models.Task) error {
	db := r.getDB(ctx)
	if err := db.Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return nil
}

// UpdateLifecycle writes the mutable lifecycle columns of a task. The
// identifier, requester and employee fields are never touched.
func (r *TaskRepositoryImpl) UpdateLifecycle(ctx context.Context, task *models.Task) error {
	db := r.getDB(ctx)
	result := db.Model(&models.Task{}).
		Where("id = ?", task.ID).
		Select("status", "report_status", "log", "completed_by", "completed_at", "updated_at").
		Updates(map[string]any{
			"status":        task.Status,
			"report_status": task.ReportStatus,
			"log":           task.Log,
			"completed_by":  task.CompletedBy,
			"completed_at":  task.CompletedAt,
			"updated_at":    task.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListForRequester lists a requester's newest tasks first, capped at limit
func (r *TaskRepositoryImpl) ListForRequester(ctx context.Context, email string, limit int) ([]*models.Task, error) {
	return r.ByFilter(ctx, models.TaskFilter{RequesterEmail: &email}, "created_at DESC", limit, 0)
}

// applyFilter applies filter criteria to a GORM query
func (r *TaskRepositoryImpl) applyFilter(query *gorm.DB, filter models.TaskFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.RequesterEmail != nil {
		query = query.Where("requester_email = ?", *filter.RequesterEmail)
	}
	if filter.EmployeeID != nil {
		query = query.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ReportStatus != nil {
		query = query.Where("report_status = ?", *filter.ReportStatus)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves tasks based on filter criteria, newest first by default
func (r *TaskRepositoryImpl) ByFilter(ctx context.Context, filter models.TaskFilter, orderBy string, limit, offset int) ([]*models.Task, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Task{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Task
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of tasks matching the filter
func (r *TaskRepositoryImpl) Count(ctx context.Context, filter models.TaskFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Task{})

	query = r.applyFilter(query, filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
