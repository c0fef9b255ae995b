// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/keithshino/accountUnlock/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for user accounts
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUUID(ctx context.Context, uuid string) (*models.User, error)
	ByGoogleSubject(ctx context.Context, subject string) (*models.User, error)
	LinkGoogleAccount(ctx context.Context, userID uint, subject, displayName, role string) error
	UpdateLastLogin(ctx context.Context, userID uint) error
}

// UserSessionRepository defines operations for user sessions
type UserSessionRepository interface {
	Repository[models.UserSession, models.UserSessionFilter]
	BySessionToken(ctx context.Context, token string) (*models.UserSession, error)
	ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error)
	ListActiveSessionsByUser(ctx context.Context, userID uint) ([]*models.UserSession, error)
	RevokeSession(ctx context.Context, sessionID uint) error
	RevokeAllUserSessions(ctx context.Context, userID uint) error
	CleanupExpiredSessions(ctx context.Context) error
}

// TaskRepository defines operations for unlock request tasks.
// Task identifiers are strings minted by the sequence counter, so this
// interface does not embed the numeric-keyed generic Repository.
type TaskRepository interface {
	ByTaskID(ctx context.Context, id string) (*models.Task, error)
	ByFilter(ctx context.Context, filter models.TaskFilter, orderBy string, limit, offset int) ([]*models.Task, error)
	Create(ctx context.Context, task *models.Task) error
	UpdateLifecycle(ctx context.Context, task *models.Task) error
	Count(ctx context.Context, filter models.TaskFilter) (int64, error)
	ListForRequester(ctx context.Context, email string, limit int) ([]*models.Task, error)
}

// SequenceCounterRepository defines operations for named counters.
// Next must run inside a caller-provided transaction so that the row
// lock and the dependent insert commit or roll back together.
type SequenceCounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
	Current(ctx context.Context, name string) (int64, error)
	Seed(ctx context.Context, name string) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
