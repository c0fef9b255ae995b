// Package testing provides test utilities and database setup for testing the unlock desk service
package testing

import (
	"encoding/base64"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/keithshino/accountUnlock/models"
	"github.com/keithshino/accountUnlock/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates a test user with the given role
func (tf *TestFixtures) CreateTestUser(role string) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	randomDigits := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)

	user := &models.User{
		UUID:         uuid.New(),
		Email:        fmt.Sprintf("tester.%s.%s@example.com", role, randomDigits),
		DisplayName:  "Test User",
		PasswordHash: string(hashedPassword),
		Role:         role,
		Provider:     models.ProviderPassword,
		IsActive:     utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	return user, nil
}

// CreateGoogleTestUser creates a test user linked to a Google subject
func (tf *TestFixtures) CreateGoogleTestUser(email, subject, role string) (*models.User, error) {
	user := &models.User{
		UUID:          uuid.New(),
		Email:         email,
		DisplayName:   "Google Test User",
		Role:          role,
		Provider:      models.ProviderGoogle,
		GoogleSubject: &subject,
		IsActive:      utils.ToPtr(true),
	}

	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create google test user: %w", err)
	}

	return user, nil
}

// GenerateSecureToken returns a URL-safe random token
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateTestSession creates a test user session
func (tf *TestFixtures) CreateTestSession(userID uint) (*models.UserSession, error) {
	sessionToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure session token: %w", err)
	}

	refreshToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure refresh token: %w", err)
	}

	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	session := &models.UserSession{
		CorrelationID: uuid.New(),
		UserID:        userID,
		SessionToken:  sessionToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	if err := tf.DB.DB.Create(session).Error; err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestTask creates an unlock task directly, bypassing the allocator
func (tf *TestFixtures) CreateTestTask(id, requesterEmail string) (*models.Task, error) {
	task := &models.Task{
		ID:             id,
		RequesterName:  "Test Requester",
		RequesterEmail: requesterEmail,
		EmployeeName:   "Locked Employee",
		EmployeeID:     fmt.Sprintf("E%04d", rand.Intn(10000)),
		Status:         models.TaskStatusNew,
		ReportStatus:   models.ReportStatusUnreported,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	if err := tf.DB.DB.Create(task).Error; err != nil {
		return nil, fmt.Errorf("failed to create test task: %w", err)
	}

	return task, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(userID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		UserID:      userID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	if err := tf.DB.DB.Create(audit).Error; err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}

// SetCounter forces a counter to a known value
func (tf *TestFixtures) SetCounter(name string, value int64) error {
	return tf.DB.DB.Exec("UPDATE sequence_counters SET last_value = ? WHERE name = ?", value, name).Error
}
