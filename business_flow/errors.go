// Package businessflow contains the core business logic and use cases for the unlock desk workflows
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// User-related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrWrongProvider      = errors.New("account uses a different sign-in provider")

	// Google sign-in errors
	ErrGoogleTokenInvalid = errors.New("google token is invalid")
	ErrEmailNotVerified   = errors.New("email address is not verified")
	ErrUnauthorizedDomain = errors.New("email domain is not allowed")

	// Captcha errors
	ErrCaptchaRequired = errors.New("captcha is required")
	ErrCaptchaInvalid  = errors.New("captcha answer is invalid")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session has expired")

	// Task-related errors
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskAccessDenied    = errors.New("task access denied")
	ErrInvalidStatus       = errors.New("invalid task status")
	ErrInvalidReportStatus = errors.New("invalid report status")
	ErrEmptySubmission     = errors.New("submission names no employees")
	ErrSubmissionTooLarge  = errors.New("submission names too many employees")
	ErrMissingCounter      = errors.New("task id counter is missing")

	// Role errors
	ErrSupportRoleRequired = errors.New("support role required")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsIncorrectPassword(err error) bool {
	return errors.Is(err, ErrIncorrectPassword)
}

func IsEmailAlreadyExists(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists)
}

func IsUnauthorizedDomain(err error) bool {
	return errors.Is(err, ErrUnauthorizedDomain)
}

func IsCaptchaRequired(err error) bool {
	return errors.Is(err, ErrCaptchaRequired)
}

func IsCaptchaInvalid(err error) bool {
	return errors.Is(err, ErrCaptchaInvalid)
}

func IsTaskNotFound(err error) bool {
	return errors.Is(err, ErrTaskNotFound)
}

func IsTaskAccessDenied(err error) bool {
	return errors.Is(err, ErrTaskAccessDenied)
}

func IsInvalidStatus(err error) bool {
	return errors.Is(err, ErrInvalidStatus)
}

func IsInvalidReportStatus(err error) bool {
	return errors.Is(err, ErrInvalidReportStatus)
}

func IsMissingCounter(err error) bool {
	return errors.Is(err, ErrMissingCounter)
}

func IsSupportRoleRequired(err error) bool {
	return errors.Is(err, ErrSupportRoleRequired)
}
