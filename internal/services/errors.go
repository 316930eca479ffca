package services

import (
	"errors"
	"fmt"

	"github.com/edupulse/assessment-delivery/internal/delivery"
	apperrors "github.com/edupulse/assessment-delivery/internal/errors"
	"github.com/edupulse/assessment-delivery/internal/stores"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Assessment loading errors
	ErrAssessmentNotFound = errors.New("assessment not found")

	// Session specific errors
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionCompleted   = errors.New("session already completed")
	ErrSessionNotResumed  = errors.New("no resumable session snapshot found")
	ErrSessionActive      = errors.New("an active session already exists for this assessment and student")
	ErrAlreadySubmitted   = errors.New("session already submitted")
	ErrSubmitInFlight     = errors.New("submission already in progress")
	ErrInvalidNavigation  = errors.New("invalid navigation target")
)

// LoadError wraps a failure to fetch or decode an assessment. The session
// cannot start; the caller should surface a retryable load failure.
type LoadError struct {
	AssessmentID uint
	Err          error
}

func (le *LoadError) Error() string {
	return fmt.Sprintf("failed to load assessment %d: %v", le.AssessmentID, le.Err)
}

func (le *LoadError) Unwrap() error { return le.Err }

func NewLoadError(assessmentID uint, err error) *LoadError {
	return &LoadError{AssessmentID: assessmentID, Err: err}
}

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// ===== ERROR CLASSIFIERS =====

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAssessmentNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, stores.ErrAssessmentNotFound) ||
		errors.Is(err, delivery.ErrQuestionNotFound)
}

// IsLoadError checks if error represents an assessment load failure
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadySubmitted) ||
		errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrSubmitInFlight) ||
		errors.Is(err, ErrSessionActive) ||
		errors.Is(err, delivery.ErrSessionCompleted) ||
		errors.Is(err, delivery.ErrSubmitInFlight) ||
		errors.Is(err, stores.ErrAlreadySubmitted)
}

// IsBlocked checks if error represents a completeness gate rejection
func IsBlocked(err error) bool {
	return delivery.IsValidationBlocked(err)
}

// IsLocalInput checks if error represents a locally rejected answer payload
func IsLocalInput(err error) bool {
	return delivery.IsInvalidLocalInput(err)
}

// IsRejected checks if error represents an upstream submission rejection
func IsRejected(err error) bool {
	return delivery.IsSubmissionRejected(err)
}
