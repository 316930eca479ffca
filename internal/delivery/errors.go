package delivery

import (
	"errors"
	"fmt"
)

var (
	ErrSessionCompleted  = errors.New("session already completed")
	ErrSubmitInFlight    = errors.New("submission already in progress")
	ErrQuestionNotFound  = errors.New("question not found in session")
	ErrUnsupportedAnswer = errors.New("question type does not accept answers")
	ErrTypeMismatch      = errors.New("answer payload does not match question type")
	ErrEmptySequence     = errors.New("assessment has no questions to deliver")
)

// ValidationBlockedError is returned when required questions are still
// unanswered at submit time. It is advisory: the session stays in Editing and
// the navigator has already been focused on the first offender.
type ValidationBlockedError struct {
	MissingCount int
	FirstIndex   int
	QuestionIDs  []uint
}

func (e *ValidationBlockedError) Error() string {
	return fmt.Sprintf("%d required question(s) unanswered", e.MissingCount)
}

// InvalidLocalInputError rejects a per-variant input before it reaches the
// answer store. It never propagates past the editor layer and is always
// locally recoverable.
type InvalidLocalInputError struct {
	QuestionID uint
	Reason     string
}

func (e *InvalidLocalInputError) Error() string {
	return fmt.Sprintf("invalid input for question %d: %s", e.QuestionID, e.Reason)
}

// SubmissionRejectedError wraps a submission store failure. Answers and timer
// state are preserved so the caller may retry.
type SubmissionRejectedError struct {
	Err error
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %v", e.Err)
}

func (e *SubmissionRejectedError) Unwrap() error { return e.Err }

// IsValidationBlocked reports whether err is a completeness block.
func IsValidationBlocked(err error) bool {
	var vbe *ValidationBlockedError
	return errors.As(err, &vbe)
}

// IsInvalidLocalInput reports whether err is a per-variant input rejection.
func IsInvalidLocalInput(err error) bool {
	var ile *InvalidLocalInputError
	return errors.As(err, &ile)
}

// IsSubmissionRejected reports whether err is a retryable store failure.
func IsSubmissionRejected(err error) bool {
	var sre *SubmissionRejectedError
	return errors.As(err, &sre)
}
