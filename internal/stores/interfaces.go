package stores

import (
	"context"
	"errors"

	"github.com/edupulse/assessment-delivery/internal/models"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrAlreadySubmitted   = errors.New("submission already recorded for this session")
)

// AssessmentStore is the read collaborator: it fetches assessment definitions
// by id. A failure here is fatal to the session (load error).
type AssessmentStore interface {
	GetAssessment(ctx context.Context, id uint) (*models.Assessment, error)
}

// SubmissionRequest is the wire payload handed to the submission store. The
// store is order-insensitive over Answers.
type SubmissionRequest struct {
	SessionID    string                 `json:"session_id"`
	AssessmentID uint                   `json:"assessment_id"`
	StudentID    string                 `json:"student_id"`
	Answers      []models.AnswerPayload `json:"answers"`

	// TimeSpent is seconds consumed against the time limit; omitted for
	// untimed sessions.
	TimeSpent *int `json:"time_spent,omitempty"`

	// Forced marks a submission triggered by timer expiry.
	Forced bool `json:"forced"`
}

// SubmissionStore is the write collaborator: it persists a finished session
// exactly once and returns an opaque result carrying a durable result id.
type SubmissionStore interface {
	Submit(ctx context.Context, req *SubmissionRequest) (*models.SubmissionResult, error)
}
