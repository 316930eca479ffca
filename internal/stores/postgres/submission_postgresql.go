package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edupulse/assessment-delivery/internal/models"
	"github.com/edupulse/assessment-delivery/internal/stores"
)

type SubmissionPostgreSQL struct {
	db *gorm.DB
}

func NewSubmissionPostgreSQL(db *gorm.DB) stores.SubmissionStore {
	return &SubmissionPostgreSQL{db: db}
}

// Submit persists the submission and its answer rows in one transaction. A
// session id that already has a submission is a conflict, never a second row.
func (s *SubmissionPostgreSQL) Submit(ctx context.Context, req *stores.SubmissionRequest) (*models.SubmissionResult, error) {
	submission := models.Submission{
		ResultID:     uuid.NewString(),
		SessionID:    req.SessionID,
		AssessmentID: req.AssessmentID,
		StudentID:    req.StudentID,
		Forced:       req.Forced,
		TimeSpent:    req.TimeSpent,
	}
	for _, answer := range req.Answers {
		submission.Answers = append(submission.Answers, models.SubmissionAnswer{
			QuestionID: answer.QuestionID,
			AnswerData: datatypes.JSON(answer.AnswerData),
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Submission
		err := tx.Where("session_id = ?", req.SessionID).First(&existing).Error
		if err == nil {
			return stores.ErrAlreadySubmitted
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&submission).Error
	})
	if err != nil {
		return nil, err
	}

	return &models.SubmissionResult{ResultID: submission.ResultID}, nil
}

// GetBySession returns the persisted submission for a session, if any.
func (s *SubmissionPostgreSQL) GetBySession(ctx context.Context, sessionID string) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Answers").
		Where("session_id = ?", sessionID).
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}
