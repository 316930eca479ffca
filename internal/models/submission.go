package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission is the persisted record of a completed session.
type Submission struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ResultID     string    `json:"result_id" gorm:"size:36;uniqueIndex;not null"`
	SessionID    string    `json:"session_id" gorm:"size:36;uniqueIndex;not null"`
	AssessmentID uint      `json:"assessment_id" gorm:"index;not null"`
	StudentID    string    `json:"student_id" gorm:"size:64;index;not null"`
	Forced       bool      `json:"forced" gorm:"default:false"`
	TimeSpent    *int      `json:"time_spent,omitempty"` // seconds
	SubmittedAt  time.Time `json:"submitted_at" gorm:"autoCreateTime"`

	Answers []SubmissionAnswer `json:"answers,omitempty" gorm:"foreignKey:SubmissionID;constraint:OnDelete:CASCADE"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionAnswer is one persisted answer row within a submission.
type SubmissionAnswer struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	SubmissionID uint           `json:"submission_id" gorm:"index;not null"`
	QuestionID   uint           `json:"question_id" gorm:"index;not null"`
	AnswerData   datatypes.JSON `json:"answer_data" gorm:"type:jsonb"`
}

func (SubmissionAnswer) TableName() string {
	return "submission_answers"
}
