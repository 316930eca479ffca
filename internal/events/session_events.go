package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents different types of session lifecycle events
type EventType string

const (
	// Session lifecycle events
	EventSessionStarted   EventType = "session.started"
	EventSessionResumed   EventType = "session.resumed"
	EventSessionClosed    EventType = "session.closed"
	EventSessionSubmitted EventType = "session.submitted"

	// Timer events
	EventSessionTimeWarning    EventType = "session.time_warning"
	EventSessionForceSubmitted EventType = "session.force_submitted"

	// Failure events
	EventSessionSubmitFailed EventType = "session.submit_failed"
)

// SessionEvent is the base event structure for all session events
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

const eventSource = "assessment-delivery"

// GenerateEventID returns a unique identifier for a new event
func GenerateEventID() string {
	return uuid.NewString()
}

// Session lifecycle event payloads

type SessionStartedEvent struct {
	SessionID       string    `json:"session_id"`
	AssessmentID    uint      `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	StudentID       string    `json:"student_id"`
	StartedAt       time.Time `json:"started_at"`
	TimeLimit       *int      `json:"time_limit,omitempty"` // minutes
	IsPreview       bool      `json:"is_preview"`
	QuestionCount   int       `json:"question_count"`
}

type SessionResumedEvent struct {
	SessionID    string    `json:"session_id"`
	AssessmentID uint      `json:"assessment_id"`
	StudentID    string    `json:"student_id"`
	ResumedAt    time.Time `json:"resumed_at"`
	AnswerCount  int       `json:"answer_count"`
}

type SessionClosedEvent struct {
	SessionID    string    `json:"session_id"`
	AssessmentID uint      `json:"assessment_id"`
	StudentID    string    `json:"student_id"`
	ClosedAt     time.Time `json:"closed_at"`
	Submitted    bool      `json:"submitted"`
}

type SessionSubmittedEvent struct {
	SessionID     string    `json:"session_id"`
	AssessmentID  uint      `json:"assessment_id"`
	StudentID     string    `json:"student_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
	ResultID      string    `json:"result_id,omitempty"`
	Forced        bool      `json:"forced"`
	AnsweredCount int       `json:"answered_count"`
	QuestionCount int       `json:"question_count"`
	TimeSpent     *int      `json:"time_spent,omitempty"` // seconds
}

// Timer event payloads

type SessionTimeWarningEvent struct {
	SessionID        string    `json:"session_id"`
	AssessmentID     uint      `json:"assessment_id"`
	StudentID        string    `json:"student_id"`
	SecondsRemaining int       `json:"seconds_remaining"`
	WarningTime      time.Time `json:"warning_time"`
}

// Failure event payloads

type SessionSubmitFailedEvent struct {
	SessionID    string    `json:"session_id"`
	AssessmentID uint      `json:"assessment_id"`
	StudentID    string    `json:"student_id"`
	FailedAt     time.Time `json:"failed_at"`
	Reason       string    `json:"reason"`
	Forced       bool      `json:"forced"`
}

// ===== EVENT CONSTRUCTORS =====

func newEvent(eventType EventType, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    eventSource,
		Version:   "1.0",
		Data:      data,
	}
}

func NewSessionStartedEvent(sessionID string, assessmentID uint, title, studentID string, startedAt time.Time, timeLimit *int, isPreview bool, questionCount int) *SessionEvent {
	return newEvent(EventSessionStarted, SessionStartedEvent{
		SessionID:       sessionID,
		AssessmentID:    assessmentID,
		AssessmentTitle: title,
		StudentID:       studentID,
		StartedAt:       startedAt,
		TimeLimit:       timeLimit,
		IsPreview:       isPreview,
		QuestionCount:   questionCount,
	})
}

func NewSessionResumedEvent(sessionID string, assessmentID uint, studentID string, answerCount int) *SessionEvent {
	return newEvent(EventSessionResumed, SessionResumedEvent{
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		StudentID:    studentID,
		ResumedAt:    time.Now(),
		AnswerCount:  answerCount,
	})
}

func NewSessionClosedEvent(sessionID string, assessmentID uint, studentID string, submitted bool) *SessionEvent {
	return newEvent(EventSessionClosed, SessionClosedEvent{
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		StudentID:    studentID,
		ClosedAt:     time.Now(),
		Submitted:    submitted,
	})
}

func NewSessionSubmittedEvent(sessionID string, assessmentID uint, studentID, resultID string, forced bool, answeredCount, questionCount int, timeSpent *int) *SessionEvent {
	eventType := EventSessionSubmitted
	if forced {
		eventType = EventSessionForceSubmitted
	}
	return newEvent(eventType, SessionSubmittedEvent{
		SessionID:     sessionID,
		AssessmentID:  assessmentID,
		StudentID:     studentID,
		SubmittedAt:   time.Now(),
		ResultID:      resultID,
		Forced:        forced,
		AnsweredCount: answeredCount,
		QuestionCount: questionCount,
		TimeSpent:     timeSpent,
	})
}

func NewSessionTimeWarningEvent(sessionID string, assessmentID uint, studentID string, secondsRemaining int) *SessionEvent {
	return newEvent(EventSessionTimeWarning, SessionTimeWarningEvent{
		SessionID:        sessionID,
		AssessmentID:     assessmentID,
		StudentID:        studentID,
		SecondsRemaining: secondsRemaining,
		WarningTime:      time.Now(),
	})
}

func NewSessionSubmitFailedEvent(sessionID string, assessmentID uint, studentID, reason string, forced bool) *SessionEvent {
	return newEvent(EventSessionSubmitFailed, SessionSubmitFailedEvent{
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		StudentID:    studentID,
		FailedAt:     time.Now(),
		Reason:       reason,
		Forced:       forced,
	})
}
