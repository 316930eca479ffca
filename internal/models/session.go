package models

import (
	"encoding/json"
	"time"
)

// SessionState is the mutable state of one delivery session. IsCompleted
// transitions exactly once, from false to true, and is terminal: no answer
// mutation or timer ticking happens after that point.
type SessionState struct {
	CurrentIndex int `json:"current_index"`

	// RemainingSeconds is nil for untimed sessions.
	RemainingSeconds *int `json:"remaining_seconds"`

	IsSubmitting bool `json:"is_submitting"`
	IsCompleted  bool `json:"is_completed"`
}

// SessionSnapshot is the cache-persisted form of a running session, enough to
// restore answers and position after a client interruption.
type SessionSnapshot struct {
	SessionID    string          `json:"session_id"`
	AssessmentID uint            `json:"assessment_id"`
	StudentID    string          `json:"student_id"`
	IsPreview    bool            `json:"is_preview"`
	State        SessionState    `json:"state"`
	Answers      []StudentAnswer `json:"answers"`
	StartedAt    time.Time       `json:"started_at"`

	// One-time shuffled presentations, keyed by question id, so a resumed
	// session shows the same matching response column and ordering start
	// order instead of re-shuffling.
	MatchingOrders map[uint][]MatchItem `json:"matching_orders,omitempty"`
	OrderingInits  map[uint][]string    `json:"ordering_inits,omitempty"`
}

// SubmissionResult is the opaque payload returned by the submission store.
// The engine checks ResultID for existence and passes the rest through.
type SubmissionResult struct {
	ResultID string          `json:"result_id"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

// AnswerPayload is one {questionId, answerData} pair of the submission wire
// format. The store is order-insensitive; the engine still emits pairs in
// sequenced question order for determinism.
type AnswerPayload struct {
	QuestionID uint            `json:"question_id"`
	AnswerData json.RawMessage `json:"answer_data"`
}

// SessionSummary carries the completion statistics shown on final review.
type SessionSummary struct {
	QuestionCount      int `json:"question_count"`
	AnsweredCount      int `json:"answered_count"`
	PointsPossible     int `json:"points_possible"`
	UnansweredRequired int `json:"unanswered_required"`
}
