package models

import (
	"encoding/json"
	"time"
)

// StudentAnswer is the session-scoped record for one question. Data carries
// the type-specific payload and Type always matches the question's type; the
// engine never stores a payload shape inconsistent with its question.
type StudentAnswer struct {
	QuestionID uint            `json:"question_id"`
	Type       QuestionType    `json:"type"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ===== TYPE-SPECIFIC ANSWER PAYLOADS =====

// ChoiceAnswer covers single_choice and multiple_choice; single_choice carries
// at most one selected option id.
type ChoiceAnswer struct {
	SelectedOptions []string `json:"selected_options"`
}

type TrueFalseAnswer struct {
	Value *bool `json:"value"`
}

// TextAnswer covers short_answer and long_answer.
type TextAnswer struct {
	Text string `json:"text"`
}

type FillBlankAnswer struct {
	// Blanks maps blank id to the entered text and is the canonical answer.
	Blanks map[string]string `json:"blanks"`
	// Formatted is the template with answers substituted in, kept for
	// payload/display only.
	Formatted string `json:"formatted,omitempty"`
}

type MatchingAnswer struct {
	// Pairs maps prompt id to the chosen response id.
	Pairs map[string]string `json:"pairs"`
}

type OrderingAnswer struct {
	// Order lists item ids in the student's chosen sequence.
	Order []string `json:"order"`
}

type NumericAnswer struct {
	Value *float64 `json:"value"`
	Unit  string   `json:"unit,omitempty"`
}

type FileUploadAnswer struct {
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	MimeType  string `json:"mime_type"`
	SizeBytes int64  `json:"size_bytes"`
}
