package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
	LongAnswer     QuestionType = "long_answer"
	Matching       QuestionType = "matching"
	Ordering       QuestionType = "ordering"
	FillBlank      QuestionType = "fill_blank"
	Numeric        QuestionType = "numeric"
	FileUpload     QuestionType = "file_upload"
	Unsupported    QuestionType = "other"
)

// AllQuestionTypes is the closed set of supported variants. Adding a variant
// requires a matching policy entry in the delivery package.
var AllQuestionTypes = []QuestionType{
	SingleChoice,
	MultipleChoice,
	TrueFalse,
	ShortAnswer,
	LongAnswer,
	Matching,
	Ordering,
	FillBlank,
	Numeric,
	FileUpload,
	Unsupported,
}

type Assessment struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Title        string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description  *string `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	Instructions *string `json:"instructions" gorm:"type:text"`

	// TimeLimit is in minutes; nil means the session is untimed.
	TimeLimit        *int `json:"time_limit" validate:"omitempty,min=1,max=300"`
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Either Sections or Questions is populated; a sectioned assessment keeps
	// its flat question list empty and vice versa.
	Sections  []Section  `json:"sections" gorm:"foreignKey:AssessmentID"`
	Questions []Question `json:"questions" gorm:"foreignKey:AssessmentID"`
}

func (Assessment) TableName() string {
	return "assessments"
}

type Section struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	AssessmentID uint    `json:"assessment_id" gorm:"not null;index"`
	Title        string  `json:"title" gorm:"not null;size:200"`
	Description  *string `json:"description" gorm:"type:text"`

	// Order positions the section within its assessment. Sections are never
	// reordered at runtime.
	Order int `json:"order" gorm:"column:order_num;not null"`

	Questions []Question `json:"questions" gorm:"foreignKey:SectionID"`
}

func (Section) TableName() string {
	return "assessment_sections"
}

type Question struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	AssessmentID uint         `json:"assessment_id" gorm:"index"`
	SectionID    *uint        `json:"section_id" gorm:"index"`
	Text         string       `json:"text" gorm:"type:text;not null" validate:"required"`
	Type         QuestionType `json:"type" gorm:"not null;index" validate:"required,question_type"`
	Required     bool         `json:"required" gorm:"default:false"`
	Points       int          `json:"points" gorm:"default:1" validate:"min=0,max=100"`

	// OrderIndex is unique within the containing section (or globally when the
	// assessment is unsectioned) and defines presentation order before any
	// shuffle is applied.
	OrderIndex int `json:"order_index" gorm:"not null"`

	// Format holds the type-specific payload (options, blanks, bounds, ...),
	// decoded on demand in the delivery package.
	Format datatypes.JSON `json:"format" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== TYPE-SPECIFIC FORMAT PAYLOADS =====

type ChoiceOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ChoiceFormat covers both single_choice and multiple_choice.
type ChoiceFormat struct {
	Options []ChoiceOption `json:"options"`
}

type MatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type MatchingFormat struct {
	Prompts   []MatchItem `json:"prompts"`
	Responses []MatchItem `json:"responses"`
}

type OrderingItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type OrderingFormat struct {
	Items []OrderingItem `json:"items"`
}

type BlankDef struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// FillBlankFormat carries a template with positional blank markers; blanks are
// matched to markers by ascending Position.
type FillBlankFormat struct {
	Template string     `json:"template"`
	Blanks   []BlankDef `json:"blanks"`
}

type NumericFormat struct {
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	Step      *float64 `json:"step"`
	Precision *int     `json:"precision"`
	Unit      string   `json:"unit"`
}

type FileUploadFormat struct {
	AcceptedMimeTypes  []string `json:"accepted_mime_types"`
	AcceptedExtensions []string `json:"accepted_extensions"`
	MaxSizeBytes       int64    `json:"max_size_bytes"`
}
