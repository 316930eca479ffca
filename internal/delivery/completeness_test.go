package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupulse/assessment-delivery/internal/models"
)

func answeredChoice(t *testing.T, store *AnswerStore, questionID uint, options ...string) {
	t.Helper()
	store.Set(models.StudentAnswer{
		QuestionID: questionID,
		Type:       models.SingleChoice,
		Data:       mustJSON(t, models.ChoiceAnswer{SelectedOptions: options}),
	})
}

func TestFindUnanswered(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.SingleChoice, Required: true},
		{ID: 2, Type: models.SingleChoice, Required: true},
		{ID: 3, Type: models.ShortAnswer, Required: false},
		{ID: 4, Type: models.Unsupported, Required: true},
	}
	store := NewAnswerStore()
	answeredChoice(t, store, 1, "a")

	unanswered := FindUnanswered(questions, store)
	assert.Len(t, unanswered, 1)
	assert.Equal(t, uint(2), unanswered[0].ID, "optional and unsupported questions never block")
}

func TestFindUnanswered_EmptyEntryCountsAsUnanswered(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.ShortAnswer, Required: true},
	}
	store := NewAnswerStore()
	store.Set(models.StudentAnswer{
		QuestionID: 1,
		Type:       models.ShortAnswer,
		Data:       mustJSON(t, models.TextAnswer{Text: "   "}),
	})

	unanswered := FindUnanswered(questions, store)
	assert.Len(t, unanswered, 1, "whitespace-only text is empty")
}

func TestFindUnanswered_Idempotent(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.SingleChoice, Required: true},
		{ID: 2, Type: models.TrueFalse, Required: true},
		{ID: 3, Type: models.Numeric, Required: true},
	}
	store := NewAnswerStore()
	answeredChoice(t, store, 1, "a")

	first := FindUnanswered(questions, store)
	second := FindUnanswered(questions, store)
	assert.Equal(t, first, second)
}

func TestFindUnanswered_PreservesSequenceOrder(t *testing.T) {
	questions := []models.Question{
		{ID: 9, Type: models.SingleChoice, Required: true},
		{ID: 3, Type: models.SingleChoice, Required: true},
		{ID: 7, Type: models.SingleChoice, Required: true},
	}
	store := NewAnswerStore()

	unanswered := FindUnanswered(questions, store)
	assert.Equal(t, []uint{9, 3, 7}, questionIDs(unanswered))
}

func TestBuildSummary(t *testing.T) {
	questions := []models.Question{
		{ID: 1, Type: models.SingleChoice, Required: true, Points: 2},
		{ID: 2, Type: models.ShortAnswer, Required: true, Points: 3},
		{ID: 3, Type: models.Numeric, Required: false, Points: 5},
	}
	store := NewAnswerStore()
	answeredChoice(t, store, 1, "a")
	store.Set(models.StudentAnswer{
		QuestionID: 3,
		Type:       models.Numeric,
		Data:       mustJSON(t, models.NumericAnswer{Value: floatPtr(0)}),
	})

	summary := BuildSummary(questions, store)
	assert.Equal(t, 3, summary.QuestionCount)
	assert.Equal(t, 2, summary.AnsweredCount, "numeric zero counts as answered")
	assert.Equal(t, 10, summary.PointsPossible)
	assert.Equal(t, 1, summary.UnansweredRequired)
}
