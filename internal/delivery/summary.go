package delivery

import (
	"github.com/edupulse/assessment-delivery/internal/models"
)

// BuildSummary derives the final-review statistics purely from the question
// list and answer store.
func BuildSummary(questions []models.Question, store *AnswerStore) models.SessionSummary {
	summary := models.SessionSummary{
		QuestionCount: len(questions),
	}
	for _, q := range questions {
		summary.PointsPossible += q.Points
		if answer, ok := store.Get(q.ID); ok && !IsAnswerEmpty(q.Type, answer.Data) {
			summary.AnsweredCount++
		}
	}
	summary.UnansweredRequired = len(FindUnanswered(questions, store))
	return summary
}
