package delivery

import (
	"github.com/edupulse/assessment-delivery/internal/models"
)

// FindUnanswered returns, in sequence order, every required question with no
// answer entry or an answer the per-type emptiness predicate considers empty.
// Unsupported/other questions never block and are excluded outright. The
// function reads but never mutates its inputs, so repeated calls over an
// unchanged store yield identical results.
func FindUnanswered(questions []models.Question, store *AnswerStore) []models.Question {
	var unanswered []models.Question
	for _, q := range questions {
		if !q.Required || q.Type == models.Unsupported {
			continue
		}
		answer, ok := store.Get(q.ID)
		if !ok || IsAnswerEmpty(q.Type, answer.Data) {
			unanswered = append(unanswered, q)
		}
	}
	return unanswered
}
