package delivery

import (
	"sort"
	"time"

	"github.com/edupulse/assessment-delivery/internal/models"
)

// AnswerStore is the session-scoped mapping from question id to the answer
// currently given for that question. It is mutated only through the session's
// update operations; exclusivity is structural (one editor at a time), so the
// store itself carries no lock.
type AnswerStore struct {
	answers map[uint]models.StudentAnswer
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers: make(map[uint]models.StudentAnswer),
	}
}

// Get returns the current answer for a question, if any.
func (s *AnswerStore) Get(questionID uint) (models.StudentAnswer, bool) {
	answer, ok := s.answers[questionID]
	return answer, ok
}

// Set records the answer for its question, replacing any prior value.
func (s *AnswerStore) Set(answer models.StudentAnswer) {
	answer.UpdatedAt = time.Now()
	s.answers[answer.QuestionID] = answer
}

// Delete removes the answer for a question.
func (s *AnswerStore) Delete(questionID uint) {
	delete(s.answers, questionID)
}

// Len returns the number of answer entries.
func (s *AnswerStore) Len() int {
	return len(s.answers)
}

// All returns every entry sorted by question id, for snapshots.
func (s *AnswerStore) All() []models.StudentAnswer {
	out := make([]models.StudentAnswer, 0, len(s.answers))
	for _, answer := range s.answers {
		out = append(out, answer)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

// Restore replaces the store contents from a snapshot.
func (s *AnswerStore) Restore(answers []models.StudentAnswer) {
	s.answers = make(map[uint]models.StudentAnswer, len(answers))
	for _, answer := range answers {
		s.answers[answer.QuestionID] = answer
	}
}
