package delivery

import (
	"math/rand"
	"sort"

	"github.com/edupulse/assessment-delivery/internal/models"
)

// Sequence flattens an assessment into the ordered question list for one
// session. Sections are concatenated by section order, questions within a
// section (or the flat list) by order index. When the assessment requests
// shuffling and the session is not a preview, a uniform Fisher-Yates
// permutation is applied to the concatenated list.
//
// Sequencing runs exactly once per session; the returned slice is owned by
// the session and never re-shuffled, so navigator indexes stay valid.
func Sequence(a *models.Assessment, isPreview bool, rng *rand.Rand) []models.Question {
	var questions []models.Question

	if len(a.Sections) > 0 {
		sections := make([]models.Section, len(a.Sections))
		copy(sections, a.Sections)
		sort.SliceStable(sections, func(i, j int) bool {
			return sections[i].Order < sections[j].Order
		})

		for _, section := range sections {
			questions = append(questions, sortedByOrderIndex(section.Questions)...)
		}
	} else {
		questions = sortedByOrderIndex(a.Questions)
	}

	if a.ShuffleQuestions && !isPreview {
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	return questions
}

// SortedSections returns the assessment's sections in presentation order,
// for section lookups against the sequenced list.
func SortedSections(a *models.Assessment) []models.Section {
	sections := make([]models.Section, len(a.Sections))
	copy(sections, a.Sections)
	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Order < sections[j].Order
	})
	return sections
}

func sortedByOrderIndex(in []models.Question) []models.Question {
	out := make([]models.Question, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderIndex < out[j].OrderIndex
	})
	return out
}
