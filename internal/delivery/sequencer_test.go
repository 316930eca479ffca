package delivery

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edupulse/assessment-delivery/internal/models"
)

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func questionIDs(questions []models.Question) []uint {
	ids := make([]uint, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}

func TestSequence_SectionOrderThenIntraOrder(t *testing.T) {
	sectionA := uint(1)
	sectionB := uint(2)
	assessment := &models.Assessment{
		ID: 1,
		Sections: []models.Section{
			{
				ID: sectionB, Order: 2,
				Questions: []models.Question{
					{ID: 4, SectionID: &sectionB, OrderIndex: 2},
					{ID: 3, SectionID: &sectionB, OrderIndex: 1},
				},
			},
			{
				ID: sectionA, Order: 1,
				Questions: []models.Question{
					{ID: 2, SectionID: &sectionA, OrderIndex: 2},
					{ID: 1, SectionID: &sectionA, OrderIndex: 1},
				},
			},
		},
	}

	// Deterministic across repeated calls when shuffling is off.
	for i := 0; i < 3; i++ {
		got := Sequence(assessment, false, newRand(int64(i)))
		assert.Equal(t, []uint{1, 2, 3, 4}, questionIDs(got))
	}
}

func TestSequence_FlatListSortedByOrderIndex(t *testing.T) {
	assessment := &models.Assessment{
		Questions: []models.Question{
			{ID: 30, OrderIndex: 3},
			{ID: 10, OrderIndex: 1},
			{ID: 20, OrderIndex: 2},
		},
	}

	got := Sequence(assessment, false, newRand(1))
	assert.Equal(t, []uint{10, 20, 30}, questionIDs(got))
}

func TestSequence_ShuffleSkippedInPreview(t *testing.T) {
	assessment := &models.Assessment{
		ShuffleQuestions: true,
		Questions: []models.Question{
			{ID: 1, OrderIndex: 1},
			{ID: 2, OrderIndex: 2},
			{ID: 3, OrderIndex: 3},
			{ID: 4, OrderIndex: 4},
		},
	}

	// Preview always presents canonical order regardless of seed.
	for seed := int64(0); seed < 5; seed++ {
		got := Sequence(assessment, true, newRand(seed))
		assert.Equal(t, []uint{1, 2, 3, 4}, questionIDs(got))
	}
}

func TestSequence_ShuffleIsPermutationAndSeedStable(t *testing.T) {
	assessment := &models.Assessment{
		ShuffleQuestions: true,
		Questions: []models.Question{
			{ID: 1, OrderIndex: 1},
			{ID: 2, OrderIndex: 2},
			{ID: 3, OrderIndex: 3},
			{ID: 4, OrderIndex: 4},
			{ID: 5, OrderIndex: 5},
		},
	}

	first := questionIDs(Sequence(assessment, false, newRand(42)))
	second := questionIDs(Sequence(assessment, false, newRand(42)))
	assert.Equal(t, first, second, "same seed must reproduce the permutation")

	require.Len(t, first, 5)
	assert.ElementsMatch(t, []uint{1, 2, 3, 4, 5}, first)
}

func TestSequence_EmptyAssessment(t *testing.T) {
	got := Sequence(&models.Assessment{}, false, newRand(1))
	assert.Empty(t, got, "zero questions is a valid nothing-to-deliver state")
}

func TestSequence_DoesNotMutateInput(t *testing.T) {
	assessment := &models.Assessment{
		ShuffleQuestions: true,
		Questions: []models.Question{
			{ID: 1, OrderIndex: 1},
			{ID: 2, OrderIndex: 2},
			{ID: 3, OrderIndex: 3},
		},
	}

	Sequence(assessment, false, newRand(7))
	assert.Equal(t, uint(1), assessment.Questions[0].ID)
	assert.Equal(t, uint(2), assessment.Questions[1].ID)
	assert.Equal(t, uint(3), assessment.Questions[2].ID)
}
