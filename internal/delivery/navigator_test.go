package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupulse/assessment-delivery/internal/models"
)

func TestNavigator_Bounds(t *testing.T) {
	nav := NewNavigator(3)

	assert.Equal(t, 0, nav.Index())
	assert.False(t, nav.Previous(), "previous at first question is a no-op")
	assert.Equal(t, 0, nav.Index())

	assert.True(t, nav.Next())
	assert.True(t, nav.Next())
	assert.Equal(t, 2, nav.Index())

	assert.False(t, nav.Next(), "next at last question is a no-op")
	assert.Equal(t, 2, nav.Index())

	assert.True(t, nav.Previous())
	assert.Equal(t, 1, nav.Index())
}

func TestNavigator_JumpTo(t *testing.T) {
	nav := NewNavigator(5)

	assert.True(t, nav.JumpTo(4))
	assert.Equal(t, 4, nav.Index())

	assert.False(t, nav.JumpTo(5), "out of range high")
	assert.Equal(t, 4, nav.Index())

	assert.False(t, nav.JumpTo(-1), "out of range low")
	assert.Equal(t, 4, nav.Index())

	assert.True(t, nav.JumpTo(0))
	assert.Equal(t, 0, nav.Index())
}

func TestNavigator_EmptySequence(t *testing.T) {
	nav := NewNavigator(0)
	assert.False(t, nav.Next())
	assert.False(t, nav.Previous())
	assert.False(t, nav.JumpTo(0))
}

func TestCurrentSection(t *testing.T) {
	sectionA := uint(10)
	sectionB := uint(20)
	sections := []models.Section{
		{ID: sectionA, Title: "Part A", Order: 1},
		{ID: sectionB, Title: "Part B", Order: 2},
	}
	questions := []models.Question{
		{ID: 1, SectionID: &sectionA},
		{ID: 2, SectionID: &sectionB},
		{ID: 3}, // unsectioned
	}

	got := CurrentSection(sections, questions, 0)
	assert.NotNil(t, got)
	assert.Equal(t, "Part A", got.Title)

	got = CurrentSection(sections, questions, 1)
	assert.NotNil(t, got)
	assert.Equal(t, "Part B", got.Title)

	assert.Nil(t, CurrentSection(sections, questions, 2), "unsectioned question has no section")
	assert.Nil(t, CurrentSection(sections, questions, 99), "out of range index has no section")
}
