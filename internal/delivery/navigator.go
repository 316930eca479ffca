package delivery

import (
	"github.com/edupulse/assessment-delivery/internal/models"
)

// Navigator tracks the current position in the sequenced question list and
// enforces bounds. Out-of-range moves are no-ops, never errors.
type Navigator struct {
	index int
	count int
}

func NewNavigator(count int) *Navigator {
	return &Navigator{count: count}
}

func (n *Navigator) Index() int { return n.index }
func (n *Navigator) Count() int { return n.count }

// Next advances one question; reports whether the index moved.
func (n *Navigator) Next() bool {
	if n.index < n.count-1 {
		n.index++
		return true
	}
	return false
}

// Previous steps back one question; reports whether the index moved.
func (n *Navigator) Previous() bool {
	if n.index > 0 {
		n.index--
		return true
	}
	return false
}

// JumpTo sets the index directly; reports whether i was in bounds.
func (n *Navigator) JumpTo(i int) bool {
	if i >= 0 && i < n.count {
		n.index = i
		return true
	}
	return false
}

// CurrentSection returns the section containing the question at index, or nil
// for unsectioned questions or an out-of-range index. Used only for display
// context, never to gate navigation.
func CurrentSection(sections []models.Section, questions []models.Question, index int) *models.Section {
	if index < 0 || index >= len(questions) {
		return nil
	}
	sectionID := questions[index].SectionID
	if sectionID == nil {
		return nil
	}
	for i := range sections {
		if sections[i].ID == *sectionID {
			return &sections[i]
		}
	}
	return nil
}
