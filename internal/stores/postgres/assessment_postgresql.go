package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edupulse/assessment-delivery/internal/models"
	"github.com/edupulse/assessment-delivery/internal/stores"
)

type AssessmentPostgreSQL struct {
	db *gorm.DB
}

func NewAssessmentPostgreSQL(db *gorm.DB) stores.AssessmentStore {
	return &AssessmentPostgreSQL{db: db}
}

// GetAssessment loads an assessment with its sections and questions. Ordering
// is applied at sequencing time, so the preloads only need stable output.
func (a *AssessmentPostgreSQL) GetAssessment(ctx context.Context, id uint) (*models.Assessment, error) {
	var assessment models.Assessment
	if err := a.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("assessment_sections.order_num ASC")
		}).
		Preload("Sections.Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.order_index ASC")
		}).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Where("questions.section_id IS NULL").Order("questions.order_index ASC")
		}).
		First(&assessment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, stores.ErrAssessmentNotFound
		}
		return nil, err
	}
	return &assessment, nil
}
