package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/models"
)

type AnalysisStore struct {
	db *gorm.DB
}

func NewAnalysisStore(db *gorm.DB) *AnalysisStore {
	return &AnalysisStore{db: db}
}

func (s *AnalysisStore) Create(ctx context.Context, a *models.PrescriptionAnalysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return translate(s.db.WithContext(ctx).Create(a).Error)
}

// ListByUID returns the newest analyses first.
func (s *AnalysisStore) ListByUID(ctx context.Context, uid, limit int) ([]models.PrescriptionAnalysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.PrescriptionAnalysis
	err := s.db.WithContext(ctx).
		Where("uid = ?", uid).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
