package gorm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/thebtf/textclust/pkg/models"
)

// DefaultMaxAnalyses is the number of analyses kept when no limit is configured.
const DefaultMaxAnalyses = 1000

// ErrNotFound is returned for an unknown analysis id.
var ErrNotFound = errors.New("analysis not found")

// AnalysisStore provides analysis-related database operations using GORM.
type AnalysisStore struct {
	db          *gorm.DB
	maxAnalyses int
}

// NewAnalysisStore creates a new analysis store keeping at most maxAnalyses
// rows; zero or less selects DefaultMaxAnalyses.
func NewAnalysisStore(store *Store, maxAnalyses int) *AnalysisStore {
	if maxAnalyses <= 0 {
		maxAnalyses = DefaultMaxAnalyses
	}
	return &AnalysisStore{db: store.DB, maxAnalyses: maxAnalyses}
}

// SaveAnalysis stores a and prunes the oldest analyses beyond the limit.
func (s *AnalysisStore) SaveAnalysis(ctx context.Context, a *models.Analysis) error {
	row, err := fromModel(a)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}

	deleted, err := s.cleanupOld(ctx)
	if err != nil {
		// the analysis itself was stored
		log.Warn().Err(err).Msg("Failed to prune old analyses")
	} else if deleted > 0 {
		log.Debug().Int64("deleted", deleted).Msg("Pruned old analyses")
	}
	return nil
}

// cleanupOld deletes analyses beyond the newest maxAnalyses.
func (s *AnalysisStore) cleanupOld(ctx context.Context) (int64, error) {
	keep := s.db.Model(&Analysis{}).
		Select("id").
		Order("created_at_epoch DESC, id DESC").
		Limit(s.maxAnalyses)

	result := s.db.WithContext(ctx).
		Where("id NOT IN (?)", keep).
		Delete(&Analysis{})
	return result.RowsAffected, result.Error
}

// GetAnalysis returns one analysis with its full result.
func (s *AnalysisStore) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	var row Analysis
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toModel(true)
}

// ListAnalyses returns the newest analyses first, without their result
// bodies. algorithm filters by algorithm when not empty.
func (s *AnalysisStore) ListAnalyses(ctx context.Context, algorithm string, limit int) ([]*models.Analysis, error) {
	if limit <= 0 {
		limit = 50
	}

	query := s.db.WithContext(ctx).
		Omit("result").
		Order("created_at_epoch DESC, id DESC").
		Limit(limit)
	if algorithm != "" {
		query = query.Where("algorithm = ?", algorithm)
	}

	var rows []Analysis
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*models.Analysis, 0, len(rows))
	for i := range rows {
		a, err := rows[i].toModel(false)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CountAnalyses returns the number of stored analyses.
func (s *AnalysisStore) CountAnalyses(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Analysis{}).Count(&n).Error
	return n, err
}

// DeleteAnalysis removes one analysis.
func (s *AnalysisStore) DeleteAnalysis(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&Analysis{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
