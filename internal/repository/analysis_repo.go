package repository

import (
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/internal/model"
)

type AnalysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Create(analysis *model.Analysis) error {
	return r.db.Create(analysis).Error
}

func (r *AnalysisRepository) GetByID(id int64) (*model.Analysis, error) {
	var analysis model.Analysis
	err := r.db.Where("id = ?", id).First(&analysis).Error
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// ListByUserID 按创建时间倒序分页，total 独立于当前页计算
func (r *AnalysisRepository) ListByUserID(userID int64, limit, offset int) ([]*model.Analysis, int64, error) {
	var analyses []*model.Analysis
	var total int64

	query := r.db.Model(&model.Analysis{}).Where("user_id = ?", userID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&analyses).Error; err != nil {
		return nil, 0, err
	}

	return analyses, total, nil
}

func (r *AnalysisRepository) CountByUserID(userID int64) (int64, error) {
	var count int64
	err := r.db.Model(&model.Analysis{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// AverageScore 只统计有评分的记录，无记录时返回 0
func (r *AnalysisRepository) AverageScore(userID int64) (float64, error) {
	var avg *float64
	err := r.db.Model(&model.Analysis{}).
		Where("user_id = ? AND quality_score IS NOT NULL", userID).
		Select("AVG(quality_score)").
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	if avg == nil {
		return 0, nil
	}
	return *avg, nil
}
