package model

import (
	"time"
)

// Analysis 一次代码分析的持久化记录，写入后不再修改
type Analysis struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	UserID         int64     `gorm:"not null;index;index:idx_analyses_user_created,priority:1" json:"user_id"`
	CodeOriginal   string    `gorm:"type:text;not null" json:"code_original"`
	CodeImproved   *string   `gorm:"type:text" json:"code_improved,omitempty"`
	AnalysisResult string    `gorm:"type:text;not null" json:"analysis_result"`
	QualityScore   *int      `gorm:"check:quality_score IS NULL OR (quality_score >= 0 AND quality_score <= 100)" json:"quality_score,omitempty"`
	ModelUsed      string    `gorm:"size:50;not null;default:gemini-2.5-flash" json:"model_used"`
	CreatedAt      time.Time `gorm:"index;index:idx_analyses_user_created,priority:2" json:"created_at"`

	// 关联
	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

func (Analysis) TableName() string {
	return "analyses"
}
