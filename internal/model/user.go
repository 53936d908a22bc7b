package model

import (
	"time"
)

type User struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	Email            string     `gorm:"size:120;uniqueIndex;not null" json:"email"`
	PasswordHash     string     `gorm:"size:255;not null" json:"-"`
	FullName         string     `gorm:"size:100" json:"full_name,omitempty"`
	Role             string     `gorm:"size:20;default:free;index" json:"role"` // free, pro, unlimited
	IsActive         bool       `gorm:"default:true" json:"is_active"`
	GeminiAPIKey     string     `gorm:"column:gemini_api_key;size:500" json:"-"`
	AnalysesToday    int        `gorm:"default:0" json:"analyses_today"`
	TotalAnalyses    int        `gorm:"default:0" json:"total_analyses"`
	LastAnalysisDate *time.Time `json:"last_analysis_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
