package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	user := &model.User{
		Email:        fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuvwxyz123456", // bcrypt hash placeholder
		Role:         "free",
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithRole 设置角色
func WithRole(role string) func(*model.User) {
	return func(u *model.User) {
		u.Role = role
	}
}

// WithGeminiKey 设置用户自备的 Gemini API key
func WithGeminiKey(key string) func(*model.User) {
	return func(u *model.User) {
		u.GeminiAPIKey = key
	}
}

// WithCounters 设置配额计数器
func WithCounters(today, total int, lastAnalysis *time.Time) func(*model.User) {
	return func(u *model.User) {
		u.AnalysesToday = today
		u.TotalAnalyses = total
		u.LastAnalysisDate = lastAnalysis
	}
}

// TestAnalysis 创建测试分析记录
func TestAnalysis(t *testing.T, db *gorm.DB, userID int64, opts ...func(*model.Analysis)) *model.Analysis {
	t.Helper()

	analysis := &model.Analysis{
		UserID:         userID,
		CodeOriginal:   "def add(a, b): return a + b",
		AnalysisResult: "Quality Score: 80/100",
		ModelUsed:      "gemini-2.5-flash",
	}

	for _, opt := range opts {
		opt(analysis)
	}

	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("Failed to create test analysis: %v", err)
	}

	return analysis
}

// WithScore 设置评分
func WithScore(score int) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.QualityScore = &score
	}
}

// WithCode 设置原始代码
func WithCode(code string) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.CodeOriginal = code
	}
}

// WithCreatedAt 设置创建时间
func WithCreatedAt(ts time.Time) func(*model.Analysis) {
	return func(a *model.Analysis) {
		a.CreatedAt = ts
	}
}
