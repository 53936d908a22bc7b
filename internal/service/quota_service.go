package service

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/model/dto"
	"github.com/weblan/neural_go_server/internal/repository"
)

// QuotaService 滚动的每日配额账本：analyses_today 只统计
// last_analysis_date 当天的分析，跨天后在写入时归零，无需定时重置任务
type QuotaService struct {
	userRepo *repository.UserRepository
	cfg      *config.Config
	logger   *zap.Logger
	loc      *time.Location
}

func NewQuotaService(userRepo *repository.UserRepository, cfg *config.Config, logger *zap.Logger) *QuotaService {
	loc := time.Local
	if cfg.Analysis.Timezone != "" {
		if parsed, err := time.LoadLocation(cfg.Analysis.Timezone); err == nil {
			loc = parsed
		} else {
			logger.Warn("invalid analysis timezone, falling back to local",
				zap.String("timezone", cfg.Analysis.Timezone), zap.Error(err))
		}
	}

	return &QuotaService{
		userRepo: userRepo,
		cfg:      cfg,
		logger:   logger,
		loc:      loc,
	}
}

// DailyLimit 角色对应的每日配额，未配置的角色使用默认值，0 表示不限制
func (s *QuotaService) DailyLimit(role string) int {
	if limit, ok := s.cfg.Quota.Roles[role]; ok {
		return limit
	}
	return s.cfg.Analysis.DefaultDailyLimit
}

// CheckQuota 检查用户今日配额是否还有剩余
func (s *QuotaService) CheckQuota(userID int64) (bool, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return false, err
	}

	limit := s.DailyLimit(user.Role)
	if limit == 0 {
		return true, nil
	}

	return s.usedToday(user.AnalysesToday, user.LastAnalysisDate) < limit, nil
}

// RecordUsage 在持久化事务内更新计数器，必须与 Analysis 插入同提交同回滚。
// 行级锁保证同一用户并发请求不会基于同一份过期读数各自 +1。
func (s *QuotaService) RecordUsage(tx *gorm.DB, userID int64) error {
	userRepo := repository.NewUserRepository(tx)

	user, err := userRepo.GetByIDForUpdate(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 数据一致性异常，不阻塞分析本身
			s.logger.Warn("user not found for counter update", zap.Int64("user_id", userID))
			return nil
		}
		return err
	}

	now := time.Now()

	// 跨天归零后再自增
	today := user.AnalysesToday
	if user.LastAnalysisDate == nil || !s.sameDay(*user.LastAnalysisDate, now) {
		today = 0
	}

	return userRepo.UpdateFields(userID, map[string]interface{}{
		"analyses_today":     today + 1,
		"total_analyses":     user.TotalAnalyses + 1,
		"last_analysis_date": now,
	})
}

// GetQuotaInfo 获取用户配额信息
func (s *QuotaService) GetQuotaInfo(userID int64) (*dto.QuotaInfo, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	limit := s.DailyLimit(user.Role)
	used := s.usedToday(user.AnalysesToday, user.LastAnalysisDate)

	remain := limit - used
	if remain < 0 {
		remain = 0
	}

	return &dto.QuotaInfo{
		Role:        user.Role,
		DailyLimit:  limit,
		DailyUsed:   used,
		DailyRemain: remain,
	}, nil
}

// usedToday 读路径上的有效今日用量：最后一次分析不在今天则视为 0
func (s *QuotaService) usedToday(analysesToday int, lastAnalysis *time.Time) int {
	if lastAnalysis == nil || !s.sameDay(*lastAnalysis, time.Now()) {
		return 0
	}
	return analysesToday
}

func (s *QuotaService) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(s.loc).Date()
	by, bm, bd := b.In(s.loc).Date()
	return ay == by && am == bm && ad == bd
}
