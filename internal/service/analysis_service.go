package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/model"
	"github.com/weblan/neural_go_server/internal/model/dto"
	"github.com/weblan/neural_go_server/internal/pkg/extract"
	"github.com/weblan/neural_go_server/internal/pkg/llm"
	"github.com/weblan/neural_go_server/internal/pkg/pubsub"
	"github.com/weblan/neural_go_server/internal/repository"
)

var ErrPersistence = errors.New("分析结果保存失败")

// 上游失败对外统一用这条消息，具体原因只进日志
const msgAnalysisFailed = "分析服务暂时不可用，请稍后重试"

const codeSnippetLen = 100

// AnalysisService 代码分析编排：校验 → 调用模型 → 提取结构化字段 →
// 单事务持久化（Analysis 插入 + 配额计数器更新）
type AnalysisService struct {
	db           *gorm.DB
	analysisRepo *repository.AnalysisRepository
	userRepo     *repository.UserRepository
	quotaService *QuotaService
	gateway      llm.Gateway
	publisher    *pubsub.Publisher // 可为 nil，此时不推送仪表盘事件
	cfg          *config.Config
	logger       *zap.Logger
}

func NewAnalysisService(
	db *gorm.DB,
	analysisRepo *repository.AnalysisRepository,
	userRepo *repository.UserRepository,
	quotaService *QuotaService,
	gateway llm.Gateway,
	publisher *pubsub.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *AnalysisService {
	return &AnalysisService{
		db:           db,
		analysisRepo: analysisRepo,
		userRepo:     userRepo,
		quotaService: quotaService,
		gateway:      gateway,
		publisher:    publisher,
		cfg:          cfg,
		logger:       logger,
	}
}

// Analyze 执行一次代码分析。
// 校验失败和上游失败都返回 Success=false 的信封而不是 error；
// 只有持久化失败才返回 ErrPersistence，此时分析记录和计数器都未落库。
// userID 为 0 表示匿名分析，不落库也不计配额。
func (s *AnalysisService) Analyze(ctx context.Context, code string, userID int64, userAPIKey string) (*dto.AnalyzeResult, error) {
	now := time.Now().Format(time.RFC3339)

	if strings.TrimSpace(code) == "" {
		return &dto.AnalyzeResult{
			Success:   false,
			Error:     "代码不能为空",
			Code:      code,
			UserID:    userID,
			Timestamp: now,
		}, nil
	}

	if utf8.RuneCountInString(code) > s.cfg.Analysis.MaxCodeLength {
		return &dto.AnalyzeResult{
			Success:   false,
			Error:     fmt.Sprintf("代码过长，最多 %d 个字符", s.cfg.Analysis.MaxCodeLength),
			Code:      snippet(code),
			UserID:    userID,
			Timestamp: now,
		}, nil
	}

	modelName := s.cfg.Gemini.Model

	// 请求未带 key 时回退到用户保存的 key，两者都没有则用系统默认凭证
	apiKey := userAPIKey
	if apiKey == "" && userID != 0 {
		if user, err := s.userRepo.GetByID(userID); err == nil {
			apiKey = user.GeminiAPIKey
		}
	}

	raw, err := s.gateway.AnalyzeCode(ctx, code, modelName, apiKey)
	if err != nil {
		s.logger.Error("gemini analysis failed",
			zap.Int64("user_id", userID),
			zap.String("model", modelName),
			zap.Error(err))
		return &dto.AnalyzeResult{
			Success:   false,
			Error:     msgAnalysisFailed,
			Code:      snippet(code),
			UserID:    userID,
			Timestamp: now,
		}, nil
	}

	score, hasScore := extract.Score(raw)
	improved, hasImproved := extract.ImprovedCode(raw)

	result := &dto.AnalyzeResult{
		Success:   true,
		Analysis:  raw,
		Code:      code,
		UserID:    userID,
		Timestamp: now,
		ModelUsed: modelName,
	}
	if hasScore {
		result.Score = &score
	}

	if userID == 0 {
		return result, nil
	}

	record := &model.Analysis{
		UserID:         userID,
		CodeOriginal:   code,
		AnalysisResult: raw,
		ModelUsed:      modelName,
	}
	if hasScore {
		record.QualityScore = &score
	}
	if hasImproved {
		record.CodeImproved = &improved
	}

	// Analysis 插入和计数器更新同一事务，任一失败全部回滚
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return s.quotaService.RecordUsage(tx, userID)
	})
	if err != nil {
		s.logger.Error("failed to persist analysis",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result.AnalysisID = record.ID

	if s.publisher != nil {
		msg := &pubsub.CompletedMessage{
			UserID:     userID,
			AnalysisID: record.ID,
			ModelUsed:  modelName,
			Timestamp:  now,
		}
		if hasScore {
			msg.Score = &score
		}
		if err := s.publisher.PublishCompleted(ctx, msg); err != nil {
			s.logger.Warn("failed to publish analysis event",
				zap.Int64("analysis_id", record.ID),
				zap.Error(err))
		}
	}

	return result, nil
}

// GetStatistics 获取用户统计信息
func (s *AnalysisService) GetStatistics(userID int64) (*dto.StatsResponse, error) {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	avg, err := s.analysisRepo.AverageScore(userID)
	if err != nil {
		return nil, err
	}

	limit := s.quotaService.DailyLimit(user.Role)
	today := s.quotaService.usedToday(user.AnalysesToday, user.LastAnalysisDate)

	remaining := limit - today
	if remaining < 0 {
		remaining = 0
	}

	return &dto.StatsResponse{
		TotalAnalyses:    user.TotalAnalyses,
		AnalysesToday:    today,
		AverageScore:     math.Round(avg*10) / 10,
		DailyLimit:       limit,
		AnalysesRemained: remaining,
	}, nil
}

// GetHistory 获取用户分析历史，创建时间倒序分页
func (s *AnalysisService) GetHistory(userID int64, limit, offset int) (*dto.HistoryResponse, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	analyses, total, err := s.analysisRepo.ListByUserID(userID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.HistoryItem, 0, len(analyses))
	for _, a := range analyses {
		items = append(items, &dto.HistoryItem{
			ID:          a.ID,
			CodeSnippet: snippet(a.CodeOriginal),
			Score:       a.QualityScore,
			CreatedAt:   a.CreatedAt.Format(time.RFC3339),
			ModelUsed:   a.ModelUsed,
		})
	}

	return &dto.HistoryResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}

// snippet 截取前 100 个字符用于展示
func snippet(code string) string {
	runes := []rune(code)
	if len(runes) <= codeSnippetLen {
		return code
	}
	return string(runes[:codeSnippetLen]) + "..."
}
