package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/internal/api/middleware"
	"github.com/weblan/neural_go_server/internal/model/dto"
	"github.com/weblan/neural_go_server/internal/pkg/response"
	"github.com/weblan/neural_go_server/internal/service"
)

type AnalysisHandler struct {
	analysisService *service.AnalysisService
	quotaService    *service.QuotaService
}

func NewAnalysisHandler(analysisService *service.AnalysisService, quotaService *service.QuotaService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		quotaService:    quotaService,
	}
}

// Analyze 提交代码分析
// POST /api/v1/analysis
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	// 可选认证：匿名请求 userID 为 0，不落库不计配额
	userID, _ := middleware.GetUserID(c)

	var req dto.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), req.Code, userID, req.APIKey)
	if err != nil {
		if errors.Is(err, service.ErrPersistence) {
			response.ServerError(c, service.ErrPersistence.Error())
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, result)
}

// Stats 获取用户统计
// GET /api/v1/analysis/stats
func (h *AnalysisHandler) Stats(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	stats, err := h.analysisService.GetStatistics(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "用户不存在")
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, stats)
}

// History 获取分析历史
// GET /api/v1/analysis/history?limit=10&offset=0
func (h *AnalysisHandler) History(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil {
		response.ParamError(c, "无效的 limit 参数")
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		response.ParamError(c, "无效的 offset 参数")
		return
	}

	history, err := h.analysisService.GetHistory(userID, limit, offset)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, history)
}

// Quota 获取配额信息
// GET /api/v1/analysis/quota
func (h *AnalysisHandler) Quota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.quotaService.GetQuotaInfo(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundError(c, "用户不存在")
		} else {
			response.ServerError(c, "")
		}
		return
	}

	response.Success(c, info)
}
