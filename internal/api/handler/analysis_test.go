package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/api/middleware"
	"github.com/weblan/neural_go_server/internal/model/dto"
	"github.com/weblan/neural_go_server/internal/pkg/response"
	"github.com/weblan/neural_go_server/internal/repository"
	"github.com/weblan/neural_go_server/internal/service"
	"github.com/weblan/neural_go_server/internal/testutil"
)

const stubReply = "Quality Score: 85/100\n\n## ✨ Improved Code\n```python\nprint('ok')\n```"

// stubGateway 固定返回预设文本
type stubGateway struct {
	reply string
	err   error
}

func (g *stubGateway) AnalyzeCode(_ context.Context, _, _, _ string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

// setupAnalysisRouter 按真实路由拓扑组装：配额检查 → Analyze，
// Stats/History/Quota 直连。userID 非 0 时用中间件桩注入，模拟已认证请求
func setupAnalysisRouter(t *testing.T, db *gorm.DB, gw *stubGateway, userID int64) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		Analysis: config.AnalysisConfig{
			MaxCodeLength:     40000,
			DefaultDailyLimit: 5,
		},
		Quota: config.QuotaConfig{
			Roles: map[string]int{"free": 5, "unlimited": 0},
		},
		Gemini: config.GeminiConfig{Model: "gemini-2.5-flash"},
	}

	userRepo := repository.NewUserRepository(db)
	quotaService := service.NewQuotaService(userRepo, cfg, zap.NewNop())
	analysisService := service.NewAnalysisService(
		db,
		repository.NewAnalysisRepository(db),
		userRepo,
		quotaService,
		gw,
		nil,
		cfg,
		zap.NewNop(),
	)
	h := NewAnalysisHandler(analysisService, quotaService)

	router := gin.New()
	if userID != 0 {
		router.Use(func(c *gin.Context) {
			c.Set(middleware.UserIDKey, userID)
			c.Next()
		})
	}

	router.POST("/analysis", middleware.QuotaCheck(quotaService), h.Analyze)
	router.GET("/analysis/stats", h.Stats)
	router.GET("/analysis/history", h.History)
	router.GET("/analysis/quota", h.Quota)

	return router
}

func decodeData(t *testing.T, resp response.Response, out interface{}) {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func TestAnalysisHandler_Analyze_Authenticated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	user := testutil.TestUser(t, db)
	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, user.ID)

	w := performRequest(router, "POST", "/analysis", dto.AnalyzeRequest{Code: "print(1)"})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeSuccess, resp.Code)

	var result dto.AnalyzeResult
	decodeData(t, resp, &result)

	assert.True(t, result.Success)
	assert.Equal(t, user.ID, result.UserID)
	assert.NotZero(t, result.AnalysisID)
	require.NotNil(t, result.Score)
	assert.Equal(t, 85, *result.Score)

	updated, err := repository.NewUserRepository(db).GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.AnalysesToday)
}

func TestAnalysisHandler_Analyze_Anonymous(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, 0)

	w := performRequest(router, "POST", "/analysis", dto.AnalyzeRequest{Code: "print(1)"})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)

	var result dto.AnalyzeResult
	decodeData(t, resp, &result)
	assert.True(t, result.Success)
	assert.Zero(t, result.AnalysisID)
}

func TestAnalysisHandler_Analyze_MissingCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, 0)

	w := performRequest(router, "POST", "/analysis", map[string]string{})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalysisHandler_Analyze_ValidationEnvelope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, 0)

	// 空白代码过得了 binding，业务校验失败走信封而不是错误码
	w := performRequest(router, "POST", "/analysis", dto.AnalyzeRequest{Code: "   "})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)

	var result dto.AnalyzeResult
	decodeData(t, resp, &result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}

func TestAnalysisHandler_Analyze_GatewayFailureEnvelope(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	router := setupAnalysisRouter(t, db, &stubGateway{err: fmt.Errorf("gemini: status 500")}, 0)

	w := performRequest(router, "POST", "/analysis", dto.AnalyzeRequest{Code: "print(1)"})
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)

	var result dto.AnalyzeResult
	decodeData(t, resp, &result)
	assert.False(t, result.Success)
	// 上游细节不外泄
	assert.NotContains(t, result.Error, "500")
}

func TestAnalysisHandler_Analyze_QuotaExceeded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	now := time.Now()
	user := testutil.TestUser(t, db, testutil.WithCounters(5, 20, &now))
	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, user.ID)

	w := performRequest(router, "POST", "/analysis", dto.AnalyzeRequest{Code: "print(1)"})
	resp := parseResponse(t, w)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, response.CodeQuotaExceeded, resp.Code)
}

func TestAnalysisHandler_Stats(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	now := time.Now()
	user := testutil.TestUser(t, db, testutil.WithCounters(2, 7, &now))
	testutil.TestAnalysis(t, db, user.ID, testutil.WithScore(90))
	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, user.ID)

	w := performRequest(router, "GET", "/analysis/stats", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)

	var stats dto.StatsResponse
	decodeData(t, resp, &stats)
	assert.Equal(t, 7, stats.TotalAnalyses)
	assert.Equal(t, 2, stats.AnalysesToday)
	assert.Equal(t, 90.0, stats.AverageScore)
	assert.Equal(t, 3, stats.AnalysesRemained)
}

func TestAnalysisHandler_Stats_Unauthenticated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, 0)

	w := performRequest(router, "GET", "/analysis/stats", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeAuthFailed, resp.Code)
}

func TestAnalysisHandler_History(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	user := testutil.TestUser(t, db)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		testutil.TestAnalysis(t, db, user.ID,
			testutil.WithCode(fmt.Sprintf("print(%d)", i)),
			testutil.WithCreatedAt(base.Add(time.Duration(i)*time.Minute)))
	}
	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, user.ID)

	w := performRequest(router, "GET", "/analysis/history?limit=10&offset=10", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)

	var history dto.HistoryResponse
	decodeData(t, resp, &history)
	assert.Equal(t, int64(15), history.Total)
	assert.Len(t, history.Items, 5)
}

func TestAnalysisHandler_History_InvalidParams(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	user := testutil.TestUser(t, db)
	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, user.ID)

	w := performRequest(router, "GET", "/analysis/history?limit=abc", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeParamError, resp.Code)
}

func TestAnalysisHandler_Quota(t *testing.T) {
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	now := time.Now()
	user := testutil.TestUser(t, db, testutil.WithCounters(3, 9, &now))
	router := setupAnalysisRouter(t, db, &stubGateway{reply: stubReply}, user.ID)

	w := performRequest(router, "GET", "/analysis/quota", nil)
	resp := parseResponse(t, w)

	assert.Equal(t, response.CodeSuccess, resp.Code)

	var info dto.QuotaInfo
	decodeData(t, resp, &info)
	assert.Equal(t, "free", info.Role)
	assert.Equal(t, 5, info.DailyLimit)
	assert.Equal(t, 3, info.DailyUsed)
	assert.Equal(t, 2, info.DailyRemain)
}
