package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/api/handler"
	"github.com/weblan/neural_go_server/internal/api/middleware"
	"github.com/weblan/neural_go_server/internal/pkg/ws"
	"github.com/weblan/neural_go_server/internal/service"
)

type Router struct {
	authHandler      *handler.AuthHandler
	analysisHandler  *handler.AnalysisHandler
	websocketHandler *handler.WebSocketHandler
	quotaService     *service.QuotaService
	hub              *ws.Hub
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	analysisHandler *handler.AnalysisHandler,
	websocketHandler *handler.WebSocketHandler,
	quotaService *service.QuotaService,
	hub *ws.Hub,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		analysisHandler:  analysisHandler,
		websocketHandler: websocketHandler,
		quotaService:     quotaService,
		hub:              hub,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"online_users": r.hub.OnlineCount(),
		})
	})

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
		}

		// 分析提交：可选认证，登录用户过配额检查，匿名直接放行
		analyze := api.Group("/analysis")
		analyze.Use(middleware.OptionalAuth(r.cfg.JWT.Secret))
		analyze.Use(middleware.QuotaCheck(r.quotaService))
		{
			analyze.POST("", r.analysisHandler.Analyze)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			analysis := authenticated.Group("/analysis")
			{
				analysis.GET("/stats", r.analysisHandler.Stats)
				analysis.GET("/history", r.analysisHandler.History)
				analysis.GET("/quota", r.analysisHandler.Quota)
			}

			users := authenticated.Group("/users")
			{
				users.GET("/me", r.authHandler.Profile)
				users.PUT("/me/gemini-key", r.authHandler.UpdateGeminiKey)
			}
		}
	}

	return engine
}
