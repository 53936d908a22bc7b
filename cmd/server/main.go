package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/weblan/neural_go_server/config"
	"github.com/weblan/neural_go_server/internal/api"
	"github.com/weblan/neural_go_server/internal/api/handler"
	"github.com/weblan/neural_go_server/internal/database"
	"github.com/weblan/neural_go_server/internal/pkg/llm"
	"github.com/weblan/neural_go_server/internal/pkg/pubsub"
	"github.com/weblan/neural_go_server/internal/pkg/ws"
	"github.com/weblan/neural_go_server/internal/repository"
	"github.com/weblan/neural_go_server/internal/service"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	var logger *zap.Logger
	if cfg.Server.Mode == "release" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	logger.Info("Database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect redis", zap.Error(err))
	}
	logger.Info("Redis connected")

	// 初始化 WebSocket Hub
	wsHub := ws.NewHub()

	// 分析完成事件：Redis 订阅转发到对应用户的 WebSocket 连接
	subscriber := pubsub.NewSubscriber(rdb)
	go func() {
		err := subscriber.Subscribe(context.Background(), func(msg *pubsub.CompletedMessage) {
			// 没有在线连接就不用构造推送
			if !wsHub.IsOnline(msg.UserID) {
				return
			}
			if err := wsHub.SendToUser(msg.UserID, &ws.Message{
				Type: msg.Type,
				Data: msg,
			}); err != nil {
				logger.Warn("Failed to push analysis event",
					zap.Int64("user_id", msg.UserID), zap.Error(err))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Analysis event subscriber stopped", zap.Error(err))
		}
	}()
	logger.Info("Analysis event subscriber started")

	// 初始化 Gemini 客户端
	gemini := llm.NewGeminiClient(
		cfg.Gemini.APIKey,
		cfg.Gemini.BaseURL,
		time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second,
	)

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)

	// 初始化 Service
	authService := service.NewAuthService(userRepo, cfg)
	quotaService := service.NewQuotaService(userRepo, cfg, logger)
	analysisService := service.NewAnalysisService(
		db,
		analysisRepo,
		userRepo,
		quotaService,
		gemini,
		pubsub.NewPublisher(rdb),
		cfg,
		logger,
	)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService)
	analysisHandler := handler.NewAnalysisHandler(analysisService, quotaService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		analysisHandler,
		websocketHandler,
		quotaService,
		wsHub,
		cfg,
	)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting", zap.String("addr", addr))
	if err := engine.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
