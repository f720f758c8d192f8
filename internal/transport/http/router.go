package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mailsearch/backend/internal/config"
	"mailsearch/backend/internal/health"
	"mailsearch/backend/internal/middleware"
	"mailsearch/backend/internal/monitoring"
	"mailsearch/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	users    *service.UserService
	messages *service.MessageService
	search   *service.SearchService
	logger   *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config         *config.Config
	UserService    *service.UserService
	MessageService *service.MessageService
	SearchService  *service.SearchService
	Health         *health.HealthChecker // 为 nil 时只提供简单存活检查
	Metrics        *monitoring.Metrics   // 为 nil 时不暴露 /metrics
	Logger         *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	monitor := middleware.NewMonitoringMiddleware(deps.Metrics, logger)
	router.Use(monitor.HTTPMetrics())
	router.Use(monitor.PanicRecovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())

	// CORS 配置
	var origins []string
	if deps.Config != nil {
		origins = deps.Config.CORS.AllowedOrigins
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsConfig := gincors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Max-Body-Size"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := &Handler{
		users:    deps.UserService,
		messages: deps.MessageService,
		search:   deps.SearchService,
		logger:   logger,
	}

	// 健康检查
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	} else {
		router.GET("/health/live", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	// Prometheus 指标
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/api/v1")
	{
		v1.POST("/users", middleware.BodySizeLimit(middleware.DefaultBodyLimit), handler.createUser)
		v1.GET("/users/:userId", handler.getUser)

		userRoutes := v1.Group("/users/:userId")
		{
			userRoutes.POST("/search", middleware.BodySizeLimit(middleware.DefaultBodyLimit), handler.searchMessages)
			userRoutes.POST("/messages", middleware.BodySizeLimit(messageBodyLimit(deps.Config)), handler.deliverMessage)
		}
	}

	return router
}

func messageBodyLimit(cfg *config.Config) int64 {
	if cfg == nil || cfg.SMTP.MaxMessageBytes <= 0 {
		return 10 * 1024 * 1024
	}
	return cfg.SMTP.MaxMessageBytes
}
