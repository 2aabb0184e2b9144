package api

import (
	"github.com/576576/hadesstar-bot/internal/api/handlers"
	"github.com/576576/hadesstar-bot/internal/api/middleware"
	"github.com/576576/hadesstar-bot/internal/config"
	"github.com/576576/hadesstar-bot/internal/models"
	"github.com/576576/hadesstar-bot/internal/service"
	"github.com/576576/hadesstar-bot/internal/websocket"
	jwtutil "github.com/576576/hadesstar-bot/pkg/jwt"
	"github.com/576576/hadesstar-bot/pkg/logger"
	"github.com/576576/hadesstar-bot/pkg/metrics"
	"github.com/576576/hadesstar-bot/pkg/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services 라우터가 노출하는 구성 요소
type Services struct {
	Crew     *service.CrewService
	Ledger   *service.EventLedger
	Players  *service.PlayerService
	Resolver *models.QueueKeyResolver
	Hub      *websocket.Hub
	JWT      *jwtutil.JWTManager
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Health   []handlers.HealthCheck
}

// SetupRouter API 라우터 설정
func SetupRouter(cfg *config.Config, s Services) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 전역 미들웨어
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Named("http"), "/health", "/metrics"))

	queueHandler := handlers.NewQueueHandler(s.Crew, s.Resolver)
	ledgerHandler := handlers.NewLedgerHandler(s.Ledger)
	playerHandler := handlers.NewPlayerHandler(s.Players)
	wsHandler := handlers.NewWebSocketHandler(s.Hub)

	router.GET("/health", handlers.NewHealthHandler(s.Health...).Health)
	if s.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(s.JWT))
	if s.Limiter != nil {
		v1.Use(middleware.RateLimit(s.Limiter, middleware.DefaultKeyFunc))
	}
	{
		v1.GET("/ws", wsHandler.HandleWebSocket)
		v1.GET("/ws/status", wsHandler.Status)

		queue := v1.Group("/queue")
		{
			queue.POST("/join", queueHandler.Join)
			queue.POST("/quit", queueHandler.Quit)
			queue.GET("", queueHandler.Snapshot)
			queue.GET("/:token", queueHandler.List)
		}

		runs := v1.Group("/runs")
		{
			runs.POST("/score", ledgerHandler.SubmitScore)
			runs.GET("/:runId", ledgerHandler.GetRun)
		}

		v1.GET("/rank/:playerId", ledgerHandler.Rank)
		v1.GET("/leaderboard", ledgerHandler.Leaderboard)
		v1.GET("/players/:playerId", playerHandler.GetPlayer)

		// 권한 확인은 서비스 계층에서
		admin := v1.Group("/admin")
		{
			admin.DELETE("/queue", queueHandler.Reset)
			admin.DELETE("/ledger", ledgerHandler.Reset)
			admin.PUT("/players/:playerId", playerHandler.UpsertPlayer)
		}
	}

	return router
}
