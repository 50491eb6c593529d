package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/api/handlers"
	"github.com/stitts-dev/dfs-lineup/internal/api/middleware"
	"github.com/stitts-dev/dfs-lineup/internal/metrics"
	"github.com/stitts-dev/dfs-lineup/internal/services"
	"github.com/stitts-dev/dfs-lineup/pkg/config"
	"github.com/stitts-dev/dfs-lineup/pkg/database"
)

// Deps are the collaborators the HTTP layer needs. Cache and DB may be nil.
type Deps struct {
	Service  *services.LineupService
	Cache    *services.CacheService
	DB       *database.DB
	Metrics  *metrics.Registry
	Gatherer prometheus.Gatherer
	Config   *config.Config
	Logger   *logrus.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(d.Logger), middleware.CORS(d.Config.CorsOrigins))

	optimizerHandler := handlers.NewOptimizerHandler(d.Service, d.Logger)
	healthHandler := handlers.NewHealthHandler(d.Service, d.Cache, d.DB)
	streamHandler := handlers.NewStreamHandler(d.Service, d.Metrics, d.Config.CorsOrigins, d.Logger)

	apiV1 := router.Group("/api/v1")
	{
		limited := apiV1.Group("")
		limited.Use(middleware.RateLimit(d.Config.RateLimitRPS, d.Config.RateLimitBurst))
		limited.POST("/optimize", optimizerHandler.OptimizeLineups)
		limited.POST("/optimize/validate", optimizerHandler.ValidateLineup)

		apiV1.GET("/pool", optimizerHandler.GetPool)
	}

	// WebSocket endpoint at root level, not under /api/v1
	router.GET("/ws/optimize", middleware.RateLimit(d.Config.RateLimitRPS, d.Config.RateLimitBurst), streamHandler.HandleOptimize)

	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return router
}
