package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/api"
	"github.com/stitts-dev/dfs-lineup/internal/metrics"
	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/internal/pool"
	"github.com/stitts-dev/dfs-lineup/internal/services"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/config"
	"github.com/stitts-dev/dfs-lineup/pkg/database"
	"github.com/stitts-dev/dfs-lineup/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	structuredLogger := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log := logger.WithComponent("server")
	log.WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting lineup optimizer")

	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	settings, err := cfg.OptimizerSettings()
	if err != nil {
		log.Fatalf("Invalid optimizer settings: %v", err)
	}

	// Database is only needed when the pool comes from a slate
	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if cfg.IsDevelopment() {
			if err := pool.Migrate(db.DB); err != nil {
				log.Fatalf("Failed to migrate pool tables: %v", err)
			}
		}
	}

	var cacheService *services.CacheService
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opt)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			// results are still served, just never cached until redis answers
			log.WithError(err).Warn("Redis unreachable at startup")
		}
		cancel()
		defer redisClient.Close()
		cacheService = services.NewCacheService(redisClient, cfg.CacheTTL, structuredLogger)
	}

	m := metrics.NewRegistry(prometheus.DefaultRegisterer)

	opt, err := optimizer.New(solver.NewBranchAndBound(cfg.SolverMaxNodes, structuredLogger), settings, structuredLogger)
	if err != nil {
		log.Fatalf("Failed to build optimizer: %v", err)
	}
	lineupService := services.NewLineupService(opt, cacheService, m, structuredLogger)

	var loader services.PoolLoader
	switch {
	case cfg.PoolCSVPath != "":
		loader = services.CSVPoolLoader(cfg.PoolCSVPath)
	case db != nil:
		loader = services.SlatePoolLoader(pool.NewDBSource(db.DB), cfg.PoolSlateID, cfg.PoolSite)
	}

	var refresher *services.PoolRefresher
	if loader != nil {
		refresher = services.NewPoolRefresher(lineupService, loader, cfg.PoolRefreshSchedule, m, structuredLogger)
		if err := refresher.Refresh(context.Background()); err != nil {
			// /ready reports not_ready until a refresh succeeds
			log.WithError(err).Error("Initial pool load failed")
		}
		if err := refresher.Start(); err != nil {
			log.Fatalf("Failed to schedule pool refresh: %v", err)
		}
		defer refresher.Stop()
	} else {
		log.Warn("No pool source configured, requests must carry inline players")
	}

	router := api.NewRouter(api.Deps{
		Service: lineupService,
		Cache:   cacheService,
		DB:      db,
		Metrics: m,
		Config:  cfg,
		Logger:  structuredLogger,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Lineup optimizer started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down lineup optimizer...")

	// in-flight batches get the optimization timeout to finish
	ctx, cancel := context.WithTimeout(context.Background(), settings.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Lineup optimizer exited")
}
