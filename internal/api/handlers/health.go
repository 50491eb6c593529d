package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stitts-dev/dfs-lineup/internal/services"
	"github.com/stitts-dev/dfs-lineup/pkg/database"
)

type HealthHandler struct {
	service *services.LineupService
	cache   *services.CacheService
	db      *database.DB
}

// NewHealthHandler builds the health endpoints. cache and db may be nil when
// the service runs without them.
func NewHealthHandler(service *services.LineupService, cache *services.CacheService, db *database.DB) *HealthHandler {
	return &HealthHandler{
		service: service,
		cache:   cache,
		db:      db,
	}
}

// GetHealth returns basic health status - always returns 200 if server is running
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"service":   "dfs-lineup",
	})
}

// GetReady returns 200 once a player pool is loaded and dependencies answer
func (h *HealthHandler) GetReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"cache": h.cache.State()}
	ready := true

	if p := h.service.Pool(); p != nil {
		checks["pool"] = gin.H{"pool_id": p.ID, "players": p.Len(), "loaded_at": p.LoadedAt}
	} else {
		checks["pool"] = "not_loaded"
		ready = false
	}

	if err := h.cache.Ping(ctx); err != nil {
		// the cache is optional, report but stay ready
		checks["cache"] = "unreachable"
	}

	if h.db != nil {
		if sqlDB, err := h.db.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unreachable"
			ready = false
		} else {
			checks["database"] = "ok"
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
