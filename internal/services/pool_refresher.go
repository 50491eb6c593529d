package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/metrics"
	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/pool"
)

// PoolLoader produces a fresh player pool.
type PoolLoader func(ctx context.Context) (*models.Pool, error)

// CSVPoolLoader re-reads a projections CSV on every call.
func CSVPoolLoader(path string) PoolLoader {
	return func(context.Context) (*models.Pool, error) {
		return pool.LoadCSVFile(path)
	}
}

// SlatePoolLoader reads a slate from the projections database. A zero slate
// id follows the most recent slate for site.
func SlatePoolLoader(src *pool.DBSource, slateID uint, site string) PoolLoader {
	return func(ctx context.Context) (*models.Pool, error) {
		id := slateID
		if id == 0 {
			latest, err := src.LatestSlate(ctx, site)
			if err != nil {
				return nil, err
			}
			id = latest
		}
		return src.Load(ctx, id)
	}
}

// PoolRefresher reloads the lineup service's snapshot on a cron schedule.
// A failed reload keeps the previous snapshot.
type PoolRefresher struct {
	service  *LineupService
	load     PoolLoader
	schedule string
	timeout  time.Duration
	metrics  *metrics.Registry
	logger   *logrus.Logger
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool
}

func NewPoolRefresher(service *LineupService, load PoolLoader, schedule string, m *metrics.Registry, logger *logrus.Logger) *PoolRefresher {
	return &PoolRefresher{
		service:  service,
		load:     load,
		schedule: schedule,
		timeout:  time.Minute,
		metrics:  m,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Refresh loads the pool once and swaps it in when it changed.
func (r *PoolRefresher) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := r.load(ctx)
	r.metrics.RecordPoolRefresh(p, err)
	if err != nil {
		r.logger.WithError(err).Warn("Player pool refresh failed, keeping previous snapshot")
		return fmt.Errorf("failed to refresh player pool: %w", err)
	}

	if current := r.service.Pool(); current != nil && current.ID == p.ID {
		r.logger.WithField("pool_id", p.ID).Debug("Player pool unchanged")
		return nil
	}
	r.service.SetPool(p)
	return nil
}

// Start schedules refreshes. It does not load immediately; call Refresh
// first when a pool is needed at startup.
func (r *PoolRefresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("pool refresher is already running")
	}
	if r.schedule == "" {
		return nil
	}

	_, err := r.cron.AddFunc(r.schedule, func() {
		_ = r.Refresh(context.Background())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pool refresh: %w", err)
	}

	r.cron.Start()
	r.running = true
	r.logger.WithField("schedule", r.schedule).Info("Pool refresher started")
	return nil
}

func (r *PoolRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	ctx := r.cron.Stop()
	<-ctx.Done()

	r.running = false
	r.logger.Info("Pool refresher stopped")
}
