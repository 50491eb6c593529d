package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stitts-dev/dfs-lineup/internal/models"
)

// Registry holds the optimizer's Prometheus collectors.
type Registry struct {
	BatchDuration *prometheus.HistogramVec
	Batches       *prometheus.CounterVec
	Solves        prometheus.Counter
	Lineups       prometheus.Counter
	Shortfall     prometheus.Counter
	Errors        *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	PoolPlayers prometheus.Gauge
	PoolRefresh *prometheus.CounterVec

	ActiveStreams prometheus.Gauge
}

// NewRegistry creates the collectors and registers them with reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		BatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dfs_lineup_batch_duration_seconds",
				Help:    "Wall time of each optimization batch in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stop_reason"},
		),

		Batches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfs_lineup_batches_total",
				Help: "Total number of finished batches by stop reason",
			},
			[]string{"stop_reason"},
		),

		Solves: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dfs_lineup_solves_total",
				Help: "Total number of solver calls",
			},
		),

		Lineups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dfs_lineup_lineups_total",
				Help: "Total number of lineups produced",
			},
		),

		Shortfall: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dfs_lineup_shortfall_total",
				Help: "Total number of requested lineups that were not produced",
			},
		),

		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfs_lineup_errors_total",
				Help: "Total number of failed optimization requests by error code",
			},
			[]string{"code"},
		),

		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dfs_lineup_cache_hits_total",
				Help: "Total number of batches served from cache",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dfs_lineup_cache_misses_total",
				Help: "Total number of cache lookups that missed",
			},
		),

		PoolPlayers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dfs_lineup_pool_players",
				Help: "Number of players in the current pool snapshot",
			},
		),

		PoolRefresh: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfs_lineup_pool_refresh_total",
				Help: "Total number of pool refresh attempts by result",
			},
			[]string{"result"},
		),

		ActiveStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dfs_lineup_active_streams",
				Help: "Number of open websocket optimization streams",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			r.BatchDuration,
			r.Batches,
			r.Solves,
			r.Lineups,
			r.Shortfall,
			r.Errors,
			r.CacheHits,
			r.CacheMisses,
			r.PoolPlayers,
			r.PoolRefresh,
			r.ActiveStreams,
		)
	}
	return r
}

// ObserveBatch records a finished batch.
func (r *Registry) ObserveBatch(b *models.LineupBatch) {
	if r == nil || b == nil {
		return
	}
	reason := string(b.StopReason)
	r.BatchDuration.WithLabelValues(reason).Observe(b.Elapsed.Seconds())
	r.Batches.WithLabelValues(reason).Inc()
	r.Solves.Add(float64(b.Solves))
	r.Lineups.Add(float64(b.Produced))
	r.Shortfall.Add(float64(b.Shortfall))
}

// RecordError counts a failed request under its AppError code.
func (r *Registry) RecordError(code string) {
	if r == nil {
		return
	}
	r.Errors.WithLabelValues(code).Inc()
}

func (r *Registry) RecordCache(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheHits.Inc()
	} else {
		r.CacheMisses.Inc()
	}
}

// RecordPoolRefresh counts a refresh and, on success, updates the pool size.
func (r *Registry) RecordPoolRefresh(pool *models.Pool, err error) {
	if r == nil {
		return
	}
	if err != nil {
		r.PoolRefresh.WithLabelValues("error").Inc()
		return
	}
	r.PoolRefresh.WithLabelValues("ok").Inc()
	r.PoolPlayers.Set(float64(pool.Len()))
}

func (r *Registry) StreamOpened() {
	if r != nil {
		r.ActiveStreams.Inc()
	}
}

func (r *Registry) StreamClosed() {
	if r != nil {
		r.ActiveStreams.Dec()
	}
}
