package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/stitts-dev/dfs-lineup/internal/metrics"
	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/internal/pool"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

// OptimizeRequest is the service-level form of an optimization call. When
// Players is set the request brings its own pool instead of the snapshot.
type OptimizeRequest struct {
	NumLineups        int                        `json:"num_lineups"`
	Constraints       []optimizer.ConstraintSpec `json:"constraints"`
	SalaryCap         int                        `json:"salary_cap,omitempty"`
	MaxExposure       float64                    `json:"max_exposure,omitempty"`
	SalaryUtilization *bool                      `json:"salary_utilization,omitempty"`
	Players           []pool.Row                 `json:"players,omitempty"`
}

// hash identifies the optimization parameters, excluding inline players
// which are covered by the pool id.
func (r OptimizeRequest) hash() string {
	key := r
	key.Players = nil
	data, _ := json.Marshal(key)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

func (r OptimizeRequest) toOptimizer() optimizer.Request {
	return optimizer.Request{
		NumLineups:        r.NumLineups,
		Constraints:       r.Constraints,
		SalaryCap:         r.SalaryCap,
		MaxExposure:       r.MaxExposure,
		SalaryUtilization: r.SalaryUtilization,
	}
}

// OptimizeResult is a formatted batch plus whether it came from cache.
type OptimizeResult struct {
	Batch  *optimizer.BatchView
	Cached bool
}

type PlayerSummary struct {
	Name            string  `json:"name"`
	Position        string  `json:"position"`
	Team            string  `json:"team"`
	Salary          int     `json:"salary"`
	ProjectedPoints float64 `json:"projected_points"`
	Value           float64 `json:"value"`
}

// PoolSummary describes the current snapshot.
type PoolSummary struct {
	PoolID     string          `json:"pool_id"`
	LoadedAt   time.Time       `json:"loaded_at"`
	Count      int             `json:"count"`
	ByPosition map[string]int  `json:"by_position"`
	Teams      []string        `json:"teams"`
	Players    []PlayerSummary `json:"players"`
}

// LineupValidation is the verdict on a hand-built lineup.
type LineupValidation struct {
	Valid           bool     `json:"valid"`
	Violations      []string `json:"violations,omitempty"`
	TotalSalary     int      `json:"total_salary"`
	ProjectedPoints float64  `json:"projected_points"`
}

// LineupService serves optimization requests against a shared pool
// snapshot. Identical concurrent requests run once.
type LineupService struct {
	optimizer *optimizer.Optimizer
	cache     *CacheService
	metrics   *metrics.Registry
	logger    *logrus.Logger

	pool  atomic.Pointer[models.Pool]
	group singleflight.Group
}

func NewLineupService(opt *optimizer.Optimizer, cache *CacheService, m *metrics.Registry, logger *logrus.Logger) *LineupService {
	return &LineupService{
		optimizer: opt,
		cache:     cache,
		metrics:   m,
		logger:    logger,
	}
}

// SetPool swaps in a new snapshot. Batches already running keep the old one.
func (s *LineupService) SetPool(p *models.Pool) {
	s.pool.Store(p)
	s.logger.WithFields(logrus.Fields{
		"pool_id": p.ID,
		"players": p.Len(),
	}).Info("Player pool snapshot updated")
}

// Pool returns the current snapshot, or nil before the first load.
func (s *LineupService) Pool() *models.Pool {
	return s.pool.Load()
}

func (s *LineupService) resolvePool(req OptimizeRequest) (*models.Pool, error) {
	if len(req.Players) > 0 {
		return pool.FromRows(req.Players)
	}
	p := s.Pool()
	if p == nil {
		return nil, utils.NewDataError(0, "", "no player pool loaded")
	}
	return p, nil
}

// Optimize returns a formatted batch, from cache when an identical request
// already ran against the same pool.
func (s *LineupService) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	p, err := s.resolvePool(req)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	key := OptimizationCacheKey(p.ID, req.hash())

	if view, err := s.cache.GetBatch(ctx, key); err == nil {
		s.metrics.RecordCache(true)
		return &OptimizeResult{Batch: view, Cached: true}, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		s.logger.WithError(err).WithField("cache_key", key).Warn("Cache lookup failed")
	}
	if s.cache != nil {
		s.metrics.RecordCache(false)
	}

	// the shared batch outlives the caller that started it, bounded by the
	// optimizer timeout
	runCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (interface{}, error) {
		view, err := s.run(runCtx, p, req.toOptimizer())
		if err != nil {
			return nil, err
		}
		if !cacheable(view) {
			s.logger.WithFields(logrus.Fields{
				"cache_key":   key,
				"stop_reason": view.StopReason,
			}).Debug("Partial batch not cached")
			return view, nil
		}
		if err := s.cache.SetBatch(runCtx, key, view); err != nil {
			s.logger.WithError(err).WithField("cache_key", key).Warn("Failed to cache batch")
		}
		return view, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		err := utils.NewSolverError("request canceled", ctx.Err())
		s.recordError(err)
		return nil, err
	}
	if res.Err != nil {
		s.recordError(res.Err)
		return nil, res.Err
	}
	if res.Shared {
		s.logger.WithField("cache_key", key).Debug("Shared in-flight optimization result")
	}
	return &OptimizeResult{Batch: res.Val.(*optimizer.BatchView)}, nil
}

// cacheable reports whether a batch is the full answer for its request.
func cacheable(view *optimizer.BatchView) bool {
	switch models.StopReason(view.StopReason) {
	case models.StopCompleted, models.StopExhausted:
		return true
	}
	return false
}

// Stream runs a batch without cache or dedup and reports each lineup as it
// is accepted, ranked in generation order.
func (s *LineupService) Stream(ctx context.Context, req OptimizeRequest, onLineup func(optimizer.LineupView)) (*optimizer.BatchView, error) {
	p, err := s.resolvePool(req)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	oreq := req.toOptimizer()
	salaryCap := s.optimizer.Requirement(oreq).SalaryCap
	oreq.OnLineup = func(i int, l *models.Lineup) {
		onLineup(optimizer.FormatLineup(l, i+1, salaryCap))
	}
	view, err := s.run(ctx, p, oreq)
	if err != nil {
		s.recordError(err)
		return nil, err
	}
	return view, nil
}

func (s *LineupService) run(ctx context.Context, p *models.Pool, req optimizer.Request) (*optimizer.BatchView, error) {
	batch, err := s.optimizer.Optimize(ctx, p, req)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveBatch(batch)
	view := optimizer.FormatBatch(batch, s.optimizer.Requirement(req).SalaryCap)
	return &view, nil
}

func (s *LineupService) recordError(err error) {
	_, appErr := utils.ToAppError(err)
	s.metrics.RecordError(appErr.Code)
}

// ValidateLineup checks a named lineup against the roster rules of the
// snapshot. Unknown names are a ConfigError with suggestions.
func (s *LineupService) ValidateLineup(names []string, salaryCap int) (*LineupValidation, error) {
	p := s.Pool()
	if p == nil {
		return nil, utils.NewDataError(0, "", "no player pool loaded")
	}
	model, err := s.optimizer.Model(optimizer.Request{SalaryCap: salaryCap})
	if err != nil {
		return nil, err
	}

	players := make([]models.PlayerRecord, 0, len(names))
	for _, name := range names {
		i, ok := p.Index(name)
		if !ok {
			return nil, optimizer.UnknownPlayerError("players", name, p)
		}
		players = append(players, p.Player(i))
	}

	lineup := models.NewLineup(players)
	violations := model.Violations(lineup)
	return &LineupValidation{
		Valid:           len(violations) == 0,
		Violations:      violations,
		TotalSalary:     lineup.TotalSalary,
		ProjectedPoints: lineup.ProjectedPoints,
	}, nil
}

// Summary describes the current snapshot, players sorted by value.
func (s *LineupService) Summary() (*PoolSummary, error) {
	p := s.Pool()
	if p == nil {
		return nil, utils.NewDataError(0, "", "no player pool loaded")
	}

	byPos := make(map[string]int)
	for pos, n := range p.CountByPosition() {
		byPos[string(pos)] = n
	}
	players := make([]PlayerSummary, 0, p.Len())
	for _, pl := range p.Players() {
		players = append(players, PlayerSummary{
			Name:            pl.Name,
			Position:        string(pl.Position),
			Team:            pl.Team,
			Salary:          pl.Salary,
			ProjectedPoints: pl.ProjectedPoints,
			Value:           pl.Value(),
		})
	}
	sort.SliceStable(players, func(i, j int) bool { return players[i].Value > players[j].Value })

	return &PoolSummary{
		PoolID:     p.ID,
		LoadedAt:   p.LoadedAt,
		Count:      p.Len(),
		ByPosition: byPos,
		Teams:      p.Teams(),
		Players:    players,
	}, nil
}
