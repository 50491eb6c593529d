package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

// Settings are the optimizer defaults a Request may override.
type Settings struct {
	Requirement models.LineupRequirement
	// MaxSolves bounds solver calls per batch; zero means one per requested lineup.
	MaxSolves int
	// MaxLineups caps NumLineups; zero means unbounded.
	MaxLineups  int
	MaxExposure float64
	Timeout     time.Duration
	Utilization UtilizationSettings
}

func DefaultSettings() Settings {
	return Settings{
		Requirement: models.DefaultRequirement(),
		MaxLineups:  150,
		MaxExposure: 1,
		Timeout:     30 * time.Second,
		Utilization: UtilizationSettings{
			Threshold: DefaultUtilizationThreshold,
			Tolerance: DefaultUtilizationTolerance,
		},
	}
}

type Request struct {
	NumLineups  int
	Constraints []ConstraintSpec
	// SalaryCap overrides the configured cap when positive.
	SalaryCap int
	// MaxExposure overrides the configured exposure when positive.
	MaxExposure float64
	// SalaryUtilization overrides whether the leftover-cap pass runs.
	SalaryUtilization *bool
	// OnLineup, if set, is called as each lineup is accepted, in generation order.
	OnLineup func(index int, l *models.Lineup)
}

// Optimizer produces batches of distinct lineups by solving repeatedly and
// excluding each result from the next solve.
type Optimizer struct {
	solver   solver.Solver
	settings Settings
	logger   *logrus.Logger
}

func New(s solver.Solver, settings Settings, logger *logrus.Logger) (*Optimizer, error) {
	if err := settings.Requirement.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Optimizer{solver: s, settings: settings, logger: logger}, nil
}

func (o *Optimizer) Settings() Settings { return o.settings }

// Requirement returns the roster shape a request resolves to.
func (o *Optimizer) Requirement(req Request) models.LineupRequirement {
	r := o.settings.Requirement
	if req.SalaryCap > 0 {
		r.SalaryCap = req.SalaryCap
	}
	return r
}

// Model builds the lineup model for a request.
func (o *Optimizer) Model(req Request) (*LineupModel, error) {
	return NewLineupModel(o.Requirement(req))
}

// Optimize builds up to req.NumLineups distinct lineups from pool.
//
// Configuration problems fail with ConfigError and an impossible roster with
// InfeasibleError before the first solve. Once at least one lineup exists,
// running out of distinct lineups, solves or time ends the batch early with
// the shortfall recorded instead of failing.
func (o *Optimizer) Optimize(ctx context.Context, pool *models.Pool, req Request) (*models.LineupBatch, error) {
	started := time.Now()

	if req.NumLineups < 1 {
		return nil, utils.NewConfigError("num_lineups", "must be at least 1, got %d", req.NumLineups)
	}
	if o.settings.MaxLineups > 0 && req.NumLineups > o.settings.MaxLineups {
		return nil, utils.NewConfigError("num_lineups", "%d exceeds the maximum of %d", req.NumLineups, o.settings.MaxLineups)
	}
	exposure := o.settings.MaxExposure
	if req.MaxExposure != 0 {
		exposure = req.MaxExposure
	}
	if exposure <= 0 || exposure > 1 {
		return nil, utils.NewConfigError("max_exposure", "must be in (0, 1], got %g", exposure)
	}
	if pool == nil || pool.Len() == 0 {
		return nil, utils.NewDataError(0, "", "pool has no players")
	}

	model, err := o.Model(req)
	if err != nil {
		return nil, err
	}
	userRows, err := BuildConstraints(req.Constraints, pool, model.Requirement())
	if err != nil {
		return nil, err
	}
	if err := model.CheckPool(pool); err != nil {
		return nil, err
	}

	util := o.settings.Utilization
	if req.SalaryUtilization != nil {
		util.Enabled = *req.SalaryUtilization
	}
	if util.Threshold <= 0 {
		util.Threshold = DefaultUtilizationThreshold
	}

	maxSolves := o.settings.MaxSolves
	if maxSolves <= 0 {
		maxSolves = req.NumLineups
	}

	if o.settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.settings.Timeout)
		defer cancel()
	}

	batch := &models.LineupBatch{
		BatchID:   uuid.New().String(),
		PoolID:    pool.ID,
		Requested: req.NumLineups,
	}
	log := o.logger.WithFields(logrus.Fields{"batch_id": batch.BatchID, "pool_id": pool.ID})

	base := append(model.Constraints(pool), userRows...)
	state := NewBatchState(pool, base, exposureCap(exposure, req.NumLineups))
	engine := NewEngine(o.solver, model, o.logger)

	batch.StopReason = models.StopCompleted
	for len(batch.Lineups) < req.NumLineups {
		if state.Solves() >= maxSolves {
			batch.StopReason = models.StopMaxSolves
			break
		}
		if ctx.Err() != nil {
			if len(batch.Lineups) == 0 {
				return nil, utils.NewSolverError("time budget", ctx.Err())
			}
			batch.StopReason = models.StopTimeBudget
			break
		}

		lineup, err := engine.Solve(ctx, state)
		if err != nil {
			var infeasible *utils.InfeasibleError
			if errors.As(err, &infeasible) {
				if len(batch.Lineups) == 0 {
					return nil, err
				}
				batch.StopReason = models.StopExhausted
				break
			}
			if len(batch.Lineups) == 0 {
				return nil, err
			}
			if ctx.Err() != nil {
				batch.StopReason = models.StopTimeBudget
			} else {
				batch.StopReason = models.StopSolverError
				batch.Warning = err.Error()
			}
			log.WithError(err).Warn("Solver failed mid-batch, returning partial batch")
			break
		}

		adjusted := spendLeftover(lineup, state, model.Requirement().SalaryCap, util)
		if adjusted != lineup {
			state.Exclude(lineup)
		}
		state.Record(adjusted)

		if err := AssignSlots(adjusted, model.Requirement()); err != nil {
			return nil, utils.NewSolverError("assign slots", err)
		}
		batch.Lineups = append(batch.Lineups, adjusted)
		if req.OnLineup != nil {
			req.OnLineup(len(batch.Lineups)-1, adjusted)
		}
	}

	batch.SortByPoints()
	batch.Produced = len(batch.Lineups)
	batch.Shortfall = batch.Requested - batch.Produced
	batch.Solves = state.Solves()
	batch.Elapsed = time.Since(started)

	entry := log.WithFields(logrus.Fields{
		"requested":   batch.Requested,
		"produced":    batch.Produced,
		"solves":      batch.Solves,
		"stop_reason": batch.StopReason,
		"elapsed_ms":  batch.Elapsed.Milliseconds(),
	})
	if batch.Shortfall > 0 {
		if batch.Warning == "" {
			batch.Warning = fmt.Sprintf("produced %d of %d lineups (%s)", batch.Produced, batch.Requested, batch.StopReason)
		}
		entry.Warn("Batch finished short")
	} else {
		entry.Info("Batch finished")
	}
	return batch, nil
}

// exposureCap is the number of lineups a player may appear in, or zero when
// exposure is unrestricted.
func exposureCap(maxExposure float64, n int) int {
	if maxExposure >= 1 {
		return 0
	}
	c := int(math.Floor(maxExposure * float64(n)))
	if c < 1 {
		c = 1
	}
	return c
}
