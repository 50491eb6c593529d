package optimizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

// BatchState is the per-batch set of rows that grows between solves: one
// exclusion per lineup already produced and one ban per player whose
// exposure cap is reached. It belongs to a single batch and is never shared.
type BatchState struct {
	pool        *models.Pool
	base        []solver.Constraint
	exclusions  []solver.Constraint
	exposure    map[string]int
	exposureCap int
	banned      map[string]bool
	seen        map[string]bool
	solves      int
}

// NewBatchState starts a batch over pool with the model and user rows.
// exposureCap <= 0 disables exposure limits.
func NewBatchState(pool *models.Pool, base []solver.Constraint, exposureCap int) *BatchState {
	return &BatchState{
		pool:        pool,
		base:        base,
		exposure:    make(map[string]int),
		exposureCap: exposureCap,
		banned:      make(map[string]bool),
		seen:        make(map[string]bool),
	}
}

func (s *BatchState) Solves() int { return s.solves }

func (s *BatchState) Seen(l *models.Lineup) bool { return s.seen[l.Key()] }

// Exclude forbids the exact player set of l from any later solve.
func (s *BatchState) Exclude(l *models.Lineup) {
	key := l.Key()
	if s.seen[key] {
		return
	}
	s.seen[key] = true

	coefs := make(map[int]float64, len(l.Players))
	for _, p := range l.Players {
		if i, ok := s.pool.Index(p.Name); ok {
			coefs[i] = 1
		}
	}
	s.exclusions = append(s.exclusions, solver.Constraint{
		Name:  fmt.Sprintf("exclude_%d", len(s.exclusions)+1),
		Coefs: coefs,
		Sense: solver.LessEq,
		RHS:   float64(len(coefs) - 1),
	})
}

// Record counts l toward player exposure and bans players that hit the cap.
func (s *BatchState) Record(l *models.Lineup) {
	s.Exclude(l)
	if s.exposureCap <= 0 {
		return
	}
	for _, p := range l.Players {
		s.exposure[p.Name]++
		if s.exposure[p.Name] < s.exposureCap || s.banned[p.Name] {
			continue
		}
		s.banned[p.Name] = true
		if i, ok := s.pool.Index(p.Name); ok {
			s.exclusions = append(s.exclusions, solver.Constraint{
				Name:  "exposure_" + p.Name,
				Coefs: map[int]float64{i: 1},
				Sense: solver.Equal,
				RHS:   0,
			})
		}
	}
}

// Constraints returns every active row: model, user, exclusions and bans.
func (s *BatchState) Constraints() []solver.Constraint {
	rows := make([]solver.Constraint, 0, len(s.base)+len(s.exclusions))
	rows = append(rows, s.base...)
	return append(rows, s.exclusions...)
}

func (s *BatchState) Problem(objective []float64) *solver.Problem {
	return &solver.Problem{
		NumVars:     s.pool.Len(),
		Objective:   objective,
		Constraints: s.Constraints(),
	}
}

// Engine runs one solve of the lineup program against the current batch state.
type Engine struct {
	solver solver.Solver
	model  *LineupModel
	logger *logrus.Entry
}

func NewEngine(s solver.Solver, model *LineupModel, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		solver: s,
		model:  model,
		logger: logger.WithField("component", "engine"),
	}
}

// Solve returns the highest-scoring lineup the state still allows. It never
// retries and never mutates the pool. Infeasibility is an InfeasibleError;
// any backend failure, including a cancelled context, is a SolverError.
func (e *Engine) Solve(ctx context.Context, state *BatchState) (*models.Lineup, error) {
	problem := state.Problem(e.model.Objective(state.pool))
	state.solves++

	sol, err := e.solver.Solve(ctx, problem)
	if err != nil {
		return nil, utils.NewSolverError("solve", err)
	}
	if sol == nil {
		return nil, utils.NewSolverError("solve", errors.New("backend returned no solution"))
	}

	e.logger.WithFields(logrus.Fields{
		"solve":  state.solves,
		"status": sol.Status.String(),
		"nodes":  sol.Nodes,
		"rows":   len(problem.Constraints),
	}).Debug("Solve finished")

	if sol.Status == solver.StatusInfeasible {
		if state.solves == 1 {
			return nil, utils.NewInfeasibleError("no lineup satisfies the roster and user constraints")
		}
		return nil, utils.NewInfeasibleError("no further distinct lineup exists after %d lineups", len(state.seen))
	}

	players := make([]models.PlayerRecord, 0, len(sol.Selected))
	x := make([]bool, state.pool.Len())
	for _, i := range sol.Selected {
		if i < 0 || i >= state.pool.Len() {
			return nil, utils.NewSolverError("solve", fmt.Errorf("backend selected unknown variable %d", i))
		}
		players = append(players, state.pool.Player(i))
		x[i] = true
	}
	if bad := problem.Violated(x); len(bad) > 0 {
		return nil, utils.NewSolverError("solve", fmt.Errorf("backend solution violates %v", bad))
	}

	return models.NewLineup(players), nil
}
