package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

func assertLegalBatch(t *testing.T, o *Optimizer, batch *models.LineupBatch) {
	t.Helper()
	model, err := o.Model(Request{})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for i, l := range batch.Lineups {
		assert.Empty(t, model.Violations(l), "lineup %d", i)
		assert.LessOrEqual(t, l.TotalSalary, 50000)
		assert.False(t, seen[l.Key()], "lineup %d duplicates an earlier one", i)
		seen[l.Key()] = true

		counts := l.CountByPosition()
		assert.Equal(t, 1, counts[models.PositionQB])
		assert.Equal(t, 1, counts[models.PositionDST])
		assert.GreaterOrEqual(t, counts[models.PositionRB], 2)
		assert.LessOrEqual(t, counts[models.PositionRB], 3)
		assert.GreaterOrEqual(t, counts[models.PositionWR], 3)
		assert.LessOrEqual(t, counts[models.PositionWR], 4)
		assert.GreaterOrEqual(t, counts[models.PositionTE], 1)
		assert.LessOrEqual(t, counts[models.PositionTE], 2)
		assert.Len(t, l.Slots, 9)

		if i > 0 {
			assert.GreaterOrEqual(t, batch.Lineups[i-1].ProjectedPoints, l.ProjectedPoints)
		}
	}
}

func TestOptimize_MinimalPoolShortfall(t *testing.T) {
	o := newOptimizer(t, realSolver())

	batch, err := o.Optimize(context.Background(), minimalPool(t), Request{NumLineups: 3})
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Requested)
	assert.Equal(t, 1, batch.Produced)
	assert.Equal(t, 2, batch.Shortfall)
	assert.Equal(t, models.StopExhausted, batch.StopReason)
	assert.NotEmpty(t, batch.Warning)
	assert.NotEmpty(t, batch.BatchID)
	assertLegalBatch(t, o, batch)
}

func TestOptimize_CapBelowCheapestRosterSkipsSolver(t *testing.T) {
	ms := new(mockSolver)
	o := newOptimizer(t, ms)

	_, err := o.Optimize(context.Background(), minimalPool(t), Request{NumLineups: 1, SalaryCap: 30000})
	var infeasible *utils.InfeasibleError
	require.True(t, errors.As(err, &infeasible), "got %v", err)
	ms.AssertNotCalled(t, "Solve", mock.Anything, mock.Anything)
}

func TestOptimize_ConfigErrorsBeforeSolve(t *testing.T) {
	ms := new(mockSolver)
	o := newOptimizer(t, ms)
	pool := minimalPool(t)

	tests := []struct {
		name string
		req  Request
	}{
		{"zero lineups", Request{NumLineups: 0}},
		{"too many lineups", Request{NumLineups: 151}},
		{"exposure above one", Request{NumLineups: 1, MaxExposure: 1.5}},
		{"unknown constraint", Request{NumLineups: 1, Constraints: []ConstraintSpec{{Type: "correlate"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Optimize(context.Background(), pool, tt.req)
			assert.ErrorIs(t, err, utils.ErrInvalidConfig)
		})
	}
	ms.AssertNotCalled(t, "Solve", mock.Anything, mock.Anything)
}

func TestOptimize_FirstSolveErrors(t *testing.T) {
	t.Run("infeasible", func(t *testing.T) {
		ms := new(mockSolver)
		ms.On("Solve", mock.Anything, mock.Anything).Return(&solver.Solution{Status: solver.StatusInfeasible}, nil).Once()
		o := newOptimizer(t, ms)

		_, err := o.Optimize(context.Background(), minimalPool(t), Request{NumLineups: 2})
		assert.ErrorIs(t, err, utils.ErrInfeasible)
	})

	t.Run("solver failure", func(t *testing.T) {
		ms := new(mockSolver)
		ms.On("Solve", mock.Anything, mock.Anything).Return(nil, errors.New("lp blew up")).Once()
		o := newOptimizer(t, ms)

		_, err := o.Optimize(context.Background(), minimalPool(t), Request{NumLineups: 2})
		var solverErr *utils.SolverError
		assert.True(t, errors.As(err, &solverErr))
	})
}

func TestOptimize_SolverFailureMidBatchReturnsPartial(t *testing.T) {
	pool := minimalPool(t)
	ms := new(mockSolver)
	ms.On("Solve", mock.Anything, mock.Anything).
		Return(&solver.Solution{Status: solver.StatusOptimal, Selected: selectAll(pool)}, nil).Once()
	ms.On("Solve", mock.Anything, mock.Anything).Return(nil, errors.New("lp blew up")).Once()
	o := newOptimizer(t, ms)

	batch, err := o.Optimize(context.Background(), pool, Request{NumLineups: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Produced)
	assert.Equal(t, 2, batch.Shortfall)
	assert.Equal(t, models.StopSolverError, batch.StopReason)
	assert.Contains(t, batch.Warning, "lp blew up")
	ms.AssertNumberOfCalls(t, "Solve", 2)
}

func TestOptimize_MaxSolves(t *testing.T) {
	o := newOptimizer(t, realSolver(), func(s *Settings) { s.MaxSolves = 2 })

	batch, err := o.Optimize(context.Background(), fiftyPlayerPool(t), Request{NumLineups: 3})
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Produced)
	assert.Equal(t, 2, batch.Solves)
	assert.Equal(t, models.StopMaxSolves, batch.StopReason)
}

func TestOptimize_TimeBudgetBeforeFirstLineup(t *testing.T) {
	o := newOptimizer(t, realSolver())
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := o.Optimize(ctx, minimalPool(t), Request{NumLineups: 1})
	var solverErr *utils.SolverError
	require.True(t, errors.As(err, &solverErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOptimize_BuffaloStackScenario(t *testing.T) {
	o := newOptimizer(t, realSolver())
	pool := fiftyPlayerPool(t)

	var streamed int
	started := time.Now()
	batch, err := o.Optimize(context.Background(), pool, Request{
		NumLineups:  4,
		Constraints: []ConstraintSpec{StackSpec("BUF", 2, models.PositionQB, models.PositionWR)},
		OnLineup:    func(int, *models.Lineup) { streamed++ },
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)
	require.Equal(t, 4, batch.Produced)
	assert.Equal(t, 0, batch.Shortfall)
	assert.Equal(t, models.StopCompleted, batch.StopReason)
	assert.Equal(t, 4, streamed)
	assertLegalBatch(t, o, batch)

	stack := models.StackConstraint{Team: "BUF", Positions: []models.Position{models.PositionQB, models.PositionWR}, MinCount: 2}
	for i, l := range batch.Lineups {
		assert.True(t, stack.SatisfiedBy(l), "lineup %d", i)
		assert.GreaterOrEqual(t, l.Correlation(), 2.0/9, "lineup %d", i)
	}
}

func TestOptimize_DeterministicTopLineup(t *testing.T) {
	o := newOptimizer(t, realSolver())
	pool := fiftyPlayerPool(t)

	first, err := o.Optimize(context.Background(), pool, Request{NumLineups: 1})
	require.NoError(t, err)
	second, err := o.Optimize(context.Background(), pool, Request{NumLineups: 1})
	require.NoError(t, err)

	assert.Equal(t, first.Lineups[0].Key(), second.Lineups[0].Key())
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestOptimize_MaxExposure(t *testing.T) {
	o := newOptimizer(t, realSolver())
	pool := fiftyPlayerPool(t)

	batch, err := o.Optimize(context.Background(), pool, Request{NumLineups: 4, MaxExposure: 0.5})
	require.NoError(t, err)
	require.Equal(t, 4, batch.Produced)
	assertLegalBatch(t, o, batch)

	for name, n := range batch.PlayerExposure() {
		assert.LessOrEqual(t, n, 2, name)
	}
}

func TestOptimize_SalaryUtilization(t *testing.T) {
	pool := utilizationPool(t)
	on, off := true, false

	t.Run("disabled keeps the optimum", func(t *testing.T) {
		o := newOptimizer(t, realSolver())
		batch, err := o.Optimize(context.Background(), pool, Request{NumLineups: 1, SalaryUtilization: &off})
		require.NoError(t, err)

		l := batch.Lineups[0]
		assert.InDelta(t, 123.0, l.ProjectedPoints, 1e-9)
		assert.Equal(t, 41000, l.TotalSalary)
		assert.True(t, l.HasPlayer("W3"))
		assert.False(t, l.SalaryAdjusted)
	})

	t.Run("enabled swaps toward the pricier WR", func(t *testing.T) {
		o := newOptimizer(t, realSolver())
		batch, err := o.Optimize(context.Background(), pool, Request{NumLineups: 1, SalaryUtilization: &on})
		require.NoError(t, err)

		l := batch.Lineups[0]
		assert.True(t, l.SalaryAdjusted)
		assert.True(t, l.HasPlayer("W4"))
		assert.False(t, l.HasPlayer("W3"))
		assert.Equal(t, 43000, l.TotalSalary)
		assert.InDelta(t, 122.8, l.ProjectedPoints, 1e-9)
		assertLegalBatch(t, o, batch)
	})

	t.Run("tolerance blocks costly swaps", func(t *testing.T) {
		o := newOptimizer(t, realSolver(), func(s *Settings) { s.Utilization.Tolerance = 0.1 })
		batch, err := o.Optimize(context.Background(), pool, Request{NumLineups: 1, SalaryUtilization: &on})
		require.NoError(t, err)
		assert.False(t, batch.Lineups[0].SalaryAdjusted)
	})

	t.Run("batch stays distinct", func(t *testing.T) {
		o := newOptimizer(t, realSolver())
		batch, err := o.Optimize(context.Background(), pool, Request{NumLineups: 3, SalaryUtilization: &on})
		require.NoError(t, err)
		assertLegalBatch(t, o, batch)
		assert.Equal(t, 3, batch.Produced)
	})
}

func TestOptimize_LargeSlateWithinDefaultTimeout(t *testing.T) {
	teams := []string{
		"BUF", "KC", "MIA", "NYJ", "PHI", "DAL", "SF", "SEA",
		"DET", "GB", "BAL", "CIN", "LAR", "MIN", "HOU", "JAX",
	}
	pool := slatePool(t, teams, 4)
	require.GreaterOrEqual(t, pool.Len(), 150)

	settings := DefaultSettings()
	o, err := New(realSolver(), settings, quietLogger())
	require.NoError(t, err)

	tests := []struct {
		name string
		req  Request
	}{
		{"plain", Request{NumLineups: 5}},
		{"stacked with exposure cap", Request{
			NumLineups:  5,
			MaxExposure: 0.6,
			Constraints: []ConstraintSpec{StackSpec("KC", 2, models.PositionQB, models.PositionWR)},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			started := time.Now()
			batch, err := o.Optimize(context.Background(), pool, tt.req)
			elapsed := time.Since(started)

			require.NoError(t, err)
			assert.Equal(t, 5, batch.Produced)
			assert.Equal(t, models.StopCompleted, batch.StopReason)
			assert.Less(t, elapsed, settings.Timeout/3)
			assertLegalBatch(t, o, batch)
		})
	}
}
