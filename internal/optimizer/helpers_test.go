package optimizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/logger"
)

type mockSolver struct {
	mock.Mock
}

func (m *mockSolver) Solve(ctx context.Context, p *solver.Problem) (*solver.Solution, error) {
	args := m.Called(ctx, p)
	sol, _ := args.Get(0).(*solver.Solution)
	return sol, args.Error(1)
}

func quietLogger() *logrus.Logger {
	return logger.Discard()
}

func player(name string, pos models.Position, team string, salary int, points float64) models.PlayerRecord {
	return models.PlayerRecord{Name: name, Position: pos, Team: team, Salary: salary, ProjectedPoints: points}
}

func mustPool(t *testing.T, records ...models.PlayerRecord) *models.Pool {
	t.Helper()
	pool, err := models.NewPool(records)
	require.NoError(t, err)
	return pool
}

// minimalPool has exactly one legal roster: 1 QB, 3 RB, 3 WR, 1 TE, 1 DST.
func minimalPool(t *testing.T) *models.Pool {
	return mustPool(t,
		player("QB One", models.PositionQB, "BUF", 7000, 22),
		player("RB One", models.PositionRB, "BUF", 6500, 16),
		player("RB Two", models.PositionRB, "KC", 6000, 14),
		player("RB Three", models.PositionRB, "MIA", 4500, 9),
		player("WR One", models.PositionWR, "BUF", 7000, 17),
		player("WR Two", models.PositionWR, "KC", 5500, 13),
		player("WR Three", models.PositionWR, "MIA", 4000, 10),
		player("TE One", models.PositionTE, "KC", 4000, 9),
		player("DST One", models.PositionDST, "MIA", 3000, 7),
	)
}

// utilizationPool has an optimum that leaves $9000 unspent and a pricier WR
// projected 0.2 below the weakest WR in that optimum.
func utilizationPool(t *testing.T) *models.Pool {
	return mustPool(t,
		player("Q1", models.PositionQB, "BUF", 6000, 20),
		player("R1", models.PositionRB, "BUF", 5000, 15),
		player("R2", models.PositionRB, "KC", 5000, 14),
		player("R3", models.PositionRB, "MIA", 3000, 14),
		player("W1", models.PositionWR, "BUF", 5000, 15),
		player("W2", models.PositionWR, "KC", 5000, 14),
		player("W3", models.PositionWR, "MIA", 5000, 13),
		player("W4", models.PositionWR, "NYJ", 7000, 12.8),
		player("T1", models.PositionTE, "KC", 4000, 10),
		player("D1", models.PositionDST, "MIA", 3000, 8),
	)
}

// fiftyPlayerPool is a deterministic six-team slate with realistic salaries.
func fiftyPlayerPool(t *testing.T) *models.Pool {
	return slatePool(t, []string{"BUF", "KC", "MIA", "NYJ", "PHI", "DAL"}, 1)
}

// slatePool scales the fifty-player position mix by scale across teams.
func slatePool(t *testing.T, teams []string, scale int) *models.Pool {
	counts := []struct {
		pos      models.Position
		n        int
		minSal   int
		spread   int
		perK     float64
		baseline float64
	}{
		{models.PositionQB, 6, 5200, 3000, 2.9, 0},
		{models.PositionRB, 12, 4000, 5000, 2.4, 0.5},
		{models.PositionWR, 18, 3500, 5500, 2.5, 0},
		{models.PositionTE, 7, 2800, 4200, 2.2, 0.3},
		{models.PositionDST, 7, 2200, 1600, 2.6, 0},
	}

	var records []models.PlayerRecord
	seq := 0
	for pi, c := range counts {
		for i := 0; i < c.n*scale; i++ {
			team := teams[(i+pi)%len(teams)]
			salary := c.minSal + ((i*37+seq*11)%(c.spread/100+1))*100
			noise := float64((i*13+seq*7)%9-4) * 0.9
			points := float64(salary)/1000*c.perK + c.baseline + noise
			records = append(records, player(
				fmt.Sprintf("%s %s %03d", team, c.pos, i+1),
				c.pos,
				team,
				salary,
				points,
			))
			seq++
		}
	}
	return mustPool(t, records...)
}

func selectAll(pool *models.Pool) []int {
	idx := make([]int, pool.Len())
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func newOptimizer(t *testing.T, s solver.Solver, mutate ...func(*Settings)) *Optimizer {
	t.Helper()
	settings := DefaultSettings()
	settings.Timeout = 0
	for _, m := range mutate {
		m(&settings)
	}
	o, err := New(s, settings, quietLogger())
	require.NoError(t, err)
	return o
}

func realSolver() solver.Solver {
	return solver.NewBranchAndBound(0, quietLogger())
}
