package optimizer

import (
	"github.com/stitts-dev/dfs-lineup/internal/models"
)

const (
	DefaultUtilizationThreshold = 1000
	DefaultUtilizationTolerance = 0.5
)

// UtilizationSettings control the optional pass that spends leftover cap.
type UtilizationSettings struct {
	Enabled bool
	// Threshold is the unspent salary that triggers the pass.
	Threshold int
	// Tolerance is how many projected points a swap may give up.
	Tolerance float64
}

type swap struct {
	out, in models.PlayerRecord
	lineup  *models.Lineup
}

// better orders swaps by resulting salary, then points, then incoming name.
func (s swap) better(o swap) bool {
	if s.lineup.TotalSalary != o.lineup.TotalSalary {
		return s.lineup.TotalSalary > o.lineup.TotalSalary
	}
	if s.lineup.ProjectedPoints != o.lineup.ProjectedPoints {
		return s.lineup.ProjectedPoints > o.lineup.ProjectedPoints
	}
	if s.in.Name != o.in.Name {
		return s.in.Name < o.in.Name
	}
	return s.out.Name < o.out.Name
}

// spendLeftover tries one same-position swap toward a pricier player. The
// result must satisfy every row in state, which also keeps it distinct from
// lineups already produced. Returns l unchanged when no swap qualifies.
func spendLeftover(l *models.Lineup, state *BatchState, salaryCap int, cfg UtilizationSettings) *models.Lineup {
	if !cfg.Enabled || salaryCap-l.TotalSalary < cfg.Threshold {
		return l
	}

	pool := state.pool
	rows := state.Problem(make([]float64, pool.Len()))
	floor := l.ProjectedPoints - cfg.Tolerance

	base := make([]bool, pool.Len())
	for _, p := range l.Players {
		if i, ok := pool.Index(p.Name); ok {
			base[i] = true
		}
	}

	var best *swap
	for _, out := range l.Players {
		outIdx, _ := pool.Index(out.Name)
		for j := 0; j < pool.Len(); j++ {
			in := pool.Player(j)
			if base[j] || in.Position != out.Position || in.Salary <= out.Salary {
				continue
			}
			salary := l.TotalSalary - out.Salary + in.Salary
			points := l.ProjectedPoints - out.ProjectedPoints + in.ProjectedPoints
			if salary > salaryCap || points < floor-1e-9 {
				continue
			}

			base[outIdx], base[j] = false, true
			ok := rows.Feasible(base)
			base[outIdx], base[j] = true, false
			if !ok {
				continue
			}

			players := make([]models.PlayerRecord, 0, len(l.Players))
			for _, p := range l.Players {
				if p.Name != out.Name {
					players = append(players, p)
				}
			}
			players = append(players, in)
			candidate := swap{out: out, in: in, lineup: models.NewLineup(players)}
			if state.Seen(candidate.lineup) {
				continue
			}
			if best == nil || candidate.better(*best) {
				best = &candidate
			}
		}
	}

	if best == nil {
		return l
	}
	best.lineup.SalaryAdjusted = true
	return best.lineup
}
