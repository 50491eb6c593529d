package solver

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func knapsack() *Problem {
	return &Problem{
		NumVars:   4,
		Objective: []float64{10, 13, 7, 8},
		Constraints: []Constraint{
			{Name: "weight", Coefs: map[int]float64{0: 5, 1: 6, 2: 3, 3: 4}, Sense: LessEq, RHS: 10},
		},
	}
}

func TestBranchAndBound_Knapsack(t *testing.T) {
	s := NewBranchAndBound(0, nil)

	sol, err := s.Solve(context.Background(), knapsack())
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.InDelta(t, 21.0, sol.Objective, 1e-9)
	assert.Equal(t, []int{1, 3}, sol.Selected)
	assert.Greater(t, sol.Nodes, 0)
}

func TestBranchAndBound_EqualityRows(t *testing.T) {
	// pick exactly one of {0,1} and exactly two of {2,3,4}
	p := &Problem{
		NumVars:   5,
		Objective: []float64{3, 4, 1, 5, 2},
		Constraints: []Constraint{
			{Name: "a", Coefs: map[int]float64{0: 1, 1: 1}, Sense: Equal, RHS: 1},
			{Name: "b", Coefs: map[int]float64{2: 1, 3: 1, 4: 1}, Sense: Equal, RHS: 2},
			{Name: "budget", Coefs: map[int]float64{1: 10, 3: 10, 4: 1}, Sense: LessEq, RHS: 15},
		},
	}

	sol, err := NewBranchAndBound(100, nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	// 1 and 3 together bust the budget, so the best is {0, 3, 4}.
	assert.Equal(t, []int{0, 3, 4}, sol.Selected)
	assert.InDelta(t, 10.0, sol.Objective, 1e-9)
}

func TestBranchAndBound_Infeasible(t *testing.T) {
	p := &Problem{
		NumVars:   2,
		Objective: []float64{1, 1},
		Constraints: []Constraint{
			{Name: "too_many", Coefs: map[int]float64{0: 1, 1: 1}, Sense: GreaterEq, RHS: 3},
		},
	}

	sol, err := NewBranchAndBound(0, nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.Empty(t, sol.Selected)
}

func TestBranchAndBound_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBranchAndBound(0, nil).Solve(ctx, knapsack())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBranchAndBound_NodeLimit(t *testing.T) {
	_, err := NewBranchAndBound(1, nil).Solve(context.Background(), knapsack())
	assert.ErrorIs(t, err, ErrNodeLimit)
}

func TestBranchAndBound_InvalidProblem(t *testing.T) {
	p := &Problem{NumVars: 2, Objective: []float64{1}}
	_, err := NewBranchAndBound(0, nil).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidProblem)

	p = &Problem{
		NumVars:     1,
		Objective:   []float64{1},
		Constraints: []Constraint{{Name: "oob", Coefs: map[int]float64{3: 1}, Sense: LessEq, RHS: 1}},
	}
	_, err = NewBranchAndBound(0, nil).Solve(context.Background(), p)
	assert.ErrorIs(t, err, ErrInvalidProblem)
}

func TestBranchAndBound_Deterministic(t *testing.T) {
	p := &Problem{
		NumVars:   4,
		Objective: []float64{5, 5, 5, 5},
		Constraints: []Constraint{
			{Name: "pick_two", Coefs: map[int]float64{0: 1, 1: 1, 2: 1, 3: 1}, Sense: Equal, RHS: 2},
		},
	}

	s := NewBranchAndBound(0, nil)
	first, err := s.Solve(context.Background(), p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Solve(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, first.Selected, again.Selected)
	}
}

// Cross-check against exhaustive enumeration on small random problems.
func TestBranchAndBound_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewBranchAndBound(0, nil)

	for trial := 0; trial < 25; trial++ {
		n := 8
		p := &Problem{NumVars: n, Objective: make([]float64, n)}
		weights := make(map[int]float64)
		for i := 0; i < n; i++ {
			p.Objective[i] = float64(rng.Intn(20) + 1)
			weights[i] = float64(rng.Intn(9) + 1)
		}
		p.Constraints = append(p.Constraints,
			Constraint{Name: "weight", Coefs: weights, Sense: LessEq, RHS: float64(rng.Intn(20) + 5)},
			Constraint{Name: "count", Coefs: map[int]float64{0: 1, 1: 1, 2: 1, 3: 1}, Sense: GreaterEq, RHS: 1},
		)

		want, feasible := bruteForce(p)
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err)

		if !feasible {
			assert.Equal(t, StatusInfeasible, sol.Status, "trial %d", trial)
			continue
		}
		require.Equal(t, StatusOptimal, sol.Status, "trial %d", trial)
		assert.InDelta(t, want, sol.Objective, 1e-6, "trial %d", trial)

		x := make([]bool, n)
		for _, i := range sol.Selected {
			x[i] = true
		}
		assert.True(t, p.Feasible(x), "trial %d", trial)
	}
}

// Mixed senses and negative coefficients exercise every dual ratio case.
func TestBranchAndBound_MatchesBruteForceMixedRows(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewBranchAndBound(0, nil)
	senses := []Sense{LessEq, GreaterEq, Equal}

	for trial := 0; trial < 40; trial++ {
		n := 11
		p := &Problem{NumVars: n, Objective: make([]float64, n)}
		for i := range p.Objective {
			p.Objective[i] = float64(rng.Intn(31) - 10)
		}
		for r := 0; r < 3; r++ {
			coefs := make(map[int]float64)
			sum := 0.0
			for i := 0; i < n; i++ {
				if rng.Intn(3) == 0 {
					continue
				}
				a := float64(rng.Intn(9) - 2)
				coefs[i] = a
				sum += math.Max(a, 0)
			}
			sense := senses[rng.Intn(len(senses))]
			rhs := math.Floor(sum * rng.Float64())
			p.Constraints = append(p.Constraints, Constraint{Name: fmt.Sprintf("row_%d", r), Coefs: coefs, Sense: sense, RHS: rhs})
		}

		want, feasible := bruteForce(p)
		sol, err := s.Solve(context.Background(), p)
		require.NoError(t, err, "trial %d", trial)

		if !feasible {
			assert.Equal(t, StatusInfeasible, sol.Status, "trial %d", trial)
			continue
		}
		require.Equal(t, StatusOptimal, sol.Status, "trial %d", trial)
		assert.InDelta(t, want, sol.Objective, 1e-6, "trial %d", trial)

		x := make([]bool, n)
		for _, i := range sol.Selected {
			x[i] = true
		}
		assert.True(t, p.Feasible(x), "trial %d", trial)
	}
}

// A classic-roster program over a few hundred players must solve in well
// under a second, not by enumeration.
func TestBranchAndBound_SlateSizedProgram(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	positions := []struct {
		count, need int
		sense       Sense
		flex        bool
	}{
		{32, 1, Equal, false},    // QB
		{64, 2, GreaterEq, true}, // RB
		{96, 3, GreaterEq, true}, // WR
		{40, 1, GreaterEq, true}, // TE
		{32, 1, Equal, false},    // DST
	}

	var (
		p      = &Problem{}
		salary = make(map[int]float64)
		all    = make(map[int]float64)
		flex   = make(map[int]float64)
	)
	for pi, pos := range positions {
		row := make(map[int]float64)
		for k := 0; k < pos.count; k++ {
			i := p.NumVars
			p.NumVars++
			sal := float64(3000 + 100*rng.Intn(60))
			p.Objective = append(p.Objective, sal/1000*2.6+rng.Float64()*6-3)
			salary[i] = sal
			all[i] = 1
			row[i] = 1
			if pos.flex {
				flex[i] = 1
			}
		}
		p.Constraints = append(p.Constraints, Constraint{Name: fmt.Sprintf("pos_%d", pi), Coefs: row, Sense: pos.sense, RHS: float64(pos.need)})
	}
	p.Constraints = append(p.Constraints,
		Constraint{Name: "flex", Coefs: flex, Sense: Equal, RHS: 7},
		Constraint{Name: "roster", Coefs: all, Sense: Equal, RHS: 9},
		Constraint{Name: "cap", Coefs: salary, Sense: LessEq, RHS: 50000},
	)

	started := time.Now()
	sol, err := NewBranchAndBound(0, nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, StatusOptimal, sol.Status)
	assert.Less(t, time.Since(started), time.Second)

	x := make([]bool, p.NumVars)
	for _, i := range sol.Selected {
		x[i] = true
	}
	assert.Len(t, sol.Selected, 9)
	assert.Empty(t, p.Violated(x))
}

func bruteForce(p *Problem) (float64, bool) {
	best, found := math.Inf(-1), false
	x := make([]bool, p.NumVars)
	for mask := 0; mask < 1<<p.NumVars; mask++ {
		for i := range x {
			x[i] = mask&(1<<i) != 0
		}
		if p.Feasible(x) {
			if v := p.Value(x); v > best {
				best, found = v, true
			}
		}
	}
	return best, found
}

func TestConstraint_Satisfied(t *testing.T) {
	c := Constraint{Coefs: map[int]float64{0: 1, 1: 1}, Sense: Equal, RHS: 1}
	assert.True(t, c.Satisfied([]bool{true, false}))
	assert.False(t, c.Satisfied([]bool{true, true}))

	p := &Problem{NumVars: 2, Objective: []float64{1, 2}, Constraints: []Constraint{
		{Name: "one", Coefs: c.Coefs, Sense: Equal, RHS: 1},
	}}
	assert.Equal(t, []string{"one"}, p.Violated([]bool{false, false}))
	assert.InDelta(t, 3.0, p.Value([]bool{true, true}), 1e-9)
}
