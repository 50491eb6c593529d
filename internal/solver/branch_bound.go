package solver

import (
	"context"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxNodes = 20000

	integralTol = 1e-6
	// improveTol is the margin a candidate must beat the incumbent by.
	improveTol = 1e-9
)

// BranchAndBound solves binary programs by depth-first branch and bound.
// Each node solves its LP relaxation with a bounded-variable dual simplex
// that starts from the parent's optimal tableau, so a child usually needs a
// handful of pivots. Once an incumbent exists, nonbasic variables whose
// reduced cost exceeds the remaining gap are fixed for the whole subtree.
//
// The search is deterministic: it branches on the most fractional variable
// (lowest index on ties), explores the x=1 child first and only replaces the
// incumbent on a strictly better objective. Among equal-score optima the
// first one reached in this order is returned.
type BranchAndBound struct {
	MaxNodes int
	logger   *logrus.Entry
}

func NewBranchAndBound(maxNodes int, logger *logrus.Logger) *BranchAndBound {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BranchAndBound{
		MaxNodes: maxNodes,
		logger:   logger.WithField("component", "branch_and_bound"),
	}
}

// snapshot is a parent's optimal tableau shared by its two children. The
// first child to run takes a copy and the last one takes the original.
type snapshot struct {
	tab   *tableau
	users int
}

func (s *snapshot) take() *tableau {
	s.users--
	if s.users > 0 {
		return s.tab.clone()
	}
	tab := s.tab
	s.tab = nil
	return tab
}

func (s *snapshot) drop() {
	s.users--
	if s.users == 0 {
		s.tab = nil
	}
}

// pending is an unexplored child: the parent snapshot plus one fixing.
type pending struct {
	snap  *snapshot
	v     int
	val   float64
	bound float64
}

func (s *BranchAndBound) Solve(ctx context.Context, p *Problem) (*Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	limit := s.MaxNodes
	if limit <= 0 {
		limit = DefaultMaxNodes
	}

	fixed, consumed, ok := presolve(p)
	if !ok {
		return &Solution{Status: StatusInfeasible}, nil
	}
	root, ok := newTableau(p, fixed, consumed)
	if !ok {
		return &Solution{Status: StatusInfeasible}, nil
	}
	maxIter := 50*(root.m+len(root.red)) + 1000

	var (
		stack     = []pending{{snap: &snapshot{tab: root, users: 1}, v: -1, bound: math.Inf(1)}}
		best      []bool
		bestValue = math.Inf(-1)
		nodes     int
		rcFixed   int
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nodes >= limit {
			return nil, fmt.Errorf("%w after %d nodes", ErrNodeLimit, nodes)
		}

		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if best != nil && cur.bound <= bestValue+improveTol {
			cur.snap.drop()
			continue
		}
		nodes++

		tab := cur.snap.take()
		if cur.v >= 0 {
			tab.fix(cur.v, cur.val)
		}
		status, err := tab.solve(maxIter)
		if err != nil {
			return nil, fmt.Errorf("%w at node %d", err, nodes)
		}
		if status == lpInfeasible {
			continue
		}

		z := tab.values()
		bound := tab.objective(z)
		if best != nil {
			if bound <= bestValue+improveTol {
				continue
			}
			rcFixed += tab.fixByReducedCost(bound - bestValue - improveTol)
		}

		v := tab.mostFractional(z)
		if v < 0 {
			x := tab.selection(z)
			if p.Feasible(x) {
				if val := p.Value(x); best == nil || val > bestValue+improveTol {
					best, bestValue = x, val
				}
				continue
			}
			// Rounding drifted past a row; keep splitting until it is exact.
			if v = tab.firstFree(); v < 0 {
				continue
			}
		}

		snap := &snapshot{tab: tab, users: 2}
		stack = append(stack,
			pending{snap: snap, v: v, val: 0, bound: bound},
			pending{snap: snap, v: v, val: 1, bound: bound})
	}

	s.logger.WithFields(logrus.Fields{
		"vars":     p.NumVars,
		"rows":     root.m,
		"nodes":    nodes,
		"rc_fixed": rcFixed,
	}).Debug("Branch and bound finished")

	if best == nil {
		return &Solution{Status: StatusInfeasible, Nodes: nodes}, nil
	}

	sol := &Solution{Status: StatusOptimal, Objective: bestValue, Nodes: nodes}
	for i, sel := range best {
		if sel {
			sol.Selected = append(sol.Selected, i)
		}
	}
	return sol, nil
}

// presolve fixes variables pinned by single-variable equality rows, such as
// locks and bans, and marks those rows so they never reach the LP.
func presolve(p *Problem) ([]int8, []bool, bool) {
	fixed := make([]int8, p.NumVars)
	for i := range fixed {
		fixed[i] = -1
	}
	consumed := make([]bool, len(p.Constraints))
	for ri, c := range p.Constraints {
		if c.Sense != Equal {
			continue
		}
		idx, coef, n := -1, 0.0, 0
		for i, a := range c.Coefs {
			if a != 0 {
				idx, coef = i, a
				n++
			}
		}
		if n != 1 {
			continue
		}
		var val int8
		switch v := c.RHS / coef; {
		case math.Abs(v) <= feasTol:
			val = 0
		case math.Abs(v-1) <= feasTol:
			val = 1
		default:
			return nil, nil, false
		}
		if fixed[idx] >= 0 && fixed[idx] != val {
			return nil, nil, false
		}
		fixed[idx] = val
		consumed[ri] = true
	}
	return fixed, consumed, true
}
