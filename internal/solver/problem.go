// Package solver provides the 0/1 integer programming capability the lineup
// optimizer depends on. Callers describe a Problem over binary variables and a
// Solver returns the optimal selection or reports infeasibility.
package solver

import (
	"context"
	"errors"
	"fmt"
	"math"
)

type Sense int

const (
	LessEq Sense = iota
	GreaterEq
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "=="
	}
	return fmt.Sprintf("Sense(%d)", int(s))
}

// feasTol absorbs floating point noise when checking a row.
const feasTol = 1e-6

// Constraint is a linear row over binary variables: Σ Coefs[i]·x_i (Sense) RHS.
type Constraint struct {
	Name  string
	Coefs map[int]float64
	Sense Sense
	RHS   float64
}

// Satisfied reports whether the row holds for the selection x.
func (c Constraint) Satisfied(x []bool) bool {
	lhs := 0.0
	for i, a := range c.Coefs {
		if x[i] {
			lhs += a
		}
	}
	switch c.Sense {
	case LessEq:
		return lhs <= c.RHS+feasTol
	case GreaterEq:
		return lhs >= c.RHS-feasTol
	default:
		return math.Abs(lhs-c.RHS) <= feasTol
	}
}

// Problem maximizes Objective·x over x ∈ {0,1}^NumVars subject to Constraints.
type Problem struct {
	NumVars     int
	Objective   []float64
	Constraints []Constraint
}

var (
	ErrInvalidProblem = errors.New("solver: invalid problem")
	ErrNodeLimit      = errors.New("solver: node limit reached")
)

func (p *Problem) Validate() error {
	if p.NumVars <= 0 {
		return fmt.Errorf("%w: no variables", ErrInvalidProblem)
	}
	if len(p.Objective) != p.NumVars {
		return fmt.Errorf("%w: objective has %d coefficients for %d variables", ErrInvalidProblem, len(p.Objective), p.NumVars)
	}
	for _, c := range p.Constraints {
		for i, a := range c.Coefs {
			if i < 0 || i >= p.NumVars {
				return fmt.Errorf("%w: constraint %q references variable %d", ErrInvalidProblem, c.Name, i)
			}
			if math.IsNaN(a) || math.IsInf(a, 0) {
				return fmt.Errorf("%w: constraint %q has non-finite coefficient", ErrInvalidProblem, c.Name)
			}
		}
	}
	return nil
}

// Feasible checks every constraint against the selection.
func (p *Problem) Feasible(x []bool) bool {
	for _, c := range p.Constraints {
		if !c.Satisfied(x) {
			return false
		}
	}
	return true
}

// Violated returns the names of the constraints the selection breaks.
func (p *Problem) Violated(x []bool) []string {
	var names []string
	for _, c := range p.Constraints {
		if !c.Satisfied(x) {
			names = append(names, c.Name)
		}
	}
	return names
}

func (p *Problem) Value(x []bool) float64 {
	v := 0.0
	for i, sel := range x {
		if sel {
			v += p.Objective[i]
		}
	}
	return v
}

type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
)

func (s Status) String() string {
	if s == StatusOptimal {
		return "optimal"
	}
	return "infeasible"
}

type Solution struct {
	Status    Status
	Objective float64
	// Selected holds the indices of variables set to 1, ascending.
	Selected []int
	Nodes    int
}

// Solver solves a binary integer program. Implementations must be safe to
// call from multiple goroutines with distinct problems. A returned error means
// the backend failed or its budget ran out, never that the problem is infeasible.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (*Solution, error)
}
