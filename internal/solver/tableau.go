package solver

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	primalTol = 1e-7
	pivotTol  = 1e-9
	ratioTol  = 1e-12
)

var errStalled = errors.New("solver: simplex iteration limit reached")

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
)

// tableau is a bounded-variable simplex tableau for
//
//	min d·z  s.t.  A·z = b,  lo <= z <= hi
//
// where z holds the structural variables followed by one slack per row and
// d is the negated objective. Structural variables are boxed in [0, 1], so
// the all-slack basis with every structural at the bound its cost prefers is
// dual feasible and the dual simplex needs no phase one. Branching only
// tightens bounds, which keeps a parent's optimal tableau dual feasible for
// its children.
type tableau struct {
	n, m int
	t    *mat.Dense // B⁻¹A, m × (n+m)
	beta []float64  // B⁻¹b
	red  []float64  // reduced costs, zero on basic columns

	lo, hi  []float64
	atUpper []bool // nonbasic variable sits at hi
	basis   []int  // variable basic in each row
	basicAt []int  // row of a basic variable, -1 otherwise

	obj []float64 // structural objective, shared and read-only
}

type lpRow struct {
	coefs map[int]float64
	sense Sense
	rhs   float64
}

// newTableau builds the root tableau. fixed holds presolved values (-1 free)
// and skip marks rows presolve already turned into bounds. It reports false
// when a row without variables cannot hold.
func newTableau(p *Problem, fixed []int8, skip []bool) (*tableau, bool) {
	var rows []lpRow
	for ri, c := range p.Constraints {
		if skip[ri] {
			continue
		}
		scale := 0.0
		for _, a := range c.Coefs {
			scale = math.Max(scale, math.Abs(a))
		}
		if scale == 0 {
			if !emptyRowHolds(c) {
				return nil, false
			}
			continue
		}
		// unit max coefficient keeps the salary row on the same footing as
		// the count rows
		coefs := make(map[int]float64, len(c.Coefs))
		for i, a := range c.Coefs {
			if a != 0 {
				coefs[i] = a / scale
			}
		}
		rows = append(rows, lpRow{coefs: coefs, sense: c.Sense, rhs: c.RHS / scale})
	}

	n, m := p.NumVars, len(rows)
	size := n + m
	tb := &tableau{
		n:       n,
		m:       m,
		beta:    make([]float64, m),
		red:     make([]float64, size),
		lo:      make([]float64, size),
		hi:      make([]float64, size),
		atUpper: make([]bool, size),
		basis:   make([]int, m),
		basicAt: make([]int, size),
		obj:     p.Objective,
	}
	if m > 0 {
		tb.t = mat.NewDense(m, size, nil)
	}

	for j := 0; j < n; j++ {
		tb.basicAt[j] = -1
		tb.lo[j], tb.hi[j] = 0, 1
		switch fixed[j] {
		case 0:
			tb.hi[j] = 0
		case 1:
			tb.lo[j] = 1
		}
		tb.red[j] = -p.Objective[j]
		tb.atUpper[j] = tb.red[j] < 0
	}

	for r, row := range rows {
		for i, a := range row.coefs {
			tb.t.Set(r, i, a)
		}
		s := n + r
		tb.t.Set(r, s, 1)
		tb.beta[r] = row.rhs
		switch row.sense {
		case LessEq:
			tb.lo[s], tb.hi[s] = 0, math.Inf(1)
		case GreaterEq:
			tb.lo[s], tb.hi[s] = math.Inf(-1), 0
		default:
			tb.lo[s], tb.hi[s] = 0, 0
		}
		tb.basis[r] = s
		tb.basicAt[s] = r
	}
	return tb, true
}

func emptyRowHolds(c Constraint) bool {
	switch c.Sense {
	case LessEq:
		return c.RHS >= -feasTol
	case GreaterEq:
		return c.RHS <= feasTol
	default:
		return math.Abs(c.RHS) <= feasTol
	}
}

func (tb *tableau) clone() *tableau {
	c := &tableau{
		n:       tb.n,
		m:       tb.m,
		beta:    append([]float64(nil), tb.beta...),
		red:     append([]float64(nil), tb.red...),
		lo:      append([]float64(nil), tb.lo...),
		hi:      append([]float64(nil), tb.hi...),
		atUpper: append([]bool(nil), tb.atUpper...),
		basis:   append([]int(nil), tb.basis...),
		basicAt: append([]int(nil), tb.basicAt...),
		obj:     tb.obj,
	}
	if tb.t != nil {
		c.t = mat.DenseCopyOf(tb.t)
	}
	return c
}

// fix pins structural variable j to val.
func (tb *tableau) fix(j int, val float64) {
	tb.lo[j], tb.hi[j] = val, val
	if tb.basicAt[j] < 0 {
		tb.atUpper[j] = false
	}
}

func (tb *tableau) fixed(j int) bool { return tb.lo[j] == tb.hi[j] }

func (tb *tableau) nonbasicValue(j int) float64 {
	if tb.atUpper[j] {
		return tb.hi[j]
	}
	return tb.lo[j]
}

// values returns the current value of every variable, slacks included.
func (tb *tableau) values() []float64 {
	z := make([]float64, len(tb.red))
	for j := range z {
		if tb.basicAt[j] < 0 {
			z[j] = tb.nonbasicValue(j)
		}
	}
	for r := 0; r < tb.m; r++ {
		v := tb.beta[r]
		for j, a := range tb.t.RawRowView(r) {
			if a != 0 && tb.basicAt[j] < 0 {
				v -= a * z[j]
			}
		}
		z[tb.basis[r]] = v
	}
	return z
}

// objective evaluates the maximized objective at z.
func (tb *tableau) objective(z []float64) float64 {
	return floats.Dot(tb.obj, z[:tb.n])
}

// solve runs the dual simplex until the basis is primal feasible or no
// entering column exists, which proves the LP infeasible.
func (tb *tableau) solve(maxIter int) (lpStatus, error) {
	for iter := 0; iter < maxIter; iter++ {
		z := tb.values()

		r, worst, toLower := -1, primalTol, false
		for i := 0; i < tb.m; i++ {
			k := tb.basis[i]
			if d := tb.lo[k] - z[k]; d > worst {
				r, worst, toLower = i, d, true
			}
			if d := z[k] - tb.hi[k]; d > worst {
				r, worst, toLower = i, d, false
			}
		}
		if r < 0 {
			return lpOptimal, nil
		}

		q, best, bestAbs := -1, math.Inf(1), 0.0
		for j, a := range tb.t.RawRowView(r) {
			if tb.basicAt[j] >= 0 || tb.fixed(j) {
				continue
			}
			abs := math.Abs(a)
			if abs < pivotTol {
				continue
			}
			// toLower needs the basic value to rise: x_r moves by -a per unit of x_j
			up := tb.atUpper[j]
			if toLower != ((up && a > 0) || (!up && a < 0)) {
				continue
			}
			ratio := math.Abs(tb.red[j]) / abs
			if ratio < best-ratioTol || (ratio <= best+ratioTol && abs > bestAbs) {
				q, best, bestAbs = j, ratio, abs
			}
		}
		if q < 0 {
			return lpInfeasible, nil
		}
		tb.pivot(r, q, !toLower)
	}
	return 0, errStalled
}

// pivot brings q into the basis in row r. The leaving variable becomes
// nonbasic at its upper bound when leaveAtUpper is set.
func (tb *tableau) pivot(r, q int, leaveAtUpper bool) {
	k := tb.basis[r]
	prow := tb.t.RawRowView(r)
	inv := 1 / prow[q]
	floats.Scale(inv, prow)
	tb.beta[r] *= inv
	prow[q] = 1

	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[q]; f != 0 {
			floats.AddScaled(row, -f, prow)
			tb.beta[i] -= f * tb.beta[r]
			row[q] = 0
		}
	}
	if f := tb.red[q]; f != 0 {
		floats.AddScaled(tb.red, -f, prow)
		tb.red[q] = 0
	}

	tb.basis[r] = q
	tb.basicAt[q] = r
	tb.basicAt[k] = -1
	tb.atUpper[k] = leaveAtUpper
}

// fixByReducedCost pins every free nonbasic structural whose reduced cost
// exceeds gap: moving it off its bound cannot beat the incumbent.
func (tb *tableau) fixByReducedCost(gap float64) int {
	n := 0
	for j := 0; j < tb.n; j++ {
		if tb.basicAt[j] >= 0 || tb.fixed(j) {
			continue
		}
		if math.Abs(tb.red[j]) > gap+primalTol {
			v := tb.nonbasicValue(j)
			tb.lo[j], tb.hi[j] = v, v
			n++
		}
	}
	return n
}

// mostFractional picks the free structural whose value is closest to 0.5,
// lowest index on ties. Returns -1 when every value is integral.
func (tb *tableau) mostFractional(z []float64) int {
	best, bestDist := -1, 0.5-integralTol
	for j := 0; j < tb.n; j++ {
		if tb.fixed(j) {
			continue
		}
		frac := z[j] - math.Floor(z[j])
		if frac <= integralTol || frac >= 1-integralTol {
			continue
		}
		if dist := math.Abs(frac - 0.5); dist < bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

func (tb *tableau) firstFree() int {
	for j := 0; j < tb.n; j++ {
		if !tb.fixed(j) {
			return j
		}
	}
	return -1
}

func (tb *tableau) selection(z []float64) []bool {
	x := make([]bool, tb.n)
	for j := range x {
		x[j] = z[j] > 0.5
	}
	return x
}
