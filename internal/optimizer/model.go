package optimizer

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

// LineupModel turns a roster requirement into the base 0/1 program: one
// variable per pool player, positional rows and the salary rows.
type LineupModel struct {
	req models.LineupRequirement
}

func NewLineupModel(req models.LineupRequirement) (*LineupModel, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &LineupModel{req: req}, nil
}

func (m *LineupModel) Requirement() models.LineupRequirement { return m.req }

func (m *LineupModel) Objective(pool *models.Pool) []float64 {
	obj := make([]float64, pool.Len())
	for i := 0; i < pool.Len(); i++ {
		obj[i] = pool.Player(i).ProjectedPoints
	}
	return obj
}

// Constraints emits the roster rows for pool. Positions outside the flex set
// are exact; flex-eligible positions get a floor and share one total row.
func (m *LineupModel) Constraints(pool *models.Pool) []solver.Constraint {
	byPos := make(map[models.Position]map[int]float64)
	unused := make(map[int]float64)
	flexTotal := make(map[int]float64)
	salary := make(map[int]float64, pool.Len())

	for i := 0; i < pool.Len(); i++ {
		p := pool.Player(i)
		salary[i] = float64(p.Salary)
		if _, ok := m.req.Positions[p.Position]; !ok {
			unused[i] = 1
			continue
		}
		if byPos[p.Position] == nil {
			byPos[p.Position] = make(map[int]float64)
		}
		byPos[p.Position][i] = 1
		if m.req.IsFlexEligible(p.Position) {
			flexTotal[i] = 1
		}
	}

	var rows []solver.Constraint
	flexSlots := m.req.FlexCount
	for _, pos := range m.req.SortedPositions() {
		n := m.req.Positions[pos]
		sense := solver.Equal
		if m.req.IsFlexEligible(pos) {
			sense = solver.GreaterEq
			flexSlots += n
		}
		rows = append(rows, solver.Constraint{
			Name:  "position_" + string(pos),
			Coefs: byPos[pos],
			Sense: sense,
			RHS:   float64(n),
		})
	}

	if len(m.req.FlexPositions) > 0 {
		rows = append(rows, solver.Constraint{
			Name:  "flex_total",
			Coefs: flexTotal,
			Sense: solver.Equal,
			RHS:   float64(flexSlots),
		})
	}

	if len(unused) > 0 {
		rows = append(rows, solver.Constraint{
			Name:  "unrostered_positions",
			Coefs: unused,
			Sense: solver.Equal,
			RHS:   0,
		})
	}

	rows = append(rows, solver.Constraint{
		Name:  "salary_cap",
		Coefs: salary,
		Sense: solver.LessEq,
		RHS:   float64(m.req.SalaryCap),
	})
	if m.req.MinSalary > 0 {
		rows = append(rows, solver.Constraint{
			Name:  "min_salary",
			Coefs: salary,
			Sense: solver.GreaterEq,
			RHS:   float64(m.req.MinSalary),
		})
	}

	return rows
}

// CheckPool catches infeasibility the solver would otherwise have to prove:
// missing players at a position and a cap below the cheapest legal roster.
func (m *LineupModel) CheckPool(pool *models.Pool) error {
	counts := pool.CountByPosition()
	flexAvailable, flexNeeded := 0, m.req.FlexCount
	for _, pos := range m.req.SortedPositions() {
		need := m.req.Positions[pos]
		if counts[pos] < need {
			return utils.NewInfeasibleError("pool has %d %s, roster needs %d", counts[pos], pos, need)
		}
		if m.req.IsFlexEligible(pos) {
			flexAvailable += counts[pos]
			flexNeeded += need
		}
	}
	if flexAvailable < flexNeeded {
		return utils.NewInfeasibleError("pool has %d flex-eligible players, roster needs %d", flexAvailable, flexNeeded)
	}

	if cheapest := m.rosterSalary(pool, true); cheapest > m.req.SalaryCap {
		return utils.NewInfeasibleError("salary cap %d is below the cheapest legal roster (%d)", m.req.SalaryCap, cheapest)
	}
	if m.req.MinSalary > 0 {
		if priciest := m.rosterSalary(pool, false); priciest < m.req.MinSalary {
			return utils.NewInfeasibleError("min salary %d is above the most expensive legal roster (%d)", m.req.MinSalary, priciest)
		}
	}
	return nil
}

// rosterSalary returns the total salary of the cheapest (or most expensive)
// legal roster. Taking the extreme base count per position, then the extreme
// flex picks from what is left, is exact for this roster shape.
func (m *LineupModel) rosterSalary(pool *models.Pool, cheapest bool) int {
	byPos := make(map[models.Position][]int)
	for i := 0; i < pool.Len(); i++ {
		p := pool.Player(i)
		byPos[p.Position] = append(byPos[p.Position], p.Salary)
	}
	order := func(s []int) {
		if cheapest {
			sort.Ints(s)
		} else {
			sort.Sort(sort.Reverse(sort.IntSlice(s)))
		}
	}

	total := 0
	var leftovers []int
	for _, pos := range m.req.SortedPositions() {
		salaries := byPos[pos]
		order(salaries)
		need := m.req.Positions[pos]
		if need > len(salaries) {
			need = len(salaries)
		}
		for _, s := range salaries[:need] {
			total += s
		}
		if m.req.IsFlexEligible(pos) {
			leftovers = append(leftovers, salaries[need:]...)
		}
	}
	order(leftovers)
	for i := 0; i < m.req.FlexCount && i < len(leftovers); i++ {
		total += leftovers[i]
	}
	return total
}

// Violations lists every roster rule the lineup breaks. Empty means legal.
func (m *LineupModel) Violations(l *models.Lineup) []string {
	var out []string
	if len(l.Players) != m.req.RosterSize() {
		out = append(out, fmt.Sprintf("lineup has %d players, roster needs %d", len(l.Players), m.req.RosterSize()))
	}

	seen := make(map[string]bool)
	for _, p := range l.Players {
		if seen[p.Name] {
			out = append(out, fmt.Sprintf("player %s appears twice", p.Name))
		}
		seen[p.Name] = true
	}

	counts := l.CountByPosition()
	flexCount, flexNeed := 0, m.req.FlexCount
	for _, pos := range m.req.SortedPositions() {
		need := m.req.Positions[pos]
		if m.req.IsFlexEligible(pos) {
			flexCount += counts[pos]
			flexNeed += need
			if counts[pos] < need {
				out = append(out, fmt.Sprintf("%s needs at least %d, got %d", pos, need, counts[pos]))
			}
			continue
		}
		if counts[pos] != need {
			out = append(out, fmt.Sprintf("%s needs exactly %d, got %d", pos, need, counts[pos]))
		}
	}
	if len(m.req.FlexPositions) > 0 && flexCount != flexNeed {
		out = append(out, fmt.Sprintf("flex-eligible total must be %d, got %d", flexNeed, flexCount))
	}
	for pos, n := range counts {
		if _, ok := m.req.Positions[pos]; !ok && n > 0 {
			out = append(out, fmt.Sprintf("position %s is not on the roster", pos))
		}
	}

	if err := l.ValidateSalaryCap(m.req.SalaryCap); err != nil {
		out = append(out, err.Error())
	}
	if m.req.MinSalary > 0 && l.TotalSalary < m.req.MinSalary {
		out = append(out, fmt.Sprintf("lineup salary %d is below minimum %d", l.TotalSalary, m.req.MinSalary))
	}
	return out
}
