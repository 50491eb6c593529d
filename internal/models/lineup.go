package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// StackConstraint requires at least MinCount players from Team at Positions.
// An empty Positions slice means any position.
type StackConstraint struct {
	Team      string     `json:"team_id"`
	Positions []Position `json:"positions"`
	MinCount  int        `json:"min_count"`
}

// Includes reports whether p counts toward the stack.
func (s StackConstraint) Includes(p PlayerRecord) bool {
	if p.Team != s.Team {
		return false
	}
	if len(s.Positions) == 0 {
		return true
	}
	for _, pos := range s.Positions {
		if p.Position == pos {
			return true
		}
	}
	return false
}

// SatisfiedBy reports whether l holds at least MinCount stacked players.
func (s StackConstraint) SatisfiedBy(l *Lineup) bool {
	n := 0
	for _, p := range l.Players {
		if s.Includes(p) {
			n++
		}
	}
	return n >= s.MinCount
}

// LineupSlot is one roster spot with the player assigned to it.
type LineupSlot struct {
	Slot   string       `json:"slot"`
	Player PlayerRecord `json:"player"`
}

type Lineup struct {
	Players         []PlayerRecord `json:"-"`
	Slots           []LineupSlot   `json:"slots"`
	TotalSalary     int            `json:"total_salary"`
	ProjectedPoints float64        `json:"projected_points"`
	// SalaryAdjusted is set when the utilization pass swapped a player in.
	SalaryAdjusted bool `json:"salary_adjusted,omitempty"`
}

// NewLineup builds a lineup from the selected players and computes its totals.
func NewLineup(players []PlayerRecord) *Lineup {
	l := &Lineup{Players: make([]PlayerRecord, len(players))}
	copy(l.Players, players)
	sort.Slice(l.Players, func(i, j int) bool { return l.Players[i].Name < l.Players[j].Name })
	l.CalculateTotalSalary()
	l.CalculateProjectedPoints()
	return l
}

// CalculateTotalSalary calculates the total salary of all players in the lineup
func (l *Lineup) CalculateTotalSalary() int {
	total := 0
	for _, player := range l.Players {
		total += player.Salary
	}
	l.TotalSalary = total
	return total
}

// CalculateProjectedPoints calculates the total projected points for the lineup
func (l *Lineup) CalculateProjectedPoints() float64 {
	total := 0.0
	for _, player := range l.Players {
		total += player.ProjectedPoints
	}
	l.ProjectedPoints = total
	return total
}

// ValidateSalaryCap checks if the lineup is under the salary cap
func (l *Lineup) ValidateSalaryCap(salaryCap int) error {
	if l.CalculateTotalSalary() > salaryCap {
		return fmt.Errorf("lineup exceeds salary cap: %d > %d", l.TotalSalary, salaryCap)
	}
	return nil
}

// Key identifies the lineup by its player set; order is irrelevant.
func (l *Lineup) Key() string {
	names := l.Names()
	sort.Strings(names)
	return strings.Join(names, "|")
}

func (l *Lineup) Names() []string {
	names := make([]string, len(l.Players))
	for i, p := range l.Players {
		names[i] = p.Name
	}
	return names
}

func (l *Lineup) HasPlayer(name string) bool {
	for _, p := range l.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (l *Lineup) CountByPosition() map[Position]int {
	counts := make(map[Position]int)
	for _, p := range l.Players {
		counts[p.Position]++
	}
	return counts
}

// GetTeamExposure returns a map of team abbreviations to player count
func (l *Lineup) GetTeamExposure() map[string]int {
	exposure := make(map[string]int)
	for _, player := range l.Players {
		exposure[player.Team]++
	}
	return exposure
}

// Correlation scores how heavily the lineup leans on same-team players:
// the sum of c*(c-1) over team counts c, divided by the roster size.
func (l *Lineup) Correlation() float64 {
	if len(l.Players) == 0 {
		return 0
	}
	score := 0
	for _, c := range l.GetTeamExposure() {
		score += c * (c - 1)
	}
	return float64(score) / float64(len(l.Players))
}

type StopReason string

const (
	StopCompleted   StopReason = "completed"
	StopExhausted   StopReason = "exhausted"
	StopMaxSolves   StopReason = "max_solves"
	StopTimeBudget  StopReason = "time_budget"
	StopSolverError StopReason = "solver_error"
)

// LineupBatch is the ordered result of one optimization request.
type LineupBatch struct {
	BatchID    string        `json:"batch_id"`
	PoolID     string        `json:"pool_id,omitempty"`
	Lineups    []*Lineup     `json:"lineups"`
	Requested  int           `json:"requested"`
	Produced   int           `json:"produced"`
	Shortfall  int           `json:"shortfall"`
	StopReason StopReason    `json:"stop_reason"`
	Solves     int           `json:"solves"`
	Elapsed    time.Duration `json:"elapsed"`
	Warning    string        `json:"warning,omitempty"`
}

// SortByPoints orders lineups by projected points, highest first. Ties keep
// generation order.
func (b *LineupBatch) SortByPoints() {
	sort.SliceStable(b.Lineups, func(i, j int) bool {
		return b.Lineups[i].ProjectedPoints > b.Lineups[j].ProjectedPoints
	})
}

// PlayerExposure counts how many lineups each player appears in.
func (b *LineupBatch) PlayerExposure() map[string]int {
	exposure := make(map[string]int)
	for _, l := range b.Lineups {
		for _, p := range l.Players {
			exposure[p.Name]++
		}
	}
	return exposure
}
