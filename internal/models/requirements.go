package models

import (
	"sort"
	"strconv"
	"strings"

	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

const DefaultSalaryCap = 50000

// PositionRequirements maps a position to its base roster count.
type PositionRequirements map[Position]int

// LineupRequirement is the roster shape of a contest.
type LineupRequirement struct {
	Positions     PositionRequirements `json:"positions"`
	FlexCount     int                  `json:"flex_count"`
	FlexPositions []Position           `json:"flex_positions"`
	SalaryCap     int                  `json:"salary_cap"`
	MinSalary     int                  `json:"min_salary,omitempty"`
}

// DefaultRequirement is the DraftKings NFL classic roster.
func DefaultRequirement() LineupRequirement {
	return LineupRequirement{
		Positions: PositionRequirements{
			PositionQB:  1,
			PositionRB:  2,
			PositionWR:  3,
			PositionTE:  1,
			PositionDST: 1,
		},
		FlexCount:     1,
		FlexPositions: []Position{PositionRB, PositionWR, PositionTE},
		SalaryCap:     DefaultSalaryCap,
	}
}

func (r LineupRequirement) RosterSize() int {
	total := r.FlexCount
	for _, n := range r.Positions {
		total += n
	}
	return total
}

func (r LineupRequirement) IsFlexEligible(pos Position) bool {
	for _, p := range r.FlexPositions {
		if p == pos {
			return true
		}
	}
	return false
}

// SortedPositions returns the configured positions in roster order.
func (r LineupRequirement) SortedPositions() []Position {
	order := make(map[Position]int, len(Positions))
	for i, p := range Positions {
		order[p] = i
	}
	out := make([]Position, 0, len(r.Positions))
	for p := range r.Positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return order[out[i]] < order[out[j]] })
	return out
}

// Validate rejects contradictory roster shapes with a ConfigError.
func (r LineupRequirement) Validate() error {
	if len(r.Positions) == 0 {
		return utils.NewConfigError("positions", "no positions configured")
	}
	for pos, n := range r.Positions {
		if !isRosterPosition(pos) {
			return utils.NewConfigError("positions", "unknown position %q", pos)
		}
		if n < 0 {
			return utils.NewConfigError("positions", "negative count %d for %s", n, pos)
		}
	}
	if r.FlexCount < 0 {
		return utils.NewConfigError("flex_count", "negative flex count %d", r.FlexCount)
	}
	if r.FlexCount > 0 && len(r.FlexPositions) == 0 {
		return utils.NewConfigError("flex_positions", "flex count %d with no flex-eligible positions", r.FlexCount)
	}
	for _, pos := range r.FlexPositions {
		if _, ok := r.Positions[pos]; !ok {
			return utils.NewConfigError("flex_positions", "flex position %s has no base requirement", pos)
		}
	}
	if r.RosterSize() == 0 {
		return utils.NewConfigError("positions", "roster size is zero")
	}
	if r.SalaryCap <= 0 {
		return utils.NewConfigError("salary_cap", "salary cap must be positive, got %d", r.SalaryCap)
	}
	if r.MinSalary < 0 || r.MinSalary > r.SalaryCap {
		return utils.NewConfigError("min_salary", "min salary %d outside [0, %d]", r.MinSalary, r.SalaryCap)
	}
	return nil
}

func isRosterPosition(pos Position) bool {
	for _, p := range Positions {
		if p == pos {
			return true
		}
	}
	return false
}

// ParsePositionRequirements reads the "QB:1,RB:2,FLEX:1" form used by configuration.
// The FLEX entry, if any, is returned separately.
func ParsePositionRequirements(raw string) (PositionRequirements, int, error) {
	reqs := make(PositionRequirements)
	flex := 0
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, ":", 2)
		if len(kv) != 2 {
			return nil, 0, utils.NewConfigError("POSITION_REQUIREMENTS", "expected POS:COUNT, got %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(kv[1]))
		if err != nil {
			return nil, 0, utils.NewConfigError("POSITION_REQUIREMENTS", "bad count in %q", part)
		}
		name := strings.ToUpper(strings.TrimSpace(kv[0]))
		if name == string(PositionFlex) {
			flex = n
			continue
		}
		pos, ok := ParsePosition(name)
		if !ok {
			return nil, 0, utils.NewConfigError("POSITION_REQUIREMENTS", "unknown position %q", kv[0])
		}
		reqs[pos] = n
	}
	return reqs, flex, nil
}

// ParsePositionList reads a comma separated position list such as "RB,WR,TE".
func ParsePositionList(raw []string) ([]Position, error) {
	var out []Position
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		pos, ok := ParsePosition(s)
		if !ok {
			return nil, utils.NewConfigError("positions", "unknown position %q", s)
		}
		out = append(out, pos)
	}
	return out, nil
}
