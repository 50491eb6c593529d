package optimizer

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

const (
	KindStackTeam    = "stack_team"
	KindMustInclude  = "must_include"
	KindAvoidPlayers = "avoid_players"
	KindAvoidTeams   = "avoid_teams"
)

var kindAliases = map[string]string{
	KindStackTeam:    KindStackTeam,
	"team_stack":     KindStackTeam,
	KindMustInclude:  KindMustInclude,
	"lock":           KindMustInclude,
	KindAvoidPlayers: KindAvoidPlayers,
	"exclude":        KindAvoidPlayers,
	KindAvoidTeams:   KindAvoidTeams,
}

// ConstraintSpec is a user constraint as it arrives from the API or a
// constraints file. Which fields matter depends on Type.
type ConstraintSpec struct {
	Type      string   `json:"type" yaml:"type"`
	TeamID    string   `json:"team_id,omitempty" yaml:"team_id,omitempty"`
	Positions []string `json:"positions,omitempty" yaml:"positions,omitempty"`
	MinCount  *int     `json:"min_count,omitempty" yaml:"min_count,omitempty"`
	Players   []string `json:"players,omitempty" yaml:"players,omitempty"`
	Teams     []string `json:"teams,omitempty" yaml:"teams,omitempty"`
}

// StackSpec is a shorthand for a stack_team spec.
func StackSpec(team string, minCount int, positions ...models.Position) ConstraintSpec {
	spec := ConstraintSpec{Type: KindStackTeam, TeamID: team, MinCount: &minCount}
	for _, p := range positions {
		spec.Positions = append(spec.Positions, string(p))
	}
	return spec
}

// BuildConstraints translates user specs into solver rows against pool.
// Unknown kinds and references to players or teams that are not in the pool
// fail with a ConfigError before anything is solved.
func BuildConstraints(specs []ConstraintSpec, pool *models.Pool, req models.LineupRequirement) ([]solver.Constraint, error) {
	b := &constraintBuilder{
		pool:    pool,
		req:     req,
		locked:  make(map[int]bool),
		avoided: make(map[int]bool),
	}
	for i, spec := range specs {
		kind, ok := kindAliases[strings.ToLower(strings.TrimSpace(spec.Type))]
		if !ok {
			return nil, utils.NewConfigError(field(i, spec.Type), "unknown constraint type %q", spec.Type)
		}

		var err error
		switch kind {
		case KindStackTeam:
			err = b.stack(i, spec)
		case KindMustInclude:
			err = b.players(i, spec, true)
		case KindAvoidPlayers:
			err = b.players(i, spec, false)
		case KindAvoidTeams:
			err = b.avoidTeams(i, spec)
		}
		if err != nil {
			return nil, err
		}
	}

	if len(b.locked) > req.RosterSize() {
		return nil, utils.NewConfigError(KindMustInclude, "%d locked players exceed roster size %d", len(b.locked), req.RosterSize())
	}
	return b.rows, nil
}

type constraintBuilder struct {
	pool    *models.Pool
	req     models.LineupRequirement
	rows    []solver.Constraint
	locked  map[int]bool
	avoided map[int]bool
}

func field(i int, kind string) string {
	if kind == "" {
		kind = "constraint"
	}
	return kind + "[" + strconv.Itoa(i) + "]"
}

func (b *constraintBuilder) stack(i int, spec ConstraintSpec) error {
	sc, err := ParseStack(i, spec, b.pool, b.req)
	if err != nil {
		return err
	}

	coefs := make(map[int]float64)
	for j := 0; j < b.pool.Len(); j++ {
		if sc.Includes(b.pool.Player(j)) {
			coefs[j] = 1
		}
	}
	if len(coefs) < sc.MinCount {
		return utils.NewConfigError(field(i, KindStackTeam), "team %s has %d eligible players, stack needs %d", sc.Team, len(coefs), sc.MinCount)
	}

	b.rows = append(b.rows, solver.Constraint{
		Name:  "stack_" + sc.Team,
		Coefs: coefs,
		Sense: solver.GreaterEq,
		RHS:   float64(sc.MinCount),
	})
	return nil
}

// ParseStack checks the i-th stack_team spec against pool and req. MinCount
// defaults to 1 and the team id is normalized to upper case.
func ParseStack(i int, spec ConstraintSpec, pool *models.Pool, req models.LineupRequirement) (models.StackConstraint, error) {
	name := field(i, KindStackTeam)
	team := strings.ToUpper(strings.TrimSpace(spec.TeamID))
	if team == "" {
		return models.StackConstraint{}, utils.NewConfigError(name, "team_id is required")
	}
	if !containsString(pool.Teams(), team) {
		err := utils.NewConfigError(name, "team %q is not in the pool", spec.TeamID)
		err.Suggestions = suggest(team, pool.Teams())
		return models.StackConstraint{}, err
	}

	minCount := 1
	if spec.MinCount != nil {
		minCount = *spec.MinCount
	}
	if minCount < 1 {
		return models.StackConstraint{}, utils.NewConfigError(name, "min_count must be at least 1, got %d", minCount)
	}
	if minCount > req.RosterSize() {
		return models.StackConstraint{}, utils.NewConfigError(name, "min_count %d exceeds roster size %d", minCount, req.RosterSize())
	}

	positions, err := models.ParsePositionList(spec.Positions)
	if err != nil {
		var cfgErr *utils.ConfigError
		if errors.As(err, &cfgErr) {
			return models.StackConstraint{}, utils.NewConfigError(name, "%s", cfgErr.Reason)
		}
		return models.StackConstraint{}, err
	}
	return models.StackConstraint{Team: team, Positions: positions, MinCount: minCount}, nil
}

func (b *constraintBuilder) players(i int, spec ConstraintSpec, lock bool) error {
	kind := KindAvoidPlayers
	if lock {
		kind = KindMustInclude
	}
	name := field(i, kind)
	if len(spec.Players) == 0 {
		return utils.NewConfigError(name, "players list is empty")
	}

	for _, raw := range spec.Players {
		player := strings.TrimSpace(raw)
		idx, ok := b.pool.Index(player)
		if !ok {
			return UnknownPlayerError(name, raw, b.pool)
		}
		if lock && b.avoided[idx] || !lock && b.locked[idx] {
			return utils.NewConfigError(name, "player %q is both locked and avoided", player)
		}

		rhs := 0.0
		if lock {
			rhs = 1
			b.locked[idx] = true
		} else {
			b.avoided[idx] = true
		}
		b.rows = append(b.rows, solver.Constraint{
			Name:  kind + "_" + player,
			Coefs: map[int]float64{idx: 1},
			Sense: solver.Equal,
			RHS:   rhs,
		})
	}
	return nil
}

func (b *constraintBuilder) avoidTeams(i int, spec ConstraintSpec) error {
	name := field(i, KindAvoidTeams)
	teams := spec.Teams
	if len(teams) == 0 && spec.TeamID != "" {
		teams = []string{spec.TeamID}
	}
	if len(teams) == 0 {
		return utils.NewConfigError(name, "teams list is empty")
	}

	for _, raw := range teams {
		team := strings.ToUpper(strings.TrimSpace(raw))
		if !containsString(b.pool.Teams(), team) {
			err := utils.NewConfigError(name, "team %q is not in the pool", raw)
			err.Suggestions = suggest(team, b.pool.Teams())
			return err
		}
		coefs := make(map[int]float64)
		for j := 0; j < b.pool.Len(); j++ {
			if b.pool.Player(j).Team == team {
				if b.locked[j] {
					return utils.NewConfigError(name, "team %s includes locked player %s", team, b.pool.Player(j).Name)
				}
				coefs[j] = 1
				b.avoided[j] = true
			}
		}
		b.rows = append(b.rows, solver.Constraint{
			Name:  "avoid_team_" + team,
			Coefs: coefs,
			Sense: solver.Equal,
			RHS:   0,
		})
	}
	return nil
}

// UnknownPlayerError reports a player name missing from pool, with the
// closest names as suggestions.
func UnknownPlayerError(field, name string, pool *models.Pool) *utils.ConfigError {
	err := utils.NewConfigError(field, "player %q is not in the pool", name)
	err.Suggestions = suggest(strings.TrimSpace(name), pool.Names())
	return err
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

const suggestionThreshold = 0.6

// suggest returns up to three candidates that look like a misspelling of target.
func suggest(target string, candidates []string) []string {
	type scored struct {
		name       string
		similarity float64
	}
	lower := strings.ToLower(target)
	var matches []scored
	for _, c := range candidates {
		cl := strings.ToLower(c)
		maxLen := len(lower)
		if len(cl) > maxLen {
			maxLen = len(cl)
		}
		if maxLen == 0 {
			continue
		}
		similarity := 1 - float64(fuzzy.LevenshteinDistance(lower, cl))/float64(maxLen)
		if similarity >= suggestionThreshold || fuzzy.MatchFold(target, c) {
			matches = append(matches, scored{c, similarity})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].similarity != matches[j].similarity {
			return matches[i].similarity > matches[j].similarity
		}
		return matches[i].name < matches[j].name
	})

	var out []string
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].name)
	}
	return out
}
