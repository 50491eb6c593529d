package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

type Position string

const (
	PositionQB   Position = "QB"
	PositionRB   Position = "RB"
	PositionWR   Position = "WR"
	PositionTE   Position = "TE"
	PositionDST  Position = "DST"
	PositionFlex Position = "FLEX"
)

// Positions lists the playable positions in roster order.
var Positions = []Position{PositionQB, PositionRB, PositionWR, PositionTE, PositionDST}

// ParsePosition normalizes a raw position code. D/ST and DEF are accepted for DST.
func ParsePosition(raw string) (Position, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "QB":
		return PositionQB, true
	case "RB":
		return PositionRB, true
	case "WR":
		return PositionWR, true
	case "TE":
		return PositionTE, true
	case "DST", "D/ST", "DEF", "D":
		return PositionDST, true
	}
	return "", false
}

type PlayerRecord struct {
	Name            string   `json:"name"`
	Position        Position `json:"position"`
	Team            string   `json:"team"`
	Salary          int      `json:"salary"`
	ProjectedPoints float64  `json:"projected_points"`
}

// Value is projected points per $1000 of salary.
func (p PlayerRecord) Value() float64 {
	if p.Salary == 0 {
		return 0
	}
	return p.ProjectedPoints / float64(p.Salary) * 1000
}

// Pool is an immutable snapshot of the players available for a slate.
// Players are kept sorted by name so index i is a stable decision variable.
type Pool struct {
	ID       string
	LoadedAt time.Time
	players  []PlayerRecord
	byName   map[string]int
}

// NewPool sorts the records by name and indexes them. Callers must have
// rejected duplicate names already; a duplicate here returns an error.
func NewPool(records []PlayerRecord) (*Pool, error) {
	players := make([]PlayerRecord, len(records))
	copy(players, records)
	sort.SliceStable(players, func(i, j int) bool { return players[i].Name < players[j].Name })

	byName := make(map[string]int, len(players))
	h := sha256.New()
	for i, p := range players {
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate player %q", p.Name)
		}
		byName[p.Name] = i
		fmt.Fprintf(h, "%s|%s|%s|%d|%g\n", p.Name, p.Position, p.Team, p.Salary, p.ProjectedPoints)
	}

	return &Pool{
		ID:       hex.EncodeToString(h.Sum(nil))[:16],
		LoadedAt: time.Now().UTC(),
		players:  players,
		byName:   byName,
	}, nil
}

func (p *Pool) Len() int { return len(p.players) }

func (p *Pool) Player(i int) PlayerRecord { return p.players[i] }

// Players returns a copy of the records in variable order.
func (p *Pool) Players() []PlayerRecord {
	out := make([]PlayerRecord, len(p.players))
	copy(out, p.players)
	return out
}

func (p *Pool) Index(name string) (int, bool) {
	i, ok := p.byName[name]
	return i, ok
}

func (p *Pool) Names() []string {
	names := make([]string, len(p.players))
	for i, pl := range p.players {
		names[i] = pl.Name
	}
	return names
}

func (p *Pool) CountByPosition() map[Position]int {
	counts := make(map[Position]int)
	for _, pl := range p.players {
		counts[pl.Position]++
	}
	return counts
}

// Teams returns the distinct team codes in the pool, sorted.
func (p *Pool) Teams() []string {
	seen := make(map[string]bool)
	var teams []string
	for _, pl := range p.players {
		if !seen[pl.Team] {
			seen[pl.Team] = true
			teams = append(teams, pl.Team)
		}
	}
	sort.Strings(teams)
	return teams
}
