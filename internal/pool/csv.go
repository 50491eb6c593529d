// Package pool loads NFL player pools from CSV files, in-memory rows or the
// projections database.
package pool

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

const (
	ColName     = "player_name"
	ColPosition = "player_position_id"
	ColTeam     = "player_team_id"
	ColPoints   = "projected_points"
	ColSalary   = "salary"
)

// columnAliases maps accepted header spellings to the canonical column.
var columnAliases = map[string]string{
	"player_name":        ColName,
	"name":               ColName,
	"player_position_id": ColPosition,
	"position":           ColPosition,
	"player_team_id":     ColTeam,
	"team":               ColTeam,
	"projected_points":   ColPoints,
	"projection":         ColPoints,
	"salary":             ColSalary,
}

var requiredColumns = []string{ColName, ColPosition, ColTeam, ColPoints, ColSalary}

// Row is one raw pool record before validation. Values are kept as text so
// CSV and API inputs go through the same checks.
type Row struct {
	Name            string `json:"player_name" binding:"required"`
	Position        string `json:"player_position_id" binding:"required"`
	Team            string `json:"player_team_id" binding:"required"`
	ProjectedPoints string `json:"projected_points" binding:"required"`
	Salary          string `json:"salary" binding:"required"`
}

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string) (*models.Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV parses a player pool. Headers are case-insensitive and extra
// columns are ignored.
func LoadCSV(r io.Reader) (*models.Pool, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, utils.NewDataError(0, "", "empty file")
	}
	if err != nil {
		return nil, utils.NewDataError(1, "", "unreadable header: %v", err)
	}

	index := make(map[string]int)
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if canon, ok := columnAliases[key]; ok {
			if _, seen := index[canon]; !seen {
				index[canon] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, utils.NewDataError(1, col, "missing required column")
		}
	}

	var (
		rows  []Row
		lines []int
	)
	line := 1
	for {
		rec, err := reader.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, utils.NewDataError(line, "", "malformed record: %v", err)
		}
		if blank(rec) {
			continue
		}
		get := func(col string) string {
			if i := index[col]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		rows = append(rows, Row{
			Name:            get(ColName),
			Position:        get(ColPosition),
			Team:            get(ColTeam),
			ProjectedPoints: get(ColPoints),
			Salary:          get(ColSalary),
		})
		lines = append(lines, line)
	}

	return fromRows(rows, lines)
}

// FromRows validates in-memory rows, numbering them from 1.
func FromRows(rows []Row) (*models.Pool, error) {
	lines := make([]int, len(rows))
	for i := range lines {
		lines[i] = i + 1
	}
	return fromRows(rows, lines)
}

func fromRows(rows []Row, lines []int) (*models.Pool, error) {
	if len(rows) == 0 {
		return nil, utils.NewDataError(0, "", "pool has no players")
	}

	records := make([]models.PlayerRecord, 0, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		n := lines[i]
		rec, err := parseRow(row, n)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[rec.Name]; dup {
			return nil, utils.NewDataError(n, ColName, "duplicate player %q (first seen at row %d)", rec.Name, prev)
		}
		seen[rec.Name] = n
		records = append(records, rec)
	}

	pool, err := models.NewPool(records)
	if err != nil {
		return nil, utils.NewDataError(0, "", "%v", err)
	}
	return pool, nil
}

func parseRow(row Row, n int) (models.PlayerRecord, error) {
	name := strings.TrimSpace(row.Name)
	if name == "" {
		return models.PlayerRecord{}, utils.NewDataError(n, ColName, "empty player name")
	}

	pos, ok := models.ParsePosition(row.Position)
	if !ok {
		return models.PlayerRecord{}, utils.NewDataError(n, ColPosition, "unknown position %q", row.Position)
	}

	team := strings.ToUpper(strings.TrimSpace(row.Team))
	if team == "" {
		return models.PlayerRecord{}, utils.NewDataError(n, ColTeam, "empty team for %s", name)
	}

	salary, err := ParseSalary(row.Salary)
	if err != nil {
		return models.PlayerRecord{}, utils.NewDataError(n, ColSalary, "%v", err)
	}
	if salary <= 0 {
		return models.PlayerRecord{}, utils.NewDataError(n, ColSalary, "salary must be positive, got %d", salary)
	}

	points, err := strconv.ParseFloat(strings.TrimSpace(row.ProjectedPoints), 64)
	if err != nil || math.IsNaN(points) || math.IsInf(points, 0) {
		return models.PlayerRecord{}, utils.NewDataError(n, ColPoints, "not a number: %q", row.ProjectedPoints)
	}
	if points < 0 {
		return models.PlayerRecord{}, utils.NewDataError(n, ColPoints, "negative projection %g", points)
	}

	return models.PlayerRecord{
		Name:            name,
		Position:        pos,
		Team:            team,
		Salary:          salary,
		ProjectedPoints: points,
	}, nil
}

// MaxSalary bounds a single player's salary.
const MaxSalary = 1_000_000

// ParseSalary accepts plain integers and display forms such as "$4,500".
// Magnitudes above MaxSalary are rejected.
func ParseSalary(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty salary")
	}
	if v, err := strconv.Atoi(s); err == nil {
		if v > MaxSalary || v < -MaxSalary {
			return 0, fmt.Errorf("salary %d exceeds the maximum of %d", v, MaxSalary)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole-dollar salary: %q", raw)
	}
	if math.Abs(f) > MaxSalary {
		return 0, fmt.Errorf("salary %q exceeds the maximum of %d", raw, MaxSalary)
	}
	return int(f), nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
