package optimizer

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"github.com/stitts-dev/dfs-lineup/internal/models"
)

type PlayerView struct {
	Slot            string  `json:"slot"`
	Name            string  `json:"name"`
	Position        string  `json:"position"`
	Team            string  `json:"team"`
	ProjectedPoints float64 `json:"projected_points"`
	Salary          int     `json:"salary"`
}

type LineupView struct {
	Rank            int          `json:"rank"`
	TotalPoints     float64      `json:"total_points"`
	TotalSalary     int          `json:"total_salary"`
	RemainingSalary int          `json:"remaining_salary"`
	SalaryAdjusted  bool         `json:"salary_adjusted,omitempty"`
	Correlation     float64      `json:"correlation"`
	Players         []PlayerView `json:"players"`
}

type BatchView struct {
	BatchID    string       `json:"batch_id"`
	PoolID     string       `json:"pool_id,omitempty"`
	Requested  int          `json:"requested"`
	Produced   int          `json:"produced"`
	Shortfall  int          `json:"shortfall"`
	StopReason string       `json:"stop_reason"`
	Solves     int          `json:"solves"`
	ElapsedMs  int64        `json:"elapsed_ms"`
	Warning    string       `json:"warning,omitempty"`
	Lineups    []LineupView `json:"lineups"`
}

// FormatLineup renders one slotted lineup. Rank is 1-based.
func FormatLineup(l *models.Lineup, rank, salaryCap int) LineupView {
	view := LineupView{
		Rank:            rank,
		TotalPoints:     round2(l.ProjectedPoints),
		TotalSalary:     l.TotalSalary,
		RemainingSalary: salaryCap - l.TotalSalary,
		SalaryAdjusted:  l.SalaryAdjusted,
		Correlation:     round2(l.Correlation()),
		Players:         make([]PlayerView, 0, len(l.Slots)),
	}
	for _, s := range l.Slots {
		view.Players = append(view.Players, PlayerView{
			Slot:            s.Slot,
			Name:            s.Player.Name,
			Position:        string(s.Player.Position),
			Team:            s.Player.Team,
			ProjectedPoints: s.Player.ProjectedPoints,
			Salary:          s.Player.Salary,
		})
	}
	return view
}

// FormatBatch renders a batch whose lineups are already sorted and slotted.
func FormatBatch(b *models.LineupBatch, salaryCap int) BatchView {
	view := BatchView{
		BatchID:    b.BatchID,
		PoolID:     b.PoolID,
		Requested:  b.Requested,
		Produced:   b.Produced,
		Shortfall:  b.Shortfall,
		StopReason: string(b.StopReason),
		Solves:     b.Solves,
		ElapsedMs:  b.Elapsed.Milliseconds(),
		Warning:    b.Warning,
		Lineups:    make([]LineupView, 0, len(b.Lineups)),
	}
	for i, l := range b.Lineups {
		view.Lineups = append(view.Lineups, FormatLineup(l, i+1, salaryCap))
	}
	return view
}

func WriteJSON(w io.Writer, view BatchView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

// WriteTable prints lineups as aligned text for terminals.
func WriteTable(w io.Writer, view BatchView) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, l := range view.Lineups {
		fmt.Fprintf(tw, "Lineup %d\t%.2f pts\t$%d\t($%d left)\tcorr %.2f\n", l.Rank, l.TotalPoints, l.TotalSalary, l.RemainingSalary, l.Correlation)
		for _, p := range l.Players {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%.2f\t$%d\n", p.Slot, p.Name, p.Team, p.ProjectedPoints, p.Salary)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "%d of %d lineups (%s, %d solves, %dms)\n", view.Produced, view.Requested, view.StopReason, view.Solves, view.ElapsedMs)
	if view.Warning != "" {
		fmt.Fprintf(tw, "warning: %s\n", view.Warning)
	}
	return tw.Flush()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
