package pool

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

const validCSV = `Player_Name,Player_Position_ID,Team,Projected_Points,Salary,Extra
Josh Allen,QB,buf,24.1,"$8,200",x
Stefon Diggs,WR,BUF,18.3,7800,x
Bills,D/ST,BUF,7.5,3200,x
`

func TestLoadCSV_Valid(t *testing.T) {
	pool, err := LoadCSV(strings.NewReader(validCSV))
	require.NoError(t, err)
	require.Equal(t, 3, pool.Len())

	idx, ok := pool.Index("Josh Allen")
	require.True(t, ok)
	allen := pool.Player(idx)
	assert.Equal(t, models.PositionQB, allen.Position)
	assert.Equal(t, "BUF", allen.Team)
	assert.Equal(t, 8200, allen.Salary)
	assert.InDelta(t, 24.1, allen.ProjectedPoints, 1e-9)

	idx, _ = pool.Index("Bills")
	assert.Equal(t, models.PositionDST, pool.Player(idx).Position)
}

func TestLoadCSV_SkipsBlankLines(t *testing.T) {
	csv := "player_name,player_position_id,player_team_id,projected_points,salary\n" +
		"A,QB,KC,20,7000\n" +
		",,,,\n" +
		"B,RB,KC,15,6000\n"
	pool, err := LoadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Len())
}

func TestLoadCSV_DataErrors(t *testing.T) {
	header := "player_name,player_position_id,player_team_id,projected_points,salary\n"
	tests := []struct {
		name   string
		input  string
		row    int
		column string
	}{
		{"empty file", "", 0, ""},
		{"missing column", "player_name,player_position_id,projected_points,salary\nA,QB,20,7000\n", 1, ColTeam},
		{"non numeric salary", header + "A,QB,KC,20,lots\n", 2, ColSalary},
		{"negative salary", header + "A,QB,KC,20,-100\n", 2, ColSalary},
		{"zero salary", header + "A,QB,KC,20,0\n", 2, ColSalary},
		{"exponent salary", header + "A,QB,KC,20,1e30\n", 2, ColSalary},
		{"overflowing salary", header + "A,QB,KC,20,9e18\n", 2, ColSalary},
		{"integer salary above max", header + "A,QB,KC,20,9000000000000000000\n", 2, ColSalary},
		{"non numeric points", header + "A,QB,KC,abc,7000\n", 2, ColPoints},
		{"negative points", header + "A,QB,KC,-1,7000\n", 2, ColPoints},
		{"unknown position", header + "A,K,KC,8,4000\n", 2, ColPosition},
		{"empty name", header + " ,QB,KC,8,4000\n", 2, ColName},
		{"duplicate name", header + "A,QB,KC,20,7000\nA,RB,KC,10,5000\n", 3, ColName},
		{"no players", header, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.input))
			var dataErr *utils.DataError
			require.True(t, errors.As(err, &dataErr), "expected DataError, got %v", err)
			assert.Equal(t, tt.row, dataErr.Row)
			assert.Equal(t, tt.column, dataErr.Column)
		})
	}
}

func TestParseSalary(t *testing.T) {
	tests := map[string]int{
		"4500":    4500,
		"$4,500":  4500,
		" 3200 ":  3200,
		"5000.0":  5000,
		"$10,000": 10000,
	}
	for raw, want := range tests {
		got, err := ParseSalary(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	got, err := ParseSalary("1e6")
	require.NoError(t, err)
	assert.Equal(t, MaxSalary, got)

	for _, bad := range []string{"", "$", "45.5", "abc", "1e30", "9e18", "-1e30", "Inf", "NaN", "1000001", "$1,000,001"} {
		_, err := ParseSalary(bad)
		assert.Error(t, err, bad)
	}
}

func TestFromRows(t *testing.T) {
	pool, err := FromRows([]Row{
		{Name: "A", Position: "QB", Team: "kc", ProjectedPoints: "20.5", Salary: "7000"},
		{Name: "B", Position: "DEF", Team: "KC", ProjectedPoints: "6", Salary: "$2,800"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"KC"}, pool.Teams())

	_, err = FromRows([]Row{{Name: "A", Position: "QB", Team: "KC", ProjectedPoints: "x", Salary: "7000"}})
	assert.ErrorIs(t, err, utils.ErrInvalidData)
}
