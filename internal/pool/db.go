package pool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

type DimPlayer struct {
	PlayerID         uint   `gorm:"column:player_id;primaryKey"`
	PlayerName       string `gorm:"column:player_name;not null"`
	PlayerPositionID string `gorm:"column:player_position_id;not null"`
	PlayerTeamID     string `gorm:"column:player_team_id;not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (DimPlayer) TableName() string { return "dim_player" }

type DimSlate struct {
	SlateID   uint      `gorm:"column:slate_id;primaryKey"`
	SlateDate time.Time `gorm:"column:slate_date;not null"`
	SlateType string    `gorm:"column:slate_type;not null"`
	Site      string    `gorm:"column:site;not null"`
	CreatedAt time.Time
}

func (DimSlate) TableName() string { return "dim_slate" }

type FProjectionRaw struct {
	ProjectionID    uint    `gorm:"column:projection_id;primaryKey"`
	PlayerID        uint    `gorm:"column:player_id;not null;index"`
	SlateID         uint    `gorm:"column:slate_id;not null;index"`
	ProjectedPoints float64 `gorm:"column:projected_points;not null"`
	Source          string  `gorm:"column:source;not null"`
	CreatedAt       time.Time
}

func (FProjectionRaw) TableName() string { return "f_projection_raw" }

type FSalaryRaw struct {
	SalaryID  uint    `gorm:"column:salary_id;primaryKey"`
	PlayerID  uint    `gorm:"column:player_id;not null;index"`
	SlateID   uint    `gorm:"column:slate_id;not null;index"`
	Salary    float64 `gorm:"column:salary;not null"`
	CreatedAt time.Time
}

func (FSalaryRaw) TableName() string { return "f_salary_raw" }

// Migrate creates the projection tables. Production schemas are managed
// outside this service; tests and local sqlite setups use this.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DimPlayer{}, &DimSlate{}, &FProjectionRaw{}, &FSalaryRaw{})
}

// DBSource reads a slate's pool from the projections database.
type DBSource struct {
	db *gorm.DB
}

func NewDBSource(db *gorm.DB) *DBSource {
	return &DBSource{db: db}
}

type slateRow struct {
	PlayerName       string
	PlayerPositionID string
	PlayerTeamID     string
	ProjectedPoints  float64
	Salary           float64
}

// Load builds the pool for slateID. When several sources project the same
// player their projections are averaged. Players without a salary on the
// slate are skipped.
func (s *DBSource) Load(ctx context.Context, slateID uint) (*models.Pool, error) {
	var rows []slateRow
	err := s.db.WithContext(ctx).
		Table("dim_player AS p").
		Select(`p.player_name, p.player_position_id, p.player_team_id,
			AVG(pr.projected_points) AS projected_points, MAX(sa.salary) AS salary`).
		Joins("JOIN f_projection_raw pr ON pr.player_id = p.player_id AND pr.slate_id = ?", slateID).
		Joins("JOIN f_salary_raw sa ON sa.player_id = p.player_id AND sa.slate_id = ?", slateID).
		Group("p.player_id, p.player_name, p.player_position_id, p.player_team_id").
		Order("p.player_name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query slate %d: %w", slateID, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("slate %d: %w", slateID, utils.ErrNotFound)
	}

	raw := make([]Row, len(rows))
	for i, r := range rows {
		raw[i] = Row{
			Name:            r.PlayerName,
			Position:        r.PlayerPositionID,
			Team:            r.PlayerTeamID,
			ProjectedPoints: strconv.FormatFloat(r.ProjectedPoints, 'f', -1, 64),
			Salary:          strconv.FormatFloat(r.Salary, 'f', -1, 64),
		}
	}
	return FromRows(raw)
}

// LatestSlate returns the most recent slate for a site.
func (s *DBSource) LatestSlate(ctx context.Context, site string) (uint, error) {
	var slate DimSlate
	err := s.db.WithContext(ctx).
		Where("site = ?", site).
		Order("slate_date DESC, slate_id DESC").
		First(&slate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("no slate for site %q: %w", site, utils.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find latest slate: %w", err)
	}
	return slate.SlateID, nil
}
