package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stitts-dev/dfs-lineup/internal/models"
	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/pkg/utils"
)

type Config struct {
	// Server
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// Database
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis
	RedisURL string        `mapstructure:"REDIS_URL"`
	CacheTTL time.Duration `mapstructure:"CACHE_TTL"`

	// CORS
	CorsOrigins []string `mapstructure:"CORS_ORIGINS"`

	// Rate limiting, per client IP
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Player pool source. A CSV path wins over a slate id.
	PoolCSVPath         string `mapstructure:"POOL_CSV_PATH"`
	PoolSlateID         uint   `mapstructure:"POOL_SLATE_ID"`
	PoolSite            string `mapstructure:"POOL_SITE"`
	PoolRefreshSchedule string `mapstructure:"POOL_REFRESH_SCHEDULE"`

	// Optimization
	SalaryCap            int      `mapstructure:"SALARY_CAP"`
	NumLineups           int      `mapstructure:"NUM_LINEUPS"`
	MaxLineups           int      `mapstructure:"MAX_LINEUPS"`
	FlexPositions        []string `mapstructure:"FLEX_POSITIONS"`
	PositionRequirements string   `mapstructure:"POSITION_REQUIREMENTS"`
	MinSalary            int      `mapstructure:"MIN_SALARY"`
	MaxSolves            int      `mapstructure:"MAX_SOLVES"`
	MaxExposure          float64  `mapstructure:"MAX_EXPOSURE"`
	OptimizationTimeout  int      `mapstructure:"OPTIMIZATION_TIMEOUT"`
	SolverMaxNodes       int      `mapstructure:"SOLVER_MAX_NODES"`

	// Salary utilization pass
	SalaryUtilizationEnabled   bool    `mapstructure:"SALARY_UTILIZATION_ENABLED"`
	SalaryUtilizationThreshold int     `mapstructure:"SALARY_UTILIZATION_THRESHOLD"`
	SalaryUtilizationTolerance float64 `mapstructure:"SALARY_UTILIZATION_TOLERANCE"`
}

// LoadConfig reads .env from the given directories (default "." and ".."),
// then the environment, over built-in defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if len(paths) == 0 {
		paths = []string{".", ".."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Set defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("CACHE_TTL", "15m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 5)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("POOL_CSV_PATH", "")
	v.SetDefault("POOL_SLATE_ID", 0)
	v.SetDefault("POOL_SITE", "draftkings")
	v.SetDefault("POOL_REFRESH_SCHEDULE", "@every 15m")

	v.SetDefault("SALARY_CAP", models.DefaultSalaryCap)
	v.SetDefault("NUM_LINEUPS", 1)
	v.SetDefault("MAX_LINEUPS", 150)
	v.SetDefault("FLEX_POSITIONS", "RB,WR,TE")
	v.SetDefault("POSITION_REQUIREMENTS", "QB:1,RB:2,WR:3,TE:1,DST:1,FLEX:1")
	v.SetDefault("MIN_SALARY", 0)
	v.SetDefault("MAX_SOLVES", 0) // one solve per requested lineup
	v.SetDefault("MAX_EXPOSURE", 1.0)
	v.SetDefault("OPTIMIZATION_TIMEOUT", 30) // seconds
	v.SetDefault("SOLVER_MAX_NODES", 20000)

	v.SetDefault("SALARY_UTILIZATION_ENABLED", false)
	v.SetDefault("SALARY_UTILIZATION_THRESHOLD", optimizer.DefaultUtilizationThreshold)
	v.SetDefault("SALARY_UTILIZATION_TOLERANCE", optimizer.DefaultUtilizationTolerance)

	// Read from environment
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Comma separated lists
	config.CorsOrigins = splitList(v.GetString("CORS_ORIGINS"))
	config.FlexPositions = splitList(v.GetString("FLEX_POSITIONS"))

	return &config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Requirement builds the roster shape from POSITION_REQUIREMENTS,
// FLEX_POSITIONS, SALARY_CAP and MIN_SALARY.
func (c *Config) Requirement() (models.LineupRequirement, error) {
	positions, flexCount, err := models.ParsePositionRequirements(c.PositionRequirements)
	if err != nil {
		return models.LineupRequirement{}, err
	}
	flex, err := models.ParsePositionList(c.FlexPositions)
	if err != nil {
		return models.LineupRequirement{}, err
	}
	req := models.LineupRequirement{
		Positions:     positions,
		FlexCount:     flexCount,
		FlexPositions: flex,
		SalaryCap:     c.SalaryCap,
		MinSalary:     c.MinSalary,
	}
	if err := req.Validate(); err != nil {
		return models.LineupRequirement{}, err
	}
	return req, nil
}

// OptimizerSettings turns the optimization keys into optimizer.Settings.
func (c *Config) OptimizerSettings() (optimizer.Settings, error) {
	req, err := c.Requirement()
	if err != nil {
		return optimizer.Settings{}, err
	}
	if c.MaxExposure <= 0 || c.MaxExposure > 1 {
		return optimizer.Settings{}, utils.NewConfigError("MAX_EXPOSURE", "must be in (0, 1], got %g", c.MaxExposure)
	}
	if c.MaxSolves < 0 {
		return optimizer.Settings{}, utils.NewConfigError("MAX_SOLVES", "must not be negative, got %d", c.MaxSolves)
	}
	if c.SalaryUtilizationTolerance < 0 {
		return optimizer.Settings{}, utils.NewConfigError("SALARY_UTILIZATION_TOLERANCE", "must not be negative, got %g", c.SalaryUtilizationTolerance)
	}

	return optimizer.Settings{
		Requirement: req,
		MaxSolves:   c.MaxSolves,
		MaxLineups:  c.MaxLineups,
		MaxExposure: c.MaxExposure,
		Timeout:     time.Duration(c.OptimizationTimeout) * time.Second,
		Utilization: optimizer.UtilizationSettings{
			Enabled:   c.SalaryUtilizationEnabled,
			Threshold: c.SalaryUtilizationThreshold,
			Tolerance: c.SalaryUtilizationTolerance,
		},
	}, nil
}
