package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/internal/pool"
	"github.com/stitts-dev/dfs-lineup/internal/solver"
	"github.com/stitts-dev/dfs-lineup/pkg/config"
)

type optimizeOptions struct {
	poolPath          string
	constraintsPath   string
	lineups           int
	salaryCap         int
	maxExposure       float64
	salaryUtilization bool
	jsonOutput        bool
}

func newOptimizeCmd(newLogger func() *logrus.Logger) *cobra.Command {
	var opts optimizeOptions

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Generate distinct lineups ranked by projected points",
		Long: `Generate up to --lineups distinct lineups from a player pool CSV.

Examples:
  lineupctl optimize --pool players.csv
  lineupctl optimize --pool players.csv --lineups 20 --constraints stacks.yaml
  lineupctl optimize --pool players.csv --lineups 5 --max-exposure 0.6 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd, opts, newLogger())
		},
	}

	cmd.Flags().StringVar(&opts.poolPath, "pool", "", "Player pool CSV (required)")
	cmd.Flags().StringVar(&opts.constraintsPath, "constraints", "", "YAML file with a list of constraints")
	cmd.Flags().IntVarP(&opts.lineups, "lineups", "n", 0, "Number of lineups (default NUM_LINEUPS)")
	cmd.Flags().IntVar(&opts.salaryCap, "salary-cap", 0, "Override the salary cap")
	cmd.Flags().Float64Var(&opts.maxExposure, "max-exposure", 0, "Max share of lineups any player may appear in, (0, 1]")
	cmd.Flags().BoolVar(&opts.salaryUtilization, "salary-utilization", false, "Spend leftover cap on near-equal upgrades")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Write JSON instead of a table")
	_ = cmd.MarkFlagRequired("pool")

	return cmd
}

func runOptimize(cmd *cobra.Command, opts optimizeOptions, log *logrus.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings, err := cfg.OptimizerSettings()
	if err != nil {
		return err
	}

	p, err := pool.LoadCSVFile(opts.poolPath)
	if err != nil {
		return err
	}

	specs, err := loadConstraints(opts.constraintsPath)
	if err != nil {
		return err
	}

	opt, err := optimizer.New(solver.NewBranchAndBound(cfg.SolverMaxNodes, log), settings, log)
	if err != nil {
		return err
	}

	req := optimizer.Request{
		NumLineups:  opts.lineups,
		Constraints: specs,
		SalaryCap:   opts.salaryCap,
		MaxExposure: opts.maxExposure,
	}
	if req.NumLineups == 0 {
		req.NumLineups = cfg.NumLineups
	}
	if cmd.Flags().Changed("salary-utilization") {
		req.SalaryUtilization = &opts.salaryUtilization
	}

	batch, err := opt.Optimize(cmd.Context(), p, req)
	if err != nil {
		return err
	}

	view := optimizer.FormatBatch(batch, opt.Requirement(req).SalaryCap)
	if opts.jsonOutput {
		return optimizer.WriteJSON(cmd.OutOrStdout(), view)
	}
	return optimizer.WriteTable(cmd.OutOrStdout(), view)
}

// loadConstraints reads a YAML list of constraints. An empty path means none.
func loadConstraints(path string) ([]optimizer.ConstraintSpec, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read constraints: %w", err)
	}
	var specs []optimizer.ConstraintSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse constraints %s: %w", path, err)
	}
	return specs, nil
}
