package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/dfs-lineup/internal/optimizer"
	"github.com/stitts-dev/dfs-lineup/internal/pool"
	"github.com/stitts-dev/dfs-lineup/pkg/config"
)

func newValidatePoolCmd() *cobra.Command {
	var poolPath string

	cmd := &cobra.Command{
		Use:   "validate-pool",
		Short: "Check that a pool CSV parses and can fill a roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			settings, err := cfg.OptimizerSettings()
			if err != nil {
				return err
			}

			p, err := pool.LoadCSVFile(poolPath)
			if err != nil {
				return err
			}

			model, err := optimizer.NewLineupModel(settings.Requirement)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pool %s: %d players, %d teams\n", p.ID, p.Len(), len(p.Teams()))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			counts := p.CountByPosition()
			for _, pos := range settings.Requirement.SortedPositions() {
				fmt.Fprintf(w, "%s\t%d\tneed %d\n", pos, counts[pos], settings.Requirement.Positions[pos])
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if err := model.CheckPool(p); err != nil {
				return err
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&poolPath, "pool", "", "Player pool CSV (required)")
	_ = cmd.MarkFlagRequired("pool")
	return cmd
}
