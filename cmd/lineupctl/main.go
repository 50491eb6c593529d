package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stitts-dev/dfs-lineup/pkg/logger"
)

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "lineupctl",
		Short: "NFL DFS lineup optimizer",
		Long: `lineupctl builds salary-capped NFL lineups from a projections CSV.

Settings such as SALARY_CAP, POSITION_REQUIREMENTS and MAX_EXPOSURE are read
from .env and the environment, the same keys the server uses.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log optimizer progress to stderr")

	newLogger := func() *logrus.Logger {
		if verbose {
			// stdout is reserved for results
			log := logger.InitLogger("debug", true)
			log.SetOutput(os.Stderr)
			return log
		}
		return logger.Discard()
	}

	root.AddCommand(newOptimizeCmd(newLogger), newValidatePoolCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
