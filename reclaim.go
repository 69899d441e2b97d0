package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sudankdk/judge/internal/config"
)

var reclaimMaxAge time.Duration

var reclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Delete job artifacts older than the retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		maxAge := reclaimAge(a, reclaimMaxAge)
		stats, err := a.store.Reclaim(cmd.Context(), maxAge)
		fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, removed %d, failed %d (older than %s)\n",
			stats.Scanned, stats.Removed, stats.Failed, maxAge)
		return err
	},
}

// reclaimAge applies an explicit --max-age override, never going below the
// window that protects in-flight jobs.
func reclaimAge(a *app, override time.Duration) time.Duration {
	if override <= 0 {
		return a.retention
	}
	return max(override, config.MinRetention(a.registry.MaxBudget()))
}

func init() {
	rootCmd.AddCommand(reclaimCmd)
	reclaimCmd.Flags().DurationVar(&reclaimMaxAge, "max-age", 0, "override artifacts.retention")
}
