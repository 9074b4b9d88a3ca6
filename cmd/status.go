package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ido77/tarot-capital/internal/model"
	"github.com/Ido77/tarot-capital/internal/store"
)

var statusRunID string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress of the latest or a specific run",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		var run *model.Run
		if statusRunID != "" {
			run, err = st.GetRun(ctx, statusRunID)
		} else {
			run, err = st.LatestRun(ctx)
		}
		if err != nil {
			return err
		}

		stats, err := st.Stats(ctx, run.ID, cfg.Extract.HighUpsidePct)
		if err != nil {
			return err
		}

		fmt.Printf("run %s (%s), started %s\n", run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  processed:    %d / %d\n", stats.Processed, run.Tickers)
		fmt.Printf("  with targets: %d\n", stats.WithTargets)
		fmt.Printf("  no targets:   %d\n", stats.Empty)
		fmt.Printf("  errors:       %d\n", stats.Errors)
		fmt.Printf("  high upside:  %d (>= %.0f%%)\n", stats.HighUpside, cfg.Extract.HighUpsidePct)
		if stats.Processed > 0 {
			fmt.Printf("  hit rate:     %.1f%%\n", 100*float64(stats.WithTargets)/float64(stats.Processed))
		}

		top, err := st.ListResults(ctx, store.ResultFilter{
			RunID:  run.ID,
			Status: model.ResultStatusTargets,
			Limit:  5,
		})
		if err != nil {
			return err
		}
		if len(top) > 0 {
			fmt.Println("  top upside:")
			for _, r := range top {
				fmt.Printf("    %-6s $%s -> %s (%.1f%%)\n",
					r.Ticker, r.CurrentPrice.StringFixed(2),
					r.Targets[len(r.Targets)-1].StringFixed(2), *r.HighestTargetUpside)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusRunID, "run-id", "", "run to inspect (default latest)")
	rootCmd.AddCommand(statusCmd)
}
