package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Ido77/tarot-capital/internal/pipeline"
	"github.com/Ido77/tarot-capital/internal/store"
)

var (
	batchFile   string
	batchResume bool
	batchFormat string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Extract price targets for a ticker list",
	Long:  "Processes every ticker in the given file, persisting results as they complete. An interrupted batch resumes with --resume. Results export as JSON plus an optional CSV or XLSX ranking.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		tickers, err := loadTickers(batchFile)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r, err := initRunner()
		if err != nil {
			return err
		}

		run, err := r.RunBatch(ctx, st, tickers, batchResume)
		if err != nil {
			return err
		}

		results, err := st.ListResults(ctx, store.ResultFilter{RunID: run.ID})
		if err != nil {
			return eris.Wrap(err, "list results")
		}

		if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
			return eris.Wrap(err, "create output dir")
		}
		stamp := time.Now().UTC().Format("20060102_150405")

		jsonPath := filepath.Join(cfg.Output.Dir, fmt.Sprintf("targets_%s.json", stamp))
		if err := pipeline.ExportJSON(results, cfg.Extract.HighUpsidePct, jsonPath); err != nil {
			return err
		}
		zap.L().Info("batch: exported", zap.String("path", jsonPath))

		switch batchFormat {
		case "csv":
			p := filepath.Join(cfg.Output.Dir, fmt.Sprintf("targets_%s.csv", stamp))
			if err := pipeline.ExportCSV(results, p); err != nil {
				return err
			}
			zap.L().Info("batch: exported", zap.String("path", p))
		case "xlsx":
			p := filepath.Join(cfg.Output.Dir, fmt.Sprintf("targets_%s.xlsx", stamp))
			if err := pipeline.ExportXLSX(results, cfg.Extract.HighUpsidePct, p); err != nil {
				return err
			}
			zap.L().Info("batch: exported", zap.String("path", p))
		case "":
		default:
			return eris.Errorf("unsupported format: %s", batchFormat)
		}

		p := message.NewPrinter(language.English)
		p.Printf("processed %d tickers: %d with targets, %d high upside, %d errors\n",
			run.Stats.Processed, run.Stats.WithTargets, run.Stats.HighUpside, run.Stats.Errors)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "tickers", "", "ticker list file (.txt or .yaml watchlist)")
	batchCmd.Flags().BoolVar(&batchResume, "resume", false, "resume the latest interrupted run")
	batchCmd.Flags().StringVar(&batchFormat, "format", "", "extra export format: csv or xlsx")
	batchCmd.MarkFlagRequired("tickers")
	rootCmd.AddCommand(batchCmd)
}
