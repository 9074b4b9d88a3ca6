package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Ido77/tarot-capital/internal/model"
	"github.com/Ido77/tarot-capital/internal/store"
)

// RunBatch processes a ticker list concurrently, persisting each result as
// it completes so an interrupted batch can resume. With resume set, tickers
// already saved under the latest run are skipped and new results land in
// that run. The returned Run carries the final stats.
func (r *Runner) RunBatch(ctx context.Context, st store.Store, tickers []string, resume bool) (*model.Run, error) {
	normalized := make([]string, 0, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		normalized = append(normalized, t)
	}
	if len(normalized) == 0 {
		return nil, eris.New("pipeline: no tickers to process")
	}

	var run *model.Run
	processed := map[string]bool{}
	if resume {
		latest, err := st.LatestRun(ctx)
		if err == nil && latest != nil && latest.Status == model.RunStatusRunning {
			run = latest
			processed, err = st.ProcessedTickers(ctx, run.ID)
			if err != nil {
				return nil, eris.Wrap(err, "pipeline: load processed tickers")
			}
		}
	}
	if run == nil {
		created, err := st.CreateRun(ctx, normalized)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		run = created
	}

	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: batch starting",
		zap.Int("tickers", len(normalized)),
		zap.Int("already_processed", len(processed)),
		zap.Int("concurrency", r.cfg.Batch.MaxConcurrentTickers))

	var mu sync.Mutex
	done := len(processed)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Batch.MaxConcurrentTickers)
	for _, ticker := range normalized {
		if processed[ticker] {
			continue
		}
		g.Go(func() error {
			result, err := r.Run(gCtx, ticker)
			if err != nil {
				return err
			}
			if err := st.SaveResult(gCtx, run.ID, result); err != nil {
				return eris.Wrapf(err, "pipeline: save result %s", ticker)
			}
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			log.Info("pipeline: ticker done",
				zap.String("ticker", ticker),
				zap.Int("progress", n),
				zap.Int("total", len(normalized)))
			return nil
		})
	}

	runErr := g.Wait()

	// Stats reflect whatever was persisted, even on a failed batch.
	stats, statsErr := st.Stats(ctx, run.ID, r.cfg.Extract.HighUpsidePct)
	if statsErr != nil {
		stats = &model.RunStats{}
	}

	status := model.RunStatusCompleted
	if runErr != nil {
		status = model.RunStatusFailed
	}
	if err := st.CompleteRun(ctx, run.ID, status, *stats); err != nil {
		log.Warn("pipeline: complete run failed", zap.Error(err))
	}

	run.Status = status
	run.Stats = stats
	if runErr != nil {
		return run, eris.Wrap(runErr, "pipeline: batch")
	}
	log.Info("pipeline: batch complete",
		zap.Int("processed", stats.Processed),
		zap.Int("with_targets", stats.WithTargets),
		zap.Int("high_upside", stats.HighUpside))
	return run, nil
}
