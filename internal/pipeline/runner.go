// Package pipeline orchestrates price-target extraction for tickers: price
// lookup, filing retrieval, text extraction, validation, and aggregation.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ido77/tarot-capital/internal/config"
	"github.com/Ido77/tarot-capital/internal/extract"
	"github.com/Ido77/tarot-capital/internal/fetcher"
	"github.com/Ido77/tarot-capital/internal/filing"
	"github.com/Ido77/tarot-capital/internal/model"
	"github.com/Ido77/tarot-capital/pkg/ninjas"
)

// Runner executes the extraction pipeline for single tickers.
type Runner struct {
	cfg    *config.Config
	market ninjas.Client
	fetch  fetcher.Fetcher
	core   extract.Config
	tiered []extract.Pattern
	ranges []extract.Pattern
}

// New creates a Runner with its market data and download collaborators.
func New(cfg *config.Config, market ninjas.Client, fetch fetcher.Fetcher) *Runner {
	core := cfg.Extract.Core()
	return &Runner{
		cfg:    cfg,
		market: market,
		fetch:  fetch,
		core:   core,
		tiered: extract.Library(core.GapCap),
		ranges: extract.RangeLibrary(),
	}
}

// sourceScan accumulates what one filing class (proxy or insider)
// contributed for a ticker.
type sourceScan struct {
	targets  []extract.ValidatedTarget
	snippets []model.Snippet
	analyzed []model.FilingAnalysis
	latest   *time.Time
}

// Run extracts price targets for one ticker. Failures that mean "no data",
// such as price lookup or filing retrieval errors, produce a Result with an
// empty target set and a rejection reason rather than an error. The returned
// error covers invalid input and context cancellation.
func (r *Runner) Run(ctx context.Context, ticker string) (*model.Result, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, eris.New("pipeline: ticker is required")
	}
	log := zap.L().With(zap.String("ticker", ticker))
	log.Info("pipeline: starting extraction")

	price, err := r.market.StockPrice(ctx, ticker)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("pipeline: price lookup failed", zap.Error(err))
		return &model.Result{
			Ticker:          ticker,
			RejectionReason: "price lookup failed",
			ExtractedAt:     time.Now().UTC(),
		}, nil
	}
	if price.Sign() <= 0 {
		log.Warn("pipeline: non-positive price", zap.String("price", price.String()))
		return &model.Result{
			Ticker:          ticker,
			RejectionReason: "no valid market price",
			ExtractedAt:     time.Now().UTC(),
		}, nil
	}

	// Proxy statements first; insider filings only as fallback.
	primary, err := r.scanForm(ctx, ticker, "DEF14A", price)
	if err != nil {
		return nil, err
	}
	var secondary *sourceScan
	if len(primary.targets) == 0 {
		secondary, err = r.scanForm(ctx, ticker, "4", price)
		if err != nil {
			return nil, err
		}
	} else {
		secondary = &sourceScan{}
	}

	targets, source := extract.SelectSource(primary.targets, secondary.targets)
	winner := primary
	if source == model.SourceInsider {
		winner = secondary
	}

	result := extract.Aggregate(targets, model.FilingMeta{
		Ticker:     ticker,
		Source:     source,
		FilingDate: winner.latest,
	}, price)

	result.FilingsAnalyzed = append(primary.analyzed, secondary.analyzed...)

	if len(result.Targets) > 0 && len(result.Targets) < r.core.MinUniqueTargets {
		log.Info("pipeline: below minimum unique targets",
			zap.Int("found", len(result.Targets)),
			zap.Int("required", r.core.MinUniqueTargets))
		result.Targets = nil
		result.NearestTargetUpside = nil
		result.HighestTargetUpside = nil
		result.FilingSource = ""
		result.FilingDate = nil
		result.RejectionReason = "below minimum unique targets"
		return &result, nil
	}

	result.Snippets = matchSnippets(winner.snippets, result.Targets)

	if result.HasTargets() {
		log.Info("pipeline: targets found",
			zap.Int("targets", len(result.Targets)),
			zap.String("source", string(result.FilingSource)),
			zap.Float64p("nearest_upside", result.NearestTargetUpside),
			zap.Float64p("highest_upside", result.HighestTargetUpside))
	} else {
		log.Info("pipeline: no targets survived validation")
	}
	return &result, nil
}

// scanForm retrieves and scans every filing of one form type within the
// lookback window. Retrieval failure is logged and yields an empty scan.
func (r *Runner) scanForm(ctx context.Context, ticker, form string, price decimal.Decimal) (*sourceScan, error) {
	log := zap.L().With(zap.String("ticker", ticker), zap.String("form", form))

	end := time.Now().UTC()
	start := end.AddDate(0, -r.cfg.Extract.MonthsBack, 0)

	filings, err := r.market.Filings(ctx, ninjas.FilingQuery{
		Ticker: ticker,
		Form:   form,
		Start:  start,
		End:    end,
		Limit:  r.cfg.Extract.MaxFilings,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("pipeline: filing search failed", zap.Error(err))
		return &sourceScan{}, nil
	}
	log.Debug("pipeline: filings retrieved", zap.Int("count", len(filings)))

	scan := &sourceScan{}
	for _, f := range filings {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		targets, snippets := r.scanFiling(ctx, f, price)
		if len(targets) == 0 {
			continue
		}
		scan.targets = append(scan.targets, targets...)
		scan.snippets = append(scan.snippets, snippets...)
		scan.analyzed = append(scan.analyzed, model.FilingAnalysis{
			FilingDate:   f.Date(),
			FormType:     f.FormType,
			URL:          f.FilingURL,
			TargetsFound: len(targets),
		})
		if d := f.Date(); !d.IsZero() && (scan.latest == nil || d.After(*scan.latest)) {
			dd := d
			scan.latest = &dd
		}
	}
	return scan, nil
}

// scanFiling downloads one filing and extracts validated targets from its
// PSU sections. Download and parse failures skip the filing.
func (r *Runner) scanFiling(ctx context.Context, f ninjas.Filing, price decimal.Decimal) ([]extract.ValidatedTarget, []model.Snippet) {
	log := zap.L().With(zap.String("ticker", f.Ticker), zap.String("url", f.FilingURL))

	body, err := r.fetch.DownloadString(ctx, f.FilingURL)
	if err != nil {
		log.Warn("pipeline: filing download failed", zap.Error(err))
		return nil, nil
	}

	text, err := filing.Text(strings.NewReader(body))
	if err != nil {
		log.Warn("pipeline: filing parse failed", zap.Error(err))
		return nil, nil
	}

	var targets []extract.ValidatedTarget
	var snippets []model.Snippet
	for _, section := range extract.Sections(text) {
		// Range expressions carry both bounds; only when a section has
		// none do the single-amount patterns get a look.
		cands := extract.Extract(section, r.ranges)
		if len(cands) == 0 {
			cands = extract.Extract(section, r.tiered)
		}
		valid, err := extract.Validate(cands, price, r.core)
		if err != nil {
			// Only the price precondition can fail, and price was
			// checked upstream.
			log.Warn("pipeline: validation failed", zap.Error(err))
			return nil, nil
		}
		targets = append(targets, valid...)
		snippets = append(snippets, candidateSnippets(cands, valid, f)...)
	}
	return targets, snippets
}

// candidateSnippets keeps the audit span of each candidate whose value
// survived validation.
func candidateSnippets(cands []extract.Candidate, valid []extract.ValidatedTarget, f ninjas.Filing) []model.Snippet {
	kept := make(map[string]bool, len(valid))
	for _, v := range valid {
		kept[v.Value.String()] = true
	}
	var out []model.Snippet
	for _, c := range cands {
		if !kept[c.Value.String()] {
			continue
		}
		out = append(out, model.Snippet{
			FilingDate: f.Date(),
			FilingURL:  f.FilingURL,
			Target:     c.Value,
			Context:    c.Span,
		})
	}
	return out
}

// matchSnippets filters collected snippets down to the final deduplicated
// target set, using the same tolerance dedup uses to collapse values.
func matchSnippets(snippets []model.Snippet, targets []decimal.Decimal) []model.Snippet {
	if len(targets) == 0 {
		return nil
	}
	var out []model.Snippet
	for _, s := range snippets {
		for _, t := range targets {
			if extract.SameTarget(s.Target, t) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}
