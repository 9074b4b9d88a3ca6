package extract

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ido77/tarot-capital/internal/model"
)

// epsilon is the value-dedup tolerance: targets closer than one cent are
// the same target regardless of which pattern produced them.
var epsilon = decimal.NewFromFloat(0.01)

// SameTarget reports whether two extracted values fall within the dedup
// tolerance and so count as one target. Values exactly one cent apart are
// distinct.
func SameTarget(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(epsilon)
}

// Aggregate deduplicates and sorts validated targets and computes the
// derived upside metrics. When tiers disagree on the same value, the
// primary tier wins attribution; within a tier, the earlier pattern in the
// library order wins. An empty target set yields a result with nil upside
// fields; callers decide whether to suppress such tickers.
func Aggregate(targets []ValidatedTarget, meta model.FilingMeta, currentPrice decimal.Decimal) model.Result {
	res := model.Result{
		Ticker:       meta.Ticker,
		CurrentPrice: currentPrice,
		ExtractedAt:  time.Now().UTC(),
	}

	unique := Dedup(targets)
	if len(unique) == 0 {
		return res
	}

	res.FilingSource = meta.Source
	res.FilingDate = meta.FilingDate
	res.Targets = make([]decimal.Decimal, 0, len(unique))
	for _, t := range unique {
		res.Targets = append(res.Targets, t.Value)
	}

	nearest, _ := UpsidePct(res.Targets[0], currentPrice).Float64()
	highest, _ := UpsidePct(res.Targets[len(res.Targets)-1], currentPrice).Float64()
	res.NearestTargetUpside = &nearest
	res.HighestTargetUpside = &highest

	return res
}

// Dedup collapses targets within epsilon of each other into single entries
// sorted ascending by value. Attribution of a collapsed entry prefers the
// primary tier; ties keep the first-seen pattern, which is the earlier one
// in library order since extraction preserves it.
func Dedup(targets []ValidatedTarget) []ValidatedTarget {
	var unique []ValidatedTarget
	for _, t := range targets {
		merged := false
		for i := range unique {
			if SameTarget(t.Value, unique[i].Value) {
				if unique[i].Tier != TierPrimary && t.Tier == TierPrimary {
					unique[i].Tier = t.Tier
					unique[i].PatternID = t.PatternID
				}
				merged = true
				break
			}
		}
		if !merged {
			unique = append(unique, t)
		}
	}

	sort.Slice(unique, func(i, j int) bool {
		return unique[i].Value.LessThan(unique[j].Value)
	})
	return unique
}

// SelectSource applies filing-source precedence: primary-source targets
// win whenever the primary yielded any validated target; the secondary
// source is a fallback only.
func SelectSource(primary, secondary []ValidatedTarget) ([]ValidatedTarget, model.Source) {
	if len(primary) > 0 {
		return primary, model.SourceProxy
	}
	return secondary, model.SourceInsider
}
