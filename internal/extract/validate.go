package extract

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned when a caller supplies a non-positive
// current price. This is a precondition violation, not extraction noise.
var ErrInvalidPrice = eris.New("extract: current price must be positive")

// Config bundles the plausibility thresholds. It is passed by value into
// each pipeline call so the core functions stay pure and independently
// testable.
type Config struct {
	// MinUpsidePct is the minimum upside over the current price, in
	// percent, for a candidate to count as a meaningful target. The
	// boundary is inclusive.
	MinUpsidePct decimal.Decimal

	// MaxPlausibleMultiple caps targets at this multiple of the current
	// price, guarding against misparsed years and share counts.
	MaxPlausibleMultiple decimal.Decimal

	// MinUniqueTargets is the minimum number of unique validated targets
	// a result must carry; below it the aggregator reports a rejection.
	MinUniqueTargets int

	// GapCap bounds the pattern library's intervening-text window.
	GapCap int
}

// DefaultConfig returns the standard thresholds: 50% minimum upside, 50x
// plausibility ceiling, a single target suffices.
func DefaultConfig() Config {
	return Config{
		MinUpsidePct:         decimal.NewFromInt(50),
		MaxPlausibleMultiple: decimal.NewFromInt(50),
		MinUniqueTargets:     1,
		GapCap:               DefaultGapCap,
	}
}

// ValidatedTarget is a candidate that survived plausibility filtering.
type ValidatedTarget struct {
	Value     decimal.Decimal
	Tier      Tier
	PatternID string
}

var hundred = decimal.NewFromInt(100)

// Validate filters candidates against the plausibility rules. Rules apply
// independently per candidate and never raise for a failing candidate:
// implausible extractions are noise to drop, not errors to propagate. The
// only error is the currentPrice precondition.
func Validate(cands []Candidate, currentPrice decimal.Decimal, cfg Config) ([]ValidatedTarget, error) {
	if currentPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}

	ceiling := currentPrice.Mul(cfg.MaxPlausibleMultiple)

	var out []ValidatedTarget
	for _, c := range cands {
		if c.Value.Sign() <= 0 {
			continue
		}
		if c.Value.GreaterThan(ceiling) {
			continue
		}
		if UpsidePct(c.Value, currentPrice).LessThan(cfg.MinUpsidePct) {
			continue
		}
		out = append(out, ValidatedTarget{
			Value:     c.Value,
			Tier:      c.Tier,
			PatternID: c.PatternID,
		})
	}
	return out, nil
}

// UpsidePct returns the percentage increase from price to target.
func UpsidePct(target, price decimal.Decimal) decimal.Decimal {
	return target.Sub(price).Div(price).Mul(hundred)
}
