// Package extract turns unstructured SEC filing text into validated PSU
// price targets. The pattern library is deliberately permissive, with wide
// token windows between keyword and dollar amount favoring recall, and the
// validator is the correctness backstop that prunes the false positives.
package extract

import (
	"fmt"
	"regexp"
)

// Tier ranks how reliable a pattern is believed to be at identifying
// genuine price targets. Primary-tier patterns anchor on PSU-specific
// language; secondary-tier patterns are looser keyword matches.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
)

// Pattern is one compiled matcher in the library. Every capture group is a
// bare dollar amount (decimal digits, optional fractional part). The slice
// order returned by Library is significant: it is the tie-break consumed
// downstream when multiple patterns find the same value.
type Pattern struct {
	ID          string
	Tier        Tier
	Regexp      *regexp.Regexp
	Description string
}

// DefaultGapCap bounds the "any text" window between a keyword and the
// dollar amount. Keeping it to a few hundred characters prevents
// pathological backtracking on adversarial filing text.
const DefaultGapCap = 300

// amount matches a dollar figure without currency symbol or thousands
// separators, e.g. "7" or "7.00".
const amount = `\$(\d+(?:\.\d+)?)`

type patternSpec struct {
	id      string
	tier    Tier
	keyword string
	desc    string
}

var tieredSpecs = []patternSpec{
	{"psu", TierPrimary, `PSU`, "PSU followed by a dollar amount"},
	{"performance_stock_unit", TierPrimary, `performance\s+stock\s+unit`, "spelled-out PSU grant language"},
	{"performance_target", TierPrimary, `performance.{0,40}?target`, "performance target hurdle"},
	{"stock_price_target", TierPrimary, `stock\s+price\s+target`, "explicit stock price target"},
	{"price_target", TierPrimary, `price\s+target`, "generic price target"},
	{"performance_goal", TierPrimary, `performance\s+goal`, "performance goal hurdle"},
	{"vesting_target", TierPrimary, `vesting.{0,40}?target`, "vesting condition target"},

	{"performance", TierSecondary, `performance`, "bare performance keyword"},
	{"target", TierSecondary, `target`, "bare target keyword"},
	{"goal", TierSecondary, `goal`, "bare goal keyword"},
	{"hurdle", TierSecondary, `hurdle`, "bare hurdle keyword"},
}

// Library returns the ordered pattern list, primary tier first. gapCap
// bounds the intervening-text window; values <= 0 fall back to
// DefaultGapCap. The returned slice is freshly built each call, so callers
// cannot mutate shared state.
func Library(gapCap int) []Pattern {
	if gapCap <= 0 {
		gapCap = DefaultGapCap
	}
	gap := fmt.Sprintf(`.{0,%d}?`, gapCap)

	pats := make([]Pattern, 0, len(tieredSpecs))
	for _, s := range tieredSpecs {
		pats = append(pats, Pattern{
			ID:          s.id,
			Tier:        s.tier,
			Regexp:      regexp.MustCompile(`(?is)` + s.keyword + gap + amount),
			Description: s.desc,
		})
	}
	return pats
}

// RangeLibrary returns patterns for price ranges such as "$12.50 to
// $20.00". Each captured bound becomes its own candidate. Ranges are the
// most specific phrasing PSU vesting schedules use, so they carry the
// primary tier.
func RangeLibrary() []Pattern {
	specs := []struct {
		id   string
		expr string
		desc string
	}{
		{"range_ranging_from", `target.{0,60}?ranging?\s+from\s+` + amount + `\s+to\s+` + amount, "targets ranging from $X to $Y"},
		{"range_price_target", `price.{0,60}?target.{0,60}?` + amount + `\s+to\s+` + amount, "price target $X to $Y"},
		{"range_target", `target.{0,60}?` + amount + `\s+to\s+` + amount, "target $X to $Y"},
		{"range_from_to", `from\s+` + amount + `\s+to\s+` + amount, "from $X to $Y"},
		{"range_to", amount + `\s+to\s+` + amount, "$X to $Y"},
		{"range_dash", amount + `\s*-\s*` + amount, "$X - $Y"},
		{"range_between", `between\s+` + amount + `\s+and\s+` + amount, "between $X and $Y"},
	}

	pats := make([]Pattern, 0, len(specs))
	for _, s := range specs {
		pats = append(pats, Pattern{
			ID:          s.id,
			Tier:        TierPrimary,
			Regexp:      regexp.MustCompile(`(?is)` + s.expr),
			Description: s.desc,
		})
	}
	return pats
}
