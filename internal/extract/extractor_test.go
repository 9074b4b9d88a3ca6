package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractParsesDecimal(t *testing.T) {
	cands := Extract("PSUs will vest upon the Company's stock price reaching $7.00", Library(0))
	require.NotEmpty(t, cands)

	for _, c := range cands {
		assert.True(t, c.Value.Equal(decimal.RequireFromString("7.00")),
			"pattern %s parsed %s", c.PatternID, c.Raw)
	}
}

func TestExtractMultiplePatternsKeepProvenance(t *testing.T) {
	// "target" appears for both a primary and a secondary pattern; both
	// matches are kept; dedup is not the extractor's job.
	text := "the stock price target of $12.50 must be sustained"
	cands := Extract(text, Library(0))

	ids := map[string]bool{}
	for _, c := range cands {
		ids[c.PatternID] = true
	}
	assert.True(t, ids["stock_price_target"], "primary pattern should match")
	assert.True(t, ids["target"], "secondary pattern should also match")
}

func TestExtractSpansLineBreaks(t *testing.T) {
	text := "performance stock units shall vest when the price\nreaches or exceeds $15.00 per share"
	cands := Extract(text, Library(0))
	require.NotEmpty(t, cands)
	assert.True(t, cands[0].Value.Equal(decimal.NewFromInt(15)))
}

func TestExtractNoKeywordPairing(t *testing.T) {
	text := "the company reported revenue of $5 million last quarter"
	var primary []Pattern
	for _, p := range Library(0) {
		if p.Tier == TierPrimary {
			primary = append(primary, p)
		}
	}
	assert.Empty(t, Extract(text, primary))
}

func TestExtractRangeYieldsBothBounds(t *testing.T) {
	text := "vesting targets ranging from $12.50 to $20.00 per share"
	cands := Extract(text, RangeLibrary())
	require.NotEmpty(t, cands)

	values := map[string]bool{}
	for _, c := range cands {
		values[c.Value.StringFixed(2)] = true
	}
	assert.True(t, values["12.50"])
	assert.True(t, values["20.00"])
}

func TestExtractOverlappingMatchesKept(t *testing.T) {
	text := "target of $10.00 and a further target of $10.00"
	cands := Extract(text, []Pattern{Library(0)[0]})
	// Same pattern, no PSU keyword: zero candidates is correct for this pattern.
	assert.Empty(t, cands)

	var targetPat Pattern
	for _, p := range Library(0) {
		if p.ID == "target" {
			targetPat = p
		}
	}
	cands = Extract(text, []Pattern{targetPat})
	assert.Len(t, cands, 2)
}

func TestExtractSpanAudit(t *testing.T) {
	text := "long preamble here; the PSU award vests at $9.00 per share; trailing text"
	cands := Extract(text, Library(0))
	require.NotEmpty(t, cands)
	assert.Contains(t, cands[0].Span, "$9.00")
	assert.Contains(t, cands[0].Span, "PSU")
}

func TestExtractPure(t *testing.T) {
	text := "PSU hurdle at $8.00"
	pats := Library(0)
	a := Extract(text, pats)
	b := Extract(text, pats)
	assert.Equal(t, a, b)
}
