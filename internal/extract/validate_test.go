package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cand(v string) Candidate {
	return Candidate{Raw: v, Value: decimal.RequireFromString(v), PatternID: "psu", Tier: TierPrimary}
}

func TestValidateThresholdBoundaryInclusive(t *testing.T) {
	price := decimal.NewFromInt(10)
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		value    string
		included bool
	}{
		{"exactly 50% upside included", "15.00", true},
		{"40% upside excluded", "14.00", false},
		{"100% upside included", "20.00", true},
		{"negative upside excluded", "8.00", false},
		{"equal to price excluded", "10.00", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate([]Candidate{cand(tt.value)}, price, cfg)
			require.NoError(t, err)
			if tt.included {
				require.Len(t, got, 1)
				assert.True(t, got[0].Value.Equal(decimal.RequireFromString(tt.value)))
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestValidatePlausibilityCeiling(t *testing.T) {
	price := decimal.NewFromFloat(3.50)
	cfg := DefaultConfig()

	// 50x ceiling is 175.00: inclusive at the boundary, a misparsed year
	// like 2024 is rejected.
	got, err := Validate([]Candidate{cand("175.00"), cand("175.01"), cand("2024")}, price, cfg)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Value.Equal(decimal.NewFromInt(175)))
}

func TestValidateZeroValueExcluded(t *testing.T) {
	got, err := Validate([]Candidate{cand("0")}, decimal.NewFromInt(10), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestValidateInvalidPrice(t *testing.T) {
	for _, price := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-3)} {
		_, err := Validate([]Candidate{cand("7.00")}, price, DefaultConfig())
		assert.ErrorIs(t, err, ErrInvalidPrice)
	}
}

func TestValidateIdempotent(t *testing.T) {
	price := decimal.NewFromFloat(3.50)
	cands := []Candidate{cand("7.00"), cand("2.00"), cand("500.00"), cand("10.00")}

	first, err := Validate(cands, price, DefaultConfig())
	require.NoError(t, err)
	second, err := Validate(cands, price, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidateNeverErrorsOnCandidates(t *testing.T) {
	// Implausible candidates are excluded silently, never propagated.
	cands := []Candidate{cand("0"), cand("999999"), cand("1.00")}
	got, err := Validate(cands, decimal.NewFromInt(100), DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, got)
}
