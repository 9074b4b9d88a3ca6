package extract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ido77/tarot-capital/internal/model"
)

func vt(v string, tier Tier, id string) ValidatedTarget {
	return ValidatedTarget{Value: decimal.RequireFromString(v), Tier: tier, PatternID: id}
}

func TestDedupEpsilon(t *testing.T) {
	unique := Dedup([]ValidatedTarget{
		vt("7.00", TierPrimary, "psu"),
		vt("7.0", TierSecondary, "target"),
		vt("7.004", TierSecondary, "goal"),
	})
	require.Len(t, unique, 1)
	assert.Equal(t, TierPrimary, unique[0].Tier)
}

func TestSameTargetBoundary(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"identical", "10.00", "10.00", true},
		{"sub-cent apart", "10.00", "10.004", true},
		{"exactly one cent apart", "10.00", "10.01", false},
		{"well apart", "10.00", "12.50", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := decimal.RequireFromString(tc.a)
			b := decimal.RequireFromString(tc.b)
			assert.Equal(t, tc.same, SameTarget(a, b))
			assert.Equal(t, tc.same, SameTarget(b, a))
		})
	}
}

func TestDedupPrimaryWinsAttribution(t *testing.T) {
	unique := Dedup([]ValidatedTarget{
		vt("7.00", TierSecondary, "target"),
		vt("7.00", TierPrimary, "psu"),
	})
	require.Len(t, unique, 1)
	assert.Equal(t, TierPrimary, unique[0].Tier)
	assert.Equal(t, "psu", unique[0].PatternID)
}

func TestDedupSortsAscending(t *testing.T) {
	unique := Dedup([]ValidatedTarget{
		vt("20.00", TierPrimary, "psu"),
		vt("7.00", TierPrimary, "psu"),
		vt("15.00", TierPrimary, "psu"),
	})
	require.Len(t, unique, 3)
	assert.True(t, unique[0].Value.LessThan(unique[1].Value))
	assert.True(t, unique[1].Value.LessThan(unique[2].Value))
}

func TestAggregateUpside(t *testing.T) {
	price := decimal.NewFromFloat(3.50)
	targets := []ValidatedTarget{
		vt("7.00", TierPrimary, "psu"),
		vt("10.00", TierPrimary, "psu"),
		vt("15.00", TierPrimary, "psu"),
		vt("20.00", TierPrimary, "psu"),
	}

	now := time.Now()
	res := Aggregate(targets, model.FilingMeta{Ticker: "HROW", Source: model.SourceProxy, FilingDate: &now}, price)

	require.Len(t, res.Targets, 4)
	require.NotNil(t, res.NearestTargetUpside)
	require.NotNil(t, res.HighestTargetUpside)
	assert.InDelta(t, 100.0, *res.NearestTargetUpside, 0.001)
	assert.InDelta(t, 471.43, *res.HighestTargetUpside, 0.01)
	assert.Equal(t, model.SourceProxy, res.FilingSource)
}

func TestAggregateEmpty(t *testing.T) {
	res := Aggregate(nil, model.FilingMeta{Ticker: "TH"}, decimal.NewFromInt(5))
	assert.Empty(t, res.Targets)
	assert.Nil(t, res.NearestTargetUpside)
	assert.Nil(t, res.HighestTargetUpside)
	assert.Empty(t, res.FilingSource)
	assert.Equal(t, "TH", res.Ticker)
}

func TestSelectSourcePrecedence(t *testing.T) {
	primary := []ValidatedTarget{vt("10.00", TierPrimary, "psu")}
	secondary := []ValidatedTarget{vt("12.00", TierPrimary, "psu")}

	got, source := SelectSource(primary, secondary)
	assert.Equal(t, model.SourceProxy, source)
	require.Len(t, got, 1)
	assert.True(t, got[0].Value.Equal(decimal.NewFromInt(10)))

	got, source = SelectSource(nil, secondary)
	assert.Equal(t, model.SourceInsider, source)
	require.Len(t, got, 1)
	assert.True(t, got[0].Value.Equal(decimal.NewFromInt(12)))
}
