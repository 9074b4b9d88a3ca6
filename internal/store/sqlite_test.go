package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ido77/tarot-capital/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func targetResult(ticker string, upside float64) *model.Result {
	return &model.Result{
		Ticker:              ticker,
		CurrentPrice:        decimal.NewFromFloat(3.50),
		Targets:             []decimal.Decimal{decimal.NewFromInt(7)},
		FilingSource:        model.SourceProxy,
		NearestTargetUpside: &upside,
		HighestTargetUpside: &upside,
		ExtractedAt:         time.Now().UTC(),
	}
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"ABEO", "ACHV", "ADIL"})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.Equal(t, 3, run.Tickers)

	stats := model.RunStats{Processed: 3, WithTargets: 1, Empty: 2}
	require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunStatusCompleted, stats))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, 3, got.Stats.Processed)
	assert.Equal(t, 1, got.Stats.WithTargets)
}

func TestSQLiteStore_CompleteRun_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	err := s.CompleteRun(context.Background(), "no-such-run", model.RunStatusCompleted, model.RunStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLiteStore_LatestRun(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.CreateRun(ctx, []string{"ABEO"})
	require.NoError(t, err)
	// Second run gets a later started_at.
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateRun(ctx, []string{"ACHV", "ADIL"})
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestSQLiteStore_SaveAndGetResult(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"ABEO"})
	require.NoError(t, err)

	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("ABEO", 100.0)))

	got, err := s.GetResult(ctx, "ABEO")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ABEO", got.Ticker)
	require.Len(t, got.Targets, 1)
	assert.True(t, got.Targets[0].Equal(decimal.NewFromInt(7)))
	require.NotNil(t, got.HighestTargetUpside)
	assert.InDelta(t, 100.0, *got.HighestTargetUpside, 0.001)
}

func TestSQLiteStore_GetResult_Missing(t *testing.T) {
	s := newTestSQLite(t)

	got, err := s.GetResult(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_SaveResult_Upsert(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"ABEO"})
	require.NoError(t, err)

	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("ABEO", 50.0)))
	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("ABEO", 120.0)))

	results, err := s.ListResults(ctx, ResultFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 120.0, *results[0].HighestTargetUpside, 0.001)
}

func TestSQLiteStore_ListResults_FilterAndOrder(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"AAA", "BBB", "CCC"})
	require.NoError(t, err)

	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("AAA", 45.0)))
	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("BBB", 150.0)))
	require.NoError(t, s.SaveResult(ctx, run.ID, &model.Result{
		Ticker:       "CCC",
		CurrentPrice: decimal.NewFromInt(10),
		ExtractedAt:  time.Now().UTC(),
	}))

	all, err := s.ListResults(ctx, ResultFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Highest upside first.
	assert.Equal(t, "BBB", all[0].Ticker)
	assert.Equal(t, "AAA", all[1].Ticker)

	high, err := s.ListResults(ctx, ResultFilter{RunID: run.ID, MinUpside: 100})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, "BBB", high[0].Ticker)

	withTargets, err := s.ListResults(ctx, ResultFilter{RunID: run.ID, Status: model.ResultStatusTargets})
	require.NoError(t, err)
	assert.Len(t, withTargets, 2)
}

func TestSQLiteStore_ProcessedTickers(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"AAA", "BBB"})
	require.NoError(t, err)
	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("AAA", 60.0)))

	processed, err := s.ProcessedTickers(ctx, run.ID)
	require.NoError(t, err)
	assert.True(t, processed["AAA"])
	assert.False(t, processed["BBB"])
}

func TestSQLiteStore_Stats(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, []string{"AAA", "BBB", "CCC", "DDD"})
	require.NoError(t, err)

	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("AAA", 45.0)))
	require.NoError(t, s.SaveResult(ctx, run.ID, targetResult("BBB", 150.0)))
	require.NoError(t, s.SaveResult(ctx, run.ID, &model.Result{
		Ticker:       "CCC",
		CurrentPrice: decimal.NewFromInt(10),
		ExtractedAt:  time.Now().UTC(),
	}))
	require.NoError(t, s.SaveResult(ctx, run.ID, &model.Result{
		Ticker:          "DDD",
		RejectionReason: "price lookup failed",
		ExtractedAt:     time.Now().UTC(),
	}))

	stats, err := s.Stats(ctx, run.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 2, stats.WithTargets)
	assert.Equal(t, 1, stats.Empty)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 2, stats.HighUpside)
}

func TestResultStatus(t *testing.T) {
	up := 80.0
	tests := []struct {
		name   string
		result *model.Result
		want   model.ResultStatus
	}{
		{
			name: "targets",
			result: &model.Result{
				Ticker:              "AAA",
				CurrentPrice:        decimal.NewFromInt(5),
				Targets:             []decimal.Decimal{decimal.NewFromInt(9)},
				HighestTargetUpside: &up,
			},
			want: model.ResultStatusTargets,
		},
		{
			name: "no targets",
			result: &model.Result{
				Ticker:       "BBB",
				CurrentPrice: decimal.NewFromInt(5),
			},
			want: model.ResultStatusNoTargets,
		},
		{
			name: "rejected but priced",
			result: &model.Result{
				Ticker:          "CCC",
				CurrentPrice:    decimal.NewFromInt(5),
				RejectionReason: "below minimum unique targets",
			},
			want: model.ResultStatusNoTargets,
		},
		{
			name: "price failure",
			result: &model.Result{
				Ticker:          "DDD",
				RejectionReason: "price lookup failed",
			},
			want: model.ResultStatusError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultStatus(tt.result))
		})
	}
}
