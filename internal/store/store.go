package store

import (
	"context"

	"github.com/Ido77/tarot-capital/internal/model"
)

// ResultFilter specifies criteria for listing extraction results.
type ResultFilter struct {
	RunID     string             `json:"run_id,omitempty"`
	Status    model.ResultStatus `json:"status,omitempty"`
	MinUpside float64            `json:"min_upside,omitempty"`
	Limit     int                `json:"limit,omitempty"`
	Offset    int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for extraction runs and results.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, tickers []string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)

	// Results
	SaveResult(ctx context.Context, runID string, result *model.Result) error
	GetResult(ctx context.Context, ticker string) (*model.Result, error)
	ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error)
	ProcessedTickers(ctx context.Context, runID string) (map[string]bool, error)
	Stats(ctx context.Context, runID string, highUpsidePct float64) (*model.RunStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
