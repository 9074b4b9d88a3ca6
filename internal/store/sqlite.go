package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/Ido77/tarot-capital/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'running',
	tickers    INTEGER NOT NULL DEFAULT 0,
	stats      TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	ticker       TEXT NOT NULL,
	status       TEXT NOT NULL,
	best_upside  REAL,
	result       TEXT NOT NULL,
	extracted_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, ticker)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_results_ticker ON results(ticker);
CREATE INDEX IF NOT EXISTS idx_results_status ON results(status);
CREATE INDEX IF NOT EXISTS idx_results_upside ON results(best_upside);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, tickers []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, tickers, started_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(model.RunStatusRunning), len(tickers), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusRunning,
		Tickers:   len(tickers),
		StartedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, updated_at = ? WHERE id = ?`,
		string(status), string(statsJSON), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, tickers, stats, started_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, tickers, stats, started_at, updated_at FROM runs ORDER BY started_at DESC LIMIT 1`,
	)
	return scanRun(row)
}

func (s *SQLiteStore) SaveResult(ctx context.Context, runID string, result *model.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	var upside any
	if result.HighestTargetUpside != nil {
		upside = *result.HighestTargetUpside
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, ticker, status, best_upside, result, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, ticker) DO UPDATE SET
		   status = excluded.status,
		   best_upside = excluded.best_upside,
		   result = excluded.result,
		   extracted_at = excluded.extracted_at`,
		runID, result.Ticker, string(resultStatus(result)), upside, string(resultJSON), result.ExtractedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save result %s", result.Ticker)
}

func (s *SQLiteStore) GetResult(ctx context.Context, ticker string) (*model.Result, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT result FROM results WHERE ticker = ? ORDER BY extracted_at DESC LIMIT 1`,
		ticker,
	)
	var resultJSON string
	if err := row.Scan(&resultJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get result %s", ticker)
	}
	var r model.Result
	if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", ticker)
	}
	return &r, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.Result, error) {
	query := `SELECT result FROM results WHERE 1=1`
	var args []any
	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinUpside > 0 {
		query += ` AND best_upside >= ?`
		args = append(args, filter.MinUpside)
	}
	query += ` ORDER BY best_upside DESC, ticker ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		var r model.Result
		if err := json.Unmarshal([]byte(resultJSON), &r); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
		results = append(results, r)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate results")
}

func (s *SQLiteStore) ProcessedTickers(ctx context.Context, runID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker FROM results WHERE run_id = ?`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: processed tickers")
	}
	defer rows.Close()

	processed := make(map[string]bool)
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ticker")
		}
		processed[ticker] = true
	}
	return processed, eris.Wrap(rows.Err(), "sqlite: iterate tickers")
}

func (s *SQLiteStore) Stats(ctx context.Context, runID string, highUpsidePct float64) (*model.RunStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'targets'),
			COUNT(*) FILTER (WHERE status = 'no_targets'),
			COUNT(*) FILTER (WHERE status = 'error'),
			COUNT(*) FILTER (WHERE best_upside >= ?)
		FROM results WHERE run_id = ?`,
		highUpsidePct, runID,
	)
	var st model.RunStats
	if err := row.Scan(&st.Processed, &st.WithTargets, &st.Empty, &st.Errors, &st.HighUpside); err != nil {
		return nil, eris.Wrapf(err, "sqlite: stats %s", runID)
	}
	return &st, nil
}

// helpers

func resultStatus(r *model.Result) model.ResultStatus {
	switch {
	case r.RejectionReason != "" && !r.HasTargets() && r.CurrentPrice.IsZero():
		return model.ResultStatusError
	case r.HasTargets():
		return model.ResultStatusTargets
	default:
		return model.ResultStatusNoTargets
	}
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON sql.NullString

	err := row.Scan(&r.ID, &r.Status, &r.Tickers, &statsJSON, &r.StartedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	if statsJSON.Valid && statsJSON.String != "" {
		var st model.RunStats
		if err := json.Unmarshal([]byte(statsJSON.String), &st); err != nil {
			return nil, eris.Wrap(err, "unmarshal run stats")
		}
		r.Stats = &st
	}
	return &r, nil
}
