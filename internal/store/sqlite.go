package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, eris.New("sqlite: database path is required")
	}
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ranking_runs (
	id              TEXT PRIMARY KEY,
	config_hash     TEXT NOT NULL,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	excluded_count  INTEGER NOT NULL DEFAULT 0,
	result          TEXT NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ranking_runs_created_at ON ranking_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_ranking_runs_config_hash ON ranking_runs(config_hash);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run, body, err := prepareRun(run)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ranking_runs (id, config_hash, candidate_count, excluded_count, result, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConfigHash, run.CandidateCount, run.ExcludedCount, string(body), run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	var body string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, config_hash, candidate_count, excluded_count, result, created_at FROM ranking_runs WHERE id = ?`,
		id,
	).Scan(&r.ID, &r.ConfigHash, &r.CandidateCount, &r.ExcludedCount, &body, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	if err := decodeBody(&r, []byte(body)); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, config_hash, candidate_count, excluded_count, created_at FROM ranking_runs WHERE 1=1`
	var args []any

	if filter.ConfigHash != "" {
		query += ` AND config_hash = ?`
		args = append(args, filter.ConfigHash)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, listLimit(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.ConfigHash, &r.CandidateCount, &r.ExcludedCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ranking_runs WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete run %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrRunNotFound, "sqlite: delete run %s", id)
	}
	return nil
}
