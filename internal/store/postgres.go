package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO ranking_runs (id, config_hash, candidate_count, excluded_count, result, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"get_run":    `SELECT id, config_hash, candidate_count, excluded_count, result, created_at FROM ranking_runs WHERE id = $1`,
	"delete_run": `DELETE FROM ranking_runs WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ranking_runs (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	config_hash     TEXT NOT NULL,
	candidate_count INTEGER NOT NULL DEFAULT 0,
	excluded_count  INTEGER NOT NULL DEFAULT 0,
	result          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ranking_runs_created_at ON ranking_runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_ranking_runs_config_hash ON ranking_runs(config_hash);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run, body, err := prepareRun(run)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ranking_runs (id, config_hash, candidate_count, excluded_count, result, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.ConfigHash, run.CandidateCount, run.ExcludedCount, body, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	var body []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, config_hash, candidate_count, excluded_count, result, created_at FROM ranking_runs WHERE id = $1`,
		id,
	).Scan(&r.ID, &r.ConfigHash, &r.CandidateCount, &r.ExcludedCount, &body, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "postgres: get run %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	if err := decodeBody(&r, body); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, config_hash, candidate_count, excluded_count, created_at FROM ranking_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ConfigHash != "" {
		query += fmt.Sprintf(` AND config_hash = $%d`, argIdx)
		args = append(args, filter.ConfigHash)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.ConfigHash, &r.CandidateCount, &r.ExcludedCount, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) DeleteRun(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ranking_runs WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrRunNotFound, "postgres: delete run %s", id)
	}
	return nil
}
