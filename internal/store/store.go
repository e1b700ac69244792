// Package store persists ranking runs in SQLite or Postgres.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nonprofit-ranker/internal/config"
	"github.com/sells-group/nonprofit-ranker/internal/model"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = eris.New("run not found")

// DefaultListLimit caps ListRuns when the filter sets no limit.
const DefaultListLimit = 100

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	ConfigHash string `json:"config_hash,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for ranking runs.
type Store interface {
	// SaveRun assigns an ID and creation time to run and stores it.
	SaveRun(ctx context.Context, run model.Run) (*model.Run, error)
	// GetRun returns a run with its candidates.
	GetRun(ctx context.Context, id string) (*model.Run, error)
	// ListRuns returns run summaries, newest first, without candidates.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured backend and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// runBody is the JSON document stored alongside a run's summary columns.
type runBody struct {
	Candidates []model.RankedCandidate `json:"candidates"`
	Excluded   []model.Exclusion       `json:"excluded,omitempty"`
}

// prepareRun fills the generated fields of a run and encodes its body.
func prepareRun(run model.Run) (model.Run, []byte, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.CandidateCount = len(run.Candidates)
	run.ExcludedCount = len(run.Excluded)

	body, err := json.Marshal(runBody{Candidates: run.Candidates, Excluded: run.Excluded})
	if err != nil {
		return run, nil, eris.Wrap(err, "store: marshal run")
	}
	return run, body, nil
}

func decodeBody(run *model.Run, body []byte) error {
	var b runBody
	if err := json.Unmarshal(body, &b); err != nil {
		return eris.Wrapf(err, "store: unmarshal run %s", run.ID)
	}
	run.Candidates = b.Candidates
	run.Excluded = b.Excluded
	return nil
}

func listLimit(filter RunFilter) int {
	if filter.Limit <= 0 {
		return DefaultListLimit
	}
	return filter.Limit
}
