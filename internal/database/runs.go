package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS collection_runs (
	id          UUID PRIMARY KEY,
	status      TEXT NOT NULL,
	logged_in   BOOLEAN NOT NULL DEFAULT FALSE,
	attempts    INTEGER NOT NULL DEFAULT 0,
	salvaged    BOOLEAN NOT NULL DEFAULT FALSE,
	country     TEXT,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS collection_attempt_failures (
	run_id  UUID NOT NULL REFERENCES collection_runs(id) ON DELETE CASCADE,
	attempt INTEGER NOT NULL,
	step    TEXT NOT NULL,
	error   TEXT NOT NULL,
	PRIMARY KEY (run_id, attempt)
);`

// RunRecord is one collection run as stored in collection_runs.
type RunRecord struct {
	ID         uuid.UUID  `db:"id"`
	Status     string     `db:"status"`
	LoggedIn   bool       `db:"logged_in"`
	Attempts   int        `db:"attempts"`
	Salvaged   bool       `db:"salvaged"`
	Country    *string    `db:"country"`
	Error      *string    `db:"error"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
	Failures   []AttemptRecord
}

// AttemptRecord is the step that ended one failed attempt.
type AttemptRecord struct {
	Attempt int    `db:"attempt"`
	Step    string `db:"step"`
	Error   string `db:"error"`
}

// RunRepository writes run history. Nothing in the collector reads it back.
type RunRepository struct {
	pool Pool
}

func NewRunRepository(pool Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

func (r *RunRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create run tables: %w", err)
	}
	return nil
}

// Save upserts the run and replaces its failure rows.
func (r *RunRepository) Save(ctx context.Context, run *RunRecord) error {
	if run.ID == uuid.Nil {
		return fmt.Errorf("run id is required")
	}

	return WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO collection_runs (
				id, status, logged_in, attempts, salvaged,
				country, error, started_at, finished_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				logged_in = EXCLUDED.logged_in,
				attempts = EXCLUDED.attempts,
				salvaged = EXCLUDED.salvaged,
				country = EXCLUDED.country,
				error = EXCLUDED.error,
				finished_at = EXCLUDED.finished_at`

		_, err := tx.Exec(ctx, query,
			run.ID, run.Status, run.LoggedIn, run.Attempts, run.Salvaged,
			run.Country, run.Error, run.StartedAt, run.FinishedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM collection_attempt_failures WHERE run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("failed to clear attempt failures: %w", err)
		}

		for _, f := range run.Failures {
			_, err := tx.Exec(ctx,
				`INSERT INTO collection_attempt_failures (run_id, attempt, step, error) VALUES ($1, $2, $3, $4)`,
				run.ID, f.Attempt, f.Step, f.Error,
			)
			if err != nil {
				return fmt.Errorf("failed to save attempt %d failure: %w", f.Attempt, err)
			}
		}

		return nil
	})
}
