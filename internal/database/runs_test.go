package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRunRepository_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("saves run and failures in one transaction", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRunRepository(mockPool)

		started := time.Now().Add(-time.Minute)
		finished := time.Now()
		run := &RunRecord{
			ID:         uuid.New(),
			Status:     "success",
			LoggedIn:   true,
			Attempts:   2,
			Country:    strPtr("KR"),
			StartedAt:  started,
			FinishedAt: &finished,
			Failures: []AttemptRecord{
				{Attempt: 1, Step: "click-collect", Error: "collect button: element not found"},
			},
		}

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO collection_runs")).
			WithArgs(run.ID, "success", true, 2, false, run.Country, run.Error, started, &finished).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(regexp.QuoteMeta("DELETE FROM collection_attempt_failures")).
			WithArgs(run.ID).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO collection_attempt_failures")).
			WithArgs(run.ID, 1, "click-collect", "collect button: element not found").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, repo.Save(ctx, run))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("rolls back when the run insert fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		repo := NewRunRepository(mockPool)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(regexp.QuoteMeta("INSERT INTO collection_runs")).
			WillReturnError(errors.New("relation does not exist"))
		mockPool.ExpectRollback()

		err = repo.Save(ctx, &RunRecord{ID: uuid.New(), Status: "running", StartedAt: time.Now()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to save run")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("requires an id", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		err = NewRunRepository(mockPool).Save(ctx, &RunRecord{Status: "running"})
		assert.Error(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRunRepository_Migrate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS collection_runs")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, NewRunRepository(mockPool).Migrate(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
