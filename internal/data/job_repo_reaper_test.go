package data

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/testutil"
)

func TestJobRepo_ReapStale(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFrozenClock(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{Clock: clock})

		newClaimed := func(attempts int) *model.Job {
			job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
			require.NoError(t, err)
			for range attempts {
				_, err = repo.ClaimForRun(ctx, job.ID)
				require.NoError(t, err)
			}
			return job
		}

		// Both wedged at the starting clock; one has attempts left, one is out.
		recoverable := newClaimed(1)
		exhausted := newClaimed(3)

		// Claimed after the clock moves, so its started_at is fresh.
		clock.Advance(15 * time.Minute)
		fresh := newClaimed(1)

		result, err := repo.ReapStale(ctx, core.ReapStaleParams{
			Threshold:   clock.Now().Add(-10 * time.Minute),
			MaxAttempts: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), result.Requeued)
		assert.Equal(t, int64(1), result.Failed)
		assert.Equal(t, int64(2), result.Total())

		requeued, err := repo.GetByID(ctx, recoverable.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, requeued.Status)
		assert.Equal(t, 1, requeued.AttemptCount)
		assert.Nil(t, requeued.StartedAt)
		require.NotNil(t, requeued.NextRetryAt)
		assert.WithinDuration(t, clock.Now(), *requeued.NextRetryAt, time.Second)
		require.NotNil(t, requeued.ErrorMessage)
		assert.Contains(t, *requeued.ErrorMessage, "Recovered stale RUNNING job")
		assert.Contains(t, *requeued.ErrorMessage, "(2/3)")

		failed, err := repo.GetByID(ctx, exhausted.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, failed.Status)
		require.NotNil(t, failed.ErrorMessage)
		assert.Equal(t, "Marked failed after stale RUNNING timeout (3/3 attempts).", *failed.ErrorMessage)
		require.NotNil(t, failed.CompletedAt)
		assert.Nil(t, failed.NextRetryAt)

		untouched, err := repo.GetByID(ctx, fresh.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, untouched.Status)
		assert.NotNil(t, untouched.StartedAt)

		// The requeued job is immediately eligible for the next poll.
		id, err := repo.NextEligibleID(ctx)
		require.NoError(t, err)
		assert.Equal(t, recoverable.ID, id)

		// Nothing left to sweep.
		result, err = repo.ReapStale(ctx, core.ReapStaleParams{
			Threshold:   clock.Now().Add(-10 * time.Minute),
			MaxAttempts: 3,
		})
		require.NoError(t, err)
		assert.Zero(t, result.Total())
	})
}

func TestJobRepo_ReapStale_ThresholdIsExclusive(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		clock := NewFrozenClock(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{Clock: clock})

		job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.ClaimForRun(ctx, job.ID)
		require.NoError(t, err)

		// started_at equals the threshold exactly: not yet stale.
		result, err := repo.ReapStale(ctx, core.ReapStaleParams{
			Threshold:   clock.Now(),
			MaxAttempts: 3,
		})
		require.NoError(t, err)
		assert.Zero(t, result.Total())

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)
	})
}

func TestJobRepo_ReapStale_IgnoresRowsWithoutStartedAt(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewJobRepo(db, RepoConfig{})

		job, err := repo.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		_, err = repo.ClaimForRun(ctx, job.ID)
		require.NoError(t, err)

		// Simulate a row that lost its start marker; the sweep must not guess
		// at its age.
		_, err = db.ExecContext(ctx, `UPDATE jobs SET started_at = NULL WHERE id = $1`, job.ID)
		require.NoError(t, err)

		result, err := repo.ReapStale(ctx, core.ReapStaleParams{
			Threshold:   time.Now().UTC().Add(time.Hour),
			MaxAttempts: 3,
		})
		require.NoError(t, err)
		assert.Zero(t, result.Total())

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)
	})
}
