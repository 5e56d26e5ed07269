package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for leadpilot reaper operations.
const (
	advisoryLockReaperMajor     = 1000
	advisoryLockReaperReapStale = 1 // minor key for ReapStale
)

// ReapStale recovers jobs wedged in running status since before the
// threshold. Jobs with attempts left go back to pending, immediately
// eligible, with started_at cleared so this sweep cannot re-fire on the old
// timestamp; exhausted jobs are failed for good. Both updates commit in one
// transaction, serialized across reaper instances by an advisory lock.
func (r *JobRepo) ReapStale(ctx context.Context, params core.ReapStaleParams) (core.ReapStaleResult, error) {
	var result core.ReapStaleResult
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperReapStale).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				result = core.ReapStaleResult{}
				return nil
			}

			currentTime := r.clock.Now().UTC()
			threshold := params.Threshold.UTC()

			failRes, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'failed',
					error_message = format('Marked failed after stale RUNNING timeout (%s/%s attempts).', attempt_count, $3::int),
					completed_at = $1,
					next_retry_at = NULL
				WHERE status = 'running'
				  AND started_at IS NOT NULL
				  AND started_at < $2
				  AND attempt_count >= $3
			`, currentTime, threshold, params.MaxAttempts)
			if err != nil {
				return fmt.Errorf("fail exhausted stale jobs: %w", err)
			}
			if result.Failed, err = failRes.RowsAffected(); err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}

			requeueRes, err := tx.ExecContext(ctx, `
				UPDATE jobs
				SET status = 'pending',
					error_message = format('Recovered stale RUNNING job; requeued for retry (%s/%s).', attempt_count + 1, $3::int),
					next_retry_at = $1,
					started_at = NULL,
					completed_at = NULL
				WHERE status = 'running'
				  AND started_at IS NOT NULL
				  AND started_at < $2
				  AND attempt_count < $3
			`, currentTime, threshold, params.MaxAttempts)
			if err != nil {
				return fmt.Errorf("requeue stale jobs: %w", err)
			}
			if result.Requeued, err = requeueRes.RowsAffected(); err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}

			return nil
		},
	})
	if err != nil {
		return core.ReapStaleResult{}, err
	}
	return result, nil
}
