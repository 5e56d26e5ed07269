package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// SQL used by ClaimForRun to atomically move a job into running. The status
// guard makes a claim of a finalized job a no-op, and the whole
// read-modify-write is one statement so two workers can never both win.
const claimForRunSQL = `
  UPDATE jobs
  SET
    status = 'running',
    attempt_count = attempt_count + 1,
    started_at = $2,
    completed_at = NULL,
    next_retry_at = NULL,
    error_message = NULL
  WHERE id = $1 AND status IN ('pending', 'running')
  RETURNING ` + jobColumns

// ClaimForRun transitions a job to running and increments its attempt count.
// The transition commits before any executor work begins, so a crash
// mid-execution leaves a recoverable running row.
//
// Returns ErrJobNotClaimable when the job is already terminal, and
// ErrJobNotFound when no row exists.
func (r *JobRepo) ClaimForRun(ctx context.Context, id string) (*model.Job, error) {
	currentTime := r.clock.Now().UTC()

	row := r.DB.QueryRowContext(ctx, claimForRunSQL, id, currentTime)
	job, err := scanJobFromRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); errors.Is(getErr, ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, ErrJobNotClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// FinalizeSuccess moves a running job to a terminal success status
// (completed or completed_with_errors). Returns false when the row is no
// longer running, which means another actor finalized or requeued it first.
func (r *JobRepo) FinalizeSuccess(ctx context.Context, params core.FinalizeSuccessParams) (bool, error) {
	if params.Status != model.JobStatusCompleted && params.Status != model.JobStatusCompletedWithErrors {
		return false, fmt.Errorf("invalid terminal success status: %s", params.Status)
	}

	currentTime := r.clock.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2,
		    leads_found = $3,
		    error_message = $4,
		    completed_at = $5,
		    next_retry_at = NULL
		WHERE id = $1 AND status = 'running'
	`, params.ID, params.Status, params.LeadsFound, params.ErrorMessage, currentTime)
	if err != nil {
		return false, fmt.Errorf("finalize job: %w", err)
	}

	return oneRowAffected(res)
}

// ScheduleRetry returns a running job to pending with a retry time in the
// future. Returns false when the row is no longer running.
func (r *JobRepo) ScheduleRetry(ctx context.Context, params core.ScheduleRetryParams) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'pending',
		    next_retry_at = $2,
		    error_message = $3,
		    completed_at = NULL
		WHERE id = $1 AND status = 'running'
	`, params.ID, params.NextRetryAt.UTC(), params.ErrorMessage)
	if err != nil {
		return false, fmt.Errorf("schedule retry: %w", err)
	}

	return oneRowAffected(res)
}

// MarkFailed moves a running job to the terminal failed status. Returns
// false when the row is no longer running.
func (r *JobRepo) MarkFailed(ctx context.Context, id, errMsg string) (bool, error) {
	currentTime := r.clock.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed',
		    error_message = $2,
		    completed_at = $3,
		    next_retry_at = NULL
		WHERE id = $1 AND status = 'running'
	`, id, errMsg, currentTime)
	if err != nil {
		return false, fmt.Errorf("mark job failed: %w", err)
	}

	return oneRowAffected(res)
}

func oneRowAffected(res sql.Result) (bool, error) {
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
