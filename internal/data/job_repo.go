package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rishet11/LeadPilot/internal/data/pgxutil"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	apperrors "github.com/Rishet11/LeadPilot/internal/errors"
)

// RepoConfig holds configuration options for data-layer repositories.
type RepoConfig struct {
	Logger *slog.Logger
	Clock  Clock
}

// JobRepo provides database operations for scrape-job management.
type JobRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	clk := cfg.Clock
	if clk == nil {
		clk = SystemClock{}
	}

	return &JobRepo{
		DB:     db,
		clock:  clk,
		logger: cfg.Logger,
	}
}

const jobColumns = `
  id,
  tenant_id,
  job_type,
  targets,
  status,
  attempt_count,
  next_retry_at,
  leads_found,
  error_message,
  started_at,
  completed_at,
  created_at
`

// Create inserts a new pending job.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}

	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}

	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO jobs (tenant_id, job_type, targets, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING `+jobColumns,
		req.TenantID, req.Type, []byte(req.Targets))

	job, err := scanJobFromRow(row)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", apperrors.MapDBError(err))
	}
	return job, nil
}

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// NextEligibleID returns the id of the oldest pending job whose retry time has
// passed. The read takes no locks; claiming happens separately so the row is
// never held across executor work.
func (r *JobRepo) NextEligibleID(ctx context.Context) (string, error) {
	currentTime := r.clock.Now().UTC()

	var id string
	err := r.DB.QueryRowContext(ctx, `
		SELECT id FROM jobs
		WHERE status = 'pending'
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at ASC
		LIMIT 1
	`, currentTime).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", model.ErrNoEligibleJobs
	}
	if err != nil {
		return "", fmt.Errorf("select eligible job: %w", err)
	}
	return id, nil
}

// CountActiveByTenant counts a tenant's pending plus running jobs. Admission
// control compares this against the plan's concurrency cap.
func (r *JobRepo) CountActiveByTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM jobs
		WHERE tenant_id = $1 AND status IN ('pending', 'running')
	`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// List returns jobs ordered newest-first, optionally filtered by tenant and status.
func (r *JobRepo) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE ($1::uuid IS NULL OR tenant_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	var status *string
	if opts.Status != "" {
		s := string(opts.Status)
		status = &s
	}

	rows, err := r.DB.QueryContext(ctx, query, opts.TenantID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJobFromRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("list jobs: %w", rowsErr)
	}
	return jobs, nil
}

// Stats returns counts of jobs in each status.
func (r *JobRepo) Stats(ctx context.Context) (*model.JobStats, error) {
	var s model.JobStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'pending')               AS pending,
    count(*) FILTER (WHERE status = 'running')               AS running,
    count(*) FILTER (WHERE status = 'completed')             AS completed,
    count(*) FILTER (WHERE status = 'completed_with_errors') AS completed_with_errors,
    count(*) FILTER (WHERE status = 'failed')                AS failed
  FROM jobs
  `).Scan(
		&s.Pending,
		&s.Running,
		&s.Completed,
		&s.CompletedWithErrors,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}
	return &s, nil
}

// collectJobFromRows collects a single job from pgx rows using pgx v5 helpers.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	targets                []byte
	tenantID, errorMessage sql.NullString
	nextRetryAt            sql.NullTime
	startedAt, completedAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&d.tenantID,
		&job.Type,
		&d.targets,
		&job.Status,
		&job.AttemptCount,
		&d.nextRetryAt,
		&job.LeadsFound,
		&d.errorMessage,
		&d.startedAt,
		&d.completedAt,
		&job.CreatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) {
	job.TenantID = cloneNullableString(d.tenantID)
	job.Targets = cloneJSON(d.targets)
	job.NextRetryAt = cloneNullableTime(d.nextRetryAt)
	job.ErrorMessage = cloneNullableString(d.errorMessage)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	data.apply(job)
	return job, nil
}

func cloneJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage(`[]`)
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
