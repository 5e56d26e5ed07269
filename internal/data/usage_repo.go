package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data/pgxutil"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	apperrors "github.com/Rishet11/LeadPilot/internal/errors"
)

// UsageRepo implements the UsageRepository interface using PostgreSQL.
type UsageRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewUsageRepo creates a new UsageRepo with the given database connection.
func NewUsageRepo(db *sql.DB) *UsageRepo {
	return &UsageRepo{DB: db, clock: SystemClock{}}
}

// Increment upserts the tenant's month row and adds the deltas. Negative
// deltas are clamped to zero so counters never decrease; billing reconciles
// over-counts out of band.
func (r *UsageRepo) Increment(ctx context.Context, params core.IncrementUsageParams) error {
	if params.TenantID == "" {
		return errors.New("tenant id is required")
	}

	leadsDelta := max(params.LeadsDelta, 0)
	jobsDelta := max(params.JobsDelta, 0)
	if leadsDelta == 0 && jobsDelta == 0 {
		return nil
	}

	monthStart := model.MonthStart(params.MonthStart)
	now := r.clock.Now().UTC()

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO usage_monthly (tenant_id, month_start, leads_generated, scrape_jobs, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (tenant_id, month_start) DO UPDATE
		SET leads_generated = usage_monthly.leads_generated + EXCLUDED.leads_generated,
		    scrape_jobs = usage_monthly.scrape_jobs + EXCLUDED.scrape_jobs,
		    updated_at = EXCLUDED.updated_at
	`, params.TenantID, monthStart, leadsDelta, jobsDelta, now)
	if err != nil {
		return fmt.Errorf("increment usage: %w", apperrors.MapDBError(err))
	}
	return nil
}

// GetMonth returns the tenant's usage row for the month containing the given
// time. A missing row comes back as zero counters, not an error.
func (r *UsageRepo) GetMonth(ctx context.Context, tenantID string, monthStart time.Time) (*model.MonthlyUsage, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}

	month := model.MonthStart(monthStart)

	var out model.MonthlyUsage
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, qErr := conn.Query(ctx, `
			SELECT tenant_id, month_start, leads_generated, scrape_jobs, created_at, updated_at
			FROM usage_monthly
			WHERE tenant_id = $1 AND month_start = $2
		`, tenantID, month)
		if qErr != nil {
			return qErr
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.MonthlyUsage])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &model.MonthlyUsage{
				TenantID:   tenantID,
				MonthStart: month,
			}, nil
		}
		return nil, fmt.Errorf("get monthly usage: %w", err)
	}
	return &out, nil
}

var _ core.UsageRepository = (*UsageRepo)(nil)
