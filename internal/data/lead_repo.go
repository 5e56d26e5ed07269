package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data/pgxutil"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	apperrors "github.com/Rishet11/LeadPilot/internal/errors"
)

// LeadRepo implements the LeadRepository interface using PostgreSQL.
type LeadRepo struct {
	DB *sql.DB
}

// NewLeadRepo creates a new LeadRepo with the given database connection.
func NewLeadRepo(db *sql.DB) *LeadRepo {
	return &LeadRepo{DB: db}
}

const leadColumns = `id, tenant_id, job_id, source, name, phone, website, instagram_handle,
	city, category, country, rating, reviews_count, lead_score, score_reason,
	outreach_message, dedupe_key, created_at`

// CreateBatch inserts one target's leads in a single transaction. Rows whose
// dedupe key collides with an existing lead are skipped via ON CONFLICT DO
// NOTHING, so duplicates cost nothing and the rest of the batch still lands.
// Returns the number of rows actually inserted.
func (r *LeadRepo) CreateBatch(ctx context.Context, leads []*model.CreateLeadRequest) (int, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	for i := range leads {
		if leads[i] == nil {
			return 0, fmt.Errorf("lead %d: request is nil", i)
		}
		leads[i].Normalize()
		if err := leads[i].Validate(); err != nil {
			return 0, fmt.Errorf("lead %d: %w", i, err)
		}
	}

	var inserted int
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			for _, lead := range leads {
				res, execErr := tx.ExecContext(ctx, `
					INSERT INTO leads (
						tenant_id, job_id, source, name, phone, website, instagram_handle,
						city, category, country, rating, reviews_count, lead_score,
						score_reason, outreach_message, dedupe_key
					)
					VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
					ON CONFLICT DO NOTHING
				`,
					lead.TenantID,
					lead.JobID,
					lead.Source,
					lead.Name,
					lead.Phone,
					lead.Website,
					lead.InstagramHandle,
					lead.City,
					lead.Category,
					lead.Country,
					lead.Rating,
					lead.ReviewsCount,
					lead.LeadScore,
					lead.ScoreReason,
					lead.OutreachMessage,
					lead.DedupeKey,
				)
				if execErr != nil {
					return fmt.Errorf("insert lead: %w", apperrors.MapDBError(execErr))
				}
				rowsAffected, raErr := res.RowsAffected()
				if raErr != nil {
					return fmt.Errorf("rows affected: %w", raErr)
				}
				inserted += int(rowsAffected)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// CountByJob returns the number of leads persisted for a job.
func (r *LeadRepo) CountByJob(ctx context.Context, jobID string) (int, error) {
	if jobID == "" {
		return 0, ErrLeadJobRequired
	}

	var count int
	if err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM leads WHERE job_id = $1`, jobID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count leads by job: %w", err)
	}
	return count, nil
}

// ListByJob returns a job's leads oldest-first.
func (r *LeadRepo) ListByJob(ctx context.Context, jobID string, limit int) ([]*model.Lead, error) {
	if jobID == "" {
		return nil, ErrLeadJobRequired
	}
	if limit <= 0 {
		limit = 100
	}

	var rowsOut []model.Lead
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE job_id = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $2
		`, jobID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.Lead])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list leads by job: %w", err)
	}

	res := make([]*model.Lead, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

var _ core.LeadRepository = (*LeadRepo)(nil)
