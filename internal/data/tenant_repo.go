package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data/pgxutil"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// TenantRepo implements the TenantRepository interface using PostgreSQL.
type TenantRepo struct {
	DB *sql.DB
}

// NewTenantRepo creates a new TenantRepo with the given database connection.
func NewTenantRepo(db *sql.DB) *TenantRepo {
	return &TenantRepo{DB: db}
}

const tenantColumns = `id, name, plan_tier, subscription_status, created_at`

// Create inserts a new tenant.
func (r *TenantRepo) Create(ctx context.Context, req *model.CreateTenantRequest) (*model.Tenant, error) {
	if req == nil {
		return nil, errors.New("create tenant request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.Tenant
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO tenants (name, plan_tier)
			VALUES ($1, $2)
			RETURNING `+tenantColumns+`
		`, req.Name, req.PlanTier)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Tenant])
		return e
	}); err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	return &out, nil
}

// GetByID returns a tenant by ID.
func (r *TenantRepo) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	if id == "" {
		return nil, errors.New("id is required")
	}

	var out model.Tenant
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Tenant])
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("get tenant by id: %w", err)
	}
	return &out, nil
}

var _ core.TenantRepository = (*TenantRepo)(nil)
