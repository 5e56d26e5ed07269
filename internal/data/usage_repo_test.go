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

func createTenantForUsage(t *testing.T, db *sql.DB) *model.Tenant {
	t.Helper()

	tenant, err := NewTenantRepo(db).Create(context.Background(), &model.CreateTenantRequest{
		Name:     "Bright Dental Group",
		PlanTier: "launch",
	})
	require.NoError(t, err)
	return tenant
}

func TestUsageRepo_Increment(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("upserts and accumulates", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			ctx := context.Background()
			tenant := createTenantForUsage(t, db)
			repo := NewUsageRepo(db)
			month := testutil.TestTime()

			err := repo.Increment(ctx, core.IncrementUsageParams{
				TenantID:   tenant.ID,
				MonthStart: month,
				LeadsDelta: 25,
				JobsDelta:  1,
			})
			require.NoError(t, err)

			usage, err := repo.GetMonth(ctx, tenant.ID, month)
			require.NoError(t, err)
			assert.Equal(t, 25, usage.LeadsGenerated)
			assert.Equal(t, 1, usage.ScrapeJobs)

			err = repo.Increment(ctx, core.IncrementUsageParams{
				TenantID:   tenant.ID,
				MonthStart: month,
				LeadsDelta: 10,
				JobsDelta:  1,
			})
			require.NoError(t, err)

			usage, err = repo.GetMonth(ctx, tenant.ID, month)
			require.NoError(t, err)
			assert.Equal(t, 35, usage.LeadsGenerated)
			assert.Equal(t, 2, usage.ScrapeJobs)
		})
	})

	t.Run("clamps negative deltas", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			ctx := context.Background()
			tenant := createTenantForUsage(t, db)
			repo := NewUsageRepo(db)
			month := testutil.TestTime()

			err := repo.Increment(ctx, core.IncrementUsageParams{
				TenantID:   tenant.ID,
				MonthStart: month,
				LeadsDelta: 40,
				JobsDelta:  2,
			})
			require.NoError(t, err)

			// Counters never decrease.
			err = repo.Increment(ctx, core.IncrementUsageParams{
				TenantID:   tenant.ID,
				MonthStart: month,
				LeadsDelta: -15,
				JobsDelta:  1,
			})
			require.NoError(t, err)

			usage, err := repo.GetMonth(ctx, tenant.ID, month)
			require.NoError(t, err)
			assert.Equal(t, 40, usage.LeadsGenerated)
			assert.Equal(t, 3, usage.ScrapeJobs)

			// Deltas that clamp to zero never touch the table.
			err = repo.Increment(ctx, core.IncrementUsageParams{
				TenantID:   tenant.ID,
				MonthStart: month.AddDate(0, 1, 0),
				LeadsDelta: -5,
			})
			require.NoError(t, err)

			next, err := repo.GetMonth(ctx, tenant.ID, month.AddDate(0, 1, 0))
			require.NoError(t, err)
			assert.Zero(t, next.LeadsGenerated)
			assert.Zero(t, next.ScrapeJobs)
		})
	})

	t.Run("keys rows on the first of the month", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			ctx := context.Background()
			tenant := createTenantForUsage(t, db)
			repo := NewUsageRepo(db)

			midMonth := time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
			err := repo.Increment(ctx, core.IncrementUsageParams{
				TenantID:   tenant.ID,
				MonthStart: midMonth,
				LeadsDelta: 5,
			})
			require.NoError(t, err)

			// Any instant in the same month resolves to the same row.
			usage, err := repo.GetMonth(ctx, tenant.ID, time.Date(2025, 6, 28, 3, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, 5, usage.LeadsGenerated)
			assert.True(t, usage.MonthStart.Equal(model.MonthStart(midMonth)))

			// A different month is a different row.
			july, err := repo.GetMonth(ctx, tenant.ID, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Zero(t, july.LeadsGenerated)
		})
	})

	t.Run("requires a tenant", func(t *testing.T) {
		testutil.WithAutoDB(t, func(db *sql.DB) {
			repo := NewUsageRepo(db)

			err := repo.Increment(context.Background(), core.IncrementUsageParams{
				MonthStart: testutil.TestTime(),
				LeadsDelta: 1,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "tenant id is required")
		})
	})
}

func TestUsageRepo_GetMonth(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		tenant := createTenantForUsage(t, db)
		repo := NewUsageRepo(db)

		// A missing row reads as zero usage, not an error.
		usage, err := repo.GetMonth(ctx, tenant.ID, testutil.TestTime())
		require.NoError(t, err)
		assert.Equal(t, tenant.ID, usage.TenantID)
		assert.True(t, usage.MonthStart.Equal(model.MonthStart(testutil.TestTime())))
		assert.Zero(t, usage.LeadsGenerated)
		assert.Zero(t, usage.ScrapeJobs)

		_, err = repo.GetMonth(ctx, "", testutil.TestTime())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tenant id is required")
	})
}
