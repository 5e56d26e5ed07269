package workflowtest

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

func TestWorkerCompletesMixedOutcomeJob(t *testing.T) {
	WithWorkerHarness(t, HarnessOptions{}, func(h *WorkerTestHarness) {
		ctx := context.Background()
		tenant := h.CreateTenant(ctx, "Bright Dental Group", "starter")

		h.Provider.Respond("dentist in Austin",
			GoogleMapsItem("Bright Smile Dental", "Austin", "https://brightsmile.example"),
			GoogleMapsItem("Lakeside Dental Studio", "Austin", "https://lakesidedental.example"),
		)
		h.Provider.Fail("dentist in Brokenville", http.StatusBadGateway, "actor crashed")

		job := h.AdmitJob(ctx, &model.CreateJobRequest{
			Type:     model.JobTypeGoogleMaps,
			TenantID: &tenant.ID,
			Targets: json.RawMessage(`[
				{"city": "Austin", "category": "dentist", "limit": 10},
				{"city": "Brokenville", "category": "dentist", "limit": 10}
			]`),
		})
		require.Equal(t, model.JobStatusPending, job.Status)

		require.Equal(t, 1, h.RunUntilIdle(ctx))

		got := h.ReloadJob(ctx, job.ID)
		require.Equal(t, model.JobStatusCompletedWithErrors, got.Status)
		require.Equal(t, 1, got.AttemptCount)
		require.Equal(t, 2, got.LeadsFound)
		require.NotNil(t, got.CompletedAt)
		require.NotNil(t, got.ErrorMessage)
		require.Contains(t, *got.ErrorMessage, "1/2 target(s) failed")
		require.Contains(t, *got.ErrorMessage, "Brokenville")

		leads := h.LeadsForJob(ctx, job.ID)
		require.Len(t, leads, 2)
		for _, lead := range leads {
			require.NotNil(t, lead.TenantID)
			require.Equal(t, tenant.ID, *lead.TenantID)
			require.Equal(t, model.LeadSourceGoogleMaps, lead.Source)
		}

		usage := h.MonthUsage(ctx, tenant.ID)
		require.Equal(t, 1, usage.ScrapeJobs)
		require.Equal(t, 2, usage.LeadsGenerated)
	})
}

func TestWorkerRetriesUntilAttemptsExhausted(t *testing.T) {
	WithWorkerHarness(t, HarnessOptions{MaxAttempts: 2, BaseBackoff: time.Minute}, func(h *WorkerTestHarness) {
		ctx := context.Background()
		h.Provider.Fail("", http.StatusInternalServerError, "provider down")

		job := h.AdmitJob(ctx, &model.CreateJobRequest{
			Type:    model.JobTypeGoogleMaps,
			Targets: json.RawMessage(`[{"city": "Springfield", "category": "plumber", "limit": 5}]`),
		})

		require.Equal(t, 1, h.RunUntilIdle(ctx))

		afterFirst := h.ReloadJob(ctx, job.ID)
		require.Equal(t, model.JobStatusPending, afterFirst.Status)
		require.Equal(t, 1, afterFirst.AttemptCount)
		require.NotNil(t, afterFirst.NextRetryAt)
		require.True(t, afterFirst.NextRetryAt.After(h.Clock.Now()))

		// The backoff window has not elapsed, so the queue reads empty.
		require.Zero(t, h.RunUntilIdle(ctx))

		h.AdvanceTime(2 * time.Minute)
		require.Equal(t, 1, h.RunUntilIdle(ctx))

		final := h.ReloadJob(ctx, job.ID)
		require.Equal(t, model.JobStatusFailed, final.Status)
		require.Equal(t, 2, final.AttemptCount)
		require.Nil(t, final.NextRetryAt)
		require.NotNil(t, final.ErrorMessage)
		require.Contains(t, *final.ErrorMessage, "Attempt 2/2 failed")

		require.Empty(t, h.LeadsForJob(ctx, job.ID))
		require.Equal(t, 2, h.Provider.CallCount("Springfield"))
	})
}

func TestWorkerRecoversWedgedJob(t *testing.T) {
	WithWorkerHarness(t, HarnessOptions{StuckTimeout: 10 * time.Minute}, func(h *WorkerTestHarness) {
		ctx := context.Background()
		h.Provider.Respond("", GoogleMapsItem("Corner Bakery", "Portland", "https://cornerbakery.example"))

		job := h.AdmitJob(ctx, &model.CreateJobRequest{
			Type:    model.JobTypeGoogleMaps,
			Targets: json.RawMessage(`[{"city": "Portland", "category": "bakery", "limit": 5}]`),
		})

		// Claim like a worker that crashed before finalizing: the row stays
		// running with nothing to show for it.
		_, err := h.JobRepo.ClaimForRun(ctx, job.ID)
		require.NoError(t, err)

		// Too fresh for the sweep, and running rows are not eligible.
		require.Zero(t, h.RunUntilIdle(ctx))
		require.Equal(t, model.JobStatusRunning, h.ReloadJob(ctx, job.ID).Status)

		h.AdvanceTime(11 * time.Minute)
		require.Equal(t, 1, h.RunUntilIdle(ctx))

		got := h.ReloadJob(ctx, job.ID)
		require.Equal(t, model.JobStatusCompleted, got.Status)
		require.Equal(t, 2, got.AttemptCount) // the wedged attempt plus the rerun
		require.Equal(t, 1, got.LeadsFound)
		require.Len(t, h.LeadsForJob(ctx, job.ID), 1)
	})
}

func TestWorkerRunsInstagramJob(t *testing.T) {
	WithWorkerHarness(t, HarnessOptions{}, func(h *WorkerTestHarness) {
		ctx := context.Background()
		tenant := h.CreateTenant(ctx, "Studio Growth Co", "launch")

		h.Provider.Respond("fitnessstudio",
			InstagramItem("drippyfit", "Drippy Fit Studio", 5400),
		)

		job := h.AdmitJob(ctx, &model.CreateJobRequest{
			Type:     model.JobTypeInstagram,
			TenantID: &tenant.ID,
			Targets:  json.RawMessage(`[{"hashtag": "fitnessstudio", "limit": 15}]`),
		})

		require.Equal(t, 1, h.RunUntilIdle(ctx))

		got := h.ReloadJob(ctx, job.ID)
		require.Equal(t, model.JobStatusCompleted, got.Status)
		require.Equal(t, 1, got.LeadsFound)

		leads := h.LeadsForJob(ctx, job.ID)
		require.Len(t, leads, 1)
		require.Equal(t, model.LeadSourceInstagram, leads[0].Source)
		require.Equal(t, "Drippy Fit Studio", leads[0].Name)
		require.NotNil(t, leads[0].InstagramHandle)
		require.Equal(t, "drippyfit", *leads[0].InstagramHandle)
		require.NotNil(t, leads[0].ReviewsCount)
		require.Equal(t, 5400, *leads[0].ReviewsCount)

		calls := h.Provider.Calls()
		require.Len(t, calls, 1)
		require.Equal(t, "apify~instagram-search-scraper", calls[0].Actor)
	})
}

func TestWorkerSkipsDuplicateLeadsAcrossJobs(t *testing.T) {
	WithWorkerHarness(t, HarnessOptions{EnableRedis: true}, func(h *WorkerTestHarness) {
		ctx := context.Background()
		tenant := h.CreateTenant(ctx, "Repeat Prospector", "starter")

		h.Provider.Respond("", GoogleMapsItem("Corner Bakery", "Portland", "https://cornerbakery.example"))

		newJob := func() *model.Job {
			return h.AdmitJob(ctx, &model.CreateJobRequest{
				Type:     model.JobTypeGoogleMaps,
				TenantID: &tenant.ID,
				Targets:  json.RawMessage(`[{"city": "Portland", "category": "bakery", "limit": 5}]`),
			})
		}

		first := newJob()
		require.Equal(t, 1, h.RunUntilIdle(ctx))
		require.Equal(t, 1, h.ReloadJob(ctx, first.ID).LeadsFound)
		require.Positive(t, h.RedisClient.DBSize(ctx).Val())

		second := newJob()
		require.Equal(t, 1, h.RunUntilIdle(ctx))

		got := h.ReloadJob(ctx, second.ID)
		require.Equal(t, model.JobStatusCompleted, got.Status)
		require.Zero(t, got.LeadsFound)
		require.Empty(t, h.LeadsForJob(ctx, second.ID))

		// Only the first job's lead survives for the tenant.
		usage := h.MonthUsage(ctx, tenant.ID)
		require.Equal(t, 1, usage.LeadsGenerated)
		require.Equal(t, 2, usage.ScrapeJobs)
	})
}
