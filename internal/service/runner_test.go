package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	domainjob "github.com/Rishet11/LeadPilot/internal/domain/job"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/mocks/scrape"
	"github.com/Rishet11/LeadPilot/internal/mocks/store"
	"github.com/Rishet11/LeadPilot/internal/observability/notify"
	"github.com/Rishet11/LeadPilot/internal/service/failurenotifier"
)

const twoTargets = `[{"city":"Mumbai","category":"Gym"},{"city":"Delhi","category":"Gym"}]`

func testPolicy(t *testing.T) *domainjob.RetryPolicy {
	t.Helper()
	policy, err := domainjob.NewRetryPolicy(3, 30*time.Second)
	require.NoError(t, err)
	return policy
}

func claimedJob(tenantID *string, attempt int) *model.Job {
	startedAt := testNow
	return &model.Job{
		ID:           "job-1",
		TenantID:     tenantID,
		Type:         model.JobTypeGoogleMaps,
		Targets:      json.RawMessage(twoTargets),
		Status:       model.JobStatusRunning,
		AttemptCount: attempt,
		StartedAt:    &startedAt,
		CreatedAt:    testNow.Add(-time.Minute),
	}
}

type runnerFixture struct {
	runner   *Runner
	jobs     *store.MockJobRepository
	executor *scrape.MockTargetExecutor
	usage    *store.MockUsageRepository
	metrics  *captureSink
	notified *[]notify.JobFailurePayload
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()

	jobs := &store.MockJobRepository{}
	executor := &scrape.MockTargetExecutor{}
	usageRepo := &store.MockUsageRepository{}
	sink := &captureSink{}

	var mu sync.Mutex
	var notified []notify.JobFailurePayload
	notifier := failurenotifier.NewService(failurenotifier.Options{
		Sinks: []failurenotifier.SinkRegistration{{
			Name: "capture",
			Sink: notify.SinkFunc(func(_ context.Context, payload notify.JobFailurePayload) error {
				mu.Lock()
				defer mu.Unlock()
				notified = append(notified, payload)
				return nil
			}),
		}},
	})

	usageSvc := MustNewUsageService(UsageServiceOptions{
		Repo: usageRepo,
		Time: data.NewFrozenClock(testNow),
	})

	runner := MustNewRunner(RunnerOptions{
		Jobs:            jobs,
		Executors:       map[model.JobType]core.TargetExecutor{model.JobTypeGoogleMaps: executor},
		RetryPolicy:     testPolicy(t),
		Usage:           usageSvc,
		Metrics:         sink,
		FailureNotifier: notifier,
		Time:            data.NewFrozenClock(testNow),
	})

	return &runnerFixture{
		runner:   runner,
		jobs:     jobs,
		executor: executor,
		usage:    usageRepo,
		metrics:  sink,
		notified: &notified,
	}
}

func TestNewRunner_Validation(t *testing.T) {
	executor := &scrape.MockTargetExecutor{}
	executors := map[model.JobType]core.TargetExecutor{model.JobTypeGoogleMaps: executor}

	_, err := NewRunner(RunnerOptions{Executors: executors, RetryPolicy: testPolicy(t)})
	require.ErrorContains(t, err, "JobRepository")

	_, err = NewRunner(RunnerOptions{Jobs: &store.MockJobRepository{}, RetryPolicy: testPolicy(t)})
	require.ErrorContains(t, err, "executor")

	_, err = NewRunner(RunnerOptions{Jobs: &store.MockJobRepository{}, Executors: executors})
	require.ErrorContains(t, err, "RetryPolicy")
}

func TestProcess_SkipsMissingJob(t *testing.T) {
	f := newRunnerFixture(t)
	// Default double: ClaimForRun misses.

	err := f.runner.Process(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, f.executor.Calls())
	assert.Empty(t, f.jobs.FinalizeCalls())
}

func TestProcess_SkipsUnclaimableJob(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return nil, data.ErrJobNotClaimable
	}

	err := f.runner.Process(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Empty(t, f.executor.Calls())
}

func TestProcess_ClaimInfraErrorPropagates(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return nil, errors.New("connection refused")
	}

	err := f.runner.Process(context.Background(), "job-1")
	require.ErrorContains(t, err, "claim job job-1")
	assert.Empty(t, f.executor.Calls())
}

func TestProcess_CleanCompletion(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 1), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{LeadsProduced: 5}

	err := f.runner.Process(context.Background(), "job-1")
	require.NoError(t, err)

	// The executor got the decoded targets and the tenant.
	require.Len(t, f.executor.Calls(), 1)
	call := f.executor.Calls()[0]
	assert.Equal(t, "job-1", call.JobID)
	require.NotNil(t, call.TenantID)
	assert.Equal(t, "tenant-1", *call.TenantID)
	assert.Len(t, call.Targets, 2)

	require.Len(t, f.jobs.FinalizeCalls(), 1)
	finalize := f.jobs.FinalizeCalls()[0]
	assert.Equal(t, "job-1", finalize.ID)
	assert.Equal(t, model.JobStatusCompleted, finalize.Status)
	assert.Equal(t, 5, finalize.LeadsFound)
	assert.Nil(t, finalize.ErrorMessage)

	assert.Empty(t, f.jobs.RetryCalls())
	assert.Empty(t, f.jobs.MarkFailedCalls())

	// Usage moved once, after the job row.
	require.Len(t, f.usage.Increments(), 1)
	inc := f.usage.Increments()[0]
	assert.Equal(t, "tenant-1", inc.TenantID)
	assert.Equal(t, 5, inc.LeadsDelta)
	assert.Equal(t, model.MonthStart(testNow), inc.MonthStart)

	assert.Equal(t, []string{"claim", "complete"}, f.metrics.transitions())
	assert.Equal(t, int64(5), f.metrics.countValue("job.leads_found"))
	assert.Empty(t, *f.notified)
}

func TestProcess_TenantlessJobSkipsUsage(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{LeadsProduced: 4}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))
	require.Len(t, f.jobs.FinalizeCalls(), 1)
	assert.Empty(t, f.usage.Increments())
}

func TestProcess_ZeroLeadsCleanRunSkipsUsage(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 1), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.FinalizeCalls(), 1)
	assert.Equal(t, model.JobStatusCompleted, f.jobs.FinalizeCalls()[0].Status)
	assert.Equal(t, 0, f.jobs.FinalizeCalls()[0].LeadsFound)
	assert.Empty(t, f.usage.Increments())
	assert.Equal(t, int64(0), f.metrics.countValue("job.leads_found"))
}

func TestProcess_PartialFailureCompletesWithErrors(t *testing.T) {
	f := newRunnerFixture(t)
	targets := `[{"city":"a"},{"city":"b"},{"city":"c"},{"city":"d"},{"city":"e"}]`
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		job := claimedJob(strPtr("tenant-1"), 1)
		job.Targets = json.RawMessage(targets)
		return job, nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{
		LeadsProduced: 3,
		FailedTargets: 2,
		TargetErrors:  []string{"a: boom", "b: crash", "c: fizzle", "d: pop"},
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.FinalizeCalls(), 1)
	finalize := f.jobs.FinalizeCalls()[0]
	assert.Equal(t, model.JobStatusCompletedWithErrors, finalize.Status)
	assert.Equal(t, 3, finalize.LeadsFound)
	require.NotNil(t, finalize.ErrorMessage)
	assert.Equal(t, "2/5 target(s) failed. a: boom; b: crash; c: fizzle", *finalize.ErrorMessage,
		"summary quotes the first three target errors")

	require.Len(t, f.usage.Increments(), 1)
	assert.Equal(t, 3, f.usage.Increments()[0].LeadsDelta)
	assert.Equal(t, []string{"claim", "complete_with_errors"}, f.metrics.transitions())
}

func TestProcess_PartialFailureSummaryTruncated(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{
		LeadsProduced: 1,
		FailedTargets: 1,
		TargetErrors:  []string{"t: " + strings.Repeat("x", 600)},
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.FinalizeCalls(), 1)
	msg := f.jobs.FinalizeCalls()[0].ErrorMessage
	require.NotNil(t, msg)
	assert.Len(t, []rune(*msg), 480)
}

func TestProcess_TotalFailureSchedulesRetry(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 1), nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 1), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{
		FailedTargets: 2,
		TargetErrors:  []string{"Mumbai / Gym: api 402", "Delhi / Gym: api 402"},
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	assert.Empty(t, f.jobs.FinalizeCalls())
	assert.Empty(t, f.jobs.MarkFailedCalls())
	require.Len(t, f.jobs.RetryCalls(), 1)

	retry := f.jobs.RetryCalls()[0]
	assert.Equal(t, "job-1", retry.ID)
	assert.Equal(t, testNow.Add(30*time.Second), retry.NextRetryAt)
	assert.Equal(t,
		"Attempt 1/3 failed: All 2 target(s) failed. Mumbai / Gym: api 402; Delhi / Gym: api 402. Retrying in 30s.",
		retry.ErrorMessage)

	assert.Empty(t, f.usage.Increments(), "failed attempts never bill usage")
	assert.Equal(t, []string{"claim", "retry"}, f.metrics.transitions())
	assert.Empty(t, *f.notified, "retries do not page anyone")
}

func TestProcess_RetryDelayDoubles(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 2), nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 2), nil
	}
	f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
		return nil, errors.New("actor timeout")
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.RetryCalls(), 1)
	retry := f.jobs.RetryCalls()[0]
	assert.Equal(t, testNow.Add(60*time.Second), retry.NextRetryAt)
	assert.Equal(t, "Attempt 2/3 failed: actor timeout. Retrying in 60s.", retry.ErrorMessage)
}

func TestProcess_ExhaustedAttemptsFailPermanently(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 3), nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 3), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{
		FailedTargets: 2,
		TargetErrors:  []string{"Mumbai / Gym: api 500", "Delhi / Gym: api 500"},
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	assert.Empty(t, f.jobs.RetryCalls())
	require.Len(t, f.jobs.MarkFailedCalls(), 1)
	failed := f.jobs.MarkFailedCalls()[0]
	assert.Equal(t, "job-1", failed.ID)
	assert.Equal(t,
		"Attempt 3/3 failed: All 2 target(s) failed. Mumbai / Gym: api 500; Delhi / Gym: api 500",
		failed.ErrorMsg)

	assert.Equal(t, []string{"claim", "fail"}, f.metrics.transitions())

	require.Len(t, *f.notified, 1)
	payload := (*f.notified)[0]
	assert.Equal(t, "job-1", payload.JobID)
	assert.Equal(t, "google_maps", payload.JobType)
	assert.Equal(t, "tenant-1", payload.TenantID)
	assert.Equal(t, 3, payload.AttemptCount)
	assert.Equal(t, 3, payload.MaxAttempts)
	assert.Contains(t, payload.Error, "All 2 target(s) failed")
}

func TestProcess_ExecutorErrorRoutesToRetry(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
		return nil, context.Canceled
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.RetryCalls(), 1)
	assert.Equal(t, "Attempt 1/3 failed: context canceled. Retrying in 30s.",
		f.jobs.RetryCalls()[0].ErrorMessage)
}

func TestProcess_UnknownJobTypeFailsOnFirstAttempt(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		job := claimedJob(nil, 1)
		job.Type = model.JobType("linkedin")
		return job, nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		job := claimedJob(nil, 1)
		job.Type = model.JobType("linkedin")
		return job, nil
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	assert.Empty(t, f.executor.Calls())
	assert.Empty(t, f.jobs.RetryCalls(), "unknown job types never burn retries")
	require.Len(t, f.jobs.MarkFailedCalls(), 1)
	assert.Equal(t, "Attempt 1/3 failed: unknown job type: linkedin",
		f.jobs.MarkFailedCalls()[0].ErrorMsg)
	require.Len(t, *f.notified, 1)
}

func TestProcess_MalformedTargetsStayRetryable(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		job := claimedJob(nil, 1)
		job.Targets = json.RawMessage(`{"not":"an array"}`)
		return job, nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	assert.Empty(t, f.executor.Calls())
	assert.Empty(t, f.jobs.MarkFailedCalls())
	require.Len(t, f.jobs.RetryCalls(), 1)
	assert.Contains(t, f.jobs.RetryCalls()[0].ErrorMessage, "decode targets")
}

func TestProcess_BlankErrorTextBecomesUnknown(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
		return nil, errors.New("   ")
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.RetryCalls(), 1)
	assert.Equal(t, "Attempt 1/3 failed: Unknown worker error. Retrying in 30s.",
		f.jobs.RetryCalls()[0].ErrorMessage)
}

func TestProcess_TruncatesLongErrors(t *testing.T) {
	longErr := errors.New(strings.Repeat("x", 600))

	t.Run("retry detail capped at 320", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 1), nil
		}
		f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 1), nil
		}
		f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
			return nil, longErr
		}

		require.NoError(t, f.runner.Process(context.Background(), "job-1"))
		require.Len(t, f.jobs.RetryCalls(), 1)
		expected := fmt.Sprintf("Attempt 1/3 failed: %s. Retrying in 30s.", strings.Repeat("x", 320))
		assert.Equal(t, expected, f.jobs.RetryCalls()[0].ErrorMessage)
	})

	t.Run("terminal detail capped at 480", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 3), nil
		}
		f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 3), nil
		}
		f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
			return nil, longErr
		}

		require.NoError(t, f.runner.Process(context.Background(), "job-1"))
		require.Len(t, f.jobs.MarkFailedCalls(), 1)
		expected := fmt.Sprintf("Attempt 3/3 failed: %s", strings.Repeat("x", 480))
		assert.Equal(t, expected, f.jobs.MarkFailedCalls()[0].ErrorMsg)
	})
}

func TestProcess_FailurePathUsesFreshAttemptCount(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	// A reaper or competing writer bumped the row since the claim snapshot.
	f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 2), nil
	}
	f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
		return nil, errors.New("actor timeout")
	}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	require.Len(t, f.jobs.RetryCalls(), 1)
	assert.Equal(t, "Attempt 2/3 failed: actor timeout. Retrying in 60s.",
		f.jobs.RetryCalls()[0].ErrorMessage)
}

func TestProcess_GuardedCompletionSkippedQuietly(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 1), nil
	}
	f.jobs.FinalizeSuccessFunc = func(context.Context, core.FinalizeSuccessParams) (bool, error) {
		return false, nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{LeadsProduced: 5}

	require.NoError(t, f.runner.Process(context.Background(), "job-1"))

	assert.Empty(t, f.usage.Increments(), "usage only moves when the completion landed")
	assert.Equal(t, int64(0), f.metrics.countValue("job.leads_found"))
}

func TestProcess_UsageFailureDoesNotAffectJobState(t *testing.T) {
	f := newRunnerFixture(t)
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(strPtr("tenant-1"), 1), nil
	}
	f.usage.IncrementFunc = func(context.Context, core.IncrementUsageParams) error {
		return errors.New("usage db down")
	}
	f.executor.Outcome = &model.ExecutionOutcome{LeadsProduced: 5}

	err := f.runner.Process(context.Background(), "job-1")
	require.NoError(t, err, "usage trouble never fails a finished job")
	require.Len(t, f.jobs.FinalizeCalls(), 1)
	assert.Empty(t, f.jobs.RetryCalls())
}

func TestProcess_PersistErrorsPropagate(t *testing.T) {
	t.Run("finalize", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 1), nil
		}
		f.jobs.FinalizeSuccessFunc = func(context.Context, core.FinalizeSuccessParams) (bool, error) {
			return false, errors.New("connection reset")
		}
		f.executor.Outcome = &model.ExecutionOutcome{LeadsProduced: 2}

		err := f.runner.Process(context.Background(), "job-1")
		require.ErrorContains(t, err, "finalize job job-1")
	})

	t.Run("failure-path refetch", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 1), nil
		}
		f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
			return nil, errors.New("connection reset")
		}
		f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
			return nil, errors.New("actor timeout")
		}

		err := f.runner.Process(context.Background(), "job-1")
		require.ErrorContains(t, err, "load job job-1 for failure handling")
	})

	t.Run("schedule retry", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 1), nil
		}
		f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 1), nil
		}
		f.jobs.ScheduleRetryFunc = func(context.Context, core.ScheduleRetryParams) (bool, error) {
			return false, errors.New("connection reset")
		}
		f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
			return nil, errors.New("actor timeout")
		}

		err := f.runner.Process(context.Background(), "job-1")
		require.ErrorContains(t, err, "schedule retry for job job-1")
	})

	t.Run("mark failed", func(t *testing.T) {
		f := newRunnerFixture(t)
		f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 3), nil
		}
		f.jobs.GetByIDFunc = func(context.Context, string) (*model.Job, error) {
			return claimedJob(nil, 3), nil
		}
		f.jobs.MarkFailedFunc = func(context.Context, string, string) (bool, error) {
			return false, errors.New("connection reset")
		}
		f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
			return nil, errors.New("actor timeout")
		}

		err := f.runner.Process(context.Background(), "job-1")
		require.ErrorContains(t, err, "mark job job-1 failed")
		assert.Empty(t, *f.notified, "no page until the failed status actually landed")
	})
}

func TestProcess_StateWritesSurviveCanceledContext(t *testing.T) {
	f := newRunnerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.jobs.GetByIDFunc = func(ctx context.Context, _ string) (*model.Job, error) {
		require.NoError(t, ctx.Err(), "failure-path reads must outlive the run context")
		return claimedJob(nil, 1), nil
	}
	f.jobs.ScheduleRetryFunc = func(ctx context.Context, _ core.ScheduleRetryParams) (bool, error) {
		require.NoError(t, ctx.Err(), "failure-path writes must outlive the run context")
		return true, nil
	}
	f.executor.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
		cancel()
		return nil, context.Canceled
	}

	require.NoError(t, f.runner.Process(ctx, "job-1"))
	require.Len(t, f.jobs.RetryCalls(), 1)
}
