package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/mocks/scrape"
	"github.com/Rishet11/LeadPilot/internal/mocks/store"
)

type workerFixture struct {
	worker     *Worker
	jobs       *store.MockJobRepository
	reaperRepo *store.MockReaperRepository
	executor   *scrape.MockTargetExecutor
}

func newWorkerFixture(t *testing.T, poll time.Duration) *workerFixture {
	t.Helper()

	jobs := &store.MockJobRepository{}
	reaperRepo := &store.MockReaperRepository{}
	executor := &scrape.MockTargetExecutor{}

	runner := MustNewRunner(RunnerOptions{
		Jobs:        jobs,
		Executors:   map[model.JobType]core.TargetExecutor{model.JobTypeGoogleMaps: executor},
		RetryPolicy: testPolicy(t),
		Time:        data.NewFrozenClock(testNow),
	})
	reaper := MustNewReaper(ReaperOptions{
		Repo:         reaperRepo,
		RetryPolicy:  testPolicy(t),
		StuckTimeout: 15 * time.Minute,
		Time:         data.NewFrozenClock(testNow),
	})
	worker := MustNewWorker(WorkerOptions{
		Jobs:         jobs,
		Runner:       runner,
		Reaper:       reaper,
		PollInterval: poll,
	})

	return &workerFixture{
		worker:     worker,
		jobs:       jobs,
		reaperRepo: reaperRepo,
		executor:   executor,
	}
}

func TestNewWorker_Validation(t *testing.T) {
	f := newWorkerFixture(t, time.Second)

	_, err := NewWorker(WorkerOptions{Runner: f.worker.runner, Reaper: f.worker.reaper, PollInterval: time.Second})
	require.ErrorContains(t, err, "JobRepository")

	_, err = NewWorker(WorkerOptions{Jobs: f.jobs, Reaper: f.worker.reaper, PollInterval: time.Second})
	require.ErrorContains(t, err, "Runner")

	_, err = NewWorker(WorkerOptions{Jobs: f.jobs, Runner: f.worker.runner, PollInterval: time.Second})
	require.ErrorContains(t, err, "Reaper")

	_, err = NewWorker(WorkerOptions{Jobs: f.jobs, Runner: f.worker.runner, Reaper: f.worker.reaper})
	require.ErrorContains(t, err, "PollInterval")
}

func TestRun_ProcessesEligibleJobs(t *testing.T) {
	f := newWorkerFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	polls := 0
	f.jobs.NextEligibleIDFunc = func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls <= 2 {
			return "job-1", nil
		}
		cancel()
		return "", model.ErrNoEligibleJobs
	}
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return claimedJob(nil, 1), nil
	}
	f.executor.Outcome = &model.ExecutionOutcome{LeadsProduced: 1}

	require.NoError(t, f.worker.Run(ctx))

	assert.Equal(t, []string{"job-1", "job-1"}, f.jobs.Claimed())
	assert.Len(t, f.jobs.FinalizeCalls(), 2)
	// One sweep per cycle, including the one that found the queue idle.
	assert.Len(t, f.reaperRepo.Calls(), 3)
}

func TestRun_SweepsBeforeEachPoll(t *testing.T) {
	f := newWorkerFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	f.reaperRepo.ReapStaleFunc = func(context.Context, core.ReapStaleParams) (core.ReapStaleResult, error) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, "sweep")
		return core.ReapStaleResult{}, nil
	}
	f.jobs.NextEligibleIDFunc = func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, "poll")
		if len(events) >= 4 {
			cancel()
		}
		return "", model.ErrNoEligibleJobs
	}

	require.NoError(t, f.worker.Run(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"sweep", "poll", "sweep", "poll"}, events)
}

func TestRun_IdleLoopSleeps(t *testing.T) {
	f := newWorkerFixture(t, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.jobs.NextEligibleHits() == 1
	}, time.Second, 5*time.Millisecond)

	// With an hour-long poll interval the loop must now be parked in its
	// sleep, not spinning on the store.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.jobs.NextEligibleHits(), "an idle worker sleeps instead of spinning")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}

func TestRun_SweepErrorStopsLoop(t *testing.T) {
	f := newWorkerFixture(t, time.Second)
	f.reaperRepo.ReapStaleFunc = func(context.Context, core.ReapStaleParams) (core.ReapStaleResult, error) {
		return core.ReapStaleResult{}, errors.New("db gone")
	}

	err := f.worker.Run(context.Background())
	require.ErrorContains(t, err, "reap stale jobs")
	assert.Equal(t, 0, f.jobs.NextEligibleHits())
}

func TestRun_PollErrorStopsLoop(t *testing.T) {
	f := newWorkerFixture(t, time.Second)
	f.jobs.NextEligibleIDFunc = func(context.Context) (string, error) {
		return "", errors.New("socket closed")
	}

	err := f.worker.Run(context.Background())
	require.ErrorContains(t, err, "poll next job")
}

func TestRun_ProcessErrorDoesNotStopLoop(t *testing.T) {
	f := newWorkerFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	polls := 0
	f.jobs.NextEligibleIDFunc = func(context.Context) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		polls++
		if polls <= 2 {
			return "job-1", nil
		}
		cancel()
		return "", model.ErrNoEligibleJobs
	}
	f.jobs.ClaimForRunFunc = func(context.Context, string) (*model.Job, error) {
		return nil, errors.New("deadlock detected")
	}

	require.NoError(t, f.worker.Run(ctx))
	assert.Len(t, f.jobs.Claimed(), 2, "the loop keeps going after a bad job")
}

func TestRun_CanceledContextReturnsNil(t *testing.T) {
	f := newWorkerFixture(t, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.worker.Run(ctx))
	assert.Empty(t, f.reaperRepo.Calls())
}
