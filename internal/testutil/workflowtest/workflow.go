// Package workflowtest wires the real scrape-job stack against a stubbed
// provider for end-to-end worker tests: real Postgres repositories, the
// admission gate, the runner, and the reaper, with an httptest server
// standing in for the hosted actor API.
package workflowtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Rishet11/LeadPilot/internal/adapters/googlemaps"
	"github.com/Rishet11/LeadPilot/internal/adapters/instagram"
	"github.com/Rishet11/LeadPilot/internal/adapters/scrapeprovider"
	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	domainjob "github.com/Rishet11/LeadPilot/internal/domain/job"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/service"
	"github.com/Rishet11/LeadPilot/internal/testutil"
)

// maxProcessedPerRun bounds RunUntilIdle so a job that keeps re-entering the
// queue fails the test instead of hanging it.
const maxProcessedPerRun = 100

// ProviderRule scripts one stubbed actor response. Rules are checked in
// registration order against the serialized actor input; the first match
// wins, and a rule with an empty Match matches every request.
type ProviderRule struct {
	Match  string           // substring of the actor input JSON
	Status int              // >= 400 forces an API error carrying Body
	Body   string           // error body returned with Status
	Items  []map[string]any // dataset items returned on success
}

// ProviderCall records one actor run the stub served.
type ProviderCall struct {
	Actor string
	Input string
}

// ProviderStub is an httptest server that behaves like the hosted actor API:
// it accepts run-sync requests and answers with scripted dataset items or
// scripted failures.
type ProviderStub struct {
	t  testutil.TestingTB
	ts *httptest.Server

	mu    sync.Mutex
	rules []ProviderRule
	calls []ProviderCall
}

// NewProviderStub starts a stub provider server.
func NewProviderStub(t testutil.TestingTB) *ProviderStub {
	s := &ProviderStub{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/acts/{actor}/run-sync-get-dataset-items", s.handleRunSync)
	s.ts = httptest.NewServer(mux)
	return s
}

// URL returns the stub's base URL for the provider client.
func (s *ProviderStub) URL() string {
	return s.ts.URL
}

// Close shuts the stub server down.
func (s *ProviderStub) Close() {
	s.ts.Close()
}

// Respond registers dataset items returned for actor inputs containing match.
func (s *ProviderStub) Respond(match string, items ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, ProviderRule{Match: match, Items: items})
}

// Fail registers an API error returned for actor inputs containing match.
func (s *ProviderStub) Fail(match string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, ProviderRule{Match: match, Status: status, Body: body})
}

// Calls returns a copy of every actor run the stub has served.
func (s *ProviderStub) Calls() []ProviderCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProviderCall, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many served runs carried inputs containing match.
func (s *ProviderStub) CallCount(match string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, call := range s.calls {
		if strings.Contains(call.Input, match) {
			count++
		}
	}
	return count
}

func (s *ProviderStub) handleRunSync(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read actor input", http.StatusBadRequest)
		return
	}
	input := string(body)

	s.mu.Lock()
	s.calls = append(s.calls, ProviderCall{Actor: r.PathValue("actor"), Input: input})
	var matched *ProviderRule
	for i := range s.rules {
		if s.rules[i].Match == "" || strings.Contains(input, s.rules[i].Match) {
			matched = &s.rules[i]
			break
		}
	}
	s.mu.Unlock()

	if matched != nil && matched.Status >= 400 {
		http.Error(w, matched.Body, matched.Status)
		return
	}

	items := []map[string]any{}
	if matched != nil {
		items = matched.Items
	}
	w.Header().Set("Content-Type", "application/json")
	if encodeErr := json.NewEncoder(w).Encode(items); encodeErr != nil {
		s.t.Fatalf("encode dataset items: %v", encodeErr)
	}
}

// GoogleMapsItem builds a raw actor item in the Google Maps dataset shape.
func GoogleMapsItem(name, city, website string) map[string]any {
	return map[string]any{
		"title":        name,
		"city":         city,
		"categoryName": "dentist",
		"website":      website,
		"totalScore":   4.6,
		"reviewsCount": 120,
	}
}

// InstagramItem builds a raw actor item in the Instagram dataset shape.
func InstagramItem(username, fullName string, followers int) map[string]any {
	return map[string]any{
		"username":       username,
		"fullName":       fullName,
		"followersCount": followers,
		"externalUrl":    "https://" + username + ".example",
	}
}

// HarnessOptions configures the worker test harness.
type HarnessOptions struct {
	MaxAttempts  int           // attempt budget, default 3
	BaseBackoff  time.Duration // first retry delay, default one minute
	StuckTimeout time.Duration // reaper staleness window, default ten minutes
	// EnableRedis wires the Redis dedupe cache in front of the leads table.
	// The test is skipped when no Redis instance is reachable.
	EnableRedis bool
}

// WorkerTestHarness holds the wired stack. The clock it exposes drives the
// job repo, the runner, the reaper, and the usage service, so advancing it
// moves retry and staleness windows together.
//
//nolint:revive // WorkerTestHarness is intentionally verbose for clarity in test code.
type WorkerTestHarness struct {
	t testutil.TestingTB

	Provider *ProviderStub
	Clock    *testutil.TestClock

	JobRepo    *data.JobRepo
	LeadRepo   *data.LeadRepo
	TenantRepo *data.TenantRepo
	UsageRepo  *data.UsageRepo

	Usage     *service.UsageService
	Admission *service.AdmissionService
	Runner    *service.Runner
	Reaper    *service.Reaper

	RedisClient *redis.Client
}

// NewWorkerTestHarness creates a harness with all components wired up.
func NewWorkerTestHarness(t testutil.TestingTB, db *sql.DB, opts HarnessOptions) *WorkerTestHarness {
	t.Helper()

	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Minute
	}
	if opts.StuckTimeout == 0 {
		opts.StuckTimeout = 10 * time.Minute
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewTestClock(testutil.TestTime())
	stub := NewProviderStub(t)

	provider, err := scrapeprovider.NewClient(scrapeprovider.Options{
		BaseURL: stub.URL(),
		Token:   "workflow-test-token",
		Timeout: 5 * time.Second,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("create provider client: %v", err)
	}

	policy, err := domainjob.NewRetryPolicy(opts.MaxAttempts, opts.BaseBackoff)
	if err != nil {
		t.Fatalf("create retry policy: %v", err)
	}

	h := &WorkerTestHarness{
		t:        t,
		Provider: stub,
		Clock:    clock,
		JobRepo: data.NewJobRepo(db, data.RepoConfig{
			Logger: logger,
			Clock:  clock,
		}),
		LeadRepo:   data.NewLeadRepo(db),
		TenantRepo: data.NewTenantRepo(db),
		UsageRepo:  data.NewUsageRepo(db),
	}

	var dedupe core.DedupeCache
	if opts.EnableRedis {
		h.RedisClient = testutil.SetupTestRedis(t)
		dedupe = data.NewRedisDedupeCache(h.RedisClient)
	}

	buildPipeline := func(mapping scrapeprovider.FieldMapping) *scrapeprovider.Pipeline {
		p, pipeErr := scrapeprovider.NewPipeline(scrapeprovider.PipelineOptions{
			Provider: provider,
			Leads:    h.LeadRepo,
			Mapper:   scrapeprovider.MustNewItemMapper(mapping),
			Dedupe:   dedupe,
			Logger:   logger,
		})
		if pipeErr != nil {
			t.Fatalf("create pipeline: %v", pipeErr)
		}
		return p
	}

	googleExec, err := googlemaps.NewExecutor(googlemaps.Options{
		Pipeline: buildPipeline(scrapeprovider.GoogleMapsMapping()),
		Actor:    "compass~crawler-google-places",
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("create google maps executor: %v", err)
	}
	instagramExec, err := instagram.NewExecutor(instagram.Options{
		Pipeline: buildPipeline(scrapeprovider.InstagramMapping()),
		Actor:    "apify~instagram-search-scraper",
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("create instagram executor: %v", err)
	}

	h.Usage = service.MustNewUsageService(service.UsageServiceOptions{
		Repo:   h.UsageRepo,
		Logger: logger,
		Time:   clock,
	})
	h.Admission = service.MustNewAdmissionService(service.AdmissionOptions{
		Jobs:    h.JobRepo,
		Tenants: h.TenantRepo,
		Usage:   h.Usage,
		Logger:  logger,
	})
	h.Runner = service.MustNewRunner(service.RunnerOptions{
		Jobs: h.JobRepo,
		Executors: map[model.JobType]core.TargetExecutor{
			model.JobTypeGoogleMaps: googleExec,
			model.JobTypeInstagram:  instagramExec,
		},
		RetryPolicy: policy,
		Usage:       h.Usage,
		Logger:      logger,
		Time:        clock,
	})
	h.Reaper = service.MustNewReaper(service.ReaperOptions{
		Repo:         h.JobRepo,
		RetryPolicy:  policy,
		StuckTimeout: opts.StuckTimeout,
		Logger:       logger,
		Time:         clock,
	})

	return h
}

// Close cleans up the stub server and the optional Redis client.
func (h *WorkerTestHarness) Close() {
	h.t.Helper()

	h.Provider.Close()
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// AdvanceTime moves the shared clock forward.
func (h *WorkerTestHarness) AdvanceTime(d time.Duration) {
	h.Clock.Advance(d)
}

// CreateTenant inserts a tenant on the given plan tier.
func (h *WorkerTestHarness) CreateTenant(ctx context.Context, name, tier string) *model.Tenant {
	h.t.Helper()

	tenant, err := h.TenantRepo.Create(ctx, &model.CreateTenantRequest{Name: name, PlanTier: tier})
	if err != nil {
		h.t.Fatalf("create tenant: %v", err)
	}
	return tenant
}

// AdmitJob pushes a request through the admission gate.
func (h *WorkerTestHarness) AdmitJob(ctx context.Context, req *model.CreateJobRequest) *model.Job {
	h.t.Helper()

	job, err := h.Admission.CreateScrapeJob(ctx, req)
	if err != nil {
		h.t.Fatalf("admit job: %v", err)
	}
	return job
}

// RunUntilIdle mimics one worker wake-up: sweep stale jobs, then claim and
// process eligible jobs until the queue is empty at the current clock.
// Returns how many jobs were processed.
func (h *WorkerTestHarness) RunUntilIdle(ctx context.Context) int {
	h.t.Helper()

	if _, err := h.Reaper.Sweep(ctx); err != nil {
		h.t.Fatalf("sweep stale jobs: %v", err)
	}

	processed := 0
	for {
		id, err := h.JobRepo.NextEligibleID(ctx)
		if errors.Is(err, model.ErrNoEligibleJobs) {
			return processed
		}
		if err != nil {
			h.t.Fatalf("next eligible job: %v", err)
		}
		if processErr := h.Runner.Process(ctx, id); processErr != nil {
			h.t.Fatalf("process job %s: %v", id, processErr)
		}
		processed++
		if processed > maxProcessedPerRun {
			h.t.Fatalf("worker did not drain the queue after %d jobs", maxProcessedPerRun)
		}
	}
}

// ReloadJob fetches the current row for a job.
func (h *WorkerTestHarness) ReloadJob(ctx context.Context, id string) *model.Job {
	h.t.Helper()

	job, err := h.JobRepo.GetByID(ctx, id)
	if err != nil {
		h.t.Fatalf("reload job %s: %v", id, err)
	}
	return job
}

// LeadsForJob returns the leads persisted for a job.
func (h *WorkerTestHarness) LeadsForJob(ctx context.Context, jobID string) []*model.Lead {
	h.t.Helper()

	leads, err := h.LeadRepo.ListByJob(ctx, jobID, maxProcessedPerRun)
	if err != nil {
		h.t.Fatalf("list leads for job %s: %v", jobID, err)
	}
	return leads
}

// MonthUsage returns the tenant's usage row for the clock's current month.
func (h *WorkerTestHarness) MonthUsage(ctx context.Context, tenantID string) *model.MonthlyUsage {
	h.t.Helper()

	usage, err := h.UsageRepo.GetMonth(ctx, tenantID, model.MonthStart(h.Clock.Now()))
	if err != nil {
		h.t.Fatalf("load usage for tenant %s: %v", tenantID, err)
	}
	return usage
}

// WithWorkerHarness sets up a database, builds a harness on it, and tears
// both down after the test.
func WithWorkerHarness(t testutil.TestingTB, opts HarnessOptions, fn func(*WorkerTestHarness)) {
	t.Helper()

	testutil.WithAutoDB(t, func(db *sql.DB) {
		h := NewWorkerTestHarness(t, db, opts)
		defer h.Close()
		fn(h)
	})
}
