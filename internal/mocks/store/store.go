// Package store contains simple hand-written test doubles for the worker's
// persistence ports. These are lightweight and suitable for unit tests
// without codegen: set the Func field you care about and the double records
// every call; unset fields fall back to deterministic defaults.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/data"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// Ensure compile-time conformance to the core ports.
var (
	_ core.JobRepository    = (*MockJobRepository)(nil)
	_ core.ReaperRepository = (*MockReaperRepository)(nil)
	_ core.LeadRepository   = (*MockLeadRepository)(nil)
	_ core.TenantRepository = (*MockTenantRepository)(nil)
	_ core.UsageRepository  = (*MockUsageRepository)(nil)
	_ core.DedupeCache      = (*MemoryDedupeCache)(nil)
)

// MockJobRepository is a scriptable JobRepository double. Defaults: Create
// echoes the request as a pending job, lookups miss, guarded writes apply,
// and the queue is idle.
type MockJobRepository struct {
	CreateFunc              func(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByIDFunc             func(ctx context.Context, id string) (*model.Job, error)
	NextEligibleIDFunc      func(ctx context.Context) (string, error)
	ClaimForRunFunc         func(ctx context.Context, id string) (*model.Job, error)
	FinalizeSuccessFunc     func(ctx context.Context, params core.FinalizeSuccessParams) (bool, error)
	ScheduleRetryFunc       func(ctx context.Context, params core.ScheduleRetryParams) (bool, error)
	MarkFailedFunc          func(ctx context.Context, id, errMsg string) (bool, error)
	CountActiveByTenantFunc func(ctx context.Context, tenantID string) (int, error)
	ListFunc                func(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	StatsFunc               func(ctx context.Context) (*model.JobStats, error)

	mu               sync.Mutex
	created          []*model.CreateJobRequest
	claimed          []string
	finalizeCalls    []core.FinalizeSuccessParams
	retryCalls       []core.ScheduleRetryParams
	markFailedCalls  []MarkFailedCall
	nextEligibleHits int
}

// MarkFailedCall records one MarkFailed invocation.
type MarkFailedCall struct {
	ID       string
	ErrorMsg string
}

func (m *MockJobRepository) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	m.mu.Lock()
	m.created = append(m.created, req)
	seq := len(m.created)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return &model.Job{
		ID:        fmt.Sprintf("job-%d", seq),
		TenantID:  req.TenantID,
		Type:      req.Type,
		Targets:   req.Targets,
		Status:    model.JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, data.ErrJobNotFound
}

func (m *MockJobRepository) NextEligibleID(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.nextEligibleHits++
	m.mu.Unlock()

	if m.NextEligibleIDFunc != nil {
		return m.NextEligibleIDFunc(ctx)
	}
	return "", model.ErrNoEligibleJobs
}

func (m *MockJobRepository) ClaimForRun(ctx context.Context, id string) (*model.Job, error) {
	m.mu.Lock()
	m.claimed = append(m.claimed, id)
	m.mu.Unlock()

	if m.ClaimForRunFunc != nil {
		return m.ClaimForRunFunc(ctx, id)
	}
	return nil, data.ErrJobNotFound
}

func (m *MockJobRepository) FinalizeSuccess(ctx context.Context, params core.FinalizeSuccessParams) (bool, error) {
	m.mu.Lock()
	m.finalizeCalls = append(m.finalizeCalls, params)
	m.mu.Unlock()

	if m.FinalizeSuccessFunc != nil {
		return m.FinalizeSuccessFunc(ctx, params)
	}
	return true, nil
}

func (m *MockJobRepository) ScheduleRetry(ctx context.Context, params core.ScheduleRetryParams) (bool, error) {
	m.mu.Lock()
	m.retryCalls = append(m.retryCalls, params)
	m.mu.Unlock()

	if m.ScheduleRetryFunc != nil {
		return m.ScheduleRetryFunc(ctx, params)
	}
	return true, nil
}

func (m *MockJobRepository) MarkFailed(ctx context.Context, id, errMsg string) (bool, error) {
	m.mu.Lock()
	m.markFailedCalls = append(m.markFailedCalls, MarkFailedCall{ID: id, ErrorMsg: errMsg})
	m.mu.Unlock()

	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id, errMsg)
	}
	return true, nil
}

func (m *MockJobRepository) CountActiveByTenant(ctx context.Context, tenantID string) (int, error) {
	if m.CountActiveByTenantFunc != nil {
		return m.CountActiveByTenantFunc(ctx, tenantID)
	}
	return 0, nil
}

func (m *MockJobRepository) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, opts)
	}
	return nil, nil
}

func (m *MockJobRepository) Stats(ctx context.Context) (*model.JobStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return &model.JobStats{}, nil
}

// Created returns every CreateJobRequest passed to Create.
func (m *MockJobRepository) Created() []*model.CreateJobRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.CreateJobRequest(nil), m.created...)
}

// Claimed returns the job ids passed to ClaimForRun, in order.
func (m *MockJobRepository) Claimed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.claimed...)
}

// FinalizeCalls returns every FinalizeSuccess invocation.
func (m *MockJobRepository) FinalizeCalls() []core.FinalizeSuccessParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.FinalizeSuccessParams(nil), m.finalizeCalls...)
}

// RetryCalls returns every ScheduleRetry invocation.
func (m *MockJobRepository) RetryCalls() []core.ScheduleRetryParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ScheduleRetryParams(nil), m.retryCalls...)
}

// MarkFailedCalls returns every MarkFailed invocation.
func (m *MockJobRepository) MarkFailedCalls() []MarkFailedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MarkFailedCall(nil), m.markFailedCalls...)
}

// NextEligibleHits returns how many times the poll loop asked for work.
func (m *MockJobRepository) NextEligibleHits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextEligibleHits
}

// MockReaperRepository is a scriptable ReaperRepository double.
type MockReaperRepository struct {
	ReapStaleFunc func(ctx context.Context, params core.ReapStaleParams) (core.ReapStaleResult, error)

	mu    sync.Mutex
	calls []core.ReapStaleParams
}

func (m *MockReaperRepository) ReapStale(ctx context.Context, params core.ReapStaleParams) (core.ReapStaleResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.mu.Unlock()

	if m.ReapStaleFunc != nil {
		return m.ReapStaleFunc(ctx, params)
	}
	return core.ReapStaleResult{}, nil
}

// Calls returns every ReapStale invocation.
func (m *MockReaperRepository) Calls() []core.ReapStaleParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ReapStaleParams(nil), m.calls...)
}

// MockLeadRepository is a scriptable LeadRepository double. By default
// CreateBatch reports every row inserted.
type MockLeadRepository struct {
	CreateBatchFunc func(ctx context.Context, leads []*model.CreateLeadRequest) (int, error)
	CountByJobFunc  func(ctx context.Context, jobID string) (int, error)
	ListByJobFunc   func(ctx context.Context, jobID string, limit int) ([]*model.Lead, error)

	mu      sync.Mutex
	batches [][]*model.CreateLeadRequest
}

func (m *MockLeadRepository) CreateBatch(ctx context.Context, leads []*model.CreateLeadRequest) (int, error) {
	m.mu.Lock()
	m.batches = append(m.batches, leads)
	m.mu.Unlock()

	if m.CreateBatchFunc != nil {
		return m.CreateBatchFunc(ctx, leads)
	}
	return len(leads), nil
}

func (m *MockLeadRepository) CountByJob(ctx context.Context, jobID string) (int, error) {
	if m.CountByJobFunc != nil {
		return m.CountByJobFunc(ctx, jobID)
	}
	return 0, nil
}

func (m *MockLeadRepository) ListByJob(ctx context.Context, jobID string, limit int) ([]*model.Lead, error) {
	if m.ListByJobFunc != nil {
		return m.ListByJobFunc(ctx, jobID, limit)
	}
	return nil, nil
}

// Batches returns every batch passed to CreateBatch.
func (m *MockLeadRepository) Batches() [][]*model.CreateLeadRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]*model.CreateLeadRequest(nil), m.batches...)
}

// MockTenantRepository is a scriptable TenantRepository double. Lookups miss
// by default.
type MockTenantRepository struct {
	CreateFunc  func(ctx context.Context, req *model.CreateTenantRequest) (*model.Tenant, error)
	GetByIDFunc func(ctx context.Context, id string) (*model.Tenant, error)
}

func (m *MockTenantRepository) Create(ctx context.Context, req *model.CreateTenantRequest) (*model.Tenant, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, data.ErrTenantNotFound
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, data.ErrTenantNotFound
}

// MockUsageRepository is a scriptable UsageRepository double. Increments
// succeed and months read back empty by default.
type MockUsageRepository struct {
	IncrementFunc func(ctx context.Context, params core.IncrementUsageParams) error
	GetMonthFunc  func(ctx context.Context, tenantID string, monthStart time.Time) (*model.MonthlyUsage, error)

	mu         sync.Mutex
	increments []core.IncrementUsageParams
}

func (m *MockUsageRepository) Increment(ctx context.Context, params core.IncrementUsageParams) error {
	m.mu.Lock()
	m.increments = append(m.increments, params)
	m.mu.Unlock()

	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, params)
	}
	return nil
}

func (m *MockUsageRepository) GetMonth(ctx context.Context, tenantID string, monthStart time.Time) (*model.MonthlyUsage, error) {
	if m.GetMonthFunc != nil {
		return m.GetMonthFunc(ctx, tenantID, monthStart)
	}
	return &model.MonthlyUsage{TenantID: tenantID, MonthStart: monthStart}, nil
}

// Increments returns every Increment invocation.
func (m *MockUsageRepository) Increments() []core.IncrementUsageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.IncrementUsageParams(nil), m.increments...)
}

// MemoryDedupeCache is an in-memory DedupeCache for unit tests.
type MemoryDedupeCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

// NewMemoryDedupeCache creates an empty in-memory dedupe cache.
func NewMemoryDedupeCache() *MemoryDedupeCache {
	return &MemoryDedupeCache{keys: make(map[string]bool)}
}

func (c *MemoryDedupeCache) Seen(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key], nil
}

func (c *MemoryDedupeCache) MarkSeen(_ context.Context, key string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = true
	return nil
}

// Len returns how many keys have been marked.
func (c *MemoryDedupeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
