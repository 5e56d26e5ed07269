// Package scrape contains simple hand-written test doubles for the scrape
// ports: the hosted-actor provider and the per-job-type executors.
package scrape

import (
	"context"
	"sync"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// Ensure compile-time conformance to the core ports.
var (
	_ core.ScrapeProvider = (*MockScrapeProvider)(nil)
	_ core.TargetExecutor = (*MockTargetExecutor)(nil)
)

// MockScrapeProvider is a scriptable ScrapeProvider double. By default every
// run returns Items (nil unless set).
type MockScrapeProvider struct {
	RunActorFunc func(ctx context.Context, params core.RunActorParams) ([]map[string]any, error)

	// Items is the canned dataset returned when RunActorFunc is unset.
	Items []map[string]any

	mu    sync.Mutex
	calls []core.RunActorParams
}

func (m *MockScrapeProvider) RunActor(ctx context.Context, params core.RunActorParams) ([]map[string]any, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.mu.Unlock()

	if m.RunActorFunc != nil {
		return m.RunActorFunc(ctx, params)
	}
	return m.Items, nil
}

// Calls returns every RunActor invocation, in order.
func (m *MockScrapeProvider) Calls() []core.RunActorParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.RunActorParams(nil), m.calls...)
}

// MockTargetExecutor is a scriptable TargetExecutor double. By default every
// attempt succeeds with Outcome (an empty outcome unless set).
type MockTargetExecutor struct {
	ExecuteFunc func(ctx context.Context, params core.ExecuteParams) (*model.ExecutionOutcome, error)

	// Outcome is returned when ExecuteFunc is unset.
	Outcome *model.ExecutionOutcome

	mu    sync.Mutex
	calls []core.ExecuteParams
}

func (m *MockTargetExecutor) Execute(ctx context.Context, params core.ExecuteParams) (*model.ExecutionOutcome, error) {
	m.mu.Lock()
	m.calls = append(m.calls, params)
	m.mu.Unlock()

	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, params)
	}
	if m.Outcome != nil {
		return m.Outcome, nil
	}
	return &model.ExecutionOutcome{}, nil
}

// Calls returns every Execute invocation, in order.
func (m *MockTargetExecutor) Calls() []core.ExecuteParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.ExecuteParams(nil), m.calls...)
}
