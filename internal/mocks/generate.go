// Package mocks provides mock implementations for testing the job worker.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockJobRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(job, nil)
//
// The store and scrape subpackages hold simple hand-written doubles for
// tests that don't need gomock's expectation machinery.
package mocks

// Generate mock for JobRepository interface from internal/core package.
// This creates MockJobRepository with methods for all JobRepository interface methods:
// Create, GetByID, NextEligibleID, ClaimForRun, FinalizeSuccess, ScheduleRetry, MarkFailed, CountActiveByTenant, List, Stats
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_repository_mock.go github.com/Rishet11/LeadPilot/internal/core JobRepository

// Generate mock for ReaperRepository interface from internal/core package.
// This creates MockReaperRepository with methods for all ReaperRepository interface methods:
// ReapStale
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=reaper_repository_mock.go github.com/Rishet11/LeadPilot/internal/core ReaperRepository

// Generate mock for LeadRepository interface from internal/core package.
// This creates MockLeadRepository with methods for all LeadRepository interface methods:
// CreateBatch, CountByJob, ListByJob
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=lead_repository_mock.go github.com/Rishet11/LeadPilot/internal/core LeadRepository

// Generate mock for TenantRepository interface from internal/core package.
// This creates MockTenantRepository with methods for all TenantRepository interface methods:
// Create, GetByID
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=tenant_repository_mock.go github.com/Rishet11/LeadPilot/internal/core TenantRepository

// Generate mock for UsageRepository interface from internal/core package.
// This creates MockUsageRepository with methods for all UsageRepository interface methods:
// Increment, GetMonth
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=usage_repository_mock.go github.com/Rishet11/LeadPilot/internal/core UsageRepository

// Generate mock for ScrapeProvider interface from internal/core package.
// This creates MockScrapeProvider with methods for all ScrapeProvider interface methods:
// RunActor
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=scrape_provider_mock.go github.com/Rishet11/LeadPilot/internal/core ScrapeProvider

// Generate mock for TargetExecutor interface from internal/core package.
// This creates MockTargetExecutor with methods for all TargetExecutor interface methods:
// Execute
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=target_executor_mock.go github.com/Rishet11/LeadPilot/internal/core TargetExecutor
