package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Job repository sentinels.
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotClaimable = errors.New("job is not claimable")

	// Tenant repository sentinels.
	ErrTenantNotFound = errors.New("tenant not found")

	// Lead repository sentinels.
	ErrLeadJobRequired = errors.New("job_id is required")
)
