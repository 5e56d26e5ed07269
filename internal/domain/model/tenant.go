package model

import (
	"errors"
	"strings"
	"time"
)

// Tenant is a paying (or free-tier) account that owns jobs, leads, and usage counters.
type Tenant struct {
	ID                 string    `json:"id"                  db:"id"`
	Name               string    `json:"name"                db:"name"`
	PlanTier           string    `json:"plan_tier"           db:"plan_tier"`
	SubscriptionStatus *string   `json:"subscription_status" db:"subscription_status"`
	CreatedAt          time.Time `json:"created_at"          db:"created_at"`
}

// CreateTenantRequest represents a request to create a tenant.
type CreateTenantRequest struct {
	Name     string `json:"name"`
	PlanTier string `json:"plan_tier,omitempty"`
}

// Normalize normalizes the CreateTenantRequest fields.
func (r *CreateTenantRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.PlanTier = strings.ToLower(strings.TrimSpace(r.PlanTier))
	if r.PlanTier == "" {
		r.PlanTier = string(PlanTierFree)
	}
}

// Validate validates the CreateTenantRequest fields.
func (r *CreateTenantRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if !KnownPlanTier(r.PlanTier) {
		return errors.New("unknown plan tier")
	}
	return nil
}
