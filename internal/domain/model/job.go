// Package model defines the core data types and structures used throughout the LeadPilot worker.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobType selects which target executor handles a scrape job.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobType string

// JobStatus represents the current status of a scrape job.
type JobStatus string

const (
	// JobTypeGoogleMaps represents a Google Maps business-listing scrape job.
	JobTypeGoogleMaps JobType = "google_maps"
	// JobTypeInstagram represents an Instagram profile scrape job.
	JobTypeInstagram JobType = "instagram"

	// JobStatusPending indicates a job is waiting to be claimed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a job is currently being executed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates every target succeeded.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusCompletedWithErrors indicates some targets failed but leads were produced.
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	// JobStatusFailed indicates the job failed permanently.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobType to allow env parsing.
func (t *JobType) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jt := JobType(v)
	if jt.Valid() {
		*t = jt
		return nil
	}
	return fmt.Errorf("invalid JobType: %q", v)
}

// ErrNoEligibleJobs is returned when no pending job is eligible for claiming.
var ErrNoEligibleJobs = errors.New("no eligible jobs")

// Valid returns true if the JobType is valid.
func (t JobType) Valid() bool {
	return t == JobTypeGoogleMaps || t == JobTypeInstagram
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusCompletedWithErrors || s == JobStatusFailed
}

// Terminal returns true when the status ends the job's lifecycle.
// A pending job with next_retry_at set is retry-scheduled, not terminal.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusCompletedWithErrors || s == JobStatusFailed
}

// Claimable returns true when the runner may claim a job in this status.
// Running is claimable so a wedged job handed back by the reaper path can be
// re-entered without a separate state.
func (s JobStatus) Claimable() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job is the unit of work: one scrape request covering an ordered list of targets.
type Job struct {
	ID           string          `json:"id"                       db:"id"`
	TenantID     *string         `json:"tenant_id,omitempty"      db:"tenant_id"`
	Type         JobType         `json:"job_type"                 db:"job_type"`
	Targets      json.RawMessage `json:"targets"                  db:"targets"`
	Status       JobStatus       `json:"status"                   db:"status"`
	AttemptCount int             `json:"attempt_count"            db:"attempt_count"`
	NextRetryAt  *time.Time      `json:"next_retry_at,omitempty"  db:"next_retry_at"`
	LeadsFound   int             `json:"leads_found"              db:"leads_found"`
	ErrorMessage *string         `json:"error_message,omitempty"  db:"error_message"`
	StartedAt    *time.Time      `json:"started_at,omitempty"     db:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"   db:"completed_at"`
	CreatedAt    time.Time       `json:"created_at"               db:"created_at"`
}

// EligibleAt reports whether the job may be claimed at the given instant.
func (j *Job) EligibleAt(now time.Time) bool {
	if j.Status != JobStatusPending {
		return false
	}
	return j.NextRetryAt == nil || !j.NextRetryAt.After(now)
}

// CreateJobRequest represents a request to enqueue a new scrape job.
type CreateJobRequest struct {
	TenantID *string         `json:"tenant_id,omitempty"`
	Type     JobType         `json:"job_type"`
	Targets  json.RawMessage `json:"targets"`
}

// Validate validates the CreateJobRequest fields.
func (r *CreateJobRequest) Validate() error {
	if !r.Type.Valid() {
		return errors.New("invalid job type")
	}
	if r.TenantID != nil {
		if _, err := uuid.Parse(*r.TenantID); err != nil {
			return errors.New("tenant id must be a valid UUID")
		}
	}
	if len(r.Targets) == 0 {
		return errors.New("targets are required")
	}
	var targets []json.RawMessage
	if err := json.Unmarshal(r.Targets, &targets); err != nil {
		return errors.New("targets must be a JSON array")
	}
	if len(targets) == 0 {
		return errors.New("at least one target is required")
	}
	return nil
}

// ExecutionOutcome is the target-executor contract result: what one execution
// attempt produced across all targets. Per-target failures are isolated and
// counted here; they never surface as executor errors.
type ExecutionOutcome struct {
	LeadsProduced int
	FailedTargets int
	TargetErrors  []string
}

// JobStats represents counts of jobs in each state.
type JobStats struct {
	Pending             int `json:"pending"`
	Running             int `json:"running"`
	Completed           int `json:"completed"`
	CompletedWithErrors int `json:"completed_with_errors"`
	Failed              int `json:"failed"`
}

// JobListOptions filters job listings for the admin surface.
type JobListOptions struct {
	TenantID *string
	Status   JobStatus
	Limit    int
}
