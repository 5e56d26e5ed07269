// Package testutil provides testing utilities and helpers for the LeadPilot worker.
package testutil

import (
	"encoding/json"
	"fmt"

	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			Type:    model.JobTypeGoogleMaps,
			Targets: json.RawMessage(`[{"city": "Austin", "category": "dentist", "limit": 20}]`),
		},
	}
}

// WithType sets the job type.
func (b *JobRequestBuilder) WithType(jobType model.JobType) *JobRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithTenant sets the owning tenant.
func (b *JobRequestBuilder) WithTenant(tenantID string) *JobRequestBuilder {
	b.req.TenantID = &tenantID
	return b
}

// WithTargets sets the target list.
func (b *JobRequestBuilder) WithTargets(targets json.RawMessage) *JobRequestBuilder {
	b.req.Targets = targets
	return b
}

// WithTargetsString sets the target list from a string.
func (b *JobRequestBuilder) WithTargetsString(targets string) *JobRequestBuilder {
	b.req.Targets = json.RawMessage(targets)
	return b
}

// Build returns the constructed CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// Common test job request presets

// GoogleMapsJobRequest creates a Google Maps job request with default values.
func GoogleMapsJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeGoogleMaps).
		WithTargetsString(`[{"city": "Austin", "category": "dentist", "limit": 20}]`).
		Build()
}

// InstagramJobRequest creates an Instagram job request with default values.
func InstagramJobRequest() *model.CreateJobRequest {
	return NewJobRequest().
		WithType(model.JobTypeInstagram).
		WithTargetsString(`[{"hashtag": "fitnessstudio", "limit": 15}]`).
		Build()
}

// CityJobRequest creates a single-city Google Maps job request.
func CityJobRequest(city, category string, limit int) *model.CreateJobRequest {
	target := fmt.Sprintf(`[{"city": %q, "category": %q, "limit": %d}]`, city, category, limit)
	return NewJobRequest().
		WithType(model.JobTypeGoogleMaps).
		WithTargetsString(target).
		Build()
}

// LeadRequestBuilder provides a fluent interface for building CreateLeadRequest objects for testing.
type LeadRequestBuilder struct {
	req *model.CreateLeadRequest
}

// NewLeadRequest creates a new LeadRequestBuilder bound to a job.
func NewLeadRequest(jobID string) *LeadRequestBuilder {
	return &LeadRequestBuilder{
		req: &model.CreateLeadRequest{
			JobID:  jobID,
			Source: model.LeadSourceGoogleMaps,
			Name:   "Bright Smile Dental",
		},
	}
}

// WithTenant sets the owning tenant.
func (b *LeadRequestBuilder) WithTenant(tenantID string) *LeadRequestBuilder {
	b.req.TenantID = &tenantID
	return b
}

// WithSource sets the lead source.
func (b *LeadRequestBuilder) WithSource(source model.LeadSource) *LeadRequestBuilder {
	b.req.Source = source
	return b
}

// WithName sets the business or profile name.
func (b *LeadRequestBuilder) WithName(name string) *LeadRequestBuilder {
	b.req.Name = name
	return b
}

// WithPhone sets the contact phone.
func (b *LeadRequestBuilder) WithPhone(phone string) *LeadRequestBuilder {
	b.req.Phone = &phone
	return b
}

// WithWebsite sets the website URL.
func (b *LeadRequestBuilder) WithWebsite(website string) *LeadRequestBuilder {
	b.req.Website = &website
	return b
}

// WithInstagramHandle sets the Instagram handle.
func (b *LeadRequestBuilder) WithInstagramHandle(handle string) *LeadRequestBuilder {
	b.req.InstagramHandle = &handle
	return b
}

// WithCity sets the city.
func (b *LeadRequestBuilder) WithCity(city string) *LeadRequestBuilder {
	b.req.City = &city
	return b
}

// WithCategory sets the business category.
func (b *LeadRequestBuilder) WithCategory(category string) *LeadRequestBuilder {
	b.req.Category = &category
	return b
}

// WithScore sets the lead score and its reason.
func (b *LeadRequestBuilder) WithScore(score int, reason string) *LeadRequestBuilder {
	b.req.LeadScore = &score
	b.req.ScoreReason = &reason
	return b
}

// WithDedupeKey sets the dedupe key.
func (b *LeadRequestBuilder) WithDedupeKey(key string) *LeadRequestBuilder {
	b.req.DedupeKey = &key
	return b
}

// Build returns the constructed CreateLeadRequest.
func (b *LeadRequestBuilder) Build() *model.CreateLeadRequest {
	return b.req
}
