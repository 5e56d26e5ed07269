package model

import (
	"errors"
	"strings"
	"time"
)

// LeadSource identifies which scrape pipeline produced a lead.
type LeadSource string

const (
	// LeadSourceGoogleMaps marks leads produced by the Google Maps pipeline.
	LeadSourceGoogleMaps LeadSource = "google_maps"
	// LeadSourceInstagram marks leads produced by the Instagram pipeline.
	LeadSourceInstagram LeadSource = "instagram"
)

// Valid returns true if the LeadSource is valid.
func (s LeadSource) Valid() bool {
	return s == LeadSourceGoogleMaps || s == LeadSourceInstagram
}

// Lead is one scraped business or profile, persisted per target as the
// executor goes so committed progress survives a later target's failure.
type Lead struct {
	ID              string     `json:"id"                          db:"id"`
	TenantID        *string    `json:"tenant_id,omitempty"         db:"tenant_id"`
	JobID           string     `json:"job_id"                      db:"job_id"`
	Source          LeadSource `json:"source"                      db:"source"`
	Name            string     `json:"name"                        db:"name"`
	Phone           *string    `json:"phone,omitempty"             db:"phone"`
	Website         *string    `json:"website,omitempty"           db:"website"`
	InstagramHandle *string    `json:"instagram_handle,omitempty"  db:"instagram_handle"`
	City            *string    `json:"city,omitempty"              db:"city"`
	Category        *string    `json:"category,omitempty"          db:"category"`
	Country         *string    `json:"country,omitempty"           db:"country"`
	Rating          *float64   `json:"rating,omitempty"            db:"rating"`
	ReviewsCount    *int       `json:"reviews_count,omitempty"     db:"reviews_count"`
	LeadScore       *int       `json:"lead_score,omitempty"        db:"lead_score"`
	ScoreReason     *string    `json:"score_reason,omitempty"      db:"score_reason"`
	OutreachMessage *string    `json:"outreach_message,omitempty"  db:"outreach_message"`
	DedupeKey       *string    `json:"dedupe_key,omitempty"        db:"dedupe_key"`
	CreatedAt       time.Time  `json:"created_at"                  db:"created_at"`
}

// CreateLeadRequest represents one lead to persist for a job target.
type CreateLeadRequest struct {
	TenantID        *string
	JobID           string
	Source          LeadSource
	Name            string
	Phone           *string
	Website         *string
	InstagramHandle *string
	City            *string
	Category        *string
	Country         *string
	Rating          *float64
	ReviewsCount    *int
	LeadScore       *int
	ScoreReason     *string
	OutreachMessage *string
	DedupeKey       *string
}

// Normalize normalizes the CreateLeadRequest fields.
func (r *CreateLeadRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.DedupeKey != nil {
		k := strings.ToLower(strings.TrimSpace(*r.DedupeKey))
		if k == "" {
			r.DedupeKey = nil
		} else {
			r.DedupeKey = &k
		}
	}
}

// Validate validates the CreateLeadRequest fields.
func (r *CreateLeadRequest) Validate() error {
	if r.JobID == "" {
		return errors.New("job_id is required")
	}
	if !r.Source.Valid() {
		return errors.New("invalid lead source")
	}
	if r.Name == "" {
		return errors.New("name is required")
	}
	return nil
}
