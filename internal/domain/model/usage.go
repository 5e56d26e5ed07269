package model

import "time"

// MonthlyUsage is one tenant's usage counters for a calendar month.
// Rows are keyed (tenant_id, month_start) and upserted by the usage repo.
type MonthlyUsage struct {
	TenantID       string    `json:"tenant_id"       db:"tenant_id"`
	MonthStart     time.Time `json:"month_start"     db:"month_start"`
	LeadsGenerated int       `json:"leads_generated" db:"leads_generated"`
	ScrapeJobs     int       `json:"scrape_jobs"     db:"scrape_jobs"`
	CreatedAt      time.Time `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"      db:"updated_at"`
}

// MonthStart truncates an instant to the first day of its UTC month.
func MonthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}
