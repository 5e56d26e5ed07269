package config

import (
	"strings"
	"time"
)

// ScrapeConfig contains scrape provider (Apify) configuration.
type ScrapeConfig struct {
	// BaseURL is the provider API root.
	BaseURL string `env:"BASE_URL" envDefault:"https://api.apify.com"`

	// Token authenticates run-sync requests. Required outside of tests.
	Token string `env:"TOKEN"`

	// GoogleMapsActor is the actor slug used for google_maps targets.
	GoogleMapsActor string `env:"GOOGLE_MAPS_ACTOR" envDefault:"compass~crawler-google-places"`

	// InstagramActor is the actor slug used for instagram targets.
	InstagramActor string `env:"INSTAGRAM_ACTOR" envDefault:"apify~instagram-search-scraper"`

	// Timeout bounds a single synchronous actor run, including dataset download.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"120s"`

	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"10485760"`
}

// Sanitize applies guardrails to scrape provider configuration values.
func (s *ScrapeConfig) Sanitize() {
	s.BaseURL = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if s.BaseURL == "" {
		s.BaseURL = "https://api.apify.com"
	}
	s.Token = strings.TrimSpace(s.Token)
	if s.GoogleMapsActor = strings.TrimSpace(s.GoogleMapsActor); s.GoogleMapsActor == "" {
		s.GoogleMapsActor = "compass~crawler-google-places"
	}
	if s.InstagramActor = strings.TrimSpace(s.InstagramActor); s.InstagramActor == "" {
		s.InstagramActor = "apify~instagram-search-scraper"
	}
	if s.Timeout < 5*time.Second {
		s.Timeout = 5 * time.Second
	}
	if s.MaxBodyBytes < 64*1024 {
		s.MaxBodyBytes = 64 * 1024
	}
}
