package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeWorker runs the scrape-job worker loop.
	ServiceModeWorker ServiceMode = "worker"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeWorker,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeWorker:
			services[mode] = true
		default:
			return nil, fmt.Errorf("invalid service name: %q (valid options: worker)", serviceName)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// WorkerConfig contains scrape-job worker configuration.
//
// The worker claims eligible jobs one at a time, executes them against the
// scrape provider, and schedules retries with exponential backoff. A stale-job
// sweep at the top of each poll cycle recovers jobs abandoned mid-run.
type WorkerConfig struct {
	// MaxAttempts is the maximum number of execution attempts per job,
	// including the first.
	MaxAttempts int `env:"MAX_ATTEMPTS" envDefault:"3"`

	// BaseBackoff is the retry delay after the first failed attempt.
	// Subsequent delays double: base, 2*base, 4*base, ...
	BaseBackoff time.Duration `env:"BASE_BACKOFF" envDefault:"30s"`

	// StuckTimeout is how long a job may sit in running status before the
	// stale sweep reclaims it.
	StuckTimeout time.Duration `env:"STUCK_TIMEOUT" envDefault:"15m"`

	// PollInterval is how long the worker sleeps when no job is eligible.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.MaxAttempts < 1 {
		w.MaxAttempts = 1
	}
	if w.BaseBackoff < 1*time.Second {
		w.BaseBackoff = 1 * time.Second
	}
	if w.StuckTimeout < 30*time.Second {
		w.StuckTimeout = 30 * time.Second
	}
	if w.PollInterval < 100*time.Millisecond {
		w.PollInterval = 100 * time.Millisecond
	}
}
