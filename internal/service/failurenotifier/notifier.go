// Package failurenotifier fans terminal job failures out to the configured
// alerting sinks (Slack, PagerDuty).
package failurenotifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Rishet11/LeadPilot/internal/observability/notify"
)

// SinkRegistration pairs a sink implementation with the name used in
// delivery logs.
type SinkRegistration struct {
	Name string
	Sink notify.Sink
}

// Options configures the failure notifier service.
type Options struct {
	Logger *slog.Logger
	Sinks  []SinkRegistration
}

// Service broadcasts one failure payload to every registered sink.
type Service struct {
	logger *slog.Logger
	sinks  []SinkRegistration
}

// NewService constructs a failure notifier. Nil sinks are skipped and
// unnamed ones get positional names.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "failure_notifier")
	}

	sinks := make([]SinkRegistration, 0, len(opts.Sinks))
	for i, entry := range opts.Sinks {
		if entry.Sink == nil {
			continue
		}
		if entry.Name == "" {
			entry.Name = fmt.Sprintf("sink_%d", i+1)
		}
		sinks = append(sinks, entry)
	}

	return &Service{logger: logger, sinks: sinks}
}

// Enabled reports whether the notifier has any active sinks.
func (s *Service) Enabled() bool {
	return len(s.sinks) > 0
}

// NotifyJobFailure broadcasts payload to all sinks concurrently and returns
// once every delivery has finished. Delivery errors are logged, never
// returned.
func (s *Service) NotifyJobFailure(ctx context.Context, payload notify.JobFailurePayload) {
	if !s.Enabled() {
		return
	}
	if payload.Severity == "" {
		payload.Severity = notify.SeverityCritical
	}

	var wg sync.WaitGroup
	for _, entry := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliver(ctx, entry, payload)
		}()
	}
	wg.Wait()
}

func (s *Service) deliver(ctx context.Context, entry SinkRegistration, payload notify.JobFailurePayload) {
	if err := entry.Sink.SendJobFailure(ctx, payload); err != nil {
		s.logger.Error("failure notification delivery failed",
			"sink", entry.Name,
			"job_id", payload.JobID,
			"job_type", payload.JobType,
			"error", err,
		)
		return
	}
	s.logger.Debug("failure notification delivered", "sink", entry.Name, "job_id", payload.JobID)
}
