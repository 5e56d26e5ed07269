// Package pagerduty pages on-call staff about terminal job failures through
// the PagerDuty Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Rishet11/LeadPilot/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client publishes trigger events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	retryLimit int
	endpoint   string
	client     *http.Client
}

// event is the Events API v2 enqueue document.
type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component,omitempty"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

// NewClient constructs a PagerDuty events client from config. Callers must
// provide a routing key.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: key,
		source:     valueOr(strings.TrimSpace(cfg.Source), "leadpilot"),
		component:  valueOr(strings.TrimSpace(cfg.Component), "leadpilot"),
		retryLimit: max(cfg.RetryLimit, 0),
		endpoint:   APIEndpoint,
		client:     hc,
	}, nil
}

// SendJobFailure submits a trigger event to PagerDuty.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return notify.PostJSON(ctx, c.client, "pagerduty events api", c.endpoint, body, c.retryLimit)
}

func (c *Client) buildEvent(payload notify.JobFailurePayload) event {
	severity := strings.ToLower(strings.TrimSpace(payload.Severity))
	if severity == "" {
		severity = notify.SeverityCritical
	}

	occurredAt := payload.OccurredAt.UTC()
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	details := map[string]any{
		"job_id":      payload.JobID,
		"job_type":    payload.JobType,
		"tenant_id":   payload.TenantID,
		"attempt":     payload.AttemptCount,
		"max":         payload.MaxAttempts,
		"error":       payload.Error,
		"error_class": payload.ErrorClass,
	}
	for k, v := range payload.Metadata {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    strings.Trim(payload.JobType+":"+payload.JobID, ":"),
		Payload: eventPayload{
			Summary: fmt.Sprintf(
				"Scrape job %s (%s) failed",
				valueOr(payload.JobID, "unknown"),
				valueOr(payload.JobType, "unknown"),
			),
			Severity:      severity,
			Source:        c.source,
			Component:     c.component,
			Timestamp:     occurredAt.Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

func valueOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
