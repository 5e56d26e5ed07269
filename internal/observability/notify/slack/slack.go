package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Rishet11/LeadPilot/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL   string
	Channel      string
	Username     string
	Timeout      time.Duration
	RetryLimit   int
	Client       *http.Client
	JobURLPrefix string
}

// Client delivers job failure notifications to a Slack webhook.
type Client struct {
	webhookURL   string
	channel      string
	username     string
	retryLimit   int
	jobURLPrefix string
	client       *http.Client
}

// NewClient builds a Slack webhook client. Callers should pass a validated config.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhookURL:   webhookURL,
		channel:      strings.TrimSpace(cfg.Channel),
		username:     fallbackString(strings.TrimSpace(cfg.Username), "leadpilot"),
		retryLimit:   max(cfg.RetryLimit, 0),
		jobURLPrefix: strings.TrimSpace(cfg.JobURLPrefix),
		client:       hc,
	}, nil
}

// SendJobFailure posts a formatted message to Slack.
func (c *Client) SendJobFailure(ctx context.Context, payload notify.JobFailurePayload) error {
	body, err := json.Marshal(c.formatMessage(payload))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return notify.PostJSON(ctx, c.client, "slack webhook", c.webhookURL, body, c.retryLimit)
}

func (c *Client) formatMessage(payload notify.JobFailurePayload) map[string]any {
	timestamp := payload.OccurredAt
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	text := strings.Builder{}
	writeSlackHeader(&text, payload)
	jobDisplay := c.formatJobValue(payload.JobID)
	appendSlackDetails(&text, payload, jobDisplay)
	appendSlackMetadata(&text, payload.Metadata)
	writeSlackTimestamp(&text, timestamp)

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func fallbackString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func writeSlackHeader(text *strings.Builder, payload notify.JobFailurePayload) {
	text.WriteString("*Scrape job failure alert*")
	if payload.JobType != "" {
		text.WriteString(" (")
		text.WriteString(payload.JobType)
		text.WriteByte(')')
	}
	text.WriteByte('\n')
}

func appendSlackDetails(text *strings.Builder, payload notify.JobFailurePayload, jobValue string) {
	fields := []struct {
		label string
		value string
	}{
		{"Severity", fallbackString(payload.Severity, notify.SeverityCritical)},
		{"Job", jobValue},
		{"Tenant", escapeSlackText(payload.TenantID)},
		{"Attempts", formatAttempts(payload.AttemptCount, payload.MaxAttempts)},
		{"Error class", payload.ErrorClass},
		{"Error", payload.Error},
	}

	for _, field := range fields {
		appendSlackField(text, field.label, field.value)
	}
}

func (c *Client) formatJobValue(jobID string) string {
	rawID := strings.TrimSpace(jobID)
	id := escapeSlackText(rawID)
	if id == "" {
		return ""
	}

	link := ""
	if rawID != "" {
		link = c.buildJobLink(rawID)
	}

	if link != "" {
		return fmt.Sprintf("<%s|%s>", link, id)
	}
	return id
}

func formatAttempts(attempt, maxAttempts int) string {
	if attempt <= 0 {
		return ""
	}
	if maxAttempts <= 0 {
		return strconv.Itoa(attempt)
	}
	return fmt.Sprintf("%d/%d", attempt, maxAttempts)
}

func escapeSlackText(value string) string {
	if value == "" {
		return ""
	}
	return strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(value)
}

func (c *Client) buildJobLink(jobID string) string {
	prefix := strings.TrimSpace(c.jobURLPrefix)
	if prefix == "" {
		return ""
	}

	u, err := url.Parse(prefix)
	if err != nil {
		return ""
	}
	if u.Scheme == "" || u.Host == "" {
		return ""
	}

	link, err := url.JoinPath(u.String(), jobID)
	if err != nil {
		return ""
	}

	return link
}

func appendSlackField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	text.WriteString("• ")
	text.WriteString(label)
	text.WriteString(": ")
	text.WriteString(value)
	text.WriteByte('\n')
}

func appendSlackMetadata(text *strings.Builder, metadata map[string]string) {
	if len(metadata) == 0 {
		return
	}
	text.WriteString("• Metadata:\n")
	for _, k := range slices.Sorted(maps.Keys(metadata)) {
		text.WriteString("    • ")
		text.WriteString(k)
		text.WriteString(": ")
		text.WriteString(metadata[k])
		text.WriteByte('\n')
	}
}

func writeSlackTimestamp(text *strings.Builder, timestamp time.Time) {
	text.WriteString("• Timestamp: ")
	text.WriteString(timestamp.UTC().Format(time.RFC3339))
}
