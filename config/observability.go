package config

import (
	"strings"
	"time"
)

const observabilityDefaultName = "leadpilot"

// ObservabilityConfig groups settings for metrics emission and job-failure
// alert fan-out. All env names live under OBSERVABILITY_, applied as an
// envPrefix where AppConfig embeds this struct.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig       `envPrefix:"METRICS_"`
	Notifications ObservabilityNotificationsConfig `envPrefix:"NOTIFICATIONS_"`
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls the StatsD sink.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"ENABLED"        envDefault:"false"`
	StatsdAddress string `env:"STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
}

// Sanitize trims the address; a blank address forces metrics off.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled reports whether metrics emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// ObservabilityNotificationsConfig controls job-failure alert delivery. The
// top-level Enabled flag is a master switch: when off, both sinks stay off
// regardless of their own flags.
type ObservabilityNotificationsConfig struct {
	Enabled    bool          `env:"ENABLED"     envDefault:"false"`
	Timeout    time.Duration `env:"TIMEOUT"     envDefault:"5s"`
	RetryLimit int           `env:"RETRY_LIMIT" envDefault:"3"`

	Slack     SlackNotificationConfig     `envPrefix:"SLACK_"`
	PagerDuty PagerDutyNotificationConfig `envPrefix:"PAGERDUTY_"`
}

// Sanitize normalises delivery settings and resolves each sink's effective
// enablement: a sink runs only when the master switch is on and its own
// required credential is present.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	c.RetryLimit = max(c.RetryLimit, 0)

	c.Slack.sanitize()
	c.PagerDuty.sanitize()

	c.Slack.Enabled = c.Enabled && c.Slack.Enabled && c.Slack.WebhookURL != ""
	c.PagerDuty.Enabled = c.Enabled && c.PagerDuty.Enabled && c.PagerDuty.RoutingKey != ""
}

// SlackNotificationConfig controls Slack webhook fan-out.
type SlackNotificationConfig struct {
	Enabled      bool   `env:"ENABLED"  envDefault:"false"`
	WebhookURL   string `env:"WEBHOOK_URL"`
	Channel      string `env:"CHANNEL"`
	Username     string `env:"USERNAME" envDefault:"leadpilot"`
	JobURLPrefix string `env:"JOB_URL_PREFIX"`
}

func (c *SlackNotificationConfig) sanitize() {
	c.WebhookURL = strings.TrimSpace(c.WebhookURL)
	c.Channel = strings.TrimSpace(c.Channel)
	c.JobURLPrefix = strings.TrimSpace(c.JobURLPrefix)
	if c.Username = strings.TrimSpace(c.Username); c.Username == "" {
		c.Username = observabilityDefaultName
	}
}

// PagerDutyNotificationConfig controls PagerDuty Events API v2 fan-out.
type PagerDutyNotificationConfig struct {
	Enabled    bool   `env:"ENABLED"   envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE"    envDefault:"leadpilot"`
	Component  string `env:"COMPONENT" envDefault:"leadpilot"`
}

func (c *PagerDutyNotificationConfig) sanitize() {
	c.RoutingKey = strings.TrimSpace(c.RoutingKey)
	if c.Source = strings.TrimSpace(c.Source); c.Source == "" {
		c.Source = observabilityDefaultName
	}
	if c.Component = strings.TrimSpace(c.Component); c.Component == "" {
		c.Component = observabilityDefaultName
	}
}
