// Package statsd emits application metrics using the StatsD line protocol
// with DataDog-style tags. A nil *Client is a valid no-op sink, so callers
// can thread an optional metrics dependency without guarding every emission
// site.
package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config describes how to connect to a StatsD-compatible sink.
type Config struct {
	Enabled bool
	Address string
	Prefix  string
	Logger  *slog.Logger
}

// Client sends metrics over UDP. It is safe for concurrent use, and a nil
// *Client discards everything.
type Client struct {
	prefix string
	logger *slog.Logger

	mu   sync.Mutex
	conn net.Conn // nil when emission is disabled or the client is closed
}

var _ Sink = (*Client)(nil)

const dialTimeout = 5 * time.Second

// NewClient dials the configured StatsD endpoint. A disabled config or blank
// address yields an inert client rather than an error.
func NewClient(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := &Client{
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		logger: logger,
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}
	client.conn = conn

	return client, nil
}

// Enabled reports whether emissions will reach the wire.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.emit(name, strconv.FormatInt(value, 10), "c", tags)
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.emit(name, formatFloat(value), "g", tags)
}

// Timing records a timing metric in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	c.emit(name, formatFloat(float64(value)/float64(time.Millisecond)), "ms", tags)
}

// Close releases the underlying UDP connection. Further emissions become
// no-ops.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) emit(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	metric := c.qualify(name)
	if metric == "" {
		return
	}

	var line strings.Builder
	line.WriteString(metric)
	line.WriteByte(':')
	line.WriteString(value)
	line.WriteByte('|')
	line.WriteString(kind)
	appendTags(&line, tags)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}
	if _, err := c.conn.Write([]byte(line.String())); err != nil {
		c.logger.Debug("statsd write failed", "metric", metric, "error", err)
	}
}

// qualify normalises a metric name and applies the client prefix. Names that
// normalise to nothing are dropped rather than emitted as a bare prefix.
func (c *Client) qualify(name string) string {
	n := normalizeName(name)
	if n == "" {
		return ""
	}
	if c.prefix == "" {
		return n
	}
	return c.prefix + "." + n
}

// normalizeName maps a free-form name onto the dotted StatsD namespace:
// spaces and slashes become underscores, redundant dots collapse.
func normalizeName(name string) string {
	n := strings.Map(func(r rune) rune {
		if r == ' ' || r == '/' {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	for strings.Contains(n, "..") {
		n = strings.ReplaceAll(n, "..", ".")
	}
	return strings.Trim(n, ".")
}

// appendTags writes the DataDog tag suffix (|#k:v,...) with keys sorted so
// emitted lines are stable.
func appendTags(line *strings.Builder, tags map[string]string) {
	clean := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := strings.TrimSpace(k); key != "" {
			clean[key] = strings.TrimSpace(v)
		}
	}
	if len(clean) == 0 {
		return
	}

	line.WriteString("|#")
	for i, k := range slices.Sorted(maps.Keys(clean)) {
		if i > 0 {
			line.WriteByte(',')
		}
		line.WriteString(k)
		line.WriteByte(':')
		line.WriteString(clean[k])
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
