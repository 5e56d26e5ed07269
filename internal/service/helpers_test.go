package service

import (
	"sync"
	"time"
)

// testNow is the frozen clock shared by service unit tests.
var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string {
	return &s
}

// capturedMetric is one Count emission seen by captureSink.
type capturedMetric struct {
	name  string
	value int64
	tags  map[string]string
}

// captureSink records statsd counts for assertions; gauges and timings are
// accepted and dropped.
type captureSink struct {
	mu     sync.Mutex
	counts []capturedMetric
}

func (c *captureSink) Count(name string, value int64, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts = append(c.counts, capturedMetric{name: name, value: value, tags: tags})
}

func (c *captureSink) Gauge(string, float64, map[string]string) {}

func (c *captureSink) Timing(string, time.Duration, map[string]string) {}

// transitions returns the transition tag of every job.transition count.
func (c *captureSink) transitions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, m := range c.counts {
		if m.name == "job.transition" {
			out = append(out, m.tags["transition"])
		}
	}
	return out
}

// countValue returns the summed value of counts with the given metric name.
func (c *captureSink) countValue(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, m := range c.counts {
		if m.name == name {
			total += m.value
		}
	}
	return total
}

// transitionCount returns the summed value of job.transition counts carrying
// the given transition tag.
func (c *captureSink) transitionCount(transition string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, m := range c.counts {
		if m.name == "job.transition" && m.tags["transition"] == transition {
			total += m.value
		}
	}
	return total
}
