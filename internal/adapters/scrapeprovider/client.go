// Package scrapeprovider implements the HTTP client for the hosted
// scraping-actor API and the mapping from raw actor items to leads.
package scrapeprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Rishet11/LeadPilot/internal/core"
)

const (
	defaultTimeout      = 120 * time.Second
	defaultMaxBodyBytes = 10 * 1024 * 1024

	// errorBodyLimit bounds how much of a non-2xx response body ends up in
	// the returned error.
	errorBodyLimit = 4 * 1024
)

// Options configures the provider client.
type Options struct {
	BaseURL      string
	Token        string
	Timeout      time.Duration
	MaxBodyBytes int64
	Client       *http.Client
	Logger       *slog.Logger
}

// Client runs provider actors synchronously over HTTP. It is safe for
// concurrent use.
type Client struct {
	baseURL      string
	token        string
	maxBodyBytes int64
	client       *http.Client
	logger       *slog.Logger
}

var _ core.ScrapeProvider = (*Client)(nil)

// NewClient validates options and constructs a provider client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("scrape provider base url is required")
	}
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, errors.New("scrape provider token is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	hc := opts.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:      baseURL,
		token:        token,
		maxBodyBytes: maxBody,
		client:       hc,
		logger:       logger,
	}, nil
}

// RunActor starts the actor with the given input, waits for the run to
// finish, and returns its dataset items.
func (c *Client) RunActor(ctx context.Context, params core.RunActorParams) ([]map[string]any, error) {
	actor := strings.TrimSpace(params.Actor)
	if actor == "" {
		return nil, errors.New("actor is required")
	}

	input := params.Input
	if input == nil {
		input = map[string]any{}
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode actor input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.runSyncURL(actor), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create actor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("actor %s request failed: %w", actor, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.handleErrorResponse(actor, resp)
	}

	items, err := c.decodeItems(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close response body: %w", closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("actor %s: %w", actor, err)
	}

	c.logger.Debug("actor run finished",
		"actor", actor,
		"items", len(items),
		"duration", time.Since(start),
	)
	return items, nil
}

// runSyncURL builds the run-sync-get-dataset-items endpoint for an actor.
// The token travels as a query parameter per the provider API; it must never
// appear in logs or error messages.
func (c *Client) runSyncURL(actor string) string {
	q := url.Values{}
	q.Set("token", c.token)
	return c.baseURL + "/v2/acts/" + url.PathEscape(actor) + "/run-sync-get-dataset-items?" + q.Encode()
}

func (c *Client) decodeItems(body io.Reader) ([]map[string]any, error) {
	limited := io.LimitReader(body, c.maxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read dataset body: %w", err)
	}
	if int64(len(data)) > c.maxBodyBytes {
		return nil, fmt.Errorf("dataset body exceeds %d bytes", c.maxBodyBytes)
	}

	var items []map[string]any
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}
	return items, nil
}

func (c *Client) handleErrorResponse(actor string, resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	closeErr := resp.Body.Close()
	if readErr != nil {
		if closeErr != nil {
			return errors.Join(
				fmt.Errorf("actor %s: read error response: %w", actor, readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return fmt.Errorf("actor %s: read error response: %w", actor, readErr)
	}
	if closeErr != nil {
		return fmt.Errorf("actor %s: close response body: %w", actor, closeErr)
	}

	return fmt.Errorf("actor %s: api %s: %s", actor, resp.Status, strings.TrimSpace(string(respBody)))
}
