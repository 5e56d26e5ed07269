// Package googlemaps executes google_maps scrape jobs: one hosted actor run
// per city/category target, with failures isolated per target.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Rishet11/LeadPilot/internal/adapters/scrapeprovider"
	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
	"github.com/Rishet11/LeadPilot/internal/util"
)

const defaultTargetLimit = 50

// target is the decoded shape of one google_maps job target. Targets are
// stored opaque on the job row; only this executor knows the layout.
type target struct {
	City     string `json:"city"`
	Category string `json:"category"`
	Niche    string `json:"niche"`
	Limit    int    `json:"limit"`
}

func (t *target) normalize() {
	t.City = strings.TrimSpace(t.City)
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = strings.TrimSpace(t.Niche)
	}
	if t.Limit <= 0 {
		t.Limit = defaultTargetLimit
	}
}

func (t *target) label() string {
	parts := make([]string, 0, 2)
	if t.City != "" {
		parts = append(parts, t.City)
	}
	if t.Category != "" {
		parts = append(parts, t.Category)
	}
	if len(parts) == 0 {
		return "target"
	}
	return strings.Join(parts, " / ")
}

// Options configures the google maps executor.
type Options struct {
	Pipeline *scrapeprovider.Pipeline
	// Actor is the hosted actor slug to run for each target.
	Actor  string
	Logger *slog.Logger
}

// Executor runs google_maps jobs target by target in list order.
type Executor struct {
	pipeline *scrapeprovider.Pipeline
	actor    string
	logger   *slog.Logger
}

var _ core.TargetExecutor = (*Executor)(nil)

// NewExecutor validates options and constructs the executor.
func NewExecutor(opts Options) (*Executor, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	actor := strings.TrimSpace(opts.Actor)
	if actor == "" {
		return nil, errors.New("actor slug is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{pipeline: opts.Pipeline, actor: actor, logger: logger}, nil
}

// Execute attempts every target in order. A broken target is recorded in the
// outcome and never stops the remaining targets; the only error returned is
// context cancellation, which aborts the attempt.
func (e *Executor) Execute(ctx context.Context, params core.ExecuteParams) (*model.ExecutionOutcome, error) {
	outcome := &model.ExecutionOutcome{}
	for _, raw := range params.Targets {
		spec, label, err := e.decode(raw)
		if err == nil {
			var produced int
			produced, err = e.pipeline.RunTarget(ctx, spec, params.JobID, params.TenantID)
			outcome.LeadsProduced += produced
		}
		if err == nil {
			continue
		}
		e.logger.Error("google maps target failed",
			"job_id", params.JobID,
			"target", label,
			"error", err,
		)
		outcome.FailedTargets++
		outcome.TargetErrors = append(outcome.TargetErrors, util.FormatTargetError(label, err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
	}
	return outcome, nil
}

func (e *Executor) decode(raw json.RawMessage) (scrapeprovider.TargetSpec, string, error) {
	var t target
	if err := json.Unmarshal(raw, &t); err != nil {
		return scrapeprovider.TargetSpec{}, "target", fmt.Errorf("invalid target: %w", err)
	}
	t.normalize()
	label := t.label()
	if t.City == "" || t.Category == "" {
		return scrapeprovider.TargetSpec{}, label, errors.New("target requires city and category")
	}
	return scrapeprovider.TargetSpec{
		Actor: e.actor,
		Input: map[string]any{
			"searchStringsArray":        []string{t.Category + " in " + t.City},
			"maxCrawledPlacesPerSearch": t.Limit,
			"language":                  "en",
			"includeWebResults":         false,
			"deeperCityScrape":          false,
		},
	}, label, nil
}
