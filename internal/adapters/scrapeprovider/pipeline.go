package scrapeprovider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/lead"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

const defaultDedupeTTL = 30 * 24 * time.Hour

// TargetSpec is one decoded target ready to run: which actor to call and
// what input to send it.
type TargetSpec struct {
	Actor string
	Input any
}

// PipelineOptions groups dependencies for a target pipeline.
type PipelineOptions struct {
	Provider core.ScrapeProvider
	Leads    core.LeadRepository
	Mapper   *ItemMapper

	// Dedupe is optional; without it duplicate filtering falls through to
	// the lead table's unique index.
	Dedupe    core.DedupeCache
	DedupeTTL time.Duration

	Logger *slog.Logger
}

// Pipeline runs one target end to end: actor run, item mapping, dedupe
// filtering, and a single-transaction insert of the surviving leads. Both
// executors share it; only target decoding differs between job types.
type Pipeline struct {
	provider  core.ScrapeProvider
	leads     core.LeadRepository
	mapper    *ItemMapper
	dedupe    core.DedupeCache
	dedupeTTL time.Duration
	logger    *slog.Logger
}

// NewPipeline validates dependencies and constructs a pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Provider == nil {
		return nil, errors.New("scrape provider is required")
	}
	if opts.Leads == nil {
		return nil, errors.New("lead repository is required")
	}
	if opts.Mapper == nil {
		return nil, errors.New("item mapper is required")
	}

	ttl := opts.DedupeTTL
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pipeline{
		provider:  opts.Provider,
		leads:     opts.Leads,
		mapper:    opts.Mapper,
		dedupe:    opts.Dedupe,
		dedupeTTL: ttl,
		logger:    logger,
	}, nil
}

// RunTarget executes one target and persists its leads. It returns how many
// leads were actually inserted; duplicates skipped by the cache or by the
// unique index do not count.
func (p *Pipeline) RunTarget(ctx context.Context, spec TargetSpec, jobID string, tenantID *string) (int, error) {
	items, err := p.provider.RunActor(ctx, core.RunActorParams{
		Actor: spec.Actor,
		Input: spec.Input,
	})
	if err != nil {
		return 0, err
	}

	mapped := p.mapper.MapAll(items)

	inserts := make([]*model.CreateLeadRequest, 0, len(mapped))
	var cacheKeys []string
	for i := range mapped {
		req := &mapped[i]
		req.JobID = jobID
		req.TenantID = tenantID

		if key, ok := lead.DedupeKey(deref(req.Website), deref(req.Phone), deref(req.InstagramHandle)); ok {
			req.DedupeKey = &key
			cacheKey := lead.CacheKey(tenantID, key)
			if skip := p.seenBefore(ctx, cacheKey); skip {
				continue
			}
			cacheKeys = append(cacheKeys, cacheKey)
		}
		inserts = append(inserts, req)
	}

	inserted, err := p.leads.CreateBatch(ctx, inserts)
	if err != nil {
		return 0, err
	}

	// Mark keys only after the insert committed. Rows that hit the unique
	// index instead of inserting are durable too, so their keys are safe to
	// mark as well.
	p.markSeen(ctx, cacheKeys)

	p.logger.Debug("target persisted",
		"job_id", jobID,
		"items", len(items),
		"mapped", len(mapped),
		"inserted", inserted,
	)
	return inserted, nil
}

func (p *Pipeline) seenBefore(ctx context.Context, cacheKey string) bool {
	if p.dedupe == nil {
		return false
	}
	seen, err := p.dedupe.Seen(ctx, cacheKey)
	if err != nil {
		// Cache trouble must never drop a lead; the unique index decides.
		p.logger.Warn("dedupe cache check failed", "error", err)
		return false
	}
	return seen
}

func (p *Pipeline) markSeen(ctx context.Context, cacheKeys []string) {
	if p.dedupe == nil {
		return
	}
	for _, key := range cacheKeys {
		if err := p.dedupe.MarkSeen(ctx, key, p.dedupeTTL); err != nil {
			p.logger.Warn("dedupe cache mark failed", "error", err)
			return
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
