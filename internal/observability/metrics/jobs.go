package metrics

import (
	"time"

	obserrors "github.com/Rishet11/LeadPilot/internal/observability/errors"
	"github.com/Rishet11/LeadPilot/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition constants name the lifecycle edges the worker emits metrics for.
const (
	TransitionClaim              = "claim"
	TransitionComplete           = "complete"
	TransitionCompleteWithErrors = "complete_with_errors"
	TransitionRetry              = "retry"
	TransitionFail               = "fail"
	TransitionReapRequeue        = "reap_requeue"
	TransitionReapFail           = "reap_fail"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// EmitLeadsFound records the number of leads a completed job produced.
func EmitLeadsFound(sink statsd.Sink, jobType string, count int) {
	if sink == nil || count < 0 {
		return
	}
	sink.Count("job.leads_found", int64(count), map[string]string{
		"job_type": jobType,
	})
}

// EmitReapSweep records how many stale running jobs a reaper sweep requeued
// and failed. Sweeps cross job types, so no job_type tag is attached.
func EmitReapSweep(sink statsd.Sink, requeued, failed int64) {
	if sink == nil {
		return
	}
	if requeued > 0 {
		sink.Count("job.transition", requeued, map[string]string{
			"transition": TransitionReapRequeue,
			"result":     ResultSuccess,
		})
	}
	if failed > 0 {
		sink.Count("job.transition", failed, map[string]string{
			"transition": TransitionReapFail,
			"result":     ResultSuccess,
		})
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
