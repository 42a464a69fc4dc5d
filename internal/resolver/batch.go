package resolver

import (
	"context"
	"time"

	"github.com/alvarorichard/vidresolve/internal/locator"
	"github.com/alvarorichard/vidresolve/internal/models"
	"github.com/alvarorichard/vidresolve/internal/util"
)

// Job is one page to resolve as part of a batch
type Job struct {
	Name string
	Page Page
	Spec *locator.Spec
	// Timeout overrides Options.Timeout for this job; it runs from the moment
	// the job starts, not from the start of the batch
	Timeout time.Duration
}

// JobResult is the outcome of one job. Err is informational; a failed or
// timed out job simply has no variants.
type JobResult struct {
	Job      Job
	Variants []models.VideoVariant
	Trace    Trace
	Err      error
}

// ResolveAll resolves jobs concurrently and concatenates their variants in
// job order. Each job runs under its own deadline.
func (r *Resolver) ResolveAll(ctx context.Context, jobs []Job) []models.VideoVariant {
	var out []models.VideoVariant
	for _, res := range r.ResolveEach(ctx, jobs) {
		out = append(out, res.Variants...)
	}
	return out
}

// ResolveEach is ResolveAll with one result per job, in job order
func (r *Resolver) ResolveEach(ctx context.Context, jobs []Job) []JobResult {
	batch := r.NewBatch()
	results := make([]JobResult, len(jobs))

	tasks := make([]func(), len(jobs))
	for i, job := range jobs {
		tasks[i] = func() {
			results[i] = batch.runJob(ctx, job)
		}
	}
	util.ParallelExecute(r.opts.MaxWorkers, tasks...)
	return results
}

type traced struct {
	variants []models.VideoVariant
	trace    Trace
}

func (b *Batch) runJob(ctx context.Context, job Job) JobResult {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = b.r.opts.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan traced, 1)
	go func() {
		v, t := b.ResolveTrace(ctx, job.Page, job.Spec)
		done <- traced{variants: v, trace: t}
	}()

	select {
	case res := <-done:
		if err := ctx.Err(); err != nil {
			return JobResult{Job: job, Trace: res.trace, Err: err}
		}
		return JobResult{Job: job, Variants: res.variants, Trace: res.trace, Err: res.trace.Err}
	case <-ctx.Done():
		util.Warn("resolver: job timed out", "job", job.Name, "after", time.Since(start).Round(time.Millisecond))
		return JobResult{Job: job, Err: ctx.Err()}
	}
}
