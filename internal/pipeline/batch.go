package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"mvx/internal/batch"
	"mvx/internal/options"
	"mvx/internal/plan"
	"mvx/internal/progress"
	"mvx/internal/services"
)

// Observer receives batch lifecycle callbacks. Calls for different items
// may arrive concurrently.
type Observer interface {
	ItemStarted(item batch.Item, p plan.Plan)
	ItemProgress(item batch.Item, ev progress.Event)
	ItemFinished(result ItemResult)
}

// BatchOptions controls a batch run.
type BatchOptions struct {
	Flags options.Flags
	// Jobs bounds concurrent items; values below 1 mean 1.
	Jobs int
	// PlanOnly builds every plan without executing anything.
	PlanOnly bool
	Observer Observer
}

// ItemResult is the outcome of one batch item.
type ItemResult struct {
	Item    batch.Item
	Plan    *plan.Plan
	Outcome Outcome
	// Skipped is set for items never started because the batch was canceled.
	Skipped bool
	Err     error
}

// Summary aggregates a batch run.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Elapsed   time.Duration
	Items     []ItemResult
	Canceled  bool
}

// Err reports the batch-level failure: ErrCanceled when interrupted,
// ErrBatchFailures when any item failed, else nil.
func (s Summary) Err() error {
	switch {
	case s.Canceled:
		return services.Wrap(services.ErrCanceled, "batch", "run",
			fmt.Sprintf("interrupted after %d of %d items", s.Succeeded+s.Failed, s.Total), nil)
	case s.Failed > 0:
		return services.Wrap(services.ErrBatchFailures, "batch", "run",
			fmt.Sprintf("%d of %d items failed", s.Failed, s.Total), nil)
	default:
		return nil
	}
}

// Failures returns the failed items in index order.
func (s Summary) Failures() []ItemResult {
	var out []ItemResult
	for _, item := range s.Items {
		if item.Err != nil && !item.Skipped {
			out = append(out, item)
		}
	}
	return out
}

// RunBatch processes items on a bounded worker pool. One item failing never
// stops the others; cancellation stops dispatch and interrupts running
// items.
func (r *Runner) RunBatch(ctx context.Context, items []batch.Item, opts BatchOptions) (Summary, error) {
	jobs := opts.Jobs
	if jobs < 1 {
		jobs = 1
	}
	if err := opts.Flags.Validate(); err != nil {
		return Summary{}, err
	}

	pool, err := ants.NewPool(jobs, ants.WithPreAlloc(true))
	if err != nil {
		return Summary{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	started := r.now()
	results := make([]ItemResult, len(items))
	var wg sync.WaitGroup
	for i, item := range items {
		if ctx.Err() != nil {
			results[i] = ItemResult{Item: item, Skipped: true, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[i] = r.runItem(ctx, item, opts)
		})
		if submitErr != nil {
			wg.Done()
			results[i] = ItemResult{Item: item, Err: fmt.Errorf("dispatch item: %w", submitErr)}
		}
	}
	wg.Wait()

	summary := Summary{Total: len(items), Items: results, Elapsed: r.now().Sub(started), Canceled: ctx.Err() != nil}
	for _, res := range results {
		switch {
		case res.Skipped:
			summary.Skipped++
		case res.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	return summary, summary.Err()
}

func (r *Runner) runItem(ctx context.Context, item batch.Item, opts BatchOptions) ItemResult {
	res := ItemResult{Item: item}
	if err := ctx.Err(); err != nil {
		res.Skipped = true
		res.Err = err
		return res
	}
	ctx = services.WithItem(ctx, item.Index)
	defer func() {
		if opts.Observer != nil {
			opts.Observer.ItemFinished(res)
		}
	}()

	if item.Err != nil {
		res.Err = item.Err
		return res
	}
	req := Request{Source: item.Source, Destination: item.Destination, Flags: opts.Flags}

	if opts.PlanOnly {
		p, err := r.Plan(ctx, req)
		if err != nil {
			res.Err = err
			return res
		}
		res.Plan = &p
		return res
	}

	ctx = services.WithRunID(ctx, r.runID)
	p, err := r.Plan(ctx, req)
	if err != nil {
		res.Outcome, res.Err = r.finish(ctx, req, Outcome{Started: r.now()}, err)
		return res
	}
	if opts.Observer != nil {
		opts.Observer.ItemStarted(item, p)
	}

	sink, stop := r.forward(item, opts.Observer)
	res.Outcome, res.Err = r.RunPlan(ctx, req, p, sink)
	stop()
	res.Plan = res.Outcome.Plan
	return res
}

// forward relays an item's progress events to the observer.
func (r *Runner) forward(item batch.Item, observer Observer) (*progress.Sink, func()) {
	if observer == nil {
		return nil, func() {}
	}
	ch := make(chan progress.Event, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			observer.ItemProgress(item, ev)
		}
	}()
	return progress.NewSink(ch), func() {
		close(ch)
		<-done
	}
}
