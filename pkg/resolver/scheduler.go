package resolver

import (
	"context"

	"golang.org/x/sync/errgroup"

	"streamtor/pkg/logger"
	"streamtor/pkg/torrents"
)

// ResolveFunc runs one candidate to a terminal outcome.
type ResolveFunc func(ctx context.Context, cand torrents.Candidate) Outcome

// Scheduler fans candidates out in fixed-size batches. A batch settles
// completely before the next one starts, which caps in-flight provider
// calls at maxConcurrency. Once maxStreams candidates have resolved, no
// further batches are issued.
type Scheduler struct {
	maxConcurrency int
	maxStreams     int
}

func NewScheduler(maxConcurrency, maxStreams int) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if maxStreams < 1 {
		maxStreams = 1
	}
	return &Scheduler{maxConcurrency: maxConcurrency, maxStreams: maxStreams}
}

// Run processes candidates and returns all outcomes, failures included.
// Outcomes are ordered batch by batch; within a batch they appear in
// completion order, not input order.
func (s *Scheduler) Run(ctx context.Context, candidates []torrents.Candidate, resolve ResolveFunc) []Outcome {
	outcomes := make([]Outcome, 0, len(candidates))
	resolved := 0

	for start := 0; start < len(candidates); start += s.maxConcurrency {
		end := start + s.maxConcurrency
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		results := make(chan Outcome, len(batch))
		g, batchCtx := errgroup.WithContext(ctx)
		for _, cand := range batch {
			cand := cand
			g.Go(func() error {
				results <- resolve(batchCtx, cand)
				return nil
			})
		}
		_ = g.Wait() // workers never return errors; outcomes carry failures
		close(results)

		for o := range results {
			if o.Resolved() {
				resolved++
			}
			outcomes = append(outcomes, o)
		}

		if resolved >= s.maxStreams {
			logger.Debug("stream target reached, skipping remaining candidates",
				"resolved", resolved, "attempted", len(outcomes), "total", len(candidates))
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes
}
