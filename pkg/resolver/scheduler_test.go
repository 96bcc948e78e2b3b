package resolver

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamtor/pkg/torrents"
)

func schedCands(n int) []torrents.Candidate {
	out := make([]torrents.Candidate, n)
	for i := range out {
		out[i] = torrents.Candidate{InfoHash: string(rune('a' + i)), Title: "c"}
	}
	return out
}

// succeedSet resolves candidates whose hash is listed and fails the rest.
func succeedSet(hashes ...string) ResolveFunc {
	ok := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		ok[h] = true
	}
	return func(_ context.Context, cand torrents.Candidate) Outcome {
		if ok[cand.InfoHash] {
			return Outcome{Candidate: cand, Link: &Link{URL: "u", Title: cand.Title}}
		}
		return Outcome{Candidate: cand, Reason: ReasonNeverReady, Err: errors.New("nope")}
	}
}

func countResolved(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Resolved() {
			n++
		}
	}
	return n
}

func TestSchedulerEarlyTermination(t *testing.T) {
	// 5 candidates, the 1st and 3rd succeed. With batches of 2 and a
	// target of 2 streams, batch 1 (a,b) yields one stream, batch 2
	// (c,d) yields the second, and candidate e is never attempted.
	s := NewScheduler(2, 2)
	outcomes := s.Run(context.Background(), schedCands(5), succeedSet("a", "c"))

	if len(outcomes) != 4 {
		t.Errorf("attempted %d candidates, want 4", len(outcomes))
	}
	if got := countResolved(outcomes); got != 2 {
		t.Errorf("resolved %d streams, want exactly 2", got)
	}
	for _, o := range outcomes {
		if o.Candidate.InfoHash == "e" {
			t.Error("candidate e should never have been attempted")
		}
	}
}

func TestSchedulerStopsAfterFirstBatchWhenSated(t *testing.T) {
	s := NewScheduler(2, 2)
	outcomes := s.Run(context.Background(), schedCands(5), succeedSet("a", "b"))

	if len(outcomes) != 2 {
		t.Errorf("attempted %d candidates, want 2 (one batch)", len(outcomes))
	}
	if got := countResolved(outcomes); got != 2 {
		t.Errorf("resolved %d streams, want 2", got)
	}
}

func TestSchedulerRunsAllBatchesWhenShortOfTarget(t *testing.T) {
	s := NewScheduler(2, 10)
	outcomes := s.Run(context.Background(), schedCands(5), succeedSet("a"))

	if len(outcomes) != 5 {
		t.Errorf("attempted %d candidates, want all 5", len(outcomes))
	}
	if got := countResolved(outcomes); got != 1 {
		t.Errorf("resolved %d streams, want 1", got)
	}
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	var mu sync.Mutex

	resolve := func(_ context.Context, cand torrents.Candidate) Outcome {
		cur := inFlight.Add(1)
		mu.Lock()
		if cur > peak.Load() {
			peak.Store(cur)
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return Outcome{Candidate: cand, Reason: ReasonNeverReady}
	}

	s := NewScheduler(3, 100)
	s.Run(context.Background(), schedCands(10), resolve)

	if got := peak.Load(); got > 3 {
		t.Errorf("peak in-flight resolutions = %d, want <= 3", got)
	}
}

func TestSchedulerBatchOrdering(t *testing.T) {
	// Candidates from batch 1 must precede batch 2 in the outcome list
	// regardless of per-candidate timing.
	slow := map[string]time.Duration{"a": 20 * time.Millisecond}
	resolve := func(_ context.Context, cand torrents.Candidate) Outcome {
		time.Sleep(slow[cand.InfoHash])
		return Outcome{Candidate: cand, Link: &Link{URL: "u"}}
	}

	s := NewScheduler(2, 100)
	outcomes := s.Run(context.Background(), schedCands(4), resolve)

	if len(outcomes) != 4 {
		t.Fatalf("got %d outcomes, want 4", len(outcomes))
	}
	batch1 := map[string]bool{"a": true, "b": true}
	if !batch1[outcomes[0].Candidate.InfoHash] || !batch1[outcomes[1].Candidate.InfoHash] {
		t.Errorf("first two outcomes %q %q should both come from batch 1",
			outcomes[0].Candidate.InfoHash, outcomes[1].Candidate.InfoHash)
	}
}

func TestSchedulerCancelledContextStopsBetweenBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	resolve := func(_ context.Context, cand torrents.Candidate) Outcome {
		attempts++
		cancel()
		return Outcome{Candidate: cand, Reason: ReasonNeverReady}
	}

	s := NewScheduler(1, 10)
	s.Run(ctx, schedCands(5), resolve)

	if attempts != 1 {
		t.Errorf("attempted %d candidates after cancellation, want 1", attempts)
	}
}
