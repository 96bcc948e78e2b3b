package resolver

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"streamtor/pkg/config"
	"streamtor/pkg/episode"
	"streamtor/pkg/logger"
	"streamtor/pkg/metadata"
	"streamtor/pkg/torrents"
)

// MetadataResolver looks up title metadata; nil means unknown title.
type MetadataResolver interface {
	Resolve(ctx context.Context, contentType, contentID string) *metadata.Meta
}

// CandidateSource searches the aggregator; empty means no candidates.
type CandidateSource interface {
	Search(ctx context.Context, contentType, contentID string) []torrents.Candidate
}

// Reorderer reorders candidates by provider-cache availability.
type Reorderer interface {
	Prioritize(ctx context.Context, candidates []torrents.Candidate) []torrents.Candidate
}

// ResolvedStream is one playable result of a stream request.
type ResolvedStream struct {
	Title     string
	URL       string
	Quality   string
	Size      string
	InfoHash  string
	FromCache bool
}

// scoredCandidate is request-scoped; it never outlives filtering.
type scoredCandidate struct {
	torrents.Candidate
	score   int
	matches bool
}

// How many non-matching candidates to keep as fallback when episode
// filtering leaves too few options.
const nonMatchingFallback = 3

// Stats is a snapshot of the service's lifetime counters.
type Stats struct {
	Requests         uint64    `json:"requests"`
	StreamsResolved  uint64    `json:"streams_resolved"`
	CandidatesFailed uint64    `json:"candidates_failed"`
	LastRequestAt    time.Time `json:"last_request_at"`
}

// Service is the top-level stream resolution pipeline.
type Service struct {
	cfg        *config.Config
	meta       MetadataResolver
	candidates CandidateSource
	prioritize Reorderer
	resolver   *Resolver
	scheduler  *Scheduler

	requests      atomic.Uint64
	resolved      atomic.Uint64
	failed        atomic.Uint64
	lastRequestAt atomic.Int64 // unix nanos
}

func NewService(cfg *config.Config, meta MetadataResolver, candidates CandidateSource, prioritize Reorderer, r *Resolver) *Service {
	return &Service{
		cfg:        cfg,
		meta:       meta,
		candidates: candidates,
		prioritize: prioritize,
		resolver:   r,
		scheduler:  NewScheduler(cfg.MaxConcurrency, cfg.MaxStreams),
	}
}

// Resolve handles one stream request end to end. It never returns an
// error; every failure mode collapses to a shorter (possibly empty)
// stream list.
func (s *Service) Resolve(ctx context.Context, contentType, contentID string) []ResolvedStream {
	s.requests.Add(1)
	s.lastRequestAt.Store(time.Now().UnixNano())
	started := time.Now()

	target := episode.ExtractSeasonEpisode(contentID)

	meta := s.meta.Resolve(ctx, contentType, contentID)
	if meta == nil {
		logger.Info("no metadata for title, returning no streams", "id", contentID)
		return nil
	}

	cands := s.candidates.Search(ctx, contentType, contentID)
	if len(cands) == 0 {
		logger.Info("no candidates from aggregator", "id", contentID, "title", meta.Name)
		return nil
	}

	cands = filterByEpisode(cands, target)
	if limit := s.cfg.AvailabilityCheckLimit; len(cands) > limit {
		cands = cands[:limit]
	}

	cands = s.prioritize.Prioritize(ctx, cands)
	if limit := s.cfg.TorrentLimit; len(cands) > limit {
		cands = cands[:limit]
	}

	outcomes := s.scheduler.Run(ctx, cands, func(ctx context.Context, cand torrents.Candidate) Outcome {
		return s.resolver.Resolve(ctx, cand, target)
	})

	streams := make([]ResolvedStream, 0, len(outcomes))
	for _, o := range outcomes {
		if !o.Resolved() {
			s.failed.Add(1)
			logger.Debug("candidate failed", "title", o.Candidate.Title,
				"hash", o.Candidate.InfoHash, "reason", string(o.Reason), "error", o.Err)
			continue
		}
		s.resolved.Add(1)
		streams = append(streams, ResolvedStream{
			Title:     o.Link.Title,
			URL:       o.Link.URL,
			Quality:   o.Candidate.Quality,
			Size:      o.Candidate.Size,
			InfoHash:  o.Candidate.InfoHash,
			FromCache: o.FromCache,
		})
	}

	logger.Info("stream request done", "id", contentID, "title", meta.Name,
		"streams", len(streams), "attempted", len(outcomes), "took", time.Since(started))
	return streams
}

// GetStats snapshots the lifetime counters.
func (s *Service) GetStats() Stats {
	var last time.Time
	if n := s.lastRequestAt.Load(); n > 0 {
		last = time.Unix(0, n)
	}
	return Stats{
		Requests:         s.requests.Load(),
		StreamsResolved:  s.resolved.Load(),
		CandidatesFailed: s.failed.Load(),
		LastRequestAt:    last,
	}
}

// filterByEpisode keeps candidates that match the target episode, best
// score first, then appends a few non-matching ones as fallback for
// season packs whose titles carry no per-episode tag. With no episode
// context the input passes through unchanged.
func filterByEpisode(cands []torrents.Candidate, target *episode.SeasonEpisode) []torrents.Candidate {
	if target == nil {
		return cands
	}

	scored := make([]scoredCandidate, len(cands))
	for i, c := range cands {
		score := episode.MatchScore(c.Title, target.Season, target.Episode)
		scored[i] = scoredCandidate{Candidate: c, score: score, matches: score > 0}
	}

	matching := make([]scoredCandidate, 0, len(scored))
	rest := make([]scoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if sc.matches {
			matching = append(matching, sc)
		} else {
			rest = append(rest, sc)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool { return matching[i].score > matching[j].score })

	if len(rest) > nonMatchingFallback {
		rest = rest[:nonMatchingFallback]
	}

	out := make([]torrents.Candidate, 0, len(matching)+len(rest))
	for _, sc := range matching {
		out = append(out, sc.Candidate)
	}
	for _, sc := range rest {
		out = append(out, sc.Candidate)
	}
	return out
}
