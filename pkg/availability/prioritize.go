// Package availability reorders torrent candidates so ones the debrid
// provider already holds in cache are resolved first. It is purely an
// ordering optimization: when the provider cannot answer, the original
// order is used unchanged.
package availability

import (
	"context"

	"streamtor/pkg/logger"
	"streamtor/pkg/torrents"
)

// Checker answers bulk instant-availability queries. Satisfied by the
// debrid client.
type Checker interface {
	GetInstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error)
}

// Prioritizer partitions candidates by provider-cache availability.
type Prioritizer struct {
	checker Checker
}

func New(checker Checker) *Prioritizer {
	return &Prioritizer{checker: checker}
}

// Prioritize returns the candidates reordered with provider-cached ones
// first. Order within each group is preserved. One bulk call covers the
// whole set; on provider failure the input order comes back untouched.
func (p *Prioritizer) Prioritize(ctx context.Context, candidates []torrents.Candidate) []torrents.Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	hashes := make([]string, len(candidates))
	for i, c := range candidates {
		hashes[i] = c.InfoHash
	}

	avail, err := p.checker.GetInstantAvailability(ctx, hashes)
	if err != nil {
		logger.Warn("availability check failed, keeping original order", "error", err)
		return candidates
	}

	cached := make([]torrents.Candidate, 0, len(candidates))
	uncached := make([]torrents.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if avail[c.InfoHash] {
			cached = append(cached, c)
		} else {
			uncached = append(uncached, c)
		}
	}

	logger.Debug("availability check done", "total", len(candidates), "cached", len(cached))
	return append(cached, uncached...)
}
