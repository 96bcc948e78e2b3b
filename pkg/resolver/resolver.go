// Package resolver turns torrent candidates into playable stream URLs
// through the debrid provider, with a bounded-concurrency batch
// scheduler and a stream cache in front of the whole thing.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"streamtor/pkg/cache"
	"streamtor/pkg/debrid"
	"streamtor/pkg/episode"
	"streamtor/pkg/torrents"
)

// Provider is the slice of the debrid API the state machine needs.
type Provider interface {
	AddMagnet(ctx context.Context, magnet string) (string, error)
	GetTorrentInfo(ctx context.Context, torrentID string) (*debrid.TorrentInfo, error)
	SelectFiles(ctx context.Context, torrentID, fileIDs string) error
	UnrestrictLink(ctx context.Context, link string) (string, error)
	DeleteTorrent(ctx context.Context, torrentID string) error
}

// Reason classifies why a candidate failed. The resolver reports it; the
// caller decides how loudly to log.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonSubmitFailed  Reason = "submit_failed"
	ReasonInspectFailed Reason = "inspect_failed"
	ReasonSelectFailed  Reason = "select_failed"
	ReasonNeverReady    Reason = "never_ready"
	ReasonNoLinks       Reason = "no_links"
	ReasonUnrestrict    Reason = "unrestrict_failed"
)

// Link is what lands in the stream cache: a final playable URL plus the
// release title it came from.
type Link struct {
	URL   string
	Title string
}

// Outcome is the terminal state of one candidate's resolution.
type Outcome struct {
	Candidate torrents.Candidate
	Link      *Link // non-nil iff resolved
	FromCache bool
	Reason    Reason
	Err       error
}

func (o Outcome) Resolved() bool { return o.Link != nil }

// Resolver runs the per-candidate state machine:
// submit -> inspect -> select -> poll-ready -> materialize -> cache.
type Resolver struct {
	provider Provider
	store    *cache.Store

	// Poll-ready budget. Short delays first so instantly-cached
	// torrents resolve with minimal latency.
	pollAttempts uint
	shortDelay   time.Duration
	longDelay    time.Duration
}

func New(provider Provider, store *cache.Store) *Resolver {
	return &Resolver{
		provider:     provider,
		store:        store,
		pollAttempts: 10,
		shortDelay:   500 * time.Millisecond,
		longDelay:    time.Second,
	}
}

// SetPollBudget overrides the poll-ready attempt count and delays.
func (r *Resolver) SetPollBudget(attempts uint, short, long time.Duration) {
	r.pollAttempts = attempts
	r.shortDelay = short
	r.longDelay = long
}

// streamKey derives the stream cache key. Series entries key on the
// season/episode pair rather than the chosen file index, so re-requests
// for the same episode hit cache even if file selection would differ.
func streamKey(infoHash string, target *episode.SeasonEpisode, fileIdx int) string {
	if target != nil {
		return fmt.Sprintf("stream_%s_s%de%d", infoHash, target.Season, target.Episode)
	}
	return fmt.Sprintf("stream_%s_f%d", infoHash, fileIdx)
}

// Resolve runs one candidate to a terminal state. It never returns an
// error to the caller; every failure mode is folded into the Outcome.
func (r *Resolver) Resolve(ctx context.Context, cand torrents.Candidate, target *episode.SeasonEpisode) Outcome {
	key := streamKey(cand.InfoHash, target, 0)
	if v, ok := r.store.Get(cache.Streams, key); ok {
		if link, ok := v.(*Link); ok {
			return Outcome{Candidate: cand, Link: link, FromCache: true}
		}
	}

	torrentID, err := r.provider.AddMagnet(ctx, cand.MagnetLink)
	if err != nil {
		return Outcome{Candidate: cand, Reason: ReasonSubmitFailed, Err: err}
	}

	link, reason, err := r.run(ctx, torrentID, cand, target)
	if err != nil {
		// Best-effort cleanup so failed submissions do not pile up in
		// the provider-side torrent list.
		_ = r.provider.DeleteTorrent(ctx, torrentID)
		return Outcome{Candidate: cand, Reason: reason, Err: err}
	}

	r.store.Set(cache.Streams, key, link)
	return Outcome{Candidate: cand, Link: link}
}

// run drives the submitted torrent through selection, readiness polling,
// and unrestriction.
func (r *Resolver) run(ctx context.Context, torrentID string, cand torrents.Candidate, target *episode.SeasonEpisode) (*Link, Reason, error) {
	info, err := r.provider.GetTorrentInfo(ctx, torrentID)
	if err != nil {
		return nil, ReasonInspectFailed, err
	}

	fileIdx := 0
	fileIDs := debrid.SelectAll
	if target != nil && len(info.Files) > 1 {
		paths := make([]string, len(info.Files))
		for i, f := range info.Files {
			paths[i] = f.Path
		}
		fileIdx = episode.FindMatchingFile(paths, target)
		fileIDs = strconv.Itoa(info.Files[fileIdx].ID)
	}

	if err := r.provider.SelectFiles(ctx, torrentID, fileIDs); err != nil {
		return nil, ReasonSelectFailed, err
	}

	ready, err := r.pollReady(ctx, torrentID)
	if err != nil {
		return nil, ReasonNeverReady, err
	}

	if len(ready.Links) == 0 {
		return nil, ReasonNoLinks, fmt.Errorf("torrent %s ready with no links", torrentID)
	}
	// The provider's links run parallel to the file listing; after
	// single-file selection only one link exists, so an out-of-range
	// index falls back to the first link.
	linkIdx := fileIdx
	if linkIdx >= len(ready.Links) {
		linkIdx = 0
	}

	url, err := r.provider.UnrestrictLink(ctx, ready.Links[linkIdx])
	if err != nil {
		return nil, ReasonUnrestrict, err
	}

	return &Link{URL: url, Title: cand.Title}, ReasonNone, nil
}

var errNotReady = errors.New("torrent not ready")

// pollReady re-fetches torrent info until a ready status or the attempt
// budget runs out. The first two waits are short to keep latency low for
// provider-cached torrents; later waits back off.
func (r *Resolver) pollReady(ctx context.Context, torrentID string) (*debrid.TorrentInfo, error) {
	var info *debrid.TorrentInfo

	err := retry.Do(
		func() error {
			i, err := r.provider.GetTorrentInfo(ctx, torrentID)
			if err != nil {
				return err
			}
			info = i
			switch {
			case i.Status == debrid.StatusDownloaded || i.Status == debrid.StatusWaitingSelection:
				return nil
			case i.Failed():
				return retry.Unrecoverable(fmt.Errorf("torrent %s terminal status %q", torrentID, i.Status))
			}
			return errNotReady
		},
		retry.Context(ctx),
		retry.Attempts(r.pollAttempts),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if n < 2 {
				return r.shortDelay
			}
			return r.longDelay
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return info, nil
}
