// Package torrents fetches release candidates from an external torrent
// aggregator and normalizes them for the resolution pipeline.
package torrents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MunifTanjim/go-ptt"

	"streamtor/pkg/cache"
	"streamtor/pkg/logger"
)

// Candidate is one normalized aggregator result. InfoHash is always
// lowercase and is the natural key for dedup and for stream cache keys.
type Candidate struct {
	Title      string
	InfoHash   string
	MagnetLink string
	Quality    string
	Size       string
}

type aggregatorStream struct {
	Title    string `json:"title"`
	Name     string `json:"name"`
	InfoHash string `json:"infoHash"`
}

type aggregatorResponse struct {
	Streams []aggregatorStream `json:"streams"`
}

// Client queries a Torrentio-compatible aggregator endpoint.
type Client struct {
	baseURL string
	store   *cache.Store
	http    *http.Client
}

func NewClient(baseURL string, store *cache.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		// The aggregator fans out to trackers server-side and is the
		// slowest upstream; bound it so one slow call cannot stall the
		// whole request.
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Search returns candidates for a content id. Results are cached per
// full content id (not base id, episodes differ), an upstream failure
// yields an empty list, and no error ever reaches the caller.
func (c *Client) Search(ctx context.Context, contentType, contentID string) []Candidate {
	key := fmt.Sprintf("torrents_%s_%s", contentType, contentID)

	if v, ok := c.store.Get(cache.Torrents, key); ok {
		if cands, ok := v.([]Candidate); ok {
			return cands
		}
	}

	endpoint := fmt.Sprintf("%s/stream/%s/%s.json", c.baseURL, contentType, url.PathEscape(contentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		logger.Error("aggregator request build failed", "id", contentID, "error", err)
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("aggregator unreachable", "id", contentID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("aggregator search failed", "id", contentID, "status", resp.StatusCode)
		return nil
	}

	var parsed aggregatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Warn("aggregator response malformed", "id", contentID, "error", err)
		return nil
	}

	candidates := normalize(parsed.Streams)
	logger.Debug("aggregator search done", "id", contentID,
		"raw", len(parsed.Streams), "usable", len(candidates))

	// Empty results are not cached; a transient aggregator hiccup should
	// retry on the next request instead of poisoning the TTL window.
	if len(candidates) > 0 {
		c.store.Set(cache.Torrents, key, candidates)
	}
	return candidates
}

// normalize converts raw aggregator entries into candidates, dropping
// anything without an info hash and deduplicating by hash.
func normalize(streams []aggregatorStream) []Candidate {
	seen := make(map[string]bool, len(streams))
	out := make([]Candidate, 0, len(streams))

	for _, s := range streams {
		hash := strings.ToLower(strings.TrimSpace(s.InfoHash))
		if hash == "" || seen[hash] {
			continue
		}
		seen[hash] = true

		raw := s.Title
		if raw == "" {
			raw = s.Name
		}
		// Aggregator titles pack the release name and tracker info into
		// one multi-line string; the first line is the release name.
		title := raw
		if i := strings.IndexByte(title, '\n'); i >= 0 {
			title = title[:i]
		}

		// Parse the raw multi-line text once; size usually lives on a
		// tracker-info line below the release name.
		info := ptt.Parse(raw)
		quality := info.Resolution
		if quality == "" {
			quality = "unknown"
		}

		out = append(out, Candidate{
			Title:      title,
			InfoHash:   hash,
			MagnetLink: "magnet:?xt=urn:btih:" + hash,
			Quality:    quality,
			Size:       info.Size,
		})
	}
	return out
}
