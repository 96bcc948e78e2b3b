// Package metadata looks up title metadata from the catalog service and
// caches it per base id, so every episode of a show shares one entry.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"streamtor/pkg/cache"
	"streamtor/pkg/logger"
)

// Meta is the catalog's description of a title.
type Meta struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Name        string `json:"name"`
	Year        string `json:"year,omitempty"`
	Poster      string `json:"poster,omitempty"`
	Background  string `json:"background,omitempty"`
	Description string `json:"description,omitempty"`
}

type metaResponse struct {
	Meta *Meta `json:"meta"`
}

// Client fetches metadata from a Cinemeta-compatible catalog endpoint.
type Client struct {
	baseURL string
	store   *cache.Store
	http    *http.Client
}

func NewClient(baseURL string, store *cache.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// BaseID strips the season/episode suffix from a composite series id.
func BaseID(contentID string) string {
	if i := strings.Index(contentID, ":"); i >= 0 {
		return contentID[:i]
	}
	return contentID
}

// Resolve returns metadata for the title, or nil when the catalog does
// not know it or cannot be reached. A missing title is a normal outcome
// here; the caller short-circuits to an empty stream list.
func (c *Client) Resolve(ctx context.Context, contentType, contentID string) *Meta {
	baseID := BaseID(contentID)
	key := fmt.Sprintf("meta_%s_%s", contentType, baseID)

	if v, ok := c.store.Get(cache.Metadata, key); ok {
		if m, ok := v.(*Meta); ok {
			return m
		}
	}

	url := fmt.Sprintf("%s/meta/%s/%s.json", c.baseURL, contentType, baseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		logger.Error("metadata request build failed", "id", baseID, "error", err)
		return nil
	}

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("catalog unreachable", "id", baseID, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("catalog lookup failed", "id", baseID, "status", resp.StatusCode)
		return nil
	}

	var parsed metaResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		logger.Warn("catalog response malformed", "id", baseID, "error", err)
		return nil
	}
	if parsed.Meta == nil || parsed.Meta.Name == "" {
		logger.Debug("catalog has no entry", "id", baseID, "type", contentType)
		return nil
	}

	c.store.Set(cache.Metadata, key, parsed.Meta)
	logger.Debug("metadata resolved", "id", baseID, "name", parsed.Meta.Name)
	return parsed.Meta
}
