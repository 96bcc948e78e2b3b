// Package debrid is a bearer-token REST client for a Real-Debrid
// compatible provider. It covers the five calls the resolution pipeline
// needs: magnet submission, torrent inspection, file selection, link
// unrestriction, and bulk instant-availability lookup.
package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Torrent statuses the pipeline reacts to. The provider has more
// (queued, downloading, compressing, ...); anything else is treated as
// "not ready yet".
const (
	StatusDownloaded       = "downloaded"
	StatusWaitingSelection = "waiting_files_selection"
	StatusError            = "error"
	StatusMagnetError      = "magnet_error"
	StatusVirus            = "virus"
	StatusDead             = "dead"
)

// SelectAll selects every file in a torrent.
const SelectAll = "all"

// TorrentFile is one entry in a torrent's file listing.
type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentInfo is the provider's view of a submitted torrent.
type TorrentInfo struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Hash     string        `json:"hash"`
	Status   string        `json:"status"`
	Progress float64       `json:"progress"`
	Files    []TorrentFile `json:"files"`
	Links    []string      `json:"links"`
}

// Failed reports whether the torrent is in a terminal error state that
// no amount of polling will fix.
func (t *TorrentInfo) Failed() bool {
	switch t.Status {
	case StatusError, StatusMagnetError, StatusVirus, StatusDead:
		return true
	}
	return false
}

// Client talks to the provider's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// AddMagnet submits a magnet link and returns the provider-side torrent id.
func (c *Client) AddMagnet(ctx context.Context, magnet string) (string, error) {
	form := url.Values{"magnet": {magnet}}
	body, err := c.do(ctx, http.MethodPost, "/torrents/addMagnet", form)
	if err != nil {
		return "", fmt.Errorf("add magnet: %w", err)
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("add magnet: decode response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("add magnet: provider returned no torrent id")
	}
	return result.ID, nil
}

// GetTorrentInfo fetches the current status, file listing, and links of
// a submitted torrent.
func (c *Client) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	body, err := c.do(ctx, http.MethodGet, "/torrents/info/"+url.PathEscape(torrentID), nil)
	if err != nil {
		return nil, fmt.Errorf("torrent info %s: %w", torrentID, err)
	}

	var info TorrentInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("torrent info %s: decode response: %w", torrentID, err)
	}
	return &info, nil
}

// SelectFiles tells the provider which files of the torrent to fetch.
// fileIDs is a comma-separated id list or SelectAll.
func (c *Client) SelectFiles(ctx context.Context, torrentID, fileIDs string) error {
	form := url.Values{"files": {fileIDs}}
	_, err := c.do(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(torrentID), form)
	if err != nil {
		return fmt.Errorf("select files %s: %w", torrentID, err)
	}
	return nil
}

// UnrestrictLink exchanges a provider hoster link for a direct download URL.
func (c *Client) UnrestrictLink(ctx context.Context, link string) (string, error) {
	form := url.Values{"link": {link}}
	body, err := c.do(ctx, http.MethodPost, "/unrestrict/link", form)
	if err != nil {
		return "", fmt.Errorf("unrestrict: %w", err)
	}

	var result struct {
		Download string `json:"download"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unrestrict: decode response: %w", err)
	}
	if result.Download == "" {
		return "", fmt.Errorf("unrestrict: provider returned no download url")
	}
	return result.Download, nil
}

// GetInstantAvailability reports which of the given info hashes the
// provider already holds in its cache. A hash is cached iff the provider
// returns a non-empty object for it. Hash keys in the result are
// lowercase regardless of provider casing.
func (c *Client) GetInstantAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}

	path := "/torrents/instantAvailability/" + strings.Join(hashes, "/")
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("instant availability: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("instant availability: decode response: %w", err)
	}

	out := make(map[string]bool, len(raw))
	for hash, entry := range raw {
		out[strings.ToLower(hash)] = !emptyObject(entry)
	}
	return out, nil
}

// DeleteTorrent removes a torrent from the provider-side list. Used to
// clean up submissions that failed mid-resolution.
func (c *Client) DeleteTorrent(ctx context.Context, torrentID string) error {
	_, err := c.do(ctx, http.MethodDelete, "/torrents/delete/"+url.PathEscape(torrentID), nil)
	if err != nil {
		return fmt.Errorf("delete torrent %s: %w", torrentID, err)
	}
	return nil
}

// do issues one authenticated request and returns the response body.
// Non-2xx statuses become errors carrying the provider's error payload
// when it sent one.
func (c *Client) do(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error     string `json:"error"`
			ErrorCode int    `json:"error_code"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("provider status %d: %s (code %d)", resp.StatusCode, apiErr.Error, apiErr.ErrorCode)
		}
		return nil, fmt.Errorf("provider status %d", resp.StatusCode)
	}
	return body, nil
}

func emptyObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "{}" || s == "null" || s == "[]"
}
