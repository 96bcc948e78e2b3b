package stremio

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"streamtor/pkg/config"
	"streamtor/pkg/logger"
	"streamtor/pkg/resolver"
)

// StreamResolver runs the resolution pipeline for one title.
type StreamResolver interface {
	Resolve(ctx context.Context, contentType, contentID string) []resolver.ResolvedStream
}

// Server represents the Stremio addon HTTP server
type Server struct {
	manifest   *Manifest
	config     *config.Config
	resolver   StreamResolver
	apiHandler http.Handler
}

// NewServer creates a new Stremio addon server
func NewServer(cfg *config.Config, res StreamResolver, version string) (*Server, error) {
	if version == "" {
		version = "dev"
	}
	s := &Server{
		manifest: NewManifest(version),
		config:   cfg,
		resolver: res,
	}

	if err := s.CheckPort(cfg.AddonPort); err != nil {
		return nil, err
	}
	return s, nil
}

// CheckPort verifies if the specified port is available for the addon
func (s *Server) CheckPort(port int) error {
	address := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("addon port %d is already in use", port)
	}
	ln.Close()
	return nil
}

// SetAPIHandler sets the handler for API requests
func (s *Server) SetAPIHandler(h http.Handler) {
	s.apiHandler = h
}

// SetupRoutes configures HTTP routes for the addon
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case path == "/manifest.json":
			s.handleManifest(w, r)
		case strings.HasPrefix(path, "/stream/"):
			s.handleStream(w, r)
		case path == "/health":
			s.handleHealth(w, r)
		case strings.HasPrefix(path, "/api/"):
			if s.apiHandler != nil {
				s.apiHandler.ServeHTTP(w, r)
			} else {
				http.NotFound(w, r)
			}
		case path == "/":
			s.handleManifest(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
}

// handleManifest serves the addon manifest
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	logger.Debug("manifest request", "remote", r.RemoteAddr)

	setStreamHeaders(w)
	data, err := s.manifest.ToJSON()
	if err != nil {
		http.Error(w, "Failed to generate manifest", http.StatusInternalServerError)
		return
	}
	w.Write(data)
}

// handleStream handles stream requests: /stream/{type}/{id}.json
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/stream/")
	path = strings.TrimSuffix(path, ".json")

	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		http.Error(w, "Invalid stream URL", http.StatusBadRequest)
		return
	}

	contentType := parts[0] // "movie" or "series"
	contentID := parts[1]
	if contentType != "movie" && contentType != "series" {
		writeStreams(w, nil)
		return
	}

	reqID := uuid.NewString()[:8]
	logger.Info("stream request", "req", reqID, "type", contentType, "id", contentID, "remote", r.RemoteAddr)

	ctx := r.Context()
	if timeout := s.config.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resolved := s.resolver.Resolve(ctx, contentType, contentID)

	streams := make([]Stream, 0, len(resolved))
	for _, rs := range resolved {
		streams = append(streams, formatStream(rs))
	}
	logger.Info("stream response", "req", reqID, "id", contentID, "streams", len(streams))

	writeStreams(w, streams)
}

// handleHealth is a simple liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// formatStream builds the Stremio UI representation of one resolved
// stream. Quality goes in the name column, release details in the title,
// and a marker when the provider had the torrent cached.
func formatStream(rs resolver.ResolvedStream) Stream {
	name := "StreamTor"
	if rs.Quality != "" && rs.Quality != "unknown" {
		name += "\n" + rs.Quality
	}

	title := rs.Title
	var extras []string
	if rs.Size != "" {
		extras = append(extras, rs.Size)
	}
	if rs.FromCache {
		extras = append(extras, "instant")
	}
	if len(extras) > 0 {
		title += "\n" + strings.Join(extras, " | ")
	}

	return Stream{
		URL:   rs.URL,
		Name:  name,
		Title: title,
		BehaviorHints: &BehaviorHints{
			// Group by release hash so Stremio binge-plays the next
			// episode from the same torrent when possible.
			BingeGroup: "streamtor-" + rs.InfoHash,
		},
	}
}

// writeStreams sends a stream list response. A nil list still encodes as
// {"streams":[]}; clients treat a missing list as an addon error.
func writeStreams(w http.ResponseWriter, streams []Stream) {
	setStreamHeaders(w)
	if streams == nil {
		streams = []Stream{}
	}
	json.NewEncoder(w).Encode(StreamResponse{Streams: streams})
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
}
