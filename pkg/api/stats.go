package api

import (
	"encoding/json"
	"net/http"
	"time"

	"streamtor/pkg/cache"
	"streamtor/pkg/logger"
	"streamtor/pkg/resolver"
)

// SystemStats represents the current state of the application
type SystemStats struct {
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Caches    map[string]cache.Stats `json:"caches"`
	Resolver  resolver.Stats         `json:"resolver"`
}

// collectStats gathers metrics from all sources
func (s *Server) collectStats() SystemStats {
	return SystemStats{
		Timestamp: time.Now(),
		Version:   s.version,
		Caches:    s.store.GetStats(),
		Resolver:  s.service.GetStats(),
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.collectStats()); err != nil {
		logger.Error("stats encode failed", "error", err)
	}
}

// handleConfig exposes the running configuration. The debrid token is
// excluded from serialization at the struct level.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.config); err != nil {
		logger.Error("config encode failed", "error", err)
	}
}
