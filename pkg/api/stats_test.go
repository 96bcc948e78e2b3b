package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"streamtor/pkg/cache"
	"streamtor/pkg/config"
	"streamtor/pkg/resolver"
)

func newTestAPIServer() *Server {
	cfg := &config.Config{AddonPort: 7001, MaxConcurrency: 1, MaxStreams: 1, DebridAPIToken: "secret-token"}
	store := cache.NewStore(24*time.Hour, 6*time.Hour, 30*time.Minute)
	service := resolver.NewService(cfg, nil, nil, nil, nil)
	return &Server{
		config:  cfg,
		store:   store,
		service: service,
		version: "test",
		clients: make(map[*Client]bool),
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestAPIServer()
	s.store.Set(cache.Metadata, "k", "v")
	s.store.Get(cache.Metadata, "k")
	s.store.Get(cache.Metadata, "missing")

	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var stats SystemStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Version != "test" {
		t.Errorf("version = %q", stats.Version)
	}
	m := stats.Caches[cache.Metadata]
	if m.Hits != 1 || m.Misses != 1 || m.Entries != 1 {
		t.Errorf("metadata cache stats = %+v, want 1 hit 1 miss 1 entry", m)
	}
}

func TestConfigEndpointRedactsToken(t *testing.T) {
	s := newTestAPIServer()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/config")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(body), "secret-token") {
		t.Error("debrid token must not appear in the config payload")
	}
	if !strings.Contains(string(body), `"addon_port": 7001`) && !strings.Contains(string(body), `"addon_port":7001`) {
		t.Errorf("config payload missing addon_port: %s", body)
	}
}
