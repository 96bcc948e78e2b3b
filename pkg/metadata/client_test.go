package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"streamtor/pkg/cache"
)

func newTestStore() *cache.Store {
	return cache.NewStore(24*time.Hour, 6*time.Hour, 30*time.Minute)
}

func TestBaseID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"tt0434665:6:3", "tt0434665"},
		{"tt0111161", "tt0111161"},
		{"tt0434665:6", "tt0434665"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := BaseID(tt.in); got != tt.want {
			t.Errorf("BaseID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/meta/series/tt0434665.json" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"meta":{"id":"tt0434665","type":"series","name":"Lost","year":"2004"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newTestStore())

	// Composite series id must be stripped to the base id for the lookup.
	m := c.Resolve(context.Background(), "series", "tt0434665:6:3")
	if m == nil || m.Name != "Lost" {
		t.Fatalf("Resolve = %+v, want name Lost", m)
	}

	// A different episode of the same show must hit the shared cache entry.
	m2 := c.Resolve(context.Background(), "series", "tt0434665:6:4")
	if m2 == nil || m2.Name != "Lost" {
		t.Fatalf("second Resolve = %+v, want cached Lost", m2)
	}
	if calls != 1 {
		t.Errorf("catalog called %d times, want 1", calls)
	}
}

func TestResolveNotFoundIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newTestStore())
	if m := c.Resolve(context.Background(), "movie", "tt9999999"); m != nil {
		t.Errorf("Resolve on 404 = %+v, want nil", m)
	}
}

func TestResolveUnreachableIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL, newTestStore())
	if m := c.Resolve(context.Background(), "movie", "tt0111161"); m != nil {
		t.Errorf("Resolve against dead catalog = %+v, want nil", m)
	}
}

func TestResolveMalformedBodyIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"meta": not json`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newTestStore())
	if m := c.Resolve(context.Background(), "movie", "tt0111161"); m != nil {
		t.Errorf("Resolve on malformed body = %+v, want nil", m)
	}
}

func TestResolveEmptyMetaIsNotCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"meta":null}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, newTestStore())
	c.Resolve(context.Background(), "movie", "tt0111161")
	c.Resolve(context.Background(), "movie", "tt0111161")
	if calls != 2 {
		t.Errorf("empty meta should not be cached; catalog called %d times, want 2", calls)
	}
}
