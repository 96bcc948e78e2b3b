package resolver

import (
	"context"
	"testing"
	"time"

	"streamtor/pkg/availability"
	"streamtor/pkg/cache"
	"streamtor/pkg/config"
	"streamtor/pkg/episode"
	"streamtor/pkg/metadata"
	"streamtor/pkg/torrents"
)

type fakeMeta struct {
	meta  *metadata.Meta
	calls int
}

func (f *fakeMeta) Resolve(_ context.Context, _, _ string) *metadata.Meta {
	f.calls++
	return f.meta
}

type fakeSource struct {
	cands []torrents.Candidate
	calls int
}

func (f *fakeSource) Search(_ context.Context, _, _ string) []torrents.Candidate {
	f.calls++
	return f.cands
}

type fakeAvail struct {
	avail map[string]bool
	calls int
}

func (f *fakeAvail) GetInstantAvailability(_ context.Context, _ []string) (map[string]bool, error) {
	f.calls++
	return f.avail, nil
}

func testConfig() *config.Config {
	return &config.Config{
		TorrentLimit:           10,
		AvailabilityCheckLimit: 20,
		MaxStreams:             2,
		MaxConcurrency:         1,
	}
}

func cand(hash, title string) torrents.Candidate {
	return torrents.Candidate{
		InfoHash:   hash,
		Title:      title,
		MagnetLink: "magnet:?xt=urn:btih:" + hash,
	}
}

func newService(cfg *config.Config, meta *fakeMeta, source *fakeSource, checker *fakeAvail, provider Provider) *Service {
	store := cache.NewStore(24*time.Hour, 6*time.Hour, 30*time.Minute)
	r := New(provider, store)
	r.SetPollBudget(3, 0, 0)
	return NewService(cfg, meta, source, availability.New(checker), r)
}

func TestResolveEndToEnd(t *testing.T) {
	meta := &fakeMeta{meta: &metadata.Meta{ID: "tt0434665", Name: "Lost"}}
	source := &fakeSource{cands: []torrents.Candidate{
		cand("h1", "Lost.S06E01.1080p"),
		cand("h2", "Lost.S06E03.1080p"),
		cand("h3", "Lost.Complete.Collection"),
		cand("h4", "Lost.S06E03.720p"),
		cand("h5", "Lost.S06E04.1080p"),
	}}
	// Of the two episode matches, only h4 is provider-cached.
	checker := &fakeAvail{avail: map[string]bool{"h4": true}}
	provider := &fakeProvider{}

	svc := newService(testConfig(), meta, source, checker, provider)
	streams := svc.Resolve(context.Background(), "series", "tt0434665:6:3")

	if len(streams) != 2 {
		t.Fatalf("got %d streams, want 2 (maxStreams)", len(streams))
	}
	// The cached matching candidate must come out of the first batch.
	if streams[0].InfoHash != "h4" {
		t.Errorf("first stream = %s, want the provider-cached match h4", streams[0].InfoHash)
	}
	if streams[1].InfoHash != "h2" {
		t.Errorf("second stream = %s, want the higher-scored uncached match h2", streams[1].InfoHash)
	}
	if checker.calls != 1 {
		t.Errorf("availability checked %d times, want one bulk call", checker.calls)
	}

	stats := svc.GetStats()
	if stats.Requests != 1 || stats.StreamsResolved != 2 {
		t.Errorf("stats = %+v, want 1 request and 2 resolved", stats)
	}
}

func TestResolveNoCandidatesSkipsDebrid(t *testing.T) {
	meta := &fakeMeta{meta: &metadata.Meta{ID: "tt1", Name: "Some Movie"}}
	source := &fakeSource{}
	checker := &fakeAvail{}
	provider := &fakeProvider{}

	svc := newService(testConfig(), meta, source, checker, provider)
	streams := svc.Resolve(context.Background(), "movie", "tt1")

	if len(streams) != 0 {
		t.Fatalf("got %d streams, want 0", len(streams))
	}
	if provider.addCalls != 0 || provider.infoCalls != 0 {
		t.Error("debrid provider must not be invoked when there are no candidates")
	}
	if checker.calls != 0 {
		t.Error("availability must not be checked when there are no candidates")
	}
}

func TestResolveUnknownTitleSkipsSearch(t *testing.T) {
	meta := &fakeMeta{meta: nil}
	source := &fakeSource{cands: []torrents.Candidate{cand("h1", "X")}}
	provider := &fakeProvider{}

	svc := newService(testConfig(), meta, source, &fakeAvail{}, provider)
	streams := svc.Resolve(context.Background(), "movie", "tt0000000")

	if len(streams) != 0 {
		t.Fatalf("got %d streams, want 0", len(streams))
	}
	if source.calls != 0 {
		t.Error("aggregator must not be searched for an unknown title")
	}
}

func TestResolveMovieSkipsEpisodeFiltering(t *testing.T) {
	meta := &fakeMeta{meta: &metadata.Meta{ID: "tt1", Name: "Some Movie"}}
	source := &fakeSource{cands: []torrents.Candidate{
		cand("m1", "Some.Movie.2020.1080p"),
		cand("m2", "Some.Movie.2020.720p"),
	}}
	provider := &fakeProvider{}

	cfg := testConfig()
	cfg.MaxStreams = 10
	svc := newService(cfg, meta, source, &fakeAvail{}, provider)
	streams := svc.Resolve(context.Background(), "movie", "tt1")

	if len(streams) != 2 {
		t.Fatalf("got %d streams, want both movie candidates resolved", len(streams))
	}
}

func TestResolveTruncatesToTorrentLimit(t *testing.T) {
	meta := &fakeMeta{meta: &metadata.Meta{ID: "tt1", Name: "Some Movie"}}
	cands := make([]torrents.Candidate, 8)
	for i := range cands {
		cands[i] = cand(string(rune('a'+i)), "Some.Movie.1080p")
	}
	source := &fakeSource{cands: cands}
	provider := &fakeProvider{}

	cfg := testConfig()
	cfg.TorrentLimit = 3
	cfg.MaxStreams = 100
	svc := newService(cfg, meta, source, &fakeAvail{}, provider)
	streams := svc.Resolve(context.Background(), "movie", "tt1")

	if len(streams) != 3 {
		t.Fatalf("got %d streams, want 3 (torrentLimit)", len(streams))
	}
}

func TestFilterByEpisode(t *testing.T) {
	target := &episode.SeasonEpisode{Season: 6, Episode: 3}

	in := []torrents.Candidate{
		cand("n1", "Show.S06E01"),
		cand("n2", "Show.S05E09"),
		cand("m1", "Show.Season.6.Episode.3"),
		cand("n3", "Show.Extras"),
		cand("m2", "Show.S06E03.1080p"),
		cand("n4", "Show.S06E05"),
		cand("n5", "Show.S06E06"),
	}

	got := filterByEpisode(in, target)

	// Matches first, best score first, then at most 3 non-matching
	// fallbacks in their original order.
	if len(got) != 5 {
		t.Fatalf("got %d candidates, want 5 (2 matches + 3 fallbacks)", len(got))
	}
	wantOrder := []string{"m2", "m1", "n1", "n2", "n3"}
	for i, w := range wantOrder {
		if got[i].InfoHash != w {
			t.Fatalf("order = %v..., want %v", got[i].InfoHash, wantOrder)
		}
	}
}
