package crawler

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/nao1215/kbcrawl/internal/model"
)

var testSite = model.Site{Scheme: "https", Host: "example.com"}

// fakeFetcher serves a static link graph.
type fakeFetcher struct {
	mu      sync.Mutex
	graph   map[model.Endpoint][]string
	fail    map[model.Endpoint]error
	fatal   error
	fetched []model.Endpoint
	onFetch func(model.Endpoint)
}

func newFakeFetcher(graph map[model.Endpoint][]string) *fakeFetcher {
	return &fakeFetcher{graph: graph, fail: map[model.Endpoint]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, site model.Site, endpoint model.Endpoint) (*model.PageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onFetch != nil {
		f.onFetch(endpoint)
	}
	if f.fatal != nil {
		return nil, &FatalBackendError{Endpoint: endpoint, Err: f.fatal}
	}
	f.fetched = append(f.fetched, endpoint)
	if err, ok := f.fail[endpoint]; ok {
		return nil, &NavigationError{URL: site.URL(endpoint), Err: err}
	}

	page := model.NewPageResult(endpoint)
	page.Title = "Title of " + endpoint.String()
	page.TextBlocks = []string{"hello"}
	page.Screenshot = []byte("png")
	page.Links = append(page.Links, f.graph[endpoint]...)
	return page, nil
}

func (f *fakeFetcher) Fetched() []model.Endpoint {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.fetched)
}

// fakeStore records writes and optionally fails them.
type fakeStore struct {
	mu          sync.Mutex
	screenshots []model.Endpoint
	contents    map[model.Endpoint]string
	err         error
}

func newFakeStore() *fakeStore {
	return &fakeStore{contents: map[model.Endpoint]string{}}
}

func (s *fakeStore) WriteScreenshot(_ model.Site, endpoint model.Endpoint, _ []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.screenshots = append(s.screenshots, endpoint)
	return "/shots" + endpoint.String() + ".png", nil
}

func (s *fakeStore) WriteContent(_ model.Site, endpoint model.Endpoint, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.contents[endpoint] = content
	return "/content" + endpoint.String() + ".md", nil
}

func sampleGraph() map[model.Endpoint][]string {
	return map[model.Endpoint][]string{
		"/":    {"/a", "/c"},
		"/a":   {"/a/b"},
		"/c":   {},
		"/a/b": {},
	}
}

func TestEngine_Ordering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		algorithm model.Algorithm
		want      []model.Endpoint
	}{
		{
			name:      "breadth-first visits level by level",
			algorithm: model.AlgorithmBFS,
			want:      []model.Endpoint{"/", "/a", "/c", "/a/b"},
		},
		{
			name:      "depth-first pops the last discovered sibling first",
			algorithm: model.AlgorithmDFS,
			want:      []model.Endpoint{"/", "/c", "/a", "/a/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			engine := NewEngine(testSite, newFakeFetcher(sampleGraph()), WithAlgorithm(tt.algorithm))
			report, err := engine.Crawl(context.Background(), model.RootEndpoint)
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}
			if got := report.Endpoints(); !slices.Equal(got, tt.want) {
				t.Errorf("Crawl() order = %v, want %v", got, tt.want)
			}
			if report.Status != model.CrawlStatusCompleted {
				t.Errorf("status = %s, want completed", report.Status)
			}
			if engine.State() != StateCompleted {
				t.Errorf("State() = %s, want completed", engine.State())
			}
		})
	}
}

func TestEngine_BFSLevelBatching(t *testing.T) {
	t.Parallel()

	// /a/b and /a/c are pushed before /z is popped; /z must still come
	// before them.
	graph := map[model.Endpoint][]string{
		"/":  {"/a", "/z"},
		"/a": {"/a/b", "/a/c"},
		"/z": {"/z/y"},
	}
	engine := NewEngine(testSite, newFakeFetcher(graph))
	report, err := engine.Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := []model.Endpoint{"/", "/a", "/z", "/a/b", "/a/c", "/z/y"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() order = %v, want %v", got, want)
	}
}

func TestEngine_NoDuplicateVisit(t *testing.T) {
	t.Parallel()

	// Every page links to every other page, with trailing slash variants
	// and absolute URLs to the same endpoints.
	all := []string{"/", "/a", "/a/", "https://example.com/b", "b/", "/c?x=1#frag", "/a"}
	graph := map[model.Endpoint][]string{"/": all, "/a": all, "/b": all, "/c": all}

	for _, algorithm := range model.Algorithms {
		t.Run(algorithm.String(), func(t *testing.T) {
			t.Parallel()

			fetcher := newFakeFetcher(graph)
			report, err := NewEngine(testSite, fetcher, WithAlgorithm(algorithm)).Crawl(context.Background(), "/")
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}

			got := report.Endpoints()
			seen := map[model.Endpoint]bool{}
			for _, e := range got {
				if seen[e] {
					t.Errorf("endpoint %s processed twice: %v", e, got)
				}
				seen[e] = true
			}
			if len(got) != 4 {
				t.Errorf("processed %d endpoints, want 4: %v", len(got), got)
			}
			if len(fetcher.Fetched()) != 4 {
				t.Errorf("fetched %d times, want 4", len(fetcher.Fetched()))
			}
		})
	}
}

func TestEngine_DepthCutoff(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(sampleGraph())
	store := newFakeStore()
	engine := NewEngine(testSite, fetcher, WithMaxDepth(1), WithStore(store))

	report, err := engine.Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := []model.Endpoint{"/", "/a", "/c"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}
	if slices.Contains(fetcher.Fetched(), "/a/b") {
		t.Error("depth-2 endpoint /a/b was fetched")
	}
	if _, ok := store.contents["/a/b"]; ok {
		t.Error("depth-2 endpoint /a/b was stored")
	}
	if report.BeyondDepth != 1 {
		t.Errorf("BeyondDepth = %d, want 1", report.BeyondDepth)
	}
	if page, _ := report.Page("/a"); page.LinkCount != 1 {
		t.Errorf("/a LinkCount = %d, want 1", page.LinkCount)
	}
}

func TestEngine_FetchFailureResilience(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(sampleGraph())
	fetcher.fail["/a"] = context.DeadlineExceeded
	store := newFakeStore()

	report, err := NewEngine(testSite, fetcher, WithStore(store)).Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := []model.Endpoint{"/", "/a", "/c"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}

	page, ok := report.Page("/a")
	if !ok {
		t.Fatal("/a missing from report")
	}
	if page.LinkCount != 0 {
		t.Errorf("/a LinkCount = %d, want 0", page.LinkCount)
	}
	if page.FetchError == "" {
		t.Error("/a FetchError is empty")
	}
	if _, ok := store.contents["/a"]; ok {
		t.Error("failed page /a was stored")
	}
	if report.FailedFetches() != 1 {
		t.Errorf("FailedFetches() = %d, want 1", report.FailedFetches())
	}
}

func TestEngine_FatalIsolation(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(sampleGraph())
	fetcher.fatal = errors.New("executable not found")

	report, err := NewEngine(testSite, fetcher).Crawl(context.Background(), "/")
	if err == nil {
		t.Fatal("Crawl() error = nil, want fatal error")
	}
	if !IsFatal(err) {
		t.Errorf("IsFatal(%v) = false", err)
	}
	var fatal *FatalBackendError
	if !errors.As(err, &fatal) {
		t.Errorf("error %T is not *FatalBackendError", err)
	}
	if report == nil {
		t.Fatal("report is nil")
	}
	if report.Len() != 0 {
		t.Errorf("report has %d pages, want 0", report.Len())
	}
	if report.Status != model.CrawlStatusFailed {
		t.Errorf("status = %s, want failed", report.Status)
	}
}

func TestEngine_FatalAfterProgressDropsPages(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(sampleGraph())
	fetcher.onFetch = func(e model.Endpoint) {
		if e == "/c" {
			fetcher.fatal = errors.New("browser crashed")
		}
	}

	report, err := NewEngine(testSite, fetcher).Crawl(context.Background(), "/")
	if !IsFatal(err) {
		t.Fatalf("Crawl() error = %v, want fatal", err)
	}
	if report.Len() != 0 {
		t.Errorf("report has %d pages, want 0", report.Len())
	}
}

func TestEngine_StorageErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.err = errors.New("disk full")

	report, err := NewEngine(testSite, newFakeFetcher(sampleGraph()), WithStore(store)).Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if report.Len() != 4 {
		t.Errorf("report has %d pages, want 4", report.Len())
	}
	if report.FailedStores() != 4 {
		t.Errorf("FailedStores() = %d, want 4", report.FailedStores())
	}
	page, _ := report.Page("/")
	if page.ContentPath != "" || page.ScreenshotPath != "" {
		t.Errorf("paths recorded for failed writes: %+v", page)
	}
}

func TestEngine_StoresArtifacts(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	report, err := NewEngine(testSite, newFakeFetcher(sampleGraph()), WithStore(store)).Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	if len(store.screenshots) != 4 {
		t.Errorf("stored %d screenshots, want 4", len(store.screenshots))
	}
	content := store.contents["/a"]
	wantPrefix := `{"title":"Title of /a",`
	if len(content) < len(wantPrefix) || content[:len(wantPrefix)] != wantPrefix {
		t.Errorf("content of /a = %q, want prefix %q", content, wantPrefix)
	}
	page, _ := report.Page("/a")
	if page.ContentPath != "/content/a.md" {
		t.Errorf("ContentPath = %q", page.ContentPath)
	}
}

func TestEngine_OriginContainment(t *testing.T) {
	t.Parallel()

	graph := map[model.Endpoint][]string{
		"/": {
			"https://other.example/x",
			"http://example.com/insecure",
			"https://example.com:8443/port",
			"mailto:someone@example.com",
			"javascript:void(0)",
			"https://EXAMPLE.com:443/same",
		},
	}
	fetcher := newFakeFetcher(graph)
	report, err := NewEngine(testSite, fetcher).Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	want := []model.Endpoint{"/", "/same"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}
}

func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher(sampleGraph())
	fetcher.onFetch = func(e model.Endpoint) {
		if e == "/a" {
			cancel()
		}
	}

	report, err := NewEngine(testSite, fetcher).Crawl(ctx, "/")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Crawl() error = %v, want context.Canceled", err)
	}
	want := []model.Endpoint{"/", "/a"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}
	if report.Status != model.CrawlStatusCancelled {
		t.Errorf("status = %s, want cancelled", report.Status)
	}
}

// cancellingFetcher cancels the crawl while fetching one endpoint and
// reports the interrupted load as a navigation failure.
type cancellingFetcher struct {
	*fakeFetcher
	at     model.Endpoint
	cancel context.CancelFunc
}

func (f *cancellingFetcher) Fetch(ctx context.Context, site model.Site, endpoint model.Endpoint) (*model.PageResult, error) {
	if endpoint == f.at {
		f.cancel()
		return model.NewPageResult(endpoint), &NavigationError{URL: site.URL(endpoint), Err: ctx.Err()}
	}
	return f.fakeFetcher.Fetch(ctx, site, endpoint)
}

func TestEngine_InterruptedFetchIsNotReported(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		graph map[model.Endpoint][]string
	}{
		{name: "more endpoints pending", graph: map[model.Endpoint][]string{"/": {"/a", "/b"}}},
		{name: "last endpoint", graph: map[model.Endpoint][]string{"/": {"/a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			fetcher := &cancellingFetcher{fakeFetcher: newFakeFetcher(tt.graph), at: "/a", cancel: cancel}

			report, err := NewEngine(testSite, fetcher).Crawl(ctx, "/")
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("Crawl() error = %v, want context.Canceled", err)
			}
			if report.Status != model.CrawlStatusCancelled {
				t.Errorf("status = %s, want cancelled", report.Status)
			}
			if got := report.Endpoints(); !slices.Equal(got, []model.Endpoint{"/"}) {
				t.Errorf("Crawl() = %v, want [/]", got)
			}
			if report.FailedFetches() != 0 {
				t.Errorf("FailedFetches() = %d, want 0", report.FailedFetches())
			}
		})
	}
}

func TestEngine_MaxPages(t *testing.T) {
	t.Parallel()

	report, err := NewEngine(testSite, newFakeFetcher(sampleGraph()), WithMaxPages(2)).Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if report.Len() != 2 {
		t.Errorf("report has %d pages, want 2", report.Len())
	}
	if !report.Truncated {
		t.Error("Truncated = false, want true")
	}
}

func TestEngine_LinkFilter(t *testing.T) {
	t.Parallel()

	graph := map[model.Endpoint][]string{
		"/":      {"/docs", "/admin", "/files/report.pdf"},
		"/docs":  {"/docs/intro"},
		"/admin": {"/admin/users"},
	}
	filter := NewLinkFilter([]string{"/admin/*", "*.pdf"}, nil)

	report, err := NewEngine(testSite, newFakeFetcher(graph), WithLinkFilter(filter)).Crawl(context.Background(), "/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	want := []model.Endpoint{"/", "/docs", "/docs/intro"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}
}

func TestEngine_Progress(t *testing.T) {
	t.Parallel()

	var got []model.Endpoint
	engine := NewEngine(testSite, newFakeFetcher(sampleGraph()), WithProgress(func(r model.PageRecord) {
		got = append(got, r.Endpoint)
	}))
	if _, err := engine.Crawl(context.Background(), "/"); err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if len(got) != 4 {
		t.Errorf("progress called %d times, want 4", len(got))
	}
}

func TestEngine_SingleUse(t *testing.T) {
	t.Parallel()

	engine := NewEngine(testSite, newFakeFetcher(sampleGraph()))
	if engine.State() != StateIdle {
		t.Fatalf("State() = %s, want idle", engine.State())
	}
	if _, err := engine.Crawl(context.Background(), "/"); err != nil {
		t.Fatalf("first Crawl() error = %v", err)
	}
	if _, err := engine.Crawl(context.Background(), "/"); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Crawl() error = %v, want ErrAlreadyStarted", err)
	}
}

func TestEngine_InvalidInput(t *testing.T) {
	t.Parallel()

	t.Run("unknown algorithm", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(testSite, newFakeFetcher(nil), WithAlgorithm("random")).Crawl(context.Background(), "/")
		if !IsInvalidInput(err) {
			t.Errorf("Crawl() error = %v, want invalid input", err)
		}
	})

	t.Run("cross-origin seed", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(testSite, newFakeFetcher(nil)).Crawl(context.Background(), "https://other.example/")
		if !IsInvalidInput(err) {
			t.Errorf("Crawl() error = %v, want invalid input", err)
		}
	})

	t.Run("zero site", func(t *testing.T) {
		t.Parallel()

		_, err := NewEngine(model.Site{}, newFakeFetcher(nil)).Crawl(context.Background(), "/")
		if !IsInvalidInput(err) {
			t.Errorf("Crawl() error = %v, want invalid input", err)
		}
	})
}

func TestEngine_SeedBelowRoot(t *testing.T) {
	t.Parallel()

	report, err := NewEngine(testSite, newFakeFetcher(sampleGraph())).Crawl(context.Background(), "/a/")
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	want := []model.Endpoint{"/a", "/a/b"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}
	if report.Seed != "/a" {
		t.Errorf("Seed = %s, want /a", report.Seed)
	}
}
