package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/model"
)

// stubBackend hands out stubSessions and counts how many were closed.
type stubBackend struct {
	openErr     error
	navigateErr error
	html        string
	shot        []byte
	shotErr     error
	panicOn     string
	block       bool
	opened      atomic.Int32
	closed      atomic.Int32
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Open(_ context.Context) (Session, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.opened.Add(1)
	return &stubSession{b: b}, nil
}

type stubSession struct {
	b *stubBackend
}

func (s *stubSession) Navigate(ctx context.Context, _ string) error {
	if s.b.panicOn == "navigate" {
		panic("renderer crashed")
	}
	if s.b.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.b.navigateErr
}

func (s *stubSession) HTML(_ context.Context) (string, error) {
	return s.b.html, nil
}

func (s *stubSession) Screenshot(_ context.Context) ([]byte, error) {
	return s.b.shot, s.b.shotErr
}

func (s *stubSession) Close() error {
	s.b.closed.Add(1)
	return nil
}

var fetchSite = model.Site{Scheme: "https", Host: "example.com"}

var (
	_ Backend = (*RodBackend)(nil)
	_ Session = (*rodSession)(nil)
	_ Backend = (*HTTPBackend)(nil)
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		html: `<html><head><title>Home</title></head><body><p>Hi</p><a href="/a">a</a></body></html>`,
		shot: []byte("png-bytes"),
	}
	page, err := New(backend).Fetch(context.Background(), fetchSite, "/")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.Title != "Home" {
		t.Errorf("Title = %q", page.Title)
	}
	if !slices.Equal(page.Links, []string{"/a"}) {
		t.Errorf("Links = %v", page.Links)
	}
	if string(page.Screenshot) != "png-bytes" {
		t.Errorf("Screenshot = %q", page.Screenshot)
	}
	if backend.closed.Load() != 1 {
		t.Errorf("sessions closed = %d, want 1", backend.closed.Load())
	}
}

func TestFetcher_BackendUnavailableIsFatal(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{openErr: errors.New("chromium not found")}
	page, err := New(backend).Fetch(context.Background(), fetchSite, "/")
	if page != nil {
		t.Errorf("page = %+v, want nil", page)
	}
	if !crawler.IsFatal(err) {
		t.Fatalf("Fetch() error = %v, want fatal", err)
	}
	if !strings.Contains(err.Error(), "chromium not found") {
		t.Errorf("error %q lost its cause", err)
	}
}

func TestFetcher_OpenAfterCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := &stubBackend{openErr: errors.New("launch aborted")}
	page, err := New(backend).Fetch(ctx, fetchSite, "/")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Fetch() error = %v, want context.Canceled", err)
	}
	if errors.Is(err, crawler.ErrNavigation) || crawler.IsFatal(err) {
		t.Errorf("cancellation classified as a page failure: %v", err)
	}
	if page != nil {
		t.Errorf("page = %+v, want nil", page)
	}
}

func TestFetcher_RelativeLinksUseOrigin(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		html: `<html><body><a href="setup">s</a><a href="../up">u</a><a href="/abs/">a</a></body></html>`,
	}
	page, err := New(backend).Fetch(context.Background(), fetchSite, "/docs/intro")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := []string{"/setup", "/up", "/abs"}
	if !slices.Equal(page.Links, want) {
		t.Errorf("Links = %v, want %v", page.Links, want)
	}
}

func TestFetcher_NavigationFailureIsRecovered(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	page, err := New(backend).Fetch(context.Background(), fetchSite, "/missing")

	var navErr *crawler.NavigationError
	if !errors.As(err, &navErr) {
		t.Fatalf("Fetch() error = %v, want *NavigationError", err)
	}
	if crawler.IsFatal(err) {
		t.Error("navigation failure classified as fatal")
	}
	if navErr.URL != "https://example.com/missing" {
		t.Errorf("URL = %q", navErr.URL)
	}
	if page == nil || !page.IsEmpty() {
		t.Errorf("page = %+v, want empty result", page)
	}
	if backend.closed.Load() != 1 {
		t.Errorf("sessions closed = %d, want 1", backend.closed.Load())
	}
}

func TestFetcher_TimeoutIsBounded(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{block: true}
	start := time.Now()
	_, err := New(backend, WithTimeout(50*time.Millisecond)).Fetch(context.Background(), fetchSite, "/slow")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Fetch() error = %v, want deadline exceeded", err)
	}
	if !errors.Is(err, crawler.ErrNavigation) {
		t.Errorf("timeout not classified as navigation failure: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Fetch() took %s", elapsed)
	}
}

func TestFetcher_PanicIsRecovered(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{panicOn: "navigate"}
	page, err := New(backend).Fetch(context.Background(), fetchSite, "/boom")
	if !errors.Is(err, crawler.ErrNavigation) {
		t.Fatalf("Fetch() error = %v, want navigation error", err)
	}
	if page == nil {
		t.Fatal("page is nil")
	}
	if backend.closed.Load() != 1 {
		t.Errorf("sessions closed = %d, want 1", backend.closed.Load())
	}
}

func TestFetcher_ScreenshotFailureKeepsPage(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{
		html:    `<html><head><title>Shot</title></head></html>`,
		shotErr: errors.New("capture failed"),
	}
	page, err := New(backend).Fetch(context.Background(), fetchSite, "/")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if page.Title != "Shot" || len(page.Screenshot) != 0 {
		t.Errorf("page = %+v", page)
	}
}

func TestFetcher_ScreenshotsDisabled(t *testing.T) {
	t.Parallel()

	backend := &stubBackend{html: "<html></html>", shot: []byte("png")}
	page, err := New(backend, WithScreenshots(false)).Fetch(context.Background(), fetchSite, "/")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(page.Screenshot) != 0 {
		t.Error("screenshot captured while disabled")
	}
}

func TestFetcher_DrivesEngine(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/":    `<a href="/a">a</a><a href="/c">c</a>`,
		"/a":   `<a href="/a/b">b</a>`,
		"/c":   `<p>leaf</p>`,
		"/a/b": `<p>leaf</p>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>" + body + "</body></html>"))
	}))
	t.Cleanup(srv.Close)

	site, seed, err := crawler.ParseSeed(srv.URL)
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}
	f := New(NewHTTPBackend(WithHTTPClient(srv.Client())))

	report, err := crawler.NewEngine(site, f, crawler.WithAlgorithm(model.AlgorithmDFS)).Crawl(context.Background(), seed)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	want := []model.Endpoint{"/", "/c", "/a", "/a/b"}
	if got := report.Endpoints(); !slices.Equal(got, want) {
		t.Errorf("Crawl() = %v, want %v", got, want)
	}
}
