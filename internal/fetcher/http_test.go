package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/kbcrawl/internal/crawler"
)

func TestHTTPBackend_SendsHeaders(t *testing.T) {
	t.Parallel()

	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	t.Cleanup(srv.Close)

	backend := NewHTTPBackend(
		WithHTTPClient(srv.Client()),
		WithUserAgent("test-agent/1.0"),
		WithHeaders(map[string]string{"X-Trace": "abc"}),
		WithCookie("session=1"),
	)
	session, err := backend.Open(context.Background())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer session.Close()

	if err := session.Navigate(context.Background(), srv.URL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	html, err := session.HTML(context.Background())
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	if !strings.Contains(html, "<title>ok</title>") {
		t.Errorf("HTML() = %q", html)
	}

	if got.Get("User-Agent") != "test-agent/1.0" {
		t.Errorf("User-Agent = %q", got.Get("User-Agent"))
	}
	if got.Get("X-Trace") != "abc" {
		t.Errorf("X-Trace = %q", got.Get("X-Trace"))
	}
	if got.Get("Cookie") != "session=1" {
		t.Errorf("Cookie = %q", got.Get("Cookie"))
	}
}

func TestHTTPBackend_Responses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		status      int
		body        string
		wantErr     bool
		wantHTML    string
	}{
		{name: "html", contentType: "text/html; charset=utf-8", status: 200, body: "<p>x</p>", wantHTML: "<p>x</p>"},
		{name: "not found still renders", contentType: "text/html", status: 404, body: "<p>gone</p>", wantHTML: "<p>gone</p>"},
		{name: "non html is empty", contentType: "application/pdf", status: 200, body: "%PDF", wantHTML: ""},
		{name: "server error fails", contentType: "text/html", status: 503, body: "busy", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(srv.Close)

			session, _ := NewHTTPBackend(WithHTTPClient(srv.Client())).Open(context.Background())
			err := session.Navigate(context.Background(), srv.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Navigate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			html, _ := session.HTML(context.Background())
			if html != tt.wantHTML {
				t.Errorf("HTML() = %q, want %q", html, tt.wantHTML)
			}
		})
	}
}

func TestHTTPBackend_BodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	t.Cleanup(srv.Close)

	session, _ := NewHTTPBackend(WithHTTPClient(srv.Client()), WithMaxBodySize(10)).Open(context.Background())
	if err := session.Navigate(context.Background(), srv.URL); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	html, _ := session.HTML(context.Background())
	if len(html) != 10 {
		t.Errorf("len(HTML()) = %d, want 10", len(html))
	}
}

func TestHTTPBackend_NoScreenshot(t *testing.T) {
	t.Parallel()

	session, _ := NewHTTPBackend().Open(context.Background())
	if _, err := session.Screenshot(context.Background()); !errors.Is(err, ErrScreenshotUnsupported) {
		t.Errorf("Screenshot() error = %v, want ErrScreenshotUnsupported", err)
	}
	if _, err := session.HTML(context.Background()); err == nil {
		t.Error("HTML() before Navigate succeeded")
	}
}

func TestHTTPBackend_RedirectKeepsOriginResolution(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/new/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/docs/new/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="page">p</a><a href="../sibling">s</a></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	site, _, err := crawler.ParseSeed(srv.URL)
	if err != nil {
		t.Fatalf("ParseSeed() error = %v", err)
	}
	client, err := NewHTTPClient("", 0)
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}

	page, err := New(NewHTTPBackend(WithHTTPClient(client)), WithScreenshots(false)).Fetch(context.Background(), site, "/old")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := []string{"/page", "/sibling"}
	if !slices.Equal(page.Links, want) {
		t.Errorf("Links = %v, want %v", page.Links, want)
	}
}
