package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Defaults of the static backend.
const (
	DefaultUserAgent   = "Mozilla/5.0 (compatible; kbcrawl/1.0; +https://github.com/nao1215/kbcrawl)"
	DefaultMaxBodySize = 10 << 20
)

// errNotLoaded is returned when a session is read before Navigate succeeded.
var errNotLoaded = errors.New("no page loaded")

// HTTPBackend fetches raw markup over HTTP without rendering it.
type HTTPBackend struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64
}

// HTTPOption configures an HTTPBackend.
type HTTPOption func(*HTTPBackend)

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(b *HTTPBackend) {
		if client != nil {
			b.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(b *HTTPBackend) {
		if ua != "" {
			b.userAgent = ua
		}
	}
}

// WithHeaders adds custom request headers.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(b *HTTPBackend) {
		b.headers = headers
	}
}

// WithCookie sets the Cookie header.
func WithCookie(cookie string) HTTPOption {
	return func(b *HTTPBackend) {
		b.cookie = cookie
	}
}

// WithMaxBodySize limits how much of a response body is read.
func WithMaxBodySize(size int64) HTTPOption {
	return func(b *HTTPBackend) {
		if size > 0 {
			b.maxBodySize = size
		}
	}
}

// NewHTTPBackend returns a static backend.
func NewHTTPBackend(opts ...HTTPOption) *HTTPBackend {
	b := &HTTPBackend{
		client:      &http.Client{Timeout: 2 * DefaultTimeout},
		userAgent:   DefaultUserAgent,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *HTTPBackend) Name() string {
	return "static"
}

// Open never fails: HTTP needs no process to start.
func (b *HTTPBackend) Open(_ context.Context) (Session, error) {
	return &httpSession{backend: b}, nil
}

type httpSession struct {
	backend *HTTPBackend
	body    string
	loaded  bool
}

// Navigate performs the GET request. Non-HTML responses load as an
// empty document.
func (s *httpSession) Navigate(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", s.backend.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range s.backend.headers {
		req.Header.Set(k, v)
	}
	if s.backend.cookie != "" {
		req.Header.Set("Cookie", s.backend.cookie)
	}

	resp, err := s.backend.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.backend.maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if isHTML(resp.Header.Get("Content-Type")) {
		s.body = string(body)
	}
	s.loaded = true
	return nil
}

// HTML returns the response body.
func (s *httpSession) HTML(_ context.Context) (string, error) {
	if !s.loaded {
		return "", errNotLoaded
	}
	return s.body, nil
}

// Screenshot is not supported.
func (s *httpSession) Screenshot(_ context.Context) ([]byte, error) {
	return nil, ErrScreenshotUnsupported
}

// Close releases nothing.
func (s *httpSession) Close() error {
	return nil
}

// isHTML reports whether a Content-Type denotes markup. A missing header
// is assumed to be HTML.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.Contains(contentType, "html")
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
