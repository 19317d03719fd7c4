package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Default viewport of the headless browser.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
)

// RodBackend renders pages in a headless Chromium driven by go-rod.
// Each session launches its own browser and kills it on Close.
type RodBackend struct {
	bin       string
	noSandbox bool
	stealth   bool
	fullPage  bool
	userAgent string
	headers   map[string]string
	width     int
	height    int
	proxy     string
}

// RodOption configures a RodBackend.
type RodOption func(*RodBackend)

// WithBrowserBin uses the browser executable at path instead of the one
// found or downloaded by the launcher.
func WithBrowserBin(path string) RodOption {
	return func(b *RodBackend) {
		b.bin = path
	}
}

// WithNoSandbox disables the Chromium sandbox, needed when running as root
// in containers.
func WithNoSandbox(enabled bool) RodOption {
	return func(b *RodBackend) {
		b.noSandbox = enabled
	}
}

// WithStealth hides the usual headless browser fingerprints.
func WithStealth(enabled bool) RodOption {
	return func(b *RodBackend) {
		b.stealth = enabled
	}
}

// WithFullPage captures the whole scrollable page instead of the viewport.
func WithFullPage(enabled bool) RodOption {
	return func(b *RodBackend) {
		b.fullPage = enabled
	}
}

// WithBrowserUserAgent overrides the browser User-Agent.
func WithBrowserUserAgent(ua string) RodOption {
	return func(b *RodBackend) {
		b.userAgent = ua
	}
}

// WithBrowserHeaders sends extra headers with every request of the page.
func WithBrowserHeaders(headers map[string]string) RodOption {
	return func(b *RodBackend) {
		b.headers = headers
	}
}

// WithViewport sets the browser window size.
func WithViewport(width, height int) RodOption {
	return func(b *RodBackend) {
		if width > 0 && height > 0 {
			b.width = width
			b.height = height
		}
	}
}

// WithBrowserProxy routes the browser traffic through proxyURL.
func WithBrowserProxy(proxyURL string) RodOption {
	return func(b *RodBackend) {
		b.proxy = proxyURL
	}
}

// NewRodBackend returns a browser backend. Screenshots are full-page by default.
func NewRodBackend(opts ...RodOption) *RodBackend {
	b := &RodBackend{
		fullPage: true,
		width:    DefaultViewportWidth,
		height:   DefaultViewportHeight,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements Backend.
func (b *RodBackend) Name() string {
	return "browser"
}

// Open launches a browser and opens a blank tab.
func (b *RodBackend) Open(ctx context.Context) (Session, error) {
	l := launcher.New().
		Context(ctx).
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage")
	if b.bin != "" {
		l = l.Bin(b.bin)
	}
	if b.noSandbox {
		l = l.NoSandbox(true)
	}
	if b.proxy != "" {
		l = l.Proxy(b.proxy)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch headless browser: %w", err)
	}

	s := &rodSession{launcher: l, fullPage: b.fullPage}
	s.browser = rod.New().ControlURL(u)
	if err := s.browser.Connect(); err != nil {
		s.kill()
		return nil, fmt.Errorf("connect to headless browser: %w", err)
	}

	if b.stealth {
		s.page, err = stealth.Page(s.browser)
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create tab: %w", err)
	}

	if err := b.preparePage(s.page); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (b *RodBackend) preparePage(page *rod.Page) error {
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.width,
		Height:            b.height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}
	if len(b.headers) > 0 {
		keys := make([]string, 0, len(b.headers))
		for k := range b.headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := make([]string, 0, len(keys)*2)
		for _, k := range keys {
			dict = append(dict, k, b.headers[k])
		}
		if _, err := page.SetExtraHeaders(dict); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

// rodSession owns one browser process and one tab.
type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	fullPage bool
}

// Navigate loads url and waits for the network to go idle.
func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page := s.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	wait()
	return ctx.Err()
}

// HTML returns the rendered document.
func (s *rodSession) HTML(ctx context.Context) (string, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("get HTML: %w", err)
	}
	return html, nil
}

// Screenshot captures the page as PNG.
func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	return s.page.Context(ctx).Screenshot(s.fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close closes the tab and the browser, then kills the process.
func (s *rodSession) Close() error {
	var errs []error
	if s.page != nil {
		errs = append(errs, s.page.Close())
	}
	if s.browser != nil {
		errs = append(errs, s.browser.Close())
	}
	s.kill()
	return errors.Join(errs...)
}

func (s *rodSession) kill() {
	s.launcher.Kill()
	s.launcher.Cleanup()
}
