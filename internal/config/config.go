package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/kbcrawl/internal/fetcher"
	"github.com/nao1215/kbcrawl/internal/model"
)

// Renderers accepted by --renderer.
const (
	// RendererBrowser renders pages in headless Chromium and takes screenshots.
	RendererBrowser = "browser"

	// RendererStatic downloads the raw HTML without running scripts.
	RendererStatic = "static"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "kbcrawl"

	// DefaultAlgorithm is the exploration order used when none is given.
	DefaultAlgorithm = model.AlgorithmBFS

	// DefaultMaxDepth of 0 means the crawl is not bounded by depth.
	DefaultMaxDepth = 0

	// DefaultMaxPages of 0 means the crawl is not bounded by page count.
	DefaultMaxPages = 0

	// DefaultTimeout bounds the navigation of a single page.
	DefaultTimeout = 60 * time.Second

	// DefaultRenderer is the page fetcher backend.
	DefaultRenderer = RendererBrowser

	// DefaultBatchSize is the number of sites crawled concurrently when
	// several seed URLs are given.
	DefaultBatchSize = 4

	// DefaultUserAgent is sent by the static renderer. The browser renderer
	// keeps Chromium's own user agent unless one is configured.
	DefaultUserAgent = "kbcrawl/1.0 (+https://github.com/nao1215/kbcrawl)"

	// DefaultMaxBodySize limits how much of a response the static renderer reads.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultViewportWidth and DefaultViewportHeight size the browser window.
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800

	// DefaultOutputDirName is the artifact directory created under the
	// user's home directory.
	DefaultOutputDirName = "knowledgeBase"
)

// Config holds all configuration options for kbcrawl.
// It is populated from CLI flags and the .kbcrawl file and passed down
// explicitly; there is no global configuration.
type Config struct {
	// Targets are the seed URLs to crawl, one site per URL.
	Targets []string

	// Algorithm is the exploration order, "bfs" or "dfs".
	Algorithm string

	// MaxDepth bounds the number of path segments of crawled endpoints.
	// 0 means unbounded.
	MaxDepth int

	// MaxPages stops the crawl after this many processed pages.
	// 0 means unlimited.
	MaxPages int

	// Timeout bounds the navigation of each page.
	Timeout time.Duration

	// OutputDir is the root of the artifact tree. Each site gets its own
	// folder below it.
	OutputDir string

	// Renderer selects the page fetcher backend.
	Renderer string

	// BrowserBin is the Chromium binary to launch. Empty lets rod find or
	// download one.
	BrowserBin string

	// NoSandbox disables the Chromium sandbox, needed when running as root
	// in containers.
	NoSandbox bool

	// Stealth masks the headless browser fingerprint.
	Stealth bool

	// FullPage captures the whole scrollable page instead of the viewport.
	FullPage bool

	// ViewportWidth and ViewportHeight size the browser window.
	ViewportWidth  int
	ViewportHeight int

	// UserAgent overrides the User-Agent header.
	UserAgent string

	// Proxy routes every request through a SOCKS5 or HTTP proxy.
	// Empty means direct connections.
	Proxy string

	// MaxBodySize limits the bytes read per response by the static renderer.
	MaxBodySize int64

	// BatchSize is the number of sites crawled concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit path to the .kbcrawl file.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects the JSON report format.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects the Markdown report format.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the report to a file instead of stdout.
	ReportFile string

	// DBDir is the directory of the crawl history database.
	DBDir string

	// SaveToDB records each crawl in the history database.
	SaveToDB bool

	// explicit records the settings given on the command line. They win
	// over the config file.
	explicit map[string]bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Algorithm:      string(DefaultAlgorithm),
		MaxDepth:       DefaultMaxDepth,
		MaxPages:       DefaultMaxPages,
		Timeout:        DefaultTimeout,
		OutputDir:      DefaultOutputDir(),
		Renderer:       DefaultRenderer,
		FullPage:       true,
		ViewportWidth:  DefaultViewportWidth,
		ViewportHeight: DefaultViewportHeight,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		BatchSize:      DefaultBatchSize,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
		explicit:       make(map[string]bool),
	}
}

// DefaultOutputDir returns ~/knowledgeBase.
func DefaultOutputDir() string {
	return filepath.Join(xdg.Home, DefaultOutputDirName)
}

// XDGDataDir returns the XDG data directory for kbcrawl.
// On Linux: ~/.local/share/kbcrawl
// On macOS: ~/Library/Application Support/kbcrawl
// On Windows: %LOCALAPPDATA%\kbcrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for kbcrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Setting names accepted by MarkExplicit. They match the CLI flag names.
const (
	SettingAlgorithm = "algo"
	SettingDepth     = "depth"
	SettingTimeout   = "timeout"
	SettingUserAgent = "user-agent"
)

// MarkExplicit records that setting was given on the command line.
func (c *Config) MarkExplicit(setting string) {
	if c.explicit == nil {
		c.explicit = make(map[string]bool)
	}
	c.explicit[setting] = true
}

// IsExplicit reports whether setting was given on the command line.
func (c *Config) IsExplicit(setting string) bool {
	return c.explicit[setting]
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if _, err := model.ParseAlgorithm(c.Algorithm); err != nil {
		return ErrInvalidAlgorithm
	}
	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Renderer != RendererBrowser && c.Renderer != RendererStatic {
		return ErrInvalidRenderer
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.ViewportWidth <= 0 || c.ViewportHeight <= 0 {
		return ErrInvalidViewport
	}
	if c.OutputDir == "" {
		return ErrNoOutputDir
	}
	if c.Proxy != "" {
		if _, err := fetcher.ParseProxy(c.Proxy); err != nil {
			return ErrInvalidProxy
		}
	}
	return nil
}
