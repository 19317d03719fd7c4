package config

import (
	"maps"
	"strings"
	"time"
)

// SiteConfig holds the settings of one site in the .kbcrawl file.
// Zero values mean "not set".
type SiteConfig struct {
	// Depth overrides the maximum depth. A pointer so that an explicit 0
	// (unbounded) can override a non-zero default.
	Depth *int `yaml:"depth,omitempty"`

	// Algorithm overrides the exploration order ("bfs" or "dfs").
	Algorithm string `yaml:"algorithm,omitempty"`

	// Timeout overrides the per-page navigation timeout, e.g. "90s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// IgnorePatterns are endpoint globs that are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to matching endpoints.
	// The seed endpoint is always crawled.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`

	// Headers are extra HTTP headers sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is sent with every request. Format: "name=value; name2=value2".
	Cookie string `yaml:"cookie,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`
}

// File represents the structure of the .kbcrawl configuration file.
type File struct {
	// Defaults apply to every site unless overridden below.
	Defaults SiteConfig `yaml:"defaults,omitempty"`

	// Sites maps a host (e.g. "docs.example.com" or "localhost:8080") to
	// its settings. Keys are matched case-insensitively.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`
}

// GetSiteConfig returns the configuration for host, merging the site
// entry over the defaults. host may carry a port; an entry for the bare
// hostname is used when no entry matches the host with its port.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	if cf == nil {
		return SiteConfig{}
	}

	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if site.Depth != nil {
		depth := *site.Depth
		result.Depth = &depth
	}
	if site.Algorithm != "" {
		result.Algorithm = site.Algorithm
	}
	if site.Timeout > 0 {
		result.Timeout = site.Timeout
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	host = strings.ToLower(host)
	if site, ok := cf.Sites[host]; ok {
		return site, true
	}
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.HasSuffix(host, "]") {
		site, ok := cf.Sites[host[:i]]
		return site, ok
	}
	return SiteConfig{}, false
}

// SiteSettings are the effective crawl settings of one site.
type SiteSettings struct {
	Algorithm      string
	MaxDepth       int
	Timeout        time.Duration
	UserAgent      string
	Headers        map[string]string
	Cookie         string
	IgnorePatterns []string
	FollowPatterns []string
}

// SiteSettings resolves the settings of host. Precedence, highest first:
// command line flag, site entry, defaults entry, built-in default.
func (c *Config) SiteSettings(host string) SiteSettings {
	settings := SiteSettings{
		Algorithm: c.Algorithm,
		MaxDepth:  c.MaxDepth,
		Timeout:   c.Timeout,
		UserAgent: c.UserAgent,
	}

	site := c.SiteConfigs.GetSiteConfig(host)
	settings.Headers = site.Headers
	settings.Cookie = site.Cookie
	settings.IgnorePatterns = site.IgnorePatterns
	settings.FollowPatterns = site.FollowPatterns

	if site.Algorithm != "" && !c.IsExplicit(SettingAlgorithm) {
		settings.Algorithm = site.Algorithm
	}
	if site.Depth != nil && !c.IsExplicit(SettingDepth) {
		settings.MaxDepth = *site.Depth
	}
	if site.Timeout > 0 && !c.IsExplicit(SettingTimeout) {
		settings.Timeout = site.Timeout
	}
	if site.UserAgent != "" && !c.IsExplicit(SettingUserAgent) {
		settings.UserAgent = site.UserAgent
	}
	return settings
}
