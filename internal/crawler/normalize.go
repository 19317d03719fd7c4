package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"

	"github.com/nao1215/kbcrawl/internal/model"
)

// Normalizer turns raw hrefs into endpoints of one site.
// It is safe for concurrent use; it holds no mutable state.
type Normalizer struct {
	site model.Site
	base *url.URL
}

// NewNormalizer returns a Normalizer that resolves links against the
// origin of site.
func NewNormalizer(site model.Site) *Normalizer {
	return &Normalizer{
		site: site,
		base: &url.URL{Scheme: site.Scheme, Host: site.Host, Path: "/"},
	}
}

// Site returns the site the normalizer resolves against.
func (n *Normalizer) Site() model.Site {
	return n.site
}

// Normalize resolves raw (absolute or relative) against the site origin.
// It returns false when raw is malformed, empty, or points to another
// origin; such links are dropped rather than reported as errors.
// Query strings and fragments are not part of an endpoint.
func (n *Normalizer) Normalize(raw string) (model.Endpoint, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	resolved := n.base.ResolveReference(ref)

	if !strings.EqualFold(resolved.Scheme, n.site.Scheme) {
		return "", false
	}
	host, ok := CanonicalHost(resolved)
	if !ok || host != n.site.Host {
		return "", false
	}

	return NormalizePath(resolved.EscapedPath()), true
}

// NormalizePath canonicalizes a URL path into an endpoint: it ensures a
// leading slash and strips trailing slashes, keeping "/" for the root.
func NormalizePath(p string) model.Endpoint {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return model.RootEndpoint
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return model.Endpoint(p)
}

// CanonicalHost returns the comparable host of u: lower-case, IDN labels
// converted to punycode, default ports removed.
func CanonicalHost(u *url.URL) (string, bool) {
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", false
	}
	if ascii, err := idna.Lookup.ToASCII(hostname); err == nil {
		hostname = ascii
	}
	if strings.Contains(hostname, ":") {
		// IPv6 literal
		hostname = "[" + hostname + "]"
	}

	port := u.Port()
	if port == "" || port == defaultPort(strings.ToLower(u.Scheme)) {
		return hostname, true
	}
	return hostname + ":" + port, true
}

func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	default:
		return ""
	}
}

// ParseSeed validates a user supplied seed URL and splits it into the
// site origin and the starting endpoint. A URL without a scheme is
// assumed to be https.
func ParseSeed(raw string) (model.Site, model.Endpoint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return model.Site{}, "", &InvalidInputError{Input: raw, Reason: "seed URL is empty"}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return model.Site{}, "", &InvalidInputError{Input: raw, Reason: err.Error()}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return model.Site{}, "", &InvalidInputError{Input: raw, Reason: "scheme must be http or https"}
	}
	host, ok := CanonicalHost(u)
	if !ok {
		return model.Site{}, "", &InvalidInputError{Input: raw, Reason: "seed URL has no host"}
	}

	site := model.Site{Scheme: scheme, Host: host}
	return site, NormalizePath(u.EscapedPath()), nil
}
