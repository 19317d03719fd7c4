package model

import "net/url"

// Site is the origin (scheme and host) a crawl is confined to.
// It is fixed when a crawl is set up and never changes afterwards.
type Site struct {
	// Scheme is "http" or "https".
	Scheme string `json:"scheme"`

	// Host is the canonical host, including a non-default port if any.
	// It is always lower-case ASCII (IDN hosts are stored in punycode).
	Host string `json:"host"`
}

// Origin returns the site origin, e.g. "https://example.com".
func (s Site) Origin() string {
	return s.Scheme + "://" + s.Host
}

// Hostname returns the host without any port.
func (s Site) Hostname() string {
	return (&url.URL{Host: s.Host}).Hostname()
}

// URL returns the absolute URL of an endpoint on this site.
func (s Site) URL(e Endpoint) string {
	return s.Origin() + string(e)
}

// IsZero reports whether the site has not been set.
func (s Site) IsZero() bool {
	return s.Scheme == "" && s.Host == ""
}

// String returns the site origin.
func (s Site) String() string {
	return s.Origin()
}
