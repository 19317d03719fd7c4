package model

import "strings"

// Endpoint is a canonical path relative to a site origin, e.g. "/a/b".
// It never carries a trailing slash, except for the root endpoint "/".
// Endpoints are compared by value and used as the dedup key of a crawl.
type Endpoint string

// RootEndpoint is the endpoint of the site's landing page.
const RootEndpoint Endpoint = "/"

// String returns the endpoint path.
func (e Endpoint) String() string {
	return string(e)
}

// IsRoot reports whether e is the root endpoint.
func (e Endpoint) IsRoot() bool {
	return e == RootEndpoint
}

// Segments returns the non-empty "/"-delimited path segments of e.
// The root endpoint has no segments.
func (e Endpoint) Segments() []string {
	parts := strings.Split(strings.Trim(string(e), "/"), "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
