package model

import (
	"time"
)

// CrawlStatus describes how a crawl ended.
type CrawlStatus string

const (
	// CrawlStatusRunning is the status of a crawl that has not finished.
	CrawlStatusRunning CrawlStatus = "running"

	// CrawlStatusCompleted means the frontier was drained (or the page cap
	// was reached).
	CrawlStatusCompleted CrawlStatus = "completed"

	// CrawlStatusFailed means the crawl was aborted by a fatal error.
	// A failed report never carries pages.
	CrawlStatusFailed CrawlStatus = "failed"

	// CrawlStatusCancelled means the crawl context was cancelled.
	// The pages processed before cancellation are kept.
	CrawlStatusCancelled CrawlStatus = "cancelled"
)

// PageRecord is the outcome of processing one endpoint.
type PageRecord struct {
	// Endpoint is the processed endpoint.
	Endpoint Endpoint `json:"endpoint"`

	// Depth is the number of path segments of the endpoint.
	Depth int `json:"depth"`

	// Title is the page title, empty when the fetch failed.
	Title string `json:"title,omitempty"`

	// Description is the preview description of the page.
	Description string `json:"description,omitempty"`

	// LinkCount is the number of outbound links the page yielded.
	LinkCount int `json:"link_count"`

	// ScreenshotPath is where the screenshot artifact was written.
	ScreenshotPath string `json:"screenshot_path,omitempty"`

	// ContentPath is where the content artifact was written.
	ContentPath string `json:"content_path,omitempty"`

	// FetchError is the recovered navigation failure, if any.
	FetchError string `json:"fetch_error,omitempty"`

	// StoreError is the swallowed artifact write failure, if any.
	StoreError string `json:"store_error,omitempty"`
}

// CrawlReport is the externally observable result of one crawl: the
// endpoints that were actually processed, in processing order.
type CrawlReport struct {
	// Site is the origin of the crawl.
	Site Site `json:"site"`

	// Seed is the endpoint the crawl started from.
	Seed Endpoint `json:"seed"`

	// Algorithm is the exploration order used.
	Algorithm Algorithm `json:"algorithm"`

	// MaxDepth is the depth bound; 0 means unbounded.
	MaxDepth int `json:"max_depth"`

	// Pages holds one record per processed endpoint, in processing order.
	Pages []PageRecord `json:"pages"`

	// BeyondDepth counts endpoints that were visited but dropped because
	// they exceeded MaxDepth.
	BeyondDepth int `json:"beyond_depth"`

	// Truncated is true when the crawl stopped at the page cap.
	Truncated bool `json:"truncated,omitempty"`

	// Status describes how the crawl ended.
	Status CrawlStatus `json:"status"`

	// Error is the message of the error that ended the crawl, if any.
	Error string `json:"error,omitempty"`

	// StartedAt is when the crawl started.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the crawl ended.
	FinishedAt time.Time `json:"finished_at"`
}

// NewCrawlReport creates an empty running report.
func NewCrawlReport(site Site, seed Endpoint, algorithm Algorithm, maxDepth int) *CrawlReport {
	return &CrawlReport{
		Site:      site,
		Seed:      seed,
		Algorithm: algorithm,
		MaxDepth:  maxDepth,
		Pages:     make([]PageRecord, 0),
		Status:    CrawlStatusRunning,
		StartedAt: time.Now(),
	}
}

// Append records a processed page.
func (r *CrawlReport) Append(record PageRecord) {
	r.Pages = append(r.Pages, record)
}

// Len returns the number of processed endpoints.
func (r *CrawlReport) Len() int {
	return len(r.Pages)
}

// Endpoints returns the processed endpoints in processing order.
func (r *CrawlReport) Endpoints() []Endpoint {
	endpoints := make([]Endpoint, len(r.Pages))
	for i, p := range r.Pages {
		endpoints[i] = p.Endpoint
	}
	return endpoints
}

// Contains reports whether endpoint was processed.
func (r *CrawlReport) Contains(endpoint Endpoint) bool {
	for _, p := range r.Pages {
		if p.Endpoint == endpoint {
			return true
		}
	}
	return false
}

// Page returns the record of endpoint, if it was processed.
func (r *CrawlReport) Page(endpoint Endpoint) (PageRecord, bool) {
	for _, p := range r.Pages {
		if p.Endpoint == endpoint {
			return p, true
		}
	}
	return PageRecord{}, false
}

// FailedFetches returns the number of pages whose fetch failed softly.
func (r *CrawlReport) FailedFetches() int {
	n := 0
	for _, p := range r.Pages {
		if p.FetchError != "" {
			n++
		}
	}
	return n
}

// FailedStores returns the number of pages whose artifacts were not written.
func (r *CrawlReport) FailedStores() int {
	n := 0
	for _, p := range r.Pages {
		if p.StoreError != "" {
			n++
		}
	}
	return n
}

// Finish marks the report as ended with the given status and error.
func (r *CrawlReport) Finish(status CrawlStatus, err error) {
	r.Status = status
	if err != nil {
		r.Error = err.Error()
	}
	r.FinishedAt = time.Now()
}

// Duration returns how long the crawl took. It is zero while running.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
