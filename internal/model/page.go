package model

import (
	"encoding/json"
	"strings"
)

// Metadata keys extracted from <meta name="..."> tags.
const (
	MetaDescription = "description"
	MetaRobots      = "robots"
	MetaGooglebot   = "googlebot"
)

// MetadataKeys lists the metadata keys every PageResult carries,
// in the order they are written to the content artifact.
var MetadataKeys = []string{MetaDescription, MetaRobots, MetaGooglebot}

// PageResult holds everything extracted from one rendered page.
// A fetch that failed softly yields a PageResult with no text and no links.
type PageResult struct {
	// Endpoint is the endpoint the page was fetched for.
	Endpoint Endpoint `json:"endpoint"`

	// Title is the document title.
	Title string `json:"title"`

	// Metadata maps description, robots and googlebot to the content of
	// the matching meta tag. A nil value means the tag is absent.
	Metadata map[string]*string `json:"metadata"`

	// OpenGraph maps og:* properties to their content.
	OpenGraph map[string]string `json:"og"`

	// TwitterCard maps twitter:* names to their content.
	TwitterCard map[string]string `json:"twitter"`

	// Preview is a link-preview style summary of the page.
	Preview Preview `json:"preview"`

	// TextBlocks are the visible headings, paragraphs and spans in
	// document order.
	TextBlocks []string `json:"-"`

	// Screenshot is the PNG snapshot of the page. Empty when the
	// renderer cannot take screenshots.
	Screenshot []byte `json:"-"`

	// Links are the same-origin endpoints the page links to, resolved
	// against the site origin and deduplicated in first-seen order.
	Links []string `json:"-"`
}

// Preview summarizes a page the way link previews do: OpenGraph values
// first, falling back to the plain document values.
type Preview struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// NewPageResult returns an empty PageResult for endpoint with every
// metadata key present and set to null.
func NewPageResult(endpoint Endpoint) *PageResult {
	metadata := make(map[string]*string, len(MetadataKeys))
	for _, key := range MetadataKeys {
		metadata[key] = nil
	}
	return &PageResult{
		Endpoint:    endpoint,
		Metadata:    metadata,
		OpenGraph:   make(map[string]string),
		TwitterCard: make(map[string]string),
		TextBlocks:  make([]string, 0),
		Links:       make([]string, 0),
	}
}

// MetaValue returns the metadata value for key and whether it was present.
func (p *PageResult) MetaValue(key string) (string, bool) {
	v, ok := p.Metadata[key]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// pageMetadata is the JSON line at the top of a content artifact.
type pageMetadata struct {
	Title       string            `json:"title"`
	Description *string           `json:"description"`
	Robots      *string           `json:"robots"`
	Googlebot   *string           `json:"googlebot"`
	OG          map[string]string `json:"og"`
	Twitter     map[string]string `json:"twitter"`
}

// MetadataJSON encodes the title, meta tags, OpenGraph and Twitter card
// values as a single JSON object.
func (p *PageResult) MetadataJSON() ([]byte, error) {
	og := p.OpenGraph
	if og == nil {
		og = map[string]string{}
	}
	twitter := p.TwitterCard
	if twitter == nil {
		twitter = map[string]string{}
	}
	return json.Marshal(pageMetadata{
		Title:       p.Title,
		Description: p.Metadata[MetaDescription],
		Robots:      p.Metadata[MetaRobots],
		Googlebot:   p.Metadata[MetaGooglebot],
		OG:          og,
		Twitter:     twitter,
	})
}

// ContentDocument renders the text artifact of the page: the metadata
// JSON on the first line followed by the text blocks, one per line.
func (p *PageResult) ContentDocument() (string, error) {
	meta, err := p.MetadataJSON()
	if err != nil {
		return "", err
	}
	return string(meta) + "\n" + strings.Join(p.TextBlocks, "\n"), nil
}

// IsEmpty reports whether the page carries no text and no links.
func (p *PageResult) IsEmpty() bool {
	return len(p.TextBlocks) == 0 && len(p.Links) == 0
}
