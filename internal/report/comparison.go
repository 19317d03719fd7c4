package report

import (
	"slices"

	"github.com/nao1215/kbcrawl/internal/model"
)

// Comparison is the endpoint-level difference between two crawls of a site.
type Comparison struct {
	// Site is the crawled origin.
	Site string `json:"site"`

	// Older is the earlier crawl.
	Older *model.CrawlReport `json:"-"`

	// Newer is the later crawl.
	Newer *model.CrawlReport `json:"-"`

	// Added lists endpoints processed only by the newer crawl.
	Added []model.Endpoint `json:"added"`

	// Removed lists endpoints processed only by the older crawl.
	Removed []model.Endpoint `json:"removed"`

	// Changed lists endpoints present in both whose title or link count differ.
	Changed []model.Endpoint `json:"changed"`

	// Unchanged counts endpoints present in both crawls without changes.
	Unchanged int `json:"unchanged"`
}

// Compare computes the difference between older and newer.
// Endpoint lists are sorted.
func Compare(older, newer *model.CrawlReport) *Comparison {
	cmp := &Comparison{
		Older:   older,
		Newer:   newer,
		Added:   make([]model.Endpoint, 0),
		Removed: make([]model.Endpoint, 0),
		Changed: make([]model.Endpoint, 0),
	}
	if newer != nil {
		cmp.Site = newer.Site.Origin()
	} else if older != nil {
		cmp.Site = older.Site.Origin()
	}

	before := pagesByEndpoint(older)
	after := pagesByEndpoint(newer)

	for e, page := range after {
		prev, ok := before[e]
		switch {
		case !ok:
			cmp.Added = append(cmp.Added, e)
		case prev.Title != page.Title || prev.LinkCount != page.LinkCount:
			cmp.Changed = append(cmp.Changed, e)
		default:
			cmp.Unchanged++
		}
	}
	for e := range before {
		if _, ok := after[e]; !ok {
			cmp.Removed = append(cmp.Removed, e)
		}
	}

	slices.Sort(cmp.Added)
	slices.Sort(cmp.Removed)
	slices.Sort(cmp.Changed)
	return cmp
}

// HasChanges reports whether the crawls differ.
func (c *Comparison) HasChanges() bool {
	return len(c.Added) > 0 || len(c.Removed) > 0 || len(c.Changed) > 0
}

func pagesByEndpoint(report *model.CrawlReport) map[model.Endpoint]model.PageRecord {
	pages := make(map[model.Endpoint]model.PageRecord)
	if report == nil {
		return pages
	}
	for _, p := range report.Pages {
		pages[p.Endpoint] = p
	}
	return pages
}
