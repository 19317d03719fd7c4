package fetcher

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/kbcrawl/internal/crawler"
	"github.com/nao1215/kbcrawl/internal/model"
)

// textSelector selects the elements whose visible text is kept.
const textSelector = "h1, h2, h3, h4, h5, h6, p, span"

// Extract parses rendered markup into a PageResult.
//
// Relative hrefs are resolved against the origin of site, not against
// the page URL. Only links that stay on site are kept, normalized into
// endpoints and deduplicated in first-seen order.
func Extract(html string, site model.Site, endpoint model.Endpoint) (*model.PageResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := model.NewPageResult(endpoint)
	page.Title = cleanText(doc.Find("title").First().Text())

	for _, key := range model.MetadataKeys {
		if content, ok := doc.Find(fmt.Sprintf("meta[name=%q]", key)).First().Attr("content"); ok {
			value := strings.TrimSpace(content)
			page.Metadata[key] = &value
		}
	}

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		property, _ := s.Attr("property")
		content, _ := s.Attr("content")
		page.OpenGraph[property] = strings.TrimSpace(content)
	})
	doc.Find(`meta[name^="twitter:"]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		page.TwitterCard[name] = strings.TrimSpace(content)
	})

	doc.Find(textSelector).Each(func(_ int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			page.TextBlocks = append(page.TextBlocks, text)
		}
	})

	page.Preview = buildPreview(html, doc, page)
	page.Links = extractLinks(doc, site)
	return page, nil
}

// extractLinks returns the on-site endpoints referenced by a[href].
func extractLinks(doc *goquery.Document, site model.Site) []string {
	normalizer := crawler.NewNormalizer(site)
	seen := make(map[model.Endpoint]struct{})
	links := make([]string, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.TrimSpace(href) == "" {
			return
		}
		endpoint, ok := normalizer.Normalize(href)
		if !ok {
			return
		}
		if _, dup := seen[endpoint]; dup {
			return
		}
		seen[endpoint] = struct{}{}
		links = append(links, endpoint.String())
	})
	return links
}

// buildPreview prefers OpenGraph values and falls back to the document.
func buildPreview(html string, doc *goquery.Document, page *model.PageResult) model.Preview {
	var preview model.Preview

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(html)); err == nil {
		preview.Title = og.Title
		preview.Description = og.Description
		preview.SiteName = og.SiteName
		if len(og.Images) > 0 && og.Images[0] != nil {
			preview.ImageURL = og.Images[0].URL
		}
	}

	if preview.Title == "" {
		preview.Title = page.Title
	}
	if preview.Title == "" {
		preview.Title = cleanText(doc.Find("h1").First().Text())
	}
	if preview.Description == "" {
		if desc, ok := page.MetaValue(model.MetaDescription); ok {
			preview.Description = desc
		}
	}
	if preview.Description == "" {
		preview.Description = cleanText(doc.Find("p").First().Text())
	}
	return preview
}

// cleanText collapses whitespace and normalizes to NFC.
func cleanText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
