// Package extract implements the default ContentExtractor abstraction:
// link discovery and markdown conversion over fetched HTML, grounded on
// the teacher's LinkExtractor (internal/services/crawler/link_extractor.go)
// and using the same goquery + html-to-markdown pair the teacher depends
// on. Specific extraction heuristics (structured-data schemas, readability
// scoring) are intentionally out of scope per spec.md's ContentExtractor
// boundary — callers needing those provide their own Extractor.
package extract

import (
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Page is the result of extracting one fetched HTML document.
type Page struct {
	Title       string
	Text        string
	Markdown    string
	Links       []string
	Metadata    map[string]string
}

// Extractor turns fetched HTML into structured content. The pipeline
// depends only on this interface so a richer implementation (readability
// scoring, embedded-LLM extraction) can be swapped in without touching the
// crawler or MCP tool layer.
type Extractor interface {
	Extract(html []byte, baseURL string) (*Page, error)
}

// DefaultExtractor implements Extractor with goquery for DOM traversal and
// html-to-markdown for the markdown rendition, the same pair the teacher
// uses for its own content pipeline (internal/services/crawler).
type DefaultExtractor struct {
	converter *md.Converter
}

// New builds a DefaultExtractor.
func New() *DefaultExtractor {
	return &DefaultExtractor{converter: md.NewConverter("", true, nil)}
}

// Extract parses html, resolving discovered links against baseURL.
func (e *DefaultExtractor) Extract(html []byte, baseURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, err
	}

	page := &Page{Metadata: make(map[string]string)}
	page.Title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("meta[name], meta[property]").Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr("name")
		if key == "" {
			key, _ = s.Attr("property")
		}
		if content, ok := s.Attr("content"); ok && key != "" {
			page.Metadata[key] = content
		}
	})

	page.Links = extractLinks(doc, baseURL)

	doc.Find("script, style, noscript").Remove()
	page.Text = strings.TrimSpace(doc.Find("body").Text())

	if markdown, err := e.converter.ConvertString(string(html)); err == nil {
		page.Markdown = markdown
	}

	return page, nil
}

func extractLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "#") {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		resolved.Fragment = ""
		absolute := resolved.String()
		if !seen[absolute] {
			seen[absolute] = true
			links = append(links, absolute)
		}
	})
	return links
}
