package extract

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Metadata is what a page says about itself: the advertised job title and
// the hiring company.
type Metadata struct {
	Title   string
	Company string
}

// ParseMetadata reads, in order of preference, a JSON-LD JobPosting, Open
// Graph tags, then <title> and the first <h1>.
func ParseMetadata(input []byte) Metadata {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(input))
	if err != nil {
		return Metadata{}
	}
	var m Metadata
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if jp, ok := findJobPosting(s.Text()); ok {
			m = jp
			return false
		}
		return true
	})
	if m.Title == "" {
		m.Title = attr(doc, `meta[property="og:title"]`)
	}
	if m.Company == "" {
		m.Company = attr(doc, `meta[property="og:site_name"]`)
	}
	if m.Title == "" {
		m.Title = collapse(doc.Find("title").First().Text())
	}
	if m.Title == "" {
		m.Title = collapse(doc.Find("h1").First().Text())
	}
	return m
}

func attr(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return collapse(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// findJobPosting decodes a JSON-LD block, which may be a single object, an
// array or an object with an @graph, and returns the first JobPosting.
func findJobPosting(raw string) (Metadata, bool) {
	var v any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &v); err != nil {
		return Metadata{}, false
	}
	return walkJSONLD(v)
}

func walkJSONLD(v any) (Metadata, bool) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if m, ok := walkJSONLD(item); ok {
				return m, true
			}
		}
	case map[string]any:
		if isJobPosting(t["@type"]) {
			m := Metadata{Title: collapse(asString(t["title"]))}
			switch org := t["hiringOrganization"].(type) {
			case map[string]any:
				m.Company = collapse(asString(org["name"]))
			case string:
				m.Company = collapse(org)
			}
			return m, true
		}
		if g, ok := t["@graph"]; ok {
			return walkJSONLD(g)
		}
	}
	return Metadata{}, false
}

func isJobPosting(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, "JobPosting")
	case []any:
		for _, x := range t {
			if isJobPosting(x) {
				return true
			}
		}
	}
	return false
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
