package extract

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
	"github.com/rs/zerolog/log"
)

// ReadabilityExtractor uses the Readability algorithm to isolate the main
// article body. Pages it cannot parse fall back to the heuristic extractor.
type ReadabilityExtractor struct{}

func (ReadabilityExtractor) Extract(pageURL string, input []byte) Document {
	meta := ParseMetadata(input)
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(input), u)
	text := ""
	if err == nil {
		text = normalizeWhitespace(article.TextContent)
	}
	if err != nil || text == "" {
		if err != nil {
			log.Debug().Err(err).Str("url", pageURL).Msg("readability failed; using heuristic extraction")
		}
		return HeuristicExtractor{}.Extract(pageURL, input)
	}
	doc := Document{Title: strings.TrimSpace(article.Title), Text: text}
	if meta.Company == "" {
		meta.Company = strings.TrimSpace(article.SiteName)
	}
	return withMetadata(doc, meta)
}
