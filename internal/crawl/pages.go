package crawl

import (
	"context"

	"github.com/hyperifyio/jobcrawler/internal/extract"
	"github.com/hyperifyio/jobcrawler/internal/fetch"
)

// HTTPPageSource fetches pages over HTTP and flattens the extracted text to a
// single line.
type HTTPPageSource struct {
	Client    *fetch.Client
	Extractor extract.Extractor
}

func (s *HTTPPageSource) Fetch(ctx context.Context, url string) (extract.Document, error) {
	body, _, err := s.Client.Get(ctx, url)
	if err != nil {
		return extract.Document{}, err
	}
	ex := s.Extractor
	if ex == nil {
		ex = extract.HeuristicExtractor{}
	}
	doc := ex.Extract(url, body)
	doc.Text = extract.Flatten(doc.Text)
	doc.Title = extract.Flatten(doc.Title)
	doc.Company = extract.Flatten(doc.Company)
	return doc, nil
}
