package extract

import (
	"fmt"
	"strings"
)

// Extractor converts a fetched page into a Document. Implementations are
// deterministic and free of side effects.
type Extractor interface {
	Extract(pageURL string, input []byte) Document
}

const (
	KindHeuristic   = "heuristic"
	KindReadability = "readability"
)

// New returns the extractor named by kind. An empty kind means heuristic.
func New(kind string) (Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindHeuristic:
		return HeuristicExtractor{}, nil
	case KindReadability:
		return ReadabilityExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", kind)
	}
}

// HeuristicExtractor runs FromHTML and fills title and company from page
// metadata when present.
type HeuristicExtractor struct{}

func (HeuristicExtractor) Extract(_ string, input []byte) Document {
	doc := FromHTML(input)
	return withMetadata(doc, ParseMetadata(input))
}

func withMetadata(doc Document, m Metadata) Document {
	if m.Title != "" {
		doc.Title = m.Title
	}
	if m.Company != "" {
		doc.Company = m.Company
	}
	return doc
}
