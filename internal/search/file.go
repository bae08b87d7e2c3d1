package search

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// FileProvider serves results from a local JSON file for offline runs and
// tests. The file is an array of {"title", "url", "snippet"} objects. Every
// word of the query must occur in the title, snippet or URL; an empty query
// matches everything.
type FileProvider struct {
	Path string
}

func (f *FileProvider) Name() string { return "file" }

func (f *FileProvider) Search(_ context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(f.Path) == "" {
		return nil, errors.New("file provider path is empty")
	}
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}
	var raw []Result
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	words := strings.Fields(strings.ToLower(query))
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		if !matchesAll(words, r) {
			continue
		}
		r.Source = f.Name()
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func matchesAll(words []string, r Result) bool {
	hay := strings.ToLower(r.Title + " " + r.Snippet + " " + r.URL)
	for _, w := range words {
		if !strings.Contains(hay, w) {
			return false
		}
	}
	return true
}
