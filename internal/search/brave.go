package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBraveEndpoint is the Brave web search API.
const DefaultBraveEndpoint = "https://api.search.brave.com/res/v1/web/search"

// braveMaxCount is the largest page size the API accepts.
const braveMaxCount = 20

// Brave implements Provider against the Brave Search API.
type Brave struct {
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string
	// Pages bounds how many offset pages are requested per query. Zero means 1.
	Pages int
}

func (b *Brave) Name() string { return "brave" }

// Search requests up to limit results, following the offset cursor until
// limit is reached, a page comes back empty or Pages is exhausted.
func (b *Brave) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	pages := b.Pages
	if pages <= 0 {
		pages = 1
	}
	out := make([]Result, 0, limit)
	for page := 0; page < pages && len(out) < limit; page++ {
		count := limit - len(out)
		if count > braveMaxCount {
			count = braveMaxCount
		}
		got, err := b.page(ctx, query, count, page)
		if err != nil {
			if page > 0 && len(out) > 0 {
				// Keep what earlier pages produced.
				return out, nil
			}
			return nil, err
		}
		if len(got) == 0 {
			break
		}
		for _, r := range got {
			out = append(out, r)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (b *Brave) page(ctx context.Context, query string, count, offset int) ([]Result, error) {
	endpoint := b.Endpoint
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultBraveEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("brave endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if b.APIKey != "" {
		req.Header.Set("X-Subscription-Token", b.APIKey)
	}
	if b.UserAgent != "" {
		req.Header.Set("User-Agent", b.UserAgent)
	}
	hc := b.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(b.Name(), resp)
	}
	var br braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return nil, fmt.Errorf("decode brave response: %w", err)
	}
	out := make([]Result, 0, len(br.Web.Results))
	for _, r := range br.Web.Results {
		link := strings.TrimSpace(r.URL)
		if link == "" {
			continue
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     link,
			Snippet: strings.TrimSpace(r.Description),
			Source:  b.Name(),
		})
	}
	return out, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}
