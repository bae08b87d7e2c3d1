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

	"github.com/rs/zerolog/log"
)

// DefaultSearxTimeRange keeps results to listings posted within the last month.
const DefaultSearxTimeRange = "month"

// SearxNG queries a self-hosted SearxNG instance for job listings. The
// instance ignores page sizes, so Search walks pageno until limit is reached,
// dropping URLs that several engines returned.
type SearxNG struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	UserAgent  string
	// Pages bounds how many result pages are requested per query. Zero means 1.
	Pages int
	// TimeRange is passed as time_range: day, week, month or year. Empty
	// means DefaultSearxTimeRange; "any" disables the filter.
	TimeRange string
}

func (s *SearxNG) Name() string { return "searxng" }

func (s *SearxNG) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(s.BaseURL) == "" {
		return nil, fmt.Errorf("missing searxng base url")
	}
	if limit <= 0 {
		limit = 10
	}
	pages := s.Pages
	if pages <= 0 {
		pages = 1
	}
	out := make([]Result, 0, limit)
	have := make(map[string]struct{}, limit)
	for pageno := 1; pageno <= pages && len(out) < limit; pageno++ {
		got, err := s.page(ctx, query, pageno)
		if err != nil {
			if len(out) > 0 {
				log.Warn().Err(err).Int("pageno", pageno).Str("query", query).Msg("searxng page failed; keeping earlier results")
				return out, nil
			}
			return nil, err
		}
		added := 0
		for _, r := range got {
			if _, dup := have[r.URL]; dup {
				continue
			}
			have[r.URL] = struct{}{}
			out = append(out, r)
			added++
			if len(out) >= limit {
				break
			}
		}
		if added == 0 {
			break
		}
	}
	return out, nil
}

func (s *SearxNG) page(ctx context.Context, query string, pageno int) ([]Result, error) {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("searxng url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/search") {
		u.Path = strings.TrimRight(u.Path, "/") + "/search"
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("categories", "general")
	q.Set("pageno", strconv.Itoa(pageno))
	switch tr := strings.ToLower(strings.TrimSpace(s.TimeRange)); tr {
	case "":
		q.Set("time_range", DefaultSearxTimeRange)
	case "any":
	default:
		q.Set("time_range", tr)
	}
	if s.APIKey != "" {
		q.Set("apikey", s.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	hc := s.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newStatusError(s.Name(), resp)
	}
	var sr searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode searxng response: %w", err)
	}
	if len(sr.Results) == 0 && len(sr.Unresponsive) > 0 {
		log.Warn().Int("engines", len(sr.Unresponsive)).Str("query", query).Msg("searxng engines unresponsive")
	}
	out := make([]Result, 0, len(sr.Results))
	for _, r := range sr.Results {
		link := strings.TrimSpace(r.URL)
		if link == "" {
			continue
		}
		source := s.Name()
		if r.Engine != "" {
			source += ":" + r.Engine
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     link,
			Snippet: strings.TrimSpace(r.Content),
			Source:  source,
		})
	}
	return out, nil
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
		Engine  string `json:"engine"`
	} `json:"results"`
	Unresponsive [][]any `json:"unresponsive_engines"`
}
