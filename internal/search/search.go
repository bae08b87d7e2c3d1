// Package search turns a query string into candidate job URLs through a
// pluggable web search provider.
package search

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Result represents a single search hit from any provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"-"` // provider name for observability
}

// Provider is a minimal interface for search providers.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	Name() string
}

// StatusError reports a non-2xx answer from a search API.
type StatusError struct {
	Provider   string
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s status: %d", e.Provider, e.Code)
}

// RateLimited reports whether the provider asked us to slow down.
func (e *StatusError) RateLimited() bool { return e.Code == http.StatusTooManyRequests }

func newStatusError(provider string, resp *http.Response) *StatusError {
	return &StatusError{Provider: provider, Code: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// URLs returns the URLs of results in order, skipping blanks.
func URLs(results []Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if u := strings.TrimSpace(r.URL); u != "" {
			out = append(out, u)
		}
	}
	return out
}
