package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestBrave_Search_SendsHeadersAndParsesURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Subscription-Token") != "secret" {
			t.Errorf("missing subscription token header")
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("unexpected accept header %q", r.Header.Get("Accept"))
		}
		if r.URL.Query().Get("q") != "golang jobs" || r.URL.Query().Get("count") != "5" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"web": map[string]any{
				"results": []map[string]any{
					{"title": "Go Engineer", "url": "https://boards.greenhouse.io/acme/jobs/1", "description": "Remote"},
					{"title": "No URL", "url": ""},
				},
			},
		})
	}))
	defer srv.Close()

	b := &Brave{Endpoint: srv.URL, APIKey: "secret", HTTPClient: srv.Client()}
	got, err := b.Search(context.Background(), "golang jobs", 5)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://boards.greenhouse.io/acme/jobs/1" || got[0].Source != "brave" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestBrave_Search_FollowsOffsetUntilEmptyPage(t *testing.T) {
	var offsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		off := r.URL.Query().Get("offset")
		offsets = append(offsets, off)
		results := []map[string]any{}
		if off == "" || off == "1" {
			results = append(results, map[string]any{"url": fmt.Sprintf("https://example.com/jobs/%s", off)})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"web": map[string]any{"results": results}})
	}))
	defer srv.Close()

	b := &Brave{Endpoint: srv.URL, HTTPClient: srv.Client(), Pages: 5}
	got, err := b.Search(context.Background(), "q", 10)
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results across pages, got %d", len(got))
	}
	if len(offsets) != 3 {
		t.Fatalf("expected paging to stop after empty page, requests=%v", offsets)
	}
}

func TestBrave_Search_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	b := &Brave{Endpoint: srv.URL, HTTPClient: srv.Client()}
	_, err := b.Search(context.Background(), "q", 3)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if !se.RateLimited() || se.RetryAfter != 7*time.Second {
		t.Fatalf("unexpected status error: %+v", se)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if d := parseRetryAfter("3", now); d != 3*time.Second {
		t.Fatalf("seconds form: %v", d)
	}
	if d := parseRetryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now); d != 10*time.Second {
		t.Fatalf("date form: %v", d)
	}
	if d := parseRetryAfter("soon", now); d != 0 {
		t.Fatalf("garbage should be zero: %v", d)
	}
}
