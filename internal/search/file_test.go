package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileProvider_MatchesAllWords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	data := `[
		{"title": "Senior Go Engineer", "url": "https://example.com/jobs/1", "snippet": "Remote, Berlin"},
		{"title": "Python Developer", "url": "https://example.com/jobs/2", "snippet": "Berlin"},
		{"title": "Missing URL", "url": ""}
	]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	f := &FileProvider{Path: path}
	got, err := f.Search(context.Background(), "go berlin", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].URL != "https://example.com/jobs/1" || got[0].Source != "file" {
		t.Fatalf("unexpected results: %+v", got)
	}
	all, err := f.Search(context.Background(), "", 1)
	if err != nil || len(all) != 1 {
		t.Fatalf("limit not honored: %d err=%v", len(all), err)
	}
}

func TestFileProvider_EmptyPath(t *testing.T) {
	if _, err := (&FileProvider{}).Search(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestURLs(t *testing.T) {
	got := URLs([]Result{{URL: " https://a "}, {URL: ""}, {URL: "https://b"}})
	if len(got) != 2 || got[0] != "https://a" || got[1] != "https://b" {
		t.Fatalf("unexpected urls: %v", got)
	}
}
