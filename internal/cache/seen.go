package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SeenStore is the flat set of job URLs a crawl has already attempted. Every
// URL that reached the fetch/score stage, or was rejected before it, is added
// so later runs skip it.
type SeenStore interface {
	Has(url string) bool
	Add(url string) error
	Len() int
	URLs() []string
	Close() error
}

const (
	BackendJSON = "json"
	BackendBolt = "bolt"
)

// OpenSeenStore opens the store for the given backend at path. An empty
// backend means JSON.
func OpenSeenStore(backend, path string) (SeenStore, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		return OpenJSONSeenStore(path)
	case BackendBolt:
		return OpenBoltSeenStore(path)
	default:
		return nil, fmt.Errorf("unknown seen store backend %q", backend)
	}
}

// seenFile is the on-disk layout: {"seen_urls": [...]} sorted ascending.
type seenFile struct {
	SeenURLs []string `json:"seen_urls"`
}

// JSONSeenStore keeps the set in memory and rewrites the whole file on every
// change.
type JSONSeenStore struct {
	path string

	mu   sync.Mutex
	seen map[string]struct{}
}

// OpenJSONSeenStore loads path if it exists. A missing file is an empty set;
// a malformed one is an error so it is never silently overwritten.
func OpenJSONSeenStore(path string) (*JSONSeenStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("seen store path is empty")
	}
	s := &JSONSeenStore{path: path, seen: make(map[string]struct{})}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read seen store: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return s, nil
	}
	var f seenFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode seen store %s: %w", path, err)
	}
	for _, u := range f.SeenURLs {
		if u != "" {
			s.seen[u] = struct{}{}
		}
	}
	return s, nil
}

func (s *JSONSeenStore) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok
}

func (s *JSONSeenStore) Add(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return nil
	}
	s.seen[url] = struct{}{}
	return s.saveLocked()
}

func (s *JSONSeenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *JSONSeenStore) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Close writes the file once more so an empty store still leaves a valid file.
func (s *JSONSeenStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *JSONSeenStore) sortedLocked() []string {
	out := make([]string, 0, len(s.seen))
	for u := range s.seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (s *JSONSeenStore) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create seen store dir: %w", err)
	}
	data, err := json.MarshalIndent(seenFile{SeenURLs: s.sortedLocked()}, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write seen store: %w", err)
	}
	return nil
}

// RemoveSeenStore deletes the store file for either backend. A missing file
// is not an error.
func RemoveSeenStore(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
