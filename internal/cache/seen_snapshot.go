package cache

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// ErrReadOnly is returned by Add on a snapshot.
var ErrReadOnly = errors.New("seen store is read-only")

// SnapshotSeenStore is an in-memory copy of a seen store taken without
// creating or modifying the file. Dry runs and reporting commands use it.
type SnapshotSeenStore struct {
	seen map[string]struct{}
}

// OpenSeenSnapshot reads the store for backend at path. A missing file is an
// empty snapshot and is not created.
func OpenSeenSnapshot(backend, path string) (*SnapshotSeenStore, error) {
	s := &SnapshotSeenStore{seen: make(map[string]struct{})}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("seen store path is empty")
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSON:
		js, err := OpenJSONSeenStore(path)
		if err != nil {
			return nil, err
		}
		for _, u := range js.URLs() {
			s.seen[u] = struct{}{}
		}
	case BackendBolt:
		db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second, ReadOnly: true})
		if err != nil {
			return nil, fmt.Errorf("open bolt seen store: %w", err)
		}
		defer db.Close()
		err = db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(seenBucket)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, _ []byte) error {
				s.seen[string(k)] = struct{}{}
				return nil
			})
		})
		if err != nil {
			return nil, fmt.Errorf("read bolt seen store: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown seen store backend %q", backend)
	}
	return s, nil
}

func (s *SnapshotSeenStore) Has(url string) bool {
	_, ok := s.seen[url]
	return ok
}

func (s *SnapshotSeenStore) Add(string) error { return ErrReadOnly }

func (s *SnapshotSeenStore) Len() int { return len(s.seen) }

func (s *SnapshotSeenStore) URLs() []string {
	out := make([]string, 0, len(s.seen))
	for u := range s.seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

func (s *SnapshotSeenStore) Close() error { return nil }
