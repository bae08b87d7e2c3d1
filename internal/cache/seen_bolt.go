package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

var seenBucket = []byte("seen_urls")

// BoltSeenStore persists the seen set in a bbolt file. Each Add is its own
// transaction, so the set survives a crash mid-run.
type BoltSeenStore struct {
	db *bolt.DB
}

// OpenBoltSeenStore opens or creates the database at path.
func OpenBoltSeenStore(path string) (*BoltSeenStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("seen store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create seen store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt seen store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(seenBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &BoltSeenStore{db: db}, nil
}

func (s *BoltSeenStore) Has(url string) bool {
	var found bool
	_ = s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(seenBucket).Get([]byte(url)) != nil
		return nil
	})
	return found
}

// Add stores url with its first-seen time. Re-adding keeps the original time.
func (s *BoltSeenStore) Add(url string) error {
	if url == "" {
		return errors.New("empty url")
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(seenBucket)
		if b.Get([]byte(url)) != nil {
			return nil
		}
		return b.Put([]byte(url), []byte(time.Now().UTC().Format(time.RFC3339)))
	})
}

func (s *BoltSeenStore) Len() int {
	var n int
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(seenBucket).Stats().KeyN
		return nil
	})
	return n
}

// URLs returns the stored URLs in key order.
func (s *BoltSeenStore) URLs() []string {
	var out []string
	_ = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(seenBucket).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	return out
}

func (s *BoltSeenStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
