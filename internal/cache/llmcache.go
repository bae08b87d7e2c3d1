package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// LLMCache stores model responses keyed by a digest of model name and prompt.
// The scorer consults it before spending budget on a job page it has already
// rated with the same prompt.
type LLMCache struct {
	Dir         string
	StrictPerms bool
}

// KeyFrom builds a cache key from model and prompt.
func KeyFrom(model string, prompt string) string {
	h := sha256.Sum256([]byte(model + "\n\n" + prompt))
	return hex.EncodeToString(h[:])
}

func (c *LLMCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// Get returns cached bytes if present. A miss is not an error.
func (c *LLMCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(c.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Save writes bytes to cache.
func (c *LLMCache) Save(_ context.Context, key string, data []byte) error {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	return writeFileAtomic(c.pathFor(key), data, filePerm(c.StrictPerms))
}
