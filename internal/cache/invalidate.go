package cache

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ClearDir removes the directory and all contents, then recreates it empty.
func ClearDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("empty dir")
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}

// PurgeHTTPCacheByAge removes page entries whose SavedAt is older than maxAge,
// deleting both <key>.meta.json and <key>.body. A missing dir purges nothing.
func PurgeHTTPCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := walkFiles(dir, func(path string, d fs.DirEntry) {
		if !strings.HasSuffix(d.Name(), ".meta.json") {
			return
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return
		}
		var e HTTPEntry
		if err := json.Unmarshal(b, &e); err != nil {
			return
		}
		if now.Sub(e.SavedAt) <= maxAge {
			return
		}
		removed++
		_ = os.Remove(path)
		_ = os.Remove(strings.TrimSuffix(path, ".meta.json") + ".body")
	})
	return removed, err
}

// PurgeLLMCacheByAge removes cached model responses older than maxAge based on
// file modification time.
func PurgeLLMCacheByAge(dir string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	removed := 0
	err := walkFiles(dir, func(path string, d fs.DirEntry) {
		if !strings.HasSuffix(d.Name(), ".json") {
			return
		}
		info, err := d.Info()
		if err != nil || now.Sub(info.ModTime().UTC()) <= maxAge {
			return
		}
		removed++
		_ = os.Remove(path)
	})
	return removed, err
}

// DirStats reports the number of regular files and their total size under dir.
func DirStats(dir string) (files int, bytes int64, err error) {
	err = walkFiles(dir, func(_ string, d fs.DirEntry) {
		info, ierr := d.Info()
		if ierr != nil {
			return
		}
		files++
		bytes += info.Size()
	})
	return files, bytes, err
}

func walkFiles(dir string, fn func(path string, d fs.DirEntry)) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			fn(path, d)
		}
		return nil
	})
}
