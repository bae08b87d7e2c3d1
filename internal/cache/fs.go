package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

func dirPerm(strict bool) os.FileMode {
	if strict {
		return 0o700
	}
	return 0o755
}

func filePerm(strict bool) os.FileMode {
	if strict {
		return 0o600
	}
	return 0o644
}

// ensureDir creates dir and, under strict permissions, tightens an existing one.
func ensureDir(dir string, strict bool) error {
	if dir == "" {
		return errors.New("cache dir not configured")
	}
	if err := os.MkdirAll(dir, dirPerm(strict)); err != nil {
		return err
	}
	if strict {
		if info, err := os.Stat(dir); err == nil && info.Mode()&0o777 != 0o700 {
			_ = os.Chmod(dir, 0o700)
		}
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place so a
// crash never leaves a truncated file behind.
func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, mode); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
