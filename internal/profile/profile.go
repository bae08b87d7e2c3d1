// Package profile loads the candidate's CV text and search preferences.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	UserProfileFile = "user_profile.txt"
	PreferencesFile = "preferences.json"
)

// ErrMissing is wrapped when a required profile file does not exist.
var ErrMissing = errors.New("profile file not found")

// LoadUserProfile reads user_profile.txt from dir.
func LoadUserProfile(dir string) (string, error) {
	path := filepath.Join(dir, UserProfileFile)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return "", fmt.Errorf("read user profile: %w", err)
	}
	return string(b), nil
}

// LoadPreferences reads preferences.json from dir. The document must be a
// JSON object; its keys are passed to the planner verbatim.
func LoadPreferences(dir string) (map[string]any, error) {
	path := filepath.Join(dir, PreferencesFile)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissing)
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	var prefs map[string]any
	if err := json.Unmarshal(b, &prefs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if prefs == nil {
		prefs = map[string]any{}
	}
	return prefs, nil
}
