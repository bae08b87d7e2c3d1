package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUserProfile(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadUserProfile(dir)
	assert.ErrorIs(t, err, ErrMissing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, UserProfileFile), []byte("Go engineer, 8 years"), 0o644))
	cv, err := LoadUserProfile(dir)
	require.NoError(t, err)
	assert.Equal(t, "Go engineer, 8 years", cv)
}

func TestLoadPreferences(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadPreferences(dir)
	assert.ErrorIs(t, err, ErrMissing)

	require.NoError(t, os.WriteFile(filepath.Join(dir, PreferencesFile), []byte(`{"roles": ["sre"], "remote": true}`), 0o644))
	prefs, err := LoadPreferences(dir)
	require.NoError(t, err)
	assert.Equal(t, true, prefs["remote"])
	assert.Equal(t, []any{"sre"}, prefs["roles"])
}

func TestLoadPreferences_RejectsNonObject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PreferencesFile), []byte(`["not", "an", "object"]`), 0o644))
	_, err := LoadPreferences(dir)
	assert.Error(t, err)
}
