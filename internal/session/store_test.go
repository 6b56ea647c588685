// File: internal/session/store_test.go
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	return store
}

func sampleCookies() []Cookie {
	return []Cookie{
		{Name: "sid", Value: "abc123", Domain: "app.test", Path: "/", Expires: 1924992000, HTTPOnly: true, Secure: true},
		{Name: "theme", Value: "dark", Domain: "app.test", Path: "/"},
		{Name: "track", Value: "1", Domain: "cdn.test", Path: "/"},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved, err := store.Save("work", sampleCookies(), "https://app.test/dashboard")
	require.NoError(t, err)

	loaded, err := store.Load("work")
	require.NoError(t, err)

	assert.Equal(t, "work", loaded.Name)
	assert.Equal(t, saved.Cookies, loaded.Cookies)
	assert.Equal(t, 3, loaded.CookieCount)
	assert.Equal(t, []string{"app.test", "cdn.test"}, loaded.Domains)
	assert.Equal(t, "https://app.test/dashboard", loaded.CurrentURL)
	assert.WithinDuration(t, time.Now(), loaded.SavedAt, time.Minute)
}

func TestSaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save("s", sampleCookies(), "https://app.test/")
	require.NoError(t, err)
	_, err = store.Save("s", sampleCookies()[:1], "https://app.test/settings")
	require.NoError(t, err)

	loaded, err := store.Load("s")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.CookieCount)
	assert.Equal(t, "https://app.test/settings", loaded.CurrentURL)
}

func TestLoadTrustsStoredMetadata(t *testing.T) {
	// A record whose stored cookie_count disagrees with its cookie list loads
	// as-is; the file is the source of truth.
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	rec := Record{Name: "manual", SavedAt: time.Now().UTC(), Cookies: sampleCookies(), CookieCount: 99}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manual.json"), data, 0o600))

	loaded, err := store.Load("manual")
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.CookieCount)
	assert.Len(t, loaded.Cookies, 3)
}

func TestLoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList(t *testing.T) {
	store := newTestStore(t)
	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = store.Save("zulu", nil, "")
	require.NoError(t, err)
	_, err = store.Save("alpha", nil, "")
	require.NoError(t, err)

	names, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zulu"}, names)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Save("gone", sampleCookies(), "")
	require.NoError(t, err)

	deleted, err := store.Delete("gone")
	require.NoError(t, err)
	assert.True(t, deleted)

	// Deleting again is not an error, just a no-op.
	deleted, err = store.Delete("gone")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.Load("gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidNamesRejected(t *testing.T) {
	store := newTestStore(t)

	for _, name := range []string{"", "../escape", "a/b", `a\b`} {
		_, err := store.Save(name, nil, "")
		assert.Error(t, err, "name %q must be rejected", name)
		_, err = store.Load(name)
		assert.Error(t, err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	_, err = store.Save("clean", sampleCookies(), "")
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "clean.json", entries[0].Name())
}

func TestSavedFilePermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, nil)
	require.NoError(t, err)

	_, err = store.Save("secret", sampleCookies(), "")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "secret.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "session files hold credentials")
}
