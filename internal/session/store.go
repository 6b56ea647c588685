// File: internal/session/store.go
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNotFound is returned when a named session does not exist.
var ErrNotFound = errors.New("session not found")

// Store reads and writes session records under a single directory, one JSON
// file per session name.
type Store struct {
	dir string
	log *zap.Logger
}

// NewStore creates the session directory if needed and returns a store over
// it.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
	}
	return &Store{dir: dir, log: logger.Named("session")}, nil
}

// Save persists a session under name, overwriting any previous record with
// that name. The write is atomic: a crash mid-save leaves either the old
// record or the new one, never a torn file.
func (s *Store) Save(name string, cookies []Cookie, currentURL string) (Record, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return Record{}, err
	}

	rec := newRecord(name, cookies, currentURL, time.Now().UTC())
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("encoding session %q: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return Record{}, fmt.Errorf("creating temp file for session %q: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Record{}, fmt.Errorf("writing session %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Record{}, fmt.Errorf("closing session file for %q: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return Record{}, fmt.Errorf("setting permissions on session %q: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Record{}, fmt.Errorf("committing session %q: %w", name, err)
	}

	s.log.Info("Session saved",
		zap.String("name", name),
		zap.Int("cookies", rec.CookieCount),
		zap.Strings("domains", rec.Domains))
	return rec, nil
}

// Load reads the named session. A missing session yields ErrNotFound.
func (s *Store) Load(name string) (Record, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return Record{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("session %q: %w", name, ErrNotFound)
		}
		return Record{}, fmt.Errorf("reading session %q: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decoding session %q: %w", name, err)
	}
	return rec, nil
}

// List returns the names of all stored sessions, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the named session. It reports whether a session was
// actually deleted; deleting a missing session is not an error.
func (s *Store) Delete(name string) (bool, error) {
	path, err := s.pathFor(name)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("deleting session %q: %w", name, err)
	}
	s.log.Info("Session deleted", zap.String("name", name))
	return true, nil
}

// pathFor maps a session name to its file path, rejecting names that would
// escape the store directory.
func (s *Store) pathFor(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("session name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid session name %q", name)
	}
	return filepath.Join(s.dir, name+".json"), nil
}
