package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// FileSessionStore persists pending OAuth sessions under
// {configDir}/sessions/{state}.json and mirrors them in an in-memory map for
// fast lookup, per spec §3/§4.1. Writers hold a map-level lock for the tiny
// insert/delete critical section, per spec §5.
type FileSessionStore struct {
	dir string
	mu  sync.RWMutex
	idx map[string]*PendingSession
}

// NewFileSessionStore creates the sessions directory and loads any sessions
// already on disk into the in-memory index.
func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierror.Storage(err, "failed to create sessions dir %s", dir)
	}
	s := &FileSessionStore{dir: dir, idx: make(map[string]*PendingSession)}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apierror.Storage(err, "failed to list sessions dir %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var sess PendingSession
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		s.idx[sess.State] = &sess
	}
	return s, nil
}

func (s *FileSessionStore) pathFor(state string) string {
	return filepath.Join(s.dir, SanitizeID(state)+".json")
}

// Save writes a session to disk and the in-memory index.
func (s *FileSessionStore) Save(sess *PendingSession) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return apierror.Storage(err, "failed to marshal session %s", sess.State)
	}
	path := s.pathFor(sess.State)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apierror.Storage(err, "failed to write session temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apierror.Storage(err, "failed to commit session file")
	}
	s.mu.Lock()
	s.idx[sess.State] = sess
	s.mu.Unlock()
	return nil
}

// Get looks up a session by state, returning (nil, nil) when absent or
// expired.
func (s *FileSessionStore) Get(state string) (*PendingSession, error) {
	s.mu.RLock()
	sess, ok := s.idx[state]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if sess.Expired(time.Now()) {
		_ = s.Delete(state)
		return nil, nil
	}
	return sess, nil
}

// Delete removes a session from disk and the index.
func (s *FileSessionStore) Delete(state string) error {
	s.mu.Lock()
	delete(s.idx, state)
	s.mu.Unlock()
	if err := os.Remove(s.pathFor(state)); err != nil && !os.IsNotExist(err) {
		return apierror.Storage(err, "failed to delete session %s", state)
	}
	return nil
}

// SweepExpired removes every session past its ExpiresAt, returning the count
// removed. This backs the periodic session sweeper described in spec §3/§5.
func (s *FileSessionStore) SweepExpired() (int, error) {
	now := time.Now()
	s.mu.RLock()
	var expired []string
	for state, sess := range s.idx {
		if sess.Expired(now) {
			expired = append(expired, state)
		}
	}
	s.mu.RUnlock()
	for _, state := range expired {
		if err := s.Delete(state); err != nil {
			return len(expired), err
		}
	}
	return len(expired), nil
}
