package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/cliproxy-gateway/gateway/internal/apierror"
)

// FileCredentialStore persists one JSON file per credential under authDir,
// named {sanitized-id}.json, written atomically via write-temp-then-rename
// (spec §4.1). A corrupt or schema-invalid record is logged and skipped
// during listing; it is never silently rewritten.
type FileCredentialStore struct {
	authDir string

	// mus guards per-id write serialization: "a record's last write wins,
	// but no two concurrent writers for the same id" (spec §5).
	mus   sync.Map // id -> *sync.Mutex
	mapMu sync.Mutex
}

// NewFileCredentialStore creates the auth directory if needed and returns a
// store rooted there.
func NewFileCredentialStore(authDir string) (*FileCredentialStore, error) {
	if err := os.MkdirAll(authDir, 0o755); err != nil {
		return nil, apierror.Storage(err, "failed to create auth dir %s", authDir)
	}
	return &FileCredentialStore{authDir: authDir}, nil
}

func (s *FileCredentialStore) lockFor(id string) *sync.Mutex {
	if v, ok := s.mus.Load(id); ok {
		return v.(*sync.Mutex)
	}
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if v, ok := s.mus.Load(id); ok {
		return v.(*sync.Mutex)
	}
	m := &sync.Mutex{}
	s.mus.Store(id, m)
	return m
}

func (s *FileCredentialStore) pathFor(id string) string {
	return filepath.Join(s.authDir, SanitizeID(id)+".json")
}

// List returns every valid credential record sorted by UpdatedAt descending.
func (s *FileCredentialStore) List() ([]*Credential, error) {
	entries, err := os.ReadDir(s.authDir)
	if err != nil {
		return nil, apierror.Storage(err, "failed to list auth dir %s", s.authDir)
	}
	var creds []*Credential
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.authDir, entry.Name()))
		if err != nil {
			log.WithError(err).WithField("file", entry.Name()).Warn("credential store: failed to read record, skipping")
			continue
		}
		var c Credential
		if err := json.Unmarshal(data, &c); err != nil {
			log.WithError(err).WithField("file", entry.Name()).Warn("credential store: corrupt record, skipping")
			continue
		}
		if c.ID == "" || !IsKnownProvider(c.Provider) {
			log.WithField("file", entry.Name()).Warn("credential store: schema-invalid record, skipping")
			continue
		}
		creds = append(creds, &c)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].UpdatedAt.After(creds[j].UpdatedAt) })
	return creds, nil
}

// Get loads a single record by id.
func (s *FileCredentialStore) Get(id string) (*Credential, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apierror.Storage(err, "failed to read credential %s", id)
	}
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, apierror.Storage(err, "corrupt credential record %s", id)
	}
	return &c, nil
}

// GetByProvider returns every valid record for the given provider.
func (s *FileCredentialStore) GetByProvider(p Provider) ([]*Credential, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []*Credential
	for _, c := range all {
		if c.Provider == p {
			out = append(out, c)
		}
	}
	return out, nil
}

// Save atomically writes a record to disk, serialized per-id.
func (s *FileCredentialStore) Save(c *Credential) error {
	if c.ID == "" {
		return apierror.Storage(nil, "credential id must not be empty")
	}
	lock := s.lockFor(c.ID)
	lock.Lock()
	defer lock.Unlock()

	if c.SchemaVersion == 0 {
		c.SchemaVersion = CurrentSchemaVersion
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return apierror.Storage(err, "failed to marshal credential %s", c.ID)
	}
	path := s.pathFor(c.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return apierror.Storage(err, "failed to write credential temp file %s", c.ID)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return apierror.Storage(err, "failed to commit credential record %s", c.ID)
	}
	return nil
}

// Delete removes a single record.
func (s *FileCredentialStore) Delete(id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()
	if err := os.Remove(s.pathFor(id)); err != nil && !os.IsNotExist(err) {
		return apierror.Storage(err, "failed to delete credential %s", id)
	}
	return nil
}

// DeleteByProvider removes every record for the given provider, returning
// the count removed.
func (s *FileCredentialStore) DeleteByProvider(p Provider) (int, error) {
	creds, err := s.GetByProvider(p)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range creds {
		if err := s.Delete(c.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
