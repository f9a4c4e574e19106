package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RequestLogEntry is one line of the structured request log file.
type RequestLogEntry struct {
	Time       time.Time `json:"time"`
	RequestID  string    `json:"request_id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	Provider   string    `json:"provider,omitempty"`
	Model      string    `json:"model,omitempty"`
	CredID     string    `json:"cred_id,omitempty"`
	LatencyMs  int64     `json:"latency_ms"`
	ErrMessage string    `json:"error,omitempty"`
}

// RequestLogger appends structured entries to a rotated file and supports
// reading back recent entries and clearing the log. The server does not
// construct one: the GET/DELETE /api/logs management endpoints serve and
// clear the usage statistics' in-memory recent-request buffer instead.
type RequestLogger struct {
	mu       sync.Mutex
	path     string
	rotator  *lumberjack.Logger
	enabled  bool
}

// NewRequestLogger creates a logger writing newline-delimited JSON to
// dataDir/logs/requests.log, rotated via lumberjack.
func NewRequestLogger(dataDir string) *RequestLogger {
	dir := filepath.Join(dataDir, "logs")
	_ = os.MkdirAll(dir, 0o755)
	path := filepath.Join(dir, "requests.log")
	return &RequestLogger{
		path:    path,
		enabled: true,
		rotator: &lumberjack.Logger{Filename: path, MaxSize: 20, MaxBackups: 20, MaxAge: 30, Compress: true},
	}
}

// SetEnabled toggles whether new entries are appended.
func (r *RequestLogger) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enabled = enabled
}

// Log appends one entry.
func (r *RequestLogger) Log(entry RequestLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.enabled {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')
	if _, err := r.rotator.Write(data); err != nil {
		log.WithError(err).Warn("failed to write request log entry")
	}
}

// Tail returns up to limit most recent entries from the active log file.
func (r *RequestLogger) Tail(limit int) ([]RequestLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []RequestLogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e RequestLogEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Time.After(entries[j].Time) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Clear truncates the active log file.
func (r *RequestLogger) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.rotator.Close(); err != nil {
		return err
	}
	return os.Truncate(r.path, 0)
}
