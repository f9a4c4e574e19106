package logging

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// StartLogDirCleaner periodically removes rotated/compressed log files
// under dataDir/logs older than retention, grounded on the teacher's
// log_dir_cleaner sweep that runs alongside the request logger. Returns a
// stop function.
func StartLogDirCleaner(dataDir string, retention time.Duration, interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Hour
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		sweep(dataDir, retention)
		for {
			select {
			case <-ticker.C:
				sweep(dataDir, retention)
			case <-done:
				return
			}
		}
	}()
	return func() { close(done) }
}

func sweep(dataDir string, retention time.Duration) {
	dir := filepath.Join(dataDir, "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		// lumberjack rotates backups as name-timestamp.ext[.gz]; only sweep
		// rotated backups, never the active requests.log/gateway.log files.
		if !strings.Contains(name, "-20") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, name)); err != nil {
				log.WithError(err).WithField("file", name).Warn("log cleaner: failed to remove expired log file")
			}
		}
	}
}
