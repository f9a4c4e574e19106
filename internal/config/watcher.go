package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc is invoked with a freshly loaded Config whenever the watched
// file changes on disk.
type ReloadFunc func(*Config)

// Watcher hot-reloads the config file on write/rename events, debouncing
// bursts of events from editors that perform write-then-rename saves.
type Watcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onReload ReloadFunc
	mu       sync.Mutex
	done     chan struct{}
}

// WatchConfig starts watching configFile for changes and invokes onReload
// with the newly parsed Config after each debounced change. The caller must
// call Close to stop the watcher.
func WatchConfig(configFile string, onReload ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(configFile)
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w := &Watcher{path: filepath.Clean(configFile), fsw: fsw, onReload: onReload, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	reload := func() {
		cfg, err := LoadConfig(w.path)
		if err != nil {
			log.WithError(err).Warn("config hot-reload: failed to parse updated config, keeping previous configuration")
			return
		}
		w.mu.Lock()
		fn := w.onReload
		w.mu.Unlock()
		if fn != nil {
			fn(cfg)
		}
	}
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(250*time.Millisecond, reload)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.WithError(err).Warn("config hot-reload watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
