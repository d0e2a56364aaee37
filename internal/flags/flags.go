package flags

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// #region defaults

// Flag names read by the steward. DS_MODE is the escalated-mode switch the
// orchestrator consults on every decision.
const (
	DSMode    = "DS_MODE"
	FreeTime  = "FREE_TIME"
	Snooze    = "SNOOZE"
	Rigidity  = "RIGIDITY"
	QuietGate = "QUIET_GATE"
)

func defaults() map[string]bool {
	return map[string]bool{
		DSMode:    false,
		FreeTime:  true,
		Snooze:    true,
		Rigidity:  true,
		QuietGate: true,
	}
}

// #endregion defaults

// #region store-struct

// Store holds feature flags assembled from defaults, FLAG_* env overrides,
// and an optional YAML file. The file is hot-reloaded on change.
type Store struct {
	mu      sync.RWMutex
	values  map[string]bool
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
}

type fileConfig struct {
	Flags map[string]bool `yaml:"flags"`
}

// #endregion store-struct

// #region constructor

// New builds a flag store. path may be empty (defaults + env only); a
// missing file is not an error, it may appear later.
func New(path string) *Store {
	s := &Store{path: path, done: make(chan struct{})}
	if err := s.Reload(); err != nil {
		log.Printf("[FLAGS] initial load: %v", err)
	}
	return s
}

// #endregion constructor

// #region access

// Enabled reports whether the named flag is on. Unknown flags are off.
func (s *Store) Enabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[name]
}

// Set overrides a flag in memory. A later file reload replaces it.
func (s *Store) Set(name string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = v
}

// #endregion access

// #region reload

// Reload rebuilds the flag map: defaults, then FLAG_* env vars, then the
// YAML file when present.
func (s *Store) Reload() error {
	values := defaults()

	for name := range values {
		if v, ok := os.LookupEnv("FLAG_" + name); ok {
			values[name] = truthy(v)
		}
	}

	if s.path != "" {
		data, err := os.ReadFile(s.path)
		switch {
		case os.IsNotExist(err):
			// fine; env + defaults apply
		case err != nil:
			return fmt.Errorf("read flags file: %w", err)
		default:
			var cfg fileConfig
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("parse flags file %s: %w", s.path, err)
			}
			for k, v := range cfg.Flags {
				values[k] = v
			}
		}
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// #endregion reload

// #region watch

// Watch starts hot reload of the flags file. No-op when no path is set.
func (s *Store) Watch() error {
	if s.path == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("flags watcher: %w", err)
	}
	// Watch the directory: editors replace files, which drops a direct watch.
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.Reload(); err != nil {
					log.Printf("[FLAGS] reload: %v", err)
				} else {
					log.Printf("[FLAGS] reloaded %s", s.path)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[FLAGS] watcher: %v", err)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// #endregion watch
