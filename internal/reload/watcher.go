// Package reload polls the inputs of a light-curve run for changes.
package reload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/timzifer/superbol/config"
)

// Role is what a watched file feeds into a run.
type Role int

const (
	RoleConfig Role = iota
	RoleTable
	RolePhotometry
)

func (r Role) String() string {
	switch r {
	case RoleConfig:
		return "config"
	case RoleTable:
		return "table"
	case RolePhotometry:
		return "photometry"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Change is a watched file that was modified or removed.
type Change struct {
	Path    string
	Role    Role
	Removed bool
}

// Changes is the result of one Check, ordered by path.
type Changes []Change

// NeedsReload reports whether the configuration or a reference table changed.
// Photometry changes alone only require the light curve to be recomputed.
func (c Changes) NeedsReload() bool {
	for _, ch := range c {
		if ch.Role != RolePhotometry {
			return true
		}
	}
	return false
}

// Paths lists the changed files.
func (c Changes) Paths() []string {
	out := make([]string, len(c))
	for i, ch := range c {
		out[i] = ch.Path
	}
	return out
}

type snapshot struct {
	role    Role
	modTime time.Time
	size    int64
}

// Watcher tracks the photometry of one run together with the configuration
// and table files it was computed from.
type Watcher struct {
	mu         sync.Mutex
	photometry string
	files      map[string]snapshot
}

// NewWatcher builds a watcher over the photometry file and the files cfg was
// loaded from. The photometry file must exist.
func NewWatcher(photometry string, cfg *config.Config) (*Watcher, error) {
	abs, err := filepath.Abs(photometry)
	if err != nil {
		return nil, fmt.Errorf("resolve photometry path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch photometry: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("watch photometry: %s is a directory", abs)
	}
	watcher := &Watcher{photometry: abs}
	if err := watcher.Update(cfg); err != nil {
		return nil, err
	}
	return watcher, nil
}

// Update takes a fresh snapshot, re-deriving the configuration and table
// files from cfg. Call it after every recomputation.
func (w *Watcher) Update(cfg *config.Config) error {
	if w == nil {
		return nil
	}
	roles := make(map[string]Role)
	if cfg != nil {
		for _, path := range config.SourceFiles(cfg) {
			roles[path] = RoleConfig
		}
		if cfg.Tables.Bands != "" {
			roles[cfg.Tables.Bands] = RoleTable
		}
		for _, path := range cfg.Tables.BC {
			roles[path] = RoleTable
		}
	}
	if w.photometry != "" {
		roles[w.photometry] = RolePhotometry
	}

	files := make(map[string]snapshot, len(roles))
	for path, role := range roles {
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		files[path] = snapshot{role: role, modTime: info.ModTime(), size: info.Size()}
	}
	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	return nil
}

// Check reports the files that changed since the last snapshot.
func (w *Watcher) Check() (Changes, error) {
	if w == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var changes Changes
	for path, snap := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			changes = append(changes, Change{Path: path, Role: snap.role, Removed: true})
			continue
		}
		if info.ModTime().After(snap.modTime) || info.Size() != snap.size {
			changes = append(changes, Change{Path: path, Role: snap.role})
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes, nil
}
