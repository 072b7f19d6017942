package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"cuelang.org/go/cue/load"
)

var (
	overlayMu sync.RWMutex
	overlays  = make(map[string]load.Source)

	defaultMu       sync.Mutex
	defaultOverlays []func() error
	defaultsLoaded  bool
)

// RegisterDefaultOverlay queues a registration that runs the first time
// overlays are resolved, and again after each reset.
func RegisterDefaultOverlay(register func() error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultOverlays = append(defaultOverlays, register)
}

func ensureDefaultOverlays() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultsLoaded {
		return nil
	}
	defaultsLoaded = true
	for _, register := range defaultOverlays {
		if err := register(); err != nil {
			return err
		}
	}
	return nil
}

// RegisterOverlay registers a virtual CUE file that can be loaded via load.Config overlays.
func RegisterOverlay(path string, src load.Source) error {
	normalized, err := normalizeOverlayPath(path)
	if err != nil {
		return err
	}
	if src == nil {
		return errors.New("overlay source must not be nil")
	}
	overlayMu.Lock()
	defer overlayMu.Unlock()
	if _, exists := overlays[normalized]; exists {
		return fmt.Errorf("overlay %s already registered", normalized)
	}
	overlays[normalized] = src
	return nil
}

// RegisterOverlayString registers a virtual CUE file from a raw string.
func RegisterOverlayString(path, cue string) error {
	return RegisterOverlay(path, load.FromString(cue))
}

func normalizeOverlayPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("overlay path must not be empty")
	}
	cleaned := filepath.Clean(trimmed)
	if cleaned == "." || cleaned == string(filepath.Separator) {
		return "", errors.New("overlay path must reference a file")
	}
	return cleaned, nil
}

// ResolveOverlays returns a copy of the overlay registry with absolute paths for load.Config.
func ResolveOverlays(baseDir string) (map[string]load.Source, error) {
	if err := ensureDefaultOverlays(); err != nil {
		return nil, fmt.Errorf("register default overlays: %w", err)
	}
	overlayMu.RLock()
	defer overlayMu.RUnlock()
	if len(overlays) == 0 {
		return nil, nil
	}
	resolved := make(map[string]load.Source, len(overlays))
	for path, src := range overlays {
		resolved[filepath.Join(baseDir, path)] = src
	}
	return resolved, nil
}

// ResetOverlaysForTest clears the overlay registry. This helper is intended for tests only.
func ResetOverlaysForTest() {
	overlayMu.Lock()
	overlays = make(map[string]load.Source)
	overlayMu.Unlock()
	defaultMu.Lock()
	defaultsLoaded = false
	defaultMu.Unlock()
}
