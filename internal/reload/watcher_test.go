package reload

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/timzifer/superbol/config"
)

func TestNewWatcherTracksRoles(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "run.yaml")
	bandsFile := filepath.Join(dir, "bands.json")
	bcFile := filepath.Join(dir, "bc.json")
	photometryFile := filepath.Join(dir, "sn.json")

	writeFile(t, configFile, "config")
	writeFile(t, bandsFile, "[]")
	writeFile(t, bcFile, "{}")
	writeFile(t, photometryFile, "{}")

	cfg := &config.Config{
		Source: configFile,
		Tables: config.TablesConfig{Bands: bandsFile, BC: []string{bcFile, bcFile}},
	}
	watcher, err := NewWatcher(photometryFile, cfg)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	want := map[string]Role{
		configFile:     RoleConfig,
		bandsFile:      RoleTable,
		bcFile:         RoleTable,
		photometryFile: RolePhotometry,
	}
	if len(watcher.files) != len(want) {
		t.Fatalf("expected %d tracked files, got %d", len(want), len(watcher.files))
	}
	for path, role := range want {
		snap, ok := watcher.files[path]
		if !ok {
			t.Fatalf("file %s not tracked", path)
		}
		if snap.role != role {
			t.Fatalf("file %s role = %v, want %v", path, snap.role, role)
		}
	}
}

func TestNewWatcherRequiresPhotometry(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewWatcher(filepath.Join(dir, "missing.json"), &config.Config{}); err == nil {
		t.Fatal("expected error for missing photometry")
	}
	if _, err := NewWatcher(dir, &config.Config{}); err == nil {
		t.Fatal("expected error for photometry directory")
	}
}

func TestUpdateExpandsCUEDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "run.cue"), "package run")
	writeFile(t, filepath.Join(dir, "defaults.cue"), "package run")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	var watcher Watcher
	if err := watcher.Update(&config.Config{Source: dir}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(watcher.files) != 2 {
		t.Fatalf("expected 2 tracked files, got %d", len(watcher.files))
	}
}

func TestUpdateSkipsMissingTables(t *testing.T) {
	dir := t.TempDir()
	var watcher Watcher
	cfg := &config.Config{
		Source: filepath.Join(dir, "missing.yaml"),
		Tables: config.TablesConfig{Bands: filepath.Join(dir, "missing.json")},
	}
	if err := watcher.Update(cfg); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if len(watcher.files) != 0 {
		t.Fatalf("expected 0 tracked files, got %d", len(watcher.files))
	}
}

func TestPhotometryChangeDoesNotNeedReload(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "run.yaml")
	photometryFile := filepath.Join(dir, "sn.json")
	writeFile(t, configFile, "config")
	writeFile(t, photometryFile, "[]")

	watcher, err := NewWatcher(photometryFile, &config.Config{Source: configFile})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	if changes, err := watcher.Check(); err != nil {
		t.Fatalf("Check() error = %v", err)
	} else if len(changes) != 0 {
		t.Fatalf("expected no changes on first check, got %v", changes)
	}

	time.Sleep(10 * time.Millisecond)
	writeFile(t, photometryFile, `[{"band": "V", "time": 1, "magnitude": 15, "uncertainty": 0.1}]`)

	changes, err := watcher.Check()
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	want := Changes{{Path: photometryFile, Role: RolePhotometry}}
	if !reflect.DeepEqual(changes, want) {
		t.Fatalf("Check() = %v, want %v", changes, want)
	}
	if changes.NeedsReload() {
		t.Fatal("photometry change should not require a configuration reload")
	}

	if err := watcher.Update(&config.Config{Source: configFile}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if changes, _ := watcher.Check(); len(changes) != 0 {
		t.Fatalf("expected no changes after update, got %v", changes)
	}
}

func TestCheckDetectsTableChangesAndRemovals(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "run.yaml")
	bcFile := filepath.Join(dir, "bc.json")
	photometryFile := filepath.Join(dir, "sn.json")
	writeFile(t, configFile, "first")
	writeFile(t, bcFile, "second")
	writeFile(t, photometryFile, "[]")

	cfg := &config.Config{
		Source: configFile,
		Tables: config.TablesConfig{BC: []string{bcFile}},
	}
	watcher, err := NewWatcher(photometryFile, cfg)
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	writeFile(t, configFile, "first-UPDATED")
	if err := os.Remove(bcFile); err != nil {
		t.Fatalf("Remove(%s) error = %v", bcFile, err)
	}

	changes, err := watcher.Check()
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	want := Changes{
		{Path: bcFile, Role: RoleTable, Removed: true},
		{Path: configFile, Role: RoleConfig},
	}
	if !reflect.DeepEqual(changes, want) {
		t.Fatalf("Check() = %v, want %v", changes, want)
	}
	if !changes.NeedsReload() {
		t.Fatal("table change should require a reload")
	}
	if got := changes.Paths(); !reflect.DeepEqual(got, []string{bcFile, configFile}) {
		t.Fatalf("Paths() = %v", got)
	}
}

func TestRoleString(t *testing.T) {
	for role, want := range map[Role]string{RoleConfig: "config", RoleTable: "table", RolePhotometry: "photometry", Role(9): "role(9)"} {
		if got := role.String(); got != want {
			t.Fatalf("Role(%d).String() = %q, want %q", int(role), got, want)
		}
	}
}

func TestWatcherHandlesNilReceiver(t *testing.T) {
	var watcher *Watcher
	if err := watcher.Update(&config.Config{}); err != nil {
		t.Fatalf("nil watcher Update() error = %v", err)
	}
	if changes, err := watcher.Check(); err != nil {
		t.Fatalf("nil watcher Check() error = %v", err)
	} else if changes != nil {
		t.Fatalf("expected nil changes from nil watcher, got %v", changes)
	}
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", path, err)
	}
}
