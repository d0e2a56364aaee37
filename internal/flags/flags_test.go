package flags

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	s := New("")
	if s.Enabled(DSMode) {
		t.Fatal("DS_MODE should default off")
	}
	if !s.Enabled(FreeTime) || !s.Enabled(Snooze) {
		t.Fatal("FREE_TIME and SNOOZE should default on")
	}
	if s.Enabled("NO_SUCH_FLAG") {
		t.Fatal("unknown flags are off")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FLAG_DS_MODE", "true")
	t.Setenv("FLAG_FREE_TIME", "0")

	s := New("")
	if !s.Enabled(DSMode) {
		t.Fatal("env should turn DS_MODE on")
	}
	if s.Enabled(FreeTime) {
		t.Fatal("env should turn FREE_TIME off")
	}
}

func TestFileOverridesEnv(t *testing.T) {
	t.Setenv("FLAG_DS_MODE", "false")

	dir := t.TempDir()
	path := filepath.Join(dir, "flags.yml")
	if err := os.WriteFile(path, []byte("flags:\n  DS_MODE: true\n  CUSTOM: true\n"), 0o644); err != nil {
		t.Fatalf("write flags file: %v", err)
	}

	s := New(path)
	if !s.Enabled(DSMode) {
		t.Fatal("file should win over env")
	}
	if !s.Enabled("CUSTOM") {
		t.Fatal("file may define flags beyond the defaults")
	}
}

func TestMissingFileIsFine(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "absent.yml"))
	if s.Enabled(DSMode) {
		t.Fatal("defaults apply when the file is absent")
	}
}

func TestSetAndReload(t *testing.T) {
	s := New("")
	s.Set(DSMode, true)
	if !s.Enabled(DSMode) {
		t.Fatal("Set should take effect")
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if s.Enabled(DSMode) {
		t.Fatal("reload replaces in-memory overrides")
	}
}

func TestMalformedFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flags.yml")
	if err := os.WriteFile(path, []byte(":\n  - ["), 0o644); err != nil {
		t.Fatalf("write flags file: %v", err)
	}
	s := &Store{path: path, done: make(chan struct{})}
	if err := s.Reload(); err == nil {
		t.Fatal("expected parse error")
	}
}
