package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBackupRestore_RoundTrip(t *testing.T) {
	src := t.TempDir()
	dbPath := filepath.Join(src, "prefs.db")
	cfgPath := filepath.Join(src, "config.yaml")
	os.WriteFile(dbPath, []byte("db"), 0o644)
	os.WriteFile(dbPath+"-wal", []byte("wal"), 0o644)
	os.WriteFile(cfgPath, []byte("general: {}\n"), 0o644)

	files := backupFiles(dbPath, cfgPath)
	if len(files) != 3 {
		t.Fatalf("expected db, wal and config, got %v", files)
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.gz")
	if err := createTarGz(archive, files); err != nil {
		t.Fatalf("create: %v", err)
	}

	dst := t.TempDir()
	newDB := filepath.Join(dst, "data", "restored.db")
	newCfg := filepath.Join(dst, "config.yaml")
	restored, err := extractTarGz(archive, newDB, newCfg)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(restored) != 3 {
		t.Fatalf("expected 3 restored files, got %v", restored)
	}

	for path, want := range map[string]string{newDB: "db", newDB + "-wal": "wal", newCfg: "general: {}\n"} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", path, data, want)
		}
	}
}

func TestRestoreTarget(t *testing.T) {
	tests := map[string]string{
		"prefs.db":     "/d/p.db",
		"prefs.db-wal": "/d/p.db-wal",
		"prefs.db-shm": "/d/p.db-shm",
		"config.json":  "/c/config.yaml",
		"notes.txt":    "",
	}
	for name, want := range tests {
		if got := restoreTarget(name, "/d/p.db", "/c/config.yaml"); got != want {
			t.Errorf("restoreTarget(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestHumanSize(t *testing.T) {
	tests := map[int64]string{512: "512 B", 2048: "2.0 KB", 3 * 1024 * 1024: "3.0 MB"}
	for in, want := range tests {
		if got := humanSize(in); got != want {
			t.Errorf("humanSize(%d) = %q, want %q", in, got, want)
		}
	}
}
