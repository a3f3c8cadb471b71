package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-dwcbatch")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-dwcbatch" {
			t.Errorf("expected path /tmp/test-dwcbatch, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-dwcbatch")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-dwcbatch/config.yaml"},
		{"RunsPath", dir.RunsPath(), "/tmp/test-dwcbatch/runs"},
		{"RunDir", dir.RunDir("r1"), "/tmp/test-dwcbatch/runs/r1"},
		{"ExportsDir", dir.ExportsDir(), "/tmp/test-dwcbatch/exports"},
		{"ExportPath", dir.ExportPath("batch_1"), "/tmp/test-dwcbatch/exports/batch_1.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(filepath.Join(tmpDir, "dwcbatch"))

	if _, err := os.Stat(dir.Path()); err == nil {
		t.Fatal("home should not exist yet")
	}
	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	if _, err := os.Stat(dir.RunsPath()); err != nil {
		t.Errorf("runs directory not created: %v", err)
	}
	if dir.ConfigExists() {
		t.Error("config should not exist")
	}
}
