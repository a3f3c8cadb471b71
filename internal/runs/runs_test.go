package runs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/dwcbatch/internal/batch"
)

func TestNewID(t *testing.T) {
	id := NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("NewID() = %q is not a uuid: %v", id, err)
	}
	if NewID() == id {
		t.Error("expected distinct ids")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	job := &batch.Job{ID: "batch_1", InputFileID: "file-1", Status: "validating"}

	m := NewManifest("run-1", "gpt-3.5-turbo", 3, job)
	if err := m.Save(dir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.BatchID != "batch_1" || loaded.InputFileID != "file-1" || loaded.Records != 3 {
		t.Errorf("unexpected manifest %+v", loaded)
	}
	if !loaded.SubmittedAt.Equal(m.SubmittedAt) {
		t.Errorf("submitted_at lost: %v vs %v", loaded.SubmittedAt, m.SubmittedAt)
	}
}

func TestManifestUpdate(t *testing.T) {
	m := NewManifest("run-1", "m", 1, &batch.Job{ID: "batch_1", Status: "validating"})

	m.Update(&batch.Job{ID: "batch_1", Status: "in_progress"})
	if m.Status != "in_progress" || !m.CompletedAt.IsZero() {
		t.Errorf("unexpected in-progress manifest %+v", m)
	}

	m.Update(&batch.Job{ID: "batch_1", Status: "completed"})
	if m.CompletedAt.IsZero() {
		t.Error("expected completed_at to be set")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}
}

func TestRequests(t *testing.T) {
	dir := t.TempDir()
	payload, err := batch.EncodeJSONL(batch.FormatRequests(map[string]string{"x": "text"}, "P", "m"))
	if err != nil {
		t.Fatalf("EncodeJSONL() error = %v", err)
	}
	if _, err := batch.WriteArtifact(dir, batch.InputArtifactName, payload); err != nil {
		t.Fatalf("WriteArtifact() error = %v", err)
	}

	requests, err := Requests(dir)
	if err != nil {
		t.Fatalf("Requests() error = %v", err)
	}
	if len(requests) != 1 || requests[0].CustomID != "x" {
		t.Errorf("unexpected requests %+v", requests)
	}
}

func TestList(t *testing.T) {
	root := t.TempDir()

	older := NewManifest("run-old", "m", 1, &batch.Job{ID: "batch_1", Status: "completed"})
	older.SubmittedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := NewManifest("run-new", "m", 2, &batch.Job{ID: "batch_2", Status: "in_progress"})
	newer.SubmittedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, m := range []*Manifest{older, newer} {
		if err := m.Save(filepath.Join(root, m.RunID)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "stray"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	manifests, err := List(root)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(manifests) != 2 {
		t.Fatalf("expected 2 manifests, got %d", len(manifests))
	}
	if manifests[0].RunID != "run-new" || manifests[1].RunID != "run-old" {
		t.Errorf("expected newest first, got %s, %s", manifests[0].RunID, manifests[1].RunID)
	}

	t.Run("missing root", func(t *testing.T) {
		manifests, err := List(filepath.Join(root, "nope"))
		if err != nil || manifests != nil {
			t.Errorf("expected empty list, got %v, %v", manifests, err)
		}
	})
}
