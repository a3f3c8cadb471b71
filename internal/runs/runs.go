// Package runs records what was submitted in each batch run so that a
// later wait or collect can be tied back to its input.
package runs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/dwcbatch/internal/batch"
)

// ManifestFileName is the manifest's name inside a run directory.
const ManifestFileName = "run.yaml"

// ErrNoManifest is returned by Load when a run directory has no manifest.
var ErrNoManifest = errors.New("run manifest not found")

// Manifest describes one submitted batch.
type Manifest struct {
	RunID       string    `yaml:"run_id" json:"run_id"`
	BatchID     string    `yaml:"batch_id" json:"batch_id"`
	InputFileID string    `yaml:"input_file_id" json:"input_file_id"`
	Model       string    `yaml:"model" json:"model"`
	Records     int       `yaml:"records" json:"records"`
	Status      string    `yaml:"status" json:"status"`
	SubmittedAt time.Time `yaml:"submitted_at" json:"submitted_at"`
	CompletedAt time.Time `yaml:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// NewID returns a fresh run id.
func NewID() string {
	return uuid.NewString()
}

// NewManifest builds a manifest for a freshly submitted job.
func NewManifest(runID, model string, records int, job *batch.Job) *Manifest {
	return &Manifest{
		RunID:       runID,
		BatchID:     job.ID,
		InputFileID: job.InputFileID,
		Model:       model,
		Records:     records,
		Status:      job.Status,
		SubmittedAt: time.Now().UTC(),
	}
}

// Update copies the job's status onto the manifest.
func (m *Manifest) Update(job *batch.Job) {
	m.Status = job.Status
	if job.State() == batch.StateCompleted && m.CompletedAt.IsZero() {
		m.CompletedAt = time.Now().UTC()
	}
}

// Save writes the manifest into dir.
func (m *Manifest) Save(dir string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode run manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode run manifest: %w", err)
	}
	if _, err := batch.WriteArtifact(dir, ManifestFileName, buf.Bytes()); err != nil {
		return err
	}
	return nil
}

// Load reads the manifest from dir.
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoManifest, dir)
		}
		return nil, fmt.Errorf("failed to read run manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse run manifest: %w", err)
	}
	return &m, nil
}

// Requests reads back the batch input file stored in dir.
func Requests(dir string) ([]batch.Request, error) {
	f, err := os.Open(filepath.Join(dir, batch.InputArtifactName))
	if err != nil {
		return nil, fmt.Errorf("failed to open batch input: %w", err)
	}
	defer f.Close()
	return batch.DecodeJSONL(f)
}

// List loads every manifest under root, newest submission first.
// Directories without a manifest are skipped.
func List(root string) ([]*Manifest, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var manifests []*Manifest
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := Load(filepath.Join(root, e.Name()))
		if err != nil {
			if errors.Is(err, ErrNoManifest) {
				continue
			}
			return nil, err
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].SubmittedAt.After(manifests[j].SubmittedAt)
	})
	return manifests, nil
}
