// Package ingest loads pre-extracted OCR text for a batch run.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/dwcbatch/internal/batch"
)

// TextExtensions are the file extensions read when loading a directory.
var TextExtensions = []string{".txt", ".ocr"}

// Load reads OCR records from path. A directory yields one record per text
// file, keyed by file name without extension. A file must be JSON or YAML
// holding either an id -> text mapping or a list of {id, text} objects.
func Load(path string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("input not found: %w", err)
	}

	var records map[string]string
	if info.IsDir() {
		records, err = loadDir(path)
	} else {
		records, err = loadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no OCR records found in %s", path)
	}

	logger.Info("ocr records loaded", "path", path, "records", len(records))
	return records, nil
}

func loadDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	records := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !isTextFile(e.Name()) {
			continue
		}
		id := deriveID(e.Name())
		if _, dup := records[id]; dup {
			return nil, fmt.Errorf("duplicate record id %q in %s", id, dir)
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		records[id] = string(data)
	}
	return records, nil
}

func loadFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return decodeRecords(data, json.Unmarshal)
	case ".yaml", ".yml":
		return decodeRecords(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("unsupported input format %q (want .json, .yaml or a directory of text files)", ext)
	}
}

func decodeRecords(data []byte, unmarshal func([]byte, any) error) (map[string]string, error) {
	var mapping map[string]string
	if err := unmarshal(data, &mapping); err == nil {
		return mapping, nil
	}

	var list []batch.Record
	if err := unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("input must be an id -> text mapping or a list of {id, text}: %w", err)
	}
	records := make(map[string]string, len(list))
	for i, r := range list {
		if r.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i)
		}
		if _, dup := records[r.ID]; dup {
			return nil, fmt.Errorf("duplicate record id %q", r.ID)
		}
		records[r.ID] = r.Text
	}
	return records, nil
}

func isTextFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range TextExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// deriveID extracts a record id from a file name.
// e.g., "d537a581-9d79-431a-99ba-95d0a9a3cc7a.txt" -> "d537a581-9d79-431a-99ba-95d0a9a3cc7a"
func deriveID(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
