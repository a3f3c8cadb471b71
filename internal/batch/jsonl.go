package batch

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed request_line.schema.json
var requestLineSchema []byte

var (
	lineSchemaOnce sync.Once
	lineSchema     *jsonschema.Schema
	lineSchemaErr  error
)

func compiledLineSchema() (*jsonschema.Schema, error) {
	lineSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("request_line.json", bytes.NewReader(requestLineSchema)); err != nil {
			lineSchemaErr = fmt.Errorf("failed to load request line schema: %w", err)
			return
		}
		lineSchema, lineSchemaErr = compiler.Compile("request_line.json")
		if lineSchemaErr != nil {
			lineSchemaErr = fmt.Errorf("failed to compile request line schema: %w", lineSchemaErr)
		}
	})
	return lineSchema, lineSchemaErr
}

// EncodeJSONL serializes requests as newline-delimited JSON, one object per
// line. Each line is checked against the batch line schema; duplicate custom
// ids are rejected because the provider would not be able to tell the
// results apart.
func EncodeJSONL(requests []Request) ([]byte, error) {
	schema, err := compiledLineSchema()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(requests))
	var buf bytes.Buffer
	for i, req := range requests {
		if _, dup := seen[req.CustomID]; dup {
			return nil, fmt.Errorf("line %d: duplicate custom_id %q", i+1, req.CustomID)
		}
		seen[req.CustomID] = struct{}{}

		line, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("line %d: failed to marshal request: %w", i+1, err)
		}

		var doc any
		if err := json.Unmarshal(line, &doc); err != nil {
			return nil, fmt.Errorf("line %d: failed to decode for validation: %w", i+1, err)
		}
		if err := schema.Validate(doc); err != nil {
			return nil, fmt.Errorf("line %d (%s): invalid batch line: %w", i+1, req.CustomID, err)
		}

		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeJSONL reads back a batch input file written by EncodeJSONL.
func DecodeJSONL(r io.Reader) ([]Request, error) {
	var (
		requests []Request
		firstErr error
	)
	err := scanLines(r, func(lineNum int, line []byte) {
		if firstErr != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			firstErr = fmt.Errorf("line %d: invalid batch line: %w", lineNum, err)
			return
		}
		requests = append(requests, req)
	})
	if err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return requests, nil
}

// WriteArtifact writes payload to dir/name, creating dir if needed, and
// returns the file path.
func WriteArtifact(dir, name string, payload []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	return path, nil
}
