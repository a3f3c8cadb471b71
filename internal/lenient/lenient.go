// Package lenient recovers JSON objects from model output that is close to,
// but not quite, valid JSON: markdown fences, surrounding prose, trailing
// commas, unquoted keys, single quotes and truncated structures.
package lenient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrEmpty is returned when the content is blank.
var ErrEmpty = errors.New("empty model output")

// ErrNotObject is returned when the recovered JSON is not an object.
var ErrNotObject = errors.New("recovered JSON is not an object")

// ParseObject parses content into a JSON object. The fence-stripped text,
// the outermost {...} span and the raw text are tried in that order, first
// strictly and then through jsonrepair; the first candidate that yields an
// object (or a single-object array) wins.
func ParseObject(content string) (map[string]any, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmpty
	}

	candidates := candidatesFor(content)

	for _, candidate := range candidates {
		if obj, err := decodeObject([]byte(candidate)); err == nil {
			return obj, nil
		}
	}

	var lastErr error
	for _, candidate := range candidates {
		repaired, err := jsonrepair.JSONRepair(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		obj, err := decodeObject([]byte(repaired))
		if err == nil {
			return obj, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no JSON candidate found")
	}
	return nil, fmt.Errorf("failed to recover JSON object: %w", lastErr)
}

func decodeObject(data []byte) (map[string]any, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	switch v := parsed.(type) {
	case map[string]any:
		return v, nil
	case []any:
		// Some models wrap a single record in an array.
		if len(v) == 1 {
			if obj, ok := v[0].(map[string]any); ok {
				return obj, nil
			}
		}
	}
	return nil, ErrNotObject
}

func candidatesFor(content string) []string {
	var candidates []string
	stripped := stripCodeFences(content)
	if stripped != "" {
		candidates = append(candidates, stripped)
		if extracted := extractJSONCandidate(stripped); extracted != "" {
			candidates = append(candidates, extracted)
		}
	}
	if extracted := extractJSONCandidate(content); extracted != "" {
		candidates = append(candidates, extracted)
	}
	candidates = append(candidates, content)

	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if _, ok := seen[candidate]; ok {
			continue
		}
		seen[candidate] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

// stripCodeFences returns the body of the first markdown code fence, or ""
// when there is none. Text after the closing fence is dropped; a missing
// closing fence keeps everything after the opening line.
func stripCodeFences(content string) string {
	open := strings.Index(content, "```")
	if open < 0 {
		return ""
	}

	// Drop the opening fence line (```json etc).
	rest := content[open+3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return ""
	}
	rest = rest[nl+1:]

	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// extractJSONCandidate returns the span from the first '{' or '[' to the last
// matching closer. A missing closer yields the tail, which jsonrepair can
// still complete when the model output was truncated.
func extractJSONCandidate(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}

	objectStart := strings.Index(trimmed, "{")
	arrayStart := strings.Index(trimmed, "[")

	start := -1
	closeChar := ""
	switch {
	case objectStart >= 0 && arrayStart >= 0:
		if objectStart < arrayStart {
			start = objectStart
			closeChar = "}"
		} else {
			start = arrayStart
			closeChar = "]"
		}
	case objectStart >= 0:
		start = objectStart
		closeChar = "}"
	case arrayStart >= 0:
		start = arrayStart
		closeChar = "]"
	default:
		return ""
	}

	end := strings.LastIndex(trimmed, closeChar)
	if end < start {
		return strings.TrimSpace(trimmed[start:])
	}
	return strings.TrimSpace(trimmed[start : end+1])
}
