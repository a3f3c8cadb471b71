package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackzampolin/dwcbatch/internal/lenient"
)

// maxLineSize bounds a single output line; model responses are small but
// the scanner default of 64KiB is too tight for verbose completions.
const maxLineSize = 16 * 1024 * 1024

// Sources recorded on RecordFailure.
const (
	SourceOutput = "output"
	SourceError  = "error"
)

type outputLine struct {
	ID       string          `json:"id"`
	CustomID string          `json:"custom_id"`
	Response *outputResponse `json:"response"`
	Error    *lineError      `json:"error"`
}

type outputResponse struct {
	StatusCode int             `json:"status_code"`
	RequestID  string          `json:"request_id"`
	Body       json.RawMessage `json:"body"`
}

type responseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *lineError `json:"error"`
}

type lineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *lineError) String() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Assemble reads batch output lines and recovers a Fields object from each
// response's message content. Lines come in any order. A line that cannot
// be used is logged, recorded in Result.Failed and skipped; only read
// errors on r abort assembly.
func Assemble(r io.Reader, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	result := &Result{Records: make(map[string]Fields)}
	err := scanLines(r, func(lineNum int, line []byte) {
		customID, fields, err := parseOutputLine(line)
		if err != nil {
			logger.Warn("skipping batch output line",
				"line", lineNum,
				"custom_id", customID,
				"error", err,
			)
			result.Failed = append(result.Failed, RecordFailure{
				CustomID: customID,
				Line:     lineNum,
				Source:   SourceOutput,
				Err:      err,
				Message:  err.Error(),
			})
			return
		}
		if _, dup := result.Records[customID]; dup {
			logger.Warn("duplicate custom_id in batch output, keeping latest", "custom_id", customID, "line", lineNum)
		}
		result.Records[customID] = fields
	})
	if err != nil {
		return nil, err
	}

	logger.Info("batch output assembled",
		"records", len(result.Records),
		"failed", len(result.Failed),
	)
	return result, nil
}

// AssembleErrors reads a batch error file. Every line becomes a failure.
func AssembleErrors(r io.Reader, logger *slog.Logger) ([]RecordFailure, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var failures []RecordFailure
	err := scanLines(r, func(lineNum int, line []byte) {
		var ol outputLine
		var err error
		if uerr := json.Unmarshal(line, &ol); uerr != nil {
			err = fmt.Errorf("undecodable error line: %w", uerr)
		} else {
			_, err = responseContent(&ol)
			if err == nil {
				err = errors.New("request reported in error file")
			}
		}
		failures = append(failures, RecordFailure{
			CustomID: ol.CustomID,
			Line:     lineNum,
			Source:   SourceError,
			Err:      err,
			Message:  err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}

	if len(failures) > 0 {
		logger.Warn("batch error file contains failed requests", "count", len(failures))
	}
	return failures, nil
}

func scanLines(r io.Reader, fn func(lineNum int, line []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		fn(lineNum, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read batch output: %w", err)
	}
	return nil
}

func parseOutputLine(line []byte) (string, Fields, error) {
	var ol outputLine
	if err := json.Unmarshal(line, &ol); err != nil {
		return "", nil, fmt.Errorf("undecodable output line: %w", err)
	}
	if ol.CustomID == "" {
		return "", nil, errors.New("output line has no custom_id")
	}

	content, err := responseContent(&ol)
	if err != nil {
		return ol.CustomID, nil, err
	}

	obj, err := lenient.ParseObject(content)
	if err != nil {
		return ol.CustomID, nil, &JSONRecoveryError{CustomID: ol.CustomID, Content: content, Err: err}
	}
	return ol.CustomID, Fields(obj), nil
}

// responseContent digs response.body.choices[0].message.content out of a line.
func responseContent(ol *outputLine) (string, error) {
	if ol.Error != nil {
		return "", fmt.Errorf("request failed: %s", ol.Error)
	}
	if ol.Response == nil {
		return "", errors.New("output line has no response")
	}
	if code := ol.Response.StatusCode; code != 0 && (code < 200 || code >= 300) {
		var body responseBody
		if err := json.Unmarshal(ol.Response.Body, &body); err == nil && body.Error != nil {
			return "", fmt.Errorf("request failed (status %d): %s", code, body.Error)
		}
		return "", fmt.Errorf("request failed (status %d)", code)
	}

	var body responseBody
	if err := json.Unmarshal(ol.Response.Body, &body); err != nil {
		return "", fmt.Errorf("undecodable response body: %w", err)
	}
	if body.Error != nil {
		return "", fmt.Errorf("request failed: %s", body.Error)
	}
	if len(body.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return body.Choices[0].Message.Content, nil
}
