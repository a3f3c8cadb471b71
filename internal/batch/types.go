package batch

import (
	"context"
	"slices"
)

const (
	// ChatCompletionsEndpoint is the provider endpoint every request targets.
	ChatCompletionsEndpoint = "/v1/chat/completions"

	// CompletionWindow is the provider-side processing window for a batch.
	CompletionWindow = "24h"

	// RequestMethod is the HTTP method recorded on each batch line.
	RequestMethod = "POST"
)

// Record is one specimen's OCR text keyed by its identifier.
type Record struct {
	ID   string `json:"id" yaml:"id"`
	Text string `json:"text" yaml:"text"`
}

// Message is a chat message inside a request body.
type Message struct {
	Role    string `json:"role"` // "system", "user"
	Content string `json:"content"`
}

// RequestBody is the chat completion payload of a batch line.
type RequestBody struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Request is a single line of the batch input file.
type Request struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     RequestBody `json:"body"`
}

// RequestCounts mirrors the provider's per-batch request tallies.
type RequestCounts struct {
	Total     int64 `json:"total" yaml:"total"`
	Completed int64 `json:"completed" yaml:"completed"`
	Failed    int64 `json:"failed" yaml:"failed"`
}

// Job is the provider's view of a batch. It is only ever read here.
type Job struct {
	ID               string        `json:"id" yaml:"id"`
	Status           string        `json:"status" yaml:"status"`
	Endpoint         string        `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	CompletionWindow string        `json:"completion_window,omitempty" yaml:"completion_window,omitempty"`
	InputFileID      string        `json:"input_file_id,omitempty" yaml:"input_file_id,omitempty"`
	OutputFileID     string        `json:"output_file_id,omitempty" yaml:"output_file_id,omitempty"`
	ErrorFileID      string        `json:"error_file_id,omitempty" yaml:"error_file_id,omitempty"`
	RequestCounts    RequestCounts `json:"request_counts" yaml:"request_counts"`
	Errors           []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// State returns the poller state for the job's reported status.
func (j *Job) State() State {
	if j == nil {
		return StatePending
	}
	return StateOf(j.Status)
}

// State is the poller's view of a job.
type State int

const (
	// StatePending covers validating, in_progress, finalizing and any
	// other status the provider reports that is not terminal.
	StatePending State = iota
	StateCompleted
	StateFailed
)

// Provider statuses the poller treats as terminal.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StateOf maps a provider status string onto a poller state.
func StateOf(status string) State {
	switch status {
	case StatusCompleted:
		return StateCompleted
	case StatusFailed:
		return StateFailed
	default:
		return StatePending
	}
}

func (s State) String() string {
	switch s {
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Terminal reports whether polling should stop.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Check is the tagged result of a single status query.
type Check struct {
	State State
	Job   *Job
}

// Fields holds the Darwin Core terms recovered for one record.
type Fields map[string]any

// RecordFailure describes an output line that could not be turned into Fields.
type RecordFailure struct {
	CustomID string `json:"custom_id" yaml:"custom_id"`
	Line     int    `json:"line" yaml:"line"`
	Source   string `json:"source" yaml:"source"` // "output" or "error"
	Err      error  `json:"-" yaml:"-"`
	Message  string `json:"error" yaml:"error"`
}

// Result is the assembled output of a batch.
type Result struct {
	BatchID string            `json:"batch_id,omitempty" yaml:"batch_id,omitempty"`
	Records map[string]Fields `json:"records" yaml:"records"`
	Failed  []RecordFailure   `json:"failed,omitempty" yaml:"failed,omitempty"`
	Missing []string          `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// FailedIDs returns the custom ids of failed records, sorted.
// Lines whose custom_id could not be read are omitted.
func (r *Result) FailedIDs() []string {
	ids := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		if f.CustomID != "" {
			ids = append(ids, f.CustomID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Provider is the inference provider's file and batch API.
type Provider interface {
	// UploadBatchFile stores a JSONL payload tagged for batch use and
	// returns its file id.
	UploadBatchFile(ctx context.Context, filename string, payload []byte) (string, error)

	// CreateBatch registers a batch job over an uploaded file.
	CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*Job, error)

	// GetBatch returns the current state of a batch job.
	GetBatch(ctx context.Context, batchID string) (*Job, error)

	// DownloadFile returns the raw contents of a provider file.
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}
