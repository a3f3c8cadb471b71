package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackzampolin/dwcbatch/internal/batch"
)

const MockBatchName = "mock"

// MockBatchProvider is an in-memory batch.Provider for testing.
// Status checks walk through Statuses, repeating the last entry.
type MockBatchProvider struct {
	// Configurable behavior
	Statuses     []string
	Output       []byte // content served for the output file
	ErrorOutput  []byte // content served for the error file, if any
	JobErrors    []string
	UploadErr    error
	CreateErr    error
	GetErr       error
	GetErrAfter  int // fail GetBatch from this call on (0 = never)
	DownloadErr  error
	OutputFileID string

	mu       sync.Mutex
	uploads  map[string][]byte
	jobs     map[string]*batch.Job
	getCount atomic.Int64
}

// NewMockBatchProvider creates a mock that completes on the third check.
func NewMockBatchProvider() *MockBatchProvider {
	return &MockBatchProvider{
		Statuses:     []string{"validating", "in_progress", "completed"},
		OutputFileID: "file-output",
	}
}

// Name returns the provider identifier.
func (m *MockBatchProvider) Name() string {
	return MockBatchName
}

// UploadBatchFile stores the payload in memory.
func (m *MockBatchProvider) UploadBatchFile(_ context.Context, filename string, payload []byte) (string, error) {
	if m.UploadErr != nil {
		return "", m.UploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploads == nil {
		m.uploads = make(map[string][]byte)
	}
	id := fmt.Sprintf("file-%d", len(m.uploads)+1)
	m.uploads[id] = append([]byte(nil), payload...)
	return id, nil
}

// Uploaded returns a previously uploaded payload.
func (m *MockBatchProvider) Uploaded(fileID string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.uploads[fileID]
	return b, ok
}

// CreateBatch registers a job over an uploaded file.
func (m *MockBatchProvider) CreateBatch(_ context.Context, inputFileID, endpoint, completionWindow string) (*batch.Job, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[inputFileID]; !ok {
		return nil, &batch.SubmissionError{StatusCode: 400, Body: fmt.Sprintf(`{"error":{"message":"unknown file %s"}}`, inputFileID)}
	}
	if m.jobs == nil {
		m.jobs = make(map[string]*batch.Job)
	}
	job := &batch.Job{
		ID:               fmt.Sprintf("batch_%d", len(m.jobs)+1),
		Status:           "validating",
		Endpoint:         endpoint,
		CompletionWindow: completionWindow,
		InputFileID:      inputFileID,
	}
	m.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

// GetBatch returns the next scripted status for a job.
func (m *MockBatchProvider) GetBatch(_ context.Context, batchID string) (*batch.Job, error) {
	count := int(m.getCount.Add(1))
	if m.GetErr != nil && (m.GetErrAfter == 0 || count >= m.GetErrAfter) {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[batchID]
	if !ok {
		job = &batch.Job{ID: batchID}
	}

	status := "in_progress"
	if len(m.Statuses) > 0 {
		idx := min(count-1, len(m.Statuses)-1)
		status = m.Statuses[idx]
	}

	cp := *job
	cp.Status = status
	switch batch.StateOf(status) {
	case batch.StateCompleted:
		cp.OutputFileID = m.OutputFileID
		if len(m.ErrorOutput) > 0 {
			cp.ErrorFileID = "file-errors"
		}
	case batch.StateFailed:
		cp.Errors = m.JobErrors
	}
	return &cp, nil
}

// GetCount returns the number of GetBatch calls.
func (m *MockBatchProvider) GetCount() int {
	return int(m.getCount.Load())
}

// DownloadFile serves the output, error or uploaded file.
func (m *MockBatchProvider) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	switch fileID {
	case m.OutputFileID:
		return m.Output, nil
	case "file-errors":
		return m.ErrorOutput, nil
	}
	if b, ok := m.Uploaded(fileID); ok {
		return b, nil
	}
	return nil, fmt.Errorf("mock: no such file %s", fileID)
}

var _ batch.Provider = (*MockBatchProvider)(nil)
