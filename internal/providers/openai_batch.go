package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/jackzampolin/dwcbatch/internal/batch"
)

const (
	OpenAIBatchName = "openai"

	openAIDefaultMaxRetries = 3
	openAIDefaultTimeout    = 300 * time.Second
	batchFileContentType    = "application/jsonl"
)

// ErrMissingAPIKey is returned when a client is built without credentials.
var ErrMissingAPIKey = errors.New("openai api key is required")

// OpenAIBatchConfig holds configuration for the OpenAI batch client.
type OpenAIBatchConfig struct {
	APIKey     string
	BaseURL    string        // Optional (tests, compatible gateways)
	MaxRetries int           // SDK transport retries; negative disables
	Timeout    time.Duration // HTTP timeout per request
	HTTPClient *http.Client  // Optional (tests)
	Logger     *slog.Logger
}

// OpenAIBatchClient implements batch.Provider using the official OpenAI SDK.
type OpenAIBatchClient struct {
	client openai.Client
	logger *slog.Logger
}

// NewOpenAIBatchClient creates a new OpenAI batch client. An empty API key
// fails immediately instead of surfacing later as a 401.
func NewOpenAIBatchClient(cfg OpenAIBatchConfig) (*OpenAIBatchClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	switch {
	case cfg.MaxRetries == 0:
		cfg.MaxRetries = openAIDefaultMaxRetries
	case cfg.MaxRetries < 0:
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = openAIDefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIBatchClient{
		client: openai.NewClient(opts...),
		logger: cfg.Logger,
	}, nil
}

// Name returns the provider identifier.
func (c *OpenAIBatchClient) Name() string {
	return OpenAIBatchName
}

// UploadBatchFile uploads a JSONL payload with purpose "batch".
func (c *OpenAIBatchClient) UploadBatchFile(ctx context.Context, filename string, payload []byte) (string, error) {
	file, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(payload), filename, batchFileContentType),
		Purpose: openai.FilePurposeBatch,
	})
	if err != nil {
		uploadErr := &batch.UploadError{Err: err}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			uploadErr.StatusCode = apiErr.StatusCode
			uploadErr.Body = apiErr.RawJSON()
		}
		return "", uploadErr
	}
	if file == nil || file.ID == "" {
		return "", &batch.UploadError{Err: errors.New("upload response carried no file id")}
	}
	c.logger.Debug("openai file uploaded", "file_id", file.ID, "bytes", file.Bytes)
	return file.ID, nil
}

// CreateBatch registers a batch job for an uploaded input file.
func (c *OpenAIBatchClient) CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*batch.Job, error) {
	b, err := c.client.Batches.New(ctx, openai.BatchNewParams{
		InputFileID:      inputFileID,
		Endpoint:         openai.BatchNewParamsEndpoint(endpoint),
		CompletionWindow: openai.BatchNewParamsCompletionWindow(completionWindow),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			body := apiErr.RawJSON()
			if body == "" {
				body = apiErr.Message
			}
			return nil, &batch.SubmissionError{
				StatusCode: apiErr.StatusCode,
				Body:       body,
				Err:        err,
			}
		}
		return nil, fmt.Errorf("openai batch create failed: %w", err)
	}
	return jobFromOpenAI(b), nil
}

// GetBatch retrieves the current state of a batch job.
func (c *OpenAIBatchClient) GetBatch(ctx context.Context, batchID string) (*batch.Job, error) {
	b, err := c.client.Batches.Get(ctx, batchID)
	if err != nil {
		return nil, mapOpenAIError("batch retrieve", err)
	}
	return jobFromOpenAI(b), nil
}

// DownloadFile returns the raw content of a provider file.
func (c *OpenAIBatchClient) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.client.Files.Content(ctx, fileID)
	if err != nil {
		return nil, mapOpenAIError("file content", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed reading openai file content: %w", err)
	}
	return content, nil
}

func jobFromOpenAI(b *openai.Batch) *batch.Job {
	if b == nil {
		return nil
	}
	job := &batch.Job{
		ID:               b.ID,
		Status:           string(b.Status),
		Endpoint:         b.Endpoint,
		CompletionWindow: b.CompletionWindow,
		InputFileID:      b.InputFileID,
		OutputFileID:     b.OutputFileID,
		ErrorFileID:      b.ErrorFileID,
		RequestCounts: batch.RequestCounts{
			Total:     b.RequestCounts.Total,
			Completed: b.RequestCounts.Completed,
			Failed:    b.RequestCounts.Failed,
		},
	}
	for _, e := range b.Errors.Data {
		msg := e.Message
		if e.Code != "" {
			msg = e.Code + ": " + msg
		}
		if e.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", e.Line, msg)
		}
		job.Errors = append(job.Errors, msg)
	}
	return job
}

func mapOpenAIError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("OpenAI %s error (status %d): %s: %w", op, apiErr.StatusCode, apiErr.Message, err)
		}
		return fmt.Errorf("OpenAI %s error (status %d): %w", op, apiErr.StatusCode, err)
	}
	return fmt.Errorf("OpenAI %s failed: %w", op, err)
}

var _ batch.Provider = (*OpenAIBatchClient)(nil)
