package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// Artifact file names inside a run directory.
const (
	InputArtifactName  = "batch.jsonl"
	OutputArtifactName = "output.jsonl"
	ErrorArtifactName  = "errors.jsonl"
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Provider     Provider
	Model        string
	SystemPrompt string

	// ArtifactDir receives the outbound payload and the downloaded output.
	ArtifactDir string

	Poll   PollConfig
	Logger *slog.Logger
}

// Processor runs the submit, poll and assemble stages for one batch.
type Processor struct {
	provider     Provider
	model        string
	systemPrompt string
	artifactDir  string
	poller       *Poller
	logger       *slog.Logger
}

// NewProcessor validates cfg and creates a Processor.
func NewProcessor(cfg ProcessorConfig) (*Processor, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model is required")
	}
	if cfg.ArtifactDir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Poll.Logger == nil {
		cfg.Poll.Logger = cfg.Logger
	}

	cfg.Logger.Info("batch processor created", "model", cfg.Model, "artifact_dir", cfg.ArtifactDir)

	return &Processor{
		provider:     cfg.Provider,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		artifactDir:  cfg.ArtifactDir,
		poller:       NewPoller(cfg.Provider, cfg.Poll),
		logger:       cfg.Logger,
	}, nil
}

// Prepare formats records into batch requests using the processor's
// prompt and model.
func (p *Processor) Prepare(records map[string]string) []Request {
	requests := FormatRequests(records, p.systemPrompt, p.model)
	p.logger.Info("batch requests prepared", "requests", len(requests))
	return requests
}

// Submit writes the JSONL payload to the artifact directory, uploads it and
// registers a batch job.
func (p *Processor) Submit(ctx context.Context, requests []Request) (*Job, error) {
	if len(requests) == 0 {
		return nil, errors.New("no requests to submit")
	}

	payload, err := EncodeJSONL(requests)
	if err != nil {
		return nil, err
	}

	path, err := WriteArtifact(p.artifactDir, InputArtifactName, payload)
	if err != nil {
		return nil, err
	}
	p.logger.Info("batch file created", "path", path, "requests", len(requests), "bytes", len(payload))

	fileID, err := p.provider.UploadBatchFile(ctx, InputArtifactName, payload)
	if err != nil {
		var uploadErr *UploadError
		if !errors.As(err, &uploadErr) {
			err = &UploadError{Err: err}
		}
		p.logger.Error("batch file upload failed", "error", err)
		return nil, err
	}
	p.logger.Info("batch file uploaded", "file_id", fileID)

	job, err := p.provider.CreateBatch(ctx, fileID, ChatCompletionsEndpoint, CompletionWindow)
	if err != nil {
		p.logger.Error("batch creation failed", "file_id", fileID, "error", err)
		return nil, err
	}
	p.logger.Info("batch created", "batch_id", job.ID, "status", job.Status, "input_file_id", fileID)
	return job, nil
}

// Status performs a single status check.
func (p *Processor) Status(ctx context.Context, batchID string) (Check, error) {
	return p.poller.Check(ctx, batchID)
}

// Wait polls until the batch is completed or failed.
func (p *Processor) Wait(ctx context.Context, batchID string) (*Job, error) {
	return p.poller.Wait(ctx, batchID)
}

// Collect downloads and assembles the output of a completed job. A failed
// job yields *BatchFailedError and a pending one ErrNotCompleted; neither
// touches the provider's files.
func (p *Processor) Collect(ctx context.Context, job *Job) (*Result, error) {
	if job == nil {
		return nil, errors.New("job is required")
	}
	switch job.State() {
	case StateFailed:
		return nil, &BatchFailedError{JobID: job.ID, Status: job.Status, Errors: job.Errors}
	case StatePending:
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCompleted, job.ID, job.Status)
	}

	start := time.Now()
	result := &Result{Records: make(map[string]Fields)}

	if job.OutputFileID != "" {
		content, err := p.download(ctx, job.OutputFileID, OutputArtifactName)
		if err != nil {
			return nil, err
		}
		result, err = Assemble(bytes.NewReader(content), p.logger)
		if err != nil {
			return nil, err
		}
	} else {
		p.logger.Warn("completed batch has no output file", "batch_id", job.ID)
	}

	if job.ErrorFileID != "" {
		content, err := p.download(ctx, job.ErrorFileID, ErrorArtifactName)
		if err != nil {
			return nil, err
		}
		failures, err := AssembleErrors(bytes.NewReader(content), p.logger)
		if err != nil {
			return nil, err
		}
		result.Failed = append(result.Failed, failures...)
	}

	result.BatchID = job.ID
	p.logger.Info("responses processed",
		"batch_id", job.ID,
		"records", len(result.Records),
		"failed", len(result.Failed),
		"elapsed", time.Since(start),
	)
	return result, nil
}

func (p *Processor) download(ctx context.Context, fileID, artifact string) ([]byte, error) {
	content, err := p.provider.DownloadFile(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileID, err)
	}
	path, err := WriteArtifact(p.artifactDir, artifact, content)
	if err != nil {
		return nil, err
	}
	p.logger.Info("batch file downloaded", "file_id", fileID, "path", path, "bytes", len(content))
	return content, nil
}

// Run submits records as one batch, waits for it and assembles the result.
// Submitted ids absent from both the output and error files are reported
// in Result.Missing.
func (p *Processor) Run(ctx context.Context, records map[string]string) (*Result, error) {
	requests := p.Prepare(records)

	job, err := p.Submit(ctx, requests)
	if err != nil {
		return nil, err
	}

	job, err = p.Wait(ctx, job.ID)
	if err != nil {
		return nil, err
	}

	result, err := p.Collect(ctx, job)
	if err != nil {
		return nil, err
	}

	result.Missing = MissingIDs(requests, result)
	if len(result.Missing) > 0 {
		p.logger.Warn("submitted records missing from batch output", "batch_id", job.ID, "count", len(result.Missing))
	}
	return result, nil
}

// MissingIDs returns the custom ids of requests that appear neither in
// result.Records nor in result.Failed.
func MissingIDs(requests []Request, result *Result) []string {
	accounted := make(map[string]struct{}, len(result.Records)+len(result.Failed))
	for id := range result.Records {
		accounted[id] = struct{}{}
	}
	for _, f := range result.Failed {
		accounted[f.CustomID] = struct{}{}
	}

	var missing []string
	for _, req := range requests {
		if _, ok := accounted[req.CustomID]; !ok {
			missing = append(missing, req.CustomID)
		}
	}
	slices.Sort(missing)
	return missing
}
