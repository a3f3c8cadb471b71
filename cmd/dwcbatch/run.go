package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/dwcbatch/internal/batch"
	"github.com/jackzampolin/dwcbatch/internal/export"
	"github.com/jackzampolin/dwcbatch/internal/ingest"
	"github.com/jackzampolin/dwcbatch/internal/output"
	"github.com/jackzampolin/dwcbatch/internal/runs"
)

// ResultFileName holds the assembled records inside a run directory.
const ResultFileName = "result.json"

var exportXLSX bool

// runSummary is what run, wait and collect print.
type runSummary struct {
	RunID       string                `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	BatchID     string                `json:"batch_id" yaml:"batch_id"`
	Status      string                `json:"status" yaml:"status"`
	Extracted   int                   `json:"extracted" yaml:"extracted"`
	Failed      []batch.RecordFailure `json:"failed,omitempty" yaml:"failed,omitempty"`
	Missing     []string              `json:"missing,omitempty" yaml:"missing,omitempty"`
	ArtifactDir string                `json:"artifact_dir" yaml:"artifact_dir"`
	ResultFile  string                `json:"result_file" yaml:"result_file"`
	Export      string                `json:"export,omitempty" yaml:"export,omitempty"`
}

var runCmd = &cobra.Command{
	Use:   "run <input>",
	Short: "Submit OCR records as a batch, wait for it and assemble the results",
	Long: `Run submits every OCR record in <input> as one batch, polls until the
batch completes or fails, then downloads and parses the responses.

<input> is a JSON or YAML file mapping record ids to OCR text, or a
directory of .txt files named by record id.

Polling stops after poll.budget_seconds (24h by default). Interrupting a
run leaves the batch running; resume with "dwcbatch wait <run-id>".

Examples:
  dwcbatch run labels.json
  dwcbatch run ./ocr/ --xlsx
  dwcbatch run labels.yaml -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := loadApp()
		if err != nil {
			return err
		}
		records, err := ingest.Load(args[0], a.logger)
		if err != nil {
			return err
		}

		runID := runs.NewID()
		dir := a.home.RunDir(runID)
		p, err := a.processor(dir)
		if err != nil {
			return err
		}

		requests := p.Prepare(records)
		job, err := p.Submit(ctx, requests)
		if err != nil {
			return err
		}
		manifest := runs.NewManifest(runID, a.cfg.Batch.Model, len(requests), job)
		if err := manifest.Save(dir); err != nil {
			return err
		}
		a.logger.Info("batch submitted", "run_id", runID, "batch_id", job.ID)

		job, err = p.Wait(ctx, job.ID)
		if err != nil {
			return err
		}
		return a.finish(ctx, p, dir, manifest, job, requests)
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <input>",
	Short: "Submit OCR records as a batch without waiting",
	Long: `Submit uploads the batch file and creates the batch, then prints the run
manifest. Follow up with "dwcbatch status", "wait" or "collect".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		records, err := ingest.Load(args[0], a.logger)
		if err != nil {
			return err
		}

		runID := runs.NewID()
		dir := a.home.RunDir(runID)
		p, err := a.processor(dir)
		if err != nil {
			return err
		}

		requests := p.Prepare(records)
		job, err := p.Submit(cmd.Context(), requests)
		if err != nil {
			return err
		}
		manifest := runs.NewManifest(runID, a.cfg.Batch.Model, len(requests), job)
		if err := manifest.Save(dir); err != nil {
			return err
		}
		return output.Print(manifest)
	},
}

// finish collects a terminal job, writes the result file and optional
// spreadsheet, and prints the summary.
func (a *app) finish(ctx context.Context, p *batch.Processor, dir string, manifest *runs.Manifest, job *batch.Job, requests []batch.Request) error {
	if manifest != nil {
		manifest.Update(job)
		if err := manifest.Save(dir); err != nil {
			return err
		}
	}

	result, err := p.Collect(ctx, job)
	if err != nil {
		var failedErr *batch.BatchFailedError
		if errors.As(err, &failedErr) {
			a.logger.Error("batch failed", "batch_id", failedErr.JobID, "errors", failedErr.Errors)
		}
		return err
	}
	if requests != nil {
		result.Missing = batch.MissingIDs(requests, result)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	resultPath, err := batch.WriteArtifact(dir, ResultFileName, data)
	if err != nil {
		return err
	}

	summary := runSummary{
		BatchID:     job.ID,
		Status:      job.Status,
		Extracted:   len(result.Records),
		Failed:      result.Failed,
		Missing:     result.Missing,
		ArtifactDir: dir,
		ResultFile:  resultPath,
	}
	if manifest != nil {
		summary.RunID = manifest.RunID
	}

	if exportXLSX {
		path := a.home.ExportPath(job.ID)
		if err := export.NewService(nil, a.logger).WriteFile(path, result); err != nil {
			return err
		}
		summary.Export = path
	}

	return output.Print(summary)
}

func init() {
	runCmd.Flags().BoolVar(&exportXLSX, "xlsx", false, "also export the records as an XLSX workbook")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
}
