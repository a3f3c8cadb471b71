package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/dwcbatch/internal/batch"
	"github.com/jackzampolin/dwcbatch/internal/output"
	"github.com/jackzampolin/dwcbatch/internal/runs"
)

// target is a batch resolved from a run id or a bare batch id.
type target struct {
	dir      string
	batchID  string
	manifest *runs.Manifest
	requests []batch.Request
}

// resolveTarget accepts either a run id (with a manifest under the home
// directory) or a provider batch id.
func (a *app) resolveTarget(id string) (*target, error) {
	dir := a.home.RunDir(id)
	m, err := runs.Load(dir)
	if err != nil {
		if errors.Is(err, runs.ErrNoManifest) {
			return &target{dir: dir, batchID: id}, nil
		}
		return nil, err
	}

	t := &target{dir: dir, batchID: m.BatchID, manifest: m}
	requests, err := runs.Requests(dir)
	if err != nil {
		a.logger.Warn("batch input unavailable, missing records will not be reported", "run_id", m.RunID, "error", err)
		return t, nil
	}
	t.requests = requests
	return t, nil
}

type statusView struct {
	BatchID       string              `json:"batch_id" yaml:"batch_id"`
	Status        string              `json:"status" yaml:"status"`
	State         string              `json:"state" yaml:"state"`
	RequestCounts batch.RequestCounts `json:"request_counts" yaml:"request_counts"`
	OutputFileID  string              `json:"output_file_id,omitempty" yaml:"output_file_id,omitempty"`
	ErrorFileID   string              `json:"error_file_id,omitempty" yaml:"error_file_id,omitempty"`
	Errors        []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status <run-id|batch-id>",
	Short: "Check the status of a batch once",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		t, err := a.resolveTarget(args[0])
		if err != nil {
			return err
		}
		p, err := a.processor(t.dir)
		if err != nil {
			return err
		}

		c, err := p.Status(cmd.Context(), t.batchID)
		if err != nil {
			return err
		}
		if t.manifest != nil {
			t.manifest.Update(c.Job)
			if err := t.manifest.Save(t.dir); err != nil {
				return err
			}
		}
		return output.Print(statusView{
			BatchID:       c.Job.ID,
			Status:        c.Job.Status,
			State:         c.State.String(),
			RequestCounts: c.Job.RequestCounts,
			OutputFileID:  c.Job.OutputFileID,
			ErrorFileID:   c.Job.ErrorFileID,
			Errors:        c.Job.Errors,
		})
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait <run-id|batch-id>",
	Short: "Poll a submitted batch until it finishes, then collect it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := loadApp()
		if err != nil {
			return err
		}
		t, err := a.resolveTarget(args[0])
		if err != nil {
			return err
		}
		p, err := a.processor(t.dir)
		if err != nil {
			return err
		}

		job, err := p.Wait(ctx, t.batchID)
		if err != nil {
			return err
		}
		return a.finish(ctx, p, t.dir, t.manifest, job, t.requests)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect <run-id|batch-id>",
	Short: "Download and assemble the results of a completed batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := loadApp()
		if err != nil {
			return err
		}
		t, err := a.resolveTarget(args[0])
		if err != nil {
			return err
		}
		p, err := a.processor(t.dir)
		if err != nil {
			return err
		}

		c, err := p.Status(ctx, t.batchID)
		if err != nil {
			return err
		}
		return a.finish(ctx, p, t.dir, t.manifest, c.Job, t.requests)
	},
}

func init() {
	waitCmd.Flags().BoolVar(&exportXLSX, "xlsx", false, "also export the records as an XLSX workbook")
	collectCmd.Flags().BoolVar(&exportXLSX, "xlsx", false, "also export the records as an XLSX workbook")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(collectCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List submitted runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		manifests, err := runs.List(a.home.RunsPath())
		if err != nil {
			return err
		}
		if manifests == nil {
			manifests = []*runs.Manifest{}
		}
		return output.Print(manifests)
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
