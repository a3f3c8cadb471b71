package main

import (
	"fmt"
	"log/slog"

	"github.com/jackzampolin/dwcbatch/internal/batch"
	"github.com/jackzampolin/dwcbatch/internal/config"
	"github.com/jackzampolin/dwcbatch/internal/home"
	"github.com/jackzampolin/dwcbatch/internal/providers"
)

// app bundles what every batch command loads before talking to the provider.
type app struct {
	cfg    *config.Config
	home   *home.Dir
	logger *slog.Logger
}

func loadApp() (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}

	logger := slog.Default()
	if used := mgr.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "path", used)
	}

	return &app{cfg: mgr.Get(), home: h, logger: logger}, nil
}

// processor builds a batch processor writing artifacts into dir.
func (a *app) processor(dir string) (*batch.Processor, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}

	providerCfg := a.cfg.ToProviderConfig()
	providerCfg.Logger = a.logger
	client, err := providers.NewOpenAIBatchClient(providerCfg)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("provider client ready", "provider", client.Name(), "model", a.cfg.Batch.Model)

	prompt, err := a.cfg.SystemPromptText()
	if err != nil {
		return nil, err
	}

	poll := a.cfg.ToPollConfig()
	poll.Logger = a.logger

	p, err := batch.NewProcessor(batch.ProcessorConfig{
		Provider:     client,
		Model:        a.cfg.Batch.Model,
		SystemPrompt: prompt,
		ArtifactDir:  dir,
		Poll:         poll,
		Logger:       a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create batch processor: %w", err)
	}
	return p, nil
}
