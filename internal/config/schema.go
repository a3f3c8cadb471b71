package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackzampolin/dwcbatch/internal/batch"
	"github.com/jackzampolin/dwcbatch/internal/prompts/darwincore"
	"github.com/jackzampolin/dwcbatch/internal/providers"
)

// ErrMissingAPIKey is returned by Validate when the provider API key is
// empty after ${ENV_VAR} expansion.
var ErrMissingAPIKey = errors.New("provider.api_key is not set (export OPENAI_API_KEY or set it in config.yaml)")

// Config holds dwcbatch configuration.
// Stored at: ./config.yaml or ~/.dwcbatch/config.yaml
type Config struct {
	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Batch    BatchCfg    `mapstructure:"batch" yaml:"batch"`
	Poll     PollCfg     `mapstructure:"poll" yaml:"poll"`
}

// ProviderCfg configures the inference provider client.
type ProviderCfg struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`                 // supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`               // empty = api.openai.com
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`         // SDK transport retries
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per HTTP request
}

// BatchCfg configures request formatting.
type BatchCfg struct {
	Model            string `mapstructure:"model" yaml:"model"`
	SystemPrompt     string `mapstructure:"system_prompt" yaml:"system_prompt"`           // inline override
	SystemPromptFile string `mapstructure:"system_prompt_file" yaml:"system_prompt_file"` // file override
}

// PollCfg configures the completion poller.
type PollCfg struct {
	BaseIntervalSeconds int `mapstructure:"base_interval_seconds" yaml:"base_interval_seconds"`
	MaxIntervalSeconds  int `mapstructure:"max_interval_seconds" yaml:"max_interval_seconds"`
	BudgetSeconds       int `mapstructure:"budget_seconds" yaml:"budget_seconds"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			APIKey:         "${OPENAI_API_KEY}",
			MaxRetries:     3,
			TimeoutSeconds: 300,
		},
		Batch: BatchCfg{
			Model: "gpt-3.5-turbo",
		},
		Poll: PollCfg{
			BaseIntervalSeconds: int(batch.DefaultBaseInterval / time.Second),
			MaxIntervalSeconds:  int(batch.DefaultMaxInterval / time.Second),
			BudgetSeconds:       int(batch.DefaultBudget / time.Second),
		},
	}
}

// ResolveAPIKey returns the provider API key with ${ENV_VAR} references expanded.
func (c *Config) ResolveAPIKey() string {
	return strings.TrimSpace(ResolveEnvVars(c.Provider.APIKey))
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.ResolveAPIKey() == "" {
		return ErrMissingAPIKey
	}
	if strings.TrimSpace(c.Batch.Model) == "" {
		return errors.New("batch.model is not set")
	}
	if c.Poll.BaseIntervalSeconds < 0 || c.Poll.MaxIntervalSeconds < 0 || c.Poll.BudgetSeconds < 0 {
		return errors.New("poll intervals must not be negative")
	}
	return nil
}

// SystemPromptText returns the system prompt: the prompt file if set, then
// the inline prompt, then the built-in Darwin Core prompt.
func (c *Config) SystemPromptText() (string, error) {
	if c.Batch.SystemPromptFile != "" {
		data, err := os.ReadFile(c.Batch.SystemPromptFile)
		if err != nil {
			return "", fmt.Errorf("failed to read system prompt file: %w", err)
		}
		return string(data), nil
	}
	if strings.TrimSpace(c.Batch.SystemPrompt) != "" {
		return c.Batch.SystemPrompt, nil
	}
	return darwincore.SystemPrompt(), nil
}

// ToProviderConfig converts the provider section into client configuration.
func (c *Config) ToProviderConfig() providers.OpenAIBatchConfig {
	return providers.OpenAIBatchConfig{
		APIKey:     c.ResolveAPIKey(),
		BaseURL:    ResolveEnvVars(c.Provider.BaseURL),
		MaxRetries: c.Provider.MaxRetries,
		Timeout:    time.Duration(c.Provider.TimeoutSeconds) * time.Second,
	}
}

// ToPollConfig converts the poll section into poller configuration.
func (c *Config) ToPollConfig() batch.PollConfig {
	return batch.PollConfig{
		BaseInterval: time.Duration(c.Poll.BaseIntervalSeconds) * time.Second,
		MaxInterval:  time.Duration(c.Poll.MaxIntervalSeconds) * time.Second,
		Budget:       time.Duration(c.Poll.BudgetSeconds) * time.Second,
	}
}
