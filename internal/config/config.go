package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the prefix for environment overrides, e.g. DWCBATCH_BATCH_MODEL.
const EnvPrefix = "DWCBATCH"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager loads configuration from defaults, an optional config file and
// the environment.
type Manager struct {
	v      *viper.Viper
	config *Config
}

// NewManager creates a new config manager and loads the config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	defaults := DefaultConfig()
	v.SetDefault("provider.api_key", defaults.Provider.APIKey)
	v.SetDefault("provider.base_url", defaults.Provider.BaseURL)
	v.SetDefault("provider.max_retries", defaults.Provider.MaxRetries)
	v.SetDefault("provider.timeout_seconds", defaults.Provider.TimeoutSeconds)
	v.SetDefault("batch.model", defaults.Batch.Model)
	v.SetDefault("batch.system_prompt", defaults.Batch.SystemPrompt)
	v.SetDefault("batch.system_prompt_file", defaults.Batch.SystemPromptFile)
	v.SetDefault("poll.base_interval_seconds", defaults.Poll.BaseIntervalSeconds)
	v.SetDefault("poll.max_interval_seconds", defaults.Poll.MaxIntervalSeconds)
	v.SetDefault("poll.budget_seconds", defaults.Poll.BudgetSeconds)

	// Environment variables with DWCBATCH_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.dwcbatch")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the loaded configuration.
func (cm *Manager) Get() *Config {
	return cm.config
}

// ConfigFileUsed returns the config file that was read, if any.
func (cm *Manager) ConfigFileUsed() string {
	return cm.v.ConfigFileUsed()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# dwcbatch configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set the key in your shell: export OPENAI_API_KEY=xxx
# Leave batch.system_prompt empty to use the built-in Darwin Core prompt.

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
