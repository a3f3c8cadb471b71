package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/dwcbatch/internal/config"
	"github.com/jackzampolin/dwcbatch/internal/home"
	"github.com/jackzampolin/dwcbatch/internal/output"
	"github.com/jackzampolin/dwcbatch/internal/prompts/darwincore"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file to the home directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := h.ConfigPath()
		if h.ConfigExists() && !forceInit {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		cfg := *a.cfg
		// ${ENV_VAR} references are shown as-is; literal keys are not.
		if cfg.Provider.APIKey != "" && !strings.Contains(cfg.Provider.APIKey, "${") {
			cfg.Provider.APIKey = "********"
		}
		return output.Print(cfg)
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the system prompt sent with every request",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		prompt, err := a.cfg.SystemPromptText()
		if err != nil {
			return err
		}
		fmt.Println(prompt)
		return nil
	},
}

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "List the Darwin Core terms requested by the built-in prompt",
	RunE: func(cmd *cobra.Command, args []string) error {
		return output.Print(darwincore.Terms)
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(termsCmd)
}
