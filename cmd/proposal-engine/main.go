// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the proposal-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/internal/secrets"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

// rootCmd is the base command for the proposal-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "proposal-engine",
	Short: "Generate research proposals from a topic",
	Long: `proposal-engine turns a research topic into a structured research proposal.
It clarifies the topic, plans the work, gathers literature with search tools,
drafts introduction, literature review, research design, and conclusion,
reviews the draft, and revises it once when the review is weak.

Run a single topic with generate, serve the HTTP and WebSocket API with serve,
or review and improve an existing proposal with review and improve.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/", os.Stderr)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./proposal-engine.yaml or ~/.config/proposal-engine/config.yaml)")
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the configuration")
	rootCmd.PersistentFlags().String("log-level", "", "console log level: debug, info, warn, error")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	if err := godotenv.Load(envFile); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment from", envFile)
	}

	setDefaults(viper.GetViper())

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("proposal-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "proposal-engine"))
		}
	}

	viper.SetEnvPrefix("PROPOSAL_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key of types.DefaultConfig so that the
// environment can override keys absent from the config file.
func setDefaults(v *viper.Viper) {
	raw, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		return
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if sub, ok := val.(map[string]any); ok {
				walk(key, sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	for _, key := range []string{"ai.api_key", "tools.tavily_api_key", "tools.mailto", "tools.work_dir", "log.file"} {
		_ = v.BindEnv(key)
	}
}

// loadConfig decodes the viper settings over the defaults, fills API keys
// from secrets, and validates the result.
func loadConfig() (types.Config, error) {
	cfg := types.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if cfg.AI.APIKey == "" {
		cfg.AI.APIKey = loadedSecrets.Get(secrets.AnthropicAPIKey)
	}
	if cfg.Tools.TavilyAPIKey == "" {
		cfg.Tools.TavilyAPIKey = loadedSecrets.Get(secrets.TavilyAPIKey)
	}
	if cfg.Tools.Mailto == "" {
		cfg.Tools.Mailto = loadedSecrets.Get(secrets.CrossrefMailto)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the log configuration.
func newLogger(cfg types.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log, os.Stderr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
