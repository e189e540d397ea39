// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proposal-engine/pkg/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of proposal-engine",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("proposal-engine %s\n", version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long: `Config prints the configuration after defaults, the config file, and
PROPOSAL_ENGINE_* environment variables are applied. API keys are masked.
With --defaults it prints the built-in defaults, a starting point for
proposal-engine.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := types.DefaultConfig()
		if defaults, _ := cmd.Flags().GetBool("defaults"); !defaults {
			var err error
			if cfg, err = loadConfig(); err != nil {
				return err
			}
		}
		cfg.AI.APIKey = mask(cfg.AI.APIKey)
		cfg.Tools.TavilyAPIKey = mask(cfg.Tools.TavilyAPIKey)

		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

func init() {
	configCmd.Flags().Bool("defaults", false, "print the built-in defaults")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
