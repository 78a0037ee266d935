// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Print the effective per-stage configuration as YAML",
	Long: `Stages prints the model, temperature, token budget, tools and prompts
of each stage after applying defaults, the config file and environment.
The output can be pasted under "stages:" in content-engine.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(cfg.Stages); err != nil {
			return err
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(stagesCmd)
}
