// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/content-engine/internal/app"
	"github.com/pdiddy/content-engine/internal/config"
	"github.com/pdiddy/content-engine/internal/logging"
	"github.com/pdiddy/content-engine/internal/progress"
)

var runCmd = &cobra.Command{
	Use:   "run <topic...>",
	Short: "Run the research, writing and social stages for a topic",
	Long: `Run executes the three agents in order and writes the results to
{output-dir}/{topic}_{YYYYMMDD_HHMMSS}/:

  01_research_findings.md
  02_technical_blog_post.md
  03_social_media_content.md
  complete_multi_agent_content.md
  README.md

A failed stage stops the run and nothing is written. An existing package
directory is never overwritten.`,
	Example: `  content-engine run "Vector Databases"
  content-engine run Edge AI inference --zip --images`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("output-dir", "", "base directory for run packages (default multi_agent_content)")
	runCmd.Flags().Bool("zip", false, "also write a zip archive next to the package directory")
	runCmd.Flags().Bool("images", false, "render the image prompts with Stability AI")
	runCmd.Flags().Bool("no-history", false, "do not record the run in the history ledger")

	viper.BindPFlag("output.dir", runCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("output.archive", runCmd.Flags().Lookup("zip"))
	viper.BindPFlag("images.enabled", runCmd.Flags().Lookup("images"))

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	topic := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noHistory, _ := cmd.Flags().GetBool("no-history"); noHistory {
		cfg.History.Enabled = false
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := newLogger(cfg)
	store := openHistory(cfg.History, logger)
	if store != nil {
		defer store.Close()
	}

	console := progress.NewConsole(os.Stderr)
	ctx := logging.WithLogger(cmd.Context(), logger)

	res, err := app.New(cfg, store, logger).Run(ctx, topic, console)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		console.Warn(w)
	}
	console.Done(res.Output.Dir, res.Output.Archive)
	fmt.Fprintln(cmd.OutOrStdout(), res.Output.Dir)
	return nil
}
