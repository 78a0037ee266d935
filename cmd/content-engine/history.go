// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/content-engine/internal/history"
	"github.com/pdiddy/content-engine/internal/packager"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past runs from the history ledger",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum number of runs to show (0 for all)")
	historyCmd.Flags().Bool("json", false, "output runs as JSON")
	historyCmd.Flags().Bool("yaml", false, "output runs as YAML")
	historyCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	switch {
	case asJSON:
		return store.ExportJSON(ctx, out, limit)
	case asYAML:
		return store.ExportYAML(ctx, out, limit)
	}

	runs, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	return printRuns(out, runs)
}

func printRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tTOKENS\tTOPIC\tOUTPUT")
	for _, r := range runs {
		tokens := 0
		for _, s := range r.Stages {
			tokens += s.Usage.TotalTokens
		}
		detail := r.OutputDir
		if r.Status == history.StatusFailed {
			detail = r.Error
			if r.FailedStage != "" {
				detail = string(r.FailedStage) + ": " + detail
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			shortID(r.ID), r.StartedAt.In(time.Local).Format(packager.DisplayTimeLayout),
			r.Status, tokens, r.Topic, detail)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
