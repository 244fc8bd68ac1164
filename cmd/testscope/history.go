package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/testscope/testscope/internal/history"
	"github.com/testscope/testscope/pkg/config"
)

func newHistoryCmd() *cobra.Command {
	var (
		repoPath  string
		limit     int
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past selection runs for this project",
		Long: `Lists the selection runs recorded locally by testscope select, newest
first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), historyOpts{
				repoPath:  repoPath,
				limit:     limit,
				outputFmt: outputFmt,
			})
		},
	}

	cmd.Flags().StringVar(&repoPath, "repo-path", "", "Path to project root (default: detect)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

type historyOpts struct {
	repoPath  string
	limit     int
	outputFmt string
}

func runHistory(ctx context.Context, opts historyOpts) error {
	root, err := resolveProject(opts.repoPath)
	if err != nil {
		return err
	}

	store, err := history.Open(config.HistoryPath(root))
	if err != nil {
		return fmt.Errorf("opening history: %w", err)
	}
	defer store.Close()

	entries, err := store.ListRuns(ctx, opts.limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No recorded runs yet. Run `testscope select` first.")
		return nil
	}

	fmt.Printf("%-10s  %-16s  %-14s  %8s  %9s  %10s  %s\n",
		"RUN", "WHEN", "BASE", "CHANGED", "AFFECTED", "UNCOVERED", "STATUS")
	for _, e := range entries {
		fmt.Printf("%-10s  %-16s  %-14s  %8d  %9d  %10d  %s\n",
			shortID(e.ID),
			e.CreatedAt.Format("2006-01-02 15:04"),
			orDash(e.BaseRef),
			e.ChangedFiles,
			e.AffectedTests,
			e.Uncovered,
			orDash(e.Status))
	}
	return nil
}

func shortID(id string) string {
	return id[:minInt(8, len(id))]
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
