package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/testscope/testscope/pkg/config"
	"github.com/testscope/testscope/pkg/extract"
	"github.com/testscope/testscope/pkg/gitdiff"
	"github.com/testscope/testscope/pkg/graph"
	"github.com/testscope/testscope/pkg/graphquery"
	"github.com/testscope/testscope/pkg/pyenv"
)

func newGraphCmd() *cobra.Command {
	var (
		repoPath  string
		save      bool
		depsFile  string
		rdepsFile string
		depth     int
		outputFmt string
	)

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build the import graph and print or save a snapshot",
		Long: `Builds the project import graph and prints its stats. Use --save to
write a JSON snapshot under the cache directory, or --deps/--rdeps to
list what a file imports or is imported by, transitively.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd.Context(), graphOpts{
				repoPath:  repoPath,
				save:      save,
				depsFile:  depsFile,
				rdepsFile: rdepsFile,
				depth:     depth,
				outputFmt: outputFmt,
			})
		},
	}

	cmd.Flags().StringVar(&repoPath, "repo-path", "", "Path to project root (default: detect)")
	cmd.Flags().BoolVar(&save, "save", false, "Save a JSON snapshot under the cache directory")
	cmd.Flags().StringVar(&depsFile, "deps", "", "List the files the given file imports")
	cmd.Flags().StringVar(&rdepsFile, "rdeps", "", "List the files that import the given file")
	cmd.Flags().IntVar(&depth, "depth", 0, "Limit --deps/--rdeps traversal depth (0 = no limit)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

type graphOpts struct {
	repoPath  string
	save      bool
	depsFile  string
	rdepsFile string
	depth     int
	outputFmt string
}

func runGraph(ctx context.Context, opts graphOpts) error {
	if opts.depsFile != "" && opts.rdepsFile != "" {
		return fmt.Errorf("--deps and --rdeps are mutually exclusive")
	}

	root, err := resolveProject(opts.repoPath)
	if err != nil {
		return err
	}

	cfg := loadConfig(root)
	commitSHA, _ := gitdiff.Head(root)

	registry, err := pyenv.Probe(ctx, cfg.Analysis.Python)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: probing %s failed: %v\n", cfg.Analysis.Python, err)
	}

	fmt.Fprintf(os.Stderr, "Building import graph for %s...\n", root)
	res, err := extract.Analyze(ctx, extract.Request{
		Root:      root,
		CommitSHA: commitSHA,
		Exclude:   cfg.Analysis.Exclude,
		Registry:  registry,
	})
	if err != nil {
		return fmt.Errorf("analyzing project: %w", err)
	}

	snap := res.Snapshot
	fmt.Fprintf(os.Stderr, "  Files:           %d\n", snap.Stats.FileCount)
	fmt.Fprintf(os.Stderr, "  Edges:           %d\n", snap.Stats.EdgeCount)
	fmt.Fprintf(os.Stderr, "  Tests:           %d\n", snap.Stats.TestCount)
	fmt.Fprintf(os.Stderr, "  Parse failures:  %d\n", snap.Stats.ParseFailures)
	fmt.Fprintf(os.Stderr, "  Dynamic imports: %d\n", snap.Stats.DynamicImports)
	fmt.Fprintf(os.Stderr, "  Duration:        %dms\n", snap.Stats.AnalysisMs)

	if opts.save {
		outPath := filepath.Join(config.SnapshotDir(root), firstNonEmpty(commitSHA, snap.ID)+".json")
		if err := graph.SaveSnapshot(outPath, snap); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Snapshot saved to %s\n", outPath)
	}

	if opts.depsFile != "" || opts.rdepsFile != "" {
		query, direction := opts.depsFile, "deps"
		if opts.rdepsFile != "" {
			query, direction = opts.rdepsFile, "rdeps"
		}
		depth := opts.depth
		if depth <= 0 {
			depth = len(snap.Files)
		}
		result := graphquery.Neighborhood(snap, []string{query}, depth, direction, len(snap.Files))
		return printNeighborhood(opts.outputFmt, query, direction, result)
	}

	if opts.outputFmt == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	return nil
}

func printNeighborhood(format, query, direction string, result *graphquery.Result) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if len(result.Files) == 0 {
		fmt.Printf("No files match %q.\n", query)
		return nil
	}

	label := "imports of"
	if direction == "rdeps" {
		label = "importers of"
	}
	var files []string
	for _, f := range result.Files {
		if f != query {
			files = append(files, f)
		}
	}
	fmt.Printf("Transitive %s %s: %d files\n", label, query, len(files))
	for _, f := range files {
		fmt.Printf("  %s\n", f)
	}
	if result.Truncated {
		fmt.Println("  ... (truncated)")
	}
	return nil
}
