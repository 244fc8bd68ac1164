package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/testscope/testscope/internal/history"
	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/config"
	"github.com/testscope/testscope/pkg/extract"
	"github.com/testscope/testscope/pkg/gitdiff"
	"github.com/testscope/testscope/pkg/impact"
	"github.com/testscope/testscope/pkg/pyenv"
	"github.com/testscope/testscope/pkg/runner"
	"github.com/testscope/testscope/pkg/surface"
)

// historyKeep bounds the local run history; older runs are pruned after
// each recorded run.
const historyKeep = 200

func newSelectCmd() *cobra.Command {
	var (
		baseRef      string
		headRef      string
		repoPath     string
		runTests     bool
		timeout      time.Duration
		outputFmt    string
		explain      bool
		changedFiles []string
		upload       bool
		noRecord     bool
	)

	cmd := &cobra.Command{
		Use:   "select",
		Short: "Select the test files affected by changed files",
		Long: `Diffs the repository against a base ref, builds the import graph, and
selects every test file that can reach a changed file. Use --run to
execute the selection with the configured runner; the runner's exit
code is forwarded.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelect(cmd.Context(), selectOpts{
				baseRef:      baseRef,
				headRef:      headRef,
				repoPath:     repoPath,
				runTests:     runTests,
				timeout:      timeout,
				outputFmt:    outputFmt,
				explain:      explain,
				changedFiles: changedFiles,
				upload:       upload,
				noRecord:     noRecord,
			})
		},
	}

	cmd.Flags().StringVar(&baseRef, "base", "", "Base git ref to diff against (default: config base_ref)")
	cmd.Flags().StringVar(&headRef, "head", "HEAD", "Head git ref")
	cmd.Flags().StringVar(&repoPath, "repo-path", "", "Path to project root (default: detect)")
	cmd.Flags().BoolVar(&runTests, "run", false, "Run the selected tests with the configured runner")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Test run timeout (default: config timeout)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text, json, or checkrun")
	cmd.Flags().BoolVar(&explain, "explain", false, "Include a per-changed-file selection explanation")
	cmd.Flags().StringArrayVar(&changedFiles, "changed-file", nil, "Changed file (repeatable; skips the git diff)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the run report to the configured service")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "Skip recording the run in local history")

	return cmd
}

type selectOpts struct {
	baseRef      string
	headRef      string
	repoPath     string
	runTests     bool
	timeout      time.Duration
	outputFmt    string
	explain      bool
	changedFiles []string
	upload       bool
	noRecord     bool
}

func runSelect(ctx context.Context, opts selectOpts) error {
	renderer, err := rendererFor(opts.outputFmt)
	if err != nil {
		return err
	}

	root, err := resolveProject(opts.repoPath)
	if err != nil {
		return err
	}

	cfg := loadConfig(root)
	baseRef := firstNonEmpty(opts.baseRef, cfg.Analysis.BaseRef)

	var changed []string
	if len(opts.changedFiles) > 0 {
		changed = normalizeChanged(root, opts.changedFiles)
		fmt.Fprintf(os.Stderr, "Step 1/4: Using %d changed files from --changed-file\n", len(changed))
	} else {
		fmt.Fprintf(os.Stderr, "Step 1/4: Diffing %s..%s...\n", baseRef, opts.headRef)
		changed, err = gitdiff.ChangedFiles(root, baseRef, opts.headRef)
		if err != nil {
			return fmt.Errorf("listing changed files: %w", err)
		}
		fmt.Fprintf(os.Stderr, "  %d changed Python files\n", len(changed))
	}

	if len(changed) == 0 {
		fmt.Fprintf(os.Stderr, "No Python changes against %s. Nothing to select.\n", baseRef)
		return nil
	}

	commitSHA, _ := gitdiff.Head(root)

	fmt.Fprintf(os.Stderr, "Step 2/4: Probing Python environment (%s)...\n", cfg.Analysis.Python)
	registry, err := pyenv.Probe(ctx, cfg.Analysis.Python)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  Warning: probe failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "  Unknown imports will be treated as project-local.\n")
	} else {
		fmt.Fprintf(os.Stderr, "  %d installed packages\n", registry.InstalledCount())
	}

	fmt.Fprintf(os.Stderr, "Step 3/4: Building import graph...\n")
	res, err := extract.Analyze(ctx, extract.Request{
		Root:      root,
		CommitSHA: commitSHA,
		Exclude:   cfg.Analysis.Exclude,
		Registry:  registry,
	})
	if err != nil {
		return fmt.Errorf("analyzing project: %w", err)
	}
	fmt.Fprintf(os.Stderr, "  %d files, %d edges\n", res.Graph.FileCount(), res.Graph.EdgeCount())
	if len(res.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "  %d files skipped (parse or read failures)\n", len(res.Warnings))
	}

	fmt.Fprintf(os.Stderr, "Step 4/4: Selecting affected tests...\n")
	selector := impact.NewSelector(res.Graph)
	selection := selector.AffectedTests(changed)
	if len(opts.changedFiles) == 0 {
		selection.BaseRef = baseRef
	}
	fmt.Fprintf(os.Stderr, "  %d of %d tests selected\n",
		len(selection.AffectedTests), impact.CountTests(res.Graph.Files()))

	engine := advisor.NewEngine(advisor.DefaultChecks()...)
	review, err := engine.Review(&advisor.Input{
		Graph:     res.Graph,
		Selection: selection,
		Warnings:  res.Warnings,
		Dynamic:   res.Dynamic,
	})
	if err != nil {
		return fmt.Errorf("reviewing run: %w", err)
	}

	report := &surface.RunReport{
		Selection: selection,
		Review:    review,
	}
	if opts.explain || os.Getenv("TESTSCOPE_DEBUG") != "" {
		for _, f := range changed {
			report.Explanations = append(report.Explanations, selector.Explain(f))
		}
	}

	var runErr error
	if opts.runTests {
		if len(selection.AffectedTests) == 0 {
			fmt.Fprintf(os.Stderr, "No affected tests. Skipping the test run.\n")
		} else {
			report.Outcome, runErr = runSelected(ctx, cfg, root, opts, selection.AffectedTests)
		}
	}

	if err := renderer.Render(os.Stdout, report); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}

	if !opts.noRecord {
		recordRun(ctx, root, commitSHA, report)
	}

	if opts.upload {
		if err := uploadRun(ctx, cfg, root, commitSHA, report, res.Snapshot); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: upload failed: %v\n", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	if report.Outcome != nil && report.Outcome.ExitCode > 0 {
		os.Exit(report.Outcome.ExitCode)
	}
	return nil
}

// runSelected executes the configured runner over the selection,
// streaming its output as it runs.
func runSelected(ctx context.Context, cfg *config.Config, root string, opts selectOpts, tests []string) (*runner.Outcome, error) {
	timeout := opts.timeout
	if timeout == 0 {
		timeout = time.Duration(cfg.Runner.Timeout) * time.Second
	}

	testOut := io.Writer(os.Stdout)
	if opts.outputFmt != "text" {
		// Keep stdout machine-readable when a structured format was requested.
		testOut = os.Stderr
	}

	fmt.Fprintf(os.Stderr, "Running %d selected tests (%s)...\n", len(tests), cfg.Runner.Command)
	return runner.Run(ctx, runner.Options{
		Command: cfg.Runner.Command,
		Args:    cfg.Runner.Args,
		Dir:     root,
		Timeout: timeout,
		Stdout:  testOut,
		Stderr:  os.Stderr,
	}, tests)
}

// recordRun appends the run to the local history store. History is
// advisory; failures warn and never fail the selection.
func recordRun(ctx context.Context, root, commitSHA string, report *surface.RunReport) {
	store, err := history.Open(config.HistoryPath(root))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: opening history: %v\n", err)
		return
	}
	defer store.Close()

	e := &history.Entry{
		ID:            report.Selection.RunID,
		BaseRef:       report.Selection.BaseRef,
		CommitSHA:     commitSHA,
		ChangedFiles:  len(report.Selection.ChangedFiles),
		AffectedTests: len(report.Selection.AffectedTests),
		Uncovered:     len(report.Selection.NoCoverage),
	}
	if report.Outcome != nil {
		e.Status = string(report.Outcome.Status)
		e.ExitCode = report.Outcome.ExitCode
		e.DurationMs = report.Outcome.Duration.Milliseconds()
	}

	if err := store.RecordRun(ctx, e, report); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: recording run: %v\n", err)
		return
	}
	if _, err := store.Prune(ctx, historyKeep); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: pruning history: %v\n", err)
	}
}

func rendererFor(format string) (surface.Renderer, error) {
	switch format {
	case "text", "":
		return &surface.TerminalRenderer{}, nil
	case "json":
		return &surface.JSONRenderer{}, nil
	case "checkrun":
		return &surface.CheckRunRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json, or checkrun)", format)
	}
}

// normalizeChanged filters an explicit changed-file list the same way
// the git diff does: Python files only, present in the working tree,
// each path once.
func normalizeChanged(root string, paths []string) []string {
	seen := make(map[string]bool, len(paths))
	var out []string
	for _, p := range paths {
		p = filepath.ToSlash(filepath.Clean(p))
		if seen[p] {
			continue
		}
		if !strings.HasSuffix(p, ".py") {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s (not a Python file)\n", p)
			continue
		}
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(p))); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s (not found under %s)\n", p, root)
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func resolveProject(repoPath string) (string, error) {
	if repoPath != "" {
		abs, err := filepath.Abs(repoPath)
		if err != nil {
			return "", fmt.Errorf("resolving repo path: %w", err)
		}
		return config.FindProjectRoot(abs)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	return config.FindProjectRoot(cwd)
}

func loadConfig(root string) *config.Config {
	cfgFile := config.FindConfigFile(root)
	if cfgFile == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return config.DefaultConfig()
	}
	return cfg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
