package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/testscope/testscope/pkg/advisor"
	"github.com/testscope/testscope/pkg/config"
	"github.com/testscope/testscope/pkg/extract"
	"github.com/testscope/testscope/pkg/extract/scanner"
	"github.com/testscope/testscope/pkg/impact"
	"github.com/testscope/testscope/pkg/pyenv"
	"github.com/testscope/testscope/pkg/runner"
	"github.com/testscope/testscope/pkg/surface"
)

func newWatchCmd() *cobra.Command {
	var (
		repoPath string
		runTests bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-select affected tests as files change",
		Long: `Watches the project for Python file changes and re-runs selection over
the accumulated change set after each quiet period. Use --run to also
execute the affected tests on every cycle.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), watchOpts{
				repoPath: repoPath,
				runTests: runTests,
				debounce: debounce,
			})
		},
	}

	cmd.Flags().StringVar(&repoPath, "repo-path", "", "Path to project root (default: detect)")
	cmd.Flags().BoolVar(&runTests, "run", false, "Run the affected tests after each change")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before re-selecting")

	return cmd
}

type watchOpts struct {
	repoPath string
	runTests bool
	debounce time.Duration
}

func runWatch(ctx context.Context, opts watchOpts) error {
	root, err := resolveProject(opts.repoPath)
	if err != nil {
		return err
	}

	cfg := loadConfig(root)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Probe once; the environment rarely changes mid-session.
	registry, err := pyenv.Probe(ctx, cfg.Analysis.Python)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: probing %s failed: %v\n", cfg.Analysis.Python, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	excl := scanner.New(root, cfg.Analysis.Exclude)
	if err := addWatchDirs(watcher, excl, root, root); err != nil {
		return fmt.Errorf("watching %s: %w", root, err)
	}

	fmt.Fprintf(os.Stderr, "Watching %s for Python changes (debounce %s). Ctrl-C to stop.\n",
		root, opts.debounce)

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nStopping watch.")
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			rel = filepath.ToSlash(rel)
			if excl.Excluded(rel) {
				continue
			}

			// New directories need their own watches.
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := addWatchDirs(watcher, excl, root, ev.Name); err != nil {
						fmt.Fprintf(os.Stderr, "Warning: watching %s: %v\n", rel, err)
					}
					continue
				}
			}

			if !strings.HasSuffix(rel, ".py") {
				continue
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
				!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}

			pending[rel] = true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(opts.debounce)
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Warning: watcher: %v\n", err)

		case <-fire:
			changed := make([]string, 0, len(pending))
			for f := range pending {
				if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(f))); err == nil {
					changed = append(changed, f)
				}
			}
			pending = make(map[string]bool)
			fire = nil

			if len(changed) == 0 {
				fmt.Fprintf(os.Stderr, "\nOnly deletions since the last cycle. Nothing to select.\n")
				continue
			}
			sort.Strings(changed)
			watchCycle(ctx, cfg, registry, root, changed, opts.runTests)
		}
	}
}

// addWatchDirs registers dir and every non-excluded directory below it.
func addWatchDirs(watcher *fsnotify.Watcher, excl *scanner.Scanner, root, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && excl.Excluded(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// watchCycle reruns the analysis and selection for one batch of changes.
// Failures are reported and the watch keeps going.
func watchCycle(ctx context.Context, cfg *config.Config, registry *pyenv.Registry, root string, changed []string, runTests bool) {
	fmt.Fprintf(os.Stderr, "\nChange detected (%d files). Re-selecting...\n", len(changed))

	res, err := extract.Analyze(ctx, extract.Request{
		Root:     root,
		Exclude:  cfg.Analysis.Exclude,
		Registry: registry,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: analysis failed: %v\n", err)
		return
	}

	selection := impact.NewSelector(res.Graph).AffectedTests(changed)

	report := &surface.RunReport{Selection: selection}
	engine := advisor.NewEngine(advisor.DefaultChecks()...)
	if review, err := engine.Review(&advisor.Input{
		Graph:     res.Graph,
		Selection: selection,
		Warnings:  res.Warnings,
		Dynamic:   res.Dynamic,
	}); err == nil {
		report.Review = review
	}

	if runTests && len(selection.AffectedTests) > 0 {
		outcome, err := runner.Run(ctx, runner.Options{
			Command: cfg.Runner.Command,
			Args:    cfg.Runner.Args,
			Dir:     root,
			Timeout: time.Duration(cfg.Runner.Timeout) * time.Second,
		}, selection.AffectedTests)
		report.Outcome = outcome
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	renderer := &surface.TerminalRenderer{}
	if err := renderer.Render(os.Stdout, report); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: rendering report: %v\n", err)
	}
}
