// Package runner launches the external test runner over a selected test
// list and reports how the run ended. Selecting tests and running them
// stay separate concerns: the runner never inspects the project.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Status is the terminal state of one runner invocation. A failed run
// (tests executed, some failed) is distinct from an error or timeout
// (tests did not run to completion); the distinction reaches the exit
// code so a broken runner is never reported as a pass.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// Options configures one invocation.
type Options struct {
	Command string        // runner binary, e.g. pytest
	Args    []string      // fixed arguments placed before the test list
	Dir     string        // working directory
	Timeout time.Duration // zero disables the deadline
	Stdout  io.Writer     // defaults to os.Stdout
	Stderr  io.Writer     // defaults to os.Stderr
}

// Outcome describes how a run ended.
type Outcome struct {
	Status   Status        `json:"status"`
	ExitCode int           `json:"exit_code"`
	Command  string        `json:"command"`
	Duration time.Duration `json:"duration"`
}

// Run executes the runner over the given tests, streaming its output.
// The list is sorted and deduplicated before being appended to the
// command line. An empty list is rejected: most runners fall back to
// their full default suite when given no paths.
func Run(ctx context.Context, opts Options, tests []string) (*Outcome, error) {
	if len(tests) == 0 {
		return &Outcome{Status: StatusError, ExitCode: -1},
			errors.New("refusing to run with an empty test list")
	}

	start := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := append([]string(nil), opts.Args...)
	args = append(args, dedupSorted(tests)...)

	cmd := exec.CommandContext(ctx, opts.Command, args...)
	cmd.Dir = opts.Dir
	cmd.Stdout = opts.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = opts.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	err := cmd.Run()

	outcome := &Outcome{
		Command:  opts.Command + " " + strings.Join(args, " "),
		Duration: time.Since(start),
	}

	if err == nil {
		outcome.Status = StatusPassed
		return outcome, nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		outcome.Status = StatusTimeout
		outcome.ExitCode = -1
		return outcome, fmt.Errorf("test run timed out after %s", opts.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.Status = StatusFailed
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}

	outcome.Status = StatusError
	outcome.ExitCode = -1
	return outcome, fmt.Errorf("running %s: %w", opts.Command, err)
}

func dedupSorted(tests []string) []string {
	seen := make(map[string]bool, len(tests))
	out := make([]string, 0, len(tests))
	for _, t := range tests {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
