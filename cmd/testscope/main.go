// Package main provides the testscope CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "testscope",
		Short: "Test impact selection for Python projects",
		Long: `Testscope builds the import graph of a Python project, computes which
test files a set of changed files can reach, and runs or reports that
minimal set so CI only executes what a change can break.`,
		Version: version,
	}

	rootCmd.AddCommand(
		newSelectCmd(),
		newGraphCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the testscope version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("testscope %s\n", version)
		},
	}
}
