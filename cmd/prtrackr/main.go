package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/mark3labs/prtrackr/internal/logger"
	"github.com/spf13/cobra"
)

// Version set via ldflags during build
var version = "dev"

func main() {
	// Ensure logger is closed on exit
	defer func() { _ = logger.Close() }()

	if err := fang.Execute(context.Background(), rootCmd, fang.WithVersion(version)); err != nil {
		logger.Error("Command execution failed: %v", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prtrackr",
	Short: "PR status tracking and auto-iteration for AI coding agent sessions",
	Long: `prtrackr watches the pull requests your agent sessions are working on:
CI check rollups, unresolved review threads, merge state. It renders a
one-line status per session and, when auto-iteration is on, answers every
successful push with a bounded follow-up instruction to the agent.

Run 'prtrackr serve' in the background, then steer it with the control
verbs. A bare 'prtrackr' toggles auto-iteration for the current session.`,
	// Bare invocation toggles auto-iterate for the current session.
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("toggle", "")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pinCmd)
	rootCmd.AddCommand(unpinCmd)
	rootCmd.AddCommand(setupCmd)
}
