package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/prtrackr/internal/config"
	"github.com/mark3labs/prtrackr/internal/gh"
	"github.com/mark3labs/prtrackr/internal/git"
	"github.com/mark3labs/prtrackr/internal/host"
	"github.com/mark3labs/prtrackr/internal/journal"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

var controlFlags struct {
	session string
	history bool
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&controlFlags.session, "session", "s", "", "Target session id (default: derived from the current directory)")
	statusCmd.Flags().BoolVar(&controlFlags.history, "history", false, "Also print the journaled iteration history")

	pinCmd.ValidArgsFunction = completeOpenPRs
}

var onCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable auto-iteration for the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("on", "")
	},
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable auto-iteration for the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("off", "")
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fire one follow-up iteration now, regardless of the auto-iterate setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("run", "")
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the session's iteration counter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("reset", "")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the session's current PR status line",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var pinCmd = &cobra.Command{
	Use:   "pin <pr-url | pr-number>",
	Short: "Pin the session to a specific PR, overriding branch detection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("pin", args[0])
	},
}

var unpinCmd = &cobra.Command{
	Use:   "unpin",
	Short: "Remove the session's PR pin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendVerb("unpin", "")
	},
}

// targetSession resolves the session id the control verbs act on.
func targetSession(workDir string) string {
	if controlFlags.session != "" {
		return controlFlags.session
	}
	return host.SessionIDForDir(workDir)
}

// connectControl connects to the bus a running daemon listens on.
func connectControl(cfg *config.Config) (*nats.Conn, error) {
	if cfg.NATSURL != "" {
		return host.Connect(cfg.NATSURL)
	}
	if nc := host.TryConnectExisting(cfg.DataDir); nc != nil {
		return nc, nil
	}
	return nil, fmt.Errorf("no running prtrackr daemon; start one with 'prtrackr serve'")
}

// sendVerb dispatches one control verb to the daemon and prints its reply.
func sendVerb(verb, arg string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	nc, err := connectControl(cfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	wd, _ := os.Getwd()
	reply, err := host.NewBus(nc).SendCommand(host.Command{
		Session: targetSession(wd),
		WorkDir: wd,
		Verb:    verb,
		Arg:     arg,
	})
	if err != nil {
		return err
	}

	fmt.Println(reply)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	nc, err := connectControl(cfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	wd, _ := os.Getwd()
	session := targetSession(wd)
	bus := host.NewBus(nc)

	reply, err := bus.SendCommand(host.Command{Session: session, WorkDir: wd, Verb: "status"})
	if err != nil {
		return err
	}
	fmt.Println(reply)

	// The daemon reports the PR side; the local working tree is ours to show.
	if info, err := git.GetInfo(wd); err == nil && info != nil {
		fmt.Println(worktreeLine(info))
	}

	if !controlFlags.history {
		return nil
	}

	ctx := context.Background()
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("history unavailable, no JetStream on this bus: %w", err)
	}
	stream, err := journal.SetupStream(ctx, js)
	if err != nil {
		return fmt.Errorf("history unavailable: %w", err)
	}

	state, err := journal.NewStore(js, stream).LoadState(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	if len(state.Iterations) == 0 {
		fmt.Println("\nNo iterations recorded.")
	} else {
		fmt.Printf("\nIterations (%d):\n", len(state.Iterations))
		for _, it := range state.Iterations {
			fmt.Printf("  #%d  PR #%d  %s\n", it.Number, it.PR, it.FiredAt.Format("2006-01-02 15:04:05"))
		}
	}
	if state.Pin != "" {
		fmt.Printf("Pinned: %s\n", state.Pin)
	}
	if state.CapReached {
		fmt.Println("Iteration cap was reached; auto-iterate was forced off.")
	}
	return nil
}

// worktreeLine formats the local repository state printed under the status
// line: branch, short hash, and any divergence from upstream.
func worktreeLine(info *git.Info) string {
	line := "worktree: " + info.Branch
	if info.Hash != "" {
		line += " @ " + info.Hash
	}

	var notes []string
	if info.Dirty {
		notes = append(notes, "dirty")
	}
	if info.Ahead > 0 {
		notes = append(notes, fmt.Sprintf("ahead %d", info.Ahead))
	}
	if info.Behind > 0 {
		notes = append(notes, fmt.Sprintf("behind %d", info.Behind))
	}
	if len(notes) > 0 {
		line += " (" + strings.Join(notes, ", ") + ")"
	}
	return line
}

// completeOpenPRs offers the repository's open PR numbers for pin completion.
func completeOpenPRs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, ref := range gh.NewClient().ListOpen(wd) {
		completions = append(completions, fmt.Sprintf("%d\t%s", ref.Number, ref.Title))
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}
