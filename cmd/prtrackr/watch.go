package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mark3labs/prtrackr/internal/config"
	"github.com/mark3labs/prtrackr/internal/host"
	"github.com/mark3labs/prtrackr/internal/tui"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal view of every tracked session's status line",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	nc, err := connectControl(cfg)
	if err != nil {
		return err
	}
	defer nc.Close()

	updates := make(chan tui.StatusMsg, 64)
	sub, err := host.NewBus(nc).SubscribeStatus(func(session, text string) {
		// Drop updates when the view is behind; the next tick repeats them.
		select {
		case updates <- tui.StatusMsg{Session: session, Text: text, At: time.Now()}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to status updates: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	program := tea.NewProgram(tui.New(updates), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch view failed: %w", err)
	}
	return nil
}
