package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/prtrackr/internal/config"
	"github.com/mark3labs/prtrackr/internal/gh"
	"github.com/mark3labs/prtrackr/internal/git"
	"github.com/mark3labs/prtrackr/internal/host"
	"github.com/mark3labs/prtrackr/internal/journal"
	"github.com/mark3labs/prtrackr/internal/logger"
	"github.com/mark3labs/prtrackr/internal/mcpserver"
	"github.com/mark3labs/prtrackr/internal/tracker"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	dataDir string
	natsURL string
	noMCP   bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tracker daemon",
	Long: `Run the tracker daemon: consume host session events, poll PR state,
publish status lines, and fire auto-iteration follow-ups.

The daemon connects to the NATS bus at --nats-url when given; otherwise it
reuses a running embedded server from a previous prtrackr process, or starts
its own. An MCP endpoint over streamable HTTP is exposed so agents can call
the tracker tools natively.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.dataDir, "data-dir", "", "Data directory for embedded NATS storage")
	serveCmd.Flags().StringVar(&serveFlags.natsURL, "nats-url", "", "External NATS URL (host-provided bus)")
	serveCmd.Flags().BoolVar(&serveFlags.noMCP, "no-mcp", false, "Do not expose the MCP tool endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	nc, ns, err := connectBus(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := host.Shutdown(nc, ns); err != nil {
			logger.Warn("Bus shutdown: %v", err)
		}
	}()

	bus := host.NewBus(nc)

	// The journal needs JetStream; a host-provided bus may not have it.
	// The tracker runs fine without one.
	var store tracker.Journal
	if js, err := jetstream.New(nc); err == nil {
		if stream, err := journal.SetupStream(ctx, js); err == nil {
			store = journal.NewStore(js, stream)
		} else {
			logger.Warn("Journal disabled, JetStream unavailable: %v", err)
		}
	}

	tr := tracker.New(tracker.Config{
		PollInterval:  cfg.PollInterval(),
		Debounce:      cfg.Debounce(),
		MaxIterations: cfg.MaxIterations,
		AutoIterate:   cfg.AutoIterate,
		CITimeout:     cfg.CITimeout(),
		ReviewSettle:  cfg.ReviewSettle(),
		TemplatePath:  cfg.Template,
	}, bus, gh.NewClient(), git.CLI{}, store)
	defer tr.Stop()

	evSub, err := bus.SubscribeEvents(tr.HandleEvent)
	if err != nil {
		return fmt.Errorf("failed to subscribe to host events: %w", err)
	}
	defer func() { _ = evSub.Unsubscribe() }()

	cmdSub, err := bus.SubscribeCommands(tr.HandleCommand)
	if err != nil {
		return fmt.Errorf("failed to subscribe to control commands: %w", err)
	}
	defer func() { _ = cmdSub.Unsubscribe() }()

	if !serveFlags.noMCP {
		mcpSrv := mcpserver.New(tr)
		if _, err := mcpSrv.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		defer func() { _ = mcpSrv.Stop() }()
		fmt.Printf("MCP endpoint: %s\n", mcpSrv.URL())
	}

	logger.Info("Tracker daemon running")
	fmt.Println("prtrackr serving; press Ctrl-C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutting down gracefully...")
	return nil
}

// loadConfig loads layered configuration and applies command-line overrides
// and log settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = serveFlags.dataDir
	}
	if cmd.Flags().Changed("nats-url") {
		cfg.NATSURL = serveFlags.natsURL
	}

	if cfg.LogLevel != "" {
		if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
			logger.Default.SetLevel(lvl)
		}
	}
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644); err == nil {
			logger.Default.SetOutput(f)
		}
	}

	return cfg, nil
}

// connectBus connects to the configured NATS bus: an explicit URL, a running
// embedded server from another prtrackr process, or a fresh embedded server.
func connectBus(cfg *config.Config) (*nats.Conn, *server.Server, error) {
	if cfg.NATSURL != "" {
		nc, err := host.Connect(cfg.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
		}
		return nc, nil, nil
	}

	if nc := host.TryConnectExisting(cfg.DataDir); nc != nil {
		logger.Debug("Reusing embedded NATS from another prtrackr process")
		return nc, nil, nil
	}

	ns, port, err := host.StartEmbedded(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	nc, err := host.ConnectToPort(port)
	if err != nil {
		ns.Shutdown()
		return nil, nil, fmt.Errorf("failed to connect to embedded NATS: %w", err)
	}
	return nc, ns, nil
}
