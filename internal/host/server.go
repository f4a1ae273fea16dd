package host

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/prtrackr/internal/errors"
	"github.com/mark3labs/prtrackr/internal/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// portFileName holds the listening port of a running embedded server so a
// second prtrackr process (control verbs, watch TUI) can find it.
const portFileName = "nats.port"

// StartEmbedded starts an embedded NATS server with JetStream enabled,
// listening on a random localhost port, and records the port in dataDir.
// Returns the server and its port.
func StartEmbedded(dataDir string) (*server.Server, int, error) {
	logger.Debug("Starting embedded NATS server with data dir: %s", dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, 0, fmt.Errorf("failed to create NATS data directory: %w", err)
	}

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  dataDir,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		logger.Error("Failed to create NATS server: %v", err)
		return nil, 0, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		logger.Error("NATS server failed to start within 4s timeout")
		return nil, 0, fmt.Errorf("nats server failed to start within timeout")
	}

	addr, ok := ns.Addr().(*net.TCPAddr)
	if !ok {
		ns.Shutdown()
		return nil, 0, fmt.Errorf("failed to determine NATS listen address")
	}
	p := addr.Port

	if err := os.WriteFile(filepath.Join(dataDir, portFileName), []byte(strconv.Itoa(p)), 0644); err != nil {
		logger.Warn("Failed to write NATS port file: %v", err)
	}

	logger.Debug("NATS server ready on port %d", p)
	return ns, p, nil
}

// TryConnectExisting connects to a NATS server previously started by another
// prtrackr process, found via the port file in dataDir. Returns nil if no
// server is reachable.
func TryConnectExisting(dataDir string) *nats.Conn {
	data, err := os.ReadFile(filepath.Join(dataDir, portFileName))
	if err != nil {
		return nil
	}

	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil
	}

	nc, err := ConnectToPort(port)
	if err != nil {
		logger.Debug("Stale NATS port file (port %d): %v", port, err)
		return nil
	}
	return nc
}

// ConnectToPort connects to a NATS server on localhost.
func ConnectToPort(port int) (*nats.Conn, error) {
	return nats.Connect(fmt.Sprintf("nats://127.0.0.1:%d", port), nats.Timeout(2*time.Second))
}

// Connect connects to an explicit NATS URL (a host-provided bus).
func Connect(url string) (*nats.Conn, error) {
	return nats.Connect(url, nats.Timeout(5*time.Second))
}

// ConnectInProcess creates an in-process connection to an embedded server.
// Used by tests to avoid real sockets.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	return nats.Connect("", nats.InProcessServer(ns))
}

// Shutdown gracefully drains the connection and stops the server.
// Both steps are bounded so shutdown can never hang the host; a failed step
// is collected and the remaining steps still run.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	logger.Debug("Starting NATS shutdown")

	var errs errors.MultiError

	if nc != nil {
		drainDone := make(chan error, 1)
		go func() {
			drainDone <- nc.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				logger.Warn("NATS drain failed, forcing close: %v", err)
				errs.Append(fmt.Errorf("drain: %w", err))
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("NATS drain timed out after 2s, forcing close")
			errs.Append(fmt.Errorf("drain timed out after 2s"))
			nc.Close()
		}
	}

	if ns != nil {
		ns.Shutdown()

		shutdownDone := make(chan struct{})
		go func() {
			ns.WaitForShutdown()
			close(shutdownDone)
		}()

		select {
		case <-shutdownDone:
			logger.Debug("NATS server shut down cleanly")
		case <-time.After(5 * time.Second):
			logger.Error("NATS server shutdown timed out after 5s")
			errs.Append(fmt.Errorf("server shutdown timed out after 5s"))
		}
	}

	return errs.ErrorOrNil()
}
