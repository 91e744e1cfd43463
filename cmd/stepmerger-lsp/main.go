// Command stepmerger-lsp is a language server over assembly-tree JSON
// documents, publishing diagnostics for the invariants a merge's loader
// enforces (spec §3). It speaks LSP over stdin/stdout.
package main

import (
	"context"
	"os"

	"go.lsp.dev/jsonrpc2"

	"github.com/stepworks/stepmerger/pkg/logging"
	"github.com/stepworks/stepmerger/pkg/lsp"
)

func main() {
	level := logging.ParseLevel(os.Getenv("STEPMERGER_LSP_LOG"))
	logger := logging.NewStd(os.Stderr, level)

	logger.Info("starting stepmerger-lsp")

	server, err := lsp.NewServer(lsp.ServerConfig{Logger: logger})
	if err != nil {
		logger.Error("failed to create server: %v", err)
		os.Exit(1)
	}

	stream := jsonrpc2.NewStream(stdinout{})
	conn := jsonrpc2.NewConn(stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server.SetConn(conn, ctx)

	conn.Go(ctx, server.Handler())
	<-conn.Done()

	logger.Info("stepmerger-lsp stopped")
}

// stdinout adapts stdin/stdout to an io.ReadWriteCloser for jsonrpc2.
type stdinout struct{}

func (stdinout) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdinout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdinout) Close() error {
	if err := os.Stdin.Close(); err != nil {
		return err
	}
	return os.Stdout.Close()
}
