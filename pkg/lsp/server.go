// Package lsp implements a language server over an assembly-tree JSON
// document: the external input that drives a merge (spec §1, §3).
// Grounded on pkg/lsp/server.go + pkg/lsp/handlers.go, a jsonrpc2-based
// server that proxies textDocument/* notifications to gopls. This
// server has no upstream transpiler target to proxy to, so it answers
// requests directly against the assembly tree being edited and
// publishes diagnostics for the invariants pkg/assembly's loader
// enforces.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/stepworks/stepmerger/pkg/logging"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	Logger logging.Logger
}

// Server answers LSP requests for an assembly-tree JSON document.
type Server struct {
	config ServerConfig

	docsMu sync.Mutex
	docs   map[protocol.DocumentURI]string

	connMu  sync.RWMutex
	ideConn jsonrpc2.Conn
	ctx     context.Context
}

// NewServer creates a new assembly-tree language server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNoOp()
	}
	return &Server{
		config: cfg,
		docs:   make(map[protocol.DocumentURI]string),
	}, nil
}

// SetConn stores the connection and context used to publish diagnostics.
func (s *Server) SetConn(conn jsonrpc2.Conn, ctx context.Context) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.ideConn = conn
	s.ctx = ctx
}

// GetConn returns the stored connection and context.
func (s *Server) GetConn() (jsonrpc2.Conn, context.Context) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return s.ideConn, s.ctx
}

// Handler returns a jsonrpc2 handler for this server.
func (s *Server) Handler() jsonrpc2.Handler {
	return jsonrpc2.ReplyHandler(s.handleRequest)
}

func (s *Server) handleRequest(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.config.Logger.Debug("received request: %s", req.Method())

	switch req.Method() {
	case "initialize":
		return s.handleInitialize(ctx, reply, req)
	case "initialized":
		return reply(ctx, nil, nil)
	case "shutdown":
		return s.handleShutdown(ctx, reply, req)
	case "exit":
		return reply(ctx, nil, nil)
	case "textDocument/didOpen":
		return s.handleDidOpen(ctx, reply, req)
	case "textDocument/didChange":
		return s.handleDidChange(ctx, reply, req)
	case "textDocument/didSave":
		return s.handleDidSave(ctx, reply, req)
	case "textDocument/didClose":
		return s.handleDidClose(ctx, reply, req)
	default:
		s.config.Logger.Debug("method not implemented: %s", req.Method())
		return reply(ctx, nil, fmt.Errorf("method not implemented: %s", req.Method()))
	}
}

func (s *Server) handleInitialize(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.InitializeParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, fmt.Errorf("invalid initialize params: %w", err))
	}

	result := protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: true},
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "stepmerger-lsp",
			Version: "0.1.0",
		},
	}

	s.config.Logger.Info("server initialized")
	return reply(ctx, result, nil)
}

func (s *Server) handleShutdown(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.config.Logger.Info("shutdown requested")
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidOpen(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	s.storeAndPublish(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidChange(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	if len(params.ContentChanges) > 0 {
		// Full-document sync (TextDocumentSyncKindFull): the last change
		// event carries the entire new text.
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		s.storeAndPublish(ctx, params.TextDocument.URI, text)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidSave(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidSaveTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	if params.Text != "" {
		s.storeAndPublish(ctx, params.TextDocument.URI, params.Text)
	}
	return reply(ctx, nil, nil)
}

func (s *Server) handleDidClose(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(req.Params(), &params); err != nil {
		return reply(ctx, nil, err)
	}
	s.docsMu.Lock()
	delete(s.docs, params.TextDocument.URI)
	s.docsMu.Unlock()
	s.publishDiagnostics(ctx, params.TextDocument.URI, nil)
	return reply(ctx, nil, nil)
}

func (s *Server) storeAndPublish(ctx context.Context, uri protocol.DocumentURI, text string) {
	s.docsMu.Lock()
	s.docs[uri] = text
	s.docsMu.Unlock()
	s.publishDiagnostics(ctx, uri, computeDiagnostics(text))
}

// publishDiagnostics sends a textDocument/publishDiagnostics notification
// over the stored connection, if one has been set via SetConn.
func (s *Server) publishDiagnostics(ctx context.Context, uri protocol.DocumentURI, diags []protocol.Diagnostic) {
	conn, storedCtx := s.GetConn()
	if conn == nil {
		return
	}
	if storedCtx != nil {
		ctx = storedCtx
	}
	if diags == nil {
		diags = []protocol.Diagnostic{}
	}
	params := protocol.PublishDiagnosticsParams{URI: uri, Diagnostics: diags}
	if err := conn.Notify(ctx, "textDocument/publishDiagnostics", params); err != nil {
		s.config.Logger.Warn("publishing diagnostics for %s failed: %v", uri, err)
	}
}
