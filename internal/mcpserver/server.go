// Package mcpserver exposes a session's tier state and turn assembly to
// agents as MCP tools served over SSE/HTTP.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papapumpkin/stratum/internal/session"
)

// Version is the stratum MCP server version.
const Version = "0.1.0"

// Server is the in-process stratum MCP server.
type Server struct {
	session *session.Session
	mcp     *mcp.Server
	port    int
	srv     *http.Server
	ln      net.Listener
	logger  *slog.Logger
}

// NewServer creates a server for sess listening on port. Port 0 picks a free
// port. A nil logger discards.
func NewServer(sess *session.Session, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		session: sess,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "stratum",
			Version: Version,
		}, nil),
		port:   port,
		logger: logger,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.registerStatusTools()
	s.registerTurnTools()
}

// Start begins serving over SSE/HTTP. It returns once the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	handler := mcp.NewSSEHandler(func(_ *http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("mcpserver: listen on port %d: %w", s.port, err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: handler}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("mcp serve failed", "error", err)
		}
	}()
	s.logger.Info("mcp server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listener address, useful for tests with port 0.
func (s *Server) Addr() net.Addr {
	if s.ln != nil {
		return s.ln.Addr()
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcpserver: shutdown: %w", err)
	}
	return nil
}
