// Package mcpserver exposes the dispatch surface as MCP tools over stdio.
package mcpserver

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/amishk599/workmatch/internal/dispatch"
)

// ServerName is the MCP server name
const ServerName = "workmatch"

// Handler runs a dispatch request.
type Handler interface {
	Handle(ctx context.Context, req dispatch.Request) (dispatch.Response, error)
}

// Server wraps the MCP server with the request handler
type Server struct {
	mcp     *server.MCPServer
	handler Handler
	logger  *slog.Logger
}

// NewServer creates an MCP server with every workmatch tool registered.
func NewServer(handler Handler, version string, logger *slog.Logger) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(false),
		),
		handler: handler,
		logger:  logger,
	}
	s.registerTools()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
// Nothing else may write to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("mcp server listening on stdio")
	return stdio.Listen(ctx, in, out)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveJobsTool(), s.handleRetrieveJobs)
	s.mcp.AddTool(ingestJobsTool(), s.handleIngestJobs)
	s.mcp.AddTool(exploreTitlesTool(), s.handleExploreTitles)
	s.mcp.AddTool(indexStatsTool(), s.handleIndexStats)
}
