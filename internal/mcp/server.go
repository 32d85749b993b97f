package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/policyvoice/internal/knowledge"
	"github.com/ziadkadry99/policyvoice/internal/session"
	"github.com/ziadkadry99/policyvoice/internal/turn"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the assistant to agents.
type Server struct {
	runner turn.Runner
	store  session.Store
	lookup *knowledge.Lookup
	mcp    *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(runner turn.Runner, store session.Store, lookup *knowledge.Lookup) *Server {
	s := &Server{
		runner: runner,
		store:  store,
		lookup: lookup,
	}

	s.mcp = server.NewMCPServer(
		"policyvoice",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(askAssistantTool, s.handleAskAssistant)
	s.mcp.AddTool(lookupKnowledgeTool, s.handleLookupKnowledge)
	s.mcp.AddTool(getConversationTool, s.handleGetConversation)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
