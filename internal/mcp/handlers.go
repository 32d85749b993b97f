package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/policyvoice/internal/llm"
)

// handleAskAssistant runs one conversation turn.
func (s *Server) handleAskAssistant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil || strings.TrimSpace(question) == "" {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}

	sessionID := request.GetString("session_id", "")
	if sessionID == "" {
		sessionID = "mcp_" + uuid.NewString()[:8]
	}

	answer, err := s.runner.RunTurn(ctx, sessionID, strings.TrimSpace(question))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("assistant failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session: %s\n\n%s", sessionID, answer)), nil
}

// handleLookupKnowledge returns the knowledge snippet for a query.
func (s *Server) handleLookupKnowledge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	refs := s.lookup.Match(query)
	if len(refs) == 0 {
		return mcp.NewToolResultText("No knowledge matched. The assistant will answer from the model alone."), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Matched %d knowledge entries:\n", len(refs)))
	base := s.lookup.Base()
	for _, ref := range refs {
		text := base.Get(ref.Category, ref.Key)
		if text == "" {
			text = "(missing from knowledge base)"
		}
		sb.WriteString(fmt.Sprintf("\n[%s.%s]\n%s\n", ref.Category, ref.Key, text))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// handleGetConversation returns the stored conversation of a session.
func (s *Server) handleGetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil || sessionID == "" {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	msgs, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load conversation: %v", err)), nil
	}
	if len(msgs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No messages stored for session %q.", sessionID)), nil
	}

	return mcp.NewToolResultText(FormatConversation(msgs)), nil
}

// FormatConversation renders messages one per line as "role: content".
func FormatConversation(msgs []llm.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
	}
	return sb.String()
}
