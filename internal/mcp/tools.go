package mcp

import "github.com/mark3labs/mcp-go/mcp"

// askAssistantTool defines the ask_assistant MCP tool.
var askAssistantTool = mcp.NewTool("ask_assistant",
	mcp.WithDescription("Ask the life insurance assistant a question. The exchange is stored in the given session, so follow-up questions keep their context."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("The customer's question in plain language"),
	),
	mcp.WithString("session_id",
		mcp.Description("Conversation to continue; a new one is started when omitted"),
	),
)

// lookupKnowledgeTool defines the lookup_knowledge MCP tool.
var lookupKnowledgeTool = mcp.NewTool("lookup_knowledge",
	mcp.WithDescription("Return the knowledge base snippets the assistant would use for a question, without calling the model."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Question or keywords, e.g. \"how do I file a claim\""),
	),
)

// getConversationTool defines the get_conversation MCP tool.
var getConversationTool = mcp.NewTool("get_conversation",
	mcp.WithDescription("Get the stored messages of a conversation in order."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Conversation session id"),
	),
)
