package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lspmux/manager"
)

// CompletionTool exposes textDocument/completion (spec.md §4.2
// "Completion"); the teacher never implements this method, so its
// request/response travel as client.CompletionResult's local structs
// rather than a verified lsprotocol-go type (see DESIGN.md).
func CompletionTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_completion",
			mcp.WithDescription(`Get completion suggestions at a cursor position using LSP textDocument/completion.

PARAMETERS: uri (required), line/character (required, 0-based)
OUTPUT: JSON {isIncomplete, items[]}, or null if the server has none.`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithNumber("line", mcp.Description("Line number (0-based)"), mcp.Required(), mcp.Min(0)),
			mcp.WithNumber("character", mcp.Description("Character position (0-based)"), mcp.Required(), mcp.Min(0)),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, line, character, c, err := parsePositionRequest(mgr, request)
			if err != nil {
				return errResult(err), nil
			}
			result := c.Completion(uri, line, character)
			payload, err := json.Marshal(result)
			if err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}

func RegisterCompletionTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(CompletionTool(mgr))
}
