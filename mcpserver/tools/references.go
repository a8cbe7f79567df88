package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lspmux/manager"
)

// ReferencesTool exposes textDocument/references (spec.md §4.2
// "References"), which the client always requests with
// includeDeclaration=true.
func ReferencesTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_references",
			mcp.WithDescription(`Find all references to the symbol at a cursor position using LSP textDocument/references. Includes the declaration site.

PARAMETERS: uri (required), line/character (required, 0-based)
OUTPUT: JSON array of locations (file + range), empty or null if none found.`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithNumber("line", mcp.Description("Line number (0-based)"), mcp.Required(), mcp.Min(0)),
			mcp.WithNumber("character", mcp.Description("Character position (0-based)"), mcp.Required(), mcp.Min(0)),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, line, character, c, err := parsePositionRequest(mgr, request)
			if err != nil {
				return errResult(err), nil
			}
			locs := c.References(uri, line, character)
			payload, err := json.Marshal(locs)
			if err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}

func RegisterReferencesTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(ReferencesTool(mgr))
}
