package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lspmux/manager"
)

// HoverTool exposes textDocument/hover for a cursor position (spec.md §4.2
// "Hover"). Grounded on the teacher's definition.go request-parsing shape.
func HoverTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_hover",
			mcp.WithDescription(`Get hover information (type signature, documentation) for the symbol at a cursor position using LSP textDocument/hover.

PARAMETERS: uri (required), line/character (required, 0-based)
OUTPUT: JSON hover contents, or null if the server has none for this position.`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithNumber("line", mcp.Description("Line number (0-based)"), mcp.Required(), mcp.Min(0)),
			mcp.WithNumber("character", mcp.Description("Character position (0-based)"), mcp.Required(), mcp.Min(0)),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, err := request.RequireString("uri")
			if err != nil {
				return errResult(err), nil
			}
			line, err := request.RequireInt("line")
			if err != nil {
				return errResult(err), nil
			}
			character, err := request.RequireInt("character")
			if err != nil {
				return errResult(err), nil
			}

			c, err := clientForURI(mgr, uri)
			if err != nil {
				return errResult(err), nil
			}
			lineU, err := safeUint32(line)
			if err != nil {
				return errResult(err), nil
			}
			charU, err := safeUint32(character)
			if err != nil {
				return errResult(err), nil
			}

			hover := c.Hover(uri, lineU, charU)
			payload, err := json.Marshal(hover)
			if err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}

func RegisterHoverTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(HoverTool(mgr))
}
