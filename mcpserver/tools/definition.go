package tools

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lspmux/client"
	"lspmux/manager"
)

// DefinitionTool exposes textDocument/definition (spec.md §4.2
// "Definition"). Adapted from the teacher's mcpserver/tools/definition.go,
// retargeted at manager.Manager and returning JSON instead of a formatted
// text block (the teacher's formatDefinitions has no analogue once the
// Docker path-mapping concern it existed for is gone; see DESIGN.md).
func DefinitionTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_definition",
			mcp.WithDescription(`Get definition location(s) for the symbol at a cursor position using LSP textDocument/definition.

PARAMETERS: uri (required), line/character (required, 0-based)
OUTPUT: JSON array of target locations (file + range), empty or null if none found.`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithNumber("line", mcp.Description("Line number (0-based)"), mcp.Required(), mcp.Min(0)),
			mcp.WithNumber("character", mcp.Description("Character position (0-based)"), mcp.Required(), mcp.Min(0)),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, line, character, c, err := parsePositionRequest(mgr, request)
			if err != nil {
				return errResult(err), nil
			}
			locs := c.Definition(uri, line, character)
			payload, err := json.Marshal(locs)
			if err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}

func RegisterDefinitionTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(DefinitionTool(mgr))
}

// TypeDefinitionTool exposes textDocument/typeDefinition (spec.md §4.2
// "Type Definition"); the teacher never implements this method, so its
// params/response travel as client.TypeDefinition's local structs rather
// than a verified lsprotocol-go type (see DESIGN.md).
func TypeDefinitionTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_type_definition",
			mcp.WithDescription(`Get the type definition location(s) for the symbol at a cursor position using LSP textDocument/typeDefinition.

PARAMETERS: uri (required), line/character (required, 0-based)
OUTPUT: JSON array of target locations (file + range), empty or null if none found.`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithNumber("line", mcp.Description("Line number (0-based)"), mcp.Required(), mcp.Min(0)),
			mcp.WithNumber("character", mcp.Description("Character position (0-based)"), mcp.Required(), mcp.Min(0)),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, line, character, c, err := parsePositionRequest(mgr, request)
			if err != nil {
				return errResult(err), nil
			}
			locs := c.TypeDefinition(uri, line, character)
			payload, err := json.Marshal(locs)
			if err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}

func RegisterTypeDefinitionTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(TypeDefinitionTool(mgr))
}

// parsePositionRequest is the (uri, line, character) parse-and-resolve
// shared by every cursor-position tool.
func parsePositionRequest(mgr *manager.Manager, request mcp.CallToolRequest) (uri string, line, character uint32, c *client.Client, err error) {
	uri, err = request.RequireString("uri")
	if err != nil {
		return "", 0, 0, nil, err
	}
	lineI, err := request.RequireInt("line")
	if err != nil {
		return "", 0, 0, nil, err
	}
	charI, err := request.RequireInt("character")
	if err != nil {
		return "", 0, 0, nil, err
	}
	line, err = safeUint32(lineI)
	if err != nil {
		return "", 0, 0, nil, err
	}
	character, err = safeUint32(charI)
	if err != nil {
		return "", 0, 0, nil, err
	}
	c, err = clientForURI(mgr, uri)
	if err != nil {
		return "", 0, 0, nil, err
	}
	return uri, line, character, c, nil
}
