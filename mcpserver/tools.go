// Package mcpserver wires manager.Manager into an MCP tool surface
// (spec.md §6 "MCP host platform"). Grounded on the teacher's
// mcpserver/tools.go registration list, trimmed to the operations
// SPEC_FULL.md names and pointed at manager.Manager instead of the
// teacher's multi-client BridgeInterface.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"lspmux/manager"
	"lspmux/mcpserver/tools"
)

// RegisterAllTools registers every MCP tool this daemon exposes.
func RegisterAllTools(mcpServer *server.MCPServer, mgr *manager.Manager) {
	// Document sync: must run before any feature tool can resolve a client.
	tools.RegisterDidOpenTool(mcpServer, mgr)
	tools.RegisterDidChangeTool(mcpServer, mgr)
	tools.RegisterDidCloseTool(mcpServer, mgr)

	// Code intelligence tools.
	tools.RegisterHoverTool(mcpServer, mgr)
	tools.RegisterDefinitionTool(mcpServer, mgr)
	tools.RegisterTypeDefinitionTool(mcpServer, mgr)
	tools.RegisterReferencesTool(mcpServer, mgr)
	tools.RegisterCompletionTool(mcpServer, mgr)

	// Session status (includes LSP $/progress).
	tools.RegisterLSPStatusTool(mcpServer, mgr)
}
