package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lspmux/manager"
)

// DidOpenTool opens a document against its language's session, lazily
// starting that session if this is the first open of its language
// (spec.md §4.3 "Lazy start").
func DidOpenTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_did_open",
			mcp.WithDescription(`Tell the language server a file is now open, starting its client if needed. Must be called before hover/definition/references/completion tools will work for a path.

PARAMETERS: uri (required), text (required, full current file content)`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Full current file content"), mcp.Required()),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, err := request.RequireString("uri")
			if err != nil {
				return errResult(err), nil
			}
			text, err := request.RequireString("text")
			if err != nil {
				return errResult(err), nil
			}
			path, err := mgr.URIToPath(uri)
			if err != nil {
				return errResult(err), nil
			}
			if _, err := mgr.DocumentOpened(path, text); err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText("ok"), nil
		}
}

func RegisterDidOpenTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(DidOpenTool(mgr))
}

// DidChangeTool pushes the document's full new content (spec.md §4.2
// "Document Sync") through Client.DidChangeFull, debounced 50ms. This
// tool always supplies whole-file text, whatever sync kind the server
// negotiated; Client.DidChangeIncremental is not reachable from it.
func DidChangeTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_did_change",
			mcp.WithDescription(`Notify the language server that an open file's content changed.

PARAMETERS: uri (required), text (required, full current file content)`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
			mcp.WithString("text", mcp.Description("Full current file content"), mcp.Required()),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, err := request.RequireString("uri")
			if err != nil {
				return errResult(err), nil
			}
			text, err := request.RequireString("text")
			if err != nil {
				return errResult(err), nil
			}
			c, err := clientForURI(mgr, uri)
			if err != nil {
				return errResult(err), nil
			}
			c.DidChangeFull(uri, text)
			return mcp.NewToolResultText("ok"), nil
		}
}

func RegisterDidChangeTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(DidChangeTool(mgr))
}

// DidCloseTool closes a document, tearing its session down once no other
// open document shares its language (spec.md §4.3 "Teardown on idle").
func DidCloseTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_did_close",
			mcp.WithDescription(`Tell the language server a file is no longer open.

PARAMETERS: uri (required)`),
			mcp.WithDestructiveHintAnnotation(false),
			mcp.WithString("uri", mcp.Description("URI to the file"), mcp.Required()),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			uri, err := request.RequireString("uri")
			if err != nil {
				return errResult(err), nil
			}
			path, err := mgr.URIToPath(uri)
			if err != nil {
				return errResult(err), nil
			}
			mgr.DocumentClosed(path)
			return mcp.NewToolResultText("ok"), nil
		}
}

func RegisterDidCloseTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(DidCloseTool(mgr))
}
