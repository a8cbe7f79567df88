// Package tools implements the MCP tool surface over manager.Manager: one
// tool per SPEC_FULL.md client operation (hover, definition, type
// definition, references, completion, the didOpen/didChange/didClose sync
// triple, and status). Grounded on the teacher's mcpserver/tools package
// (definition.go, lsp_status.go, readiness.go), adapted from the teacher's
// multi-client BridgeInterface indirection to manager.Manager's single
// extension-routed client set.
package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"lspmux/client"
	"lspmux/manager"
)

// clientForURI resolves uri to the path-keyed client.Client the Manager
// already owns. Tools never start a client themselves (spec.md §4.3
// "Lazy start" happens only from didOpen); callers must lsp_did_open
// first.
func clientForURI(mgr *manager.Manager, uri string) (*client.Client, error) {
	path, err := mgr.URIToPath(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	c, ok := mgr.ClientForPath(path)
	if !ok {
		return nil, fmt.Errorf("no running language client for %q; call lsp_did_open first", uri)
	}
	return c, nil
}

func errResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

// safeUint32 rejects negative cursor coordinates before they silently
// wrap when narrowed to uint32 (the teacher's definition.go carries the
// same guard ahead of its LSP calls).
func safeUint32(n int) (uint32, error) {
	if n < 0 {
		return 0, fmt.Errorf("must be >= 0, got %d", n)
	}
	return uint32(n), nil
}
