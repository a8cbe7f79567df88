package tools

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"lspmux/client"
	"lspmux/manager"
)

// LSPActivity is one active $/progress stream, adapted from the teacher's
// readiness.go shape without its warm-up/session-mode fields (manager.Manager
// has no warm-up concept: a client is either starting, running, or absent).
type LSPActivity struct {
	Language   string  `json:"language"`
	Token      string  `json:"token"`
	Kind       string  `json:"kind"`
	Title      string  `json:"title,omitempty"`
	Message    string  `json:"message,omitempty"`
	Percentage *uint32 `json:"percentage,omitempty"`
}

type LSPClientStatus struct {
	Language    string `json:"language"`
	Command     string `json:"command,omitempty"`
	Initialized bool   `json:"initialized"`
	Restarts    int    `json:"restarts"`
	OpenFiles   int    `json:"open_files"`
}

type LSPStatus struct {
	Clients  []LSPClientStatus `json:"clients"`
	Activity []LSPActivity     `json:"activity"`
}

// BuildLSPStatus reports every currently running session, including
// server-sent $/progress streams (spec.md §4.2's status-reporting surface).
func BuildLSPStatus(mgr *manager.Manager) LSPStatus {
	running := mgr.RunningClients()
	langs := make([]string, 0, len(running))
	for lang := range running {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	status := LSPStatus{Clients: []LSPClientStatus{}, Activity: []LSPActivity{}}
	for _, lang := range langs {
		c := running[lang]
		status.Clients = append(status.Clients, LSPClientStatus{
			Language:    lang,
			Command:     c.Command(),
			Initialized: c.Initialized(),
			Restarts:    c.Restarts(),
			OpenFiles:   len(c.OpenURIs()),
		})
		appendActivity(&status, lang, c)
	}
	return status
}

func appendActivity(status *LSPStatus, lang string, c *client.Client) {
	snap := c.ProgressSnapshot()
	for _, ev := range snap.Active {
		status.Activity = append(status.Activity, LSPActivity{
			Language:   lang,
			Token:      ev.TokenKey,
			Kind:       ev.Kind,
			Title:      ev.Title,
			Message:    ev.Message,
			Percentage: ev.Percentage,
		})
	}
}

// LSPStatusTool reports current LSP session status, including server-sent
// $/progress streams.
func LSPStatusTool(mgr *manager.Manager) (mcp.Tool, server.ToolHandlerFunc) {
	return mcp.NewTool("lsp_status",
			mcp.WithDescription("Show current LSP session status (per-language client state, restart counts, open file counts) and server progress ($/progress). Useful for detecting whether a language server is still indexing."),
			mcp.WithDestructiveHintAnnotation(false),
		), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			payload, err := json.Marshal(BuildLSPStatus(mgr))
			if err != nil {
				return errResult(err), nil
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
}

func RegisterLSPStatusTool(mcpServer *server.MCPServer, mgr *manager.Manager) {
	mcpServer.AddTool(LSPStatusTool(mgr))
}
