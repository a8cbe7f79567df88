package tools

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/mcptest"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"lspmux/client"
	"lspmux/config"
	"lspmux/manager"
)

// fakeTransport is a minimal client.Transport double letting these tests
// drive a real manager.Manager/client.Client pair end to end through the
// MCP tool layer, in the spirit of the teacher's mcptest-based
// definition_test.go.
type fakeTransport struct {
	sent      chan []byte
	onMessage func([]byte)
}

func newFakeTransport() *fakeTransport { return &fakeTransport{sent: make(chan []byte, 16)} }

func (f *fakeTransport) Send(payload []byte) error {
	f.sent <- payload
	return nil
}
func (f *fakeTransport) OnMessage(cb func([]byte)) { f.onMessage = cb }
func (f *fakeTransport) OnStderr(func([]byte))     {}
func (f *fakeTransport) OnExit(func(error))        {}
func (f *fakeTransport) Kill() error                { return nil }

var _ client.Transport = (*fakeTransport)(nil)

// newReadyManager builds a Manager whose "typescript" client has already
// completed its handshake against a fake transport, and whose one file
// has already been opened, so the feature tools under test resolve a
// client immediately.
func newReadyManager(t *testing.T) (*manager.Manager, *fakeTransport) {
	t.Helper()
	cfg := config.Config{Servers: map[string]config.ServerConfig{
		"typescript": {Command: "tsserver", Extensions: []string{".ts"}, Enabled: true},
	}}
	mgr := manager.New(cfg, "/workspace")

	ft := newFakeTransport()
	mgr.SetTestDialer(func() (client.Transport, error) { return ft, nil })

	done := make(chan struct{})
	go func() {
		_, _ = mgr.DocumentOpened("/workspace/a.ts", "const x = 1;")
		close(done)
	}()

	select {
	case raw := <-ft.sent:
		var env struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.Unmarshal(raw, &env))
		require.Equal(t, "initialize", env.Method)
		ft.onMessage([]byte(`{"jsonrpc":"2.0","id":` + strconv.FormatInt(env.ID, 10) + `,"result":{"capabilities":{
			"hoverProvider": true, "definitionProvider": true, "typeDefinitionProvider": true,
			"referencesProvider": true, "completionProvider": {}, "textDocumentSync": 1
		}}}`))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initialize")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for DocumentOpened")
	}
	<-ft.sent // initialized notification
	<-ft.sent // didOpen notification (exactly one, per spec.md §4.2/§8)
	return mgr, ft
}

func TestDefinitionTool_Success(t *testing.T) {
	mgr, ft := newReadyManager(t)

	tool, handler := DefinitionTool(mgr)
	mcpServer, err := mcptest.NewServer(t, server.ServerTool{Tool: tool, Handler: handler})
	require.NoError(t, err)

	resultCh := make(chan *mcp.CallToolResult, 1)
	go func() {
		res, callErr := mcpServer.Client().CallTool(context.Background(), mcp.CallToolRequest{
			Request: mcp.Request{Method: "tools/call"},
			Params: mcp.CallToolParams{
				Name:      "lsp_definition",
				Arguments: map[string]any{"uri": "file:///workspace/a.ts", "line": 0, "character": 6},
			},
		})
		require.NoError(t, callErr)
		resultCh <- res
	}()

	select {
	case raw := <-ft.sent:
		var env struct {
			ID     int64  `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.Unmarshal(raw, &env))
		require.Equal(t, "textDocument/definition", env.Method)
		ft.onMessage([]byte(`{"jsonrpc":"2.0","id":` + strconv.FormatInt(env.ID, 10) + `,"result":[]}`))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for definition request")
	}

	select {
	case res := <-resultCh:
		require.False(t, res.IsError)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tool result")
	}
}

func TestHoverTool_NoClient_ReturnsError(t *testing.T) {
	cfg := config.Config{Servers: map[string]config.ServerConfig{
		"typescript": {Command: "tsserver", Extensions: []string{".ts"}, Enabled: true},
	}}
	mgr := manager.New(cfg, "/workspace")

	tool, handler := HoverTool(mgr)
	mcpServer, err := mcptest.NewServer(t, server.ServerTool{Tool: tool, Handler: handler})
	require.NoError(t, err)

	res, err := mcpServer.Client().CallTool(context.Background(), mcp.CallToolRequest{
		Request: mcp.Request{Method: "tools/call"},
		Params: mcp.CallToolParams{
			Name:      "lsp_hover",
			Arguments: map[string]any{"uri": "file:///workspace/never-opened.ts", "line": 0, "character": 0},
		},
	})
	require.NoError(t, err)
	require.True(t, res.IsError, "hover before didOpen must report an error, not start a client")
}
