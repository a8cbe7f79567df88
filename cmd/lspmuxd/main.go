// lspmuxd: MCP stdio daemon exposing a multi-language LSP client runtime
// (spec.md §6 "MCP host platform"). Flag/signal-handling shape grounded
// on the teacher's cmd/lsp-proxy and cmd/lsp-session-manager daemons;
// the MCP server wiring itself follows mark3labs/mcp-go's standard
// stdio-transport usage, the same package the teacher's mcpserver/tools
// files build tool definitions against.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"

	"lspmux/config"
	"lspmux/logger"
	"lspmux/manager"
	"lspmux/mcpserver"
)

var (
	workspaceDir = flag.String("workspace", "", "Workspace root presented to language servers as rootUri (required)")
	configPath   = flag.String("config", "", "Path to a JSON server-config file layered over the built-in defaults")
	verbose      = flag.Bool("verbose", false, "Enable debug-level logging")
	watchConfig  = flag.Bool("watch-config", false, "Hot-reload --config on change")
)

func main() {
	flag.Parse()

	if *verbose {
		logger.SetLevel("debug")
	}

	if *workspaceDir == "" {
		fmt.Fprintln(os.Stderr, "lspmuxd: --workspace is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("lspmuxd: loading config", err)
		os.Exit(1)
	}

	mgr := manager.New(cfg, *workspaceDir)
	defer mgr.Dispose()

	if *watchConfig && *configPath != "" {
		if err := mgr.WatchConfig(*configPath); err != nil {
			logger.Warn("lspmuxd: config watch disabled", err)
		}
	}

	mcpServer := server.NewMCPServer("lspmuxd", "1.0.0",
		server.WithToolCapabilities(true),
	)
	mcpserver.RegisterAllTools(mcpServer, mgr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("lspmuxd: shutting down")
		mgr.Dispose()
		os.Exit(0)
	}()

	logger.Info(fmt.Sprintf("lspmuxd: serving MCP over stdio, workspace=%s", *workspaceDir))
	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("lspmuxd: stdio server exited", err)
		os.Exit(1)
	}
}
