package main

import (
	"context"
	"flag"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "specbook/internal/adapters/mcp"
	"specbook/internal/bootstrap"
	"specbook/internal/config"
)

func main() {
	workspaceFlag := flag.String("workspace", config.Workspace(), "path to the workspace")
	providerFlag := flag.String("provider", "", "AI provider (claude-cli or anthropic), overrides config")
	flag.Parse()

	ws, err := bootstrap.Open(*workspaceFlag, bootstrap.WithProvider(*providerFlag))
	if err != nil {
		log.Fatalf("specbook-mcp: %v", err)
	}
	defer ws.Close()

	mcpServer := server.NewMCPServer(
		"specbook-mcp",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	mcpServer.AddTool(
		mcp.NewTool("ping",
			mcp.WithDescription("Health check, returns pong"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("pong"), nil
		},
	)

	mcpadapter.RegisterReadTools(mcpServer, ws.Scanner, ws.Tree, ws.History)
	mcpadapter.RegisterWriteTools(mcpServer, ws.Scanner)

	if err := server.ServeStdio(mcpServer); err != nil {
		ws.Close()
		log.Fatalf("specbook-mcp: %v", err)
	}
}
