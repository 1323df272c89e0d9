// File: cmd/mcp/main.go
// Standalone MCP server speaking stdio, for agents that launch their tools as
// subprocesses. It is "webpilot mcp" under another name.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/webpilot/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := append([]string{"mcp"}, os.Args[1:]...)
	if err := cmd.ExecuteArgs(ctx, args); err != nil {
		stop()
		os.Exit(1)
	}
}
