// File: cmd/mcp_stdio.go
package cmd

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/internal/mcp"
	"github.com/xkilldash9x/webpilot/internal/observability"
)

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the host commands as MCP tools over stdio",
		Long: `Runs an MCP server on stdin/stdout for agents that spawn their tools as
subprocesses. Logs go to stderr and the log file only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPStdio(cmd.Context(), a, observability.GetLogger())
		},
	}
	cmd.Flags().String("remote-url", "", "remote debugging URL of the webview (http://127.0.0.1:9222)")
	a.bindFlag(cmd, "browser.remote_url", "remote-url")
	return cmd
}

func runMCPStdio(ctx context.Context, a *app, logger *zap.Logger) error {
	svc := newServices(a.cfg, logger)
	defer svc.shutdown(logger)

	srv := mcp.NewMCPServer(svc.host, Version)
	logger.Info("MCP stdio server starting.", zap.String("version", Version))
	if err := srv.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio server: %w", err)
	}
	return nil
}
