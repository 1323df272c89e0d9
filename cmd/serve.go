// File: cmd/serve.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/webpilot/internal/bridge"
	"github.com/xkilldash9x/webpilot/internal/browser"
	"github.com/xkilldash9x/webpilot/internal/config"
	"github.com/xkilldash9x/webpilot/internal/engine"
	"github.com/xkilldash9x/webpilot/internal/mcp"
	"github.com/xkilldash9x/webpilot/internal/observability"
	"github.com/xkilldash9x/webpilot/internal/socket"
)

const serveShutdownTimeout = 15 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Attach to the webview and serve host commands",
		Long: `Attaches to a running webview through its remote debugging endpoint (or
launches a local Chromium when no endpoint is configured) and serves host
commands on the local socket and, when enabled, over HTTP.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg, observability.GetLogger())
		},
	}

	cmd.Flags().String("remote-url", "", "remote debugging URL of the webview (http://127.0.0.1:9222)")
	cmd.Flags().Bool("headless", true, "run a launched browser headless")
	cmd.Flags().String("socket", "", "path of the command socket")
	cmd.Flags().Bool("http", false, "serve MCP, websocket and JSON commands over HTTP")
	cmd.Flags().String("addr", "", "HTTP listen address")

	a.bindFlag(cmd, "browser.remote_url", "remote-url")
	a.bindFlag(cmd, "browser.headless", "headless")
	a.bindFlag(cmd, "socket.path", "socket")
	a.bindFlag(cmd, "server.enabled", "http")
	a.bindFlag(cmd, "server.addr", "addr")
	return cmd
}

// services is everything serve starts, in the order it is torn down.
type services struct {
	manager *browser.Manager
	bus     *bridge.Bus
	host    *bridge.Host
}

func newServices(cfg config.Interface, logger *zap.Logger) *services {
	manager := browser.NewManager(cfg.Browser(), logger)
	eng := engine.New(logger, cfg.Engine(), nil)
	bus := bridge.NewBus(logger, cfg.Bridge().BufferSize)
	host := bridge.NewHost(logger, bus, manager, eng, cfg.Bridge())
	return &services{manager: manager, bus: bus, host: host}
}

func (s *services) shutdown(logger *zap.Logger) {
	s.host.Close()
	s.bus.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	if err := s.manager.Shutdown(ctx); err != nil {
		logger.Warn("Browser manager shutdown error", zap.Error(err))
	}
}

func runServe(ctx context.Context, cfg config.Interface, logger *zap.Logger) error {
	if !cfg.Socket().Enabled && !cfg.Server().Enabled {
		return fmt.Errorf("nothing to serve: enable socket or server")
	}

	svc := newServices(cfg, logger)
	defer svc.shutdown(logger)

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Socket().Enabled {
		srv, err := socket.NewServer(cfg.Socket(), svc.host, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Serve(gctx) })
	}

	if cfg.Server().Enabled {
		srv := mcp.NewServer(cfg.Server(), svc.host, logger, Version)
		g.Go(func() error { return srv.Serve(gctx) })
	}

	logger.Info("webpilot serving.", zap.String("version", Version))
	err := g.Wait()
	logger.Info("webpilot stopped.")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
