package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"missioncontrol/internal/healthrun"
	"missioncontrol/internal/httpapi"
	"missioncontrol/internal/mcp"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (integration tests, events, metrics, MCP)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr != "" {
				a.cfg.Server.Addr = addr
			}

			if schedule := strings.TrimSpace(a.cfg.Health.Schedule); schedule != "" {
				runner := healthrun.New(a.service,
					healthrun.WithConcurrency(a.cfg.Health.Concurrency),
					healthrun.WithMetrics(a.metrics),
					healthrun.WithLogger(a.logger),
				)
				if err := runner.Start(ctx, schedule); err != nil {
					return err
				}
				defer runner.Stop()
			}

			srv := httpapi.NewServer(httpapi.Options{
				Addr:    a.cfg.Server.Addr,
				Service: a.service,
				Events:  a.hub,
				MCP:     mcp.NewServer(mcp.ServerOptions{Service: a.service, Version: Version, Logger: a.logger}),
				Metrics: a.metrics,
				Pinger:  a.store,
				Logger:  a.logger,
			})
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen addr (default server.addr, :$PORT or :8080)")
	return cmd
}
