package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/internal/server"
	"github.com/matzehuels/postroc/pkg/observability"
)

func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	var refresh bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution API over HTTP",
		Long: `Serve exposes resolve, graph and transform endpoints under /v1, a health
check at /healthz and Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = c.cfg.Server.Addr
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			hooks := observability.NewPrometheusHooks(reg)
			observability.SetResolveHooks(hooks)
			observability.SetCacheHooks(hooks)
			observability.SetHTTPHooks(hooks)
			defer observability.Reset()

			ropts, release := c.resolverOptions(ctx, &engineFlags{refresh: refresh})
			defer release()

			srv := server.New(
				server.WithResolverOptions(ropts...),
				server.WithLogger(loggerFromContext(ctx)),
				server.WithMetrics(reg),
			)
			printInfo("Serving on %s", addr)
			printKeyValue(statusOut, "  cache", c.cacheLocation())
			printKeyValue(statusOut, "  metrics", "/metrics")
			return srv.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default [server] addr)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cached API responses")
	return cmd
}
