package commands

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/multisum/pkg/mcp"
	"github.com/Sumatoshi-tech/multisum/pkg/observability"
	"github.com/Sumatoshi-tech/multisum/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand(root *rootOptions) *cobra.Command {
	var (
		debug       bool
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes multisum as tools that AI agents can discover and invoke:
  - checksum_text: Digests of a text value (NFC-normalized UTF-8)
  - checksum_file: Digests of a local file given by absolute path

With --metrics-addr, a diagnostics listener serves /metrics and /healthz.`,
		Args: cobra.NoArgs,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			cfg, err := root.load(cobraCmd)
			if err != nil {
				return err
			}

			if debug {
				cfg.Logging.Level = slog.LevelDebug.String()
			}

			if cobraCmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}

			if !cobraCmd.Flags().Changed("log-json") {
				cfg.Logging.JSON = true
			}

			sessCfg, err := sessionConfig(cfg)
			if err != nil {
				return err
			}

			providers, err := initObservability(cfg, observability.ModeMCP, cfg.Metrics.Addr != "", cobraCmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer shutdownObservability(cobraCmd, providers)

			red, err := observability.NewREDMetrics(providers.Meter)
			if err != nil {
				return err
			}

			pipeline, err := observability.NewPipelineMetrics(providers.Meter)
			if err != nil {
				return err
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Version:  version.Version,
				Session:  sessCfg,
				Logger:   providers.Logger,
				Metrics:  red,
				Pipeline: pipeline,
				Tracer:   providers.Tracer,
			})

			return serveMCP(cobraCmd.Context(), srv, cfg.Metrics.Addr, providers)
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics and /healthz on this address")

	return cmd
}

// serveMCP runs srv on stdio and, when addr is set, the diagnostics listener
// next to it. Either one stopping stops the other.
func serveMCP(ctx context.Context, srv *mcp.Server, addr string, providers observability.Providers) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	if addr != "" {
		diag, err := observability.NewDiagnosticsServer(groupCtx, addr, providers.MetricsHandler, providers.Logger)
		if err != nil {
			return err
		}

		group.Go(func() error { return diag.Serve(groupCtx) })
	}

	group.Go(func() error {
		defer cancel()

		return srv.Run(groupCtx)
	})

	return group.Wait()
}
