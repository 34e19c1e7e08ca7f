// Package commands implements CLI command handlers for multisum.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/multisum/pkg/config"
	"github.com/Sumatoshi-tech/multisum/pkg/observability"
	"github.com/Sumatoshi-tech/multisum/pkg/version"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logJSON    bool
}

// NewRootCommand creates the multisum command tree.
func NewRootCommand() *cobra.Command {
	ro := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "multisum",
		Short: "multisum - streaming MD5, SHA-1 and SHA-256 digests",
		Long: `multisum computes several digests of the same input in one streaming pass.

Commands:
  sum       Hash files or a text value
  mcp       Serve checksum tools over the Model Context Protocol
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&ro.configPath, "config", "", "Config file (default: .multisum.yaml in CWD or $HOME)")
	rootCmd.PersistentFlags().StringVar(&ro.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&ro.logJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(NewSumCommand(ro))
	rootCmd.AddCommand(NewMCPCommand(ro))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())

			return err
		},
	}
}

// load reads the config file and applies the persistent flags that were set.
func (ro *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(ro.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("log-level") {
		cfg.Logging.Level = ro.logLevel
	}

	if flags.Changed("log-json") {
		cfg.Logging.JSON = ro.logJSON
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate flags: %w", err)
	}

	return cfg, nil
}

// initObservability builds the providers for mode from cfg. Logs go to logOut.
func initObservability(
	cfg *config.Config, mode observability.AppMode, prometheus bool, logOut io.Writer,
) (observability.Providers, error) {
	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.Prometheus = prometheus
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON

	providers, err := observability.InitWithWriter(obsCfg, logOut)
	if err != nil {
		return observability.Providers{}, fmt.Errorf("init observability: %w", err)
	}

	return providers, nil
}

func shutdownObservability(cmd *cobra.Command, providers observability.Providers) {
	if err := providers.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
