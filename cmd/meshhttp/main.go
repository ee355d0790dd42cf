package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skobkin/meshhttp/internal/app"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	host       string
	tls        bool
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          app.Name,
		Short:        "Talk to a mesh radio over its HTTP API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.logLevel != "" {
				if _, err := logging.ParseLevel(opts.logLevel); err != nil {
					return err
				}
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.host, "host", "", "device host or ip, optionally with :port")
	cmd.PersistentFlags().BoolVar(&opts.tls, "tls", false, "use https")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")

	cmd.AddCommand(
		newListenCommand(opts),
		newRestartCommand(opts),
		newStatsCommand(opts),
		newNetworksCommand(opts),
		newFilesCommand(opts),
		newRemoveFileCommand(opts),
		newBlinkCommand(opts),
		newConfigCommand(opts),
		newVersionCommand(),
	)

	return cmd
}

// openRuntime loads the config, applies flag overrides and any command
// specific tweak, and assembles the runtime.
func (o *rootOptions) openRuntime(cmd *cobra.Command, tweak func(cfg *config.AppConfig)) (*app.Runtime, error) {
	flags := cmd.Flags()
	rt, err := app.Initialize(cmd.Context(), app.Options{
		ConfigFile: o.configFile,
		Override: func(cfg *config.AppConfig) {
			if host := strings.TrimSpace(o.host); host != "" {
				cfg.Connection.Host = host
			}
			if flags.Changed("tls") {
				cfg.Connection.TLS = o.tls
			}
			if tweak != nil {
				tweak(cfg)
			}
			if o.logLevel != "" {
				cfg.Logging.Level = o.logLevel
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("start %s: %w", app.Name, err)
	}

	return rt, nil
}
