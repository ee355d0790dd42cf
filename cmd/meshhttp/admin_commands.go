package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/skobkin/meshhttp/internal/app"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/transport"
)

// quietLogs keeps one-shot output parseable unless a level was asked for.
func quietLogs(cfg *config.AppConfig) {
	cfg.Logging.Level = "warn"
}

// runAdmin binds the device address and runs fn against the admin client.
func runAdmin(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, admin *transport.AdminClient) (any, error)) error {
	rt, err := opts.openRuntime(cmd, quietLogs)
	if err != nil {
		return err
	}
	defer func() {
		_ = rt.Close()
	}()

	if err := rt.Bind(); err != nil {
		return fmt.Errorf("bind device address: %w", err)
	}
	result, err := fn(cmd.Context(), rt.Admin())
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	return printJSON(cmd.OutOrStdout(), result)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	return nil
}

func newRestartCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Reboot the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdmin(cmd, opts, func(ctx context.Context, admin *transport.AdminClient) (any, error) {
				if err := admin.RestartDevice(ctx); err != nil {
					return nil, err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "restart requested")

				return nil, nil
			})
		},
	}
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print device statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdmin(cmd, opts, func(ctx context.Context, admin *transport.AdminClient) (any, error) {
				return admin.Statistics(ctx)
			})
		},
	}
}

func newNetworksCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "Scan for wifi networks visible to the device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdmin(cmd, opts, func(ctx context.Context, admin *transport.AdminClient) (any, error) {
				return admin.Networks(ctx)
			})
		},
	}
}

func newFilesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List files on the device static filesystem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdmin(cmd, opts, func(ctx context.Context, admin *transport.AdminClient) (any, error) {
				return admin.SPIFFS(ctx)
			})
		},
	}
}

func newRemoveFileCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file>",
		Short: "Delete a file from the device static filesystem",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdmin(cmd, opts, func(ctx context.Context, admin *transport.AdminClient) (any, error) {
				return admin.DeleteSPIFFS(ctx, args[0])
			})
		},
	}
}

func newBlinkCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "blink",
		Short: "Blink the device LED",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAdmin(cmd, opts, func(ctx context.Context, admin *transport.AdminClient) (any, error) {
				return nil, admin.BlinkLED(ctx)
			})
		},
	}
}

func newConfigCommand(opts *rootOptions) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective config, optionally saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.openRuntime(cmd, quietLogs)
			if err != nil {
				return err
			}
			defer func() {
				_ = rt.Close()
			}()

			if write {
				if err := rt.SaveConfig(); err != nil {
					return err
				}
			}

			return printJSON(cmd.OutOrStdout(), rt.Config)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "save the effective config to the config file")

	return cmd
}

func newVersionCommand() *cobra.Command {
	var (
		check    bool
		endpoint string
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !check {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", app.Name, app.BuildVersionWithDate())

				return nil
			}

			report, err := app.NewUpdateChecker(app.UpdateCheckerConfig{Endpoint: endpoint}).Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}

			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "query the release feed for a newer version")
	cmd.Flags().StringVar(&endpoint, "release-feed", "", "release API url (default: project release feed)")
	_ = cmd.Flags().MarkHidden("release-feed")

	return cmd
}
