package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skobkin/meshhttp/internal/app"
	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/connectors"
	"github.com/skobkin/meshhttp/internal/platform"
	"github.com/skobkin/meshhttp/internal/radio"
)

const maxHexPreviewLen = 64

func newListenCommand(opts *rootOptions) *cobra.Command {
	var (
		receiveAll   bool
		pollInterval time.Duration
		listenFor    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Connect to the device and log status and frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pollInterval < 0 {
				return fmt.Errorf("poll interval must be positive: %s", pollInterval)
			}
			if pollInterval > 0 && pollInterval < time.Millisecond {
				return fmt.Errorf("poll interval must be at least 1ms: %s", pollInterval)
			}
			if listenFor < 0 {
				return fmt.Errorf("listen duration must not be negative: %s", listenFor)
			}

			flags := cmd.Flags()
			rt, err := opts.openRuntime(cmd, func(cfg *config.AppConfig) {
				if flags.Changed("all") {
					cfg.Connection.ReceiveAll = receiveAll
				}
				if pollInterval > 0 {
					cfg.Connection.PollIntervalMS = int(pollInterval.Milliseconds())
				}
			})
			if err != nil {
				return err
			}
			defer func() {
				_ = rt.Close()
			}()

			logger := rt.LogManager.Logger("cli")
			lock, err := platform.AcquireListenerLock(app.Name, app.ConnectionTarget(rt.Config.Connection))
			switch {
			case errors.Is(err, platform.ErrListenerLockUnsupported):
				logger.Warn("listener lock unavailable", "error", err)
			case err != nil:
				return err
			default:
				defer func() {
					// stop polling before another listener may take over
					_ = rt.Close()
					if relErr := lock.Release(); relErr != nil {
						logger.Warn("release listener lock", "error", relErr)
					}
				}()
			}

			watch(rt.Ctx, rt.Bus, logger)

			if err := rt.Connect(); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			logger.Info("listening", "target", app.StatusTarget(rt.Transport, rt.Config.Connection), "receive_all", rt.Config.Connection.ReceiveAll, "poll_interval", rt.Config.Connection.PollInterval())

			if listenFor > 0 {
				select {
				case <-rt.Ctx.Done():
				case <-time.After(listenFor):
				}

				return nil
			}
			<-rt.Ctx.Done()

			return nil
		},
	}

	cmd.Flags().BoolVar(&receiveAll, "all", false, "ask the device for every packet, not only those addressed to it")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "delay between poll cycles (default from config)")
	cmd.Flags().DurationVar(&listenFor, "listen-for", 0, "stop after this long, e.g. 30s (default: until interrupted)")

	return cmd
}

// watch logs status and frame events until ctx is done.
func watch(ctx context.Context, b bus.MessageBus, logger *slog.Logger) {
	bus.Listen(ctx, b, connectors.TopicConnStatus, func(status connectors.ConnectionStatus) {
		logger.Info("conn", "state", status.State.String(), "target", status.Target, "error", status.Err)
	})
	bus.Listen(ctx, b, connectors.TopicRadioFrom, func(frame radio.DecodedFrame) {
		logger.Info("frame", "kind", frame.Kind, "id", frame.ID, "len", len(frame.Raw), "config_ready", frame.WantConfigReady)
	})
	bus.Listen(ctx, b, connectors.TopicRawFrameIn, func(frame connectors.RawFrame) {
		logger.Debug("raw-in", "len", frame.Len, "hex", previewHex(frame.Hex))
	})
	bus.Listen(ctx, b, connectors.TopicRawFrameOut, func(frame connectors.RawFrame) {
		logger.Debug("raw-out", "len", frame.Len, "hex", previewHex(frame.Hex))
	})
}

func previewHex(hex string) string {
	hex = strings.TrimSpace(hex)
	if len(hex) <= maxHexPreviewLen {
		return hex
	}

	return hex[:maxHexPreviewLen] + "..."
}
