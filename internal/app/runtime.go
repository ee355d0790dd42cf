package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/connectors"
	"github.com/skobkin/meshhttp/internal/logging"
	"github.com/skobkin/meshhttp/internal/radio"
	"github.com/skobkin/meshhttp/internal/statusmqtt"
	"github.com/skobkin/meshhttp/internal/transport"
)

const mqttDisconnectQuiesceMS = 250

// Options adjust how the runtime is assembled.
type Options struct {
	// ConfigFile overrides the resolved config location.
	ConfigFile string
	// Override is applied to the loaded config before validation.
	Override func(cfg *config.AppConfig)
}

// Runtime owns one device connection and everything observing it.
type Runtime struct {
	mu sync.RWMutex

	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus
	Transport  *transport.HTTPTransport
	Radio      *radio.Service

	closeOnce sync.Once
	closeErr  error

	mqttClient  mqtt.Client
	mirrorDone  <-chan struct{}
	captureDone <-chan struct{}

	connStatusMu    sync.RWMutex
	connStatus      connectors.ConnectionStatus
	connStatusKnown bool
}

func Initialize(parent context.Context, opts Options) (*Runtime, error) {
	paths, err := resolveRuntimePaths(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.Override != nil {
		opts.Override(&cfg)
		cfg.FillMissingDefaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging, paths.LogFile); err != nil {
		_ = logMgr.Close()

		return nil, fmt.Errorf("configure logging: %w", err)
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:        ctx,
		cancel:     cancel,
		Paths:      paths,
		Config:     cfg,
		LogManager: logMgr,
	}
	slog.Debug("starting meshhttp runtime", "version", BuildVersion(), "build_date", BuildDateYMD(), "config", paths.ConfigFile)

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	rt.captureDone = bus.Listen(ctx, b, connectors.TopicConnStatus, rt.setConnStatus)

	codec, err := radio.NewWireCodec()
	if err != nil {
		_ = rt.Close()

		return nil, fmt.Errorf("initialize radio codec: %w", err)
	}
	rt.Radio = radio.NewService(logMgr.Logger("radio"), b, codec)
	// transportLogger adds its own component attributes
	rt.Transport = NewTransportForConnection(cfg.Connection, rt.Radio, b, slog.Default())
	rt.Radio.Attach(rt.Transport)

	if cfg.MQTT.Enabled {
		rt.startStatusMirror(cfg.MQTT)
	}

	return rt, nil
}

func resolveRuntimePaths(configFile string) (Paths, error) {
	if configFile != "" {
		return Paths{}.WithConfigFile(configFile), nil
	}

	return ResolvePaths()
}

// startStatusMirror is best effort: a broker that is down must not keep the
// device connection from starting.
func (r *Runtime) startStatusMirror(cfg config.MQTTConfig) {
	logger := r.LogManager.Logger("statusmqtt")
	client, err := statusmqtt.Connect(cfg, logger)
	if err != nil {
		logger.Warn("status mirror disabled", "error", err)

		return
	}
	r.mqttClient = client
	mirror := statusmqtt.NewMirror(client, cfg.TopicPrefix, logger)
	r.mirrorDone = mirror.Run(r.Ctx, r.Bus)
	logger.Info("status mirror started", "topic", mirror.Topic())
}

// Connect starts the transport supervisor with the runtime config.
func (r *Runtime) Connect() error {
	r.mu.RLock()
	opts := ConnectOptionsFromConfig(r.Config.Connection)
	r.mu.RUnlock()

	return r.Transport.Connect(r.Ctx, opts)
}

// Bind fixes the device address without starting the supervisor, for
// one-shot admin calls.
func (r *Runtime) Bind() error {
	r.mu.RLock()
	cfg := r.Config.Connection
	r.mu.RUnlock()

	return r.Transport.Bind(cfg.Host, cfg.TLS)
}

func (r *Runtime) Admin() *transport.AdminClient {
	return r.Transport.Admin()
}

// SaveConfig persists the effective config, including command-line overrides.
func (r *Runtime) SaveConfig() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return config.Save(r.Paths.ConfigFile, r.Config)
}

func (r *Runtime) setConnStatus(status connectors.ConnectionStatus) {
	r.connStatusMu.Lock()
	r.connStatus = status
	r.connStatusKnown = true
	r.connStatusMu.Unlock()
}

func (r *Runtime) CurrentConnStatus() (connectors.ConnectionStatus, bool) {
	r.connStatusMu.RLock()
	status := r.connStatus
	known := r.connStatusKnown
	r.connStatusMu.RUnlock()

	if !known {
		r.mu.RLock()
		status = ConnectionStatusFromConfig(r.Config.Connection)
		r.mu.RUnlock()
	}

	return status, known
}

// Close disconnects the device and lets observers drain the final status
// events before tearing the bus down. Only the first call does any work.
func (r *Runtime) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.close()
	})

	return r.closeErr
}

func (r *Runtime) close() error {
	var errs []error

	if r.Transport != nil {
		r.Transport.Disconnect()
		r.Transport.Wait()
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.mirrorDone != nil {
		<-r.mirrorDone
	}
	if r.captureDone != nil {
		<-r.captureDone
	}
	if r.cancel != nil {
		r.cancel()
	}
	if r.mqttClient != nil {
		r.mqttClient.Disconnect(mqttDisconnectQuiesceMS)
	}
	if r.LogManager != nil {
		if err := r.LogManager.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log: %w", err))
		}
	}

	return errors.Join(errs...)
}
