package app

import (
	"log/slog"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/transport"
)

// RetryPolicyFromConfig maps the persisted retry settings onto a transport
// retry policy. Unknown policies fall back to a fixed delay.
func RetryPolicyFromConfig(cfg config.RetryConfig) transport.RetryPolicy {
	switch cfg.Policy {
	case config.RetryPolicyExponential:
		return transport.ExponentialRetry(cfg.Delay(), cfg.MaxDelay())
	default:
		return transport.FixedRetry(cfg.Delay())
	}
}

// NewTransportForConnection builds an unbound HTTP transport for cfg.
func NewTransportForConnection(cfg config.ConnectionConfig, session transport.Session, b bus.MessageBus, logger *slog.Logger) *transport.HTTPTransport {
	return transport.NewHTTPTransport(transport.HTTPConfig{
		Session:        session,
		Bus:            b,
		Logger:         logger,
		Retry:          RetryPolicyFromConfig(cfg.Retry),
		RequestTimeout: cfg.RequestTimeout(),
		UserAgent:      UserAgent(),
	})
}

func ConnectOptionsFromConfig(cfg config.ConnectionConfig) transport.ConnectOptions {
	return transport.ConnectOptions{
		Address:      cfg.Host,
		TLS:          cfg.TLS,
		ReceiveAll:   cfg.ReceiveAll,
		PollInterval: cfg.PollInterval(),
	}
}
