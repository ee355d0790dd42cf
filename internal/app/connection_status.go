package app

import (
	"net/url"
	"strings"

	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/connectors"
	"github.com/skobkin/meshhttp/internal/transport"
)

const transportName = "http"

// ConnectionTarget renders the base URL the config would bind to.
func ConnectionTarget(cfg config.ConnectionConfig) string {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return ""
	}
	scheme := "http"
	if cfg.TLS {
		scheme = "https"
	}

	return (&url.URL{Scheme: scheme, Host: host}).String()
}

// ConnectionStatusFromConfig is the status shown before the transport has
// reported anything.
func ConnectionStatusFromConfig(cfg config.ConnectionConfig) connectors.ConnectionStatus {
	return connectors.ConnectionStatus{
		State:         connectors.StatusDisconnected,
		TransportName: transportName,
		Target:        ConnectionTarget(cfg),
	}
}

// StatusTarget prefers the bound target of a live transport over the config.
func StatusTarget(tr transport.StatusTargetResolver, cfg config.ConnectionConfig) string {
	if tr != nil {
		if target := strings.TrimSpace(tr.StatusTarget()); target != "" {
			return target
		}
	}

	return ConnectionTarget(cfg)
}
