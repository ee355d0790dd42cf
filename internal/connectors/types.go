package connectors

import (
	"strings"
	"time"
)

// DeviceStatus is the connectivity state shared by every transport binding.
// Values are ordered; the order is only meaningful for "at least connected" checks.
type DeviceStatus int

const (
	StatusDisconnected DeviceStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusRestarting
)

func (s DeviceStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusRestarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// ParseDeviceStatus is the inverse of DeviceStatus.String.
func ParseDeviceStatus(raw string) (DeviceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "disconnected":
		return StatusDisconnected, true
	case "connecting":
		return StatusConnecting, true
	case "connected":
		return StatusConnected, true
	case "reconnecting":
		return StatusReconnecting, true
	case "restarting":
		return StatusRestarting, true
	default:
		return StatusDisconnected, false
	}
}

func (s DeviceStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ConnectionStatus is a bus event snapshot of current transport status.
type ConnectionStatus struct {
	State         DeviceStatus `json:"state"`
	Err           string       `json:"error,omitempty"`
	TransportName string       `json:"transport"`
	Target        string       `json:"target,omitempty"`
	Timestamp     time.Time    `json:"timestamp"`
}

// RawFrame carries frame diagnostics for debug/log views.
type RawFrame struct {
	Hex string
	Len int
}
