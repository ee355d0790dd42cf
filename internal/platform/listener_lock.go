package platform

import (
	"errors"
	"strings"
)

// ErrListenerActive means another process on this host already polls the
// same device. The device inbound queue is drained by reads, so two pollers
// would each see only part of the traffic.
var ErrListenerActive = errors.New("another listener is already polling this device")

// ErrListenerLockUnsupported indicates the current platform has no lock backend implementation.
var ErrListenerLockUnsupported = errors.New("listener lock unsupported")

// ListenerLock is a held per-device listener lock.
type ListenerLock interface {
	Release() error
}

// AcquireListenerLock takes the host-wide lock for target, scoped by appID.
func AcquireListenerLock(appID, target string) (ListenerLock, error) {
	return acquireListenerLock(
		normalizeLockComponent(appID, "app"),
		normalizeLockComponent(target, "device"),
	)
}

func normalizeLockComponent(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	normalized := strings.Trim(b.String(), "_-.")
	if normalized == "" {
		return fallback
	}

	return normalized
}
