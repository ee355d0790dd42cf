package transport

import "context"

// Session is the device-session capability a transport feeds. The transport
// never inspects frames; it only hands them over byte-exact.
type Session interface {
	// Configure is called once after every successful liveness probe.
	Configure(ctx context.Context)
	OnFrameReceived(ctx context.Context, frame []byte)
}

// FrameWriter sends one outbound frame to the device.
type FrameWriter interface {
	WriteFrame(ctx context.Context, frame []byte) error
}

type StatusTargetResolver interface {
	StatusTarget() string
}
