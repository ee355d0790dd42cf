package transport

import (
	"context"
	"net/http"

	"github.com/skobkin/meshhttp/internal/connectors"
)

// WriteFrame sends one frame byte-exact. On success it emits Connected and
// starts one extra poll cycle to pick up the reply early. On failure it emits
// Reconnecting; the returned error is informational and callers treating the
// write as best-effort may drop it.
func (t *HTTPTransport) WriteFrame(ctx context.Context, frame []byte) error {
	logger := transportLogger(t.logger, httpTransportName)
	runCtx := t.runContext()
	header := http.Header{"Content-Type": []string{contentTypeProtobuf}}

	if _, err := t.do(ctx, http.MethodPut, pathToRadio, nil, frame, header); err != nil {
		logger.Warn("write frame failed", "len", len(frame), "error", err)
		t.status.emit(runCtx, connectors.StatusReconnecting, err, false)

		return err
	}
	logger.Debug("write frame", "len", len(frame))
	t.status.emit(runCtx, connectors.StatusConnected, nil, false)
	t.publishRaw(connectors.TopicRawFrameOut, frame)
	t.triggerCycle()

	return nil
}
