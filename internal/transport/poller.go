package transport

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/skobkin/meshhttp/internal/connectors"
)

// CycleResult summarizes one poll cycle.
type CycleResult struct {
	Frames int
	Bytes  int
}

// ReadCycle drains inbound frames until the device answers with an empty
// body. Every non-empty body is one frame and goes to Session.OnFrameReceived.
// A failed request ends the cycle with a *TransportError; the next tick retries.
func (t *HTTPTransport) ReadCycle(ctx context.Context) (CycleResult, error) {
	t.cycleMu.Lock()
	defer t.cycleMu.Unlock()

	logger := transportLogger(t.logger, httpTransportName)
	query := url.Values{"all": []string{strconv.FormatBool(t.conn.ReceiveAll())}}
	header := http.Header{"Accept": []string{contentTypeProtobuf}}

	var res CycleResult
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		frame, err := t.do(ctx, http.MethodGet, pathFromRadio, query, nil, header)
		if err != nil {
			logger.Warn("read frame failed", "frames_in_cycle", res.Frames, "error", err)
			t.status.emit(ctx, connectors.StatusReconnecting, err, true)

			return res, err
		}
		if len(frame) == 0 {
			if res.Frames > 0 {
				logger.Debug("poll cycle drained", "frames", res.Frames, "bytes", res.Bytes)
			}

			return res, nil
		}

		t.status.emit(ctx, connectors.StatusConnected, nil, true)
		logger.Debug("read frame", "len", len(frame))
		t.publishRaw(connectors.TopicRawFrameIn, frame)
		if t.session != nil {
			t.session.OnFrameReceived(ctx, frame)
		}
		res.Frames++
		res.Bytes += len(frame)
	}
}

func (t *HTTPTransport) runPoller(ctx context.Context, interval time.Duration) {
	logger := transportLogger(t.logger, httpTransportName, "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug("poller started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("poller stopped")

			return
		case <-ticker.C:
			if _, err := t.ReadCycle(ctx); err != nil && ctx.Err() == nil {
				logger.Debug("poll cycle ended with error", "error", err)
			}
		}
	}
}

// triggerCycle runs one extra poll cycle in the background. Nothing is started
// once the run is stopped, so Wait never races a late Add.
func (t *HTTPTransport) triggerCycle() {
	t.runMu.Lock()
	ctx := t.runCtx
	if ctx.Err() != nil {
		t.runMu.Unlock()

		return
	}
	t.cycles.Add(1)
	t.runMu.Unlock()

	go func() {
		defer t.cycles.Done()
		if _, err := t.ReadCycle(ctx); err != nil && ctx.Err() == nil {
			transportLogger(t.logger, httpTransportName).Debug("triggered poll cycle failed", "error", err)
		}
	}()
}
