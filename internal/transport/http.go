package transport

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/connectors"
)

const (
	httpTransportName = "http"

	pathProbe     = "/hotspot-detect.html"
	pathFromRadio = "/api/v1/fromradio"
	pathToRadio   = "/api/v1/toradio"

	contentTypeProtobuf = "application/x-protobuf"

	defaultRequestTimeout = 10 * time.Second
	maxResponseBytes      = 1 << 20
)

// HTTPConfig wires the collaborators of an HTTPTransport.
type HTTPConfig struct {
	Client         *http.Client
	Session        Session
	Bus            bus.MessageBus
	Logger         *slog.Logger
	Retry          RetryPolicy
	RequestTimeout time.Duration
	UserAgent      string
}

// ConnectOptions are the arguments of one connect sequence. Retries reuse them unchanged.
type ConnectOptions struct {
	// Address is a bare host or ip, without scheme.
	Address      string
	TLS          bool
	ReceiveAll   bool
	PollInterval time.Duration
}

// HTTPTransport talks to a device that exposes the protocol over plain HTTP(S).
// It supervises the connection, polls inbound frames on a timer and writes
// outbound frames on demand.
type HTTPTransport struct {
	client         *http.Client
	session        Session
	bus            bus.MessageBus
	logger         *slog.Logger
	retry          RetryPolicy
	requestTimeout time.Duration
	userAgent      string

	conn   *ConnectionContext
	status *statusTracker

	runMu     sync.Mutex
	runCtx    context.Context
	runCancel context.CancelFunc
	runDone   chan struct{}

	// cycleMu serializes poll cycles: timer ticks and write-triggered cycles
	// never interleave their HTTP exchanges.
	cycleMu sync.Mutex
	cycles  sync.WaitGroup
}

func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	retry := cfg.Retry
	if retry == nil {
		retry = FixedRetry(DefaultRetryDelay)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t := &HTTPTransport{
		client:         client,
		session:        cfg.Session,
		bus:            cfg.Bus,
		logger:         logger,
		retry:          retry,
		requestTimeout: timeout,
		userAgent:      cfg.UserAgent,
		conn:           NewConnectionContext(),
		runCtx:         context.Background(),
	}
	t.status = newStatusTracker(cfg.Bus, httpTransportName, t.conn.BaseURL, transportLogger(logger, httpTransportName))

	return t
}

func (t *HTTPTransport) Name() string {
	return httpTransportName
}

func (t *HTTPTransport) StatusTarget() string {
	return t.conn.BaseURL()
}

// Context returns the connection context shared with the admin client.
func (t *HTTPTransport) Context() *ConnectionContext {
	return t.conn
}

func (t *HTTPTransport) Status() connectors.DeviceStatus {
	return t.status.Current()
}

// SetSession attaches the device session. It must be called before Connect.
func (t *HTTPTransport) SetSession(s Session) {
	t.session = s
}

// Bind binds the base address without starting the supervisor. An address
// that is already bound is kept.
func (t *HTTPTransport) Bind(address string, useTLS bool) error {
	bound, err := t.conn.Bind(address, useTLS)
	if err != nil {
		return err
	}
	if bound {
		transportLogger(t.logger, httpTransportName).Debug("base url bound", "base_url", t.conn.BaseURL(), "bind_id", t.conn.ID())
	}

	return nil
}

// Connect binds the connection context and starts a supervisor that probes
// the device, retries on failure and polls frames on success. ctx bounds the
// supervisor lifetime. A second Connect restarts the probe/poll sequence; a
// base URL that is already bound is kept even if opts.Address differs.
func (t *HTTPTransport) Connect(ctx context.Context, opts ConnectOptions) error {
	if opts.PollInterval < 0 {
		return fmt.Errorf("poll interval must be positive: %s", opts.PollInterval)
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if err := t.Bind(opts.Address, opts.TLS); err != nil {
		return fmt.Errorf("bind device address: %w", err)
	}
	t.conn.SetPolling(opts.ReceiveAll, opts.PollInterval)

	t.runMu.Lock()
	if t.runCancel != nil {
		t.runCancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.runCtx = runCtx
	t.runCancel = cancel
	t.runDone = done
	t.runMu.Unlock()

	t.status.resume(connectors.StatusConnecting)
	go func() {
		defer close(done)
		t.supervise(runCtx, opts)
	}()

	return nil
}

// Disconnect stops future retries and poll ticks, emits Disconnected and
// releases the base URL. Requests already sent are left to finish.
func (t *HTTPTransport) Disconnect() {
	t.runMu.Lock()
	if t.runCancel != nil {
		t.runCancel()
		t.runCancel = nil
	}
	t.runCtx = stoppedContext()
	t.runMu.Unlock()

	t.status.halt()
	t.conn.Release()
	transportLogger(t.logger, httpTransportName).Info("disconnected")
}

// Wait blocks until the current supervisor and any write-triggered poll
// cycles have returned.
func (t *HTTPTransport) Wait() {
	t.runMu.Lock()
	done := t.runDone
	t.runMu.Unlock()
	if done != nil {
		<-done
	}
	t.cycles.Wait()
}

// Ping probes the device. On success it emits Connected and hands over to
// Session.Configure; on any failure it emits Reconnecting and returns false.
// Status changes are dropped once ctx is done.
func (t *HTTPTransport) Ping(ctx context.Context) bool {
	logger := transportLogger(t.logger, httpTransportName, "target", t.conn.BaseURL())

	if _, err := t.do(ctx, http.MethodGet, pathProbe, nil, nil, nil); err != nil {
		logger.Warn("probe failed", "error", err)
		t.status.emit(ctx, connectors.StatusReconnecting, err, false)

		return false
	}
	logger.Debug("probe succeeded")
	t.status.emit(ctx, connectors.StatusConnected, nil, false)
	if t.session != nil && ctx.Err() == nil {
		t.session.Configure(ctx)
	}

	return true
}

func (t *HTTPTransport) supervise(ctx context.Context, opts ConnectOptions) {
	logger := transportLogger(t.logger, httpTransportName, "target", t.conn.BaseURL(), "bind_id", t.conn.ID())
	schedule := t.retry()

	for attempt := 1; ; attempt++ {
		if ctx.Err() != nil {
			return
		}
		if attempt > 1 {
			t.status.emit(ctx, connectors.StatusConnecting, nil, false)
		}
		logger.Info("connecting", "attempt", attempt)
		if t.Ping(ctx) {
			logger.Info("connected", "poll_interval", opts.PollInterval, "receive_all", opts.ReceiveAll)
			t.runPoller(ctx, opts.PollInterval)

			return
		}

		delay := nextDelay(schedule)
		logger.Info("device unreachable, retry scheduled", "attempt", attempt, "delay", delay)
		if !sleepWithContext(ctx, delay) {
			return
		}
	}
}

// runContext is the lifetime of the current supervisor run, used to stop
// write-triggered cycles after Disconnect.
func (t *HTTPTransport) runContext() context.Context {
	t.runMu.Lock()
	defer t.runMu.Unlock()

	return t.runCtx
}

func stoppedContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	return ctx
}

// do performs one request against the bound base URL and returns the full
// response body. The request is detached from ctx cancellation and bounded by
// the request timeout instead.
func (t *HTTPTransport) do(ctx context.Context, method, path string, query url.Values, body []byte, header http.Header) ([]byte, error) {
	target, err := t.conn.endpoint(path, query)
	if err != nil {
		return nil, &TransportError{Op: method, URL: path, Err: err}
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		return nil, &TransportError{Op: method, URL: target, Err: fmt.Errorf("create request: %w", err)}
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, URL: target, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

		return nil, &TransportError{Op: method, URL: target, StatusCode: resp.StatusCode, Err: ErrUnexpectedStatus}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &TransportError{Op: method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(raw) > maxResponseBytes {
		return nil, &TransportError{Op: method, URL: target, StatusCode: resp.StatusCode, Err: ErrResponseTooLarge}
	}

	return raw, nil
}

func (t *HTTPTransport) publishRaw(topic string, frame []byte) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(topic, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(frame)), Len: len(frame)})
}

// IsTransportError reports whether err came from a device request.
func IsTransportError(err error) bool {
	var te *TransportError

	return errors.As(err, &te)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
