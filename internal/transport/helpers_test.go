package transport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/connectors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDevice emulates the device HTTP surface used by the transport.
type fakeDevice struct {
	mu sync.Mutex

	probeFailures   int
	probeDelay      time.Duration
	probes          int
	inbound         [][]byte
	fromRadioStatus int
	fromRadioDelay  time.Duration
	fromRadioCalls  int
	fromRadioQuery  []string
	toRadioStatus   int
	writes          [][]byte
	writeTypes      []string
	acceptHeaders   []string

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (d *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case pathProbe:
		d.mu.Lock()
		d.probes++
		fail := d.probeFailures > 0
		if fail {
			d.probeFailures--
		}
		delay := d.probeDelay
		d.probeDelay = 0
		d.mu.Unlock()
		if delay > 0 {
			time.Sleep(delay)
		}
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}
		_, _ = io.WriteString(w, "<html>ok</html>")
	case pathFromRadio:
		n := d.inFlight.Add(1)
		defer d.inFlight.Add(-1)
		for {
			prev := d.maxInFlight.Load()
			if n <= prev || d.maxInFlight.CompareAndSwap(prev, n) {
				break
			}
		}

		d.mu.Lock()
		d.fromRadioCalls++
		d.fromRadioQuery = append(d.fromRadioQuery, r.URL.RawQuery)
		d.acceptHeaders = append(d.acceptHeaders, r.Header.Get("Accept"))
		status := d.fromRadioStatus
		delay := d.fromRadioDelay
		var frame []byte
		if status == 0 && len(d.inbound) > 0 {
			frame = d.inbound[0]
			d.inbound = d.inbound[1:]
		}
		d.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != 0 {
			w.WriteHeader(status)

			return
		}
		w.Header().Set("Content-Type", contentTypeProtobuf)
		_, _ = w.Write(frame)
	case pathToRadio:
		raw, _ := io.ReadAll(r.Body)
		d.mu.Lock()
		d.writes = append(d.writes, raw)
		d.writeTypes = append(d.writeTypes, r.Header.Get("Content-Type"))
		status := d.toRadioStatus
		d.mu.Unlock()
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)

			return
		}
		if status != 0 {
			w.WriteHeader(status)
		}
	default:
		http.NotFound(w, r)
	}
}

func (d *fakeDevice) set(fn func(d *fakeDevice)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d)
}

func (d *fakeDevice) queue(frames ...[]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = append(d.inbound, frames...)
}

type deviceSnapshot struct {
	probes         int
	fromRadioCalls int
	fromRadioQuery []string
	writes         [][]byte
	writeTypes     []string
	acceptHeaders  []string
}

func (d *fakeDevice) snapshot() deviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	return deviceSnapshot{
		probes:         d.probes,
		fromRadioCalls: d.fromRadioCalls,
		fromRadioQuery: append([]string(nil), d.fromRadioQuery...),
		writes:         append([][]byte(nil), d.writes...),
		writeTypes:     append([]string(nil), d.writeTypes...),
		acceptHeaders:  append([]string(nil), d.acceptHeaders...),
	}
}

// recordingSession records the session hooks the transport calls.
type recordingSession struct {
	mu         sync.Mutex
	configures int
	frames     [][]byte
}

func (s *recordingSession) Configure(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configures++
}

func (s *recordingSession) OnFrameReceived(_ context.Context, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, append([]byte(nil), frame...))
}

func (s *recordingSession) configureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.configures
}

func (s *recordingSession) receivedFrames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]byte(nil), s.frames...)
}

type harness struct {
	device    *fakeDevice
	server    *httptest.Server
	session   *recordingSession
	bus       *bus.PubSubBus
	transport *HTTPTransport
	statuses  bus.Subscription
}

func newHarness(t *testing.T, retry RetryPolicy) *harness {
	t.Helper()

	device := &fakeDevice{}
	server := httptest.NewServer(device)
	t.Cleanup(server.Close)

	b := bus.New(discardLogger())
	session := &recordingSession{}
	tr := NewHTTPTransport(HTTPConfig{
		Client:         server.Client(),
		Session:        session,
		Bus:            b,
		Logger:         discardLogger(),
		Retry:          retry,
		RequestTimeout: 2 * time.Second,
	})
	statuses := b.Subscribe(connectors.TopicConnStatus)
	t.Cleanup(func() {
		tr.Disconnect()
		tr.Wait()
		b.Close()
	})

	return &harness{
		device:    device,
		server:    server,
		session:   session,
		bus:       b,
		transport: tr,
		statuses:  statuses,
	}
}

func (h *harness) address() string {
	return strings.TrimPrefix(h.server.URL, "http://")
}

func (h *harness) bind(t *testing.T) {
	t.Helper()
	if err := h.transport.Bind(h.address(), false); err != nil {
		t.Fatalf("bind: %v", err)
	}
}

func (h *harness) nextStatus(t *testing.T) connectors.ConnectionStatus {
	t.Helper()
	select {
	case raw, ok := <-h.statuses:
		if !ok {
			t.Fatalf("status subscription closed")
		}
		status, ok := raw.(connectors.ConnectionStatus)
		if !ok {
			t.Fatalf("unexpected status payload %T", raw)
		}

		return status
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for status")
	}

	return connectors.ConnectionStatus{}
}

func (h *harness) expectStatuses(t *testing.T, want ...connectors.DeviceStatus) {
	t.Helper()
	for i, state := range want {
		got := h.nextStatus(t)
		if got.State != state {
			t.Fatalf("status #%d: expected %s, got %s (err %q)", i, state, got.State, got.Err)
		}
	}
}

func (h *harness) expectNoStatus(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case raw := <-h.statuses:
		t.Fatalf("unexpected status event %+v", raw)
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func frameOf(size int, fill byte) []byte {
	frame := make([]byte, size)
	for i := range frame {
		frame[i] = fill + byte(i)
	}

	return frame
}
