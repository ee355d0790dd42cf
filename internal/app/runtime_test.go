package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/connectors"
)

type deviceStub struct {
	mu        sync.Mutex
	toRadio   [][]byte
	userAgent string
}

func (d *deviceStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.userAgent = r.UserAgent()
	d.mu.Unlock()

	switch r.URL.Path {
	case "/hotspot-detect.html":
		w.WriteHeader(http.StatusOK)
	case "/api/v1/fromradio":
		w.WriteHeader(http.StatusOK)
	case "/api/v1/toradio":
		buf, _ := io.ReadAll(r.Body)
		d.mu.Lock()
		d.toRadio = append(d.toRadio, buf)
		d.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func (d *deviceStub) writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.toRadio)
}

func writeConfig(t *testing.T, cfg config.AppConfig) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, config.Save(path, cfg))

	return path
}

func TestInitializeRejectsMissingHost(t *testing.T) {
	path := writeConfig(t, config.Default())

	_, err := Initialize(context.Background(), Options{ConfigFile: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host")
}

func TestInitializeAppliesOverride(t *testing.T) {
	path := writeConfig(t, config.Default())

	rt, err := Initialize(context.Background(), Options{
		ConfigFile: path,
		Override: func(cfg *config.AppConfig) {
			cfg.Connection.Host = "radio.lan"
			cfg.Connection.TLS = true
			cfg.Connection.PollIntervalMS = 0
		},
	})
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	assert.Equal(t, "radio.lan", rt.Config.Connection.Host)
	assert.Equal(t, config.DefaultPollIntervalMS, rt.Config.Connection.PollIntervalMS)
	assert.Equal(t, filepath.Join(filepath.Dir(path), LogFilename), rt.Paths.LogFile)

	status, known := rt.CurrentConnStatus()
	assert.False(t, known)
	assert.Equal(t, connectors.StatusDisconnected, status.State)
	assert.Equal(t, "https://radio.lan", status.Target)
}

func TestRuntimeConnectAndClose(t *testing.T) {
	device := &deviceStub{}
	srv := httptest.NewServer(device)
	defer srv.Close()

	cfg := config.Default()
	cfg.Connection.Host = strings.TrimPrefix(srv.URL, "http://")
	cfg.Connection.PollIntervalMS = 20
	path := writeConfig(t, cfg)

	rt, err := Initialize(context.Background(), Options{ConfigFile: path})
	require.NoError(t, err)
	require.NoError(t, rt.Connect())

	require.Eventually(t, func() bool {
		status, known := rt.CurrentConnStatus()
		return known && status.State == connectors.StatusConnected
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return device.writes() >= 1 }, 2*time.Second, 10*time.Millisecond)

	device.mu.Lock()
	assert.True(t, strings.HasPrefix(device.userAgent, Name+"/"), "user agent %q", device.userAgent)
	device.mu.Unlock()

	require.NoError(t, rt.Close())

	status, known := rt.CurrentConnStatus()
	assert.True(t, known)
	assert.Equal(t, connectors.StatusDisconnected, status.State)
	assert.False(t, rt.Transport.Context().Bound())
}

func TestRuntimeSaveConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Connection.Host = "radio.lan"
	path := writeConfig(t, cfg)

	rt, err := Initialize(context.Background(), Options{
		ConfigFile: path,
		Override: func(cfg *config.AppConfig) {
			cfg.Connection.ReceiveAll = true
		},
	})
	require.NoError(t, err)
	defer func() { _ = rt.Close() }()

	require.NoError(t, rt.SaveConfig())
	_, err = os.Stat(path)
	require.NoError(t, err)

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, loaded.Connection.ReceiveAll)
}
