package statusmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skobkin/meshhttp/internal/bus"
	"github.com/skobkin/meshhttp/internal/config"
	"github.com/skobkin/meshhttp/internal/connectors"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t fakeToken) Wait() bool                     { return !t.timeout }
func (t fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}
func (t fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	msgs  []published
	token fakeToken
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})

	return p.token
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]published(nil), p.msgs...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusTopic(t *testing.T) {
	assert.Equal(t, "meshhttp/status", StatusTopic("meshhttp"))
	assert.Equal(t, "home/radio/status", StatusTopic(" home/radio/ "))
	assert.Equal(t, "status", StatusTopic(""))
}

func TestMirrorPublishesRetainedJSON(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMirror(pub, "meshhttp", discardLogger())

	err := m.Publish(connectors.ConnectionStatus{
		State:         connectors.StatusReconnecting,
		Err:           "probe failed",
		TransportName: "http",
		Target:        "http://meshtastic.local",
	})
	require.NoError(t, err)

	msgs := pub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, "meshhttp/status", msgs[0].topic)
	assert.Equal(t, byte(1), msgs[0].qos)
	assert.True(t, msgs[0].retained)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].payload, &body))
	assert.Equal(t, "reconnecting", body["state"])
	assert.Equal(t, "probe failed", body["error"])
	assert.Equal(t, "http", body["transport"])
	assert.Equal(t, "http://meshtastic.local", body["target"])
}

func TestMirrorPublishErrors(t *testing.T) {
	pub := &fakePublisher{token: fakeToken{err: errors.New("not connected")}}
	m := NewMirror(pub, "x", discardLogger())
	assert.ErrorContains(t, m.Publish(connectors.ConnectionStatus{}), "not connected")

	pub = &fakePublisher{token: fakeToken{timeout: true}}
	m = NewMirror(pub, "x", discardLogger())
	assert.ErrorContains(t, m.Publish(connectors.ConnectionStatus{}), "timed out")
}

func TestMirrorRunFollowsBusInOrder(t *testing.T) {
	b := bus.New(discardLogger())
	defer b.Close()
	pub := &fakePublisher{}
	m := NewMirror(pub, "meshhttp", discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := m.Run(ctx, b)

	states := []connectors.DeviceStatus{
		connectors.StatusConnecting,
		connectors.StatusConnected,
		connectors.StatusDisconnected,
	}
	for _, s := range states {
		b.Publish(connectors.TopicConnStatus, connectors.ConnectionStatus{State: s, TransportName: "http"})
	}
	b.Publish(connectors.TopicConnStatus, "not a status")

	require.Eventually(t, func() bool { return len(pub.all()) == len(states) }, time.Second, 5*time.Millisecond)
	for i, msg := range pub.all() {
		var body map[string]any
		require.NoError(t, json.Unmarshal(msg.payload, &body))
		assert.Equal(t, states[i].String(), body["state"])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mirror did not stop")
	}
}

func TestConnectRequiresBroker(t *testing.T) {
	_, err := Connect(config.MQTTConfig{Enabled: true}, discardLogger())
	assert.Error(t, err)
}
