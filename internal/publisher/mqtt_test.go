package publisher

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/vehicle-dashboard/internal/config"
	"github.com/j-veylop/vehicle-dashboard/internal/models"
)

type fakeToken struct {
	err     error
	timeout bool
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type message struct {
	topic    string
	payload  interface{}
	qos      byte
	retained bool
}

type fakeClient struct {
	mu           sync.Mutex
	messages     []message
	err          error
	timeout      bool
	connected    bool
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message{topic: topic, payload: payload, qos: qos, retained: retained})
	return &fakeToken{err: c.err, timeout: c.timeout}
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) {
	c.disconnected = true
	c.connected = false
}

func (c *fakeClient) byTopic() map[string]message {
	out := make(map[string]message, len(c.messages))
	for _, m := range c.messages {
		out[m.topic] = m
	}
	return out
}

func TestPublishSnapshot(t *testing.T) {
	client := &fakeClient{connected: true}
	p := NewWithClient(client, "garage")

	snap := models.MetricsSnapshot{
		CurrentReading:   45213,
		WindowDistance:   500,
		WindowFuel:       35,
		WindowCost:       3350,
		WindowEfficiency: 500.0 / 35.0,
	}

	require.NoError(t, p.PublishSnapshot("user-1", snap))

	got := client.byTopic()
	require.Len(t, got, 6)

	full, ok := got["garage/user-1/snapshot"]
	require.True(t, ok, "snapshot topic missing")
	assert.True(t, full.retained)
	assert.Equal(t, byte(1), full.qos)

	var decoded models.MetricsSnapshot
	require.NoError(t, json.Unmarshal(full.payload.([]byte), &decoded))
	assert.Equal(t, snap.WindowCost, decoded.WindowCost)

	tests := []struct {
		topic string
		want  string
	}{
		{"garage/user-1/current_reading", "45213.00"},
		{"garage/user-1/window_distance", "500.00"},
		{"garage/user-1/window_fuel", "35.00"},
		{"garage/user-1/window_cost", "3350.00"},
		{"garage/user-1/window_efficiency", "14.29"},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			m, ok := got[tt.topic]
			require.True(t, ok)
			assert.Equal(t, tt.want, m.payload)
			assert.True(t, m.retained)
		})
	}
}

func TestPublishSnapshot_Errors(t *testing.T) {
	t.Run("NoUser", func(t *testing.T) {
		p := NewWithClient(&fakeClient{}, "")
		assert.Error(t, p.PublishSnapshot("", models.MetricsSnapshot{}))
	})

	t.Run("PublishError", func(t *testing.T) {
		brokerErr := errors.New("not authorized")
		client := &fakeClient{err: brokerErr}
		p := NewWithClient(client, "")

		err := p.PublishSnapshot("u", models.MetricsSnapshot{})
		assert.ErrorIs(t, err, brokerErr)
		assert.Len(t, client.messages, 1, "should stop after the first failure")
	})

	t.Run("Timeout", func(t *testing.T) {
		p := NewWithClient(&fakeClient{timeout: true}, "")
		assert.Error(t, p.PublishSnapshot("u", models.MetricsSnapshot{}))
	})
}

func TestNewWithClient_TopicPrefix(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "vehicle_dashboard/u/snapshot"},
		{"home/cars/", "home/cars/u/snapshot"},
		{"car", "car/u/snapshot"},
	}
	for _, tt := range tests {
		p := NewWithClient(&fakeClient{}, tt.prefix)
		assert.Equal(t, tt.want, p.Topic("u", "snapshot"))
	}
}

func TestBrokerURL(t *testing.T) {
	assert.Equal(t, "tcp://localhost:1883", brokerURL("localhost:1883"))
	assert.Equal(t, "ssl://broker:8883", brokerURL("ssl://broker:8883"))
}

func TestNew_RequiresBroker(t *testing.T) {
	_, err := New(config.MQTTConfig{})
	assert.Error(t, err)
}

func TestWaitConnect(t *testing.T) {
	refused := errors.New("connection refused")

	assert.NoError(t, waitConnect(&fakeToken{}, time.Second))
	assert.ErrorIs(t, waitConnect(&fakeToken{err: refused}, time.Second), refused)
	assert.ErrorContains(t, waitConnect(&fakeToken{timeout: true}, time.Second), "timed out")
}

func TestNew_UnreachableBrokerFails(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := New(config.MQTTConfig{Broker: "127.0.0.1:1"})
		done <- err
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(connectTimeout + 5*time.Second):
		t.Fatal("New() did not return for an unreachable broker")
	}
}

func TestClose(t *testing.T) {
	client := &fakeClient{connected: true}
	p := NewWithClient(client, "")
	p.Close()
	assert.True(t, client.disconnected)

	// Closing a disconnected client is a no-op
	client.disconnected = false
	p.Close()
	assert.False(t, client.disconnected)
}
