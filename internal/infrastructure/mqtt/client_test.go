package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
// Broker-backed tests expect Mosquitto at 127.0.0.1:1883 and skip otherwise.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "graylogic-lwm2m-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

const testBrokerAddr = "127.0.0.1:1883"

var (
	brokerOnce sync.Once
	brokerErr  error
)

// brokerAvailable dials the local broker once with a short timeout so that
// broker tests skip quickly when nothing is listening.
func brokerAvailable() error {
	brokerOnce.Do(func() {
		conn, err := net.DialTimeout("tcp", testBrokerAddr, 500*time.Millisecond)
		if err != nil {
			brokerErr = err
			return
		}
		_ = conn.Close()
	})
	return brokerErr
}

// shortConnectTimeout lowers the connect timeout for the duration of a test.
func shortConnectTimeout(t *testing.T, d time.Duration) {
	t.Helper()
	prev := connectTimeout
	connectTimeout = d
	t.Cleanup(func() { connectTimeout = prev })
}

// connectOrSkip connects to the local broker or skips the test.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()
	if err := brokerAvailable(); err != nil {
		t.Skipf("MQTT broker not available at %s: %v", testBrokerAddr, err)
	}
	cfg := testConfig()
	cfg.Broker.ClientID = clientID
	client, err := Connect(cfg)
	if err != nil {
		t.Skipf("MQTT broker not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		fn   func() string
		want string
	}{
		{
			name: "RegistrationEvent",
			fn:   func() string { return Topics{}.RegistrationEvent("node-1", "registered") },
			want: "lwm2m/rd/node-1/registered",
		},
		{
			name: "RegistrationEvent escapes endpoint",
			fn:   func() string { return Topics{}.RegistrationEvent("urn:dev/a+b#", "updated") },
			want: "lwm2m/rd/urn:dev_a_b_/updated",
		},
		{
			name: "RegistrationState",
			fn:   func() string { return Topics{}.RegistrationState("node-1") },
			want: "lwm2m/rd/node-1/state",
		},
		{
			name: "SystemStatus",
			fn:   func() string { return Topics{}.SystemStatus() },
			want: "lwm2m/system/status",
		},
		{
			name: "AllRegistrationEvents",
			fn:   func() string { return Topics{}.AllRegistrationEvents() },
			want: "lwm2m/rd/+/+",
		},
		{
			name: "AllTopics",
			fn:   func() string { return Topics{}.AllTopics() },
			want: "lwm2m/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fn(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeSegment(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"", "_"},
		{"a/b", "a_b"},
		{"+", "_"},
		{"#", "_"},
		{"urn:imei:123", "urn:imei:123"},
	}
	for _, tt := range tests {
		if got := EscapeSegment(tt.in); got != tt.want {
			t.Errorf("EscapeSegment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStatusPayload(t *testing.T) {
	var msg StatusMessage
	if err := json.Unmarshal(statusPayload(StatusOffline, "srv-1", "graceful_shutdown"), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != StatusOffline || msg.ClientID != "srv-1" || msg.Reason != "graceful_shutdown" {
		t.Errorf("status payload = %+v", msg)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", msg.Timestamp, err)
	}
}

// =============================================================================
// Offline Validation Tests
// =============================================================================

func TestPublishValidation(t *testing.T) {
	client := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{name: "empty topic", topic: "", payload: []byte("x"), qos: 1, wantErr: ErrInvalidTopic},
		{name: "invalid QoS", topic: "lwm2m/t", payload: []byte("x"), qos: 3, wantErr: ErrInvalidQoS},
		{name: "payload too large", topic: "lwm2m/t", payload: []byte(strings.Repeat("x", maxPayloadSize+1)), qos: 1, wantErr: ErrPublishFailed},
		{name: "not connected", topic: "lwm2m/t", payload: []byte("x"), qos: 1, wantErr: ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_Unencodable(t *testing.T) {
	client := &Client{cfg: testConfig()}
	err := client.PublishJSON("lwm2m/t", make(chan int), false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := &Client{}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestConnect_BrokerRefused(t *testing.T) {
	shortConnectTimeout(t, 500*time.Millisecond)
	cfg := testConfig()
	cfg.Broker.Port = 19999

	start := time.Now()
	_, err := Connect(cfg)
	if err == nil {
		t.Skip("something is listening on port 19999")
	}
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Connect() took %v, want it bounded by the connect timeout", elapsed)
	}
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnectAndClose(t *testing.T) {
	client := connectOrSkip(t, "graylogic-lwm2m-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
}

func TestPublishRoundtrip(t *testing.T) {
	client := connectOrSkip(t, "graylogic-lwm2m-test-pub")

	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://" + testBrokerAddr).
		SetClientID("graylogic-lwm2m-test-sub")
	sub := pahomqtt.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Skipf("subscriber could not connect: %v", token.Error())
	}
	defer sub.Disconnect(100)

	received := make(chan []byte, 1)
	topic := Topics{}.RegistrationEvent("roundtrip-node", "registered")
	token := sub.Subscribe(topic, 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		received <- msg.Payload()
	})
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		t.Fatalf("Subscribe() error = %v", token.Error())
	}

	if err := client.PublishJSON(topic, map[string]string{"endpoint": "roundtrip-node"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case payload := <-received:
		if !strings.Contains(string(payload), "roundtrip-node") {
			t.Errorf("payload = %s, want endpoint", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}
