package telemetry

import (
	"errors"
	"testing"

	"github.com/vendlink/vendlink-core/internal/infrastructure/logging"
	"github.com/vendlink/vendlink-core/internal/infrastructure/mqtt"
)

type fakeBroker struct {
	subscribed   string
	unsubscribed string
	handler      mqtt.MessageHandler
	subscribeErr error
}

func (b *fakeBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if b.subscribeErr != nil {
		return b.subscribeErr
	}
	b.subscribed = topic
	b.handler = handler
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	b.unsubscribed = topic
	return nil
}

type reading struct {
	deviceID string
	metric   string
	value    float64
}

type fakeSink struct {
	readings []reading
}

func (s *fakeSink) WriteTelemetryMetric(deviceID, metric string, value float64) {
	s.readings = append(s.readings, reading{deviceID, metric, value})
}

func newCollectorForTest() (*Collector, *fakeBroker, *fakeSink) {
	broker := &fakeBroker{}
	sink := &fakeSink{}
	return NewCollector(broker, sink, logging.NewNop()), broker, sink
}

func TestCollector_StartSubscribesWildcard(t *testing.T) {
	collector, broker, _ := newCollectorForTest()

	if err := collector.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if broker.subscribed != "vendlink/device/+/telemetry" {
		t.Errorf("subscribed to %q, want vendlink/device/+/telemetry", broker.subscribed)
	}

	if err := collector.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if broker.unsubscribed != broker.subscribed {
		t.Errorf("unsubscribed from %q, want %q", broker.unsubscribed, broker.subscribed)
	}
}

func TestCollector_StartSubscribeFails(t *testing.T) {
	broker := &fakeBroker{subscribeErr: errors.New("broker down")}
	collector := NewCollector(broker, &fakeSink{}, logging.NewNop())

	if err := collector.Start(); err == nil {
		t.Error("Start() returned nil error with broker down")
	}
}

func TestCollector_RecordsNumericReadings(t *testing.T) {
	collector, broker, sink := newCollectorForTest()
	if err := collector.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	topic := mqtt.Topics{}.DeviceTelemetry("0f9d6a4e-8b2c-4f1a-b3e5-7c9d1a2b3c4d")
	payload := []byte(`{"stock_level": 42, "cabinet_temp_c": 4.5, "firmware": "1.2.0", "door_open": false}`)

	if err := broker.handler(topic, payload); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	// Non-numeric fields are skipped
	if len(sink.readings) != 2 {
		t.Fatalf("recorded %d readings, want 2", len(sink.readings))
	}
	byMetric := map[string]reading{}
	for _, r := range sink.readings {
		if r.deviceID != "0f9d6a4e-8b2c-4f1a-b3e5-7c9d1a2b3c4d" {
			t.Errorf("deviceID = %q, want topic device ID", r.deviceID)
		}
		byMetric[r.metric] = r
	}
	if byMetric["stock_level"].value != 42 {
		t.Errorf("stock_level = %v, want 42", byMetric["stock_level"].value)
	}
	if byMetric["cabinet_temp_c"].value != 4.5 {
		t.Errorf("cabinet_temp_c = %v, want 4.5", byMetric["cabinet_temp_c"].value)
	}
}

func TestCollector_MalformedPayload(t *testing.T) {
	collector, broker, sink := newCollectorForTest()
	if err := collector.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	topic := mqtt.Topics{}.DeviceTelemetry("0f9d6a4e")
	if err := broker.handler(topic, []byte("not json")); err == nil {
		t.Error("handler accepted a malformed payload")
	}
	if len(sink.readings) != 0 {
		t.Errorf("recorded %d readings from garbage, want 0", len(sink.readings))
	}
}

func TestDeviceFromTopic(t *testing.T) {
	tests := []struct {
		topic   string
		want    string
		wantErr bool
	}{
		{"vendlink/device/0f9d6a4e/telemetry", "0f9d6a4e", false},
		{"vendlink/device//telemetry", "", true},
		{"vendlink/system/status", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := deviceFromTopic(tt.topic)
		if tt.wantErr != (err != nil) {
			t.Errorf("deviceFromTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("deviceFromTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}
