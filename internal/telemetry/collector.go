package telemetry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vendlink/vendlink-core/internal/infrastructure/logging"
	"github.com/vendlink/vendlink-core/internal/infrastructure/mqtt"
)

// telemetryQoS is the subscription QoS. At-least-once; duplicate points
// are harmless for gauge-style readings.
const telemetryQoS = 1

// Subscriber is the broker surface the collector needs. *mqtt.Client
// satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Recorder receives parsed readings. *influxdb.Client satisfies it.
type Recorder interface {
	WriteTelemetryMetric(deviceID string, metric string, value float64)
}

// Collector subscribes to device telemetry and forwards numeric
// readings to the recorder.
type Collector struct {
	broker Subscriber
	sink   Recorder
	logger *logging.Logger
	topic  string
}

// NewCollector wires a broker subscription to a metrics sink.
func NewCollector(broker Subscriber, sink Recorder, logger *logging.Logger) *Collector {
	return &Collector{
		broker: broker,
		sink:   sink,
		logger: logger,
		topic:  mqtt.Topics{}.AllDeviceTelemetry(),
	}
}

// Start subscribes to the wildcard device telemetry topic. The
// subscription survives broker reconnects; call Close to drop it.
func (c *Collector) Start() error {
	if err := c.broker.Subscribe(c.topic, telemetryQoS, c.handleMessage); err != nil {
		return fmt.Errorf("subscribing to device telemetry: %w", err)
	}
	c.logger.Info("telemetry collector started", "topic", c.topic)
	return nil
}

// Close drops the telemetry subscription.
func (c *Collector) Close() error {
	return c.broker.Unsubscribe(c.topic)
}

// handleMessage parses one telemetry publication. The device ID comes
// from the topic, never the payload, so a machine cannot report under
// another machine's identity.
func (c *Collector) handleMessage(topic string, payload []byte) error {
	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		return err
	}

	var readings map[string]any
	if err := json.Unmarshal(payload, &readings); err != nil {
		return fmt.Errorf("telemetry payload from %s: %w", deviceID, err)
	}

	recorded := 0
	for metric, raw := range readings {
		value, ok := raw.(float64)
		if !ok {
			continue
		}
		c.sink.WriteTelemetryMetric(deviceID, metric, value)
		recorded++
	}

	c.logger.Debug("telemetry recorded", "device_id", deviceID, "readings", recorded)
	return nil
}

// deviceFromTopic extracts the device ID from a telemetry topic of the
// form vendlink/device/{device_id}/telemetry.
func deviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[2] == "" {
		return "", fmt.Errorf("unexpected telemetry topic %q", topic)
	}
	return parts[2], nil
}
