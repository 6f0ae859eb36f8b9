package queue

import (
	"context"
	"fmt"

	"github.com/vendlink/vendlink-core/internal/infrastructure/config"
	"github.com/vendlink/vendlink-core/internal/infrastructure/mqtt"
)

// MQTTProvisioner provisions device command queues as MQTT inbox topics.
//
// MQTT topics need no broker-side creation, so provisioning amounts to
// verifying broker connectivity and seeding the inbox with a retained
// welcome message. The retained message doubles as proof that the topic
// is writable before the approval is committed.
type MQTTProvisioner struct {
	client *mqtt.Client
	cfg    config.MQTTBrokerConfig
	qos    byte
}

// NewMQTTProvisioner creates a provisioner backed by the given MQTT client.
func NewMQTTProvisioner(client *mqtt.Client, cfg config.MQTTConfig) *MQTTProvisioner {
	return &MQTTProvisioner{
		client: client,
		cfg:    cfg.Broker,
		qos:    byte(cfg.QoS),
	}
}

// CreateQueue provisions the inbox topic for a newly approved device and
// returns its endpoint. Fails if the broker is unreachable, which aborts
// the approval upstream.
func (p *MQTTProvisioner) CreateQueue(ctx context.Context, deviceID string) (string, error) {
	if err := p.client.HealthCheck(ctx); err != nil {
		return "", fmt.Errorf("broker unavailable: %w", err)
	}

	topic := mqtt.Topics{}.DeviceInbox(deviceID)
	welcome := fmt.Sprintf(`{"type":"provisioned","device_id":"%s"}`, deviceID)
	if err := p.client.Publish(topic, []byte(welcome), p.qos, true); err != nil {
		return "", fmt.Errorf("seeding inbox topic: %w", err)
	}

	return fmt.Sprintf("mqtt://%s:%d/%s", p.cfg.Host, p.cfg.Port, topic), nil
}
