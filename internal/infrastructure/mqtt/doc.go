// Package mqtt provides MQTT client connectivity for VendLink Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// VendLink uses MQTT as the command and telemetry channel between the Core
// and approved vending machines in the field. Each approved device owns a
// per-device inbox topic provisioned during registration approval.
//
//	VendLink Core ↔ MQTT Broker ↔ Vending Machines
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to telemetry from every approved device
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceTelemetry(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Send a command to one device
//	topic := mqtt.Topics{}.DeviceInbox(deviceID)
//	client.Publish(topic, []byte(`{"command":"restart"}`), 1, false)
package mqtt
