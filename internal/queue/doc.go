// Package queue provisions per-device command queues during registration
// approval.
//
// Two implementations of registration.QueueProvisioner are provided:
//
//   - MQTTProvisioner: production path. The queue is an MQTT inbox topic on
//     the fleet broker; the returned endpoint embeds broker host, port and
//     topic so the device can connect directly.
//   - MemoryProvisioner: in-process queues for tests and local development.
//     No broker required.
//
// # Endpoint Formats
//
//	mqtt://broker.example.com:1883/vendlink/device/<device_id>/inbox
//	memory://queue/<device_id>
//
// Endpoints are opaque to the registration service; only the device and the
// operator tooling interpret them.
package queue
