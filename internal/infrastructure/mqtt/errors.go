package mqtt

import "errors"

// Sentinel errors for broker operations. Callers match with errors.Is;
// the wrapped detail carries the paho failure.
var (
	// ErrNotConnected means the broker link is down. Publishes from the
	// registration flow surface this when the hub loses its broker.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed means the initial dial never completed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics before they reach paho.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
