package influxdb

import "errors"

// Sentinel errors for the metrics client, matched with errors.Is.
var (
	// ErrNotConnected means the client has been closed or never connected.
	ErrNotConnected = errors.New("influxdb: not connected")

	// ErrConnectionFailed means the startup ping never succeeded.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrDisabled means the metrics sink is switched off in config.
	// The daemon treats this as "run without metrics", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
