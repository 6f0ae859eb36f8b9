package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// All writers below are non-blocking; points are batched and flushed by
// the client. A closed or disconnected client silently drops points so
// the registration flow never stalls on metrics.

// WriteLifecycleEvent records a registration transition as one point on
// the registration_events measurement, tagged by hardware ID and event
// (registered, approved, rejected, expired). Operators chart approval
// rates and expiry churn from these.
func (c *Client) WriteLifecycleEvent(hardwareID string, event string) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"registration_events",
		map[string]string{
			"hardware_id": hardwareID,
			"event":       event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	))
}

// WriteTelemetryMetric records one machine-reported reading (stock
// level, cabinet temperature, sales counter) on the device_telemetry
// measurement. deviceID is the UUID assigned at approval.
func (c *Client) WriteTelemetryMetric(deviceID string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"device_telemetry",
		map[string]string{
			"device_id": deviceID,
			"metric":    metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	))
}

// WritePendingGauge records the pending-registration backlog, sampled
// periodically so operators can alert on stuck approvals.
func (c *Client) WritePendingGauge(fleetID string, pending int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"registration_backlog",
		map[string]string{
			"fleet_id": fleetID,
		},
		map[string]interface{}{
			"pending": pending,
		},
		time.Now(),
	))
}
