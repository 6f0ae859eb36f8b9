package mqtt

import "fmt"

// Topic prefixes for the VendLink MQTT namespace.
//
// Device topics follow the scheme: vendlink/device/{device_id}/{channel}
// where device_id is the UUID assigned at approval, never the hardware ID.
const (
	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "vendlink/device"

	// TopicPrefixCore is the base for core-originated topics.
	TopicPrefixCore = "vendlink/core"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "vendlink/system"
)

// Topics provides builders for VendLink MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	inbox := topics.DeviceInbox("0f9d6a4e-8b2c-4f1a-b3e5-7c9d1a2b3c4d")
//	// Returns: "vendlink/device/0f9d6a4e-8b2c-4f1a-b3e5-7c9d1a2b3c4d/inbox"
type Topics struct{}

// DeviceInbox returns the command queue topic for an approved device.
// The device subscribes here for operator commands (restock alerts,
// price updates, remote restarts).
//
// Example: vendlink/device/0f9d6a4e/inbox
func (Topics) DeviceInbox(deviceID string) string {
	return fmt.Sprintf("%s/%s/inbox", TopicPrefixDevice, deviceID)
}

// DeviceTelemetry returns the telemetry topic for an approved device.
// Devices publish stock levels and sales counters here.
//
// Example: vendlink/device/0f9d6a4e/telemetry
func (Topics) DeviceTelemetry(deviceID string) string {
	return fmt.Sprintf("%s/%s/telemetry", TopicPrefixDevice, deviceID)
}

// DeviceStatus returns the online/offline status topic for a device.
//
// Example: vendlink/device/0f9d6a4e/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// CoreEvent returns the topic for registration lifecycle events.
//
// Example: vendlink/core/event/device_approved
func (Topics) CoreEvent(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixCore, eventType)
}

// SystemStatus returns the system status topic. Core publishes its
// online/offline state here, including via LWT.
//
// Example: vendlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceTelemetry returns a pattern matching telemetry from every device.
//
// Pattern: vendlink/device/+/telemetry
func (Topics) AllDeviceTelemetry() string {
	return fmt.Sprintf("%s/+/telemetry", TopicPrefixDevice)
}

// AllDeviceStatus returns a pattern matching status from every device.
//
// Pattern: vendlink/device/+/status
func (Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/+/status", TopicPrefixDevice)
}

// AllCoreEvents returns a pattern matching all core events.
//
// Pattern: vendlink/core/event/+
func (Topics) AllCoreEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefixCore)
}

// AllTopics returns a pattern matching all VendLink topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: vendlink/#
func (Topics) AllTopics() string {
	return "vendlink/#"
}
