package mqtt

import (
	"testing"
)

// Broker-free unit tests. Connection behaviour against a live broker is
// covered by integration_test.go (run with -tags=integration).

func TestCloseNil(t *testing.T) {
	client := &Client{}
	err := client.Close()
	if err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{client: nil}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("IsConnected() panicked on uninitialised client: %v", r)
		}
	}()

	if client.connected {
		t.Error("connected should be false for uninitialised client")
	}
}

func TestTopicBuilders(t *testing.T) {
	deviceID := "0f9d6a4e-8b2c-4f1a-b3e5-7c9d1a2b3c4d"

	tests := []struct {
		name     string
		builder  func() string
		expected string
	}{
		{
			name: "DeviceInbox",
			builder: func() string {
				return Topics{}.DeviceInbox(deviceID)
			},
			expected: "vendlink/device/" + deviceID + "/inbox",
		},
		{
			name: "DeviceTelemetry",
			builder: func() string {
				return Topics{}.DeviceTelemetry(deviceID)
			},
			expected: "vendlink/device/" + deviceID + "/telemetry",
		},
		{
			name: "DeviceStatus",
			builder: func() string {
				return Topics{}.DeviceStatus(deviceID)
			},
			expected: "vendlink/device/" + deviceID + "/status",
		},
		{
			name: "CoreEvent",
			builder: func() string {
				return Topics{}.CoreEvent("device_approved")
			},
			expected: "vendlink/core/event/device_approved",
		},
		{
			name: "SystemStatus",
			builder: func() string {
				return Topics{}.SystemStatus()
			},
			expected: "vendlink/system/status",
		},
		{
			name: "AllDeviceTelemetry",
			builder: func() string {
				return Topics{}.AllDeviceTelemetry()
			},
			expected: "vendlink/device/+/telemetry",
		},
		{
			name: "AllDeviceStatus",
			builder: func() string {
				return Topics{}.AllDeviceStatus()
			},
			expected: "vendlink/device/+/status",
		},
		{
			name: "AllCoreEvents",
			builder: func() string {
				return Topics{}.AllCoreEvents()
			},
			expected: "vendlink/core/event/+",
		},
		{
			name: "AllTopics",
			builder: func() string {
				return Topics{}.AllTopics()
			},
			expected: "vendlink/#",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.builder()
			if result != tt.expected {
				t.Errorf("%s() = %q, want %q", tt.name, result, tt.expected)
			}
		})
	}
}
