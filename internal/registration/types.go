package registration

import "time"

// DefaultExpiry is how long a pending registration remains actionable before
// it is treated as expired and eligible for deletion on read.
const DefaultExpiry = 24 * time.Hour

// Status represents the lifecycle state of a device registration.
type Status string

// Status constants.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusApproved, StatusRejected}
}

// SystemInfo describes the machine's self-reported platform details.
// The fields are free-form descriptive strings; all five must be present
// on registration but carry no further invariants.
type SystemInfo struct {
	OS           string `json:"os"`
	Version      string `json:"version"`
	Architecture string `json:"architecture"`
	Memory       string `json:"memory"`
	Storage      string `json:"storage"`
}

// Request is a candidate registration payload as submitted by a machine.
type Request struct {
	HardwareID string     `json:"hardware_id"`
	TenantID   string     `json:"tenant_id"`
	IPAddress  string     `json:"ip_address"`
	SystemInfo SystemInfo `json:"system_info"`
}

// Device represents one physical unit's registration and its current
// lifecycle state. This matches the devices table schema in
// migrations/20260810_090000_devices.up.sql.
type Device struct {
	// Identity. HardwareID is the natural key, burned into the unit and
	// immutable once the record is created. TenantID names the owning fleet.
	HardwareID string `json:"hardware_id"`
	TenantID   string `json:"tenant_id"`

	// IPAddress is the last-known network address at registration time.
	// Informational only.
	IPAddress  string     `json:"ip_address"`
	SystemInfo SystemInfo `json:"system_info"`

	Status Status `json:"status"`

	// DeviceID and QueueEndpoint are assigned together by approval and are
	// never cleared afterwards. Both are empty while pending or rejected.
	DeviceID      string `json:"device_id,omitempty"`
	QueueEndpoint string `json:"queue_endpoint,omitempty"`

	// RejectionReason is set only by the pending→rejected transition.
	RejectionReason string `json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPending reports whether the registration awaits an admin decision.
func (d *Device) IsPending() bool { return d.Status == StatusPending }

// IsApproved reports whether the registration has been approved.
func (d *Device) IsApproved() bool { return d.Status == StatusApproved }

// IsRejected reports whether the registration has been rejected.
func (d *Device) IsRejected() bool { return d.Status == StatusRejected }

// ExpiredAt reports whether the record's creation time falls outside the
// given expiry window at the given instant. Expiry is a derived property;
// it is only meaningful for pending records and is never stored.
func (d *Device) ExpiredAt(now time.Time, window time.Duration) bool {
	return now.Sub(d.CreatedAt) > window
}

// Approve transitions a pending record to approved, recording the assigned
// device ID and queue endpoint. Callers must have verified IsPending.
func (d *Device) Approve(deviceID, queueEndpoint string, now time.Time) {
	d.Status = StatusApproved
	d.DeviceID = deviceID
	d.QueueEndpoint = queueEndpoint
	d.UpdatedAt = now
}

// Reject transitions a pending record to rejected with the given reason.
// Callers must have verified IsPending and that reason is non-empty.
func (d *Device) Reject(reason string, now time.Time) {
	d.Status = StatusRejected
	d.RejectionReason = reason
	d.UpdatedAt = now
}

// Clone returns an independent copy of the Device.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	return &cpy
}
