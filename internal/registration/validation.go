package registration

import (
	"fmt"
	"net"
	"regexp"

	"github.com/google/uuid"
)

// Validation constants.
const (
	hardwareIDMinLength = 8
	hardwareIDMaxLength = 64
	maxReasonLength     = 500

	hardwareIDPattern = `^[a-zA-Z0-9]+$`
)

var hardwareIDRegex = regexp.MustCompile(hardwareIDPattern)

// ValidateRequest checks a registration payload against the field contracts.
// It returns an error wrapping ErrInvalidRequest that names the first
// violated rule, or nil. The payload is never modified.
func ValidateRequest(req *Request) error {
	if req == nil {
		return fmt.Errorf("%w: request is required", ErrInvalidRequest)
	}

	if err := ValidateHardwareID(req.HardwareID); err != nil {
		return err
	}

	if req.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidRequest)
	}
	if _, err := uuid.Parse(req.TenantID); err != nil {
		return fmt.Errorf("%w: tenant_id must be a valid UUID", ErrInvalidRequest)
	}

	if req.IPAddress == "" {
		return fmt.Errorf("%w: ip_address is required", ErrInvalidRequest)
	}
	if net.ParseIP(req.IPAddress) == nil {
		return fmt.Errorf("%w: ip_address must be a valid IP literal", ErrInvalidRequest)
	}

	return validateSystemInfo(req.SystemInfo)
}

// ValidateHardwareID checks the hardware ID format: alphanumeric,
// 8 to 64 characters.
func ValidateHardwareID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: hardware_id is required", ErrInvalidRequest)
	}
	if len(id) < hardwareIDMinLength || len(id) > hardwareIDMaxLength {
		return fmt.Errorf("%w: hardware_id length must be between %d and %d characters",
			ErrInvalidRequest, hardwareIDMinLength, hardwareIDMaxLength)
	}
	if !hardwareIDRegex.MatchString(id) {
		return fmt.Errorf("%w: hardware_id must be alphanumeric", ErrInvalidRequest)
	}
	return nil
}

// ValidateReason checks a rejection reason: non-empty, bounded length.
func ValidateReason(reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: rejection reason is required", ErrInvalidRequest)
	}
	if len(reason) > maxReasonLength {
		return fmt.Errorf("%w: rejection reason exceeds %d characters", ErrInvalidRequest, maxReasonLength)
	}
	return nil
}

// validateSystemInfo requires all five descriptive fields to be present.
func validateSystemInfo(info SystemInfo) error {
	fields := []struct {
		name  string
		value string
	}{
		{"os", info.OS},
		{"version", info.Version},
		{"architecture", info.Architecture},
		{"memory", info.Memory},
		{"storage", info.Storage},
	}

	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: system_info.%s is required", ErrInvalidRequest, f.name)
		}
	}
	return nil
}
