package registration

import "errors"

// Domain errors for the registration package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, registration.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrInvalidRequest is returned when a registration payload or lookup
	// key fails validation. The wrapped message names the first violated rule.
	ErrInvalidRequest = errors.New("registration: invalid request")

	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("registration: device not found")

	// ErrDeviceExists is returned by the store when inserting a record whose
	// hardware ID is already taken.
	ErrDeviceExists = errors.New("registration: device already exists")

	// ErrAlreadyPending is returned when registering a hardware ID whose
	// existing registration is still awaiting approval.
	ErrAlreadyPending = errors.New("registration: already pending approval")

	// ErrAlreadyApproved is returned when registering a hardware ID that has
	// already been approved.
	ErrAlreadyApproved = errors.New("registration: already approved")

	// ErrNotPending is returned when approving or rejecting a record that is
	// not in pending status.
	ErrNotPending = errors.New("registration: device not in pending status")

	// ErrExpired is returned when a status inquiry finds a pending record
	// older than the expiry window. The record is deleted as a side effect;
	// the machine must register again.
	ErrExpired = errors.New("registration: registration expired")
)
