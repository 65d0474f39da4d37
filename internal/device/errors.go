package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a device ID does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when inserting a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidField is returned when a field value violates its domain
	// constraint (unrecognised enum value, malformed pair, oversized string).
	ErrInvalidField = errors.New("device: invalid field")

	// ErrInvalidSeed is returned when a registration seed is unusable
	// (missing config entry, missing name, no identity pairs).
	ErrInvalidSeed = errors.New("device: invalid seed")
)
